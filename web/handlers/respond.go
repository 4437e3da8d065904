// Package handlers implements the Request Orchestrator's (C10) HTTP
// surface: one handler group per resource, binding spec.md §6's endpoints
// to the acl/auth/database/ingest/retriever/llm/summarize packages.
// Grounded on the teacher's web/handlers/errors.go respondWithError shape.
package handlers

import (
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"

	docerr "docrag/errors"
)

// respondError logs the underlying cause and returns the status
// docerr.HTTPStatus derives from err's Kind, per spec.md §7, with err's
// message and Kind as error_code; an Internal error gets the fixed message
// "internal error" and no error_code.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := docerr.HTTPStatus(err)
	if logger != nil {
		logger.Warn("request failed", zap.Error(err), zap.Int("status", status), zap.String("path", c.FullPath()))
	}
	body := gin.H{"message": err.Error()}
	if kind := docerr.KindOf(err); kind != docerr.Internal {
		body["error_code"] = string(kind)
	} else {
		body["message"] = "internal error"
	}
	c.AbortWithStatusJSON(status, body)
}
