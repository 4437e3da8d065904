// Package middleware holds gin request middleware: bearer-token auth, admin
// gating, per-user rate limiting, and the session cookie helpers (CORS is
// configured in web/server.go). Grounded on web/middleware/session.go's
// cookie-resolution shape, adapted from anonymous-cookie sessions to
// stateless bearer-token verification against a backing session row.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docrag/auth"
	"docrag/database"
	docerr "docrag/errors"
)

const (
	ContextUserID   = "userID"
	ContextUsername = "username"
	ContextGroupID  = "groupID"
)

// RequireAuth validates the Authorization: Bearer <token> header via the
// auth service and populates the request context with the caller's
// identity, per spec.md §4.10's orchestrator step 1.
func RequireAuth(svc *auth.Service, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing bearer token"})
			return
		}

		claims, err := svc.ValidateBearer(c.Request.Context(), token)
		if err != nil {
			if logger != nil {
				logger.Warn("bearer token rejected", zap.Error(err))
			}
			c.AbortWithStatusJSON(docerr.HTTPStatus(err), gin.H{"message": "invalid or expired token"})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextGroupID, claims.GroupID)
		c.Next()
	}
}

func UserID(c *gin.Context) int64 {
	v, _ := c.Get(ContextUserID)
	id, _ := v.(int64)
	return id
}

func Username(c *gin.Context) string {
	v, _ := c.Get(ContextUsername)
	s, _ := v.(string)
	return s
}

func GroupID(c *gin.Context) string {
	v, _ := c.Get(ContextGroupID)
	s, _ := v.(string)
	return s
}

// RequireAdmin rejects callers who are not in the admin group. Must run
// after RequireAuth so the user id is already in the request context.
func RequireAdmin(store *database.PostgresStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		isAdmin, err := store.IsAdmin(c.Request.Context(), UserID(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "failed to check admin status"})
			return
		}
		if !isAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "admin privileges required"})
			return
		}
		c.Next()
	}
}
