package handlers

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	docerr "docrag/errors"
	"docrag/templates"
	"docrag/web/middleware"
	"docrag/web/types"
)

// TemplateHandler binds the System Prompt Template entity's per-user
// CRUD + selection endpoints, backed by templates.Store's JSON files
// rather than a database table, per spec.md §6's persisted state layout.
type TemplateHandler struct {
	store  *templates.Store
	logger *zap.Logger
}

func NewTemplateHandler(store *templates.Store, logger *zap.Logger) *TemplateHandler {
	return &TemplateHandler{store: store, logger: logger}
}

// SaveTemplate implements POST /api/system-messages: create or overwrite
// a named template owned by the caller.
func (h *TemplateHandler) SaveTemplate(c *gin.Context) {
	var req types.SaveTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, docerr.New(docerr.ValidationError, "name and message are required"))
		return
	}
	if !templates.ValidTemplateName(req.Name) {
		respondError(c, h.logger, docerr.New(docerr.ValidationError, "invalid template name"))
		return
	}

	tmpl, err := h.store.Save(middleware.UserID(c), req.Name, req.Message, req.Description)
	if err != nil {
		respondError(c, h.logger, docerr.Wrap(docerr.Internal, "save template failed", err))
		return
	}
	c.JSON(http.StatusOK, toTemplateResponse(tmpl))
}

// ListTemplates implements GET /api/system-messages: every template the
// caller has saved, plus which one (if any) is selected.
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	userID := middleware.UserID(c)
	list, err := h.store.List(userID)
	if err != nil {
		respondError(c, h.logger, docerr.Wrap(docerr.Internal, "list templates failed", err))
		return
	}
	out := make([]types.TemplateResponse, 0, len(list))
	for _, t := range list {
		out = append(out, toTemplateResponse(t))
	}

	selectedName := ""
	if selected, ok, err := h.store.Selected(userID); err == nil && ok {
		selectedName = selected.Name
	}
	c.JSON(http.StatusOK, types.ListTemplatesResponse{Templates: out, SelectedName: selectedName})
}

// SelectTemplate implements POST /api/system-messages/select: marks a
// previously-saved template as the active one for the caller.
func (h *TemplateHandler) SelectTemplate(c *gin.Context) {
	var req types.SelectTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, docerr.New(docerr.ValidationError, "name is required"))
		return
	}
	if err := h.store.Select(middleware.UserID(c), req.Name); err != nil {
		respondError(c, h.logger, docerr.Wrap(docerr.NotFound, "template not found", err))
		return
	}
	c.JSON(http.StatusOK, types.SimpleResult{Success: true})
}

// DeleteTemplate implements POST /api/system-messages/delete.
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	var req types.DeleteTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, docerr.New(docerr.ValidationError, "name is required"))
		return
	}
	if err := h.store.Delete(middleware.UserID(c), req.Name); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			respondError(c, h.logger, docerr.New(docerr.NotFound, "template not found"))
			return
		}
		respondError(c, h.logger, docerr.Wrap(docerr.Internal, "delete template failed", err))
		return
	}
	c.JSON(http.StatusOK, types.SimpleResult{Success: true})
}

func toTemplateResponse(t templates.Template) types.TemplateResponse {
	return types.TemplateResponse{
		Name:        t.Name,
		Message:     t.Message,
		Description: t.Description,
		CreatedAt:   t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		UpdatedAt:   t.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}
