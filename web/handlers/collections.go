package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docrag/acl"
	"docrag/database"
	docerr "docrag/errors"
	"docrag/web/middleware"
	"docrag/web/types"
)

// collectionNameRule is surfaced verbatim on a 400 so callers can see
// exactly why a name was rejected, per spec.md §6's create-collection
// contract ("400 with the full naming-rule text").
const collectionNameRule = "collection name must match ^[A-Za-z0-9][A-Za-z0-9_-]{1,61}[A-Za-z0-9]$, must not look like an IPv4 address, and must not contain consecutive dots"

// CollectionsHandler binds spec.md §6's collection-management endpoints to
// the Vector Store (C3) and ACL Engine (C8).
type CollectionsHandler struct {
	store  *database.PostgresStore
	acl    *acl.Engine
	logger *zap.Logger
}

func NewCollectionsHandler(store *database.PostgresStore, aclEngine *acl.Engine, logger *zap.Logger) *CollectionsHandler {
	return &CollectionsHandler{store: store, acl: aclEngine, logger: logger}
}

// Create implements POST /api/create-collection.
func (h *CollectionsHandler) Create(c *gin.Context) {
	var req types.CreateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": collectionNameRule})
		return
	}

	_, err := h.store.CreateCollection(c.Request.Context(), req.Name, middleware.UserID(c))
	switch {
	case errors.Is(err, database.ErrInvalidName):
		c.JSON(http.StatusBadRequest, gin.H{"message": collectionNameRule})
	case errors.Is(err, database.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"message": "a collection with that name already exists"})
	case err != nil:
		respondError(c, h.logger, docerr.Wrap(docerr.Internal, "create collection failed", err))
	default:
		c.JSON(http.StatusCreated, gin.H{"message": "collection created"})
	}
}

// List implements GET /api/list-collections.
func (h *CollectionsHandler) List(c *gin.Context) {
	collections, err := h.store.ListCollections(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, docerr.Wrap(docerr.Internal, "list collections failed", err))
		return
	}
	names := make([]string, 0, len(collections))
	for _, col := range collections {
		names = append(names, col.Name)
	}
	c.JSON(http.StatusOK, types.ListCollectionsResponse{Collections: names})
}

// ListForUser implements GET /api/collections, returning only collections
// with effective read access and the caller's permissions on each, per
// spec.md §4.3's list_collections_for_user. The user is the bearer token's
// caller; a user_id query parameter is not read.
func (h *CollectionsHandler) ListForUser(c *gin.Context) {
	userID := middleware.UserID(c)

	accessible, err := h.acl.AccessibleCollections(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, docerr.Wrap(docerr.Internal, "list accessible collections failed", err))
		return
	}

	out := make([]types.CollectionPermissionView, 0, len(accessible))
	for _, col := range accessible {
		eff, err := h.acl.Effective(c.Request.Context(), userID, col)
		if err != nil {
			respondError(c, h.logger, docerr.Wrap(docerr.Internal, "compute effective permission failed", err))
			return
		}
		out = append(out, types.CollectionPermissionView{
			Name:      col.Name,
			CanRead:   eff.CanRead,
			CanWrite:  eff.CanWrite,
			CanDelete: eff.CanDelete,
		})
	}
	c.JSON(http.StatusOK, gin.H{"collections": out})
}

// Delete implements POST /api/delete-collection.
func (h *CollectionsHandler) Delete(c *gin.Context) {
	var req types.DeleteCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "name is required"})
		return
	}

	col, err := h.store.GetCollectionByName(c.Request.Context(), req.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, h.logger, docerr.New(docerr.NotFound, "collection not found"))
			return
		}
		respondError(c, h.logger, docerr.Wrap(docerr.Internal, "lookup collection failed", err))
		return
	}

	allowed, err := h.acl.Check(c.Request.Context(), middleware.UserID(c), col, "delete")
	if err != nil {
		respondError(c, h.logger, docerr.Wrap(docerr.Internal, "check delete permission failed", err))
		return
	}
	if !allowed {
		respondError(c, h.logger, docerr.New(docerr.Forbidden, "you do not have delete access to this collection"))
		return
	}

	if err := h.store.DeleteCollection(c.Request.Context(), req.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, h.logger, docerr.New(docerr.NotFound, "collection not found"))
			return
		}
		respondError(c, h.logger, docerr.Wrap(docerr.Internal, "delete collection failed", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "collection deleted"})
}
