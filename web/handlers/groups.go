package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docrag/database"
	docerr "docrag/errors"
	"docrag/web/types"
)

// GroupsHandler binds spec.md §6's group-management endpoints, all
// admin-only (enforced by middleware.RequireAdmin in the route table).
type GroupsHandler struct {
	store  *database.PostgresStore
	logger *zap.Logger
}

func NewGroupsHandler(store *database.PostgresStore, logger *zap.Logger) *GroupsHandler {
	return &GroupsHandler{store: store, logger: logger}
}

// ListGroups implements GET /api/groups.
func (h *GroupsHandler) ListGroups(c *gin.Context) {
	groups, err := h.store.ListGroups(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, docerr.Wrap(docerr.Internal, "list groups failed", err))
		return
	}
	out := make([]types.GroupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, types.GroupResponse{ID: g.ID, Name: g.Name, Description: g.Description})
	}
	c.JSON(http.StatusOK, gin.H{"groups": out})
}

// CreateGroup implements POST /api/groups/create.
func (h *GroupsHandler) CreateGroup(c *gin.Context) {
	var req types.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.SimpleResult{Message: "name is required"})
		return
	}
	group, err := h.store.CreateGroup(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		respondError(c, h.logger, docerr.Wrap(docerr.Conflict, "group name already exists", err))
		return
	}
	c.JSON(http.StatusCreated, types.GroupResponse{ID: group.ID, Name: group.Name, Description: group.Description})
}

// UpdateGroup implements POST /api/groups/update.
func (h *GroupsHandler) UpdateGroup(c *gin.Context) {
	var req types.UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.SimpleResult{Message: "id and name are required"})
		return
	}
	if err := h.store.UpdateGroup(c.Request.Context(), req.ID, req.Name, req.Description); err != nil {
		respondError(c, h.logger, docerr.Wrap(docerr.Internal, "update group failed", err))
		return
	}
	c.JSON(http.StatusOK, types.SimpleResult{Success: true})
}

// DeleteGroup implements POST /api/groups/delete.
func (h *GroupsHandler) DeleteGroup(c *gin.Context) {
	var req types.DeleteGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.SimpleResult{Message: "id is required"})
		return
	}
	if req.ID == database.AdminGroupID {
		c.JSON(http.StatusBadRequest, types.SimpleResult{Message: "the admin group cannot be deleted"})
		return
	}
	if err := h.store.DeleteGroup(c.Request.Context(), req.ID); err != nil {
		respondError(c, h.logger, docerr.Wrap(docerr.Internal, "delete group failed", err))
		return
	}
	c.JSON(http.StatusOK, types.SimpleResult{Success: true})
}

// GroupUsers implements POST /api/groups/groupusers.
func (h *GroupsHandler) GroupUsers(c *gin.Context) {
	var req types.GroupUsersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.SimpleResult{Message: "group_id is required"})
		return
	}
	users, err := h.store.GroupUsers(c.Request.Context(), req.GroupID)
	if err != nil {
		respondError(c, h.logger, docerr.Wrap(docerr.Internal, "list group users failed", err))
		return
	}
	out := make([]gin.H, 0, len(users))
	for _, u := range users {
		out = append(out, gin.H{"user_id": u.ID, "username": u.Username, "email": u.Email, "is_active": u.IsActive})
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

// UserGroupList implements POST /api/users/grouplist.
func (h *GroupsHandler) UserGroupList(c *gin.Context) {
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.SimpleResult{Message: "user_id is required"})
		return
	}
	groupIDs, err := h.store.UserGroupList(c.Request.Context(), req.UserID)
	if err != nil {
		respondError(c, h.logger, docerr.Wrap(docerr.Internal, "list user groups failed", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"group_ids": groupIDs})
}

// SaveGroups implements POST /api/users/savegroups.
func (h *GroupsHandler) SaveGroups(c *gin.Context) {
	var req types.SaveGroupsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.SimpleResult{Message: "user_id is required"})
		return
	}
	if err := h.store.SaveGroups(c.Request.Context(), req.UserID, req.GroupIDs); err != nil {
		respondError(c, h.logger, docerr.Wrap(docerr.Internal, "save groups failed", err))
		return
	}
	c.JSON(http.StatusOK, types.SimpleResult{Success: true})
}

// AssignGroup implements POST /api/users/assigngroup.
func (h *GroupsHandler) AssignGroup(c *gin.Context) {
	var req types.AssignGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.SimpleResult{Message: "user_id and group_id are required"})
		return
	}
	if err := h.store.AssignGroup(c.Request.Context(), req.UserID, req.GroupID); err != nil {
		respondError(c, h.logger, docerr.Wrap(docerr.Internal, "assign group failed", err))
		return
	}
	c.JSON(http.StatusOK, types.SimpleResult{Success: true})
}

// RemoveGroup implements DELETE /api/users/deletegroup.
func (h *GroupsHandler) RemoveGroup(c *gin.Context) {
	var req types.AssignGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.SimpleResult{Message: "user_id and group_id are required"})
		return
	}
	if err := h.store.RemoveGroup(c.Request.Context(), req.UserID, req.GroupID); err != nil {
		respondError(c, h.logger, docerr.Wrap(docerr.Internal, "remove group failed", err))
		return
	}
	c.JSON(http.StatusOK, types.SimpleResult{Success: true})
}
