package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docrag/auth"
	"docrag/database"
	docerr "docrag/errors"
	"docrag/web/middleware"
	"docrag/web/types"
)

// AuthHandler binds spec.md §6's /api/auth/* endpoints to the Session &
// Identity component (C9). Grounded on the teacher's one-handler-per-
// resource convention (web/handlers/chat.go's NewChatHandler shape).
type AuthHandler struct {
	svc    *auth.Service
	store  *database.PostgresStore
	logger *zap.Logger
}

func NewAuthHandler(svc *auth.Service, store *database.PostgresStore, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, store: store, logger: logger}
}

// Login implements POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req types.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.LoginErrorResponse{Message: "username and password are required"})
		return
	}

	result, err := h.svc.Login(c.Request.Context(), req.Username, req.Password, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		c.JSON(docerr.HTTPStatus(err), types.LoginErrorResponse{
			Message:   err.Error(),
			ErrorCode: string(docerr.KindOf(err)),
		})
		return
	}

	middleware.SetSessionCookie(c, result.SessionID.String(), int(h.svc.TTLSeconds()))
	c.JSON(http.StatusOK, types.LoginResponse{
		Token:    result.Token,
		Username: result.Username,
		GroupID:  result.GroupID,
		UserID:   result.UserID,
	})
}

// Register implements POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req types.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.SimpleResult{Message: "username, email, and password are required"})
		return
	}

	user, err := h.svc.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, types.RegisterResponse{Username: user.Username})
}

// Logout implements POST /api/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	if sessionCookie, err := c.Cookie(middleware.SessionCookieName); err == nil && sessionCookie != "" {
		if sid, parseErr := parseUUID(sessionCookie); parseErr == nil {
			_ = h.svc.Logout(c.Request.Context(), sid)
		}
	}
	middleware.ClearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// CheckAuth implements GET /api/auth/check-auth.
func (h *AuthHandler) CheckAuth(c *gin.Context) {
	userID := middleware.UserID(c)
	isAdmin, err := h.store.IsAdmin(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, docerr.Wrap(docerr.Internal, "check admin status failed", err))
		return
	}
	c.JSON(http.StatusOK, types.CheckAuthResponse{
		Authenticated: true,
		Username:      middleware.Username(c),
		UserID:        userID,
		IsAdmin:       isAdmin,
	})
}

// ChangePassword implements POST /api/auth/change-password.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req types.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.SimpleResult{Message: "currentPassword and newPassword are required"})
		return
	}

	if err := h.svc.ChangePassword(c.Request.Context(), middleware.UserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		c.JSON(docerr.HTTPStatus(err), types.SimpleResult{Success: false, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, types.SimpleResult{Success: true, Message: "password updated"})
}
