// Package handler exposes the auth flows over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"task-manager/backend/internal/audit"
	"task-manager/backend/internal/identity/service"
	"task-manager/backend/internal/server/middleware"
	sessionservice "task-manager/backend/internal/session/service"
	userdomain "task-manager/backend/internal/user/domain"
)

// AuthAPI is the slice of the auth service used by this handler.
type AuthAPI interface {
	Register(ctx context.Context, firstName, lastName, email, password string) (*userdomain.User, error)
	Login(ctx context.Context, email, password string, meta service.ClientMeta) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*service.AuthResult, error)
	Logout(ctx context.Context, sessionID string) error
	LogoutAll(ctx context.Context, userID string) error
	Me(ctx context.Context, userID string) (*userdomain.User, []string, error)
}

// Handler serves the auth routes.
type Handler struct {
	auth        AuthAPI
	auditLogger audit.AuditLogger
}

// NewHandler returns an auth Handler. auditLogger may be nil.
func NewHandler(auth AuthAPI, auditLogger audit.AuditLogger) *Handler {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	return &Handler{auth: auth, auditLogger: auditLogger}
}

// RegisterPublicRoutes mounts the unauthenticated auth routes on g.
func (h *Handler) RegisterPublicRoutes(g *gin.RouterGroup) {
	g.POST("/auth/register", h.register)
	g.POST("/auth/login", h.login)
	g.POST("/auth/refresh", h.refresh)
}

// RegisterProtectedRoutes mounts the auth routes that need a valid session.
func (h *Handler) RegisterProtectedRoutes(g *gin.RouterGroup) {
	g.POST("/auth/logout", h.logout)
	g.POST("/auth/logout-all", h.logoutAll)
	g.GET("/auth/me", h.me)
}

type registerRequest struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
}

type userResponse struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type tokenResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	user, err := h.auth.Register(c.Request.Context(), req.FirstName, req.LastName, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrEmailAlreadyRegistered) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		if errors.Is(err, sessionservice.ErrStoreUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable, retry"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.auditLogger.LogEvent(c.Request.Context(), user.ID, "register", "auth", user.Email)
	c.JSON(http.StatusCreated, userToResponse(user, nil))
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	meta := middleware.ExtractMeta(c)
	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password, service.ClientMeta{
		DeviceInfo:  meta.DeviceInfo,
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
		SessionType: meta.SessionType,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.auditLogger.LogEvent(c.Request.Context(), "", "login_failed", "auth", req.Email)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if errors.Is(err, sessionservice.ErrStoreUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable, retry"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	h.auditLogger.LogEvent(c.Request.Context(), res.UserID, "login", "auth", res.SessionID)
	c.JSON(http.StatusOK, authResultToResponse(res))
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h *Handler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	res, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefreshToken) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
			return
		}
		if errors.Is(err, sessionservice.ErrStoreUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable, retry"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh failed"})
		return
	}
	h.auditLogger.LogEvent(c.Request.Context(), res.UserID, "refresh", "auth", res.SessionID)
	c.JSON(http.StatusOK, authResultToResponse(res))
}

func (h *Handler) logout(c *gin.Context) {
	sessionID, _ := middleware.GetSessionID(c.Request.Context())
	userID, _ := middleware.GetUserID(c.Request.Context())
	if err := h.auth.Logout(c.Request.Context(), sessionID); err != nil {
		if errors.Is(err, sessionservice.ErrStoreUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable, retry"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	h.auditLogger.LogEvent(c.Request.Context(), userID, "logout", "auth", sessionID)
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

func (h *Handler) logoutAll(c *gin.Context) {
	userID, _ := middleware.GetUserID(c.Request.Context())
	if err := h.auth.LogoutAll(c.Request.Context(), userID); err != nil {
		if errors.Is(err, sessionservice.ErrStoreUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable, retry"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	h.auditLogger.LogEvent(c.Request.Context(), userID, "logout_all", "auth", "")
	c.JSON(http.StatusOK, gin.H{"status": "logged_out_everywhere"})
}

func (h *Handler) me(c *gin.Context) {
	userID, _ := middleware.GetUserID(c.Request.Context())
	user, roles, err := h.auth.Me(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, userToResponse(user, roles))
}

func userToResponse(u *userdomain.User, roles []string) userResponse {
	return userResponse{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Roles:     roles,
		CreatedAt: u.CreatedAt,
	}
}

func authResultToResponse(res *service.AuthResult) tokenResponse {
	return tokenResponse{
		AccessToken:      res.AccessToken,
		RefreshToken:     res.RefreshToken,
		TokenType:        "Bearer",
		AccessExpiresAt:  res.AccessExpiresAt,
		RefreshExpiresAt: res.RefreshExpiresAt,
	}
}
