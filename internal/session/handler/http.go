// Package handler exposes a user's own sessions over HTTP: list the live
// ones and revoke one by id.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"task-manager/backend/internal/audit"
	"task-manager/backend/internal/server/middleware"
	"task-manager/backend/internal/session/domain"
	"task-manager/backend/internal/session/service"
)

// SessionAPI is the slice of the session lifecycle service used here.
type SessionAPI interface {
	ListActiveSessions(ctx context.Context, ownerID string) ([]*domain.Session, error)
	ActiveSessionCount(ctx context.Context, ownerID string) (int64, error)
	Revoke(ctx context.Context, sessionID, reason string) error
}

// Handler serves the session routes.
type Handler struct {
	sessions    SessionAPI
	auditLogger audit.AuditLogger
}

// NewHandler returns a session Handler. auditLogger may be nil.
func NewHandler(sessions SessionAPI, auditLogger audit.AuditLogger) *Handler {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	return &Handler{sessions: sessions, auditLogger: auditLogger}
}

// RegisterRoutes mounts the session routes on g. All routes require auth.
func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/sessions", h.list)
	g.DELETE("/sessions/:id", h.revoke)
}

type sessionResponse struct {
	ID               string     `json:"id"`
	DeviceInfo       string     `json:"device_info"`
	IPAddress        string     `json:"ip_address"`
	UserAgent        string     `json:"user_agent"`
	SessionType      string     `json:"session_type"`
	Current          bool       `json:"current"`
	CreatedAt        time.Time  `json:"created_at"`
	LastAccessedAt   time.Time  `json:"last_accessed_at"`
	AccessExpiresAt  time.Time  `json:"access_expires_at"`
	RefreshExpiresAt time.Time  `json:"refresh_expires_at"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
}

// list returns the caller's non-revoked sessions, newest first. Sessions past
// their access horizon are included; only revocation removes them.
func (h *Handler) list(c *gin.Context) {
	userID, _ := middleware.GetUserID(c.Request.Context())
	currentSession, _ := middleware.GetSessionID(c.Request.Context())
	list, err := h.sessions.ListActiveSessions(c.Request.Context(), userID)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	out := make([]sessionResponse, len(list))
	for i, s := range list {
		out[i] = sessionResponse{
			ID:               s.ID,
			DeviceInfo:       s.DeviceInfo,
			IPAddress:        s.IPAddress,
			UserAgent:        s.UserAgent,
			SessionType:      s.SessionType,
			Current:          s.ID == currentSession,
			CreatedAt:        s.CreatedAt,
			LastAccessedAt:   s.LastAccessedAt,
			AccessExpiresAt:  s.AccessExpiresAt,
			RefreshExpiresAt: s.RefreshExpiresAt,
			RevokedAt:        s.RevokedAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out, "count": len(out)})
}

// revoke revokes one of the caller's sessions. The id must belong to the
// caller; other users' session ids are reported as not found.
func (h *Handler) revoke(c *gin.Context) {
	userID, _ := middleware.GetUserID(c.Request.Context())
	sessionID := c.Param("id")

	list, err := h.sessions.ListActiveSessions(c.Request.Context(), userID)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	owned := false
	for _, s := range list {
		if s.ID == sessionID {
			owned = true
			break
		}
	}
	if !owned {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if err := h.sessions.Revoke(c.Request.Context(), sessionID, "User revoked session"); err != nil {
		writeSessionError(c, err)
		return
	}
	h.auditLogger.LogEvent(c.Request.Context(), userID, "revoke", "session", sessionID)
	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}

func writeSessionError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrStoreUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable, retry"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "session operation failed"})
}
