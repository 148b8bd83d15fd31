package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"task-manager/backend/internal/security"
	sessionservice "task-manager/backend/internal/session/service"
)

const bearerPrefix = "bearer "

// SessionValidator reports whether a session may be used for access.
type SessionValidator interface {
	ValidateAccess(ctx context.Context, sessionID string) (bool, error)
}

// RequireAuth validates the Bearer access credential and the session behind
// it, then stores the caller's identity on the request context. The credential
// alone is not enough: a verified signature whose session has been revoked is
// rejected, so revocation takes effect before the credential expires.
//
// A transient session store failure returns 503, never 401; the client should
// retry rather than re-authenticate.
func RequireAuth(tokens *security.TokenProvider, sessions SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c.GetHeader("Authorization"))
		if token == "" {
			unauthorized(c)
			return
		}
		claims, err := tokens.VerifyAccess(token)
		if err != nil {
			unauthorized(c)
			return
		}
		ok, err := sessions.ValidateAccess(c.Request.Context(), claims.SessionID)
		if err != nil {
			if errors.Is(err, sessionservice.ErrStoreUnavailable) {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable, retry"})
				return
			}
			unauthorized(c)
			return
		}
		if !ok {
			unauthorized(c)
			return
		}
		ctx := WithIdentity(c.Request.Context(), claims.Subject, claims.SessionID, claims.Roles)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid authorization"})
}

// extractBearer returns the Bearer token from an Authorization header value,
// or "" if missing or malformed.
func extractBearer(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
