package middleware

import (
	"github.com/gin-gonic/gin"

	"task-manager/backend/internal/audit"
)

// Audit records one audit entry per mutating request after the handler runs.
// Reads are not audited; only successful mutations (2xx) are recorded.
func Audit(logger audit.AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if c.Request.Method == "GET" || c.Request.Method == "HEAD" || c.Request.Method == "OPTIONS" {
			return
		}
		status := c.Writer.Status()
		if status < 200 || status > 299 {
			return
		}
		userID, _ := GetUserID(c.Request.Context())
		ar := audit.ParseRoute(c.Request.Method, c.FullPath())
		logger.LogEvent(c.Request.Context(), userID, ar.Action, ar.Resource, "")
	}
}
