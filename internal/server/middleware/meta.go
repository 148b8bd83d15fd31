package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	sessiondomain "task-manager/backend/internal/session/domain"
)

// RequestMeta carries per-request client attributes recorded on sessions and
// audit entries.
type RequestMeta struct {
	DeviceInfo  string
	IPAddress   string
	UserAgent   string
	SessionType string
}

// Device classifications derived from the User-Agent.
const (
	DeviceMobile  = "MOBILE"
	DeviceTablet  = "TABLET"
	DeviceDesktop = "DESKTOP"
	DeviceUnknown = "UNKNOWN"
)

// ExtractMeta derives client metadata from the request.
func ExtractMeta(c *gin.Context) RequestMeta {
	ua := c.GetHeader("User-Agent")
	device := ClassifyDevice(ua)
	sessionType := sessiondomain.SessionTypeWeb
	if device == DeviceMobile {
		sessionType = sessiondomain.SessionTypeMobile
	}
	return RequestMeta{
		DeviceInfo:  device,
		IPAddress:   ClientIP(c.Request),
		UserAgent:   ua,
		SessionType: sessionType,
	}
}

// ClientIP returns the client address, preferring proxy headers:
// X-Forwarded-For (first hop), then X-Real-IP, then the socket peer.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.Index(fwd, ","); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return strings.TrimSpace(real)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ClassifyDevice buckets a User-Agent into MOBILE, TABLET, DESKTOP, or UNKNOWN.
// Tablets are checked first: tablet agents often also contain "Mobile".
func ClassifyDevice(userAgent string) string {
	if userAgent == "" {
		return DeviceUnknown
	}
	ua := strings.ToLower(userAgent)
	if strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad") {
		return DeviceTablet
	}
	if strings.Contains(ua, "mobile") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone") {
		return DeviceMobile
	}
	return DeviceDesktop
}

// Meta stores the client address on the request context so downstream code
// (notably the audit logger) can read it without the gin context.
func Meta() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := WithClientIP(c.Request.Context(), ClientIP(c.Request))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
