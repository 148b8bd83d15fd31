// Package handler implements readiness/liveness for Kubernetes, load
// balancers, and CI.
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pinger checks a backing store, e.g. *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks the policy engine, e.g. the OPA evaluator.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler serves the health routes.
type Handler struct {
	pinger Pinger
	policy PolicyChecker
}

// NewHandler returns a health Handler. Either dependency may be nil; its
// check is then skipped.
func NewHandler(pinger Pinger, policy PolicyChecker) *Handler {
	return &Handler{pinger: pinger, policy: policy}
}

// RegisterRoutes mounts the health routes. They are unauthenticated.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.live)
	r.GET("/readyz", h.ready)
}

// live reports process liveness only.
func (h *Handler) live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ready reports readiness: the database answers a ping and the policy engine
// evaluates.
func (h *Handler) ready(c *gin.Context) {
	ctx := c.Request.Context()
	checks := gin.H{}
	healthy := true
	if h.pinger != nil {
		if err := h.pinger.PingContext(ctx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}
	if h.policy != nil {
		if err := h.policy.HealthCheck(ctx); err != nil {
			checks["policy"] = err.Error()
			healthy = false
		} else {
			checks["policy"] = "ok"
		}
	}
	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": checks})
}
