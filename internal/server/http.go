// Package server assembles the HTTP API: routes, middleware, and the
// listener lifecycle.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"task-manager/backend/internal/audit"
	healthhandler "task-manager/backend/internal/health/handler"
	identityhandler "task-manager/backend/internal/identity/handler"
	identityservice "task-manager/backend/internal/identity/service"
	projecthandler "task-manager/backend/internal/project/handler"
	projectservice "task-manager/backend/internal/project/service"
	"task-manager/backend/internal/security"
	"task-manager/backend/internal/server/middleware"
	sessionhandler "task-manager/backend/internal/session/handler"
	sessionservice "task-manager/backend/internal/session/service"
	taskhandler "task-manager/backend/internal/task/handler"
	taskservice "task-manager/backend/internal/task/service"
)

// Deps holds the services the router exposes.
type Deps struct {
	Tokens   *security.TokenProvider
	Sessions *sessionservice.Service
	Auth     *identityservice.AuthService
	Projects *projectservice.Service
	Tasks    *taskservice.Service
	// AuditLogger records auth and session events. May be nil.
	AuditLogger audit.AuditLogger
	// HealthPinger is used for readiness (e.g. *sql.DB). May be nil.
	HealthPinger healthhandler.Pinger
	// HealthPolicyChecker is used for readiness (e.g. OPA evaluator). May be nil.
	HealthPolicyChecker healthhandler.PolicyChecker
}

// NewRouter builds the full route table:
//
//	/healthz, /readyz                        liveness and readiness
//	/api/v1/auth/{register,login,refresh}    public auth flows
//	/api/v1/auth/{logout,logout-all,me}      session-bound auth flows
//	/api/v1/sessions[...]                    the caller's sessions
//	/api/v1/projects[...]                    projects, members, tasks
//
// Everything under /api/v1 except the public auth routes requires a Bearer
// access credential whose session is still live.
func NewRouter(deps Deps) *gin.Engine {
	auditLogger := deps.AuditLogger
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Meta())

	healthhandler.NewHandler(deps.HealthPinger, deps.HealthPolicyChecker).RegisterRoutes(r)

	authHandler := identityhandler.NewHandler(deps.Auth, auditLogger)

	public := r.Group("/api/v1")
	authHandler.RegisterPublicRoutes(public)

	protected := r.Group("/api/v1")
	protected.Use(middleware.RequireAuth(deps.Tokens, deps.Sessions))
	authHandler.RegisterProtectedRoutes(protected)
	sessionhandler.NewHandler(deps.Sessions, auditLogger).RegisterRoutes(protected)

	// Project and task mutations are audited by route; their handlers do not
	// log events themselves.
	resources := protected.Group("")
	resources.Use(middleware.Audit(auditLogger))
	projecthandler.NewHandler(deps.Projects).RegisterRoutes(resources)
	taskhandler.NewHandler(deps.Tasks).RegisterRoutes(resources)

	return r
}

// New returns an http.Server for the router with sane timeouts.
func New(addr string, router *gin.Engine) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Shutdown drains the server with a bounded grace period.
func Shutdown(srv *http.Server, grace time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return srv.Shutdown(ctx)
}
