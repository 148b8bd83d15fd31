package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"task-manager/backend/internal/audit"
	auditrepo "task-manager/backend/internal/audit/repository"
	"task-manager/backend/internal/config"
	"task-manager/backend/internal/db"
	identityservice "task-manager/backend/internal/identity/service"
	"task-manager/backend/internal/policy/engine"
	projectrepo "task-manager/backend/internal/project/repository"
	projectservice "task-manager/backend/internal/project/service"
	"task-manager/backend/internal/security"
	"task-manager/backend/internal/server"
	"task-manager/backend/internal/server/middleware"
	"task-manager/backend/internal/session/janitor"
	sessionrepo "task-manager/backend/internal/session/repository"
	sessionservice "task-manager/backend/internal/session/service"
	taskrepo "task-manager/backend/internal/task/repository"
	taskservice "task-manager/backend/internal/task/service"
	"task-manager/backend/internal/telemetry/otel"
	userrepo "task-manager/backend/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "taskman", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer database.Close()

	privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("JWT_PRIVATE_KEY: %v", err)
	}
	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("JWT_PUBLIC_KEY: %v", err)
	}
	tokens := security.NewTokenProvider(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL())
	if cfg.JWTPreviousPublicKey != "" {
		previousKey, err := security.ParsePublicKey(cfg.JWTPreviousPublicKey)
		if err != nil {
			log.Fatalf("JWT_PREVIOUS_PUBLIC_KEY: %v", err)
		}
		tokens = tokens.WithPreviousPublicKey(previousKey)
	}
	hasher := security.NewHasher(cfg.BcryptCost)

	users := userrepo.NewPostgresRepository(database)
	sessions := sessionservice.NewService(
		sessionrepo.NewPostgresRepository(database),
		cfg.AccessTTL(), cfg.RefreshTTL(), cfg.StoreOpTimeout(),
	)
	auth := identityservice.NewAuthService(users, sessions, hasher, tokens)

	evaluator, err := engine.NewOPAEvaluator(ctx)
	if err != nil {
		log.Fatalf("policy engine: %v", err)
	}
	projects := projectservice.NewService(projectrepo.NewPostgresRepository(database), users, evaluator)
	tasks := taskservice.NewService(taskrepo.NewPostgresRepository(database), projects)

	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(database), middleware.GetClientIP)

	go janitor.New(sessions, cfg.SweepEvery()).WithAuditLogger(auditLogger).Run(ctx)

	router := server.NewRouter(server.Deps{
		Tokens:              tokens,
		Sessions:            sessions,
		Auth:                auth,
		Projects:            projects,
		Tasks:               tasks,
		AuditLogger:         auditLogger,
		HealthPinger:        database,
		HealthPolicyChecker: evaluator,
	})
	srv := server.New(cfg.HTTPAddr, router)

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()
	stop()

	log.Println("shutting down HTTP server...")
	if err := server.Shutdown(srv, 15*time.Second); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
