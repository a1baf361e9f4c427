package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/branchline/branchline/internal/app"
	"github.com/branchline/branchline/internal/audit"
	audithttp "github.com/branchline/branchline/internal/audit/http"
	"github.com/branchline/branchline/internal/auth"
	"github.com/branchline/branchline/internal/authz"
	"github.com/branchline/branchline/internal/branches"
	"github.com/branchline/branchline/internal/impersonate"
	"github.com/branchline/branchline/internal/observability"
	"github.com/branchline/branchline/internal/platform/db"
	"github.com/branchline/branchline/internal/shared"
	"github.com/branchline/branchline/internal/users"
	"github.com/branchline/branchline/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "branchline_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	auditLogger := audit.NewLogger()
	authzRepo := authz.NewRepository(dbpool)
	authzService := authz.NewService(authzRepo, authz.DefaultCatalog(), auditLogger)
	authzMiddleware := authz.Middleware{Service: authzService, Logger: logger}
	authzHandler := authz.NewHandler(logger, authzService, idempotencyStore, authzMiddleware)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService)

	branchesRepo := branches.NewRepository(dbpool)
	branchesService := branches.NewService(branchesRepo, authzService)
	branchesHandler := branches.NewHandler(logger, branchesService)

	impersonationManager := impersonate.NewManager(redisClient, authzService, usersService, cfg.ImpersonationTTL)
	impersonateResolver := impersonate.Middleware{Manager: impersonationManager, Logger: logger}
	impersonateHandler := impersonate.NewHandler(logger, impersonationManager)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager, impersonationManager)

	auditRepo := audit.NewRepository(dbpool)
	auditService := audit.NewService(auditRepo)
	auditHandler := audithttp.NewHandler(logger, auditService, authzMiddleware.RequireBrandWide())

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		SessionManager:      sessionManager,
		CSRFManager:         csrfManager,
		Metrics:             metrics,
		AuthHandler:         authHandler,
		AuthzHandler:        authzHandler,
		AuthzMiddleware:     authzMiddleware,
		UsersHandler:        usersHandler,
		BranchesHandler:     branchesHandler,
		AuditHandler:        auditHandler,
		ImpersonateHandler:  impersonateHandler,
		ImpersonateResolver: impersonateResolver,
		JobsHandler:         jobsHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
