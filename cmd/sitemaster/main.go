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

	"github.com/sitemaster-erp/sitemaster/internal/app"
	"github.com/sitemaster-erp/sitemaster/internal/audit"
	"github.com/sitemaster-erp/sitemaster/internal/dashboard"
	"github.com/sitemaster-erp/sitemaster/internal/finance"
	"github.com/sitemaster-erp/sitemaster/internal/inventory"
	"github.com/sitemaster-erp/sitemaster/internal/labor"
	"github.com/sitemaster-erp/sitemaster/internal/notify"
	"github.com/sitemaster-erp/sitemaster/internal/observability"
	"github.com/sitemaster-erp/sitemaster/internal/platform/cache"
	"github.com/sitemaster-erp/sitemaster/internal/platform/db"
	"github.com/sitemaster-erp/sitemaster/internal/project"
	"github.com/sitemaster-erp/sitemaster/internal/rbac"
	"github.com/sitemaster-erp/sitemaster/internal/shared"
	"github.com/sitemaster-erp/sitemaster/internal/users"
	"github.com/sitemaster-erp/sitemaster/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	approvalRecorder := shared.NewApprovalRecorder(pool, logger)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	dispatcher := notify.NewDispatcher(redisClient, logger)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger, dispatcher, idempotencyStore, logger)

	financeRepo := finance.NewRepository(pool)
	financeService := finance.NewService(financeRepo, auditLogger, dispatcher, approvalRecorder, logger)

	projectRepo := project.NewRepository(pool)
	projectService := project.NewService(projectRepo, auditLogger, dispatcher, logger)

	laborRepo := labor.NewRepository(pool)
	laborService := labor.NewService(laborRepo, auditLogger, logger)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, auditLogger, logger)

	rbacService := rbac.NewService(pool)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	auditService := audit.NewService(audit.NewRepository(pool))

	dashboardCache := dashboard.NewCache(redisClient, cfg.DashboardCacheTTL)
	dashboardService := dashboard.NewService(dashboard.NewRepository(pool), dashboardCache, logger)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		InventoryHandler: inventory.NewHandler(logger, inventoryService, rbacMiddleware),
		FinanceHandler:   finance.NewHandler(logger, financeService, rbacMiddleware),
		ProjectHandler:   project.NewHandler(logger, projectService, rbacMiddleware),
		LaborHandler:     labor.NewHandler(logger, laborService, rbacMiddleware),
		UsersHandler:     users.NewHandler(logger, usersService, rbacMiddleware),
		RBACHandler:      rbac.NewHandler(logger, rbacService, rbacMiddleware),
		AuditHandler:     audit.NewHandler(logger, auditService, rbacMiddleware),
		DashboardHandler: dashboard.NewHandler(logger, dashboardService, rbacMiddleware),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
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
