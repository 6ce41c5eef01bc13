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

	"github.com/r2suporte/interalpha/internal/app"
	"github.com/r2suporte/interalpha/internal/audit"
	"github.com/r2suporte/interalpha/internal/authz"
	authzhttp "github.com/r2suporte/interalpha/internal/authz/http"
	"github.com/r2suporte/interalpha/internal/custperm"
	"github.com/r2suporte/interalpha/internal/directory"
	"github.com/r2suporte/interalpha/internal/observability"
	"github.com/r2suporte/interalpha/internal/platform/cache"
	"github.com/r2suporte/interalpha/internal/platform/db"
	"github.com/r2suporte/interalpha/internal/ratelimit"
	"github.com/r2suporte/interalpha/jobs"
)

func main() {
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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()

	registry := authz.NewRegistry()

	dir := directory.NewCached(directory.NewRepository(dbpool), redisClient, cfg.DirectoryCacheTTL, logger)
	customStore := custperm.NewCached(custperm.NewRepository(dbpool), redisClient, cfg.CustomPermCacheTTL, logger)
	auditStore := audit.NewStore(dbpool)

	var auditSink authz.Sink
	if cfg.AuditSink == "buffer" {
		buffered := audit.NewBufferedSink(auditStore, cfg.AuditBufferSize, logger)
		defer buffered.Close()
		auditSink = buffered
	} else {
		auditSink = jobs.NewAuditSink(asynqClient, logger)
	}

	engine := authz.NewEngine(authz.EngineConfig{
		Registry:  registry,
		Directory: dir,
		Store:     customStore,
		Sink:      auditSink,
		Hours:     authz.BusinessHours{Start: cfg.BusinessHoursStart, End: cfg.BusinessHoursEnd},
		Logger:    logger,
	})
	hierarchy := authz.NewHierarchyChecker(registry, dir, auditSink, logger)
	limiter := ratelimit.New(redisClient, registry, cfg.RateLimitFailOpen, logger)
	metrics := observability.NewMetrics()

	handler := authzhttp.NewHandler(authzhttp.HandlerConfig{
		Logger:    logger,
		Engine:    engine,
		Hierarchy: hierarchy,
		Limiter:   limiter,
		Admin:     customStore,
		Timeline:  audit.NewService(auditStore),
		Metrics:   metrics,
	})

	router := app.NewRouter(app.RouterConfig{
		Logger:  logger,
		Config:  cfg,
		Handler: handler,
		Metrics: metrics,
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
