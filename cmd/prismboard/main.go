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
	"github.com/prometheus/client_golang/prometheus"

	"github.com/prismboard/prismboard/internal/app"
	"github.com/prismboard/prismboard/internal/audit"
	audithttp "github.com/prismboard/prismboard/internal/audit/http"
	"github.com/prismboard/prismboard/internal/authz"
	"github.com/prismboard/prismboard/internal/ingest"
	ingesthttp "github.com/prismboard/prismboard/internal/ingest/http"
	"github.com/prismboard/prismboard/internal/insights"
	insightshttp "github.com/prismboard/prismboard/internal/insights/http"
	"github.com/prismboard/prismboard/internal/observability"
	"github.com/prismboard/prismboard/internal/platform/cache"
	"github.com/prismboard/prismboard/internal/platform/db"
	"github.com/prismboard/prismboard/internal/vault"
	vaulthttp "github.com/prismboard/prismboard/internal/vault/http"
	"github.com/prismboard/prismboard/internal/workspaces"
	workspacehttp "github.com/prismboard/prismboard/internal/workspaces/http"
	"github.com/prismboard/prismboard/jobs"
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

	redisClient, err := cache.NewRedis(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	store := cache.New(cache.Options{
		StaleWindow:   cfg.RoleCacheStaleWindow,
		SweepInterval: cfg.CacheSweepInterval,
	})
	defer store.Close()

	metrics.Registerer().MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "prismboard_cache_entries",
		Help: "Entries resident in the in-process cache.",
	}, func() float64 { return float64(store.Len()) }))

	recorder := audit.NewRecorder(audit.NewRepository(dbpool), logger, metrics, audit.DefaultQueueSize)
	defer recorder.Close()

	authzService := authz.NewService(authz.NewRepository(dbpool), store, recorder, metrics, logger, cfg.SuperAdmins)

	// A missing or malformed key leaves the vault fail-closed while the
	// rest of the service keeps running.
	var cipher *vault.Cipher
	if cfg.VaultKey != "" {
		key, err := vault.ParseKey(cfg.VaultKey)
		if err != nil {
			logger.Error("vault key rejected, secret storage disabled", slog.Any("error", err))
		} else {
			cipher, err = vault.NewCipher(key)
			if err != nil {
				logger.Error("vault cipher init failed, secret storage disabled", slog.Any("error", err))
			}
			vault.Wipe(key)
		}
	} else {
		logger.Warn("vault encryption key not configured, secret storage disabled")
	}
	vaultService := vault.NewService(vault.NewRepository(dbpool), authzService, cipher, recorder, metrics, logger)

	workspaceService := workspaces.NewService(workspaces.NewPGRepository(dbpool), authzService, recorder, logger)

	idempotency := ingest.NewIdempotencyStore(redisClient, cfg.IngestKeyRetention)
	ingestService := ingest.NewService(ingest.NewPGRepository(dbpool), idempotency, authzService, store, metrics, logger)

	insightsService := insights.NewService(insights.NewPGRepository(dbpool), store, authzService, metrics)

	auditService := audit.NewService(audit.NewRepository(dbpool))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		WorkspaceHandler: workspacehttp.NewHandler(logger, workspaceService, authzService),
		VaultHandler:     vaulthttp.NewHandler(logger, vaultService),
		IngestHandler:    ingesthttp.NewHandler(logger, ingestService),
		InsightsHandler:  insightshttp.NewHandler(logger, insightsService),
		AuditHandler:     audithttp.NewHandler(logger, auditService, authzService),
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
