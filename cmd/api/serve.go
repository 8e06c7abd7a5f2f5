package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rag-dashboard/backend/internal/api"
	"github.com/rag-dashboard/backend/internal/cache/memory"
	"github.com/rag-dashboard/backend/internal/cache/redis"
	"github.com/rag-dashboard/backend/internal/catalog"
	"github.com/rag-dashboard/backend/internal/compare"
	"github.com/rag-dashboard/backend/internal/coverage"
	"github.com/rag-dashboard/backend/internal/ingestion"
	"github.com/rag-dashboard/backend/internal/metrics"
	"github.com/rag-dashboard/backend/internal/middleware/ratelimit"
	"github.com/rag-dashboard/backend/internal/proxy"
	"github.com/rag-dashboard/backend/internal/ragtests"
	"github.com/rag-dashboard/backend/internal/reports"
	"github.com/rag-dashboard/backend/internal/storage/sqlite"
	"github.com/rag-dashboard/backend/internal/watcher"
	"github.com/rag-dashboard/backend/pkg/circuitbreaker"
	"github.com/rag-dashboard/backend/pkg/config"
	appLogger "github.com/rag-dashboard/backend/pkg/logger"
	"github.com/rag-dashboard/backend/pkg/retry"
)

// serve runs the dashboard API until SIGINT or SIGTERM.
func serve(cfg *config.Config) error {
	appLogger.Info("Starting RAG evaluation dashboard",
		zap.String("reports_dir", cfg.Data.ReportsDir),
		zap.String("coverage_dir", cfg.Data.CoverageDir),
	)

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, storeType := newReportStore(cfg)
	if closer, ok := store.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	extractor := ingestion.NewExtractor(ingestion.WithMaxAnswerLength(cfg.Extractor.MaxAnswerLength))
	repo := reports.NewRepository(cfg.Data.ReportsDir, extractor, store, storeType)
	cat := catalog.New(repo, cfg.Catalog.ParseWorkers)

	datasets := coverage.NewDatasets(cfg.Data.CoverageDir)

	deps := api.Deps{
		Config:     cfg,
		Repository: repo,
		Catalog:    cat,
		Compare:    compare.NewEngine(repo),
		Coverage:   coverage.NewCoverage(datasets),
		Stability:  coverage.NewStability(datasets),
		RAGTests:   ragtests.NewStore(cfg.Data.RagResultsDir, cfg.Data.RagDynamicDir),
		AccessLog:  true,
	}

	if cfg.SQLite.Path != "" {
		sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
		if err != nil {
			appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
		}
		defer sqliteClient.Close()

		err = sqliteClient.InitSchema()
		if err != nil {
			appLogger.Fatal("Failed to initialize schema", zap.Error(err))
		}
		deps.Journal = sqliteClient
	} else {
		appLogger.Info("Interaction journal disabled")
	}

	breakerCfg := circuitbreaker.Config{
		FailureThreshold: 3,
		Timeout:          30 * time.Second,
	}
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = 2
	deps.Dialer = proxy.NewDialer(proxy.DialerConfig{
		Addr:        net.JoinHostPort(cfg.Proxy.Host, strconv.Itoa(cfg.Proxy.Port)),
		DialTimeout: time.Duration(cfg.Proxy.DialTimeoutSec) * time.Second,
		Retry:       retryCfg,
		Breaker:     breakerCfg,
	})

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
		Logger:            appLogger.GetLogger(),
	})
	defer limiter.Stop()
	deps.RateLimiter = limiter

	if cfg.Catalog.Watch {
		debounce := time.Duration(cfg.Catalog.WatchDebounceMs) * time.Millisecond
		w, err := watcher.New(cfg.Data.ReportsDir, debounce, func(ctx context.Context) {
			cat.Invalidate()
			if err := repo.Purge(ctx); err != nil {
				appLogger.Warn("Failed to purge parse cache", zap.Error(err))
			}
		})
		if err != nil {
			appLogger.Warn("Reports directory watcher disabled", zap.Error(err))
		} else {
			go w.Run(ctx)
		}
	}

	go func() {
		snap := cat.Snapshot(ctx)
		appLogger.Info("Catalog warmed", zap.Int("reports", len(snap.Reports)))
	}()

	app := api.NewApp(ctx, deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()

	appLogger.Info("Server shutting down gracefully...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
	return nil
}

// newReportStore picks the parse-result store, falling back to memory when
// Redis cannot be reached.
func newReportStore(cfg *config.Config) (reports.Store, string) {
	if cfg.Cache.Backend != "redis" {
		return memory.NewStore(), "memory"
	}

	client, err := redis.NewClient(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		time.Duration(cfg.Cache.TTLSeconds)*time.Second,
	)
	if err != nil {
		appLogger.Warn("Redis unavailable, using in-memory parse cache", zap.Error(err))
		return memory.NewStore(), "memory"
	}
	return client, "redis"
}
