package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bisqwatch/bisqwatch-backend/internal/api"
	"github.com/bisqwatch/bisqwatch-backend/internal/config"
	"github.com/bisqwatch/bisqwatch-backend/internal/jobs"
	"github.com/bisqwatch/bisqwatch-backend/internal/log"
	"github.com/bisqwatch/bisqwatch-backend/internal/market"
	"github.com/bisqwatch/bisqwatch-backend/internal/metrics"
	"github.com/bisqwatch/bisqwatch-backend/internal/offers/bisq"
	"github.com/bisqwatch/bisqwatch-backend/internal/prices/kraken"
	"github.com/bisqwatch/bisqwatch-backend/internal/query"
	"github.com/bisqwatch/bisqwatch-backend/internal/stats"
	"github.com/bisqwatch/bisqwatch-backend/pkg/kv"
	kvmemory "github.com/bisqwatch/bisqwatch-backend/pkg/kv/memory"
	kvredis "github.com/bisqwatch/bisqwatch-backend/pkg/kv/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := log.NewSugar(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infow("Starting BisqWatch API server",
		"env", cfg.Env,
		"addr", cfg.HTTPAddr,
		"markets", len(cfg.TrackedMarkets()),
	)

	// Setup metrics
	metricsObj, metricsHandler, err := metrics.Setup("bisqwatch-api")
	if err != nil {
		logger.Fatalw("Failed to setup metrics", "error", err)
	}

	// Key-value store: redis when configured and reachable, otherwise an
	// in-process fallback. Counters and alert dedup survive restarts only
	// with redis.
	var store kv.Store
	if cfg.Cache.RedisAddr != "" {
		redisStore, err := kvredis.NewStore(cfg.Cache.RedisAddr)
		if err != nil {
			logger.Warnw("Redis unavailable, using in-memory store", "addr", cfg.Cache.RedisAddr, "error", err)
			store = kvmemory.NewStore()
		} else {
			logger.Infow("Connected to redis", "addr", cfg.Cache.RedisAddr)
			store = redisStore
		}
	} else {
		logger.Infow("No redis configured, using in-memory store")
		store = kvmemory.NewStore()
	}
	defer store.Close()

	// Market data pipeline
	publisher := market.NewPublisher()
	bisqClient := bisq.NewClient(logger)
	priceProvider := kraken.NewProvider(logger)

	formatter := query.NewFormatter(cfg.Icons())
	resolver := query.NewResolver(query.ResolverConfig{
		Markets:       cfg.TrackedMarkets(),
		SampleMarkets: cfg.SampleMarkets(),
	}, formatter, logger)

	var sink jobs.Sink
	if cfg.Alerts.WebhookURL != "" {
		sink = jobs.NewWebhookSink(cfg.Alerts.WebhookURL)
	} else {
		sink = jobs.NewLogSink(logger)
	}
	scanner := jobs.NewAlertScanner(
		cfg.AlertMarkets(),
		cfg.Alerts.Threshold,
		formatter,
		store,
		sink,
		metricsObj,
		logger,
	)

	refresher := jobs.NewRefresher(
		jobs.RefresherConfig{
			Markets:        cfg.TrackedMarkets(),
			Interval:       cfg.Markets.RefreshInterval,
			MaxSnapshotAge: cfg.Markets.MaxSnapshotAge,
		},
		bisqClient,
		priceProvider,
		publisher,
		store,
		scanner,
		metricsObj,
		logger,
	)

	jobCtx, jobCancel := context.WithCancel(context.Background())
	defer jobCancel()

	go func() {
		logger.Infow("Starting snapshot refresher",
			"interval", cfg.Markets.RefreshInterval,
		)
		if err := refresher.Start(jobCtx); err != nil && err != context.Canceled {
			logger.Errorw("Snapshot refresher error", "error", err)
		}
	}()

	livePrices := jobs.NewLivePrices(cfg.TrackedMarkets(), priceProvider, publisher, logger)
	go func() {
		if err := livePrices.Start(jobCtx); err != nil && err != context.Canceled {
			logger.Errorw("Live price feed error", "error", err)
		}
	}()

	// Usage stats
	reporter := stats.NewReporter(store, logger)
	chosenLog, err := stats.OpenChosenLog(cfg.StateDir)
	if err != nil {
		logger.Fatalw("Failed to open chosen result log", "dir", cfg.StateDir, "error", err)
	}
	defer chosenLog.Close()

	// Setup API handler and middleware
	handler := api.NewHandler(resolver, publisher, reporter, chosenLog, cfg, logger, metricsObj)
	middleware := api.NewMiddleware(logger, metricsObj)

	router := handler.Routes(middleware, metricsHandler, cfg.Security.CORSAllowedOrigins, cfg.Security.RateLimitRPM)

	logger.Infow("CORS configured", "allowed_origins", cfg.Security.CORSAllowedOrigins)

	// Setup HTTP server
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		logger.Infow("API server starting", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatalw("Server startup failed", "error", err)
	case sig := <-shutdown:
		logger.Infow("Shutdown signal received", "signal", sig.String())

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Errorw("Graceful shutdown failed", "error", err)
			server.Close()
		}

		logger.Infow("Server stopped")
	}
}
