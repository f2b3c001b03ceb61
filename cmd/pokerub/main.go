// Package main is the entry point for the PokeRub catalogue server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pitabwire/pokerub/internal/config"
	"github.com/pitabwire/pokerub/internal/observability"
	"github.com/pitabwire/pokerub/internal/provider"
	"github.com/pitabwire/pokerub/internal/query"
	"github.com/pitabwire/pokerub/internal/remote"
	"github.com/pitabwire/pokerub/internal/repository"
	"github.com/pitabwire/pokerub/internal/store"
	"github.com/pitabwire/pokerub/internal/transport"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Step 1: Parse CLI flags.
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	// Step 2: Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	// Step 3: Initialize telemetry (logger, tracer, metrics).
	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "pokerub", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	var metrics *observability.Metrics
	if cfg.Observability.Metrics.Enabled {
		metrics = observability.InitMetrics(prometheus.DefaultRegisterer)
	}

	// Step 4: Open the local store.
	st, err := store.Open(ctx, cfg.Store, logger, store.WithMetrics(metrics))
	if err != nil {
		logger.Error("store initialization failed", zap.String("driver", cfg.Store.Driver), zap.Error(err))
		return 1
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("store close error", zap.Error(err))
		}
	}()

	// Step 5: Remote client and query cache.
	client, err := remote.NewClient(cfg.Remote, logger, remote.WithMetrics(metrics))
	if err != nil {
		logger.Error("remote client initialization failed", zap.Error(err))
		return 1
	}
	queries, err := query.NewClient(cfg.Query, logger, query.WithMetrics(metrics))
	if err != nil {
		logger.Error("query client initialization failed", zap.Error(err))
		return 1
	}

	// Step 6: Repositories and providers.
	catalogue := provider.NewCatalogueProvider(repository.NewCatalogue(client), queries,
		cfg.Remote.PageSize, cfg.Search.MinRemoteLength)
	evolution := provider.NewEvolutionProvider(repository.NewEvolution(client), catalogue, queries)
	favorites := provider.NewFavoritesProvider(
		repository.NewFavorites(st, cfg.Store.FavoritesKey, logger, metrics),
		catalogue, queries, logger, metrics)

	// Step 7: Build HTTP router.
	router := transport.NewRouter(transport.Dependencies{
		Config:    cfg,
		Logger:    logger,
		Metrics:   metrics,
		Catalogue: catalogue,
		Evolution: evolution,
		Favorites: favorites,
		ReadyHandler: observability.HandleReady(observability.ReadinessChecks{
			Store:  st,
			Remote: client,
		}),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Step 8: Warm the shared feed in the background.
	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()
	go func() {
		state := catalogue.Feed().EnsureFirstPage(bgCtx)
		if state.Error != nil && bgCtx.Err() == nil {
			logger.Warn("initial catalogue page failed", zap.Error(state.Error))
		}
	}()

	// Step 9: Start HTTP server.
	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("store_driver", st.Driver()),
		zap.String("remote", cfg.Remote.BaseURL),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", zap.Error(err))
			return 1
		}
	}

	// Graceful shutdown sequence.
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections and drain in-flight requests.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Cancel background tasks and let cache refreshes settle.
	bgCancel()
	queries.Wait()

	// Flush telemetry.
	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}
