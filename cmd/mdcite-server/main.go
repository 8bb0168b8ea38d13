// mdcite-server serves citation rewriting over HTTP.
//
// Usage:
//
//	mdcite-server [-config mdcite.yml]
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
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dbh/mdcite/internal/api"
	"github.com/dbh/mdcite/internal/cache"
	"github.com/dbh/mdcite/internal/config"
	"github.com/dbh/mdcite/internal/logger"
	"github.com/dbh/mdcite/internal/metrics"
)

var configPath = flag.String("config", "", "path to YAML config file (default: $MDCITE_CONFIG)")

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mdcite-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	// ── 2. Initialise structured logging ────────────────────────────
	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log.Info("mdcite-server starting",
		logger.String("addr", cfg.Server.Addr()),
		logger.String("mode", cfg.Server.Mode),
		logger.Bool("rate_limit", cfg.RateLimit.Enabled),
		logger.Int("cache_entries", cfg.Cache.MaxEntries),
	)

	// ── 3. Metrics, cache, router ───────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	cc := cache.New[*api.TransformResponse](cfg.Cache.MaxEntries, cfg.Cache.TTL)
	defer cc.Close()

	h := api.NewHandler(cfg, log, m, cc, time.Now())
	router := api.NewRouter(cfg, log, m, h)

	// ── 4. Start HTTP server ────────────────────────────────────────
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// ── 5. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-quit:
		log.Info("Shutdown signal received", logger.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("HTTP server forced shutdown", logger.Error(err))
		return err
	}
	log.Info("mdcite-server stopped")
	return nil
}
