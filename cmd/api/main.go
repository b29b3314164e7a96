package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/leen-storefront/internal/api/router"
	"github.com/wolfman30/leen-storefront/internal/app/bootstrap"
	appconfig "github.com/wolfman30/leen-storefront/internal/config"
	"github.com/wolfman30/leen-storefront/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/leen-storefront/internal/http/middleware"
	"github.com/wolfman30/leen-storefront/pkg/logging"
)

const ledgerSweepInterval = 10 * time.Minute

func main() {
	// Local runs read .env; deployed environments set variables directly.
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("starting leen storefront gateway",
		"env", cfg.Env,
		"port", cfg.Port,
		"backend", cfg.StorefrontBaseURL,
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	registry, metricsHandler := setupMetrics()
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}
	ledger, memLedger := bootstrap.BuildSubmitLedger(redisClient, cfg, logger)
	sf, err := bootstrap.BuildStorefront(cfg, ledger, registry, logger, time.Now)
	if err != nil {
		logger.Error("failed to build storefront", "error", err)
		os.Exit(1)
	}

	// Background housekeeping
	go sf.Drafts.Run(ctx, 0)
	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	go limiter.Run(ctx, time.Minute)
	if memLedger != nil {
		go sweepLedger(ctx, memLedger, logger)
	}

	// Setup router
	r := router.New(&router.Config{
		Logger:             logger,
		DraftsHandler:      handlers.NewDraftsHandler(sf.Drafts, sf.Client, logger),
		BookingsHandler:    handlers.NewBookingsHandler(sf.Client, logger),
		SellersHandler:     handlers.NewSellersHandler(sf.Client, logger),
		ChatHandler:        handlers.NewChatHandler(sf.Messenger, cfg.CORSAllowedOrigins, logger),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        limiter,
	})

	// Create HTTP server
	srv := newServer(cfg, r)

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	// Ends the housekeeping loops; the registry closes every open draft.
	stop()

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func newServer(cfg *appconfig.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// setupMetrics returns a private registry with the Go runtime collectors and
// the handler serving it.
func setupMetrics() (*prometheus.Registry, http.Handler) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

type sweeper interface {
	Sweep() int
}

func sweepLedger(ctx context.Context, ledger sweeper, logger *logging.Logger) {
	ticker := time.NewTicker(ledgerSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := ledger.Sweep(); n > 0 {
				logger.Debug("submit ledger swept", "expired", n)
			}
		}
	}
}
