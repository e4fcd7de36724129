package main

import (
	"context"
	"errors"
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
	"github.com/wolfman30/shinestar-cleaners/internal/api/router"
	"github.com/wolfman30/shinestar-cleaners/internal/app/bootstrap"
	"github.com/wolfman30/shinestar-cleaners/internal/chat"
	appconfig "github.com/wolfman30/shinestar-cleaners/internal/config"
	"github.com/wolfman30/shinestar-cleaners/internal/contact"
	"github.com/wolfman30/shinestar-cleaners/internal/observability/metrics"
	"github.com/wolfman30/shinestar-cleaners/internal/relay"
	"github.com/wolfman30/shinestar-cleaners/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting shinestar-cleaners API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	fmt.Println("Server exited gracefully")
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	handler, cleanup, err := buildHandler(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// buildHandler wires every component. cleanup releases external clients.
func buildHandler(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (http.Handler, func(), error) {
	cleanup := func() {}

	script, err := bootstrap.BuildScript(cfg, logger)
	if err != nil {
		return nil, cleanup, err
	}

	var relays relay.Factory
	if cfg.UseRedisRelay() {
		redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
		if redisClient != nil {
			cleanup = func() { _ = redisClient.Close() }
		}
		relays = bootstrap.BuildRelayFactory(cfg, redisClient, logger)
	} else {
		relays = bootstrap.BuildRelayFactory(cfg, nil, logger)
	}

	go bootstrap.RunRelayEviction(ctx, relays, cfg.ChatSweepInterval)

	var (
		metricsHandler http.Handler
		chatMetrics    *metrics.ChatMetrics
		contactMetrics *metrics.ContactMetrics
	)
	if cfg.MetricsEnabled {
		metricsHandler, chatMetrics, contactMetrics = setupMetrics()
	}

	notifier, err := bootstrap.BuildNotifier(ctx, cfg, logger)
	if err != nil {
		return nil, cleanup, err
	}

	registry := bootstrap.BuildChatRegistry(cfg, script, relays, chatMetrics, logger)
	go registry.Run(ctx, cfg.ChatSweepInterval)

	contactOpts := []contact.HandlerOption{contact.WithRelays(relays)}
	if notifier != nil {
		contactOpts = append(contactOpts, contact.WithNotifier(notifier))
	}
	var contactLatency func(time.Duration)
	if contactMetrics != nil {
		contactOpts = append(contactOpts, contact.WithMetrics(contactMetrics))
		contactLatency = func(d time.Duration) { contactMetrics.ObserveLatency(d.Seconds()) }
	}

	handler := router.New(&router.Config{
		Logger:             logger,
		ContactHandler:     contact.NewHandler(logger, contactOpts...),
		ChatHandler:        chat.NewHandler(registry, logger),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		ContactRateLimit:   cfg.ContactRateLimit,
		ContactRateBurst:   cfg.ContactRateBurst,
		ContactLatency:     contactLatency,
		StaticDir:          cfg.StaticDir,
		Context:            ctx,
	})
	return handler, cleanup, nil
}

// setupMetrics creates a private registry so tests can build it repeatedly.
func setupMetrics() (http.Handler, *metrics.ChatMetrics, *metrics.ContactMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	return handler, metrics.NewChatMetrics(reg), metrics.NewContactMetrics(reg)
}
