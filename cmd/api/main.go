package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/booking-concierge/internal/api/router"
	"github.com/wolfman30/booking-concierge/internal/app/bootstrap"
	"github.com/wolfman30/booking-concierge/internal/appointments"
	appconfig "github.com/wolfman30/booking-concierge/internal/config"
	"github.com/wolfman30/booking-concierge/internal/messaging"
	"github.com/wolfman30/booking-concierge/internal/observability/metrics"
	"github.com/wolfman30/booking-concierge/internal/tenant"
	"github.com/wolfman30/booking-concierge/pkg/logging"
)

const (
	processedEventRetention = 7 * 24 * time.Hour
	pruneInterval           = time.Hour
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking concierge API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	pool, err := bootstrap.BuildPostgresPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	nluClient, closeNLU, err := bootstrap.BuildNLUClient(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeNLU() }()

	metricsHandler, pipelineMetrics := setupMetrics()
	services := bootstrap.BuildPipeline(cfg, pool, redisClient, nluClient, pipelineMetrics, logger)
	gateway := messaging.NewGateway(services.Processor, pipelineMetrics, logger.With("component", "gateway"))

	routerCfg := &router.Config{
		Logger:          logger,
		Gateway:         gateway,
		Appointments:    appointments.NewHandler(services.Appointments, logger),
		TenantCache:     tenant.NewHandler(services.Tenants, logger),
		AdminAuthSecret: cfg.AdminJWTSecret,
		MetricsHandler:  metricsHandler,
		Ready:           pool.Ping,
	}
	if cfg.WhatsAppEnabled() {
		routerCfg.WhatsApp = messaging.NewWhatsAppProvider(cfg.WhatsAppVerifyToken, cfg.WhatsAppAppSecret, cfg.WhatsAppAccessToken, cfg.WhatsAppGraphBaseURL)
		if cfg.WhatsAppAppSecret == "" {
			logger.Warn("WHATSAPP_APP_SECRET not set; webhook signatures are not verified")
		}
	}
	if cfg.TwilioEnabled() {
		routerCfg.Twilio = messaging.NewTwilioProvider(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWebhookURL)
		if cfg.TwilioWebhookURL == "" {
			logger.Warn("TWILIO_WEBHOOK_URL not set; webhook signatures are not verified")
		}
	}
	if routerCfg.WhatsApp == nil && routerCfg.Twilio == nil {
		logger.Warn("no messaging channel configured; webhooks are disabled")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go pruneProcessedEvents(ctx, services.Events, logger)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := gateway.Wait(shutdownCtx); err != nil {
		logger.Warn("in-flight messages abandoned at shutdown", "error", err)
	}
	return nil
}

func setupMetrics() (http.Handler, *metrics.PipelineMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewPipelineMetrics(reg)
}

type pruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

func pruneProcessedEvents(ctx context.Context, store pruner, logger *logging.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Prune(ctx, processedEventRetention)
			if err != nil {
				logger.Warn("failed to prune processed events", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("pruned processed events", "count", n)
			}
		}
	}
}
