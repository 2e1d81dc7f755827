package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/booking-concierge/internal/appointments"
	httpmiddleware "github.com/wolfman30/booking-concierge/internal/http/middleware"
	"github.com/wolfman30/booking-concierge/internal/messaging"
	"github.com/wolfman30/booking-concierge/internal/tenant"
	"github.com/wolfman30/booking-concierge/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger  *logging.Logger
	Gateway *messaging.Gateway

	// Providers are optional; a nil provider leaves its webhook unmounted.
	WhatsApp *messaging.WhatsAppProvider
	Twilio   *messaging.TwilioProvider

	Appointments    *appointments.Handler
	TenantCache     *tenant.Handler
	AdminAuthSecret string
	MetricsHandler  http.Handler

	// Ready reports dependency health for /health. Nil means always ready.
	Ready func(ctx context.Context) error
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.Ready))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.Gateway == nil {
			return
		}
		if cfg.WhatsApp != nil {
			public.Get("/webhooks/whatsapp", cfg.Gateway.Verify(cfg.WhatsApp))
			public.Post("/webhooks/whatsapp", cfg.Gateway.Inbound(cfg.WhatsApp))
		}
		if cfg.Twilio != nil {
			public.Post("/webhooks/twilio", cfg.Gateway.Inbound(cfg.Twilio))
		}
	})

	if cfg.AdminAuthSecret != "" && cfg.Appointments != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Route("/tenants/{tenantID}", func(t chi.Router) {
				t.Use(httpmiddleware.TenantScope)
				t.Get("/appointments", cfg.Appointments.List)
				if cfg.TenantCache != nil {
					t.Post("/cache/refresh", cfg.TenantCache.Refresh)
				}
			})
		})
	}

	return r
}

func healthHandler(ready func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
