package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/shinestar-cleaners/internal/chat"
	"github.com/wolfman30/shinestar-cleaners/internal/contact"
	httpmiddleware "github.com/wolfman30/shinestar-cleaners/internal/http/middleware"
	"github.com/wolfman30/shinestar-cleaners/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	ContactHandler     *contact.Handler
	ChatHandler        *chat.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// ContactRateLimit is requests per second per client IP; zero disables it.
	ContactRateLimit float64
	ContactRateBurst int
	// ContactLatency receives the duration of every contact submission.
	ContactLatency func(time.Duration)

	// StaticDir serves the built site when set.
	StaticDir string

	// Context bounds background work such as rate limiter cleanup.
	Context context.Context
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.ContactHandler != nil {
		submit := chi.Chain(httpmiddleware.Timing(cfg.ContactLatency))
		if cfg.ContactRateLimit > 0 {
			ctx := cfg.Context
			if ctx == nil {
				ctx = context.Background()
			}
			submit = append(submit, httpmiddleware.RateLimit(ctx, cfg.ContactRateLimit, cfg.ContactRateBurst))
		}
		r.With(submit...).Post("/api/contact", cfg.ContactHandler.Submit)
		r.Get("/api/contact/prefill", cfg.ContactHandler.Prefill)
	}

	if cfg.ChatHandler != nil {
		r.Route("/api/chat", cfg.ChatHandler.Routes)
	}

	if cfg.StaticDir != "" {
		r.NotFound(spaHandler(cfg.StaticDir))
	}

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
