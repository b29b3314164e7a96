package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/leen-storefront/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/leen-storefront/internal/http/middleware"
	"github.com/wolfman30/leen-storefront/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	DraftsHandler      *handlers.DraftsHandler
	BookingsHandler    *handlers.BookingsHandler
	SellersHandler     *handlers.SellersHandler
	ChatHandler        *handlers.ChatHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// RateLimiter throttles /v1 per customer. Nil disables throttling.
	RateLimiter *httpmiddleware.RateLimiter

	// Now is the clock used for token expiry checks. Defaults to time.Now.
	Now func() time.Time
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Customer endpoints. The bearer token is forwarded to the marketplace.
	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(httpmiddleware.CustomerAuth(cfg.Now))
		if cfg.RateLimiter != nil {
			v1.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		}
		if cfg.DraftsHandler != nil {
			v1.Mount("/drafts", cfg.DraftsHandler.Routes())
		}
		if cfg.BookingsHandler != nil {
			v1.Mount("/bookings", cfg.BookingsHandler.Routes())
		}
		if cfg.SellersHandler != nil {
			v1.Mount("/sellers", cfg.SellersHandler.Routes())
		}
		if cfg.ChatHandler != nil {
			v1.Mount("/chat", cfg.ChatHandler.Routes())
		}
	})

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
