// Package api wires the HTTP routes of the agents service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/commuteai/agents/internal/api/handler"
	"github.com/commuteai/agents/internal/api/middleware"
	"github.com/commuteai/agents/internal/api/response"
	"github.com/commuteai/agents/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	ServiceName string
	Logger      zerolog.Logger
	Metrics     *middleware.Metrics

	Insight handler.InsightAgent
	Enhance handler.Enhancer

	Registry *resilience.Registry
	Checks   []handler.Check

	RequireTLS         bool
	CORSAllowedOrigins []string
}

// NewRouter creates a chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "commute-agents"
	}

	// Order matters: request ID first so every later layer can log it.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "No route matches "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.MethodNotAllowed(w, r, r.Method+" is not supported for "+r.URL.Path)
	})

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		ServiceName: serviceName,
		Version:     cfg.Version,
		BuildTime:   cfg.BuildTime,
		Registry:    cfg.Registry,
		Checks:      cfg.Checks,
	})

	generationRateLimit := middleware.RateLimitByIP(middleware.GenerationRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)     // 100 req/min

	r.Get("/", opsHandler.Root)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", opsHandler.HealthCheck)

		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(standardRateLimit).Get("/status", opsHandler.SystemStatus)
		})

		if cfg.Insight != nil {
			insightHandler := handler.NewInsightHandler(cfg.Insight, cfg.Logger)
			r.Group(func(r chi.Router) {
				r.Use(generationRateLimit)
				r.Use(middleware.RequireJSON)
				r.Post("/insight/itineraries", insightHandler.GenerateInsights)
				r.Post("/itineraries", insightHandler.AnnotateItineraries)
			})
		}

		if cfg.Enhance != nil {
			enhanceHandler := handler.NewEnhanceHandler(cfg.Enhance, cfg.Logger)
			r.With(generationRateLimit, middleware.RequireJSON).Post("/agents/enhance", enhanceHandler.Enhance)
		}
	})

	return r
}
