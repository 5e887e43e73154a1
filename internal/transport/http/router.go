package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"spendtrend/internal/config"
	apierrors "spendtrend/internal/errors"
	"spendtrend/internal/infrastructure"
	"spendtrend/internal/middleware"
)

// RouterDeps are the collaborators of the API router
type RouterDeps struct {
	Store  *ResultStore
	Server config.ServerConfig
	Logger *slog.Logger

	// Metrics records request counts and latency; nil uses the global meter
	Metrics *infrastructure.PipelineMetrics
	// MetricsHandler serves /metrics when set
	MetricsHandler http.Handler
	// IncludeStack adds panic stacks to 500 responses
	IncludeStack bool
}

// NewRouter builds the API router with its middleware chain
func NewRouter(deps RouterDeps) (http.Handler, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	errorHandler := apierrors.NewErrorHandler(logger, deps.IncludeStack)

	otelMiddleware, err := middleware.NewOTelMiddleware(deps.Metrics)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(otelMiddleware.Handler)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recoverer(errorHandler))
	if deps.Server.WriteTimeout > 0 {
		r.Use(chimw.Timeout(deps.Server.WriteTimeout))
	}

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	health := NewHealthHandler(deps.Store)
	r.Get("/healthz", health.Liveness)
	r.Get("/readyz", health.Readiness)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	results := NewResultsHandler(deps.Store, logger, errorHandler)
	r.Route("/api/v1", func(r chi.Router) {
		if rl := deps.Server.RateLimit; rl.Enabled {
			r.Use(middleware.NewRateLimiter(rl.RPS, rl.Burst, errorHandler, logger).Handler)
		}
		r.Mount("/", results.Routes())
	})
	return r, nil
}
