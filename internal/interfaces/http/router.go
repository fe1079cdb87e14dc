package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/vehicle-test-records/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/vehicle-test-records/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/vehicle-test-records/internal/interfaces/http/handlers"
	"github.com/turtacn/vehicle-test-records/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and middleware dependencies of the
// route tree. Nil handlers leave their routes unregistered.
type RouterConfig struct {
	RecordsHandler *handlers.RecordsHandler
	HealthHandler  *handlers.HealthHandler

	Logger        logging.Logger
	LoggingConfig middleware.LoggingConfig

	// Metrics enables request metrics; MetricsCollector exposes /metrics.
	Metrics          *prometheus.AppMetrics
	MetricsCollector prometheus.MetricsCollector
}

// NewRouter builds the complete route tree.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	if cfg.Logger != nil {
		r.Use(middleware.RequestLogging(cfg.Logger, cfg.LoggingConfig))
	}
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	r.Use(chimw.Recoverer)

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		r.Handle("/metrics", cfg.MetricsCollector.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		registerRecordRoutes(api, cfg.RecordsHandler)
	})

	return r
}

// registerRecordRoutes mounts the test record resource under /test-records.
func registerRecordRoutes(r chi.Router, h *handlers.RecordsHandler) {
	if h == nil {
		return
	}
	r.Route("/test-records", func(tr chi.Router) {
		tr.Post("/", h.Create)
		tr.Get("/tester/{"+handlers.ParamStaffID+"}", h.GetByTesterStaffID)
		tr.Get("/vin/{"+handlers.ParamVIN+"}", h.GetByVIN)
		tr.Get("/{"+handlers.ParamSystemNumber+"}", h.GetBySystemNumber)
		tr.Put("/{"+handlers.ParamSystemNumber+"}", h.Update)
	})
}
