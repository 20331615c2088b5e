// Package httpapi assembles the public HTTP surface: the shared middleware
// chain, operational endpoints and every domain handler's routes.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"etatcivil/internal/platform/metrics"
	"etatcivil/internal/platform/middleware"
	"etatcivil/pkg/platform/httputil"
	authmw "etatcivil/pkg/platform/middleware/auth"
	"etatcivil/pkg/platform/middleware/metadata"
	"etatcivil/pkg/platform/middleware/requesttime"
)

const (
	defaultTimeout = 30 * time.Second
	healthTimeout  = 2 * time.Second
)

// Registrar is implemented by every domain handler.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck probes one backing dependency.
type HealthCheck func(ctx context.Context) error

type Config struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Tokens   authmw.TokenValidator
	Accounts authmw.AccountStatusChecker
	Health   map[string]HealthCheck
	Timeout  time.Duration
	Handlers []Registrar
}

func NewRouter(cfg Config) http.Handler {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Latency(cfg.Metrics))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(authmw.Authenticate(cfg.Tokens, cfg.Accounts, cfg.Logger))
	r.Use(middleware.Timeout(cfg.Timeout))

	r.Get("/health", healthHandler(cfg.Health, cfg.Logger))
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	for _, h := range cfg.Handlers {
		h.Register(r)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.Envelope{Message: "Ressource introuvable"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, httputil.Envelope{Message: "Méthode non autorisée"})
	})
	return r
}

type healthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		report := healthReport{Status: "ok", Checks: make(map[string]string, len(checks))}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err.Error())
				report.Status = "degraded"
				report.Checks[name] = "down"
				continue
			}
			report.Checks[name] = "up"
		}

		status := http.StatusOK
		if report.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, report)
	}
}
