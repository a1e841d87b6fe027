package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"domus/internal/platform/middleware"
	"domus/internal/transport/http/shared"
	"domus/pkg/platform/middleware/requesttime"
)

// Registrar is implemented by every feature handler.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck is a named dependency probe run by /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// RouterConfig carries the cross-cutting pieces of the HTTP surface.
type RouterConfig struct {
	Logger         *slog.Logger
	RequestTimeout time.Duration
	HealthChecks   []HealthCheck
}

// NewRouter assembles the full HTTP surface: ops endpoints, the shared
// middleware chain, and every registered feature handler.
func NewRouter(cfg RouterConfig, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(cfg.Logger))
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/healthz", healthHandler(cfg.HealthChecks))
	r.Handle("/metrics", promhttp.Handler())

	for _, handler := range handlers {
		handler.Register(r)
	}
	return r
}

func healthHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		status := http.StatusOK
		result := make(map[string]string, len(checks)+1)
		result["status"] = "ok"
		for _, check := range checks {
			if err := check.Check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				result["status"] = "degraded"
				result[check.Name] = err.Error()
				continue
			}
			result[check.Name] = "ok"
		}
		shared.WriteJSON(w, status, result)
	}
}
