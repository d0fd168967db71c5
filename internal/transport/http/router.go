package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"outletdedup/pkg/platform/httputil"
	"outletdedup/pkg/platform/middleware/admin"
	"outletdedup/pkg/platform/middleware/metadata"
	"outletdedup/pkg/platform/middleware/requestid"
	"outletdedup/pkg/platform/middleware/requesttime"
)

// RouteRegistrar mounts a group of endpoints.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

// RouterConfig carries what the admin router serves.
type RouterConfig struct {
	Runs       RouteRegistrar
	Metrics    http.Handler
	Health     map[string]HealthCheck
	AdminToken string
	Logger     *slog.Logger
}

// NewRouter wires the admin surface: run endpoints behind the admin token, and
// unauthenticated health and metrics endpoints for the platform.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestid.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)

	r.Get("/healthz", healthHandler(cfg.Health, cfg.Logger))
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	if cfg.Runs != nil {
		r.Group(func(r chi.Router) {
			r.Use(admin.RequireAdminToken(cfg.AdminToken, cfg.Logger))
			cfg.Runs.Register(r)
		})
	}
	return r
}

func healthHandler(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		status := map[string]string{}
		healthy := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				healthy = false
				status[name] = "unavailable"
				logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
				continue
			}
			status[name] = "ok"
		}
		if !healthy {
			status["status"] = "unavailable"
			httputil.WriteJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		status["status"] = "ok"
		httputil.WriteJSON(w, http.StatusOK, status)
	}
}
