// Package httptransport assembles the root router: shared middleware,
// operational endpoints and every area's routes.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	collabhandler "compliancedesk/internal/collaborator/handler"
	"compliancedesk/internal/platform/metrics"
	platformmw "compliancedesk/internal/platform/middleware"
	signinghandler "compliancedesk/internal/signing/handler"
	"compliancedesk/pkg/platform/httputil"
	"compliancedesk/pkg/platform/middleware/admin"
	"compliancedesk/pkg/platform/middleware/auth"
	"compliancedesk/pkg/platform/middleware/metadata"
	"compliancedesk/pkg/platform/middleware/requesttime"
)

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

type Config struct {
	AdminTokenHash string
	RequestTimeout time.Duration
	HealthChecks   map[string]HealthCheck
}

type Handlers struct {
	Signing       *signinghandler.Handler
	Collaborators *collabhandler.Handler
	PortalTokens  auth.PortalValidator
}

// NewRouter wires all endpoints.
func NewRouter(cfg Config, h Handlers, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(metadata.RequestID)
	r.Use(platformmw.Recoverer(logger))
	r.Use(platformmw.RequestLogger(logger))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	if m != nil {
		r.Use(m.Middleware)
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(cfg.HealthChecks, logger))

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
		h.Signing.Register(r)
		h.Collaborators.RegisterWebhooks(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
		r.Use(admin.RequireAdminToken(cfg.AdminTokenHash, logger))
		h.Collaborators.RegisterAdmin(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
		r.Use(auth.RequirePortalToken(h.PortalTokens, logger))
		h.Collaborators.RegisterPortal(r)
	})
	return r
}

func readiness(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		result := make(map[string]string, len(checks))
		healthy := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "readiness check failed", "check", name, "error", err)
				result[name] = "unavailable"
				healthy = false
				continue
			}
			result[name] = "ok"
		}
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, result)
	}
}
