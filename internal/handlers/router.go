package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/eventpass/api/internal/platform/httpx"
	"github.com/eventpass/api/internal/services"
)

// RouteRegistrar adds routes to a router group.
type RouteRegistrar func(r chi.Router)

// RouterConfig lists everything mounted by NewRouter. Nil registrars leave
// their group unmounted.
type RouterConfig struct {
	// BasePath prefixes every API group. Defaults to /api/v1.
	BasePath string
	// RequestTimeout cancels handler contexts. Defaults to 30s.
	RequestTimeout time.Duration
	Middlewares    []func(http.Handler) http.Handler
	Health         *HealthHandlers

	Public     []RouteRegistrar
	Ambassador RouteRegistrar
	Admin      RouteRegistrar
	Webhooks   RouteRegistrar
	// WebhookMiddlewares run only for /webhooks, e.g. signature checks.
	WebhookMiddlewares []func(http.Handler) http.Handler
}

// NewRouter mounts the probes at the root and the API groups under BasePath:
// public routes directly, then /ambassador, /admin and /webhooks.
func NewRouter(cfg RouterConfig) chi.Router {
	if cfg.BasePath == "" {
		cfg.BasePath = "/api/v1"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.Health == nil {
		cfg.Health = NewHealthHandlers(nil, services.BuildInfo{})
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Timeout(cfg.RequestTimeout))
	for _, mw := range cfg.Middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("route_not_found", "no route for "+req.URL.Path, http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", req.Method+" is not allowed on "+req.URL.Path, http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.Health.Healthz)
	r.Get("/readyz", cfg.Health.Readyz)

	r.Route(cfg.BasePath, func(api chi.Router) {
		for _, register := range cfg.Public {
			if register != nil {
				api.Group(func(g chi.Router) { register(g) })
			}
		}
		if cfg.Ambassador != nil {
			api.Route("/ambassador", cfg.Ambassador)
		}
		if cfg.Admin != nil {
			api.Route("/admin", cfg.Admin)
		}
		if cfg.Webhooks != nil {
			api.Route("/webhooks", func(g chi.Router) {
				for _, mw := range cfg.WebhookMiddlewares {
					if mw != nil {
						g.Use(mw)
					}
				}
				cfg.Webhooks(g)
			})
		}
	})
	return r
}
