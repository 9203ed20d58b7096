package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/eventpass/api/internal/domain"
	"github.com/eventpass/api/internal/services"
)

func respondWith(path string, code int) RouteRegistrar {
	return func(r chi.Router) {
		r.Get(path, func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(code) })
	}
}

func serve(router http.Handler, method, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func TestRouterMountsProbesAtRoot(t *testing.T) {
	router := NewRouter(RouterConfig{Health: NewHealthHandlers(&stubSystemService{report: services.SystemHealthReport{
		Status: domain.HealthStatusOK,
	}}, services.BuildInfo{Version: "1.2.0"})})

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := serve(router, http.MethodGet, path)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rr.Code)
		}
		if rr.Header().Get("Content-Type") != "application/json" {
			t.Fatalf("%s: expected json, got %q", path, rr.Header().Get("Content-Type"))
		}
	}
}

func TestRouterMountsGroupsUnderBasePath(t *testing.T) {
	router := NewRouter(RouterConfig{
		Public:     []RouteRegistrar{respondWith("/events", http.StatusNoContent), respondWith("/payment-options", http.StatusNoContent)},
		Ambassador: respondWith("/income", http.StatusNoContent),
		Admin:      respondWith("/orders", http.StatusNoContent),
	})

	for _, path := range []string{"/api/v1/events", "/api/v1/payment-options", "/api/v1/ambassador/income", "/api/v1/admin/orders"} {
		if rr := serve(router, http.MethodGet, path); rr.Code != http.StatusNoContent {
			t.Fatalf("%s: expected 204, got %d", path, rr.Code)
		}
	}

	custom := NewRouter(RouterConfig{BasePath: "/v2", Public: []RouteRegistrar{respondWith("/events", http.StatusNoContent)}})
	if rr := serve(custom, http.MethodGet, "/v2/events"); rr.Code != http.StatusNoContent {
		t.Fatalf("custom base path: expected 204, got %d", rr.Code)
	}
}

func TestRouterUnknownRouteUsesErrorEnvelope(t *testing.T) {
	router := NewRouter(RouterConfig{Public: []RouteRegistrar{respondWith("/events", http.StatusOK)}})

	rr := serve(router, http.MethodGet, "/api/v1/admin/orders")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unmounted admin group: expected 404, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if body["error"] != "route_not_found" {
		t.Fatalf("expected route_not_found, got %v", body["error"])
	}

	if rr := serve(router, http.MethodDelete, "/api/v1/events"); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestRouterWebhookMiddlewareIsScoped(t *testing.T) {
	tag := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Signature-Checked", "yes")
			next.ServeHTTP(w, r)
		})
	}
	router := NewRouter(RouterConfig{
		Public:             []RouteRegistrar{respondWith("/events", http.StatusOK)},
		Webhooks:           respondWith("/flouci", http.StatusOK),
		WebhookMiddlewares: []func(http.Handler) http.Handler{tag, nil},
	})

	if rr := serve(router, http.MethodGet, "/api/v1/webhooks/flouci"); rr.Header().Get("X-Signature-Checked") != "yes" {
		t.Fatal("expected webhook middleware to run")
	}
	if rr := serve(router, http.MethodGet, "/api/v1/events"); rr.Header().Get("X-Signature-Checked") != "" {
		t.Fatal("webhook middleware leaked into public routes")
	}
}
