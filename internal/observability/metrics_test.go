package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsHandlerExposesPrometheusMetrics(t *testing.T) {
	metrics := NewMetrics()

	metrics.AuthzDecision("allow")
	metrics.RoleCacheLookup("hit")
	metrics.VaultOperation("store", "ok")
	metrics.AuditDropped()
	metrics.IngestAccepted("stripe")
	metrics.InsightLookup("miss")

	body := scrape(t, metrics)
	for _, name := range []string{
		"prismboard_authz_decisions_total",
		"prismboard_role_cache_lookups_total",
		"prismboard_vault_operations_total",
		"prismboard_audit_events_dropped_total",
		"prismboard_ingest_events_accepted_total",
		"prismboard_insight_lookups_total",
	} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected body to contain %s, got: %s", name, body)
		}
	}
}

func TestRegistererExposesBespokeCollectors(t *testing.T) {
	metrics := NewMetrics()

	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "prismboard_cache_entries",
		Help: "Entries resident in the in-process cache.",
	}, func() float64 { return 7 })
	if err := metrics.Registerer().Register(gauge); err != nil {
		t.Fatalf("register bespoke gauge: %v", err)
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, "prismboard_cache_entries 7") {
		t.Fatalf("expected bespoke gauge in scrape, got: %s", body)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	metricsBody := scrape(t, metrics)
	if !strings.Contains(metricsBody, "http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", metricsBody)
	}
	if !strings.Contains(metricsBody, "http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", metricsBody)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics

	metrics.AuthzDecision("deny")
	metrics.RoleCacheLookup("miss")
	metrics.VaultOperation("retrieve", "error")
	metrics.AuditDropped()
	metrics.IngestAccepted("stripe")
	metrics.InsightLookup("hit")

	next := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	next.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("nil metrics middleware must pass through, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("nil metrics handler should refuse, got %d", rr.Code)
	}
}
