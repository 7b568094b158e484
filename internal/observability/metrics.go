package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics for the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	authzDecisions  *prometheus.CounterVec
	roleCacheLookup *prometheus.CounterVec
	vaultOps        *prometheus.CounterVec
	auditDropped    prometheus.Counter
	ingestAccepted  *prometheus.CounterVec
	insightLookups  *prometheus.CounterVec
}

// NewMetrics initialises the registry and the base metric set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "prismboard_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "prismboard_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	authzDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "prismboard_authz_decisions_total",
		Help: "Authorization verdicts by decision.",
	}, []string{"decision"})
	roleCacheLookup := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "prismboard_role_cache_lookups_total",
		Help: "Role cache lookups by outcome.",
	}, []string{"outcome"})
	vaultOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "prismboard_vault_operations_total",
		Help: "Vault operations by kind and outcome.",
	}, []string{"op", "outcome"})
	auditDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "prismboard_audit_events_dropped_total",
		Help: "Audit events lost to queue overflow or write failure.",
	})
	ingestAccepted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "prismboard_ingest_events_accepted_total",
		Help: "Accepted webhook deliveries by source.",
	}, []string{"source"})
	insightLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "prismboard_insight_lookups_total",
		Help: "Dashboard aggregation lookups by cache outcome.",
	}, []string{"outcome"})
	registry.MustRegister(requests, duration, authzDecisions, roleCacheLookup, vaultOps, auditDropped, ingestAccepted, insightLookups)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		authzDecisions:  authzDecisions,
		roleCacheLookup: roleCacheLookup,
		vaultOps:        vaultOps,
		auditDropped:    auditDropped,
		ingestAccepted:  ingestAccepted,
		insightLookups:  insightLookups,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// AuthzDecision counts one authorization verdict.
func (m *Metrics) AuthzDecision(decision string) {
	if m == nil {
		return
	}
	m.authzDecisions.WithLabelValues(decision).Inc()
}

// RoleCacheLookup counts a role cache lookup outcome (hit, stale, miss).
func (m *Metrics) RoleCacheLookup(outcome string) {
	if m == nil {
		return
	}
	m.roleCacheLookup.WithLabelValues(outcome).Inc()
}

// VaultOperation counts a vault operation outcome.
func (m *Metrics) VaultOperation(op, outcome string) {
	if m == nil {
		return
	}
	m.vaultOps.WithLabelValues(op, outcome).Inc()
}

// AuditDropped counts one lost audit event.
func (m *Metrics) AuditDropped() {
	if m == nil {
		return
	}
	m.auditDropped.Inc()
}

// IngestAccepted counts an accepted webhook delivery.
func (m *Metrics) IngestAccepted(source string) {
	if m == nil {
		return
	}
	m.ingestAccepted.WithLabelValues(source).Inc()
}

// InsightLookup counts a dashboard aggregation lookup (hit, stale, miss).
func (m *Metrics) InsightLookup(outcome string) {
	if m == nil {
		return
	}
	m.insightLookups.WithLabelValues(outcome).Inc()
}

// Registerer exposes the registry for bespoke metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
