// Package metrics provides Prometheus metrics for the BFF.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Default histogram buckets for API latency.
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15}

// Metrics holds all Prometheus metric collectors for the BFF.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	UpstreamDuration  *prometheus.HistogramVec
	UpstreamResponses *prometheus.CounterVec
	UpstreamFailures  *prometheus.CounterVec
	BreakerOpen       *prometheus.GaugeVec
	BackendUp         *prometheus.GaugeVec

	CacheRequests      *prometheus.CounterVec
	CacheErrors        *prometheus.CounterVec
	CacheInvalidations *prometheus.CounterVec

	FanoutFailures *prometheus.CounterVec
	EventsTotal    *prometheus.CounterVec
	AuditFailures  prometheus.Counter
}

// New creates a Metrics instance with a custom registry and all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_bff_http_requests_total",
			Help: "Total inbound HTTP requests.",
		}, []string{"method", "status_code", "path_prefix"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "admin_bff_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method", "status_code", "path_prefix"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "admin_bff_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed.",
		}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "admin_bff_upstream_request_duration_seconds",
			Help:    "Backend call latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"service", "method"}),

		UpstreamResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_bff_upstream_responses_total",
			Help: "Total backend responses by service, method and status code.",
		}, []string{"service", "method", "status_code"}),

		UpstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_bff_upstream_failures_total",
			Help: "Backend calls that produced no response, by reason.",
		}, []string{"service", "reason"}),

		BreakerOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "admin_bff_upstream_breaker_open",
			Help: "1 when the circuit breaker for a backend is open.",
		}, []string{"service"}),

		BackendUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "admin_bff_backend_up",
			Help: "Result of the last readiness poll per backend (1=up).",
		}, []string{"service"}),

		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_bff_cache_requests_total",
			Help: "Response cache lookups by resource and result (hit|miss).",
		}, []string{"resource", "result"}),

		CacheErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_bff_cache_store_errors_total",
			Help: "Shared cache store errors that fell back to the local store.",
		}, []string{"op"}),

		CacheInvalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_bff_cache_invalidations_total",
			Help: "Cache prefix invalidations by resource and origin (local|remote).",
		}, []string{"resource", "origin"}),

		FanoutFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_bff_fanout_part_failures_total",
			Help: "Aggregate sub-requests that were defaulted after a failure.",
		}, []string{"aggregate", "part"}),

		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_bff_invalidation_events_total",
			Help: "Cache invalidation events by direction and outcome.",
		}, []string{"direction", "outcome"}),

		AuditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "admin_bff_audit_write_failures_total",
			Help: "Audit trail writes that failed.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.UpstreamDuration,
		m.UpstreamResponses,
		m.UpstreamFailures,
		m.BreakerOpen,
		m.BackendUp,
		m.CacheRequests,
		m.CacheErrors,
		m.CacheInvalidations,
		m.FanoutFailures,
		m.EventsTotal,
		m.AuditFailures,
	)

	return m
}

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label for Prometheus metrics.
// Non-standard methods are mapped to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// NormalizePath returns a bounded path label: "/api/<resource>" for API
// routes, a fixed prefix for the others.
func NormalizePath(path string) string {
	for _, prefix := range []string{"/api/health", "/api/csrf", "/auth", "/metrics"} {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return prefix
		}
	}
	if rest, ok := strings.CutPrefix(path, "/api/"); ok {
		resource, _, _ := strings.Cut(rest, "/")
		if resource != "" && isResourceToken(resource) {
			return "/api/" + resource
		}
	}
	return "other"
}

// isResourceToken limits resource labels to short lowercase words.
func isResourceToken(s string) bool {
	if len(s) > 32 {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && r != '-' {
			return false
		}
	}
	return true
}
