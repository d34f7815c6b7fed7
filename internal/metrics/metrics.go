package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Routing metrics
	providerRequests *prometheus.CounterVec
	failovers        *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	staleServed      *prometheus.CounterVec
	limiterWait      *prometheus.HistogramVec
	providerHealth   *prometheus.GaugeVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Routing metrics
	r.providerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_provider_requests_total",
			Help: "Total upstream provider calls by outcome",
		},
		[]string{"provider", "kind", "outcome"},
	)
	r.failovers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_failovers_total",
			Help: "Total failovers to a fallback provider",
		},
		[]string{"kind"},
	)
	r.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_cache_lookups_total",
			Help: "Router cache lookups by result",
		},
		[]string{"kind", "result"},
	)
	r.staleServed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_stale_served_total",
			Help: "Responses served from expired cache entries",
		},
		[]string{"kind"},
	)
	r.limiterWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hermes_ratelimit_wait_seconds",
			Help:    "Time spent waiting for rate-limiter admission",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 2, 5},
		},
		[]string{"provider"},
	)
	r.providerHealth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hermes_provider_health",
			Help: "Provider health (0=healthy, 1=cooling, 2=unusable)",
		},
		[]string{"provider"},
	)

	reg.MustRegister(r.providerRequests)
	reg.MustRegister(r.failovers)
	reg.MustRegister(r.cacheLookups)
	reg.MustRegister(r.staleServed)
	reg.MustRegister(r.limiterWait)
	reg.MustRegister(r.providerHealth)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordProviderRequest records an upstream call outcome.
func (r *Registry) RecordProviderRequest(provider, kind, outcome string) {
	if r == nil {
		return
	}
	r.providerRequests.WithLabelValues(provider, kind, outcome).Inc()
}

// RecordFailover records a switch to a fallback provider.
func (r *Registry) RecordFailover(kind string) {
	if r == nil {
		return
	}
	r.failovers.WithLabelValues(kind).Inc()
}

// RecordCacheLookup records a router-level cache lookup result.
func (r *Registry) RecordCacheLookup(kind, result string) {
	if r == nil {
		return
	}
	r.cacheLookups.WithLabelValues(kind, result).Inc()
}

// RecordStaleServed records a degraded stale response.
func (r *Registry) RecordStaleServed(kind string) {
	if r == nil {
		return
	}
	r.staleServed.WithLabelValues(kind).Inc()
}

// RecordLimiterWait records time spent waiting for admission.
func (r *Registry) RecordLimiterWait(provider string, seconds float64) {
	if r == nil {
		return
	}
	r.limiterWait.WithLabelValues(provider).Observe(seconds)
}

// SetProviderHealth sets the health gauge for a provider.
func (r *Registry) SetProviderHealth(provider string, state float64) {
	if r == nil {
		return
	}
	r.providerHealth.WithLabelValues(provider).Set(state)
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
