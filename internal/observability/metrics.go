// Package observability exposes Prometheus metrics and OpenTelemetry tracing setup.
package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"meetpoint/internal/models"
	"meetpoint/internal/resilience"
)

// Collector bundles the service metrics. It implements resilience.Observer,
// cache.LookupObserver and meetpoint.Observer.
type Collector struct {
	gatherer prometheus.Gatherer

	UpstreamCalls     *prometheus.CounterVec
	UpstreamDurations *prometheus.HistogramVec
	UpstreamRetries   *prometheus.CounterVec
	CircuitState      *prometheus.GaugeVec
	CircuitChanges    *prometheus.CounterVec
	CacheLookups      *prometheus.CounterVec
	Routes            *prometheus.CounterVec
	Computations      *prometheus.CounterVec
	ComputeDurations  *prometheus.HistogramVec
	HTTPRequests      *prometheus.CounterVec
	HTTPDurations     *prometheus.HistogramVec
}

var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20}

// NewCollector registers the metrics against reg, defaulting to the global
// Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	var err error

	if c.UpstreamCalls, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meetpoint_upstream_calls_total",
		Help: "Guarded upstream calls, labeled by dependency, operation and outcome.",
	}, []string{"dependency", "op", "outcome"}), "meetpoint_upstream_calls_total"); err != nil {
		return nil, err
	}
	if c.UpstreamDurations, err = registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meetpoint_upstream_call_duration_seconds",
		Help:    "Guarded upstream call latency in seconds, including retries.",
		Buckets: latencyBuckets,
	}, []string{"dependency", "op"}), "meetpoint_upstream_call_duration_seconds"); err != nil {
		return nil, err
	}
	if c.UpstreamRetries, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meetpoint_upstream_retries_total",
		Help: "Retries of guarded upstream calls.",
	}, []string{"dependency", "op"}), "meetpoint_upstream_retries_total"); err != nil {
		return nil, err
	}
	if c.CircuitState, err = registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "meetpoint_circuit_state",
		Help: "Circuit breaker state per dependency (0 closed, 1 open, 2 half-open).",
	}, []string{"dependency"}), "meetpoint_circuit_state"); err != nil {
		return nil, err
	}
	if c.CircuitChanges, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meetpoint_circuit_transitions_total",
		Help: "Circuit breaker state transitions.",
	}, []string{"dependency", "from", "to"}), "meetpoint_circuit_transitions_total"); err != nil {
		return nil, err
	}
	if c.CacheLookups, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meetpoint_cache_lookups_total",
		Help: "Cache lookups by cache, tier and result.",
	}, []string{"cache", "tier", "result"}), "meetpoint_cache_lookups_total"); err != nil {
		return nil, err
	}
	if c.Routes, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meetpoint_routes_total",
		Help: "Route estimates used for scoring, by mode and source.",
	}, []string{"mode", "source"}), "meetpoint_routes_total"); err != nil {
		return nil, err
	}
	if c.Computations, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meetpoint_computations_total",
		Help: "Meeting point computations by mode and result kind.",
	}, []string{"mode", "result"}), "meetpoint_computations_total"); err != nil {
		return nil, err
	}
	if c.ComputeDurations, err = registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meetpoint_computation_duration_seconds",
		Help:    "Meeting point computation latency in seconds.",
		Buckets: latencyBuckets,
	}, []string{"mode"}), "meetpoint_computation_duration_seconds"); err != nil {
		return nil, err
	}
	if c.HTTPRequests, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meetpoint_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "code"}), "meetpoint_http_requests_total"); err != nil {
		return nil, err
	}
	if c.HTTPDurations, err = registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meetpoint_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: latencyBuckets,
	}, []string{"method", "route"}), "meetpoint_http_request_duration_seconds"); err != nil {
		return nil, err
	}

	return c, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) CallFinished(dependency, op string, outcome resilience.Outcome, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.UpstreamCalls.WithLabelValues(dependency, op, string(outcome)).Inc()
	if outcome != resilience.OutcomeRejected {
		c.UpstreamDurations.WithLabelValues(dependency, op).Observe(elapsed.Seconds())
	}
}

func (c *Collector) Retried(dependency, op string, _ int, _ time.Duration) {
	if c == nil {
		return
	}
	c.UpstreamRetries.WithLabelValues(dependency, op).Inc()
}

func (c *Collector) StateChanged(dependency string, from, to resilience.State) {
	if c == nil {
		return
	}
	c.CircuitState.WithLabelValues(dependency).Set(float64(to))
	c.CircuitChanges.WithLabelValues(dependency, from.String(), to.String()).Inc()
}

// CacheLookup satisfies cache.LookupObserver
func (c *Collector) CacheLookup(cache, tier string, hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.CacheLookups.WithLabelValues(cache, tier, result).Inc()
}

// RouteResolved satisfies meetpoint.Observer
func (c *Collector) RouteResolved(mode models.TransportMode, source string) {
	if c == nil {
		return
	}
	c.Routes.WithLabelValues(string(mode), source).Inc()
}

// ComputeFinished satisfies meetpoint.Observer
func (c *Collector) ComputeFinished(mode models.TransportMode, elapsed time.Duration, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = string(models.KindOf(err))
		if result == "" {
			result = "error"
		}
	}
	c.Computations.WithLabelValues(string(mode), result).Inc()
	c.ComputeDurations.WithLabelValues(string(mode)).Observe(elapsed.Seconds())
}

// ObserveHTTP records one served request
func (c *Collector) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDurations.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// SetBreakerStates seeds the state gauge so dependencies appear before their first transition
func (c *Collector) SetBreakerStates(breakers ...*resilience.CircuitBreaker) {
	if c == nil {
		return
	}
	for _, b := range breakers {
		if b != nil {
			c.CircuitState.WithLabelValues(b.Name()).Set(float64(b.State()))
		}
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
