// Package metrics exposes Prometheus instrumentation for provider requests,
// searches, token refreshes and the job details cache.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jobsearch"

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	ProviderFetches  *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	ProviderRetries  *prometheus.CounterVec
	ProviderFailures *prometheus.CounterVec
	CircuitState     *prometheus.GaugeVec

	Searches       prometheus.Counter
	SearchDuration prometheus.Histogram
	SearchResults  prometheus.Histogram

	TokenRefreshes *prometheus.CounterVec
	CacheLookups   *prometheus.CounterVec
	MatchRuns      *prometheus.CounterVec
}

// New creates a Metrics backed by its own registry, including the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)
	m := &Metrics{reg: reg}
	m.initProviderMetrics(factory)
	m.initSearchMetrics(factory)
	m.initMiscMetrics(factory)
	return m
}

func (m *Metrics) initProviderMetrics(factory promauto.Factory) {
	m.ProviderFetches = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "fetches_total",
			Help:      "Job board fetches by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	m.ProviderLatency = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of job board fetches including rate limit waits and retries",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"provider"},
	)

	m.ProviderRetries = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "retries_total",
			Help:      "Retried job board requests",
		},
		[]string{"provider"},
	)

	m.ProviderFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "failures_total",
			Help:      "Provider fetches dropped from a search, by reason",
		},
		[]string{"provider", "reason"},
	)

	m.CircuitState = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "circuit_state",
			Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"provider"},
	)
}

func (m *Metrics) initSearchMetrics(factory promauto.Factory) {
	m.Searches = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "requests_total",
		Help:      "Multi-provider searches run",
	})

	m.SearchDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "duration_seconds",
		Help:      "End to end multi-provider search duration",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	m.SearchResults = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "results",
		Help:      "Listings returned per search after dedup",
		Buckets:   []float64{0, 5, 10, 25, 50, 100, 250},
	})
}

func (m *Metrics) initMiscMetrics(factory promauto.Factory) {
	m.TokenRefreshes = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "token_refreshes_total",
			Help:      "OAuth token refreshes by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	m.CacheLookups = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Job details cache lookups by result",
		},
		[]string{"result"},
	)

	m.MatchRuns = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "match",
			Name:      "runs_total",
			Help:      "Match scoring runs by outcome",
		},
		[]string{"outcome"},
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveFetch records one provider fetch.
func (m *Metrics) ObserveFetch(provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.ProviderFetches.WithLabelValues(provider, outcome(err)).Inc()
	m.ProviderLatency.WithLabelValues(provider).Observe(d.Seconds())
}

// ProviderFailed records a provider dropped from a search.
func (m *Metrics) ProviderFailed(provider, reason string) {
	if m == nil {
		return
	}
	m.ProviderFailures.WithLabelValues(provider, reason).Inc()
}

// RetryHook returns an OnRetry callback counting retries for provider.
func (m *Metrics) RetryHook(provider string) func(attempt int, err error) {
	return func(int, error) {
		if m == nil {
			return
		}
		m.ProviderRetries.WithLabelValues(provider).Inc()
	}
}

// SetCircuitState records a breaker's state as its numeric value.
func (m *Metrics) SetCircuitState(provider string, state int) {
	if m == nil {
		return
	}
	m.CircuitState.WithLabelValues(provider).Set(float64(state))
}

// ObserveSearch records a completed multi-provider search.
func (m *Metrics) ObserveSearch(d time.Duration, results int) {
	if m == nil {
		return
	}
	m.Searches.Inc()
	m.SearchDuration.Observe(d.Seconds())
	m.SearchResults.Observe(float64(results))
}

// ObserveRefresh records a token refresh attempt.
func (m *Metrics) ObserveRefresh(provider string, err error) {
	if m == nil {
		return
	}
	m.TokenRefreshes.WithLabelValues(provider, outcome(err)).Inc()
}

// CacheHit records a cache lookup result.
func (m *Metrics) CacheHit(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveMatch records a match scoring run.
func (m *Metrics) ObserveMatch(err error) {
	if m == nil {
		return
	}
	m.MatchRuns.WithLabelValues(outcome(err)).Inc()
}
