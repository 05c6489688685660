package services

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the dashboard's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	reg             *prometheus.Registry
	CacheHits       *prometheus.CounterVec
	CacheMisses     *prometheus.CounterVec
	Fetches         *prometheus.CounterVec
	FetchErrors     *prometheus.CounterVec
	FetchLatencySec *prometheus.HistogramVec
	DroppedOrders   prometheus.Counter
}

// NewMetrics creates the collectors on a private registry
func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()
	hits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_cache_hits_total",
		Help: "Loads served from the cache.",
	}, []string{"cache_key"})
	misses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_cache_misses_total",
		Help: "Loads that found no valid cached value.",
	}, []string{"cache_key"})
	fetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_source_fetches_total",
		Help: "Fetch attempts against a data source.",
	}, []string{"cache_key"})
	fetchErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_source_fetch_errors_total",
		Help: "Failed fetch attempts against a data source.",
	}, []string{"cache_key"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dashboard_source_fetch_seconds",
		Help:    "Duration of fetch attempts.",
		Buckets: prometheus.DefBuckets,
	}, []string{"cache_key"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_map_dropped_orders_total",
		Help: "Orders left off the map because their city has no coordinates.",
	})

	r.MustRegister(hits, misses, fetches, fetchErrors, latency, dropped)
	return &Metrics{
		reg:             r,
		CacheHits:       hits,
		CacheMisses:     misses,
		Fetches:         fetches,
		FetchErrors:     fetchErrors,
		FetchLatencySec: latency,
		DroppedOrders:   dropped,
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, e.g. for gathering in tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

func (m *Metrics) cacheHit(key string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(key).Inc()
}

func (m *Metrics) cacheMiss(key string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(key).Inc()
}

func (m *Metrics) observeFetch(key string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.Fetches.WithLabelValues(key).Inc()
	m.FetchLatencySec.WithLabelValues(key).Observe(took.Seconds())
	if err != nil {
		m.FetchErrors.WithLabelValues(key).Inc()
	}
}

func (m *Metrics) droppedOrders(n int) {
	if m == nil || n == 0 {
		return
	}
	m.DroppedOrders.Add(float64(n))
}
