// Package metrics exposes the server's Prometheus instrumentation. All
// collectors live on a private registry so tests can create throwaway
// instances without global registration conflicts.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the server records into.
type Metrics struct {
	registry *prometheus.Registry

	queries       *prometheus.CounterVec
	denials       *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	slowQueries   prometheus.Counter
	activePools   prometheus.Gauge
	sessions      prometheus.Gauge
}

// New creates a Metrics with all collectors registered.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.queries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mysqlmcp_queries_total",
		Help: "Statements executed, by operation and outcome.",
	}, []string{"operation", "status"})

	m.denials = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mysqlmcp_denials_total",
		Help: "Statements denied by the admission gate, by error code.",
	}, []string{"code"})

	m.queryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mysqlmcp_query_duration_seconds",
		Help:    "Statement execution latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	m.slowQueries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mysqlmcp_slow_queries_total",
		Help: "Statements slower than the slow-query threshold.",
	})

	m.activePools = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mysqlmcp_active_pools",
		Help: "Connection pools currently registered.",
	})

	m.sessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mysqlmcp_active_sessions",
		Help: "Client sessions currently connected.",
	})

	m.registry.MustRegister(
		m.queries, m.denials, m.queryDuration,
		m.slowQueries, m.activePools, m.sessions,
	)
	return m
}

// Handler returns the HTTP handler serving the scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveQuery records one executed statement.
func (m *Metrics) ObserveQuery(operation, status string, elapsed time.Duration) {
	m.queries.WithLabelValues(operation, status).Inc()
	m.queryDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveDenial records one admission denial.
func (m *Metrics) ObserveDenial(code string) {
	m.denials.WithLabelValues(code).Inc()
}

// ObserveSlowQuery counts one statement over the slow threshold.
func (m *Metrics) ObserveSlowQuery() {
	m.slowQueries.Inc()
}

// SetActivePools reports the current pool count.
func (m *Metrics) SetActivePools(n int) {
	m.activePools.Set(float64(n))
}

// SessionOpened increments the connected-session gauge.
func (m *Metrics) SessionOpened() { m.sessions.Inc() }

// SessionClosed decrements the connected-session gauge.
func (m *Metrics) SessionClosed() { m.sessions.Dec() }
