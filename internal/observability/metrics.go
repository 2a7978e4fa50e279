// Package observability exposes the process-wide Prometheus metrics for the
// chat backend.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	chatTurnsTotal *prometheus.CounterVec
	turnDuration   prometheus.Histogram

	activeSessions         prometheus.Gauge
	historyPersistDuration prometheus.Histogram

	catalogRefreshTotal *prometheus.CounterVec
	upstreamCallsTotal  *prometheus.CounterVec

	uploadsTotal prometheus.Counter
	uploadBytes  prometheus.Counter
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
	registry    *prometheus.Registry
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			chatTurnsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chat_turns_total",
					Help: "Total chat turns by outcome.",
				},
				[]string{"status"},
			),
			turnDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "chat_turn_duration_seconds",
					Help:    "End-to-end chat turn duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "active_sessions",
					Help: "Current number of known chat sessions.",
				},
			),
			historyPersistDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "history_persist_duration_seconds",
					Help:    "History snapshot persist duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			catalogRefreshTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "model_catalog_refresh_total",
					Help: "Model catalog refresh attempts by result.",
				},
				[]string{"result"},
			),
			upstreamCallsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "upstream_calls_total",
					Help: "Calls to the completion API by operation and status.",
				},
				[]string{"operation", "status"},
			),
			uploadsTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "uploads_total",
					Help: "Total accepted file uploads.",
				},
			),
			uploadBytes: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "upload_bytes_total",
					Help: "Total bytes accepted through uploads.",
				},
			),
		}

		registry = prometheus.NewRegistry()
		registry.MustRegister(
			m.chatTurnsTotal,
			m.turnDuration,
			m.activeSessions,
			m.historyPersistDuration,
			m.catalogRefreshTotal,
			m.upstreamCallsTotal,
			m.uploadsTotal,
			m.uploadBytes,
		)

		metricsInst = m
	})
	return metricsInst
}

// EnsureRegistered forces metric registration. Safe to call multiple times.
func EnsureRegistered() {
	getMetrics()
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	getMetrics()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// IncChatTurn records a completed chat turn with its outcome.
func IncChatTurn(status string) {
	getMetrics().chatTurnsTotal.WithLabelValues(status).Inc()
}

// RecordTurnDuration records how long a chat turn took.
func RecordTurnDuration(d time.Duration) {
	getMetrics().turnDuration.Observe(d.Seconds())
}

// SetActiveSessions sets the known session count.
func SetActiveSessions(count int) {
	getMetrics().activeSessions.Set(float64(count))
}

// RecordHistoryPersist records a history snapshot write duration.
func RecordHistoryPersist(d time.Duration) {
	getMetrics().historyPersistDuration.Observe(d.Seconds())
}

// IncCatalogRefresh records a model catalog refresh attempt.
func IncCatalogRefresh(result string) {
	getMetrics().catalogRefreshTotal.WithLabelValues(result).Inc()
}

// IncUpstreamCall records a call to the completion API.
func IncUpstreamCall(operation, status string) {
	getMetrics().upstreamCallsTotal.WithLabelValues(operation, status).Inc()
}

// RecordUpload records an accepted upload and its size.
func RecordUpload(bytes int64) {
	m := getMetrics()
	m.uploadsTotal.Inc()
	m.uploadBytes.Add(float64(bytes))
}
