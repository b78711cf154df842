// Package metrics provides Prometheus metrics for the campaign analytics pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the pipeline and the API server.
type Metrics struct {
	// Run metrics
	RunsCompleted *prometheus.CounterVec
	RunsSkipped   *prometheus.CounterVec
	RunsFailed    *prometheus.CounterVec

	// Row metrics
	RowsRead     *prometheus.CounterVec
	RowsEmitted  *prometheus.CounterVec
	RowsFiltered *prometheus.CounterVec

	// Normalization metrics
	CoercionFallbacks  *prometheus.CounterVec
	UnknownCompanySize *prometheus.CounterVec

	// Timing metrics
	IngestDuration *prometheus.HistogramVec

	// Dataset metrics
	DatasetRows  *prometheus.GaugeVec
	DatasetBytes *prometheus.GaugeVec

	// Build info
	BuildInfo *prometheus.GaugeVec

	// Serving metrics
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	ActiveSessions    prometheus.Gauge
	SessionsExpired   prometheus.Counter
	NarrativeRequests *prometheus.CounterVec
}

var defaultMetrics *Metrics

// Init initializes the metrics package with global metrics.
// Call this once at startup.
func Init(namespace string) *Metrics {
	if namespace == "" {
		namespace = "campaignlens"
	}

	m := &Metrics{
		RunsCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of ingest runs that published a dataset",
			},
			[]string{"dataset", "version"},
		),
		RunsSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_skipped_total",
				Help:      "Total number of ingest runs skipped (source unchanged)",
			},
			[]string{"dataset", "version"},
		),
		RunsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_failed_total",
				Help:      "Total number of ingest runs that failed",
			},
			[]string{"dataset", "version"},
		),
		RowsRead: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_read_total",
				Help:      "Total number of raw rows read from the source",
			},
			[]string{"dataset"},
		),
		RowsEmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_emitted_total",
				Help:      "Total number of normalized rows written to the dataset",
			},
			[]string{"dataset"},
		),
		RowsFiltered: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_filtered_total",
				Help:      "Total number of rows dropped by the denylist filter",
			},
			[]string{"dataset"},
		),
		CoercionFallbacks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "coercion_fallbacks_total",
				Help:      "Total number of numeric fields that failed to parse and fell back to zero",
			},
			[]string{"dataset", "field"},
		),
		UnknownCompanySize: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unknown_company_size_total",
				Help:      "Total number of rows whose company size matched no rule",
			},
			[]string{"dataset"},
		),
		IngestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ingest_duration_seconds",
				Help:      "Total time for one ingest run (read + normalize + publish)",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
			[]string{"dataset", "version"},
		),
		DatasetRows: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dataset_rows",
				Help:      "Row count of the last published dataset",
			},
			[]string{"dataset", "version"},
		),
		DatasetBytes: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dataset_bytes",
				Help:      "Byte size of the last published dataset",
			},
			[]string{"dataset", "version"},
		),
		BuildInfo: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "build_info",
				Help:      "Build information, value is always 1",
			},
			[]string{"version", "git_sha"},
		),
		HTTPRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests served",
			},
			[]string{"route", "method", "status"},
		),
		HTTPDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
			[]string{"route"},
		),
		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Current number of live analysis sessions",
			},
		),
		SessionsExpired: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_expired_total",
				Help:      "Total number of sessions reaped after TTL expiry",
			},
		),
		NarrativeRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "narrative_requests_total",
				Help:      "Total number of narrative generation requests by outcome",
			},
			[]string{"status"},
		),
	}

	defaultMetrics = m
	return m
}

// Get returns the global metrics instance.
// Returns nil if Init has not been called.
func Get() *Metrics {
	return defaultMetrics
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Labels is a convenience type for metric labels.
type Labels struct {
	Dataset string
	Version string
	Field   string
	Route   string
	Method  string
	Status  string
}

// IncRunsCompleted increments the completed runs counter.
func (m *Metrics) IncRunsCompleted(l Labels) {
	m.RunsCompleted.WithLabelValues(l.Dataset, l.Version).Inc()
}

// IncRunsSkipped increments the skipped runs counter.
func (m *Metrics) IncRunsSkipped(l Labels) {
	m.RunsSkipped.WithLabelValues(l.Dataset, l.Version).Inc()
}

// IncRunsFailed increments the failed runs counter.
func (m *Metrics) IncRunsFailed(l Labels) {
	m.RunsFailed.WithLabelValues(l.Dataset, l.Version).Inc()
}

// AddRowsRead adds to the raw rows read counter.
func (m *Metrics) AddRowsRead(l Labels, count float64) {
	m.RowsRead.WithLabelValues(l.Dataset).Add(count)
}

// AddRowsEmitted adds to the normalized rows counter.
func (m *Metrics) AddRowsEmitted(l Labels, count float64) {
	m.RowsEmitted.WithLabelValues(l.Dataset).Add(count)
}

// AddRowsFiltered adds to the filtered rows counter.
func (m *Metrics) AddRowsFiltered(l Labels, count float64) {
	m.RowsFiltered.WithLabelValues(l.Dataset).Add(count)
}

// AddCoercionFallbacks adds to the coercion fallback counter for a field.
func (m *Metrics) AddCoercionFallbacks(l Labels, count float64) {
	m.CoercionFallbacks.WithLabelValues(l.Dataset, l.Field).Add(count)
}

// AddUnknownCompanySize adds to the unmatched company size counter.
func (m *Metrics) AddUnknownCompanySize(l Labels, count float64) {
	m.UnknownCompanySize.WithLabelValues(l.Dataset).Add(count)
}

// ObserveIngestDuration records the total run time.
func (m *Metrics) ObserveIngestDuration(l Labels, seconds float64) {
	m.IngestDuration.WithLabelValues(l.Dataset, l.Version).Observe(seconds)
}

// SetDatasetRows sets the published dataset row count.
func (m *Metrics) SetDatasetRows(l Labels, rows float64) {
	m.DatasetRows.WithLabelValues(l.Dataset, l.Version).Set(rows)
}

// SetDatasetBytes sets the published dataset byte size.
func (m *Metrics) SetDatasetBytes(l Labels, bytes float64) {
	m.DatasetBytes.WithLabelValues(l.Dataset, l.Version).Set(bytes)
}

// SetBuildInfo records the running build.
func (m *Metrics) SetBuildInfo(version, gitSHA string) {
	m.BuildInfo.WithLabelValues(version, gitSHA).Set(1)
}

// IncHTTPRequests increments the request counter.
func (m *Metrics) IncHTTPRequests(l Labels) {
	m.HTTPRequests.WithLabelValues(l.Route, l.Method, l.Status).Inc()
}

// ObserveHTTPDuration records request latency for a route.
func (m *Metrics) ObserveHTTPDuration(l Labels, seconds float64) {
	m.HTTPDuration.WithLabelValues(l.Route).Observe(seconds)
}

// SetActiveSessions sets the live session count.
func (m *Metrics) SetActiveSessions(count float64) {
	m.ActiveSessions.Set(count)
}

// AddSessionsExpired adds to the expired sessions counter.
func (m *Metrics) AddSessionsExpired(count float64) {
	m.SessionsExpired.Add(count)
}

// IncNarrativeRequests increments the narrative request counter by outcome.
func (m *Metrics) IncNarrativeRequests(status string) {
	m.NarrativeRequests.WithLabelValues(status).Inc()
}
