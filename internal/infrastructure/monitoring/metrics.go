package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, so components can take one optionally.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Walk metrics
	WalkDuration *prometheus.HistogramVec
	WalkEntries  *prometheus.HistogramVec
	Walks        *prometheus.CounterVec

	// Search metrics
	Searches       *prometheus.CounterVec
	SearchDegraded *prometheus.CounterVec

	// Upload metrics
	Uploads       *prometheus.CounterVec
	UploadedBytes prometheus.Counter
	MarkerWrites  *prometheus.CounterVec

	// Auth metrics
	AuthRequests *prometheus.CounterVec
	AuthDuration *prometheus.HistogramVec
	AuthCache    *prometheus.CounterVec
	BreakerState *prometheus.GaugeVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	registry *prometheus.Registry
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds running totals for the health endpoint.
type Snapshot struct {
	TotalRequests    int64   `json:"total_requests"`
	TotalErrors      int64   `json:"total_errors"`
	TotalDuration    float64 `json:"total_duration_seconds"`
	SearchDegraded   int64   `json:"search_degraded"`
	UploadsFailed    int64   `json:"uploads_failed"`
	UploadsPublished int64   `json:"uploads_published"`
}

// NewMetrics creates a collector backed by its own registry, with the Go
// runtime and process collectors attached.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := newMetrics(reg)
	m.registry = reg
	return m
}

// NewMetricsWith registers every metric with reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	durations := []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	sizes := []float64{100, 1000, 10000, 100000, 1000000, 10000000}

	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stagingfs_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stagingfs_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: durations,
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stagingfs_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: sizes,
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stagingfs_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: sizes,
			},
			[]string{"method", "path"},
		),

		WalkDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stagingfs_walk_duration_seconds",
				Help:    "Directory walk duration in seconds",
				Buckets: durations,
			},
			[]string{"mode"},
		),
		WalkEntries: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stagingfs_walk_entries",
				Help:    "Entries returned per directory walk",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
			[]string{"mode"},
		),
		Walks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stagingfs_walks_total",
				Help: "Total number of directory walks by outcome",
			},
			[]string{"mode", "outcome"},
		),

		Searches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stagingfs_searches_total",
				Help: "Total number of searches by outcome",
			},
			[]string{"outcome"},
		),
		SearchDegraded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stagingfs_search_degraded_total",
				Help: "Searches that returned an empty result because of an internal failure",
			},
			[]string{"reason"},
		),

		Uploads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stagingfs_uploads_total",
				Help: "Total number of uploaded files by outcome",
			},
			[]string{"outcome"},
		),
		UploadedBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "stagingfs_uploaded_bytes_total",
				Help: "Bytes published by successful uploads",
			},
		),
		MarkerWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stagingfs_identity_marker_writes_total",
				Help: "Identity marker initialisation attempts by outcome",
			},
			[]string{"outcome"},
		),

		AuthRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stagingfs_auth_requests_total",
				Help: "Credential validations by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		AuthDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stagingfs_auth_duration_seconds",
				Help:    "Credential validation duration in seconds",
				Buckets: durations,
			},
			[]string{"mode"},
		),
		AuthCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stagingfs_auth_cache_total",
				Help: "Session cache lookups by result",
			},
			[]string{"result"},
		),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stagingfs_circuit_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "stagingfs_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}

	return m
}

// Registry returns the registry created by NewMetrics, or nil.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
	m.Uptime.Set(time.Since(m.startTime).Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// ObserveWalk records one Tree Walker call
func (m *Metrics) ObserveWalk(mode string, entries int, duration time.Duration, outcome string) {
	if m == nil {
		return
	}
	m.Walks.WithLabelValues(mode, outcome).Inc()
	m.WalkDuration.WithLabelValues(mode).Observe(duration.Seconds())
	if outcome == "ok" {
		m.WalkEntries.WithLabelValues(mode).Observe(float64(entries))
	}
}

// RecordSearch records a completed search
func (m *Metrics) RecordSearch(outcome string) {
	if m == nil {
		return
	}
	m.Searches.WithLabelValues(outcome).Inc()
}

// IncSearchDegraded records a search that hid an internal failure
func (m *Metrics) IncSearchDegraded(reason string) {
	if m == nil {
		return
	}
	m.SearchDegraded.WithLabelValues(reason).Inc()
	m.mu.Lock()
	m.snapshot.SearchDegraded++
	m.mu.Unlock()
}

// RecordUpload records the outcome of publishing one file
func (m *Metrics) RecordUpload(outcome string, bytes int64) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(outcome).Inc()
	m.mu.Lock()
	if outcome == "ok" {
		m.UploadedBytes.Add(float64(bytes))
		m.snapshot.UploadsPublished++
	} else {
		m.snapshot.UploadsFailed++
	}
	m.mu.Unlock()
}

// IncMarkerWrite records an identity marker initialisation attempt
func (m *Metrics) IncMarkerWrite(outcome string) {
	if m == nil {
		return
	}
	m.MarkerWrites.WithLabelValues(outcome).Inc()
}

// RecordAuth records one credential validation
func (m *Metrics) RecordAuth(mode, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.AuthRequests.WithLabelValues(mode, outcome).Inc()
	m.AuthDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordAuthCache records a session cache lookup
func (m *Metrics) RecordAuthCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.AuthCache.WithLabelValues(result).Inc()
}

// SetBreakerState records a circuit breaker transition
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

// Snapshot returns a copy of the running totals
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
