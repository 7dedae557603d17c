package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Pipeline metrics
	StageDuration *prometheus.HistogramVec
	Outcomes      *prometheus.CounterVec
	Runs          *prometheus.CounterVec
	RunDuration   *prometheus.HistogramVec

	// Live session metrics
	SessionsActive prometheus.Gauge
	WSMessages     *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	// Snapshot for the JSON stats API
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current metric values for the JSON stats API
type Snapshot struct {
	TotalRequests  int64            `json:"totalRequests"`
	TotalErrors    int64            `json:"totalErrors"`
	ActiveSessions int64            `json:"activeSessions"`
	Outcomes       map[string]int64 `json:"outcomes"`
	AvgRequestMs   float64          `json:"avgRequestMs"`
	UptimeSeconds  float64          `json:"uptimeSeconds"`

	totalDuration float64
}

// NewMetrics creates a metrics collector registered with reg. A nil reg
// uses the default Prometheus registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),
		snapshot:  Snapshot{Outcomes: make(map[string]int64)},

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "preview_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "preview_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "preview_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),

		// Pipeline metrics
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "preview_stage_duration_seconds",
				Help:    "Duration of each preview pipeline stage in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2},
			},
			[]string{"stage"},
		),
		Outcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_outcomes_total",
				Help: "Pipeline attempts by outcome (mounted or error kind)",
			},
			[]string{"outcome"},
		),
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_runs_total",
				Help: "Pipeline runs by entry point and status",
			},
			[]string{"source", "status"},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "preview_run_duration_seconds",
				Help:    "End-to-end pipeline run duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"source"},
		),

		// Live session metrics
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "preview_sessions_active",
				Help: "Number of live preview sessions",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "preview_uptime_seconds",
			Help: "Service uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// ObserveStage records the duration of one pipeline stage
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordOutcome counts a pipeline attempt by outcome
func (m *Metrics) RecordOutcome(outcome string) {
	m.Outcomes.WithLabelValues(outcome).Inc()

	m.mu.Lock()
	m.snapshot.Outcomes[outcome]++
	m.mu.Unlock()
}

// RecordRun records one end-to-end pipeline run
func (m *Metrics) RecordRun(source, status string, duration time.Duration) {
	m.Runs.WithLabelValues(source, status).Inc()
	m.RunDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncSessions marks a live session as opened
func (m *Metrics) IncSessions() {
	m.SessionsActive.Inc()
	m.mu.Lock()
	m.snapshot.ActiveSessions++
	m.mu.Unlock()
}

// DecSessions marks a live session as closed
func (m *Metrics) DecSessions() {
	m.SessionsActive.Dec()
	m.mu.Lock()
	m.snapshot.ActiveSessions--
	m.mu.Unlock()
}

// Snapshot returns a copy of the current counters
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := m.snapshot
	snap.Outcomes = make(map[string]int64, len(m.snapshot.Outcomes))
	for k, v := range m.snapshot.Outcomes {
		snap.Outcomes[k] = v
	}
	if snap.TotalRequests > 0 {
		snap.AvgRequestMs = snap.totalDuration / float64(snap.TotalRequests) * 1000
	}
	snap.UptimeSeconds = time.Since(m.startTime).Seconds()
	return snap
}
