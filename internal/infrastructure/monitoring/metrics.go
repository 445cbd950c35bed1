package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Pipeline metrics
	GenerationsTotal *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec

	// Model metrics
	ModelCalls    *prometheus.CounterVec
	ModelDuration *prometheus.HistogramVec

	// Broker metrics
	BrokerCalls       *prometheus.CounterVec
	ToolInvocations   *prometheus.CounterVec
	AuthRequiredTotal prometheus.Counter

	// Bridge metrics
	MountsActive   prometheus.Gauge
	BridgeMessages *prometheus.CounterVec

	// Session metrics
	SessionsActive prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
	registry  *prometheus.Registry

	// Snapshot for JSON API
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current metric values for the JSON health endpoint
type Snapshot struct {
	TotalRequests    int64
	TotalErrors      int64
	TotalGenerations int64
	ActiveSessions   int64
	ActiveMounts     int64
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry:  registry,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "casper_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "casper_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method", "path"},
		),

		GenerationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "casper_generations_total",
				Help: "Total number of generation requests by intent and outcome",
			},
			[]string{"intent", "status"},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "casper_pipeline_stage_duration_seconds",
				Help:    "Duration of each pipeline stage",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),

		ModelCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "casper_model_calls_total",
				Help: "Total number of model-provider calls",
			},
			[]string{"model", "status"},
		),
		ModelDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "casper_model_call_duration_seconds",
				Help:    "Model call duration in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"model"},
		),

		BrokerCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "casper_broker_calls_total",
				Help: "Total number of tool-broker calls",
			},
			[]string{"operation", "status"},
		),
		ToolInvocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "casper_tool_invocations_total",
				Help: "Total number of tool action invocations",
			},
			[]string{"action", "status"},
		),
		AuthRequiredTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "casper_auth_required_total",
				Help: "Total number of requests halted pending authorization",
			},
		),

		MountsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "casper_bridge_mounts_active",
				Help: "Number of live bridge mounts",
			},
		),
		BridgeMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "casper_bridge_messages_total",
				Help: "Total number of bridge messages by type",
			},
			[]string{"type"},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "casper_sessions_active",
				Help: "Number of active chat sessions",
			},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "casper_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "casper_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}

	go m.updateUptime()

	return m
}

// Handler exposes the scrape endpoint for this collector's registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordGeneration records a completed generation request
func (m *Metrics) RecordGeneration(intent, status string) {
	m.GenerationsTotal.WithLabelValues(intent, status).Inc()

	m.mu.Lock()
	m.snapshot.TotalGenerations++
	m.mu.Unlock()
}

// RecordStage records the duration of one pipeline stage
func (m *Metrics) RecordStage(stage string, duration time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordModelCall records a model-provider call
func (m *Metrics) RecordModelCall(model, status string, duration time.Duration) {
	m.ModelCalls.WithLabelValues(model, status).Inc()
	m.ModelDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordBrokerCall records a tool-broker call
func (m *Metrics) RecordBrokerCall(operation, status string) {
	m.BrokerCalls.WithLabelValues(operation, status).Inc()
}

// RecordToolInvocation records a tool action invocation
func (m *Metrics) RecordToolInvocation(action, status string) {
	m.ToolInvocations.WithLabelValues(action, status).Inc()
}

// IncAuthRequired increments the pending-authorization counter
func (m *Metrics) IncAuthRequired() {
	m.AuthRequiredTotal.Inc()
}

// RecordBridgeMessage records a bridge message by type
func (m *Metrics) RecordBridgeMessage(msgType string) {
	m.BridgeMessages.WithLabelValues(msgType).Inc()
}

// SetMountsActive sets the number of live bridge mounts
func (m *Metrics) SetMountsActive(count int) {
	m.MountsActive.Set(float64(count))

	m.mu.Lock()
	m.snapshot.ActiveMounts = int64(count)
	m.mu.Unlock()
}

// SetSessionsActive sets the number of active chat sessions
func (m *Metrics) SetSessionsActive(count int) {
	m.SessionsActive.Set(float64(count))

	m.mu.Lock()
	m.snapshot.ActiveSessions = int64(count)
	m.mu.Unlock()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}

// GetSnapshot returns a copy of the current snapshot values
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
