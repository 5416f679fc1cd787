package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Viewer metrics
	ScreensActive      prometheus.Gauge
	SessionsTotal      prometheus.Counter
	PhaseTransitions   *prometheus.CounterVec
	StaleResults       prometheus.Counter
	BridgeEvents       *prometheus.CounterVec
	SandboxInstances   *prometheus.GaugeVec
	SandboxScriptTimer *prometheus.HistogramVec

	// Provisioning metrics
	ProvisionDuration *prometheus.HistogramVec
	ProvisionFailures *prometheus.CounterVec
	ListenersActive   prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec
}

// NewMetrics creates a metrics collector backed by its own registry, so
// several servers (or tests) in one process never collide on registration.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "photosphere_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "photosphere_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "photosphere_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		ScreensActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "photosphere_screens_active",
				Help: "Number of mounted viewer screens",
			},
		),
		SessionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "photosphere_sessions_total",
				Help: "Total number of viewer sessions started",
			},
		),
		PhaseTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "photosphere_phase_transitions_total",
				Help: "Viewer session phase transitions",
			},
			[]string{"from", "to"},
		),
		StaleResults: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "photosphere_stale_results_total",
				Help: "Provisioning results and sandbox events discarded because their session was superseded",
			},
		),
		BridgeEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "photosphere_bridge_events_total",
				Help: "Outbound sandbox events by kind",
			},
			[]string{"kind"},
		),
		SandboxInstances: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "photosphere_sandbox_instances",
				Help: "Live sandbox instances by surface",
			},
			[]string{"surface"},
		),
		SandboxScriptTimer: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "photosphere_sandbox_script_seconds",
				Help:    "Headless sandbox script execution time",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"stage"},
		),

		ProvisionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "photosphere_provision_duration_seconds",
				Help:    "Provisioning operation duration in seconds",
				Buckets: []float64{.001, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"op"},
		),
		ProvisionFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "photosphere_provision_failures_total",
				Help: "Provisioning failures by operation",
			},
			[]string{"op"},
		),
		ListenersActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "photosphere_asset_listeners_active",
				Help: "Running local asset listeners",
			},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "photosphere_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "photosphere_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction"},
		),
	}
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer returns the underlying registry for inspection in tests
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// All recorders below are nil-safe so components can run without metrics.

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, respSize int64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
}

// RecordTransition records a session phase change
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.PhaseTransitions.WithLabelValues(from, to).Inc()
}

// IncSessions increments the sessions counter
func (m *Metrics) IncSessions() {
	if m == nil {
		return
	}
	m.SessionsTotal.Inc()
}

// IncStale records a discarded stale result
func (m *Metrics) IncStale() {
	if m == nil {
		return
	}
	m.StaleResults.Inc()
}

// RecordBridgeEvent records an outbound sandbox event
func (m *Metrics) RecordBridgeEvent(kind string) {
	if m == nil {
		return
	}
	m.BridgeEvents.WithLabelValues(kind).Inc()
}

// SetScreensActive sets the number of mounted screens
func (m *Metrics) SetScreensActive(count int) {
	if m == nil {
		return
	}
	m.ScreensActive.Set(float64(count))
}

// AddSandboxInstances adjusts the live instance gauge for a surface
func (m *Metrics) AddSandboxInstances(surface string, delta float64) {
	if m == nil {
		return
	}
	m.SandboxInstances.WithLabelValues(surface).Add(delta)
}

// ObserveScript records headless script execution time
func (m *Metrics) ObserveScript(stage string, duration time.Duration) {
	if m == nil {
		return
	}
	m.SandboxScriptTimer.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordProvision records a provisioning operation outcome
func (m *Metrics) RecordProvision(op string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.ProvisionDuration.WithLabelValues(op).Observe(duration.Seconds())
	if err != nil {
		m.ProvisionFailures.WithLabelValues(op).Inc()
	}
}

// AddListeners adjusts the running listener gauge
func (m *Metrics) AddListeners(delta float64) {
	if m == nil {
		return
	}
	m.ListenersActive.Add(delta)
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}
