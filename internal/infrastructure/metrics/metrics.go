// Package metrics exposes Prometheus instruments for the scene engine and
// the HTTP API.
//
// Each Metrics owns its registry so tests and multiple managers in one
// process never collide on the default registerer.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/showctl/internal/automation"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "showctl"

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	registry *prometheus.Registry

	SceneState     *prometheus.GaugeVec
	Transitions    *prometheus.CounterVec
	Settlements    *prometheus.CounterVec
	ActionDuration *prometheus.HistogramVec
	HTTPRequests   *prometheus.CounterVec
	WSClients      prometheus.Gauge
}

// New creates the instruments on a fresh registry, including the Go
// runtime and process collectors.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		SceneState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scene_state",
			Help:      "1 for the state each scene is currently in, 0 otherwise.",
		}, []string{"scene", "state"}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scene_transitions_total",
			Help:      "Scene state transitions by target state.",
		}, []string{"scene", "state"}),
		Settlements: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_settlements_total",
			Help:      "Settled actions by stop reason.",
		}, []string{"scene", "reason"}),
		ActionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_ms",
			Help:      "Run time of actions that started, in milliseconds.",
			Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 15000, 60000, 300000},
		}, []string{"scene"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		WSClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Connected WebSocket clients.",
		}),
	}
}

// Registry returns the registry backing the instruments.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveState records a scene state transition. It has the shape of an
// automation.StateListener.
func (m *Metrics) ObserveState(change automation.StateChange) {
	for _, state := range automation.AllSceneStates() {
		value := 0.0
		if state == change.To {
			value = 1
		}
		m.SceneState.WithLabelValues(change.SceneName, string(state)).Set(value)
	}
	m.Transitions.WithLabelValues(change.SceneName, string(change.To)).Inc()

	// Export zero counts from a scene's first start so rate() has a baseline.
	if change.From == automation.SceneStopped {
		for _, reason := range automation.AllStopReasons() {
			m.Settlements.WithLabelValues(change.SceneName, string(reason))
		}
	}
}

// ObserveSettlement records a settled action. It has the shape of an
// automation.SettlementListener.
func (m *Metrics) ObserveSettlement(s automation.Settlement) {
	m.Settlements.WithLabelValues(s.SceneName, string(s.Reason)).Inc()
	if !s.StartedAt.IsZero() {
		m.ActionDuration.WithLabelValues(s.SceneName).Observe(float64(s.DurationMS))
	}
}

// ObserveRequest counts one API request.
func (m *Metrics) ObserveRequest(method, route string, status int) {
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Attach registers the metrics as listeners on the manager and returns a
// function that detaches them.
func (m *Metrics) Attach(manager *automation.Manager) func() {
	unsubState := manager.Subscribe(m.ObserveState)
	unsubSettle := manager.OnSettlement(m.ObserveSettlement)
	return func() {
		unsubState()
		unsubSettle()
	}
}
