package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aashrith/task-away-assistant/internal/assistant"
)

// Metrics groups all Prometheus instruments used by the service and owns
// the registry they are exported from.
type Metrics struct {
	registry *prometheus.Registry
	stages   *turnStageWindow

	ActiveSessions    prometheus.Gauge
	Turns             *prometheus.CounterVec
	Intents           *prometheus.CounterVec
	GuardrailRefusals *prometheus.CounterVec
	StoreOps          *prometheus.CounterVec
	WSMessages        *prometheus.CounterVec
	ClassifierLatency prometheus.Histogram
	TurnLatency       prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		stages:   newTurnStageWindow(256),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active chat sessions.",
		}),
		Turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Chat turns by outcome.",
		}, []string{"outcome"}),
		Intents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "Classified intents by name.",
		}, []string{"intent"}),
		GuardrailRefusals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guardrail_refusals_total",
			Help:      "Add requests refused by a guardrail.",
		}, []string{"limit"}),
		StoreOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Task store operations by operation and result.",
		}, []string{"op", "result"}),
		WSMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		ClassifierLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classifier_latency_ms",
			Help:      "Intent classification latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 750, 1000, 1500, 2500, 5000},
		}),
		TurnLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_ms",
			Help:      "End-to-end turn latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2000, 4000, 8000},
		}),
	}
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	ms := float64(d.Microseconds()) / 1000
	m.stages.Observe(stage, ms)
	switch stage {
	case assistant.StageClassify:
		m.ClassifierLatency.Observe(ms)
	case assistant.StageTurnTotal:
		m.TurnLatency.Observe(ms)
	}
}

func (m *Metrics) ObserveTurn(intentName string, outcome assistant.OutcomeType) {
	m.Turns.WithLabelValues(string(outcome)).Inc()
	if intentName != "" {
		m.Intents.WithLabelValues(intentName).Inc()
	}
	m.stages.ObserveIndicator("turn_" + string(outcome))
}

func (m *Metrics) ObserveGuardrail(limit string) {
	m.GuardrailRefusals.WithLabelValues(limit).Inc()
	m.stages.ObserveIndicator("guardrail_" + limit)
}

func (m *Metrics) ObserveWSMessage(direction, messageType string) {
	m.WSMessages.WithLabelValues(direction, messageType).Inc()
}

// StageSnapshot reports the rolling per-stage latency window.
func (m *Metrics) StageSnapshot() TurnStageSnapshot {
	return m.stages.Snapshot()
}

func (m *Metrics) ResetStages() {
	m.stages.Reset()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
