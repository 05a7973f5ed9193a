package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the registry. Every method is safe
// on a nil receiver so components can run without instrumentation.
type Metrics struct {
	Calls          *prometheus.CounterVec
	CallDuration   *prometheus.HistogramVec
	EventsAppended *prometheus.CounterVec
	SinkFailures   *prometheus.CounterVec
	BlocksMined    prometheus.Counter
	ChainHeight    prometheus.Gauge
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers on reg. Tests pass a fresh prometheus.NewRegistry.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Calls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_registry_calls_total",
			Help: "Registry calls by operation and result code",
		}, []string{"operation", "code"}),
		CallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "identity_registry_call_duration_seconds",
			Help:    "Registry call latency by operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		EventsAppended: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_registry_events_appended_total",
			Help: "Events appended to the event log by type",
		}, []string{"type"}),
		SinkFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_registry_sink_failures_total",
			Help: "Failed post-commit event publications by sink",
		}, []string{"sink"}),
		BlocksMined: factory.NewCounter(prometheus.CounterOpts{
			Name: "identity_registry_blocks_mined_total",
			Help: "Blocks applied by the ledger host",
		}),
		ChainHeight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "identity_registry_chain_height",
			Help: "Current ledger height",
		}),
	}
}

// ObserveCall records one call outcome. code is "ok" for accepted calls.
func (m *Metrics) ObserveCall(operation, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.Calls.WithLabelValues(operation, code).Inc()
	m.CallDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Metrics) IncrementEventsAppended(eventType string) {
	if m == nil {
		return
	}
	m.EventsAppended.WithLabelValues(eventType).Inc()
}

func (m *Metrics) IncrementSinkFailures(sink string) {
	if m == nil {
		return
	}
	m.SinkFailures.WithLabelValues(sink).Inc()
}

// ObserveBlock records a mined block at height.
func (m *Metrics) ObserveBlock(height uint64) {
	if m == nil {
		return
	}
	m.BlocksMined.Inc()
	m.ChainHeight.Set(float64(height))
}
