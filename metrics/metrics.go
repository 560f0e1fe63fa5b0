// Package metrics holds the Prometheus collectors of the capture pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "pageclip"

// ResultOK labels successful operations in the code label.
const ResultOK = "OK"

// Metrics is the set of pipeline collectors.
type Metrics struct {
	// Orchestrator
	TriggersTotal    *prometheus.CounterVec
	ExtractionsTotal *prometheus.CounterVec
	Sessions         prometheus.Gauge

	// Delivery
	DeliveryAttemptsTotal *prometheus.CounterVec
	DeliveryOutcomesTotal *prometheus.CounterVec
	RateWaitSeconds       prometheus.Histogram
}

// New creates and registers every collector on reg. A nil reg means the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	m := &Metrics{}
	m.initOrchestrator(factory)
	m.initDelivery(factory)
	return m
}

func (m *Metrics) initOrchestrator(factory promauto.Factory) {
	m.TriggersTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "triggers_total",
			Help:      "Capture triggers by kind and result code",
		},
		[]string{"kind", "code"},
	)

	m.ExtractionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "extractions_total",
			Help:      "Extractions by adapter and result code",
		},
		[]string{"adapter", "code"},
	)

	m.Sessions = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "sessions",
			Help:      "Page contexts with a live orchestrator",
		},
	)
}

func (m *Metrics) initDelivery(factory promauto.Factory) {
	m.DeliveryAttemptsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "delivery_attempts_total",
			Help:      "Sink POST attempts by result",
		},
		[]string{"result"},
	)

	m.DeliveryOutcomesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "delivery_outcomes_total",
			Help:      "Terminal delivery outcomes by result code",
		},
		[]string{"code"},
	)

	m.RateWaitSeconds = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "rate_wait_seconds",
			Help:      "Time spent waiting for a delivery token",
			Buckets:   []float64{0, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		},
	)
}

// Trigger counts one trigger.
func (m *Metrics) Trigger(kind, code string) {
	if m == nil {
		return
	}
	m.TriggersTotal.WithLabelValues(kind, code).Inc()
}

// Extraction counts one adapter run.
func (m *Metrics) Extraction(adapter, code string) {
	if m == nil {
		return
	}
	m.ExtractionsTotal.WithLabelValues(adapter, code).Inc()
}

// SetSessions records the live session count.
func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.Sessions.Set(float64(n))
}

// DeliveryAttempt counts one sink POST; result is "success", "retryable"
// or "permanent".
func (m *Metrics) DeliveryAttempt(result string) {
	if m == nil {
		return
	}
	m.DeliveryAttemptsTotal.WithLabelValues(result).Inc()
}

// DeliveryOutcome counts one terminal delivery outcome.
func (m *Metrics) DeliveryOutcome(code string) {
	if m == nil {
		return
	}
	m.DeliveryOutcomesTotal.WithLabelValues(code).Inc()
}

// RateWait observes a token wait.
func (m *Metrics) RateWait(d time.Duration) {
	if m == nil {
		return
	}
	m.RateWaitSeconds.Observe(d.Seconds())
}
