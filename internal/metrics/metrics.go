// Package metrics provides Prometheus metrics for the broker and relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "voicewire"

// Forwarding direction labels.
const (
	DirectionToUpstream = "to_upstream"
	DirectionToClient   = "to_client"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Broker metrics
	SessionsCreated       prometheus.Counter
	SessionCreateFailures *prometheus.CounterVec
	SlotsPending          prometheus.Gauge
	SlotsSwept            prometheus.Counter

	// Relay metrics
	PairsActive          prometheus.Gauge
	PairsTotal           prometheus.Counter
	PairDuration         prometheus.Histogram
	InvalidSlotRejects   prometheus.Counter
	UpstreamDialFailures prometheus.Counter
	FramesForwarded      *prometheus.CounterVec
	BytesForwarded       *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total number of broker sessions created",
		}),
		SessionCreateFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_create_failures_total",
			Help:      "Total number of failed session creations",
		}, []string{"reason"}),
		SlotsPending: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "slots_pending",
			Help:      "Number of relay slots waiting for a claim",
		}),
		SlotsSwept: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slots_swept_total",
			Help:      "Total number of expired relay slots evicted by the sweeper",
		}),

		PairsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_pairs_active",
			Help:      "Number of currently open relay pairs",
		}),
		PairsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_pairs_total",
			Help:      "Total number of relay pairs opened",
		}),
		PairDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relay_pair_duration_seconds",
			Help:      "Lifetime of relay pairs in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		}),
		InvalidSlotRejects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_slot_rejects_total",
			Help:      "Total number of relay connections rejected for an unknown connection id",
		}),
		UpstreamDialFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_dial_failures_total",
			Help:      "Total number of failed upstream WebSocket dials",
		}),
		FramesForwarded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_forwarded_total",
			Help:      "Total number of WebSocket messages forwarded",
		}, []string{"direction"}),
		BytesForwarded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_forwarded_total",
			Help:      "Total payload bytes forwarded",
		}, []string{"direction"}),
	}
}

// RecordSessionCreated records a successful session creation.
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
}

// RecordSessionCreateFailure records a failed session creation.
func (m *Metrics) RecordSessionCreateFailure(reason string) {
	m.SessionCreateFailures.WithLabelValues(reason).Inc()
}

// SetSlotsPending updates the pending-slot gauge.
func (m *Metrics) SetSlotsPending(n int) {
	m.SlotsPending.Set(float64(n))
}

// RecordSlotsSwept records slots evicted by a sweep run.
func (m *Metrics) RecordSlotsSwept(n int) {
	m.SlotsSwept.Add(float64(n))
}

// RecordPairStart records a relay pair opening.
func (m *Metrics) RecordPairStart() {
	m.PairsTotal.Inc()
	m.PairsActive.Inc()
}

// RecordPairEnd records a relay pair closing.
func (m *Metrics) RecordPairEnd(durationSeconds float64) {
	m.PairsActive.Dec()
	m.PairDuration.Observe(durationSeconds)
}

// RecordInvalidSlot records a rejected claim.
func (m *Metrics) RecordInvalidSlot() {
	m.InvalidSlotRejects.Inc()
}

// RecordUpstreamDialFailure records a failed upstream dial.
func (m *Metrics) RecordUpstreamDialFailure() {
	m.UpstreamDialFailures.Inc()
}

// RecordForward records one forwarded message and its payload size.
func (m *Metrics) RecordForward(direction string, payloadBytes int) {
	m.FramesForwarded.WithLabelValues(direction).Inc()
	m.BytesForwarded.WithLabelValues(direction).Add(float64(payloadBytes))
}
