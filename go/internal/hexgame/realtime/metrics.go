package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/hexfort/go/clients/authority"
	"github.com/mcdev12/hexfort/go/internal/hexgame/events"
)

// MetricsCollector defines the interface for collecting session metrics
type MetricsCollector interface {
	RecordEventProcessed(eventType string, success bool)
	RecordSubmission(kind events.MoveKind, accepted bool, duration time.Duration)
	RecordLocalRejection(reason string)
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed
type NoOpMetricsCollector struct{}

func (n *NoOpMetricsCollector) RecordEventProcessed(eventType string, success bool) {}
func (n *NoOpMetricsCollector) RecordSubmission(kind events.MoveKind, accepted bool, duration time.Duration) {
}
func (n *NoOpMetricsCollector) RecordLocalRejection(reason string) {}

// MetricsSnapshot is a point-in-time copy of CounterMetrics.
type MetricsSnapshot struct {
	EventsProcessed   map[string]uint64 `json:"events_processed"`
	EventsDropped     map[string]uint64 `json:"events_dropped"`
	MovesAccepted     uint64            `json:"moves_accepted"`
	MovesRejected     uint64            `json:"moves_rejected"`
	LocalRejections   uint64            `json:"local_rejections"`
	LastSubmitLatency time.Duration     `json:"last_submit_latency_ns"`
}

// CounterMetrics keeps in-memory counters. It is safe for concurrent use.
type CounterMetrics struct {
	mu   sync.Mutex
	snap MetricsSnapshot
}

func NewCounterMetrics() *CounterMetrics {
	return &CounterMetrics{snap: MetricsSnapshot{
		EventsProcessed: make(map[string]uint64),
		EventsDropped:   make(map[string]uint64),
	}}
}

func (m *CounterMetrics) RecordEventProcessed(eventType string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.snap.EventsProcessed[eventType]++
	} else {
		m.snap.EventsDropped[eventType]++
	}
}

func (m *CounterMetrics) RecordSubmission(kind events.MoveKind, accepted bool, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if accepted {
		m.snap.MovesAccepted++
	} else {
		m.snap.MovesRejected++
	}
	m.snap.LastSubmitLatency = duration
}

func (m *CounterMetrics) RecordLocalRejection(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.LocalRejections++
}

// Snapshot returns a copy of the counters.
func (m *CounterMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.snap
	out.EventsProcessed = make(map[string]uint64, len(m.snap.EventsProcessed))
	for k, v := range m.snap.EventsProcessed {
		out.EventsProcessed[k] = v
	}
	out.EventsDropped = make(map[string]uint64, len(m.snap.EventsDropped))
	for k, v := range m.snap.EventsDropped {
		out.EventsDropped[k] = v
	}
	return out
}

// MetricSubmitter wraps a MoveSubmitter with metrics collection
type MetricSubmitter struct {
	submitter MoveSubmitter
	metrics   MetricsCollector
	clock     clockwork.Clock
}

func NewMetricSubmitter(submitter MoveSubmitter, metrics MetricsCollector, clock clockwork.Clock) *MetricSubmitter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MetricSubmitter{
		submitter: submitter,
		metrics:   metrics,
		clock:     clock,
	}
}

func (s *MetricSubmitter) SubmitMove(ctx context.Context, req authority.MoveRequest) error {
	start := s.clock.Now()

	err := s.submitter.SubmitMove(ctx, req)

	s.metrics.RecordSubmission(req.MoveType, err == nil, s.clock.Since(start))
	return err
}
