// Package backpressure throttles the consensus-to-execution handoff when
// the availability cache accumulates too much not-yet-executed work.
//
// The manager tracks a pair of checkpoint watermarks (executed, certified)
// and an externally driven backpressure flag. Its one non-obvious rule is
// suppression: backpressure is bypassed whenever certified <= executed.
// Producing the next certified checkpoint can itself depend on consensus
// commits continuing to flow through the very handler backpressure would
// stall; honoring the flag while execution has caught up to certification
// would deadlock the pipeline against its own throttle.
package backpressure

import (
	"context"
	"fmt"
	"sync"

	"github.com/marmos91/execgate/internal/logger"
	"github.com/marmos91/execgate/internal/telemetry"
	"github.com/marmos91/execgate/pkg/types"
)

// Watermarks is the executed/certified checkpoint pair.
// Invariant: Certified >= Executed always holds system-wide; a checkpoint
// is never executed before it is certified.
type Watermarks struct {
	Executed  types.CheckpointSequenceNumber `json:"executed"`
	Certified types.CheckpointSequenceNumber `json:"certified"`
}

// Metrics collects backpressure manager metrics. Nil is valid (no-op).
type Metrics interface {
	// RecordBackpressure records the current flag value.
	RecordBackpressure(active bool)

	// RecordWatermarks records the current watermark pair.
	RecordWatermarks(executed, certified uint64)

	// CountToggle counts one actual flag change.
	CountToggle()
}

// Manager owns the watermark pair and the backpressure flag.
//
// Thread Safety: safe for concurrent use. One mutex guards all state; a
// closed-and-replaced broadcast channel notifies every subscriber of every
// actual change (no-op updates do not fire it).
type Manager struct {
	metrics Metrics

	mu           sync.Mutex
	watermarks   Watermarks
	backpressure bool
	changed      chan struct{}
}

// New creates a Manager with zero watermarks and backpressure off.
//
// metrics may be nil.
func New(metrics Metrics) *Manager {
	return &Manager{
		metrics: metrics,
		changed: make(chan struct{}),
	}
}

// Watermarks returns a snapshot of the watermark pair.
func (m *Manager) Watermarks() Watermarks {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watermarks
}

// UpdateHighestCertifiedCheckpoint advances the certified watermark to seq
// if it is higher than the current value; lower or equal values are a
// no-op and fire no notification.
func (m *Manager) UpdateHighestCertifiedCheckpoint(seq types.CheckpointSequenceNumber) {
	m.mu.Lock()
	if seq <= m.watermarks.Certified {
		m.mu.Unlock()
		return
	}
	m.watermarks.Certified = seq
	m.notifyLocked()
	executed, certified := m.watermarks.Executed, m.watermarks.Certified
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordWatermarks(uint64(executed), uint64(certified))
	}
	logger.Debug("Certified watermark advanced", logger.CheckpointSeq(uint64(seq)))
}

// UpdateHighestExecutedCheckpoint advances the executed watermark. The
// caller must supply exactly executed+1: checkpoints are executed in
// order, one at a time. Anything else is a programming error and panics
// unconditionally.
func (m *Manager) UpdateHighestExecutedCheckpoint(seq types.CheckpointSequenceNumber) {
	m.mu.Lock()
	if seq != m.watermarks.Executed+1 {
		current := m.watermarks.Executed
		m.mu.Unlock()
		panic(fmt.Sprintf("executed watermark must advance by 1: have %d, got %d", current, seq))
	}
	m.watermarks.Executed = seq
	m.notifyLocked()
	executed, certified := m.watermarks.Executed, m.watermarks.Certified
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordWatermarks(uint64(executed), uint64(certified))
	}
}

// SetBackpressure sets the flag and returns whether the stored value
// actually changed. Idempotent: repeated sets of the same value return
// false and fire no notification.
func (m *Manager) SetBackpressure(active bool) bool {
	m.mu.Lock()
	if m.backpressure == active {
		m.mu.Unlock()
		return false
	}
	m.backpressure = active
	m.notifyLocked()
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordBackpressure(active)
		m.metrics.CountToggle()
	}
	logger.Info("Backpressure changed", logger.KeyBackpressure, active)
	return true
}

// notifyLocked wakes every waiter blocked on the change stream. Closing
// the channel and replacing it gives broadcast semantics: every subscriber
// that captured the old channel observes this change.
func (m *Manager) notifyLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
}

// Subscribe returns a Subscriber view of this manager. Any number of
// subscribers may exist; all of them observe every state change.
func (m *Manager) Subscribe() *Subscriber {
	return &Subscriber{manager: m}
}

// Subscriber is a consumer-side handle on the backpressure state.
type Subscriber struct {
	manager *Manager
}

// IsBackpressureActive reports whether admission should pause right now.
// Instantaneous and non-blocking; applies the suppression rule.
func (s *Subscriber) IsBackpressureActive() bool {
	m := s.manager
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watermarks.Certified <= m.watermarks.Executed {
		return false
	}
	return m.backpressure
}

// AwaitNoBackpressure suspends until it is safe to admit more work: the
// flag is clear, or suppression applies (certified <= executed). Returns
// ctx.Err() if the caller is cancelled first.
//
// Every wakeup re-evaluates both conditions from a fresh snapshot, so a
// subscriber can never miss the change that releases it: the channel it
// blocks on is captured under the same lock as the snapshot.
func (s *Subscriber) AwaitNoBackpressure(ctx context.Context) error {
	m := s.manager
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanAwaitNoBP)
	defer span.End()

	for {
		m.mu.Lock()
		if m.watermarks.Certified <= m.watermarks.Executed || !m.backpressure {
			m.mu.Unlock()
			return nil
		}
		changed := m.changed
		wm := m.watermarks
		m.mu.Unlock()

		telemetry.SetAttributes(ctx,
			telemetry.Executed(uint64(wm.Executed)),
			telemetry.Certified(uint64(wm.Certified)),
		)
		logger.Debug("Waiting for backpressure to clear")
		select {
		case <-changed:
		case <-ctx.Done():
			telemetry.RecordError(ctx, ctx.Err())
			return ctx.Err()
		}
	}
}
