// Package monitor implements the memory-pressure monitor that drives the
// backpressure flag from the availability cache's footprint.
//
// The monitor periodically samples cache occupancy and asserts
// backpressure when the pending/in-flight footprint crosses the high
// threshold, clearing it only once the footprint falls below the low
// threshold. The gap between the two thresholds keeps the flag from
// flapping around a single boundary.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/execgate/internal/bytesize"
	"github.com/marmos91/execgate/internal/logger"
	"github.com/marmos91/execgate/pkg/backpressure"
	"github.com/marmos91/execgate/pkg/cache"
)

// Config holds memory-pressure monitor configuration.
type Config struct {
	// Interval between samples. Default: 1s.
	Interval time.Duration

	// HighThreshold is the dirty-entry count at which backpressure is
	// asserted. Default: 10000.
	HighThreshold int

	// LowThreshold is the dirty-entry count below which backpressure is
	// cleared. Must be <= HighThreshold. Default: HighThreshold / 2.
	LowThreshold int

	// MaxFootprint is an optional ceiling on the cache's in-memory byte
	// footprint. When non-zero, a footprint at or above this size asserts
	// backpressure regardless of the dirty-entry count, and the flag is
	// not cleared until the footprint falls below half the ceiling.
	MaxFootprint bytesize.ByteSize
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.HighThreshold <= 0 {
		c.HighThreshold = 10000
	}
	if c.LowThreshold <= 0 || c.LowThreshold > c.HighThreshold {
		c.LowThreshold = c.HighThreshold / 2
	}
}

// Monitor samples an AvailabilityCache and drives a backpressure Manager.
type Monitor struct {
	cache   *cache.AvailabilityCache
	manager *backpressure.Manager
	config  Config

	mu       sync.Mutex
	started  bool
	stopping bool
	stop     chan struct{}
	stopped  chan struct{}
}

// New creates a monitor. Call Start to begin sampling.
func New(c *cache.AvailabilityCache, manager *backpressure.Manager, config Config) *Monitor {
	config.applyDefaults()
	return &Monitor{
		cache:   c,
		manager: manager,
		config:  config,
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start begins the sampling loop. Idempotent; the loop runs until Stop is
// called or ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	logger.Info("Starting memory-pressure monitor",
		"interval", m.config.Interval.String(),
		"high_threshold", m.config.HighThreshold,
		"low_threshold", m.config.LowThreshold,
	)

	go m.run(ctx)
}

// Stop terminates the sampling loop and waits for it to exit. Idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.started || m.stopping {
		m.mu.Unlock()
		return
	}
	m.stopping = true
	m.mu.Unlock()

	close(m.stop)
	<-m.stopped
	logger.Info("Memory-pressure monitor stopped")
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.stopped)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sample()
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Sample takes one measurement and updates the backpressure flag. Exposed
// for tests and for callers that want measurement on their own schedule.
func (m *Monitor) Sample() {
	stats := m.cache.Stats()
	pending := stats.DirtyEntries
	footprint := bytesize.ByteSize(stats.FootprintBytes)

	overFootprint := m.config.MaxFootprint > 0 && footprint >= m.config.MaxFootprint
	underFootprint := m.config.MaxFootprint == 0 || footprint < m.config.MaxFootprint/2

	switch {
	case pending >= m.config.HighThreshold || overFootprint:
		if m.manager.SetBackpressure(true) {
			logger.Warn("Cache occupancy above high threshold, asserting backpressure",
				logger.KeyDirtyEntries, pending,
				"high_threshold", m.config.HighThreshold,
				"footprint", footprint.String(),
			)
		}
	case pending < m.config.LowThreshold && underFootprint:
		if m.manager.SetBackpressure(false) {
			logger.Info("Cache occupancy below low threshold, clearing backpressure",
				logger.KeyDirtyEntries, pending,
				"low_threshold", m.config.LowThreshold,
			)
		}
	}
	// Between the thresholds the flag keeps its current value.
}
