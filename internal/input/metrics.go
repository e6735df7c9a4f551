package input

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// maxLatencySamples is the size of the flush latency ring buffer.
const maxLatencySamples = 1000

// Metrics tracks dispatcher activity. It is safe for concurrent use, so a
// snapshot may be taken from any goroutine while the dispatcher runs.
type Metrics struct {
	// Event counters
	keyPresses       atomic.Uint64
	keyReleases      atomic.Uint64
	ignoredPresses   atomic.Uint64
	hookConsumptions atomic.Uint64
	forcedReleases   atomic.Uint64

	// Combo counters
	comboEvaluations atomic.Uint64
	comboDispatches  atomic.Uint64
	handlerPanics    atomic.Uint64

	// Latency tracking
	mu             sync.RWMutex
	flushLatencies []time.Duration
	latencyIdx     int
	peakLatency    atomic.Int64

	startTime time.Time
	enabled   atomic.Bool
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	m := &Metrics{
		flushLatencies: make([]time.Duration, maxLatencySamples),
		startTime:      time.Now(),
	}
	m.enabled.Store(true)
	return m
}

// SetEnabled enables or disables metrics collection.
func (m *Metrics) SetEnabled(enabled bool) {
	m.enabled.Store(enabled)
}

// IsEnabled returns whether metrics collection is enabled.
func (m *Metrics) IsEnabled() bool {
	return m.enabled.Load()
}

func (m *Metrics) add(c *atomic.Uint64, n uint64) {
	if n == 0 || !m.enabled.Load() {
		return
	}
	c.Add(n)
}

// RecordKeyEvent counts a key event that reached the handlers.
func (m *Metrics) RecordKeyEvent(phase Phase) {
	if phase == PhaseReleased {
		m.add(&m.keyReleases, 1)
		return
	}
	m.add(&m.keyPresses, 1)
}

// RecordIgnoredPress counts a press dropped while the dispatcher was
// inactive.
func (m *Metrics) RecordIgnoredPress() {
	m.add(&m.ignoredPresses, 1)
}

// RecordHookConsumption counts an event consumed by a hook.
func (m *Metrics) RecordHookConsumption() {
	m.add(&m.hookConsumptions, 1)
}

// RecordForcedRelease counts a self-releasing key forced up.
func (m *Metrics) RecordForcedRelease() {
	m.add(&m.forcedReleases, 1)
}

// RecordComboDispatch counts a key event delivered to a combo handler.
func (m *Metrics) RecordComboDispatch() {
	m.add(&m.comboDispatches, 1)
}

// RecordHandlerPanics counts recovered callback panics.
func (m *Metrics) RecordHandlerPanics(n int) {
	if n > 0 {
		m.add(&m.handlerPanics, uint64(n))
	}
}

// RecordEvaluation records one combo evaluation pass and how long it took.
func (m *Metrics) RecordEvaluation(latency time.Duration) {
	if !m.enabled.Load() {
		return
	}

	m.comboEvaluations.Add(1)

	latencyNs := latency.Nanoseconds()
	for {
		current := m.peakLatency.Load()
		if latencyNs <= current {
			break
		}
		if m.peakLatency.CompareAndSwap(current, latencyNs) {
			break
		}
	}

	m.mu.Lock()
	m.flushLatencies[m.latencyIdx] = latency
	m.latencyIdx = (m.latencyIdx + 1) % maxLatencySamples
	m.mu.Unlock()
}

// MetricsSnapshot holds a point-in-time view of metrics.
type MetricsSnapshot struct {
	// Counters
	KeyPresses       uint64
	KeyReleases      uint64
	IgnoredPresses   uint64
	HookConsumptions uint64
	ForcedReleases   uint64
	ComboEvaluations uint64
	ComboDispatches  uint64
	HandlerPanics    uint64

	// Evaluation latency
	AvgLatency  time.Duration
	MaxLatency  time.Duration
	P99Latency  time.Duration
	PeakLatency time.Duration

	Uptime time.Duration
}

// Snapshot returns a point-in-time view of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	latencies := slices.Clone(m.flushLatencies)
	start := m.startTime
	m.mu.RUnlock()

	snap := MetricsSnapshot{
		KeyPresses:       m.keyPresses.Load(),
		KeyReleases:      m.keyReleases.Load(),
		IgnoredPresses:   m.ignoredPresses.Load(),
		HookConsumptions: m.hookConsumptions.Load(),
		ForcedReleases:   m.forcedReleases.Load(),
		ComboEvaluations: m.comboEvaluations.Load(),
		ComboDispatches:  m.comboDispatches.Load(),
		HandlerPanics:    m.handlerPanics.Load(),
		PeakLatency:      time.Duration(m.peakLatency.Load()),
		Uptime:           time.Since(start),
	}
	snap.AvgLatency, snap.MaxLatency, snap.P99Latency = calculateLatencyStats(latencies)
	return snap
}

// calculateLatencyStats computes average, max, and p99 from a slice of latencies.
func calculateLatencyStats(latencies []time.Duration) (avg, maxLat, p99 time.Duration) {
	valid := slices.DeleteFunc(latencies, func(l time.Duration) bool { return l <= 0 })
	if len(valid) == 0 {
		return 0, 0, 0
	}

	var sum time.Duration
	for _, l := range valid {
		sum += l
	}
	avg = sum / time.Duration(len(valid))

	slices.Sort(valid)
	maxLat = valid[len(valid)-1]

	idx := int(float64(len(valid)) * 0.99)
	if idx >= len(valid) {
		idx = len(valid) - 1
	}
	p99 = valid[idx]

	return avg, maxLat, p99
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	for _, c := range []*atomic.Uint64{
		&m.keyPresses, &m.keyReleases, &m.ignoredPresses, &m.hookConsumptions,
		&m.forcedReleases, &m.comboEvaluations, &m.comboDispatches, &m.handlerPanics,
	} {
		c.Store(0)
	}
	m.peakLatency.Store(0)

	m.mu.Lock()
	m.flushLatencies = make([]time.Duration, maxLatencySamples)
	m.latencyIdx = 0
	m.startTime = time.Now()
	m.mu.Unlock()
}

// HealthStatus represents the current health of the dispatcher.
type HealthStatus struct {
	Healthy          bool
	HandlerPanics    uint64
	PeakLatency      time.Duration
	LatencyThreshold time.Duration
	Message          string
}

// HealthCheck returns the current health status.
func (m *Metrics) HealthCheck(latencyThreshold time.Duration) HealthStatus {
	status := HealthStatus{
		Healthy:          true,
		HandlerPanics:    m.handlerPanics.Load(),
		PeakLatency:      time.Duration(m.peakLatency.Load()),
		LatencyThreshold: latencyThreshold,
	}

	switch {
	case status.HandlerPanics > 0:
		status.Healthy = false
		status.Message = "handler panics recovered"
	case status.PeakLatency > latencyThreshold:
		status.Healthy = false
		status.Message = "latency threshold exceeded"
	default:
		status.Message = "healthy"
	}

	return status
}

// Timer measures one combo evaluation pass.
type Timer struct {
	start   time.Time
	metrics *Metrics
}

// StartEvaluationTimer starts a timer for a combo evaluation pass.
func (m *Metrics) StartEvaluationTimer() *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: m,
	}
}

// Stop stops the timer and records the evaluation.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	t.metrics.RecordEvaluation(elapsed)
	return elapsed
}
