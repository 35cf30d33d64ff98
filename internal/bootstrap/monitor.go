package bootstrap

import (
	"iter"
	"sync"
	"time"
)

// Measurement is the timing record of one (component, operation) pair.
type Measurement struct {
	Component string        `json:"component"`
	Operation string        `json:"operation"`
	Start     time.Time     `json:"start"`
	End       time.Time     `json:"end,omitzero"`
	Duration  time.Duration `json:"duration"`
	Complete  bool          `json:"complete"`
}

// DurationMs returns the duration in milliseconds, or -1 when the
// measurement was never ended.
func (m Measurement) DurationMs() float64 {
	if !m.Complete {
		return -1
	}
	return float64(m.Duration) / float64(time.Millisecond)
}

type measurementKey struct {
	component string
	operation string
}

// PerformanceMonitor times named operations.
//
// Timing is best effort: ending an operation that was never started is a
// no-op, and nothing here ever returns an error or panics. Starting an
// operation again replaces the previous entry for the same key but keeps its
// position in iteration order.
type PerformanceMonitor struct {
	mu      sync.Mutex
	now     func() time.Time
	order   []measurementKey
	entries map[measurementKey]*Measurement
}

// NewPerformanceMonitor returns an empty monitor.
func NewPerformanceMonitor() *PerformanceMonitor {
	return &PerformanceMonitor{
		now:     time.Now,
		entries: make(map[measurementKey]*Measurement),
	}
}

// StartMeasurement records the start time of component/operation.
func (m *PerformanceMonitor) StartMeasurement(component, operation string) {
	k := measurementKey{component, operation}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[k]; !ok {
		m.order = append(m.order, k)
	}
	m.entries[k] = &Measurement{
		Component: component,
		Operation: operation,
		Start:     m.now(),
	}
}

// EndMeasurement closes the matching open measurement.
func (m *PerformanceMonitor) EndMeasurement(component, operation string) {
	k := measurementKey{component, operation}

	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[k]
	if !ok || e.Complete {
		return
	}
	e.End = m.now()
	e.Duration = max(e.End.Sub(e.Start), 0)
	e.Complete = true
}

// Measure starts component/operation and returns the function that ends it.
//
//	defer monitor.Measure("db", "validate")()
func (m *PerformanceMonitor) Measure(component, operation string) func() {
	m.StartMeasurement(component, operation)
	return func() { m.EndMeasurement(component, operation) }
}

// Measurement returns a copy of the entry for component/operation.
func (m *PerformanceMonitor) Measurement(component, operation string) (Measurement, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[measurementKey{component, operation}]
	if !ok {
		return Measurement{}, false
	}
	return *e, true
}

// Duration returns the measured duration. The second result is false when the
// measurement is absent or was never ended.
func (m *PerformanceMonitor) Duration(component, operation string) (time.Duration, bool) {
	e, ok := m.Measurement(component, operation)
	if !ok || !e.Complete {
		return 0, false
	}
	return e.Duration, true
}

// All returns every measurement in insertion order. Each range over the
// sequence works on a fresh snapshot.
func (m *PerformanceMonitor) All() iter.Seq[Measurement] {
	return func(yield func(Measurement) bool) {
		for _, e := range m.snapshot() {
			if !yield(e) {
				return
			}
		}
	}
}

// Len returns the number of recorded keys.
func (m *PerformanceMonitor) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// Reset drops every measurement.
func (m *PerformanceMonitor) Reset() {
	m.mu.Lock()
	m.order = nil
	m.entries = make(map[measurementKey]*Measurement)
	m.mu.Unlock()
}

func (m *PerformanceMonitor) snapshot() []Measurement {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Measurement, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, *m.entries[k])
	}
	return out
}
