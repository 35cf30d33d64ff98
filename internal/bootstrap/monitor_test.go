package bootstrap

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock returns a monitor whose clock advances only when told to.
func fakeClock() (*PerformanceMonitor, func(time.Duration)) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewPerformanceMonitor()
	m.now = func() time.Time { return now }
	return m, func(d time.Duration) { now = now.Add(d) }
}

func TestMonitor_StartEnd(t *testing.T) {
	m, advance := fakeClock()

	m.StartMeasurement("database", "connect")
	advance(50 * time.Millisecond)
	m.EndMeasurement("database", "connect")

	d, ok := m.Duration("database", "connect")
	require.True(t, ok)
	assert.Equal(t, 50*time.Millisecond, d)

	e, ok := m.Measurement("database", "connect")
	require.True(t, ok)
	assert.True(t, e.Complete)
	assert.InDelta(t, 50.0, e.DurationMs(), 0.001)
}

func TestMonitor_EndWithoutStartIsNoop(t *testing.T) {
	m := NewPerformanceMonitor()

	assert.NotPanics(t, func() { m.EndMeasurement("ghost", "op") })
	assert.Equal(t, 0, m.Len())

	_, ok := m.Duration("ghost", "op")
	assert.False(t, ok)
}

func TestMonitor_UnendedMeasurementHasNoDuration(t *testing.T) {
	m := NewPerformanceMonitor()
	m.StartMeasurement("cache", "warmup")

	_, ok := m.Duration("cache", "warmup")
	assert.False(t, ok)

	e, ok := m.Measurement("cache", "warmup")
	require.True(t, ok)
	assert.False(t, e.Complete)
	assert.Equal(t, -1.0, e.DurationMs())
}

func TestMonitor_SecondEndIsIgnored(t *testing.T) {
	m, advance := fakeClock()

	m.StartMeasurement("queue", "init")
	advance(10 * time.Millisecond)
	m.EndMeasurement("queue", "init")
	advance(time.Second)
	m.EndMeasurement("queue", "init")

	d, _ := m.Duration("queue", "init")
	assert.Equal(t, 10*time.Millisecond, d)
}

func TestMonitor_RestartReplacesEntryKeepsOrder(t *testing.T) {
	m, advance := fakeClock()

	m.StartMeasurement("a", "op")
	m.StartMeasurement("b", "op")
	advance(time.Second)
	m.EndMeasurement("a", "op")

	m.StartMeasurement("a", "op")
	advance(5 * time.Millisecond)
	m.EndMeasurement("a", "op")

	d, _ := m.Duration("a", "op")
	assert.Equal(t, 5*time.Millisecond, d)

	var components []string
	for e := range m.All() {
		components = append(components, e.Component)
	}
	assert.Equal(t, []string{"a", "b"}, components)
}

func TestMonitor_Measure(t *testing.T) {
	m, advance := fakeClock()

	func() {
		defer m.Measure("api", "probe")()
		advance(7 * time.Millisecond)
	}()

	d, ok := m.Duration("api", "probe")
	require.True(t, ok)
	assert.Equal(t, 7*time.Millisecond, d)
}

func TestMonitor_NegativeDurationClampedToZero(t *testing.T) {
	m, advance := fakeClock()

	m.StartMeasurement("skew", "op")
	advance(-time.Second)
	m.EndMeasurement("skew", "op")

	d, ok := m.Duration("skew", "op")
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), d)
}

func TestMonitor_AllIsSnapshot(t *testing.T) {
	m := NewPerformanceMonitor()
	m.StartMeasurement("x", "1")

	seq := m.All()
	m.StartMeasurement("x", "2")

	// Each range takes its own snapshot.
	assert.Len(t, slices.Collect(seq), 2)

	for range m.All() {
		m.StartMeasurement("x", "3")
		break
	}
	assert.Equal(t, 3, m.Len())
}

func TestMonitor_Reset(t *testing.T) {
	m := NewPerformanceMonitor()
	m.StartMeasurement("x", "y")
	m.Reset()

	assert.Equal(t, 0, m.Len())
	_, ok := m.Measurement("x", "y")
	assert.False(t, ok)
}
