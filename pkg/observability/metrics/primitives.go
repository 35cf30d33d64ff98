package metrics

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// atomicFloat is a float64 updated with CAS on its bit pattern.
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) add(v float64) {
	for {
		old := f.bits.Load()
		if f.bits.CompareAndSwap(old, math.Float64bits(math.Float64frombits(old)+v)) {
			return
		}
	}
}

func (f *atomicFloat) set(v float64) { f.bits.Store(math.Float64bits(v)) }
func (f *atomicFloat) get() float64  { return math.Float64frombits(f.bits.Load()) }

type baseMetric struct {
	name string
	help string
	typ  MetricType
}

func (m *baseMetric) Name() string     { return m.name }
func (m *baseMetric) Help() string     { return m.help }
func (m *baseMetric) Type() MetricType { return m.typ }

func (m *baseMetric) header(sb *strings.Builder) {
	fmt.Fprintf(sb, "# HELP %s %s\n", m.name, m.help)
	fmt.Fprintf(sb, "# TYPE %s %s\n", m.name, m.typ)
}

// sampler writes the sample lines of one series. labels is the rendered
// label set without braces, possibly empty.
type sampler interface {
	samples(sb *strings.Builder, name, labels string)
}

func braced(labels string) string {
	if labels == "" {
		return ""
	}
	return "{" + labels + "}"
}

// --- Counter ---

type counter struct {
	baseMetric
	val atomicFloat
}

// NewCounter creates a new Counter metric with the given name and help text.
func NewCounter(name, help string) Counter {
	return &counter{baseMetric: baseMetric{name: name, help: help, typ: TypeCounter}}
}

func (c *counter) Inc() { c.Add(1) }

// Add ignores negative values.
func (c *counter) Add(v float64) {
	if v < 0 {
		return
	}
	c.val.add(v)
}

func (c *counter) Get() float64 { return c.val.get() }

func (c *counter) samples(sb *strings.Builder, name, labels string) {
	fmt.Fprintf(sb, "%s%s %g\n", name, braced(labels), c.Get())
}

func (c *counter) Describe() string {
	var sb strings.Builder
	c.header(&sb)
	c.samples(&sb, c.name, "")
	return sb.String()
}

// --- Gauge ---

type gauge struct {
	baseMetric
	val atomicFloat
}

// NewGauge creates a new Gauge metric with the given name and help text.
func NewGauge(name, help string) Gauge {
	return &gauge{baseMetric: baseMetric{name: name, help: help, typ: TypeGauge}}
}

func (g *gauge) Set(v float64) { g.val.set(v) }
func (g *gauge) Add(v float64) { g.val.add(v) }
func (g *gauge) Get() float64  { return g.val.get() }

func (g *gauge) samples(sb *strings.Builder, name, labels string) {
	fmt.Fprintf(sb, "%s%s %g\n", name, braced(labels), g.Get())
}

func (g *gauge) Describe() string {
	var sb strings.Builder
	g.header(&sb)
	g.samples(&sb, g.name, "")
	return sb.String()
}

// --- Histogram ---

// DefBuckets are the default histogram buckets, in seconds.
var DefBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

type histogram struct {
	baseMetric
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	count   uint64
	sum     float64
}

// NewHistogram creates a new Histogram. Nil buckets select DefBuckets.
func NewHistogram(name, help string, buckets []float64) Histogram {
	return newHistogram(name, help, buckets)
}

func newHistogram(name, help string, buckets []float64) *histogram {
	if len(buckets) == 0 {
		buckets = DefBuckets
	}
	b := append([]float64(nil), buckets...)
	sort.Float64s(b)
	return &histogram{
		baseMetric: baseMetric{name: name, help: help, typ: TypeHistogram},
		buckets:    b,
		counts:     make([]uint64, len(b)),
	}
}

func (h *histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, bound := range h.buckets {
		if v <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

func (h *histogram) samples(sb *strings.Builder, name, labels string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sep := ""
	if labels != "" {
		sep = ","
	}
	for i, bound := range h.buckets {
		fmt.Fprintf(sb, "%s_bucket{%s%sle=\"%g\"} %d\n", name, labels, sep, bound, h.counts[i])
	}
	fmt.Fprintf(sb, "%s_bucket{%s%sle=\"+Inf\"} %d\n", name, labels, sep, h.count)
	fmt.Fprintf(sb, "%s_sum%s %g\n", name, braced(labels), h.sum)
	fmt.Fprintf(sb, "%s_count%s %d\n", name, braced(labels), h.count)
}

func (h *histogram) Describe() string {
	var sb strings.Builder
	h.header(&sb)
	h.samples(&sb, h.name, "")
	return sb.String()
}

// --- Vectors ---

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(labels))
	for k, v := range labels {
		pairs = append(pairs, fmt.Sprintf("%s=%q", k, v))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

type vec[T sampler] struct {
	baseMetric
	series sync.Map // rendered labels -> T
	create func() T
}

func (v *vec[T]) with(labels map[string]string) T {
	key := formatLabels(labels)
	if s, ok := v.series.Load(key); ok {
		return s.(T)
	}
	s, _ := v.series.LoadOrStore(key, v.create())
	return s.(T)
}

func (v *vec[T]) Describe() string {
	var sb strings.Builder
	v.header(&sb)

	var keys []string
	v.series.Range(func(k, _ any) bool {
		keys = append(keys, k.(string))
		return true
	})
	sort.Strings(keys)
	for _, k := range keys {
		if s, ok := v.series.Load(k); ok {
			s.(T).samples(&sb, v.name, k)
		}
	}
	return sb.String()
}

type counterVec struct{ vec[*counter] }

// NewCounterVec creates a new CounterVec metric with the given name and help text.
func NewCounterVec(name, help string) CounterVec {
	v := &counterVec{}
	v.baseMetric = baseMetric{name: name, help: help, typ: TypeCounter}
	v.create = func() *counter { return NewCounter(name, help).(*counter) }
	return v
}

func (v *counterVec) With(labels map[string]string) Counter { return v.with(labels) }

type gaugeVec struct{ vec[*gauge] }

// NewGaugeVec creates a new GaugeVec metric with the given name and help text.
func NewGaugeVec(name, help string) GaugeVec {
	v := &gaugeVec{}
	v.baseMetric = baseMetric{name: name, help: help, typ: TypeGauge}
	v.create = func() *gauge { return NewGauge(name, help).(*gauge) }
	return v
}

func (v *gaugeVec) With(labels map[string]string) Gauge { return v.with(labels) }

type histogramVec struct{ vec[*histogram] }

// NewHistogramVec creates a new HistogramVec with the given bucket boundaries.
func NewHistogramVec(name, help string, buckets []float64) HistogramVec {
	v := &histogramVec{}
	v.baseMetric = baseMetric{name: name, help: help, typ: TypeHistogram}
	v.create = func() *histogram { return newHistogram(name, help, buckets) }
	return v
}

func (v *histogramVec) With(labels map[string]string) Histogram { return v.with(labels) }
