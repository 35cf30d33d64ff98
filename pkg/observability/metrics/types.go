// Package metrics provides a small Prometheus text-format metrics registry
// used by the bootstrap lifecycle and exposed by the readiness server.
package metrics

// MetricType represents the type of metric.
type MetricType string

// Metric type constants define the supported metric types.
const (
	TypeCounter   MetricType = "counter"
	TypeGauge     MetricType = "gauge"
	TypeHistogram MetricType = "histogram"
)

// Metric is the base interface for all metrics.
type Metric interface {
	Name() string
	Help() string
	Type() MetricType
	// Describe returns the metric description in Prometheus format.
	Describe() string
}

// Counter is a monotonically increasing value.
type Counter interface {
	Metric
	Inc()
	Add(float64)
	Get() float64
}

// Gauge is a value that can go up and down.
type Gauge interface {
	Metric
	Set(float64)
	Add(float64)
	Get() float64
}

// Histogram counts observations in configurable buckets.
type Histogram interface {
	Metric
	Observe(float64)
	Count() uint64
}

// CounterVec is a family of counters partitioned by labels.
type CounterVec interface {
	Metric
	With(labels map[string]string) Counter
}

// GaugeVec is a family of gauges partitioned by labels.
type GaugeVec interface {
	Metric
	With(labels map[string]string) Gauge
}

// HistogramVec is a family of histograms partitioned by labels.
type HistogramVec interface {
	Metric
	With(labels map[string]string) Histogram
}
