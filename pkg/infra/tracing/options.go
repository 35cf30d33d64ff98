// Package tracing configures the OpenTelemetry tracer provider used to trace
// bootstrap runs.
package tracing

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// ExporterType defines the type of exporter to use.
type ExporterType string

const (
	// ExporterOTLPGRPC exports spans via OTLP over gRPC.
	ExporterOTLPGRPC ExporterType = "otlp_grpc"
	// ExporterStdout exports spans to stdout.
	ExporterStdout ExporterType = "stdout"
	// ExporterNoop records spans but exports nothing.
	ExporterNoop ExporterType = "noop"
)

// Options defines configuration for OpenTelemetry tracing.
type Options struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName    string        `json:"service-name" mapstructure:"service-name"`
	ServiceVersion string        `json:"service-version" mapstructure:"service-version"`
	Environment    string        `json:"environment" mapstructure:"environment"`
	ExporterType   ExporterType  `json:"exporter-type" mapstructure:"exporter-type"`
	Endpoint       string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure       bool          `json:"insecure" mapstructure:"insecure"`
	SamplerRatio   float64       `json:"sampler-ratio" mapstructure:"sampler-ratio"`
	BatchTimeout   time.Duration `json:"batch-timeout" mapstructure:"batch-timeout"`
}

// NewOptions creates default tracing options. Tracing is off by default.
func NewOptions() *Options {
	return &Options{
		Enabled:        false,
		ServiceName:    "legalstudy-bootstrap",
		ServiceVersion: "dev",
		Environment:    "development",
		ExporterType:   ExporterStdout,
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SamplerRatio:   1.0,
		BatchTimeout:   5 * time.Second,
	}
}

// AddFlags adds flags for tracing options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.Enabled, "tracing.enabled", o.Enabled, "Enable OpenTelemetry tracing of bootstrap phases")
	fs.StringVar(&o.ServiceName, "tracing.service-name", o.ServiceName, "Service name for tracing")
	fs.StringVar(&o.Environment, "tracing.environment", o.Environment, "Deployment environment")
	fs.StringVar((*string)(&o.ExporterType), "tracing.exporter-type", string(o.ExporterType), "Exporter type (otlp_grpc, stdout, noop)")
	fs.StringVar(&o.Endpoint, "tracing.endpoint", o.Endpoint, "OTLP gRPC exporter endpoint")
	fs.BoolVar(&o.Insecure, "tracing.insecure", o.Insecure, "Disable TLS for OTLP connection")
	fs.Float64Var(&o.SamplerRatio, "tracing.sampler-ratio", o.SamplerRatio, "Sampling ratio (0.0 to 1.0)")
}

// Complete fills in defaults.
func (o *Options) Complete() error {
	if o.BatchTimeout <= 0 {
		o.BatchTimeout = 5 * time.Second
	}
	return nil
}

// Validate validates the tracing options.
func (o *Options) Validate() error {
	if !o.Enabled {
		return nil
	}
	if o.ServiceName == "" {
		return fmt.Errorf("tracing: service name is required when tracing is enabled")
	}
	switch o.ExporterType {
	case ExporterOTLPGRPC:
		if o.Endpoint == "" {
			return fmt.Errorf("tracing: endpoint is required for exporter type %s", o.ExporterType)
		}
	case ExporterStdout, ExporterNoop:
	default:
		return fmt.Errorf("tracing: invalid exporter type: %s", o.ExporterType)
	}
	if o.SamplerRatio < 0 || o.SamplerRatio > 1 {
		return fmt.Errorf("tracing: sampler ratio must be between 0.0 and 1.0, got %f", o.SamplerRatio)
	}
	return nil
}
