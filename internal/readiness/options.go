package readiness

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/pflag"
)

// Options configures the readiness HTTP server. An empty Addr disables it.
type Options struct {
	Addr            string        `json:"addr" mapstructure:"addr"`
	ReadTimeout     time.Duration `json:"read-timeout" mapstructure:"read-timeout"`
	WriteTimeout    time.Duration `json:"write-timeout" mapstructure:"write-timeout"`
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
	ProbeTimeout    time.Duration `json:"probe-timeout" mapstructure:"probe-timeout"`
}

// NewOptions returns defaults listening on :8190.
func NewOptions() *Options {
	return &Options{
		Addr:            ":8190",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		ProbeTimeout:    5 * time.Second,
	}
}

// AddFlags adds flags for the readiness server under serve.*.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Addr, "serve.addr", o.Addr, "Readiness HTTP listen address; empty disables the server")
	fs.DurationVar(&o.ReadTimeout, "serve.read-timeout", o.ReadTimeout, "HTTP read timeout")
	fs.DurationVar(&o.WriteTimeout, "serve.write-timeout", o.WriteTimeout, "HTTP write timeout")
	fs.DurationVar(&o.ShutdownTimeout, "serve.shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout")
	fs.DurationVar(&o.ProbeTimeout, "serve.probe-timeout", o.ProbeTimeout, "Upper bound for a /probe request")
}

// Complete fills zero durations with defaults.
func (o *Options) Complete() error {
	def := NewOptions()
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = def.ReadTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = def.WriteTimeout
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = def.ShutdownTimeout
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = def.ProbeTimeout
	}
	return nil
}

// Validate checks that Addr, when set, is a host:port pair.
func (o *Options) Validate() error {
	if o.Addr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(o.Addr); err != nil {
		return fmt.Errorf("invalid serve.addr %q: %w", o.Addr, err)
	}
	return nil
}

// Enabled reports whether the server should be started.
func (o *Options) Enabled() bool {
	return o.Addr != ""
}
