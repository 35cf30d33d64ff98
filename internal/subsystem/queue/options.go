package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/legalstudy/internal/bootstrap"
	"github.com/kart-io/legalstudy/pkg/component"
)

// StreamOptions describes one JetStream stream to provision.
type StreamOptions struct {
	Name      string        `json:"name" mapstructure:"name" validate:"required"`
	Subjects  []string      `json:"subjects" mapstructure:"subjects" validate:"min=1,dive,required"`
	Retention string        `json:"retention" mapstructure:"retention" validate:"omitempty,oneof=limits interest workqueue"`
	MaxAge    time.Duration `json:"max-age" mapstructure:"max-age"`
}

// Options defines configuration options for the NATS queue subsystem.
type Options struct {
	URL            string          `json:"url" mapstructure:"url" validate:"required"`
	Name           string          `json:"name" mapstructure:"name"`
	ConnectTimeout time.Duration   `json:"connect-timeout" mapstructure:"connect-timeout"`
	Streams        []StreamOptions `json:"streams" mapstructure:"streams" validate:"dive"`
	// ProbeStream is the stream whose presence the connection test checks.
	// A missing stream does not fail the test.
	ProbeStream string `json:"probe-stream" mapstructure:"probe-stream"`
}

var _ component.ConfigOptions = (*Options)(nil)

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		URL:            "nats://127.0.0.1:4222",
		Name:           "legalstudy-bootstrap",
		ConnectTimeout: 5 * time.Second,
	}
}

// Load decodes cfg over the defaults and validates the result.
func Load(cfg bootstrap.Config) (*Options, error) {
	opts := NewOptions()
	if err := component.Load(cfg, opts); err != nil {
		return nil, err
	}
	return opts, nil
}

func (o *Options) Complete() error {
	for i := range o.Streams {
		s := &o.Streams[i]
		s.Retention = strings.ToLower(s.Retention)
		if s.Retention == "" {
			s.Retention = "limits"
		}
	}
	if o.ProbeStream == "" && len(o.Streams) > 0 {
		o.ProbeStream = o.Streams[0].Name
	}
	return nil
}

// Validate checks URL schemes and stream names.
func (o *Options) Validate() error {
	for _, u := range strings.Split(o.URL, ",") {
		u = strings.TrimSpace(u)
		if !strings.HasPrefix(u, "nats://") && !strings.HasPrefix(u, "tls://") && !strings.HasPrefix(u, "ws://") && !strings.HasPrefix(u, "wss://") {
			return fmt.Errorf("url %q: unsupported scheme", u)
		}
	}
	seen := make(map[string]struct{}, len(o.Streams))
	for _, s := range o.Streams {
		if strings.ContainsAny(s.Name, " .*>") {
			return fmt.Errorf("stream name %q must not contain spaces, '.', '*' or '>'", s.Name)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("stream %q declared twice", s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}

