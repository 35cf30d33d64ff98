package api

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kart-io/legalstudy/internal/bootstrap"
	"github.com/kart-io/legalstudy/pkg/component"
)

// Options defines configuration options for an upstream HTTP API.
type Options struct {
	BaseURL    string        `json:"base-url" mapstructure:"base-url" validate:"required,url"`
	HealthPath string        `json:"health-path" mapstructure:"health-path" validate:"startswith=/"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries int           `json:"max-retries" mapstructure:"max-retries" validate:"min=0,max=10"`
	Backoff    time.Duration `json:"backoff" mapstructure:"backoff"`
	APIKey     string        `json:"-" mapstructure:"api-key"`
	// Warmup paths are fetched once during initialization; each must answer
	// with a 2xx status.
	Warmup []string `json:"warmup" mapstructure:"warmup" validate:"dive,startswith=/"`
}

var _ component.ConfigOptions = (*Options)(nil)

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		HealthPath: "/healthz",
		Timeout:    5 * time.Second,
		MaxRetries: 2,
		Backoff:    500 * time.Millisecond,
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
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	return nil
}

func (o *Options) Validate() error {
	u, err := url.Parse(o.BaseURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base-url %q: scheme must be http or https", o.BaseURL)
	}
	return nil
}

// String returns a string representation with the API key redacted.
func (o *Options) String() string {
	key := ""
	if o.APIKey != "" {
		key = "[REDACTED]"
	}
	return fmt.Sprintf("API{base-url=%s, health=%s, api-key=%s}", o.BaseURL, o.HealthPath, key)
}
