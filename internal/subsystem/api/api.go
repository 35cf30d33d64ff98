// Package api is the upstream HTTP API subsystem.
package api

import (
	"context"
	"sync"

	"github.com/kart-io/logger"
	"github.com/sony/gobreaker"

	"github.com/kart-io/legalstudy/internal/bootstrap"
	"github.com/kart-io/legalstudy/internal/subsystem/client"
	"github.com/kart-io/legalstudy/pkg/utils/httpclient"
)

// Kind is the configuration kind handled by this package.
const Kind = "api"

// Hooks probes an upstream HTTP API through a circuit breaker.
type Hooks struct {
	name string
	cb   *gobreaker.CircuitBreaker

	mu     sync.RWMutex
	client *httpclient.Client
	opts   *Options
	warmed int
}

// NewHooks returns api hooks for the subsystem name.
func NewHooks(name string) *Hooks {
	return &Hooks{name: name, cb: client.NewCircuitBreaker(name)}
}

func newClient(opts *Options) *httpclient.Client {
	var hopts []httpclient.Option
	hopts = append(hopts, httpclient.WithBackoff(opts.Backoff))
	if opts.APIKey != "" {
		hopts = append(hopts, httpclient.WithHeader("Authorization", "Bearer "+opts.APIKey))
	}
	return httpclient.NewClient(opts.Timeout, opts.MaxRetries, hopts...)
}

func (h *Hooks) ValidateConfig(cfg bootstrap.Config) error {
	_, err := Load(cfg)
	return err
}

// TestConnection expects a 2xx from the health path.
func (h *Hooks) TestConnection(ctx context.Context, cfg bootstrap.Config) error {
	opts, err := Load(cfg)
	if err != nil {
		return err
	}
	return h.get(ctx, newClient(opts), opts.BaseURL+opts.HealthPath)
}

// Initialize fetches the warmup paths and keeps the client.
func (h *Hooks) Initialize(ctx context.Context, cfg bootstrap.Config) error {
	opts, err := Load(cfg)
	if err != nil {
		return err
	}
	c := newClient(opts)
	for _, p := range opts.Warmup {
		if err := h.get(ctx, c, opts.BaseURL+p); err != nil {
			return err
		}
	}

	h.mu.Lock()
	h.client, h.opts, h.warmed = c, opts, len(opts.Warmup)
	h.mu.Unlock()

	logger.Infow("API reachable", "subsystem", h.name, "target", opts.String())
	return nil
}

func (h *Hooks) Report() map[string]any {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.opts == nil {
		return nil
	}
	return map[string]any{
		"api.base_url":     h.opts.BaseURL,
		"api.warmup_paths": h.warmed,
		"api.breaker":      h.cb.State().String(),
	}
}

// Client returns the HTTP client kept by Initialize.
func (h *Hooks) Client() (*httpclient.Client, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.client == nil {
		return nil, client.ErrNotConnected.WithMessagef("%s: api not initialized", h.name)
	}
	return h.client, nil
}

func (h *Hooks) get(ctx context.Context, c *httpclient.Client, url string) error {
	return client.Execute(h.cb, func() error {
		status, err := c.Get(ctx, url)
		if err != nil {
			return err
		}
		if status < 200 || status > 299 {
			return client.ErrUnexpectedResponse.WithMessagef("GET %s: status %d", url, status)
		}
		return nil
	})
}

// New returns the api lifecycle.
func New(name string, cfg bootstrap.Config, opts ...bootstrap.Option) *bootstrap.Lifecycle {
	return bootstrap.New(name, NewHooks(name), append([]bootstrap.Option{bootstrap.WithConfig(cfg)}, opts...)...)
}
