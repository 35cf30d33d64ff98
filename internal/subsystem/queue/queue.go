// Package queue is the NATS JetStream subsystem. Initialization provisions
// the configured streams.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kart-io/logger"
	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker"

	"github.com/kart-io/legalstudy/internal/bootstrap"
	"github.com/kart-io/legalstudy/internal/subsystem/client"
)

// Kind is the configuration kind handled by this package.
const Kind = "queue"

// jsContext is the subset of nats.JetStreamContext used for stream
// management. Tests inject a fake without a live server.
type jsContext interface {
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	UpdateStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
}

// connectFunc opens a JetStream context and returns a cleanup func that
// closes the underlying connection.
type connectFunc func(opts *Options) (jsContext, func(), error)

func realConnect(opts *Options) (jsContext, func(), error) {
	nc, err := nats.Connect(opts.URL,
		nats.Name(opts.Name),
		nats.Timeout(opts.ConnectTimeout),
	)
	if err != nil {
		return nil, func() {}, fmt.Errorf("nats connect %s: %w", opts.URL, err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, func() {}, fmt.Errorf("nats jetstream context: %w", err)
	}
	return js, func() { nc.Close() }, nil
}

// Hooks provisions JetStream streams.
type Hooks struct {
	name    string
	cb      *gobreaker.CircuitBreaker
	connect connectFunc

	mu          sync.Mutex
	provisioned []string
	created     int
	updated     int
}

// NewHooks returns queue hooks for the subsystem name.
func NewHooks(name string) *Hooks {
	return &Hooks{
		name:    name,
		cb:      client.NewCircuitBreaker(name),
		connect: realConnect,
	}
}

func (h *Hooks) ValidateConfig(cfg bootstrap.Config) error {
	_, err := Load(cfg)
	return err
}

// TestConnection verifies NATS is reachable. A missing probe stream means
// the streams are not provisioned yet, which is fine at this point.
func (h *Hooks) TestConnection(_ context.Context, cfg bootstrap.Config) error {
	opts, err := Load(cfg)
	if err != nil {
		return err
	}
	return client.Execute(h.cb, func() error {
		js, cleanup, err := h.connect(opts)
		if err != nil {
			return err
		}
		defer cleanup()

		if opts.ProbeStream == "" {
			return nil
		}
		_, err = js.StreamInfo(opts.ProbeStream)
		if err != nil && !errors.Is(err, nats.ErrStreamNotFound) {
			return fmt.Errorf("stream info: %w", err)
		}
		return nil
	})
}

// Initialize creates or updates every configured stream.
func (h *Hooks) Initialize(_ context.Context, cfg bootstrap.Config) error {
	opts, err := Load(cfg)
	if err != nil {
		return err
	}

	var created, updated int
	err = client.Execute(h.cb, func() error {
		js, cleanup, err := h.connect(opts)
		if err != nil {
			return err
		}
		defer cleanup()

		for _, s := range opts.Streams {
			isNew, err := provisionStream(js, s)
			if err != nil {
				return err
			}
			if isNew {
				created++
			} else {
				updated++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	names := make([]string, 0, len(opts.Streams))
	for _, s := range opts.Streams {
		names = append(names, s.Name)
	}
	h.mu.Lock()
	h.provisioned, h.created, h.updated = names, created, updated
	h.mu.Unlock()

	logger.Infow("Queue streams provisioned", "subsystem", h.name, "created", created, "updated", updated)
	return nil
}

// Report lists the provisioned streams.
func (h *Hooks) Report() map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return map[string]any{
		"queue.streams":         append([]string(nil), h.provisioned...),
		"queue.streams_created": h.created,
		"queue.streams_updated": h.updated,
	}
}

// provisionStream creates the stream if it does not exist, or updates it if
// it does.
func provisionStream(js jsContext, s StreamOptions) (bool, error) {
	cfg := &nats.StreamConfig{
		Name:      s.Name,
		Subjects:  s.Subjects,
		Retention: retentionPolicy(s.Retention),
		MaxAge:    s.MaxAge,
	}

	_, err := js.StreamInfo(s.Name)
	switch {
	case errors.Is(err, nats.ErrStreamNotFound):
		if _, err := js.AddStream(cfg); err != nil {
			return false, fmt.Errorf("creating stream %s: %w", s.Name, err)
		}
		return true, nil
	case err != nil:
		return false, fmt.Errorf("querying stream %s: %w", s.Name, err)
	default:
		if _, err := js.UpdateStream(cfg); err != nil {
			return false, fmt.Errorf("updating stream %s: %w", s.Name, err)
		}
		return false, nil
	}
}

func retentionPolicy(s string) nats.RetentionPolicy {
	switch s {
	case "interest":
		return nats.InterestPolicy
	case "workqueue":
		return nats.WorkQueuePolicy
	default:
		return nats.LimitsPolicy
	}
}

// New returns the queue lifecycle.
func New(name string, cfg bootstrap.Config, opts ...bootstrap.Option) *bootstrap.Lifecycle {
	return bootstrap.New(name, NewHooks(name), append([]bootstrap.Option{bootstrap.WithConfig(cfg)}, opts...)...)
}
