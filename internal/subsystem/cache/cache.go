// Package cache is the Redis cache subsystem.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/kart-io/legalstudy/internal/bootstrap"
	"github.com/kart-io/legalstudy/internal/subsystem/client"
)

// Kind is the configuration kind handled by this package.
const Kind = "cache"

// redisClient is the subset of go-redis the hooks use. Tests inject a fake
// without a live server.
type redisClient interface {
	PingResult(ctx context.Context) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	PoolStats() *goredis.PoolStats
	Close() error
}

type realRedis struct {
	*goredis.Client
}

func (r realRedis) PingResult(ctx context.Context) (string, error) {
	return r.Ping(ctx).Result()
}

func (r realRedis) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return r.Client.Set(ctx, key, value, ttl).Err()
}

func newRealRedis(opts *Options) redisClient {
	return realRedis{goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr(),
		Password:     opts.Password,
		DB:           opts.Database,
		MaxRetries:   opts.MaxRetries,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolTimeout:  opts.PoolTimeout,
	})}
}

// Hooks connects to Redis through a circuit breaker.
type Hooks struct {
	name      string
	cb        *gobreaker.CircuitBreaker
	newClient func(*Options) redisClient

	mu     sync.RWMutex
	client redisClient
	opts   *Options
}

// NewHooks returns cache hooks for the subsystem name.
func NewHooks(name string) *Hooks {
	return &Hooks{
		name:      name,
		cb:        client.NewCircuitBreaker(name),
		newClient: newRealRedis,
	}
}

func (h *Hooks) ValidateConfig(cfg bootstrap.Config) error {
	_, err := Load(cfg)
	return err
}

// TestConnection sends PING on a short-lived client and expects PONG.
func (h *Hooks) TestConnection(ctx context.Context, cfg bootstrap.Config) error {
	opts, err := Load(cfg)
	if err != nil {
		return err
	}
	c := h.newClient(opts)
	defer c.Close() //nolint:errcheck
	return h.ping(ctx, c)
}

// Initialize opens the pool and writes the readiness marker.
func (h *Hooks) Initialize(ctx context.Context, cfg bootstrap.Config) error {
	opts, err := Load(cfg)
	if err != nil {
		return err
	}
	c := h.newClient(opts)
	if err := h.ping(ctx, c); err != nil {
		_ = c.Close()
		return err
	}
	if opts.MarkerTTL > 0 {
		key := "bootstrap:" + h.name
		if err := c.Set(ctx, key, time.Now().UTC().Format(time.RFC3339), opts.MarkerTTL); err != nil {
			_ = c.Close()
			return fmt.Errorf("write marker %s: %w", key, err)
		}
	}

	h.mu.Lock()
	old := h.client
	h.client, h.opts = c, opts
	h.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	logger.Infow("Cache connected", "subsystem", h.name, "target", opts.String())
	return nil
}

func (h *Hooks) Shutdown(context.Context) error {
	h.mu.Lock()
	c := h.client
	h.client = nil
	h.mu.Unlock()
	if c == nil {
		return nil
	}
	return c.Close()
}

// Report exposes pool statistics.
func (h *Hooks) Report() map[string]any {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.client == nil {
		return nil
	}
	out := map[string]any{"cache.addr": h.opts.Addr()}
	if s := h.client.PoolStats(); s != nil {
		out["cache.total_conns"] = s.TotalConns
		out["cache.idle_conns"] = s.IdleConns
	}
	return out
}

// Client returns the go-redis client opened by Initialize.
func (h *Hooks) Client() (*goredis.Client, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.client.(realRedis)
	if !ok {
		return nil, client.ErrNotConnected.WithMessagef("%s: cache not initialized", h.name)
	}
	return r.Client, nil
}

func (h *Hooks) ping(ctx context.Context, c redisClient) error {
	return client.Execute(h.cb, func() error {
		val, err := c.PingResult(ctx)
		if err != nil {
			return fmt.Errorf("ping: %w", err)
		}
		if val != "PONG" {
			return client.ErrUnexpectedResponse.WithMessagef("unexpected PING response: %q", val)
		}
		return nil
	})
}

// New returns the cache lifecycle.
func New(name string, cfg bootstrap.Config, opts ...bootstrap.Option) *bootstrap.Lifecycle {
	return bootstrap.New(name, NewHooks(name), append([]bootstrap.Option{bootstrap.WithConfig(cfg)}, opts...)...)
}
