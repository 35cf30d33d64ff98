// Package coordination is the etcd subsystem. Initialization registers the
// instance under a lease that is kept alive until shutdown.
package coordination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/kart-io/legalstudy/internal/bootstrap"
	"github.com/kart-io/legalstudy/internal/subsystem/client"
)

// Kind is the configuration kind handled by this package.
const Kind = "coordination"

// etcdClient is the part of clientv3 the hooks use.
type etcdClient interface {
	Ping(ctx context.Context) error
	Members(ctx context.Context) (int, error)
	Grant(ctx context.Context, ttl int64) (clientv3.LeaseID, error)
	Put(ctx context.Context, key, val string, lease clientv3.LeaseID) error
	KeepAlive(ctx context.Context, lease clientv3.LeaseID) (<-chan *clientv3.LeaseKeepAliveResponse, error)
	Revoke(ctx context.Context, lease clientv3.LeaseID) error
	Close() error
}

type realEtcd struct {
	cli *clientv3.Client
}

func newRealEtcd(opts *Options) (etcdClient, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   opts.Endpoints,
		DialTimeout: opts.DialTimeout,
		Username:    opts.Username,
		Password:    opts.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	return &realEtcd{cli: cli}, nil
}

// Ping reads a key that never exists; only the round trip matters.
func (r *realEtcd) Ping(ctx context.Context) error {
	_, err := r.cli.Get(ctx, "__legalstudy_ping__")
	return err
}

func (r *realEtcd) Members(ctx context.Context) (int, error) {
	resp, err := r.cli.MemberList(ctx)
	if err != nil {
		return 0, err
	}
	return len(resp.Members), nil
}

func (r *realEtcd) Grant(ctx context.Context, ttl int64) (clientv3.LeaseID, error) {
	resp, err := r.cli.Grant(ctx, ttl)
	if err != nil {
		return 0, err
	}
	return resp.ID, nil
}

func (r *realEtcd) Put(ctx context.Context, key, val string, lease clientv3.LeaseID) error {
	_, err := r.cli.Put(ctx, key, val, clientv3.WithLease(lease))
	return err
}

func (r *realEtcd) KeepAlive(ctx context.Context, lease clientv3.LeaseID) (<-chan *clientv3.LeaseKeepAliveResponse, error) {
	return r.cli.KeepAlive(ctx, lease)
}

func (r *realEtcd) Revoke(ctx context.Context, lease clientv3.LeaseID) error {
	_, err := r.cli.Revoke(ctx, lease)
	return err
}

func (r *realEtcd) Close() error { return r.cli.Close() }

// Hooks registers the instance in etcd.
type Hooks struct {
	name      string
	newClient func(*Options) (etcdClient, error)

	mu      sync.Mutex
	client  etcdClient
	opts    *Options
	leaseID clientv3.LeaseID
	key     string
	members int
	stop    context.CancelFunc
	done    chan struct{}
}

// NewHooks returns coordination hooks for the subsystem name.
func NewHooks(name string) *Hooks {
	return &Hooks{name: name, newClient: newRealEtcd}
}

func (h *Hooks) ValidateConfig(cfg bootstrap.Config) error {
	_, err := Load(cfg)
	return err
}

// TestConnection pings the cluster and checks it has members.
func (h *Hooks) TestConnection(ctx context.Context, cfg bootstrap.Config) error {
	opts, err := Load(cfg)
	if err != nil {
		return err
	}
	c, err := h.newClient(opts)
	if err != nil {
		return err
	}
	defer c.Close() //nolint:errcheck

	_, err = h.check(ctx, c, opts)
	return err
}

// Initialize grants a lease, writes the registration key and keeps the
// lease alive in the background.
func (h *Hooks) Initialize(ctx context.Context, cfg bootstrap.Config) error {
	opts, err := Load(cfg)
	if err != nil {
		return err
	}
	c, err := h.newClient(opts)
	if err != nil {
		return err
	}
	members, err := h.check(ctx, c, opts)
	if err != nil {
		_ = c.Close()
		return err
	}

	leaseID, err := c.Grant(ctx, opts.LeaseTTL)
	if err != nil {
		_ = c.Close()
		return fmt.Errorf("grant lease: %w", err)
	}
	key := opts.Key(h.name)
	val := time.Now().UTC().Format(time.RFC3339)
	if err := c.Put(ctx, key, val, leaseID); err != nil {
		_ = c.Close()
		return fmt.Errorf("register %s: %w", key, err)
	}

	// 续约使用独立的 context，生命周期跟随 Shutdown 而不是初始化阶段
	kaCtx, stop := context.WithCancel(context.Background())
	ch, err := c.KeepAlive(kaCtx, leaseID)
	if err != nil {
		stop()
		_ = c.Close()
		return fmt.Errorf("keep lease alive: %w", err)
	}
	done := make(chan struct{})
	go h.drain(ch, done)

	h.mu.Lock()
	h.client, h.opts, h.leaseID, h.key, h.members = c, opts, leaseID, key, members
	h.stop, h.done = stop, done
	h.mu.Unlock()

	logger.Infow("Instance registered", "subsystem", h.name, "key", key, "lease", int64(leaseID))
	return nil
}

// drain consumes keep-alive responses until the channel closes.
func (h *Hooks) drain(ch <-chan *clientv3.LeaseKeepAliveResponse, done chan struct{}) {
	defer close(done)
	for range ch {
	}
	logger.Debugw("Lease keep-alive stopped", "subsystem", h.name)
}

// Shutdown revokes the lease, which removes the registration key.
func (h *Hooks) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	c, stop, done, leaseID := h.client, h.stop, h.done, h.leaseID
	h.client, h.stop, h.done = nil, nil, nil
	h.mu.Unlock()
	if c == nil {
		return nil
	}

	stop()
	<-done
	revokeErr := c.Revoke(ctx, leaseID)
	if err := c.Close(); err != nil {
		return err
	}
	if revokeErr != nil {
		return fmt.Errorf("revoke lease: %w", revokeErr)
	}
	return nil
}

// Report exposes the registration.
func (h *Hooks) Report() map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client == nil {
		return nil
	}
	return map[string]any{
		"coordination.key":     h.key,
		"coordination.lease":   int64(h.leaseID),
		"coordination.members": h.members,
	}
}

func (h *Hooks) check(ctx context.Context, c etcdClient, opts *Options) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.RequestTimeout)
	defer cancel()

	if err := c.Ping(ctx); err != nil {
		return 0, fmt.Errorf("etcd ping failed: %w", err)
	}
	n, err := c.Members(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list cluster members: %w", err)
	}
	if n == 0 {
		return 0, client.ErrUnexpectedResponse.WithMessage("cluster has no members")
	}
	return n, nil
}

// New returns the coordination lifecycle.
func New(name string, cfg bootstrap.Config, opts ...bootstrap.Option) *bootstrap.Lifecycle {
	return bootstrap.New(name, NewHooks(name), append([]bootstrap.Option{bootstrap.WithConfig(cfg)}, opts...)...)
}
