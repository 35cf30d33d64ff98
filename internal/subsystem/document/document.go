// Package document is the MongoDB subsystem. Initialization provisions the
// configured indexes.
package document

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kart-io/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/kart-io/legalstudy/internal/bootstrap"
	"github.com/kart-io/legalstudy/internal/subsystem/client"
)

// Kind is the configuration kind handled by this package.
const Kind = "document"

type mongoClient interface {
	Ping(ctx context.Context) error
	EnsureIndex(ctx context.Context, database string, idx IndexOptions) (string, error)
	Disconnect(ctx context.Context) error
}

type realMongo struct {
	client *mongo.Client
}

func connectMongo(ctx context.Context, opts *Options) (mongoClient, error) {
	co := mongoopts.Client().ApplyURI(BuildURI(opts))
	if opts.MaxPoolSize > 0 {
		co.SetMaxPoolSize(opts.MaxPoolSize)
	}
	if opts.MinPoolSize > 0 {
		co.SetMinPoolSize(opts.MinPoolSize)
	}
	if opts.MaxConnIdleTime > 0 {
		co.SetMaxConnIdleTime(opts.MaxConnIdleTime)
	}
	if opts.ConnectTimeout > 0 {
		co.SetConnectTimeout(opts.ConnectTimeout)
	}
	if opts.ServerSelectionTimeout > 0 {
		co.SetServerSelectionTimeout(opts.ServerSelectionTimeout)
	}

	c, err := mongo.Connect(ctx, co)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	return &realMongo{client: c}, nil
}

func (r *realMongo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

func (r *realMongo) EnsureIndex(ctx context.Context, database string, idx IndexOptions) (string, error) {
	model := mongo.IndexModel{
		Keys:    indexKeys(idx.Keys),
		Options: mongoopts.Index().SetUnique(idx.Unique),
	}
	return r.client.Database(database).Collection(idx.Collection).Indexes().CreateOne(ctx, model)
}

func (r *realMongo) Disconnect(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

// indexKeys turns ["case_id", "-created_at"] into an ordered key document.
func indexKeys(keys []string) bson.D {
	d := make(bson.D, 0, len(keys))
	for _, k := range keys {
		dir := 1
		if name, ok := strings.CutPrefix(k, "-"); ok {
			k, dir = name, -1
		}
		d = append(d, bson.E{Key: k, Value: dir})
	}
	return d
}

// Hooks connects to MongoDB and provisions indexes.
type Hooks struct {
	name    string
	connect func(context.Context, *Options) (mongoClient, error)

	mu      sync.RWMutex
	client  mongoClient
	opts    *Options
	indexes []string
}

// NewHooks returns document hooks for the subsystem name.
func NewHooks(name string) *Hooks {
	return &Hooks{name: name, connect: connectMongo}
}

func (h *Hooks) ValidateConfig(cfg bootstrap.Config) error {
	_, err := Load(cfg)
	return err
}

// TestConnection pings the primary on a short-lived client.
func (h *Hooks) TestConnection(ctx context.Context, cfg bootstrap.Config) error {
	opts, err := Load(cfg)
	if err != nil {
		return err
	}
	c, err := h.connect(ctx, opts)
	if err != nil {
		return err
	}
	defer c.Disconnect(context.WithoutCancel(ctx)) //nolint:errcheck

	if err := c.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return nil
}

func (h *Hooks) Initialize(ctx context.Context, cfg bootstrap.Config) error {
	opts, err := Load(cfg)
	if err != nil {
		return err
	}
	c, err := h.connect(ctx, opts)
	if err != nil {
		return err
	}
	if err := c.Ping(ctx); err != nil {
		_ = c.Disconnect(context.WithoutCancel(ctx))
		return fmt.Errorf("failed to ping mongodb: %w", err)
	}

	names := make([]string, 0, len(opts.Indexes))
	for _, idx := range opts.Indexes {
		name, err := c.EnsureIndex(ctx, opts.Database, idx)
		if err != nil {
			_ = c.Disconnect(context.WithoutCancel(ctx))
			return fmt.Errorf("create index on %s: %w", idx.Collection, err)
		}
		names = append(names, idx.Collection+"."+name)
	}

	h.mu.Lock()
	old := h.client
	h.client, h.opts, h.indexes = c, opts, names
	h.mu.Unlock()
	if old != nil {
		_ = old.Disconnect(ctx)
	}

	logger.Infow("Document store connected", "subsystem", h.name, "target", opts.String(), "indexes", len(names))
	return nil
}

func (h *Hooks) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	c := h.client
	h.client = nil
	h.mu.Unlock()
	if c == nil {
		return nil
	}
	return c.Disconnect(ctx)
}

func (h *Hooks) Report() map[string]any {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.client == nil {
		return nil
	}
	return map[string]any{
		"document.database": h.opts.Database,
		"document.indexes":  append([]string(nil), h.indexes...),
	}
}

// Client returns the mongo client opened by Initialize.
func (h *Hooks) Client() (*mongo.Client, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.client.(*realMongo)
	if !ok {
		return nil, client.ErrNotConnected.WithMessagef("%s: document store not initialized", h.name)
	}
	return r.client, nil
}

// New returns the document lifecycle.
func New(name string, cfg bootstrap.Config, opts ...bootstrap.Option) *bootstrap.Lifecycle {
	return bootstrap.New(name, NewHooks(name), append([]bootstrap.Option{bootstrap.WithConfig(cfg)}, opts...)...)
}
