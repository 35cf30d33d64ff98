// Package subsystem maps configuration kinds to subsystem lifecycles.
package subsystem

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/spf13/cast"

	"github.com/kart-io/legalstudy/internal/bootstrap"
	"github.com/kart-io/legalstudy/internal/bootstrap/mock"
	"github.com/kart-io/legalstudy/internal/subsystem/api"
	"github.com/kart-io/legalstudy/internal/subsystem/cache"
	"github.com/kart-io/legalstudy/internal/subsystem/client"
	"github.com/kart-io/legalstudy/internal/subsystem/coordination"
	"github.com/kart-io/legalstudy/internal/subsystem/database"
	"github.com/kart-io/legalstudy/internal/subsystem/document"
	"github.com/kart-io/legalstudy/internal/subsystem/logging"
	"github.com/kart-io/legalstudy/internal/subsystem/queue"
)

// Factory builds the lifecycle of one configured subsystem.
type Factory func(name string, cfg bootstrap.Config, opts ...bootstrap.Option) *bootstrap.Lifecycle

// Mock kinds drive the in-memory services.
const (
	KindMockDatabase = "mock-database"
	KindMockCache    = "mock-cache"
	KindMockQueue    = "mock-queue"
	KindMockAPI      = "mock-api"
)

// Keys read by the mock kinds. The whole section is still handed to the
// service's Configure.
const (
	MockKeyShouldFail     = "should-fail"
	MockKeyFailureMessage = "failure-message"
	MockKeyAvailable      = "available"
	MockKeyRequired       = "required"
)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{
		logging.Kind:      logging.New,
		database.Kind:     database.New,
		cache.Kind:        cache.New,
		queue.Kind:        queue.New,
		coordination.Kind: coordination.New,
		document.Kind:     document.New,
		api.Kind:          api.New,
		KindMockDatabase:  mockFactory(func(n string) mock.Service { return mock.NewDatabase(n) }),
		KindMockCache:     mockFactory(func(n string) mock.Service { return mock.NewCache(n) }),
		KindMockQueue:     mockFactory(func(n string) mock.Service { return mock.NewQueue(n) }),
		KindMockAPI:       mockFactory(func(n string) mock.Service { return mock.NewAPI(n) }),
	}
)

// Register adds or replaces the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	factories[kind] = f
	mu.Unlock()
}

// Kinds returns the registered kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	return slices.Sorted(maps.Keys(factories))
}

// Build returns the lifecycle for a subsystem of the given kind.
func Build(kind, name string, cfg bootstrap.Config, opts ...bootstrap.Option) (*bootstrap.Lifecycle, error) {
	mu.RLock()
	f, ok := factories[kind]
	mu.RUnlock()
	if !ok {
		return nil, client.ErrUnsupportedDriver.WithMessagef("%s: unknown subsystem kind %q", name, kind)
	}
	return f(name, cfg, opts...), nil
}

// mockFactory applies the fault-injection keys at the start of every
// connection test, so a reconfigured section takes effect on the next run.
func mockFactory(newSvc func(name string) mock.Service) Factory {
	return func(name string, cfg bootstrap.Config, opts ...bootstrap.Option) *bootstrap.Lifecycle {
		svc := newSvc(name)
		hooks := mock.Hooks(svc, cast.ToStringSlice(cfg[MockKeyRequired])...)
		ping := hooks.Connect
		hooks.Connect = func(ctx context.Context, cfg bootstrap.Config) error {
			applyFaults(svc, cfg)
			return ping(ctx, cfg)
		}
		return bootstrap.New(name, hooks, append([]bootstrap.Option{bootstrap.WithConfig(cfg)}, opts...)...)
	}
}

func applyFaults(svc mock.Service, cfg bootstrap.Config) {
	if cfg.Has(MockKeyAvailable) && !cfg.Bool(MockKeyAvailable) {
		svc.Disable()
	} else {
		svc.Enable()
	}
	svc.SetShouldFail(cfg.Bool(MockKeyShouldFail))
	if msg := cfg.String(MockKeyFailureMessage); msg != "" {
		svc.SetFailureMessage(msg)
	}
}
