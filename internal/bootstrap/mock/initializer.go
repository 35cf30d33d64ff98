package mock

import (
	"context"
	"fmt"

	"github.com/kart-io/legalstudy/internal/bootstrap"
)

// Hooks adapts svc to the lifecycle hooks.
//
// Validation checks that every required key is set and that "port", when
// present, is a valid TCP port; it never touches the service. The connection
// test pings the service. Initialization configures and connects it.
func Hooks(svc Service, required ...string) bootstrap.HookFuncs {
	return bootstrap.HookFuncs{
		Validate: func(cfg bootstrap.Config) error {
			for _, key := range required {
				if !cfg.Has(key) {
					return fmt.Errorf("missing required configuration key %q", key)
				}
			}
			if cfg.Has("port") {
				port, ok := cfg.Int("port")
				if !ok || port < 1 || port > 65535 {
					return fmt.Errorf("invalid port %v: must be between 1 and 65535", cfg["port"])
				}
			}
			return nil
		},
		Connect: func(ctx context.Context, _ bootstrap.Config) error {
			return svc.Ping(ctx)
		},
		Init: func(ctx context.Context, cfg bootstrap.Config) error {
			if err := svc.Configure(cfg); err != nil {
				return err
			}
			return svc.Connect(ctx)
		},
		Close: svc.Disconnect,
	}
}

// NewInitializer returns a lifecycle named name that drives svc with cfg.
func NewInitializer(name string, svc Service, cfg bootstrap.Config, required ...string) *bootstrap.Lifecycle {
	return bootstrap.New(name, Hooks(svc, required...), bootstrap.WithConfig(cfg))
}
