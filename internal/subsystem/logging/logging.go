// Package logging configures the global kart-io logger as the first
// bootstrap subsystem.
package logging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kart-io/logger"

	"github.com/kart-io/legalstudy/internal/bootstrap"
	"github.com/kart-io/legalstudy/pkg/component"
	loggeropts "github.com/kart-io/legalstudy/pkg/options/logger"
)

// Kind is the configuration kind handled by this package.
const Kind = "logging"

// Options is the logging subsystem configuration.
type Options struct {
	Engine      string   `json:"engine" mapstructure:"engine" validate:"oneof=zap slog"`
	Level       string   `json:"level" mapstructure:"level" validate:"required"`
	Format      string   `json:"format" mapstructure:"format" validate:"oneof=json console text"`
	OutputPaths []string `json:"output-paths" mapstructure:"output-paths" validate:"min=1,dive,required"`
	Development bool     `json:"development" mapstructure:"development"`
}

var _ component.ConfigOptions = (*Options)(nil)

// NewOptions returns the defaults of the global logger.
func NewOptions() *Options {
	d := loggeropts.NewOptions()
	return &Options{
		Engine:      d.Engine,
		Level:       d.Level,
		Format:      d.Format,
		OutputPaths: d.OutputPaths,
		Development: d.Development,
	}
}

func (o *Options) Complete() error {
	o.Engine = strings.ToLower(o.Engine)
	o.Format = strings.ToLower(o.Format)
	o.Level = strings.ToUpper(o.Level)
	if len(o.OutputPaths) == 0 {
		o.OutputPaths = []string{"stdout"}
	}
	return nil
}

// Validate defers to the logger's own option checks.
func (o *Options) Validate() error {
	lo := o.logOptions()
	if err := lo.Complete(); err != nil {
		return err
	}
	return lo.Validate()
}

func (o *Options) logOptions() *loggeropts.Options {
	lo := loggeropts.NewOptions()
	lo.Engine = o.Engine
	lo.Level = o.Level
	lo.Format = o.Format
	lo.OutputPaths = o.OutputPaths
	lo.Development = o.Development
	return lo
}

// Hooks installs the global logger.
type Hooks struct {
	mu      sync.Mutex
	applied *Options
}

// Load decodes and validates cfg over the defaults.
func Load(cfg bootstrap.Config) (*Options, error) {
	opts := NewOptions()
	if err := component.Load(cfg, opts); err != nil {
		return nil, err
	}
	return opts, nil
}

func (h *Hooks) ValidateConfig(cfg bootstrap.Config) error {
	_, err := Load(cfg)
	return err
}

// TestConnection checks that every file output can be created.
func (h *Hooks) TestConnection(_ context.Context, cfg bootstrap.Config) error {
	opts, err := Load(cfg)
	if err != nil {
		return err
	}
	for _, p := range opts.OutputPaths {
		if p == "stdout" || p == "stderr" {
			continue
		}
		dir := filepath.Dir(p)
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("log output %s: %w", p, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("log output %s: %s is not a directory", p, dir)
		}
	}
	return nil
}

func (h *Hooks) Initialize(_ context.Context, cfg bootstrap.Config) error {
	opts, err := Load(cfg)
	if err != nil {
		return err
	}
	if err := opts.logOptions().Init(); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	h.mu.Lock()
	h.applied = opts
	h.mu.Unlock()
	logger.Infow("Logger configured", "engine", opts.Engine, "level", opts.Level, "format", opts.Format)
	return nil
}

// Shutdown flushes buffered log entries.
func (h *Hooks) Shutdown(context.Context) error {
	return logger.Flush()
}

// Report exposes the applied settings in the subsystem status.
func (h *Hooks) Report() map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.applied == nil {
		return nil
	}
	return map[string]any{
		"logging.engine": h.applied.Engine,
		"logging.level":  h.applied.Level,
	}
}

// New returns the logging lifecycle.
func New(name string, cfg bootstrap.Config, opts ...bootstrap.Option) *bootstrap.Lifecycle {
	return bootstrap.New(name, &Hooks{}, append([]bootstrap.Option{bootstrap.WithConfig(cfg)}, opts...)...)
}
