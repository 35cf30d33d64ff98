package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/trace"

	"github.com/kart-io/legalstudy/internal/bootstrap"
	"github.com/kart-io/legalstudy/internal/subsystem"
)

// Runner owns the bootstrap manager built from the subsystem sections and
// rebuilds or reconfigures it when the sections change. It serves the
// readiness endpoints from whichever manager is current.
type Runner struct {
	opts    *BootstrapOptions
	metrics *bootstrap.Metrics
	tracer  trace.Tracer

	mu       sync.Mutex // serializes Apply and Shutdown
	current  atomic.Pointer[bootstrap.Manager]
	topology string
	applied  atomic.Bool
	reloads  int
}

// NewRunner creates a runner with an empty manager. tracer and mt may be nil.
func NewRunner(opts *BootstrapOptions, mt *bootstrap.Metrics, tracer trace.Tracer) *Runner {
	if opts == nil {
		opts = NewBootstrapOptions()
	}
	r := &Runner{opts: opts, metrics: mt, tracer: tracer}
	r.current.Store(bootstrap.NewManager(opts.managerOptions(mt)...))
	return r
}

// Manager returns the current manager.
func (r *Runner) Manager() *bootstrap.Manager {
	return r.current.Load()
}

// Reloads returns how many times Apply ran after the first one.
func (r *Runner) Reloads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reloads
}

// Apply brings the manager in line with raw and runs the whole bootstrap.
//
// When only section configuration changed, every subsystem is shut down,
// reconfigured and run again on the same manager. When subsystems were
// added, removed, or changed kind or dependencies, a new manager is built
// and run, then swapped in, and the old one is shut down.
func (r *Runner) Apply(ctx context.Context, raw map[string]map[string]any) (*bootstrap.Report, error) {
	sections, err := ParseSections(raw, r.opts.Order)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	first := !r.applied.Load()
	if !first {
		r.reloads++
	}
	topo := topology(sections)
	cur := r.current.Load()

	if !first && topo == r.topology {
		logger.Infow("Reconfiguring subsystems", "subsystems", cur.Len())
		if err := cur.Shutdown(ctx); err != nil {
			logger.Warnw("Releasing subsystems before reconfigure failed", "error", err)
		}
		configs := make(map[string]bootstrap.Config, len(sections))
		for _, s := range sections {
			configs[s.Name] = s.Config
		}
		if err := cur.Reconfigure(configs); err != nil {
			return nil, err
		}
		return r.run(ctx, cur)
	}

	next, err := r.build(sections)
	if err != nil {
		return nil, err
	}
	report, err := r.run(ctx, next)
	if err != nil {
		return nil, err
	}

	old := r.current.Swap(next)
	r.topology = topo
	r.applied.Store(true)
	if !first {
		logger.Infow("Subsystem set changed, replaced manager", "subsystems", next.Len())
	}
	if err := old.Shutdown(ctx); err != nil {
		logger.Warnw("Releasing replaced subsystems failed", "error", err)
	}
	return report, nil
}

func (r *Runner) build(sections []Section) (*bootstrap.Manager, error) {
	m := bootstrap.NewManager(r.opts.managerOptions(r.metrics)...)
	for _, s := range sections {
		opts := []bootstrap.Option{
			bootstrap.WithConnectTimeout(r.opts.ConnectTimeout),
			bootstrap.WithInitTimeout(r.opts.InitTimeout),
			bootstrap.WithDependencies(s.Dependencies...),
			bootstrap.WithMetrics(r.metrics),
		}
		if r.tracer != nil {
			opts = append(opts, bootstrap.WithTracer(r.tracer))
		}
		lc, err := subsystem.Build(s.Kind, s.Name, s.Config, opts...)
		if err != nil {
			return nil, err
		}
		if err := m.Register(s.Name, lc); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (r *Runner) run(ctx context.Context, m *bootstrap.Manager) (*bootstrap.Report, error) {
	report, err := m.InitializeAll(ctx)
	if err != nil {
		return nil, err
	}
	if report.Ready {
		logger.Infow("Bootstrap complete", "run_id", report.RunID, "duration", report.Duration)
	} else {
		logger.Warnw("Bootstrap incomplete", "run_id", report.RunID, "failed", report.Failed())
	}
	return report, nil
}

// OnConfigChange applies a reloaded subsystems section. newConfig must be
// a *map[string]map[string]any.
func (r *Runner) OnConfigChange(newConfig any) error {
	raw, ok := newConfig.(*map[string]map[string]any)
	if !ok {
		return fmt.Errorf("unexpected subsystems config type %T", newConfig)
	}
	timeout := r.opts.ConnectTimeout + r.opts.InitTimeout
	ctx, cancel := context.WithTimeout(context.Background(), max(timeout, time.Second)*time.Duration(max(len(*raw), 1)))
	defer cancel()
	_, err := r.Apply(ctx, *raw)
	return err
}

// Shutdown releases every subsystem of the current manager.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current.Load().Shutdown(ctx)
}

// The methods below make Runner a readiness source.

// IsFullyInitialized is false until the first Apply swapped in a manager.
func (r *Runner) IsFullyInitialized() bool {
	return r.applied.Load() && r.current.Load().IsFullyInitialized()
}

func (r *Runner) Running() bool { return r.current.Load().Running() }
func (r *Runner) Statuses() map[string]bootstrap.StatusSnapshot {
	return r.current.Load().Statuses()
}
func (r *Runner) LastReport() *bootstrap.Report { return r.current.Load().LastReport() }
func (r *Runner) ProbeAll(ctx context.Context) map[string]bootstrap.ProbeResult {
	return r.current.Load().ProbeAll(ctx)
}
