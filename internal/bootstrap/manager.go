package bootstrap

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"golang.org/x/sync/errgroup"

	"github.com/kart-io/legalstudy/pkg/errors"
	"github.com/kart-io/legalstudy/pkg/id"
	"github.com/kart-io/legalstudy/pkg/infra/pool"
)

// Run modes recorded in reports.
const (
	ModeSequential = "sequential"
	ModeParallel   = "parallel"
	ModeDependency = "dependency"
)

// dependent is implemented by initializers that declare ordering hints.
type dependent interface {
	Dependencies() []string
}

// checker is implemented by initializers that support side-effect free
// health probes.
type checker interface {
	Check(ctx context.Context) ConnectionResult
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithParallel runs up to n subsystems concurrently on a worker pool.
// Values below 2 keep the sequential default.
func WithParallel(n int) ManagerOption {
	return func(m *Manager) { m.parallel = n }
}

// WithDependencyOrder runs subsystems in dependency order instead of
// registration order. Subsystems whose dependencies did not initialize are
// failed without running any phase.
func WithDependencyOrder() ManagerOption {
	return func(m *Manager) { m.dependencyOrder = true }
}

// WithOptionalConnection lets a subsystem continue to initialization after a
// failed connection test; the failure is kept as a warning.
func WithOptionalConnection() ManagerOption {
	return func(m *Manager) { m.requireConnection = false }
}

// WithReportMetrics records run outcomes into mt.
func WithReportMetrics(mt *Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = mt }
}

type entry struct {
	name string
	init Initializer
}

// Manager owns the registry of subsystem initializers and runs their
// lifecycles.
//
// Registration is closed while InitializeAll runs. Each subsystem keeps its
// own status and monitor, so status reads are safe during a run.
type Manager struct {
	mu      sync.RWMutex
	entries []entry
	byName  map[string]Initializer
	last    *Report

	running atomic.Bool

	parallel          int
	dependencyOrder   bool
	requireConnection bool
	metrics           *Metrics
}

// NewManager returns an empty manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		byName:            make(map[string]Initializer),
		requireConnection: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds an initializer under name. Names are unique; registering a
// name twice fails and keeps the original.
func (m *Manager) Register(name string, init Initializer) error {
	if name == "" {
		return ErrInvalidRegistration.WithMessage("subsystem name must not be empty")
	}
	if init == nil {
		return ErrInvalidRegistration.WithMessagef("subsystem %q: initializer must not be nil", name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running.Load() {
		return ErrBootstrapInProgress.WithMessagef("cannot register %q while a bootstrap run is in progress", name)
	}
	if _, exists := m.byName[name]; exists {
		return ErrDuplicateRegistration.WithMessagef("subsystem %q already registered", name)
	}
	m.entries = append(m.entries, entry{name: name, init: init})
	m.byName[name] = init
	return nil
}

// MustRegister is Register that panics on error.
func (m *Manager) MustRegister(name string, init Initializer) {
	if err := m.Register(name, init); err != nil {
		panic(err)
	}
}

// Get returns the initializer registered under name.
func (m *Manager) Get(name string) (Initializer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	init, ok := m.byName[name]
	if !ok {
		return nil, ErrNotFound.WithMessagef("subsystem %q not registered", name)
	}
	return init, nil
}

// Status returns a snapshot of the named subsystem's status.
func (m *Manager) Status(name string) (StatusSnapshot, error) {
	init, err := m.Get(name)
	if err != nil {
		return StatusSnapshot{}, err
	}
	return init.Status().Snapshot(), nil
}

// Statuses returns every subsystem's status snapshot keyed by name.
func (m *Manager) Statuses() map[string]StatusSnapshot {
	out := make(map[string]StatusSnapshot)
	for _, e := range m.snapshot() {
		out[e.name] = e.init.Status().Snapshot()
	}
	return out
}

// Names returns the registered names in registration order.
func (m *Manager) Names() []string {
	entries := m.snapshot()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	return names
}

// Len returns the number of registered subsystems.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// IsFullyInitialized reports whether every registered subsystem is
// initialized and not failed. It is true for an empty registry.
func (m *Manager) IsFullyInitialized() bool {
	for _, e := range m.snapshot() {
		if !e.init.Status().IsReady() {
			return false
		}
	}
	return true
}

// AllInitialized is the AND of every subsystem's initialized flag.
func (m *Manager) AllInitialized() bool {
	for _, e := range m.snapshot() {
		if !e.init.Status().IsInitialized() {
			return false
		}
	}
	return true
}

// AnyFailed is the OR of every subsystem's failed flag.
func (m *Manager) AnyFailed() bool {
	for _, e := range m.snapshot() {
		if e.init.Status().IsFailed() {
			return true
		}
	}
	return false
}

// Running reports whether InitializeAll or Reconfigure is in progress.
func (m *Manager) Running() bool {
	return m.running.Load()
}

// LastReport returns the report of the most recent run, or nil.
func (m *Manager) LastReport() *Report {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

func (m *Manager) snapshot() []entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.entries)
}

// InitializeAll runs validate, test-connection and initialize for every
// registered subsystem. A failing subsystem never stops the others; its
// outcome is recorded in its status and in the returned report. Each run
// resets the subsystems first, so a second run reports only its own outcome.
//
// The error is reserved for misuse: a concurrent run, or an unresolvable
// dependency graph in dependency mode. Subsystem failures are reported
// through Report.Ready and IsFullyInitialized.
func (m *Manager) InitializeAll(ctx context.Context) (*Report, error) {
	if !m.running.CompareAndSwap(false, true) {
		return nil, ErrBootstrapInProgress
	}
	defer m.running.Store(false)

	entries := m.snapshot()
	// 每次运行都从干净的状态开始，报告只反映本次结果
	for _, e := range entries {
		resetEntry(e.init)
	}
	mode := ModeSequential
	switch {
	case m.dependencyOrder:
		mode = ModeDependency
		ordered, err := m.dependencyOrdered(entries)
		if err != nil {
			return nil, err
		}
		entries = ordered
	case m.parallel > 1 && len(entries) > 1:
		mode = ModeParallel
	}

	report := &Report{
		RunID:     id.New(),
		Mode:      mode,
		StartedAt: time.Now(),
	}
	logger.Infow("Bootstrap run started", "run_id", report.RunID, "mode", mode, "subsystems", len(entries))

	var results []SubsystemReport
	switch mode {
	case ModeParallel:
		results = m.runParallel(ctx, entries)
	case ModeDependency:
		results = m.runDependencyOrdered(ctx, entries)
	default:
		results = make([]SubsystemReport, len(entries))
		for i, e := range entries {
			results[i] = m.runOne(ctx, e)
		}
	}

	report.Subsystems = results
	report.FinishedAt = time.Now()
	report.Duration = report.FinishedAt.Sub(report.StartedAt)
	report.Ready = true
	for _, r := range results {
		if !r.Status.Ready() {
			report.Ready = false
			break
		}
	}

	m.mu.Lock()
	m.last = report
	m.mu.Unlock()
	m.metrics.observeRun(report)

	if report.Ready {
		logger.Infow("Bootstrap run completed", "run_id", report.RunID, "duration", report.Duration)
	} else {
		logger.Errorw("Bootstrap run completed with failures",
			"run_id", report.RunID,
			"duration", report.Duration,
			"failed", report.Failed(),
		)
	}
	return report, nil
}

// runOne drives one subsystem through its phases and never panics.
func (m *Manager) runOne(ctx context.Context, e entry) (res SubsystemReport) {
	start := time.Now()
	status := e.init.Status()

	defer func() {
		if r := recover(); r != nil {
			status.Fail(errors.ErrPanic.WithMessagef("%s: panic: %v", e.name, r))
		}
		res = m.subsystemReport(e, time.Since(start))
	}()

	logger.Infof("Initializing %s...", e.name)

	if err := e.init.ValidateConfiguration(ctx); err != nil {
		return
	}

	if !e.init.TestConnection(ctx) {
		if m.requireConnection {
			status.MarkFailed()
			return
		}
		status.AddWarning("connection test failed; continuing to initialization")
	}

	_ = e.init.PerformInitialization(ctx)
	return
}

func (m *Manager) subsystemReport(e entry, d time.Duration) SubsystemReport {
	snap := e.init.Status().Snapshot()
	r := SubsystemReport{
		Name:         e.name,
		State:        e.init.State(),
		Status:       snap,
		Measurements: slices.Collect(e.init.Monitor().All()),
		Duration:     d,
	}
	if snap.Failed && len(snap.Errors) > 0 {
		r.Error = snap.Errors[len(snap.Errors)-1]
	}
	return r
}

// runParallel gives each subsystem its own task. Tasks write to distinct
// slots; results are read only after every task finished.
func (m *Manager) runParallel(ctx context.Context, entries []entry) []SubsystemReport {
	results := make([]SubsystemReport, len(entries))

	p, err := pool.New("bootstrap", &pool.Config{
		Capacity:       m.parallel,
		ExpiryDuration: 10 * time.Second,
	})
	if err != nil {
		logger.Warnw("Worker pool unavailable, running sequentially", "error", err)
		for i, e := range entries {
			results[i] = m.runOne(ctx, e)
		}
		return results
	}
	defer p.Release()

	tasks := make([]func(), len(entries))
	for i, e := range entries {
		tasks[i] = func() { results[i] = m.runOne(ctx, e) }
	}
	p.Go(ctx, tasks, func(i int, err error) {
		e := entries[i]
		e.init.Status().Fail(fmt.Errorf("%s: not scheduled: %w", e.name, err))
		results[i] = m.subsystemReport(e, 0)
	})
	return results
}

func (m *Manager) dependencyOrdered(entries []entry) ([]entry, error) {
	names := make([]string, len(entries))
	deps := make(map[string][]string)
	byName := make(map[string]entry, len(entries))
	for i, e := range entries {
		names[i] = e.name
		byName[e.name] = e
		if d, ok := e.init.(dependent); ok {
			deps[e.name] = d.Dependencies()
		}
	}

	order, err := ResolveDependencies(names, deps)
	if err != nil {
		return nil, err
	}
	out := make([]entry, len(order))
	for i, name := range order {
		out[i] = byName[name]
	}
	return out, nil
}

func (m *Manager) runDependencyOrdered(ctx context.Context, entries []entry) []SubsystemReport {
	results := make([]SubsystemReport, 0, len(entries))
	ready := make(map[string]bool, len(entries))

	for _, e := range entries {
		var blocked []string
		if d, ok := e.init.(dependent); ok {
			for _, dep := range d.Dependencies() {
				if !ready[dep] {
					blocked = append(blocked, dep)
				}
			}
		}
		if len(blocked) > 0 {
			e.init.Status().Fail(ErrDependency.WithMessagef("%s: dependencies not initialized: %v", e.name, blocked))
			results = append(results, m.subsystemReport(e, 0))
			logger.Warnw("Subsystem skipped", "subsystem", e.name, "blocked_by", blocked)
			continue
		}

		r := m.runOne(ctx, e)
		ready[e.name] = r.Status.Ready()
		results = append(results, r)
	}
	return results
}

// ProbeResult is the health of one subsystem at probe time.
type ProbeResult struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
	// Code is the errno code of Error; foreign errors map to the common
	// internal, timeout or canceled codes.
	Code int `json:"code,omitempty"`
}

// ProbeAll checks every subsystem concurrently. Initializers without a
// side-effect free check report their last known readiness.
func (m *Manager) ProbeAll(ctx context.Context) map[string]ProbeResult {
	entries := m.snapshot()
	out := make(map[string]ProbeResult, len(entries))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(m.parallel, 4))
	for _, e := range entries {
		g.Go(func() error {
			pr := ProbeResult{Name: e.name}
			if c, ok := e.init.(checker); ok {
				res := c.Check(gctx)
				pr.OK, pr.LatencyMs, pr.Error = res.OK, res.Latency.Milliseconds(), res.Error()
				if res.Err != nil {
					pr.Code = errors.FromError(res.Err).Code
				}
			} else {
				pr.OK = e.init.Status().IsReady()
				if !pr.OK {
					pr.Error = "not initialized"
				}
			}
			mu.Lock()
			out[e.name] = pr
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Shutdown releases subsystems in reverse registration order. Every
// initializer implementing Shutdowner is called; errors are joined.
func (m *Manager) Shutdown(ctx context.Context) error {
	entries := m.snapshot()
	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		s, ok := e.init.(Shutdowner)
		if !ok {
			continue
		}
		if err := s.Shutdown(ctx); err != nil {
			logger.Errorw("Subsystem shutdown failed", "subsystem", e.name, "error", err)
			errs = append(errs, fmt.Errorf("shutdown %s: %w", e.name, err))
		}
	}
	return stderrors.Join(errs...)
}

// Reconfigure replaces the configuration of the named subsystems and resets
// them so the next InitializeAll runs their lifecycle from the start.
// Subsystems whose initializer cannot be reset keep their previous status.
func (m *Manager) Reconfigure(configs map[string]Config) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrBootstrapInProgress
	}
	defer m.running.Store(false)

	for name, cfg := range configs {
		init, err := m.Get(name)
		if err != nil {
			return err
		}
		init.SetConfiguration(cfg)
		resetEntry(init)
	}
	return nil
}

func resetEntry(init Initializer) {
	if r, ok := init.(interface{ Reset() }); ok {
		r.Reset()
	}
}
