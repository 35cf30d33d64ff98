// Package bootstrap drives the three-phase lifecycle of pluggable subsystems
// (validate configuration, test connection, perform initialization) and
// aggregates their outcomes in a state manager.
package bootstrap

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kart-io/legalstudy/pkg/errors"
	"github.com/kart-io/legalstudy/pkg/infra/tracing"
)

const tracerName = "github.com/kart-io/legalstudy/internal/bootstrap"

// Phase names, also used as the operation key in the performance monitor.
const (
	PhaseValidate   = "validate_configuration"
	PhaseConnect    = "test_connection"
	PhaseInitialize = "perform_initialization"
)

// Status data keys written by the lifecycle.
const (
	DataConnectionLatencyMs = "connection.latency_ms"
	DataInitializedAt       = "initialized_at"
)

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultInitTimeout    = 30 * time.Second
)

// Hooks is the subsystem-specific part of a lifecycle.
//
// ValidateConfig inspects the configuration and must not touch external
// resources. TestConnection returns nil when the subsystem is reachable.
// Initialize opens pools, provisions schemas and so on.
type Hooks interface {
	ValidateConfig(cfg Config) error
	TestConnection(ctx context.Context, cfg Config) error
	Initialize(ctx context.Context, cfg Config) error
}

// Shutdowner is implemented by hooks that hold resources.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// Reporter is implemented by hooks that expose diagnostics. Report is read
// once after a successful initialize phase and merged into the status data.
type Reporter interface {
	Report() map[string]any
}

// HookFuncs adapts plain functions to Hooks. A nil function succeeds.
type HookFuncs struct {
	Validate func(cfg Config) error
	Connect  func(ctx context.Context, cfg Config) error
	Init     func(ctx context.Context, cfg Config) error
	Close    func(ctx context.Context) error
}

func (h HookFuncs) ValidateConfig(cfg Config) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate(cfg)
}

func (h HookFuncs) TestConnection(ctx context.Context, cfg Config) error {
	if h.Connect == nil {
		return nil
	}
	return h.Connect(ctx, cfg)
}

func (h HookFuncs) Initialize(ctx context.Context, cfg Config) error {
	if h.Init == nil {
		return nil
	}
	return h.Init(ctx, cfg)
}

func (h HookFuncs) Shutdown(ctx context.Context) error {
	if h.Close == nil {
		return nil
	}
	return h.Close(ctx)
}

// State is the lifecycle position of a subsystem.
type State int

const (
	StateCreated State = iota
	StateConfigValidated
	StateConnectionTested
	StateInitialized
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConfigValidated:
		return "config_validated"
	case StateConnectionTested:
		return "connection_tested"
	case StateInitialized:
		return "initialized"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON reports.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Initializer is the contract the state manager drives.
type Initializer interface {
	Name() string
	// ValidateConfiguration fails fast: the error is recorded in Status and
	// returned.
	ValidateConfiguration(ctx context.Context) error
	// TestConnection fails soft: the error is recorded in Status and reported
	// as false.
	TestConnection(ctx context.Context) bool
	// PerformInitialization fails fast and marks the status failed.
	PerformInitialization(ctx context.Context) error
	Status() *Status
	Monitor() *PerformanceMonitor
	State() State
	Configuration() Config
	SetConfiguration(cfg Config)
}

// ConnectionResult is the outcome of a connection test.
type ConnectionResult struct {
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency"`
	Err     error         `json:"-"`
}

// Error returns the error text, or "".
func (r ConnectionResult) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Option configures a Lifecycle.
type Option func(*Lifecycle)

// WithConfig sets the initial configuration.
func WithConfig(cfg Config) Option {
	return func(l *Lifecycle) { l.cfg = cfg.Clone() }
}

// WithConnectTimeout bounds TestConnection. Zero disables the bound.
func WithConnectTimeout(d time.Duration) Option {
	return func(l *Lifecycle) { l.connectTimeout = d }
}

// WithInitTimeout bounds PerformInitialization. Zero disables the bound.
func WithInitTimeout(d time.Duration) Option {
	return func(l *Lifecycle) { l.initTimeout = d }
}

// WithDependencies declares subsystems that must be initialized first when
// the manager runs in dependency order.
func WithDependencies(names ...string) Option {
	return func(l *Lifecycle) { l.deps = slices.Clone(names) }
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(l *Lifecycle) { l.tracer = t }
}

// WithMetrics records phase outcomes into m.
func WithMetrics(m *Metrics) Option {
	return func(l *Lifecycle) { l.metrics = m }
}

// Lifecycle drives the three phases for one subsystem around its Hooks.
//
// Phase order is not enforced: PerformInitialization may be called without a
// prior successful validation. The state manager always runs the phases in
// order; direct callers are responsible for doing the same.
type Lifecycle struct {
	name  string
	hooks Hooks

	mu    sync.RWMutex
	cfg   Config
	state State

	status  *Status
	monitor *PerformanceMonitor

	connectTimeout time.Duration
	initTimeout    time.Duration
	deps           []string
	tracer         trace.Tracer
	metrics        *Metrics
}

var _ Initializer = (*Lifecycle)(nil)

// New returns a lifecycle for the subsystem name.
func New(name string, hooks Hooks, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		name:           name,
		hooks:          hooks,
		cfg:            Config{},
		status:         NewStatus(),
		monitor:        NewPerformanceMonitor(),
		connectTimeout: DefaultConnectTimeout,
		initTimeout:    DefaultInitTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.tracer == nil {
		l.tracer = otel.Tracer(tracerName)
	}
	return l
}

func (l *Lifecycle) Name() string                 { return l.name }
func (l *Lifecycle) Status() *Status              { return l.status }
func (l *Lifecycle) Monitor() *PerformanceMonitor { return l.monitor }
func (l *Lifecycle) Hooks() Hooks                 { return l.hooks }
func (l *Lifecycle) Dependencies() []string       { return slices.Clone(l.deps) }

// State returns the current state. A failed status always reads as
// StateFailed until Reset.
func (l *Lifecycle) State() State {
	if l.status.IsFailed() {
		return StateFailed
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Configuration returns a copy of the configuration.
func (l *Lifecycle) Configuration() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg.Clone()
}

// SetConfiguration replaces the configuration without validating it.
func (l *Lifecycle) SetConfiguration(cfg Config) {
	l.mu.Lock()
	l.cfg = cfg.Clone()
	l.mu.Unlock()
}

func (l *Lifecycle) advance(to State) {
	l.mu.Lock()
	if l.state != StateFailed {
		l.state = to
	}
	l.mu.Unlock()
}

func (l *Lifecycle) fail() {
	l.mu.Lock()
	l.state = StateFailed
	l.mu.Unlock()
}

// ValidateConfiguration runs the validate hook.
func (l *Lifecycle) ValidateConfiguration(ctx context.Context) (err error) {
	ctx, span := l.startPhase(ctx, PhaseValidate)
	start := time.Now()
	defer func() { l.endPhase(ctx, span, PhaseValidate, start, err) }()

	cfg := l.Configuration()
	if hookErr := guard(func() error { return l.hooks.ValidateConfig(cfg) }); hookErr != nil {
		l.status.AddError(hookErr.Error())
		l.status.SetCode(failureCode(hookErr, ErrConfiguration))
		l.status.MarkFailed()
		l.fail()
		return ErrConfiguration.WithMessagef("%s: invalid configuration", l.name).WithCause(hookErr)
	}

	l.advance(StateConfigValidated)
	return nil
}

// TestConnection runs the connection hook and reports reachability.
func (l *Lifecycle) TestConnection(ctx context.Context) bool {
	return l.Probe(ctx).OK
}

// Probe is TestConnection with the latency and error exposed.
func (l *Lifecycle) Probe(ctx context.Context) ConnectionResult {
	ctx, span := l.startPhase(ctx, PhaseConnect)
	start := time.Now()

	cfg := l.Configuration()
	hookErr := l.call(ctx, PhaseConnect, l.connectTimeout, func(ctx context.Context) error {
		return l.hooks.TestConnection(ctx, cfg)
	})
	res := ConnectionResult{OK: hookErr == nil, Latency: time.Since(start)}
	l.status.AddData(DataConnectionLatencyMs, res.Latency.Milliseconds())

	if hookErr != nil {
		l.status.AddError(hookErr.Error())
		l.status.SetCode(failureCode(hookErr, ErrConnection))
		res.Err = ErrConnection.WithMessagef("%s: connection test failed", l.name).WithCause(hookErr)
	} else {
		l.advance(StateConnectionTested)
	}

	l.endPhase(ctx, span, PhaseConnect, start, res.Err)
	return res
}

// Check runs the connection hook without touching status, state or the
// monitor. It backs health probes after bootstrap.
func (l *Lifecycle) Check(ctx context.Context) ConnectionResult {
	start := time.Now()
	cfg := l.Configuration()
	err := l.call(ctx, PhaseConnect, l.connectTimeout, func(ctx context.Context) error {
		return l.hooks.TestConnection(ctx, cfg)
	})
	return ConnectionResult{OK: err == nil, Latency: time.Since(start), Err: err}
}

// PerformInitialization runs the initialize hook.
func (l *Lifecycle) PerformInitialization(ctx context.Context) (err error) {
	ctx, span := l.startPhase(ctx, PhaseInitialize)
	start := time.Now()
	defer func() { l.endPhase(ctx, span, PhaseInitialize, start, err) }()

	cfg := l.Configuration()
	hookErr := l.call(ctx, PhaseInitialize, l.initTimeout, func(ctx context.Context) error {
		return l.hooks.Initialize(ctx, cfg)
	})
	if hookErr != nil {
		l.status.AddError(hookErr.Error())
		l.status.SetCode(failureCode(hookErr, ErrInitialization))
		l.status.MarkFailed()
		l.fail()
		return ErrInitialization.WithMessagef("%s: initialization failed", l.name).WithCause(hookErr)
	}

	if r, ok := l.hooks.(Reporter); ok {
		for k, v := range r.Report() {
			l.status.AddData(k, v)
		}
	}
	l.status.MarkComplete()
	l.status.AddData(DataInitializedAt, time.Now().UTC().Format(time.RFC3339Nano))
	l.advance(StateInitialized)
	return nil
}

// failureCode prefers the code carried by the hook error over the phase's.
func failureCode(hookErr error, phase *errors.Errno) int {
	if code := errors.GetCode(hookErr); code >= 0 {
		return code
	}
	return phase.Code
}

// Run executes all three phases in order, stopping at the first failure.
// A failed connection test stops the run with ErrConnection and marks the
// status failed.
func (l *Lifecycle) Run(ctx context.Context) error {
	if err := l.ValidateConfiguration(ctx); err != nil {
		return err
	}
	if res := l.Probe(ctx); !res.OK {
		l.status.MarkFailed()
		l.fail()
		return res.Err
	}
	return l.PerformInitialization(ctx)
}

// Reset clears status, measurements and state so the lifecycle can run
// again, typically after SetConfiguration.
func (l *Lifecycle) Reset() {
	l.status.Reset()
	l.monitor.Reset()
	l.mu.Lock()
	l.state = StateCreated
	l.mu.Unlock()
}

// Shutdown releases the hooks' resources if they hold any.
func (l *Lifecycle) Shutdown(ctx context.Context) error {
	s, ok := l.hooks.(Shutdowner)
	if !ok {
		return nil
	}
	return s.Shutdown(ctx)
}

// call runs fn bounded by timeout. A hook that ignores its context is
// abandoned once the deadline passes; its goroutine finishes on its own.
func (l *Lifecycle) call(ctx context.Context, phase string, timeout time.Duration, fn func(context.Context) error) error {
	// owned: 阶段自身的计时器先于调用方的截止时间到期
	owned := false
	if timeout > 0 {
		deadline := time.Now().Add(timeout)
		if pd, ok := ctx.Deadline(); !ok || pd.After(deadline) {
			owned = true
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() { done <- guard(func() error { return fn(ctx) }) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		select {
		case err = <-done:
		default:
			err = ctx.Err()
		}
	}
	// 超时与钩子自己返回的 ctx.Err() 一并归为阶段超时
	if err != nil && owned && ctx.Err() == context.DeadlineExceeded && stderrors.Is(err, context.DeadlineExceeded) {
		return ErrPhaseTimeout.WithMessagef("%s: %s exceeded %s", l.name, phase, timeout).WithCause(err)
	}
	return err
}

// guard converts a panic in fn into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.ErrPanic.WithMessagef("panic: %v", r)
		}
	}()
	return fn()
}

func (l *Lifecycle) startPhase(ctx context.Context, phase string) (context.Context, trace.Span) {
	l.monitor.StartMeasurement(l.name, phase)
	logger.Debugw("Subsystem phase started", "subsystem", l.name, "phase", phase)
	return l.tracer.Start(ctx, "bootstrap."+phase, trace.WithAttributes(
		attribute.String("subsystem", l.name),
		attribute.String("phase", phase),
	))
}

func (l *Lifecycle) endPhase(_ context.Context, span trace.Span, phase string, start time.Time, err error) {
	l.monitor.EndMeasurement(l.name, phase)
	elapsed := time.Since(start)

	span.SetAttributes(attribute.Int64("duration_ms", elapsed.Milliseconds()))
	tracing.EndSpan(span, err)
	l.metrics.observePhase(l.name, phase, elapsed, err)

	if err != nil {
		logger.Warnw("Subsystem phase failed",
			"subsystem", l.name,
			"phase", phase,
			"duration", elapsed,
			"error", err,
		)
		return
	}
	logger.Debugw("Subsystem phase completed", "subsystem", l.name, "phase", phase, "duration", elapsed)
}
