package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	pkgerrors "github.com/kart-io/legalstudy/pkg/errors"
	"github.com/kart-io/legalstudy/pkg/observability/metrics"
)

func TestLifecycle_HappyPath(t *testing.T) {
	l := New("database", HookFuncs{}, WithConfig(Config{"host": "localhost"}))

	assert.Equal(t, StateCreated, l.State())

	require.NoError(t, l.ValidateConfiguration(context.Background()))
	assert.Equal(t, StateConfigValidated, l.State())

	assert.True(t, l.TestConnection(context.Background()))
	assert.Equal(t, StateConnectionTested, l.State())

	require.NoError(t, l.PerformInitialization(context.Background()))
	assert.Equal(t, StateInitialized, l.State())

	assert.True(t, l.Status().IsReady())
	_, ok := l.Status().Data(DataInitializedAt)
	assert.True(t, ok)
	_, ok = l.Status().Data(DataConnectionLatencyMs)
	assert.True(t, ok)

	for _, phase := range []string{PhaseValidate, PhaseConnect, PhaseInitialize} {
		_, ok := l.Monitor().Duration("database", phase)
		assert.True(t, ok, "phase %s should be measured", phase)
	}
}

func TestLifecycle_ValidateFailsFast(t *testing.T) {
	l := New("database", HookFuncs{
		Validate: func(cfg Config) error {
			if !cfg.Has("host") {
				return errors.New("host is required")
			}
			return nil
		},
	})

	err := l.ValidateConfiguration(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "database")

	assert.True(t, l.Status().IsFailed())
	assert.Equal(t, []string{"host is required"}, l.Status().Errors())
	assert.Equal(t, ErrConfiguration.Code, l.Status().Code())
	assert.Equal(t, StateFailed, l.State())

	_, ok := l.Monitor().Duration("database", PhaseValidate)
	assert.True(t, ok, "failed phase is still measured")
}

func TestLifecycle_ConnectionFailsSoft(t *testing.T) {
	cause := errors.New("connection refused")
	l := New("cache", HookFuncs{
		Connect: func(context.Context, Config) error { return cause },
	})

	res := l.Probe(context.Background())
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, ErrConnection)
	assert.ErrorIs(t, res.Err, cause)

	assert.False(t, l.Status().IsFailed(), "a failed connection test is not fatal by itself")
	assert.Equal(t, []string{"connection refused"}, l.Status().Errors())
	assert.Equal(t, StateCreated, l.State())
}

func TestLifecycle_InitializeFailure(t *testing.T) {
	l := New("queue", HookFuncs{
		Init: func(context.Context, Config) error { return errors.New("broker rejected") },
	})

	err := l.PerformInitialization(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInitialization)
	assert.True(t, l.Status().IsFailed())
	assert.False(t, l.Status().IsInitialized())
	assert.Equal(t, StateFailed, l.State())
}

func TestLifecycle_PhaseOrderIsNotEnforced(t *testing.T) {
	l := New("api", HookFuncs{})

	require.NoError(t, l.PerformInitialization(context.Background()))
	assert.True(t, l.Status().IsInitialized())
	assert.Equal(t, StateInitialized, l.State())
}

func TestLifecycle_FailedIsAbsorbing(t *testing.T) {
	l := New("db", HookFuncs{
		Validate: func(Config) error { return errors.New("bad") },
	})
	_ = l.ValidateConfiguration(context.Background())

	require.NoError(t, l.PerformInitialization(context.Background()))
	assert.Equal(t, StateFailed, l.State())
	assert.False(t, l.Status().IsReady())
}

func TestLifecycle_HookPanicBecomesError(t *testing.T) {
	l := New("flaky", HookFuncs{
		Init: func(context.Context, Config) error { panic("nil map") },
	})

	var err error
	assert.NotPanics(t, func() { err = l.PerformInitialization(context.Background()) })
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrPanic)
	assert.True(t, l.Status().IsFailed())
}

func TestLifecycle_ValidatePanicBecomesError(t *testing.T) {
	l := New("flaky", HookFuncs{
		Validate: func(Config) error { panic("boom") },
	})

	err := l.ValidateConfiguration(context.Background())
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.True(t, l.Status().IsFailed())
}

func TestLifecycle_ConnectTimeout(t *testing.T) {
	l := New("slow", HookFuncs{
		Connect: func(ctx context.Context, _ Config) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}, WithConnectTimeout(20*time.Millisecond))

	res := l.Probe(context.Background())
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, ErrConnection)
	assert.Equal(t, ErrPhaseTimeout.Code, l.Status().Code(), "the timeout is more specific than the phase")
}

func TestLifecycle_CallerDeadlineIsNotPhaseTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	l := New("slow", HookFuncs{
		Connect: func(ctx context.Context, _ Config) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}, WithConnectTimeout(10*time.Second))

	res := l.Probe(ctx)
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, ErrConnection)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.NotErrorIs(t, res.Err, ErrPhaseTimeout)
	assert.Equal(t, ErrConnection.Code, l.Status().Code())
}

func TestLifecycle_InitTimeoutAbandonsHook(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	l := New("stuck", HookFuncs{
		Init: func(context.Context, Config) error {
			<-release
			return nil
		},
	}, WithInitTimeout(20*time.Millisecond))

	start := time.Now()
	err := l.PerformInitialization(context.Background())
	assert.Less(t, time.Since(start), time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInitialization)
	assert.ErrorIs(t, err, ErrPhaseTimeout)
}

func TestLifecycle_CallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := New("cancelled", HookFuncs{
		Init: func(ctx context.Context, _ Config) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	err := l.PerformInitialization(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLifecycle_Run(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		l := New("ok", HookFuncs{})
		require.NoError(t, l.Run(context.Background()))
		assert.True(t, l.Status().IsReady())
	})

	t.Run("connection failure marks failed", func(t *testing.T) {
		initCalled := false
		l := New("down", HookFuncs{
			Connect: func(context.Context, Config) error { return errors.New("unreachable") },
			Init: func(context.Context, Config) error {
				initCalled = true
				return nil
			},
		})
		err := l.Run(context.Background())
		assert.ErrorIs(t, err, ErrConnection)
		assert.False(t, initCalled)
		assert.True(t, l.Status().IsFailed())
		assert.Equal(t, StateFailed, l.State())
	})
}

func TestLifecycle_CheckHasNoSideEffects(t *testing.T) {
	l := New("cache", HookFuncs{
		Connect: func(context.Context, Config) error { return errors.New("down") },
	})

	res := l.Check(context.Background())
	assert.False(t, res.OK)
	assert.Equal(t, "down", res.Error())
	assert.Empty(t, l.Status().Errors())
	assert.Equal(t, 0, l.Monitor().Len())
}

func TestLifecycle_ConfigurationIsCopied(t *testing.T) {
	cfg := Config{"host": "a"}
	l := New("db", HookFuncs{}, WithConfig(cfg))
	cfg["host"] = "b"

	assert.Equal(t, "a", l.Configuration().String("host"))

	got := l.Configuration()
	got["host"] = "c"
	assert.Equal(t, "a", l.Configuration().String("host"))

	l.SetConfiguration(Config{"host": "d"})
	assert.Equal(t, "d", l.Configuration().String("host"))
}

func TestLifecycle_ResetAllowsRerun(t *testing.T) {
	fail := true
	l := New("db", HookFuncs{
		Validate: func(Config) error {
			if fail {
				return errors.New("bad")
			}
			return nil
		},
	})

	require.Error(t, l.Run(context.Background()))
	fail = false
	l.Reset()
	assert.Equal(t, StateCreated, l.State())
	assert.Equal(t, 0, l.Monitor().Len())

	require.NoError(t, l.Run(context.Background()))
	assert.True(t, l.Status().IsReady())
}

func TestLifecycle_Shutdown(t *testing.T) {
	closed := false
	l := New("db", HookFuncs{Close: func(context.Context) error {
		closed = true
		return nil
	}})
	require.NoError(t, l.Shutdown(context.Background()))
	assert.True(t, closed)
}

type reportingHooks struct{ HookFuncs }

func (reportingHooks) Report() map[string]any {
	return map[string]any{"pool.size": 8}
}

func TestLifecycle_ReporterDataMergedOnInit(t *testing.T) {
	l := New("db", reportingHooks{})

	require.NoError(t, l.ValidateConfiguration(context.Background()))
	_, ok := l.Status().Data("pool.size")
	assert.False(t, ok, "report is read only after initialization")

	require.NoError(t, l.PerformInitialization(context.Background()))
	v, ok := l.Status().Data("pool.size")
	require.True(t, ok)
	assert.Equal(t, 8, v)
}

func TestLifecycle_SpansAndMetrics(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(rec))
	reg := metrics.NewRegistry()

	l := New("database", HookFuncs{
		Connect: func(context.Context, Config) error { return errors.New("refused") },
	}, WithTracer(tp.Tracer("test")), WithMetrics(NewMetrics(reg)))

	_ = l.ValidateConfiguration(context.Background())
	_ = l.TestConnection(context.Background())

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "bootstrap."+PhaseValidate, spans[0].Name())
	assert.Equal(t, "bootstrap."+PhaseConnect, spans[1].Name())

	out := reg.Export()
	assert.Contains(t, out, `bootstrap_phase_total{outcome="ok",phase="validate_configuration",subsystem="database"} 1`)
	assert.Contains(t, out, `bootstrap_phase_total{outcome="error",phase="test_connection",subsystem="database"} 1`)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "created", StateCreated.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "state(42)", State(42).String())

	b, err := StateInitialized.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "initialized", string(b))
}
