package subsystem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/legalstudy/internal/bootstrap"
	"github.com/kart-io/legalstudy/internal/subsystem/client"
	"github.com/kart-io/legalstudy/internal/subsystem/database"
)

func TestKinds(t *testing.T) {
	kinds := Kinds()
	for _, k := range []string{"api", "cache", "coordination", "database", "document", "logging", "queue",
		KindMockAPI, KindMockCache, KindMockDatabase, KindMockQueue} {
		assert.Contains(t, kinds, k)
	}
	assert.IsIncreasing(t, kinds)
}

func TestBuild_UnknownKind(t *testing.T) {
	_, err := Build("oracle", "legacy", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrUnsupportedDriver)
	assert.Contains(t, err.Error(), "legacy")
}

func TestBuild_PassesOptions(t *testing.T) {
	l, err := Build(database.Kind, "db", bootstrap.Config{"driver": "sqlite"},
		bootstrap.WithDependencies("logging"))
	require.NoError(t, err)
	assert.Equal(t, "db", l.Name())
	assert.Equal(t, []string{"logging"}, l.Dependencies())
	assert.Equal(t, "sqlite", l.Configuration().String("driver"))
}

func TestBuild_MockKinds(t *testing.T) {
	m := bootstrap.NewManager()
	for _, tc := range []struct {
		kind, name string
		cfg        bootstrap.Config
	}{
		{KindMockDatabase, "db", bootstrap.Config{"host": "localhost", MockKeyRequired: "host"}},
		{KindMockCache, "cache", bootstrap.Config{MockKeyShouldFail: true, MockKeyFailureMessage: "cache exploded"}},
		{KindMockQueue, "queue", bootstrap.Config{MockKeyAvailable: false}},
		{KindMockAPI, "api", nil},
	} {
		l, err := Build(tc.kind, tc.name, tc.cfg)
		require.NoError(t, err)
		require.NoError(t, m.Register(tc.name, l))
	}

	report, err := m.InitializeAll(context.Background())
	require.NoError(t, err)

	st := report.Statuses()
	assert.True(t, st["db"].Ready())
	assert.True(t, st["api"].Ready())
	assert.True(t, st["cache"].Failed)
	assert.Contains(t, st["cache"].Errors[0], "cache exploded")
	assert.True(t, st["queue"].Failed)
	assert.Contains(t, st["queue"].Errors[0], "unavailable")
	assert.Equal(t, []string{"cache", "queue"}, report.Failed())
}

func TestBuild_MockRequiredKey(t *testing.T) {
	l, err := Build(KindMockDatabase, "db", bootstrap.Config{MockKeyRequired: []string{"host", "user"}, "host": "h"})
	require.NoError(t, err)
	err = l.ValidateConfiguration(context.Background())
	assert.ErrorIs(t, err, bootstrap.ErrConfiguration)
	assert.Contains(t, l.Status().Errors()[0], `"user"`)
}

func TestBuild_MockFaultsFollowReconfigure(t *testing.T) {
	l, err := Build(KindMockCache, "cache", bootstrap.Config{MockKeyShouldFail: true})
	require.NoError(t, err)
	m := bootstrap.NewManager()
	m.MustRegister("cache", l)

	_, err = m.InitializeAll(context.Background())
	require.NoError(t, err)
	assert.False(t, m.IsFullyInitialized())

	require.NoError(t, m.Reconfigure(map[string]bootstrap.Config{"cache": {MockKeyShouldFail: false}}))
	_, err = m.InitializeAll(context.Background())
	require.NoError(t, err)
	assert.True(t, m.IsFullyInitialized())
}

func TestRegister(t *testing.T) {
	Register("noop", func(name string, cfg bootstrap.Config, opts ...bootstrap.Option) *bootstrap.Lifecycle {
		return bootstrap.New(name, bootstrap.HookFuncs{}, opts...)
	})
	l, err := Build("noop", "n", nil)
	require.NoError(t, err)
	require.NoError(t, l.Run(context.Background()))
}
