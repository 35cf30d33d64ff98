package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgapp "github.com/kart-io/legalstudy/pkg/app"
	"github.com/kart-io/legalstudy/pkg/utils/json"
)

func onceOptions(t *testing.T, subsystems map[string]map[string]any) *Options {
	t.Helper()
	opts := NewOptions()
	opts.Once = true
	opts.Serve.Addr = ""
	opts.Subsystems = subsystems
	require.NoError(t, opts.Complete())
	require.NoError(t, opts.Validate())
	return opts
}

func TestService_OncePrintsReport(t *testing.T) {
	var out bytes.Buffer
	svc := NewService(onceOptions(t, mockSections(false)), nil, &out)

	require.NoError(t, svc.Run(context.Background()))

	var report struct {
		Ready      bool   `json:"ready"`
		Mode       string `json:"mode"`
		Subsystems []struct {
			Name string `json:"name"`
		} `json:"subsystems"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.True(t, report.Ready)
	assert.Equal(t, "sequential", report.Mode)
	assert.Len(t, report.Subsystems, 2)
}

func TestService_OnceFailsWhenNotReady(t *testing.T) {
	var out bytes.Buffer
	svc := NewService(onceOptions(t, mockSections(true)), nil, &out)

	err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache")
	assert.Contains(t, out.String(), `"ready": false`)
}

func TestService_ServesUntilCancelled(t *testing.T) {
	opts := onceOptions(t, mockSections(false))
	opts.Once = false
	svc := NewService(opts, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool {
		r := svc.Runner()
		return r != nil && r.IsFullyInitialized()
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestService_WatchReappliesChangedSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legalstudy-bootstrap.yaml")
	write := func(cacheFails bool) {
		body := "subsystems:\n" +
			"  db:\n    kind: mock-database\n    host: localhost\n" +
			"  cache:\n    kind: mock-cache\n    should-fail: "
		if cacheFails {
			body += "true\n"
		} else {
			body += "false\n"
		}
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	write(false)

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	opts := NewOptions()
	opts.Serve.Addr = ""
	opts.Watch = true
	require.NoError(t, v.Unmarshal(opts, pkgapp.DecodeHook()))
	require.NoError(t, opts.Complete())
	require.NoError(t, opts.Validate())
	require.Len(t, opts.Subsystems, 2)

	svc := NewService(opts, v, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, func() bool {
		r := svc.Runner()
		return r != nil && r.IsFullyInitialized()
	}, 5*time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	write(true)

	require.Eventually(t, func() bool {
		r := svc.Runner()
		return r.Reloads() >= 1 && !r.IsFullyInitialized()
	}, 10*time.Second, 20*time.Millisecond)

	st, err := svc.Runner().Manager().Status("cache")
	require.NoError(t, err)
	assert.True(t, st.Failed)
}

func TestOptions_Validate(t *testing.T) {
	opts := NewOptions()
	require.NoError(t, opts.Complete())
	require.NoError(t, opts.Validate())

	opts.Watch, opts.Once = true, true
	assert.Error(t, opts.Validate())

	opts.Watch = false
	opts.Bootstrap.DependencyOrder = true
	opts.Bootstrap.Parallel = 4
	assert.Error(t, opts.Validate())

	opts.Bootstrap.Parallel = 1
	opts.Subsystems = map[string]map[string]any{"db": {"host": "h"}}
	assert.Error(t, opts.Validate())
}

func TestOptions_StringRedactsSecrets(t *testing.T) {
	opts := NewOptions()
	opts.Subsystems = map[string]map[string]any{
		"db": {"kind": "database", "password": "hunter2"},
	}
	s := opts.String()
	assert.NotContains(t, s, "hunter2")
	assert.Contains(t, s, "******")
}
