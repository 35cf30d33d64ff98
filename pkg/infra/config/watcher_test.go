package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReloadable struct {
	mu    sync.Mutex
	calls int
	last  map[string]any
	err   error
}

func (r *recordingReloadable) OnConfigChange(newConfig any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if m, ok := newConfig.(*map[string]any); ok {
		r.last = *m
	}
	return r.err
}

func (r *recordingReloadable) snapshot() (int, map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls, r.last
}

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestWatcher_SubscribeUnsubscribe(t *testing.T) {
	w := NewWatcher(viper.New())
	assert.Equal(t, 0, w.HandlerCount())
	assert.False(t, w.IsWatching())

	w.Subscribe("a", func(*viper.Viper) error { return nil })
	w.Subscribe("a", func(*viper.Viper) error { return nil })
	w.Subscribe("b", func(*viper.Viper) error { return nil })
	assert.Equal(t, 2, w.HandlerCount(), "same id replaces")

	w.Unsubscribe("a")
	w.Unsubscribe("missing")
	assert.Equal(t, 1, w.HandlerCount())
}

func TestWatcher_DispatchOrderAndErrorIsolation(t *testing.T) {
	w := NewWatcher(viper.New(), WithDebounce(0))
	w.watching = true

	var order []string
	w.Subscribe("b", func(*viper.Viper) error { order = append(order, "b"); return errors.New("rejected") })
	w.Subscribe("a", func(*viper.Viper) error { order = append(order, "a"); return nil })
	w.Subscribe("c", func(*viper.Viper) error { order = append(order, "c"); return nil })

	w.dispatch()
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, 1, w.Changes())
}

func TestWatcher_DebounceCoalescesBurst(t *testing.T) {
	w := NewWatcher(viper.New(), WithDebounce(20*time.Millisecond))
	w.watching = true

	for range 5 {
		w.schedule()
	}
	assert.Eventually(t, func() bool { return w.Changes() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, w.Changes())
}

func TestWatcher_StopDropsPendingChange(t *testing.T) {
	w := NewWatcher(viper.New(), WithDebounce(30*time.Millisecond))
	w.watching = true

	w.schedule()
	w.Stop()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, w.Changes())
	assert.False(t, w.IsWatching())

	w.schedule()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, w.Changes(), "events are ignored while stopped")
}

func TestReloadableSubscriber_DecodesKey(t *testing.T) {
	v := viper.New()
	v.Set("subsystems", map[string]any{"db": map[string]any{"kind": "database"}})

	comp := &recordingReloadable{}
	var target map[string]any
	h := NewReloadableSubscriber(comp, "subsystems", &target).Handler()
	require.NoError(t, h(v))

	calls, last := comp.snapshot()
	assert.Equal(t, 1, calls)
	assert.Contains(t, last, "db")

	// removed sections do not linger
	v.Set("subsystems", map[string]any{"cache": map[string]any{"kind": "cache"}})
	require.NoError(t, h(v))
	_, last = comp.snapshot()
	assert.NotContains(t, last, "db")
	assert.Contains(t, last, "cache")
}

func TestReloadableSubscriber_ComponentError(t *testing.T) {
	v := viper.New()
	v.Set("subsystems", map[string]any{})
	comp := &recordingReloadable{err: errors.New("bad section")}
	var target map[string]any

	err := NewReloadableSubscriber(comp, "subsystems", &target).Handler()(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad section")
}

func TestReloadableSubscriber_UnmarshalError(t *testing.T) {
	v := viper.New()
	v.Set("port", map[string]any{"value": 1})
	var target int

	err := NewReloadableSubscriber(&recordingReloadable{}, "port", &target).Handler()(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"port"`)
}

func TestWatcher_FileChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bootstrap.yaml")
	writeConfig(t, path, "bootstrap:\n  parallel: 1\n")

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	w := NewWatcher(v, WithDebounce(20*time.Millisecond))
	seen := make(chan int, 4)
	w.Subscribe("parallel", func(v *viper.Viper) error {
		seen <- v.GetInt("bootstrap.parallel")
		return nil
	})
	w.Start()
	w.Start()
	defer w.Stop()

	time.Sleep(100 * time.Millisecond)
	writeConfig(t, path, "bootstrap:\n  parallel: 4\n")

	select {
	case got := <-seen:
		assert.Equal(t, 4, got)
	case <-time.After(5 * time.Second):
		t.Fatal("handler was not called after the file changed")
	}
}
