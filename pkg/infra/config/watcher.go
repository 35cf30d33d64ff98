// Package config provides configuration watching and hot reload.
package config

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kart-io/logger"
	"github.com/spf13/viper"
)

// DefaultDebounce coalesces the burst of events a single save produces.
const DefaultDebounce = 250 * time.Millisecond

// ChangeHandler is invoked with the re-read viper instance after the file
// changed. A returned error is logged and does not affect other handlers.
type ChangeHandler func(v *viper.Viper) error

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the quiet period after the last event before handlers
// run. Zero dispatches on every event.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// Watcher manages configuration file watching and change notifications.
type Watcher struct {
	viper    *viper.Viper
	debounce time.Duration

	mu       sync.RWMutex
	handlers map[string]ChangeHandler
	watching bool
	started  bool
	timer    *time.Timer
	changes  int
}

// NewWatcher creates a watcher for v, which should already have read its
// configuration file.
func NewWatcher(v *viper.Viper, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		viper:    v,
		debounce: DefaultDebounce,
		handlers: make(map[string]ChangeHandler),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Subscribe registers handler under id, replacing any previous one.
func (w *Watcher) Subscribe(id string, handler ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[id] = handler
	logger.Debugw("config watcher: handler subscribed", "handler", id)
}

// Unsubscribe removes the handler registered under id, if any.
func (w *Watcher) Unsubscribe(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.handlers[id]; ok {
		delete(w.handlers, id)
		logger.Debugw("config watcher: handler unsubscribed", "handler", id)
	}
}

// Start begins watching. Calling it again, including after Stop, only
// re-enables dispatch: viper keeps a single fsnotify watch per instance.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return
	}
	w.watching = true
	first := !w.started
	w.started = true
	w.mu.Unlock()

	if first {
		w.viper.OnConfigChange(func(e fsnotify.Event) {
			logger.Infow("config file changed", "file", e.Name, "op", e.Op.String())
			w.schedule()
		})
		w.viper.WatchConfig()
	}
	logger.Infow("config watcher started", "file", w.viper.ConfigFileUsed())
}

// Stop disables dispatch and drops a pending debounced change. viper has no
// way to remove its fsnotify watch, so events still arrive and are ignored.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.watching {
		return
	}
	w.watching = false
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	logger.Info("config watcher stopped")
}

// IsWatching reports whether changes are currently dispatched.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

// HandlerCount returns the number of registered handlers.
func (w *Watcher) HandlerCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.handlers)
}

// Changes returns how many debounced change dispatches have run.
func (w *Watcher) Changes() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.changes
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.watching {
		return
	}
	if w.debounce == 0 {
		go w.dispatch()
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.dispatch)
}

// dispatch runs every handler in id order without holding the lock.
func (w *Watcher) dispatch() {
	w.mu.Lock()
	if !w.watching {
		w.mu.Unlock()
		return
	}
	w.timer = nil
	w.changes++
	ids := make([]string, 0, len(w.handlers))
	for id := range w.handlers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	handlers := make([]ChangeHandler, len(ids))
	for i, id := range ids {
		handlers[i] = w.handlers[id]
	}
	w.mu.Unlock()

	for i, h := range handlers {
		if err := h(w.viper); err != nil {
			logger.Errorw("config watcher: handler failed", "handler", ids[i], "error", err)
			continue
		}
		logger.Debugw("config watcher: handler applied change", "handler", ids[i])
	}
}

// ReloadableSubscriber decodes one viper key into target and passes it to a
// Reloadable component.
type ReloadableSubscriber struct {
	component Reloadable
	configKey string
	target    any
	decode    []viper.DecoderConfigOption
}

// NewReloadableSubscriber creates a subscriber. target must be a pointer; it
// is reset to its zero value before every decode. opts are passed to
// viper's UnmarshalKey.
func NewReloadableSubscriber(component Reloadable, configKey string, target any, opts ...viper.DecoderConfigOption) *ReloadableSubscriber {
	return &ReloadableSubscriber{
		component: component,
		configKey: configKey,
		target:    target,
		decode:    opts,
	}
}

// Handler returns a ChangeHandler suitable for Watcher.Subscribe.
func (rs *ReloadableSubscriber) Handler() ChangeHandler {
	return func(v *viper.Viper) error {
		// 清空旧值，避免已删除的键残留在 map 中
		if rv := reflect.ValueOf(rs.target); rv.Kind() == reflect.Pointer && !rv.IsNil() {
			rv.Elem().SetZero()
		}
		if err := v.UnmarshalKey(rs.configKey, rs.target, rs.decode...); err != nil {
			return fmt.Errorf("failed to unmarshal config key %q: %w", rs.configKey, err)
		}
		if err := rs.component.OnConfigChange(rs.target); err != nil {
			return fmt.Errorf("component rejected config change: %w", err)
		}
		return nil
	}
}
