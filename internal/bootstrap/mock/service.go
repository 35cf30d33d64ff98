// Package mock provides in-memory stand-ins for the database, cache, queue
// and API subsystems so lifecycle and manager behavior can be exercised
// without live infrastructure.
//
// Every mock embeds Base, which carries the availability and fault-injection
// toggles. A disabled service fails every operation with
// ErrServiceUnavailable; a service with ShouldFail set fails every operation
// with ErrInjectedFailure. Both checks run before the operation's own logic.
package mock

import (
	"context"
	"sync"

	"github.com/kart-io/legalstudy/internal/bootstrap"
)

const defaultFailureMessage = "injected failure"

// Service is the contract shared by all mock services.
type Service interface {
	Name() string
	IsAvailable() bool
	Status() ServiceStatus

	Enable()
	Disable()
	SetShouldFail(fail bool)
	ShouldFail() bool
	SetFailureMessage(msg string)

	// Reset returns the service to its just-constructed state.
	Reset()

	Configure(cfg bootstrap.Config) error
	Config() bootstrap.Config
	Ping(ctx context.Context) error
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

// ServiceStatus is a point-in-time view of a mock service.
type ServiceStatus struct {
	Name       string `json:"name"`
	Available  bool   `json:"available"`
	ShouldFail bool   `json:"should_fail"`
	Connected  bool   `json:"connected"`
	Operations int64  `json:"operations"`
}

// Base implements the toggles and the guard shared by every mock.
type Base struct {
	mu         sync.RWMutex
	name       string
	available  bool
	shouldFail bool
	failureMsg string
	connected  bool
	operations int64
	cfg        bootstrap.Config
}

// NewBase returns an enabled, healthy base named name.
func NewBase(name string) *Base {
	b := &Base{name: name}
	b.Reset()
	return b
}

func (b *Base) Name() string { return b.name }

func (b *Base) IsAvailable() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.available
}

func (b *Base) Status() ServiceStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return ServiceStatus{
		Name:       b.name,
		Available:  b.available,
		ShouldFail: b.shouldFail,
		Connected:  b.connected,
		Operations: b.operations,
	}
}

// Enable makes the service available. Calling it twice is harmless.
func (b *Base) Enable() {
	b.mu.Lock()
	b.available = true
	b.mu.Unlock()
}

// Disable makes every later operation fail with ErrServiceUnavailable.
// Calling it twice is harmless.
func (b *Base) Disable() {
	b.mu.Lock()
	b.available = false
	b.connected = false
	b.mu.Unlock()
}

func (b *Base) SetShouldFail(fail bool) {
	b.mu.Lock()
	b.shouldFail = fail
	b.mu.Unlock()
}

func (b *Base) ShouldFail() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.shouldFail
}

// SetFailureMessage changes the text carried by injected failures.
func (b *Base) SetFailureMessage(msg string) {
	b.mu.Lock()
	b.failureMsg = msg
	b.mu.Unlock()
}

// Reset restores the toggles and drops the configuration. Mocks with their
// own state override Reset and call it.
func (b *Base) Reset() {
	b.mu.Lock()
	b.available = true
	b.shouldFail = false
	b.failureMsg = defaultFailureMessage
	b.connected = false
	b.operations = 0
	b.cfg = bootstrap.Config{}
	b.mu.Unlock()
}

// Guard counts op and reports whether it may run.
func (b *Base) Guard(op string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.operations++
	if !b.available {
		return ErrServiceUnavailable.WithMessagef("%s: service unavailable (%s)", b.name, op)
	}
	if b.shouldFail {
		return ErrInjectedFailure.WithMessagef("%s: %s (%s)", b.name, b.failureMsg, op)
	}
	return nil
}

func (b *Base) Configure(cfg bootstrap.Config) error {
	if err := b.Guard("configure"); err != nil {
		return err
	}
	b.mu.Lock()
	b.cfg = cfg.Clone()
	b.mu.Unlock()
	return nil
}

func (b *Base) Config() bootstrap.Config {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg.Clone()
}

func (b *Base) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.Guard("ping")
}

func (b *Base) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.Guard("connect"); err != nil {
		return err
	}
	b.mu.Lock()
	b.connected = true
	b.mu.Unlock()
	return nil
}

// Disconnect never fails, so shutdown works on disabled services too.
func (b *Base) Disconnect(context.Context) error {
	b.mu.Lock()
	b.connected = false
	b.mu.Unlock()
	return nil
}

// Connected reports whether Connect succeeded since the last Disconnect.
func (b *Base) Connected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connected
}

var _ Service = (*Base)(nil)
