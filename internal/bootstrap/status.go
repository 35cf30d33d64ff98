package bootstrap

import (
	"maps"
	"slices"
	"sync"

	"github.com/kart-io/legalstudy/pkg/errors"
)

// unspecifiedFailure is recorded when a status is marked failed without any
// error message, so a failed status always explains itself.
const unspecifiedFailure = "marked failed without an error message"

// Status records the lifecycle outcome of one subsystem.
//
// It is owned by a single Lifecycle. Readers such as the state manager and
// the readiness server may read it while the owner is still running, so every
// accessor takes the lock and returns copies.
type Status struct {
	mu          sync.RWMutex
	initialized bool
	failed      bool
	errors      []string
	warnings    []string
	data        map[string]any
	code        int
}

// NewStatus returns an empty status.
func NewStatus() *Status {
	return &Status{data: make(map[string]any)}
}

// MarkComplete flags the subsystem as initialized.
func (s *Status) MarkComplete() {
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
}

// MarkFailed flags the subsystem as failed. It does not clear the
// initialized flag.
func (s *Status) MarkFailed() {
	s.mu.Lock()
	s.failed = true
	if len(s.errors) == 0 {
		s.errors = append(s.errors, unspecifiedFailure)
	}
	s.mu.Unlock()
}

// AddError appends msg to the error list. It does not mark the status
// failed; the lifecycle pairs it with MarkFailed where the phase is fatal.
func (s *Status) AddError(msg string) {
	s.mu.Lock()
	s.errors = append(s.errors, msg)
	s.mu.Unlock()
}

// Fail records err and marks the status failed in one step. The errno code
// carried by err, if any, replaces the recorded code.
func (s *Status) Fail(err error) {
	s.mu.Lock()
	if err != nil {
		s.errors = append(s.errors, err.Error())
		if code := errors.GetCode(err); code >= 0 {
			s.code = code
		}
	}
	s.failed = true
	if len(s.errors) == 0 {
		s.errors = append(s.errors, unspecifiedFailure)
	}
	s.mu.Unlock()
}

// SetCode records the errno code explaining the failure.
func (s *Status) SetCode(code int) {
	s.mu.Lock()
	s.code = code
	s.mu.Unlock()
}

// Code returns the recorded errno code, 0 when none.
func (s *Status) Code() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.code
}

// AddWarning appends a non-fatal notice.
func (s *Status) AddWarning(msg string) {
	s.mu.Lock()
	s.warnings = append(s.warnings, msg)
	s.mu.Unlock()
}

// AddData upserts a diagnostic value.
func (s *Status) AddData(key string, value any) {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
}

// Data returns the diagnostic value stored under key. The second result is
// false when the key is absent.
func (s *Status) Data(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// IsInitialized reports whether the initialize phase completed.
func (s *Status) IsInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// IsFailed reports whether a fatal phase failed.
func (s *Status) IsFailed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failed
}

// IsReady reports initialized && !failed.
func (s *Status) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized && !s.failed
}

// Errors returns a copy of the error list in insertion order.
func (s *Status) Errors() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.errors)
}

// Warnings returns a copy of the warning list in insertion order.
func (s *Status) Warnings() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.warnings)
}

// Reset returns the status to its just-constructed state.
func (s *Status) Reset() {
	s.mu.Lock()
	s.initialized = false
	s.failed = false
	s.errors = nil
	s.warnings = nil
	s.data = make(map[string]any)
	s.code = 0
	s.mu.Unlock()
}

// StatusSnapshot is an immutable copy of a Status.
type StatusSnapshot struct {
	Initialized bool           `json:"initialized"`
	Failed      bool           `json:"failed"`
	Errors      []string       `json:"errors"`
	Warnings    []string       `json:"warnings"`
	Data        map[string]any `json:"data"`
	// Code is the errno code of the last coded failure, 0 when none.
	Code int `json:"code,omitempty"`
}

// Ready reports initialized && !failed.
func (s StatusSnapshot) Ready() bool {
	return s.Initialized && !s.Failed
}

// Snapshot copies the current state.
func (s *Status) Snapshot() StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StatusSnapshot{
		Initialized: s.initialized,
		Failed:      s.failed,
		Errors:      slices.Clone(s.errors),
		Warnings:    slices.Clone(s.warnings),
		Data:        maps.Clone(s.data),
		Code:        s.code,
	}
	if snap.Errors == nil {
		snap.Errors = []string{}
	}
	if snap.Warnings == nil {
		snap.Warnings = []string{}
	}
	return snap
}
