package errors

import (
	"fmt"
	"sync"
)

// catalog is every declared code and service of the process. Codes are
// declared from package level vars, so it is filled during init.
var catalog = struct {
	sync.RWMutex
	codes    map[int]*Errno
	services map[int]string
}{
	codes:    make(map[int]*Errno),
	services: make(map[int]string),
}

// Register adds e to the catalog and returns it. A code declared twice is a
// programming error and panics.
func Register(e *Errno) *Errno {
	if err := register(e); err != nil {
		panic(err.Error())
	}
	return e
}

func register(e *Errno) error {
	catalog.Lock()
	defer catalog.Unlock()
	if prev, dup := catalog.codes[e.Code]; dup {
		return fmt.Errorf("errno %07d declared twice: %q and %q", e.Code, prev.MessageEN, e.MessageEN)
	}
	catalog.codes[e.Code] = e
	return nil
}

// Lookup returns the Errno declared for code.
func Lookup(code int) (*Errno, bool) {
	catalog.RLock()
	defer catalog.RUnlock()
	e, ok := catalog.codes[code]
	return e, ok
}

// RegisterService names a service code. Naming it again with the same name
// is allowed, with another name panics.
func RegisterService(code int, name string) {
	catalog.Lock()
	defer catalog.Unlock()
	if prev, ok := catalog.services[code]; ok && prev != name {
		panic(fmt.Sprintf("service code %02d is %q, cannot rename it to %q", code, prev, name))
	}
	catalog.services[code] = name
}

// GetServiceName returns the name of a service code.
func GetServiceName(code int) (string, bool) {
	catalog.RLock()
	defer catalog.RUnlock()
	name, ok := catalog.services[code]
	return name, ok
}
