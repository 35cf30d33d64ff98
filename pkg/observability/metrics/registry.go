package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// ContentType is the media type of Export's output.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

// Registry holds metric families by name.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Metric
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Metric)}
}

// DefaultRegistry is used when a component is given a nil registry.
var DefaultRegistry = NewRegistry()

// Register stores m under its name and returns the metric that ends up
// registered: a second registration of the same name returns the first
// one, so lifecycles built repeatedly share their families. Reusing a name
// for a different metric type panics.
func (r *Registry) Register(m Metric) Metric {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byName[m.Name()]; ok {
		if existing.Type() != m.Type() {
			panic(fmt.Sprintf("metrics: %s already registered as %s, not %s", m.Name(), existing.Type(), m.Type()))
		}
		return existing
	}
	r.byName[m.Name()] = m
	return m
}

// Get returns the metric registered under name.
func (r *Registry) Get(name string) (Metric, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byName[name]
	return m, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WriteTo writes every family in text exposition format, sorted by name.
func (r *Registry) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, name := range r.Names() {
		m, ok := r.Get(name)
		if !ok {
			continue
		}
		n, err := io.WriteString(w, m.Describe()+"\n")
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Export is WriteTo into a string.
func (r *Registry) Export() string {
	var sb strings.Builder
	_, _ = r.WriteTo(&sb)
	return sb.String()
}

// Unregister removes a family.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	delete(r.byName, name)
	r.mu.Unlock()
}

// Reset removes every family. Tests use it between cases.
func (r *Registry) Reset() {
	r.mu.Lock()
	clear(r.byName)
	r.mu.Unlock()
}
