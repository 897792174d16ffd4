package source

import (
	"sort"
	"sync"

	"github.com/sells-group/funding-cli/internal/model"
)

// Filter narrows the connector set for one run.
type Filter struct {
	// Names restricts the run to the listed connectors. Empty means all.
	Names []string

	// LegacyOnly selects the polled feed sources (the weekly cadence).
	LegacyOnly bool

	// PaginatedOnly selects the cursor-driven backfill sources.
	PaginatedOnly bool
}

// Registry holds the registered connectors.
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]Connector
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{connectors: make(map[string]Connector)}
}

// Register adds a connector. A connector with the same name replaces the
// previous registration.
func (r *Registry) Register(c Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[c.Name()] = c
}

// Get returns a connector by name, or nil when not registered.
func (r *Registry) Get(name string) Connector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connectors[name]
}

// List returns all registered connector names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.connectors))
	for name := range r.connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select returns the connectors matching the filter, in name order.
func (r *Registry) Select(f Filter) []Connector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := map[string]bool{}
	for _, name := range f.Names {
		wanted[name] = true
	}

	var out []Connector
	for _, name := range sortedNames(r.connectors) {
		c := r.connectors[name]
		if len(wanted) > 0 && !wanted[c.Name()] {
			continue
		}
		if f.LegacyOnly && c.Type() != model.SourceTypeRSS {
			continue
		}
		if f.PaginatedOnly && c.Type() == model.SourceTypeRSS {
			continue
		}
		out = append(out, c)
	}
	return out
}

func sortedNames(m map[string]Connector) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
