// Package adapter defines the source adapter contract and the registry
// that holds one adapter per supported tool.
package adapter

import (
	"time"

	"github.com/jayshah5696/sagg/internal/model"
)

// Adapter converts one tool's on-disk session records into the canonical
// model. Implementations live in subpackages, one per source tool.
type Adapter interface {
	// Name returns the registry key, matching a model.SourceTool value.
	Name() string

	// DisplayName returns the human-readable tool name.
	DisplayName() string

	// DefaultPath returns where the tool keeps its sessions on this machine.
	DefaultPath() string

	// Root returns the path this adapter actually reads from, which is the
	// default path unless the configuration overrode it.
	Root() string

	// Available reports whether the tool's session data is present.
	Available() bool

	// ListSessions returns cheap refs for sessions updated after since,
	// newest first. A zero since returns everything. Listing reads file
	// metadata only, never full contents.
	ListSessions(since time.Time) ([]model.SessionRef, error)

	// ParseSession fully parses one session. Malformed individual records
	// are skipped; a missing, empty or entirely unparsable file is an error.
	ParseSession(ref model.SessionRef) (*model.UnifiedSession, error)
}

// Registry is an ordered name-to-adapter map, built once at startup and
// passed down to consumers.
type Registry struct {
	names    []string
	adapters map[string]Adapter
}

// NewRegistry builds a registry preserving the given adapter order.
// A duplicate name replaces the earlier registration in place.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		if _, exists := r.adapters[a.Name()]; !exists {
			r.names = append(r.names, a.Name())
		}
		r.adapters[a.Name()] = a
	}
	return r
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Names returns all registered names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// All returns all adapters in registration order.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.adapters[name])
	}
	return out
}

// Available returns the adapters whose source data is present, in
// registration order.
func (r *Registry) Available() []Adapter {
	var out []Adapter
	for _, name := range r.names {
		if a := r.adapters[name]; a.Available() {
			out = append(out, a)
		}
	}
	return out
}
