package room

import (
	"sync"

	"k8s.io/utils/set"
)

// Registry is the named directory of rooms. The coordinator owns the only
// registry in the server and serializes every create, but lookups and
// listings are independently safe.
//
// Rooms are never replaced or removed once created; they live until server
// shutdown.
type Registry struct {
	mu      sync.Mutex
	backlog int
	rooms   map[string]*Room
}

// NewRegistry creates a registry pre-populated with the given room names,
// all sharing the same per-subscriber backlog.
func NewRegistry(backlog int, defaults ...string) *Registry {
	reg := &Registry{
		backlog: backlog,
		rooms:   make(map[string]*Room),
	}
	for _, name := range defaults {
		reg.rooms[name] = New(name, backlog)
	}
	return reg
}

// Create inserts a new room under name. It is a compare-and-insert; an
// existing room is never replaced.
func (reg *Registry) Create(name string) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, ok := reg.rooms[name]; ok {
		return nil, ErrExists
	}
	r := New(name, reg.backlog)
	reg.rooms[name] = r
	return r, nil
}

// Lookup returns the room registered under name.
func (reg *Registry) Lookup(name string) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[name]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

// List returns the set of registered room names. Callers must treat the
// result as unordered.
func (reg *Registry) List() set.Set[string] {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	names := set.New[string]()
	for name := range reg.rooms {
		names.Insert(name)
	}
	return names
}
