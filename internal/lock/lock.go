// Package lock provides keyed mutual exclusion so that at most one mutation
// per task (or per channel for column edits) is in flight at a time.
package lock

import "sync"

type entry struct {
	mu   sync.RWMutex
	refs int
}

// Registry hands out read/write locks keyed by string. Entries are dropped
// once no holder or waiter references them.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

func (r *Registry) acquire(key string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		e = &entry{}
		r.entries[key] = e
	}
	e.refs++
	return e
}

func (r *Registry) release(key string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(r.entries, key)
	}
}

// Lock takes the exclusive lock for key and returns its release function.
func (r *Registry) Lock(key string) func() {
	e := r.acquire(key)
	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		r.release(key, e)
	}
}

// RLock takes the shared lock for key and returns its release function.
func (r *Registry) RLock(key string) func() {
	e := r.acquire(key)
	e.mu.RLock()
	return func() {
		e.mu.RUnlock()
		r.release(key, e)
	}
}

// Len returns the number of live keys.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
