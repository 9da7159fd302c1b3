// Package keylock provides mutual exclusion keyed by string, such as a
// project or requirement id.
package keylock

import (
	"context"
	"sync"
)

type entry struct {
	sem  chan struct{}
	refs int // holders plus waiters
}

// Registry hands out one lock per key. Entries live only while someone holds
// or waits for them, so the map stays bounded by concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Acquire blocks until the lock for key is held or ctx is done. The returned
// release function must be called exactly once.
func (r *Registry) Acquire(ctx context.Context, key string) (func(), error) {
	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		r.entries[key] = e
	}
	e.refs++
	r.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		r.unref(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			r.unref(key, e)
		})
	}, nil
}

func (r *Registry) unref(key string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(r.entries, key)
	}
}

// Len reports how many keys currently have holders or waiters.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Mutex is a context-aware mutex.
type Mutex struct {
	once sync.Once
	sem  chan struct{}
}

func (m *Mutex) init() {
	m.once.Do(func() { m.sem = make(chan struct{}, 1) })
}

// Lock blocks until the mutex is held or ctx is done.
func (m *Mutex) Lock(ctx context.Context) error {
	m.init()
	select {
	case m.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unlock releases the mutex.
func (m *Mutex) Unlock() {
	<-m.sem
}
