// internal/app/system/locks/locks.go

// Package locks provides keyed advisory locks.
//
// The engine uses them to serialize the "resolve or create workspace, then
// mutate workspace-scoped state" sequence for one conversation, and to
// serialize merges touching the same identity pair. Hold a lock only around
// such a sequence; never across unrelated or long-running I/O.
//
// This implementation is in-process. In multi-process deployments the
// Locker interface must be backed by a distributed lock or a
// single-writer-per-key queue instead.
package locks

import "sync"

// Locker acquires an advisory lock for a key and returns its release func.
type Locker interface {
	Lock(key string) (unlock func())
}

// Keyed is an in-process Locker. Entries are reference counted and removed
// when the last holder releases, so the map does not grow with key churn.
type Keyed struct {
	mu sync.Mutex
	m  map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyed returns an empty in-process lock table.
func NewKeyed() *Keyed {
	return &Keyed{m: make(map[string]*entry)}
}

// Lock blocks until the lock for key is held and returns the release func.
// The release func must be called exactly once.
func (k *Keyed) Lock(key string) (unlock func()) {
	k.mu.Lock()
	e, ok := k.m[key]
	if !ok {
		e = &entry{}
		k.m[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.m, key)
		}
		k.mu.Unlock()
	}
}
