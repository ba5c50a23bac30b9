// Package lockmap provides the per-account lock registry. Conflicting
// operations on one account serialize on that account's mutex while unrelated
// accounts proceed in parallel.
package lockmap

import "sync"

// Registry maps an account id to its exclusive lock. Locks are created lazily
// on first reference and retained for the process lifetime; the registry is
// bounded by the number of distinct ids ever seen, not by live accounts.
// Retention without eviction is a deliberate trade of memory for simplicity.
type Registry struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{locks: make(map[string]*sync.Mutex)}
}

// AcquireFor returns the lock for id, creating it atomically on first use.
// Repeated calls with the same id return the same *sync.Mutex. The registry's
// own mutex is held only for the map lookup, never across an account
// operation, so a long-running holder of one account's lock cannot block
// lookups for other accounts.
func (r *Registry) AcquireFor(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.locks[id]
	if !ok {
		l = &sync.Mutex{}
		r.locks[id] = l
	}
	return l
}

// Len reports how many distinct ids have a lock. Used for introspection only.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}

// OrderedPair returns the locks for two ids in lexicographic id order, lowest
// first. Acquiring multi-account locks in this fixed global order is the
// deadlock-avoidance protocol for transfers: no two concurrent transfers can
// form a cyclic wait when every one locks the lower-ordered id first.
func (r *Registry) OrderedPair(a, b string) (first, second *sync.Mutex) {
	if b < a {
		a, b = b, a
	}
	return r.AcquireFor(a), r.AcquireFor(b)
}
