package auth

import "sync"

// lockRegistry hands out one mutex per raw identity token so that at most
// one authority call and profile write sequence is in flight per token.
// Entries are reference counted and removed when the last holder releases,
// keeping the registry from growing with every identity ever seen.
type lockRegistry struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	refs int
	mu   sync.Mutex
}

func newLockRegistry() *lockRegistry {
	return &lockRegistry{entries: make(map[string]*lockEntry)}
}

// acquire blocks until the per-key lock is held and returns the release
// function. Locks for distinct keys are fully independent.
func (r *lockRegistry) acquire(key string) func() {
	r.mu.Lock()

	entry, ok := r.entries[key]
	if !ok {
		entry = &lockEntry{}
		r.entries[key] = entry
	}

	entry.refs++
	r.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		r.mu.Lock()

		entry.refs--
		if entry.refs == 0 {
			delete(r.entries, key)
		}

		r.mu.Unlock()
	}
}

// size returns the number of live entries, used by tests to verify
// reclamation.
func (r *lockRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}
