package ussd

import "sync"

// lockTable serializes turns per session id. Entries are reference-counted so
// the table does not grow with session churn.
type lockTable struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{entries: make(map[string]*lockEntry)}
}

// lock acquires the per-session lock and returns its release function.
func (t *lockTable) lock(id string) func() {
	t.mu.Lock()
	entry := t.entries[id]
	if entry == nil {
		entry = &lockEntry{}
		t.entries[id] = entry
	}
	entry.refs++
	t.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		t.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(t.entries, id)
		}
		t.mu.Unlock()
	}
}
