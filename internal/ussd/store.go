package ussd

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNoSession is returned by Get/Set when the session id has never been
// created or has already been deleted. The engine guarantees Create precedes
// any Get/Set, so seeing this from dialog code indicates a defect (or an
// expired session).
var ErrNoSession = errors.New("ussd: session does not exist")

// Store persists per-session key/value bags. Implementations must be safe
// for concurrent use by turns belonging to different sessions.
type Store interface {
	// Create initializes the session if it does not exist. Idempotent.
	Create(ctx context.Context, id string) error
	// Get returns a field value and whether it is set.
	Get(ctx context.Context, id, key string) (string, bool, error)
	// Set stores a field value and refreshes the session's expiry.
	Set(ctx context.Context, id, key, value string) error
	// Delete removes the whole session. Deleting a missing session is a no-op.
	Delete(ctx context.Context, id string) error
}

// MemoryStore is a volatile in-process Store. Sessions expire lazily after
// the configured TTL; a TTL of zero disables expiry.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*memorySession
	now      func() time.Time
}

type memorySession struct {
	values  map[string]string
	expires time.Time
}

// NewMemoryStore creates an in-memory session store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		sessions: make(map[string]*memorySession),
		now:      time.Now,
	}
}

// live returns the session if present and unexpired, dropping it otherwise.
// Callers hold s.mu.
func (s *MemoryStore) live(id string) *memorySession {
	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	if s.ttl > 0 && s.now().After(sess.expires) {
		delete(s.sessions, id)
		return nil
	}
	return sess
}

func (s *MemoryStore) Create(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.live(id); sess != nil {
		return nil
	}
	s.sessions[id] = &memorySession{
		values:  make(map[string]string),
		expires: s.now().Add(s.ttl),
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.live(id)
	if sess == nil {
		return "", false, ErrNoSession
	}
	value, ok := sess.values[key]
	return value, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, id, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.live(id)
	if sess == nil {
		return ErrNoSession
	}
	sess.values[key] = value
	sess.expires = s.now().Add(s.ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
