package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and single-node development.
// Expired entries are purged lazily on access, so no background sweeper is
// needed.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	userID    string
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Save(_ context.Context, token, userID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[token] = memoryEntry{
		userID:    userID,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *MemoryStore) IsValid(_ context.Context, token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.lookup(token)
	return ok
}

func (s *MemoryStore) GetUserID(_ context.Context, token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(token)
	if !ok {
		return "", false
	}
	return e.userID, true
}

func (s *MemoryStore) Revoke(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, token)
	return nil
}

func (s *MemoryStore) RevokeAll(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	revoked := 0
	for token, e := range s.entries {
		if e.userID == userID {
			delete(s.entries, token)
			revoked++
		}
	}
	return revoked, nil
}

func (s *MemoryStore) CountActive(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeExpired()
	return len(s.entries), nil
}

// lookup returns the live entry for token, deleting it when expired.
// Callers must hold s.mu.
func (s *MemoryStore) lookup(token string) (memoryEntry, bool) {
	e, ok := s.entries[token]
	if !ok {
		return memoryEntry{}, false
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, token)
		return memoryEntry{}, false
	}
	return e, true
}

// purgeExpired drops all expired entries. Callers must hold s.mu.
func (s *MemoryStore) purgeExpired() {
	now := s.now()
	for token, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, token)
		}
	}
}

var _ Store = (*MemoryStore)(nil)
