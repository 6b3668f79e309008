package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	answer    Answer
	expiresAt time.Time // zero means no expiry
}

// MemoryStore keeps answers in a process-local map.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates a store whose entries live for ttl; ttl <= 0 keeps them forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Put(_ context.Context, taskID string, answer Answer) error {
	entry := memoryEntry{answer: answer}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	s.entries[taskID] = entry
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, taskID string) (Answer, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[taskID]
	s.mu.RUnlock()

	if !ok || s.expired(entry, s.now()) {
		return Answer{}, false, nil
	}
	return entry.answer, true, nil
}

func (s *MemoryStore) PurgeExpired(_ context.Context) (int, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, entry := range s.entries {
		if s.expired(entry, now) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) expired(entry memoryEntry, now time.Time) bool {
	return !entry.expiresAt.IsZero() && now.After(entry.expiresAt)
}
