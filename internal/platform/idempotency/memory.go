package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps keys in process. Used by tests and single-instance dev runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]Entry{}}
}

func (s *MemoryStore) Claim(_ context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Outcome, Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if ok && now.Before(entry.ExpiresAt) {
		switch {
		case entry.Fingerprint != fingerprint:
			return 0, Entry{}, ErrKeyReused
		case entry.Done:
			return Replay, entry, nil
		default:
			return InFlight, entry, nil
		}
	}
	entry = Entry{Fingerprint: fingerprint, ExpiresAt: now.Add(ttlOrDefault(ttl))}
	s.entries[key] = entry
	return Acquired, entry, nil
}

func (s *MemoryStore) Complete(_ context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[key]; ok && entry.Fingerprint != fingerprint {
		return ErrKeyReused
	}
	resp.Header = replayableHeader(resp.Header)
	resp.Body = append([]byte(nil), resp.Body...)
	s.entries[key] = Entry{Fingerprint: fingerprint, Done: true, Response: resp, ExpiresAt: now.Add(ttlOrDefault(ttl))}
	return nil
}

func (s *MemoryStore) Abandon(_ context.Context, key, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[key]; ok && entry.Fingerprint == fingerprint {
		delete(s.entries, key)
	}
	return nil
}

// Purge drops expired keys, at most limit of them when limit is positive.
func (s *MemoryStore) Purge(_ context.Context, now time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if limit > 0 && removed >= limit {
			break
		}
		if !now.Before(entry.ExpiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
