// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sessionstore

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value      []byte
	expiration time.Time
}

// MemoryStore is the in-process backend and the fallback for every other one.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	stats   Stats
	now     func() time.Time
	janitor *janitor
}

// NewMemoryStore creates a memory store. A positive cleanupInterval starts a
// background janitor that drops expired entries; Close stops it.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	if cleanupInterval > 0 {
		s.janitor = &janitor{
			interval: cleanupInterval,
			stop:     make(chan struct{}),
			done:     make(chan struct{}),
		}
		go s.janitor.run(s)
	}
	return s
}

// Get retrieves a value.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || expired(s.now(), e.expiration) {
		s.stats.Misses++
		return nil, ErrNotFound
	}
	s.stats.Hits++
	return append([]byte(nil), e.value...), nil
}

// Set stores a value.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry{
		value:      append([]byte(nil), value...),
		expiration: expiry(s.now(), ttl),
	}
	s.stats.Sets++
	return nil
}

// Delete removes a value.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Stats returns usage counters.
func (s *MemoryStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Len returns the number of stored entries, expired ones included until cleanup.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) deleteExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	count := 0
	for key, e := range s.entries {
		if expired(now, e.expiration) {
			delete(s.entries, key)
			count++
		}
	}
	return count
}

// Close stops the janitor, if any.
func (s *MemoryStore) Close() error {
	if s.janitor != nil {
		s.janitor.stopOnce.Do(func() { close(s.janitor.stop) })
		<-s.janitor.done
	}
	return nil
}

// janitor performs periodic cleanup of expired entries.
type janitor struct {
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func (j *janitor) run(s *MemoryStore) {
	defer close(j.done)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.deleteExpired()
		case <-j.stop:
			return
		}
	}
}

var _ Store = (*MemoryStore)(nil)
