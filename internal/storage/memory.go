package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a thread-safe, in-memory implementation of Store.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string][]Snapshot // entity → snapshots, oldest first
	seq   map[string]uint64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snaps: make(map[string][]Snapshot),
		seq:   make(map[string]uint64),
	}
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq[snap.Entity]++
	snap.Seq = s.seq[snap.Entity]
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	snap.Payload = append([]byte(nil), snap.Payload...)
	s.snaps[snap.Entity] = append(s.snaps[snap.Entity], snap)
	return nil
}

// Latest implements Store.
func (s *MemoryStore) Latest(_ context.Context, entity string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.snaps[entity]
	if len(list) == 0 {
		return Snapshot{}, ErrNotFound
	}
	return list[len(list)-1], nil
}

// Compact implements Store.
func (s *MemoryStore) Compact(_ context.Context, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for entity, list := range s.snaps {
		if removed >= limit {
			break
		}
		n := min(len(list)-1, limit-removed)
		if n <= 0 {
			continue
		}
		s.snaps[entity] = list[n:]
		removed += n
	}
	return removed, nil
}

// Count returns the number of snapshots held.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, list := range s.snaps {
		n += len(list)
	}
	return n
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
