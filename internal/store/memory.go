package store

import (
	"context"
	"sync"
)

type dedupeKey struct {
	entityID     string
	dateObserved int64
}

// MemoryStore is a concurrency-safe in-memory Writer used when no database
// is configured, and in tests.
type MemoryStore struct {
	mu sync.RWMutex

	// key: entity id, value: rows in insert order
	data map[string][]Row
	seen map[dedupeKey]struct{}

	dedupe     bool
	maxHistory int // max rows kept per entity, <= 0 is unlimited
}

// NewMemoryStore creates a MemoryStore. With dedupe set, a second row for the
// same entity id and dateObserved is dropped.
func NewMemoryStore(dedupe bool, maxHistory int) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string][]Row),
		seen:       make(map[dedupeKey]struct{}),
		dedupe:     dedupe,
		maxHistory: maxHistory,
	}
}

// Insert appends row and enforces per-entity retention.
func (s *MemoryStore) Insert(_ context.Context, row Row) (bool, error) {
	if _, ok := tableByName(row.Table); !ok {
		return false, ErrUnknownTable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := dedupeKey{row.EntityID, row.DateObserved.UnixNano()}
	if s.dedupe {
		if _, dup := s.seen[key]; dup {
			return false, nil
		}
		s.seen[key] = struct{}{}
	}

	history := append(s.data[row.EntityID], row)
	if s.maxHistory > 0 && len(history) > s.maxHistory {
		over := len(history) - s.maxHistory
		for _, dropped := range history[:over] {
			delete(s.seen, dedupeKey{dropped.EntityID, dropped.DateObserved.UnixNano()})
		}
		history = history[over:]
	}
	s.data[row.EntityID] = history
	return true, nil
}

// Count returns the number of rows held for table.
func (s *MemoryStore) Count(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, history := range s.data {
		for _, r := range history {
			if r.Table == table {
				n++
			}
		}
	}
	return n
}
