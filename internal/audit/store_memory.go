package audit

import (
	"context"
	"sync"
)

// MemoryStore keeps records in process memory, grouped by session.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]Record)}
}

func (s *MemoryStore) Save(_ context.Context, record Record) error {
	record = prepare(record)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.SessionID] = append(s.records[record.SessionID], record)
	return nil
}

// Recent returns up to limit records for sessionID, oldest first.
func (s *MemoryStore) Recent(_ context.Context, sessionID string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.records[sessionID]
	if len(arr) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > len(arr) {
		limit = len(arr)
	}
	out := make([]Record, limit)
	copy(out, arr[len(arr)-limit:])
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
