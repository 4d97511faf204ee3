package tasks

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps tasks in process memory, in insertion order.
type MemoryStore struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]Task
	ids   IDGenerator
	now   func() time.Time
}

func NewMemoryStore(ids IDGenerator) *MemoryStore {
	if ids == nil {
		ids = SequenceIDs()
	}
	return &MemoryStore{
		byID: make(map[string]Task),
		ids:  ids,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Add(_ context.Context, task Task) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task = task.Clone()
	applyDefaults(&task, s.now())
	task.ID = s.ids()
	for {
		if _, taken := s.byID[task.ID]; !taken {
			break
		}
		task.ID = s.ids()
	}
	s.byID[task.ID] = task
	s.order = append(s.order, task.ID)
	return task.Clone(), nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return Task{}, ErrNotFound
	}
	return task.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, task Task) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byID[task.ID]
	if !ok {
		return Task{}, ErrNotFound
	}
	task = task.Clone()
	task.CreatedAt = existing.CreatedAt
	task.UpdatedAt = s.now()
	s.byID[task.ID] = task
	return task.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return false, nil
	}
	delete(s.byID, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order), nil
}

func (s *MemoryStore) Close() error { return nil }
