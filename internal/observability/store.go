package observability

import (
	"context"
	"errors"

	"github.com/aashrith/task-away-assistant/internal/tasks"
)

// InstrumentedStore counts every task store call by operation and result.
type InstrumentedStore struct {
	tasks.Store
	metrics *Metrics
}

func InstrumentStore(store tasks.Store, m *Metrics) tasks.Store {
	if m == nil {
		return store
	}
	return &InstrumentedStore{Store: store, metrics: m}
}

func (s *InstrumentedStore) observe(op string, err error) {
	result := "ok"
	switch {
	case errors.Is(err, tasks.ErrNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	s.metrics.StoreOps.WithLabelValues(op, result).Inc()
}

func (s *InstrumentedStore) Add(ctx context.Context, task tasks.Task) (tasks.Task, error) {
	out, err := s.Store.Add(ctx, task)
	s.observe("add", err)
	return out, err
}

func (s *InstrumentedStore) GetByID(ctx context.Context, id string) (tasks.Task, error) {
	out, err := s.Store.GetByID(ctx, id)
	s.observe("get", err)
	return out, err
}

func (s *InstrumentedStore) List(ctx context.Context) ([]tasks.Task, error) {
	out, err := s.Store.List(ctx)
	s.observe("list", err)
	return out, err
}

func (s *InstrumentedStore) Update(ctx context.Context, task tasks.Task) (tasks.Task, error) {
	out, err := s.Store.Update(ctx, task)
	s.observe("update", err)
	return out, err
}

func (s *InstrumentedStore) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := s.Store.Delete(ctx, id)
	if err == nil && !deleted {
		err = tasks.ErrNotFound
		s.observe("delete", err)
		return false, nil
	}
	s.observe("delete", err)
	return deleted, err
}

func (s *InstrumentedStore) Count(ctx context.Context) (int, error) {
	n, err := tasks.Count(ctx, s.Store)
	s.observe("count", err)
	return n, err
}
