package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("task not found in store")

// Store is the persistence contract the assistant core depends on.
// Update and GetByID return ErrNotFound when the task does not exist.
type Store interface {
	Add(ctx context.Context, task Task) (Task, error)
	GetByID(ctx context.Context, id string) (Task, error)
	List(ctx context.Context) ([]Task, error)
	Update(ctx context.Context, task Task) (Task, error)
	Delete(ctx context.Context, id string) (bool, error)
	Close() error
}

// Counter is implemented by stores that can count without listing.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// IDGenerator assigns ids to new tasks.
type IDGenerator func() string

// SequenceIDs returns a generator producing task_1, task_2, ...
func SequenceIDs() IDGenerator {
	var n atomic.Uint64
	return func() string {
		return fmt.Sprintf("task_%d", n.Add(1))
	}
}

func UUIDs() IDGenerator {
	return uuid.NewString
}

func Count(ctx context.Context, store Store) (int, error) {
	if c, ok := store.(Counter); ok {
		return c.Count(ctx)
	}
	all, err := store.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}
