package agent

import (
	"context"
	"fmt"
)

// TaskSource is the part of a task store the agent loop consumes.
type TaskSource interface {
	// PeekOne returns one pending task in store-defined order without
	// claiming it, or nil when the store is empty.
	PeekOne(ctx context.Context) (*Task, error)
	// Delete removes the task with the given id. Deleting an unknown id is a no-op.
	Delete(ctx context.Context, id string) error
}

// TaskSink is the part of a task store the ingestion loader consumes.
type TaskSink interface {
	// Add inserts a task, returning ErrDuplicateTask if its id already exists.
	Add(ctx context.Context, t Task) error
	// Get returns the task with the given id or ErrTaskNotFound.
	Get(ctx context.Context, id string) (*Task, error)
}

// Store is a complete task store.
//
// PeekOne followed by Delete is not atomic: two workers sharing a store may
// both process the same task. Run a single agent per store.
type Store interface {
	TaskSource
	TaskSink
	// List returns all pending tasks in the order PeekOne would return them.
	List(ctx context.Context) ([]*Task, error)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
