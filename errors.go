package agent

import "errors"

// ErrDuplicateTask is returned when Add is called with an ID that already exists in the store.
var ErrDuplicateTask = errors.New("uniqw-agent: duplicate task id")

// ErrTaskNotFound is returned by Get when no task has the given ID.
var ErrTaskNotFound = errors.New("uniqw-agent: task not found")

// ErrStoreUnavailable wraps any failure talking to the task store.
// A pass that hits it claims and modifies nothing.
var ErrStoreUnavailable = errors.New("uniqw-agent: task store unavailable")

// ErrUnsupportedAction is returned when no handler is registered for a task's action.
var ErrUnsupportedAction = errors.New("uniqw-agent: unsupported action")

// ErrSummarization is returned when the language model call fails.
// The task being processed stays pending.
var ErrSummarization = errors.New("uniqw-agent: summarization failed")

// ErrInvalidTask is returned when a task record violates the ingestion schema.
var ErrInvalidTask = errors.New("uniqw-agent: invalid task")

// ErrInvalidSchedule is returned by NewRunner for a missing, conflicting or malformed schedule.
var ErrInvalidSchedule = errors.New("uniqw-agent: invalid schedule")
