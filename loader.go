package agent

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/UniQw/uniqw-agent/internal/taskfile"
)

// Loader ingests task files into a store.
type Loader struct {
	sink TaskSink
	log  Logger
}

// NewLoader creates a loader writing to sink. A nil logger uses FmtLogger.
func NewLoader(sink TaskSink, l Logger) *Loader {
	return &Loader{sink: sink, log: defaultLogger(l)}
}

// LoadFile reads, decodes and loads the task file at path.
func (l *Loader) LoadFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read task file: %w", err)
	}
	recs, err := taskfile.Decode(path, data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidTask, err)
	}
	return l.Load(ctx, recs)
}

// Load validates every record, rejects ids that repeat within recs or already
// exist in the store, then adds the tasks in order and returns how many were
// written. Nothing is written if validation or the duplicate check fails.
// A store failure part way through returns the number added so far.
func (l *Loader) Load(ctx context.Context, recs []taskfile.Record) (int, error) {
	tasks := make([]Task, 0, len(recs))
	seen := make(map[string]struct{}, len(recs))
	for i, r := range recs {
		t := Task{
			ID:          r.ID,
			Description: r.Description,
			Goal:        r.Goal,
			Action:      Action(r.Action),
			Params:      r.Parameters,
		}
		if err := t.Validate(); err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
		if _, dup := seen[t.ID]; dup {
			return 0, fmt.Errorf("%w: %q repeated in task file", ErrDuplicateTask, t.ID)
		}
		seen[t.ID] = struct{}{}
		if _, err := ParseAction(string(t.Action)); err != nil {
			l.log.Warnf("task %s: action %q has no handler and will be reported as an error when run", t.ID, t.Action)
		}
		tasks = append(tasks, t)
	}

	for _, t := range tasks {
		_, err := l.sink.Get(ctx, t.ID)
		switch {
		case err == nil:
			return 0, fmt.Errorf("%w: %q already in store", ErrDuplicateTask, t.ID)
		case !errors.Is(err, ErrTaskNotFound):
			return 0, err
		}
	}

	for i, t := range tasks {
		if err := l.sink.Add(ctx, t); err != nil {
			return i, err
		}
		l.log.Debugf("loaded task %s", t.ID)
	}
	l.log.Infof("loaded %d tasks", len(tasks))
	return len(tasks), nil
}
