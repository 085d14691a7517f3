package hctx

import "context"

// State holds per-dispatch, handler-provided metadata that the agent
// can capture after the handler returns.
type State struct {
	Action string
	Meta   map[string]string
}

// New creates a fresh handler state container.
func New() *State { return &State{Meta: map[string]string{}} }

type ctxKey struct{}

// WithState returns a child context carrying the given handler state.
func WithState(parent context.Context, s *State) context.Context {
	return context.WithValue(parent, ctxKey{}, s)
}

// From extracts the handler state from context if present.
func From(ctx context.Context) (*State, bool) {
	v := ctx.Value(ctxKey{})
	if v == nil {
		return nil, false
	}
	st, ok := v.(*State)
	return st, ok
}
