package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/UniQw/uniqw-agent/internal/hctx"
)

// HandlerFunc is the function signature for executing an action.
// It returns the text handed to the summarizer.
type HandlerFunc func(ctx context.Context, params string) (string, error)

// Middleware is a function that wraps a HandlerFunc to provide cross-cutting concerns.
type Middleware func(HandlerFunc) HandlerFunc

// Mux routes actions to their respective handlers.
type Mux struct {
	handlers    map[Action]HandlerFunc
	middlewares []Middleware
}

// NewMux creates a new action Mux.
func NewMux() *Mux {
	return &Mux{
		handlers:    make(map[Action]HandlerFunc),
		middlewares: []Middleware{},
	}
}

// Handle registers a handler for a specific action. A later registration replaces an earlier one.
func (m *Mux) Handle(action Action, fn HandlerFunc) {
	m.handlers[action] = fn
}

// Use adds middleware(s) to the mux. Middlewares are executed in the order they are added.
func (m *Mux) Use(mw Middleware) {
	m.middlewares = append(m.middlewares, mw)
}

// Has reports whether a handler is registered for action.
func (m *Mux) Has(action Action) bool {
	_, ok := m.handlers[action]
	return ok
}

// Execute runs the handler registered for action.
// It returns ErrUnsupportedAction if there is none.
func (m *Mux) Execute(ctx context.Context, action Action, params string) (string, error) {
	h, ok := m.handlers[action]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAction, action)
	}
	if st, ok := hctx.From(ctx); ok && st != nil {
		st.Action = string(action)
	}
	return m.wrapHandler(h)(ctx, params)
}

func (m *Mux) wrapHandler(h HandlerFunc) HandlerFunc {
	for i := len(m.middlewares) - 1; i >= 0; i-- {
		h = m.middlewares[i](h)
	}
	return h
}

// LoggingMiddleware logs duration and outcome of each handler invocation.
func LoggingMiddleware(l Logger) Middleware {
	l = defaultLogger(l)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, params string) (string, error) {
			start := time.Now()
			out, err := next(ctx, params)
			if err != nil {
				l.Warnf("action error: action=%s dur=%s err=%v", CurrentAction(ctx), time.Since(start), err)
			} else {
				l.Debugf("action ok: action=%s dur=%s bytes=%d", CurrentAction(ctx), time.Since(start), len(out))
			}
			return out, err
		}
	}
}
