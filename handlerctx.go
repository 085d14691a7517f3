package agent

import (
	"context"

	"github.com/UniQw/uniqw-agent/internal/hctx"
)

// SetMeta lets a handler attach a key/value pair to the current pass result.
// It is safe to call multiple times; last write for a key wins.
// It is a no-op if the context is not provided by the agent.
func SetMeta(ctx context.Context, key, value string) {
	st, ok := hctx.From(ctx)
	if !ok || st == nil {
		return
	}
	if st.Meta == nil {
		st.Meta = map[string]string{}
	}
	st.Meta[key] = value
}

// CurrentAction returns the action being dispatched, or "" outside a dispatch.
func CurrentAction(ctx context.Context) Action {
	st, ok := hctx.From(ctx)
	if !ok || st == nil {
		return ""
	}
	return Action(st.Action)
}
