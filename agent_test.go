package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	ikeys "github.com/UniQw/uniqw-agent/internal/keys"
	mrd "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type summarizeCall struct {
	goal, content string
}

type fakeSummarizer struct {
	mu    sync.Mutex
	calls []summarizeCall
	out   string
	err   error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, goal, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, summarizeCall{goal: goal, content: content})
	return f.out, f.err
}

func (f *fakeSummarizer) Calls() []summarizeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]summarizeCall(nil), f.calls...)
}

// failingDeleteSource wraps a source and fails every Delete.
type failingDeleteSource struct {
	TaskSource
	err error
}

func (f failingDeleteSource) Delete(ctx context.Context, id string) error { return f.err }

func newPageServer(t *testing.T, body string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestAgent(source TaskSource, s Summarizer) *Agent {
	mux := NewMux()
	NewScraper(ScraperConfig{}).Register(mux)
	return NewAgent(source, mux, s, WithLogger(nopLogger{}), WithTracer(noop.NewTracerProvider().Tracer("test")))
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

func TestAgent_RunPass_CompletesTask(t *testing.T) {
	rdb, done := newMiniClient(t)
	defer done()
	ctx := context.Background()
	store := NewRedisStore(rdb)

	page := newPageServer(t, "<html><body>cats are great</body></html>", nil)
	require.NoError(t, store.Add(ctx, Task{
		ID: "t1", Description: "cats", Goal: "find cats", Action: ActionScrape, Params: page.URL,
	}))

	sum := &fakeSummarizer{out: "Cats are popular pets."}
	res, err := newTestAgent(store, sum).RunPass(ctx)
	require.NoError(t, err)
	require.Equal(t, PassCompleted, res.State)
	require.Equal(t, "t1", res.TaskID)
	require.Equal(t, "find cats", res.Goal)
	require.Equal(t, ActionScrape, res.Action)
	require.Equal(t, "Cats are popular pets.", res.Summary)
	require.NotEmpty(t, res.RunID)
	require.Equal(t, "200", res.Meta["status"])

	calls := sum.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "find cats", calls[0].goal)
	require.Contains(t, calls[0].content, "cats are great")

	next, err := store.PeekOne(ctx)
	require.NoError(t, err)
	require.Nil(t, next)
}

func TestAgent_RunPass_EmptyStore(t *testing.T) {
	rdb, done := newMiniClient(t)
	defer done()

	sum := &fakeSummarizer{out: "unused"}
	res, err := newTestAgent(NewRedisStore(rdb), sum).RunPass(context.Background())
	require.NoError(t, err)
	require.Equal(t, PassEmpty, res.State)
	require.Empty(t, res.TaskID)
	require.Empty(t, sum.Calls())
}

func TestAgent_RunPass_SummarizerFailureKeepsTask(t *testing.T) {
	rdb, done := newMiniClient(t)
	defer done()
	ctx := context.Background()
	store := NewRedisStore(rdb)

	page := newPageServer(t, "cats", nil)
	require.NoError(t, store.Add(ctx, Task{ID: "t1", Goal: "find cats", Action: ActionScrape, Params: page.URL}))

	sum := &fakeSummarizer{err: errors.New("model offline")}
	res, err := newTestAgent(store, sum).RunPass(ctx)
	require.ErrorIs(t, err, ErrSummarization)
	require.Equal(t, PassFailed, res.State)
	require.Empty(t, res.Summary)

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, "t1", got.ID)

	// The retained task is picked up again by the next pass.
	sum.err, sum.out = nil, "ok"
	res, err = newTestAgent(store, sum).RunPass(ctx)
	require.NoError(t, err)
	require.Equal(t, PassCompleted, res.State)
	require.Equal(t, "t1", res.TaskID)
}

func TestAgent_RunPass_UnsupportedActionIsSummarizedAndDeleted(t *testing.T) {
	rdb, done := newMiniClient(t)
	defer done()
	ctx := context.Background()
	store := NewRedisStore(rdb)

	require.NoError(t, store.Add(ctx, Task{ID: "t2", Goal: "notify", Action: "Email", Params: "a@b.c"}))

	sum := &fakeSummarizer{out: "could not run"}
	res, err := newTestAgent(store, sum).RunPass(ctx)
	require.NoError(t, err)
	require.Equal(t, PassCompleted, res.State)
	require.True(t, strings.HasPrefix(res.Output, "Error: "))
	require.Contains(t, res.Output, "unsupported action")

	calls := sum.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, res.Output, calls[0].content)

	_, err = store.Get(ctx, "t2")
	require.ErrorIs(t, err, ErrTaskNotFound)
}

func TestAgent_RunPass_FetchFailureBecomesErrorOutput(t *testing.T) {
	rdb, done := newMiniClient(t)
	defer done()
	ctx := context.Background()
	store := NewRedisStore(rdb)

	require.NoError(t, store.Add(ctx, Task{ID: "t3", Goal: "g", Action: ActionScrape, Params: "http://"}))

	sum := &fakeSummarizer{out: "nothing"}
	res, err := newTestAgent(store, sum).RunPass(ctx)
	require.NoError(t, err)
	require.Equal(t, PassCompleted, res.State)
	require.True(t, strings.HasPrefix(sum.Calls()[0].content, "Error: "))
}

func TestAgent_RunPass_OneTaskPerPass(t *testing.T) {
	rdb, done := newMiniClient(t)
	defer done()
	ctx := context.Background()
	store := NewRedisStore(rdb)

	var hits int32
	page := newPageServer(t, "content", &hits)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Add(ctx, Task{ID: id, Goal: "g " + id, Action: ActionScrape, Params: page.URL}))
	}

	sum := &fakeSummarizer{out: "s"}
	a := newTestAgent(store, sum)

	res, err := a.RunPass(ctx)
	require.NoError(t, err)
	require.Equal(t, "a", res.TaskID)
	require.Equal(t, int32(1), atomic.LoadInt32(&hits))
	require.Len(t, sum.Calls(), 1)

	left, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, left, 2)
	require.Equal(t, "b", left[0].ID)
}

func TestAgent_RunPass_UndecodableHeadDoesNotBlockQueue(t *testing.T) {
	rdb, done := newMiniClient(t)
	defer done()
	ctx := context.Background()
	store := NewRedisStore(rdb, WithStoreLogger(nopLogger{}))
	k := ikeys.For(DefaultNamespace)

	require.NoError(t, rdb.RPush(ctx, k.Pending, "bad").Err())
	require.NoError(t, rdb.HSet(ctx, k.Tasks, "bad", "{not json").Err())
	page := newPageServer(t, "cats", nil)
	require.NoError(t, store.Add(ctx, Task{ID: "good", Goal: "find cats", Action: ActionScrape, Params: page.URL}))

	a := newTestAgent(store, &fakeSummarizer{out: "Cats."})
	completed := false
	for i := 0; i < 2 && !completed; i++ {
		res, err := a.RunPass(ctx)
		require.NoError(t, err)
		completed = res.State == PassCompleted && res.TaskID == "good"
	}
	require.True(t, completed, "good task should complete within two passes")

	next, err := store.PeekOne(ctx)
	require.NoError(t, err)
	require.Nil(t, next)
}

type invalidSource struct{ TaskSource }

func (invalidSource) PeekOne(ctx context.Context) (*Task, error) {
	return nil, fmt.Errorf("%w: decode record: unexpected end", ErrInvalidTask)
}

func TestAgent_RunPass_InvalidRecordIsNotStoreUnavailable(t *testing.T) {
	sum := &fakeSummarizer{}
	res, err := newTestAgent(invalidSource{}, sum).RunPass(context.Background())
	require.ErrorIs(t, err, ErrInvalidTask)
	require.NotErrorIs(t, err, ErrStoreUnavailable)
	require.Equal(t, PassFailed, res.State)
	require.Empty(t, sum.Calls())
}

func TestAgent_RunPass_StoreUnavailable(t *testing.T) {
	s := mrd.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr(), MaxRetries: -1})
	defer rdb.Close()
	s.Close()

	sum := &fakeSummarizer{out: "unused"}
	res, err := newTestAgent(NewRedisStore(rdb), sum).RunPass(context.Background())
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.Equal(t, PassFailed, res.State)
	require.Empty(t, sum.Calls())
}

func TestAgent_RunPass_DeleteFailure(t *testing.T) {
	rdb, done := newMiniClient(t)
	defer done()
	ctx := context.Background()
	store := NewRedisStore(rdb)

	page := newPageServer(t, "cats", nil)
	require.NoError(t, store.Add(ctx, Task{ID: "t1", Goal: "g", Action: ActionScrape, Params: page.URL}))

	src := failingDeleteSource{TaskSource: store, err: errors.New("connection reset")}
	res, err := newTestAgent(src, &fakeSummarizer{out: "sum"}).RunPass(ctx)
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.Equal(t, PassFailed, res.State)
	require.Equal(t, "sum", res.Summary)

	_, err = store.Get(ctx, "t1")
	require.NoError(t, err)
}

func TestAgent_RunPass_SQLStore(t *testing.T) {
	store := openTestSQLStore(t)
	ctx := context.Background()

	page := newPageServer(t, "dogs", nil)
	require.NoError(t, store.Add(ctx, Task{ID: "d1", Goal: "find dogs", Action: ActionScrape, Params: page.URL}))

	res, err := newTestAgent(store, &fakeSummarizer{out: "Dogs."}).RunPass(ctx)
	require.NoError(t, err)
	require.Equal(t, PassCompleted, res.State)

	next, err := store.PeekOne(ctx)
	require.NoError(t, err)
	require.Nil(t, next)
}

func TestNewAgent_Defaults(t *testing.T) {
	a := NewAgent(nil, nil, nil)
	require.NotNil(t, a.mux)
	require.NotNil(t, a.log)
	require.NotNil(t, a.tracer)
}
