package agent

import (
	"context"
	"errors"
	"time"

	"github.com/UniQw/uniqw-agent/internal/hctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/UniQw/uniqw-agent"

// PassState is the terminal state of a single agent pass.
type PassState string

const (
	// PassEmpty means the store held no tasks; nothing was executed.
	PassEmpty PassState = "empty"
	// PassCompleted means a task was executed, summarized and deleted.
	PassCompleted PassState = "completed"
	// PassFailed means the pass stopped on an error. The task, if any, is still pending.
	PassFailed PassState = "failed"
)

// PassResult describes what a pass did.
type PassResult struct {
	RunID   string
	State   PassState
	TaskID  string
	Goal    string
	Action  Action
	Output  string
	Summary string
	// Meta holds key/value pairs set by the action handler via SetMeta.
	Meta map[string]string
}

// Agent processes at most one task per pass:
// peek, dispatch, summarize, delete.
type Agent struct {
	source     TaskSource
	mux        *Mux
	summarizer Summarizer
	log        Logger
	tracer     trace.Tracer
}

// NewAgent creates an agent reading from source, executing through mux and
// summarizing with summarizer.
func NewAgent(source TaskSource, mux *Mux, summarizer Summarizer, opts ...AgentOption) *Agent {
	o := agentOptions{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	if mux == nil {
		mux = NewMux()
	}
	return &Agent{
		source:     source,
		mux:        mux,
		summarizer: summarizer,
		log:        defaultLogger(o.log),
		tracer:     o.tracer,
	}
}

// RunPass runs one pass. It returns ErrStoreUnavailable when the store could
// not be read or the completed task could not be deleted, ErrInvalidTask when
// the source handed back a record it could not decode, and ErrSummarization
// when the model call failed. In the latter case the task stays pending and is
// retried by a later pass.
//
// Executor failures, including ErrUnsupportedAction, do not fail the pass: the
// error marker becomes the content that is summarized and the task is deleted.
func (a *Agent) RunPass(ctx context.Context) (PassResult, error) {
	res := PassResult{RunID: uuid.NewString()}
	ctx, span := a.tracer.Start(ctx, "agent.pass", trace.WithAttributes(attribute.String("agent.run_id", res.RunID)))
	defer span.End()

	fail := func(err error) (PassResult, error) {
		res.State = PassFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}

	t, err := a.source.PeekOne(ctx)
	if err != nil {
		err = asStoreErr("peek", err)
		a.log.Errorf("pass %s: query failed: %v", res.RunID, err)
		return fail(err)
	}
	if t == nil {
		res.State = PassEmpty
		span.SetAttributes(attribute.String("agent.state", string(PassEmpty)))
		a.log.Infof("pass %s: no tasks found", res.RunID)
		return res, nil
	}

	res.TaskID, res.Goal, res.Action = t.ID, t.Goal, t.Action
	span.SetAttributes(
		attribute.String("agent.task_id", t.ID),
		attribute.String("agent.action", string(t.Action)),
	)
	a.log.Infof("pass %s: processing task %s (%s)", res.RunID, t.ID, t.Action)

	res.Output, res.Meta = a.dispatch(ctx, t)

	summary, err := a.summarize(ctx, t.Goal, res.Output)
	if err != nil {
		a.log.Errorf("pass %s: task %s left pending: %v", res.RunID, t.ID, err)
		return fail(err)
	}
	res.Summary = summary

	if err := a.source.Delete(ctx, t.ID); err != nil {
		err = asStoreErr("delete", err)
		a.log.Errorf("pass %s: task %s summarized but not deleted: %v", res.RunID, t.ID, err)
		return fail(err)
	}

	res.State = PassCompleted
	span.SetAttributes(attribute.String("agent.state", string(PassCompleted)))
	a.log.Infof("pass %s: task %s completed", res.RunID, t.ID)
	return res, nil
}

func (a *Agent) dispatch(ctx context.Context, t *Task) (string, map[string]string) {
	ctx, span := a.tracer.Start(ctx, "agent.dispatch", trace.WithAttributes(attribute.String("agent.action", string(t.Action))))
	defer span.End()

	st := hctx.New()
	start := time.Now()
	out, err := a.mux.Execute(hctx.WithState(ctx, st), t.Action, t.Params)
	if err != nil {
		if errors.Is(err, ErrUnsupportedAction) {
			a.log.Warnf("task %s: %v", t.ID, err)
		} else {
			a.log.Warnf("task %s: action %s failed after %s: %v", t.ID, t.Action, time.Since(start), err)
		}
		span.RecordError(err)
		out = ErrorOutput(err)
	}
	span.SetAttributes(attribute.Int("agent.output_len", len(out)))
	return out, st.Meta
}

func (a *Agent) summarize(ctx context.Context, goal, content string) (string, error) {
	ctx, span := a.tracer.Start(ctx, "agent.summarize")
	defer span.End()

	out, err := a.summarizer.Summarize(ctx, goal, content)
	if err != nil {
		err = summarizationErr(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return out, nil
}

// asStoreErr classifies a source failure. Invalid records keep their own kind.
func asStoreErr(op string, err error) error {
	if errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrInvalidTask) {
		return err
	}
	return storeErr(op, err)
}
