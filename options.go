package agent

import (
	"time"

	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultNamespace is the key namespace used by RedisStore when none is given.
	DefaultNamespace = "agent_tasks"
	// DefaultQueryTimeout bounds each SQLStore call.
	DefaultQueryTimeout = 5 * time.Second
)

type storeOptions struct {
	namespace    string
	encoder      Encoder
	log          Logger
	queryTimeout time.Duration
}

func newStoreOptions(opts []StoreOption) storeOptions {
	o := storeOptions{
		namespace:    DefaultNamespace,
		encoder:      &JSONEncoder{},
		queryTimeout: DefaultQueryTimeout,
	}
	for _, fn := range opts {
		fn(&o)
	}
	o.log = defaultLogger(o.log)
	return o
}

// StoreOption configures a RedisStore or SQLStore. Options that do not apply
// to a backend are ignored by it.
type StoreOption func(*storeOptions)

// Namespace sets the key namespace so several task lists can share one Redis.
func Namespace(ns string) StoreOption {
	return func(o *storeOptions) {
		if ns != "" {
			o.namespace = ns
		}
	}
}

// WithEncoder replaces the default JSONEncoder used for task records.
func WithEncoder(e Encoder) StoreOption {
	return func(o *storeOptions) {
		if e != nil {
			o.encoder = e
		}
	}
}

// WithStoreLogger sets the logger used for store warnings such as skipped records.
func WithStoreLogger(l Logger) StoreOption {
	return func(o *storeOptions) {
		o.log = l
	}
}

// QueryTimeout bounds each SQLStore call; non-positive values are ignored.
func QueryTimeout(d time.Duration) StoreOption {
	return func(o *storeOptions) {
		if d > 0 {
			o.queryTimeout = d
		}
	}
}

type agentOptions struct {
	log    Logger
	tracer trace.Tracer
}

// AgentOption configures an Agent.
type AgentOption func(*agentOptions)

// WithLogger sets the logger used for pass events.
func WithLogger(l Logger) AgentOption {
	return func(o *agentOptions) {
		o.log = l
	}
}

// WithTracer sets the tracer used for pass spans. The global OpenTelemetry
// tracer is used when unset.
func WithTracer(t trace.Tracer) AgentOption {
	return func(o *agentOptions) {
		o.tracer = t
	}
}
