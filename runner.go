package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"
)

// PassRunner runs a single agent pass. *Agent implements it.
type PassRunner interface {
	RunPass(ctx context.Context) (PassResult, error)
}

// RunnerConfig defines when a Runner invokes passes. Exactly one of Interval
// and Schedule must be set.
type RunnerConfig struct {
	// Interval runs a pass immediately on Start and then every Interval,
	// measured from the end of the previous pass.
	Interval time.Duration
	// Schedule is a cron expression; a pass runs at every tick.
	Schedule string
	// Logger is the logger used for runner events.
	Logger Logger
	// OnResult, if set, is called after every pass.
	OnResult func(PassResult, error)
}

// Runner re-invokes passes on a timer. Passes never overlap; a failed pass is
// logged and the next one runs at its normal time.
type Runner struct {
	agent    PassRunner
	interval time.Duration
	schedule string
	onResult func(PassResult, error)
	log      Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner creates a Runner for p.
func NewRunner(p PassRunner, cfg RunnerConfig) (*Runner, error) {
	switch {
	case cfg.Interval < 0:
		return nil, fmt.Errorf("%w: negative interval %s", ErrInvalidSchedule, cfg.Interval)
	case cfg.Interval > 0 && cfg.Schedule != "":
		return nil, fmt.Errorf("%w: interval and cron schedule are mutually exclusive", ErrInvalidSchedule)
	case cfg.Interval == 0 && cfg.Schedule == "":
		return nil, fmt.Errorf("%w: one of interval or cron schedule is required", ErrInvalidSchedule)
	case cfg.Schedule != "" && !gronx.New().IsValid(cfg.Schedule):
		return nil, fmt.Errorf("%w: invalid cron expression %q", ErrInvalidSchedule, cfg.Schedule)
	}
	return &Runner{
		agent:    p,
		interval: cfg.Interval,
		schedule: cfg.Schedule,
		onResult: cfg.OnResult,
		log:      defaultLogger(cfg.Logger),
	}, nil
}

// Start launches the pass loop. It is idempotent and non-blocking.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		r.log.Warnf("runner already started; ignoring Start()")
		return
	}
	r.started = true
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	if r.schedule != "" {
		r.log.Infof("starting runner: schedule=%q", r.schedule)
	} else {
		r.log.Infof("starting runner: interval=%s", r.interval)
	}
	r.wg.Add(1)
	go r.loop(ctx)
}

// Stop ends the loop and waits for an in-flight pass to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.started {
		r.log.Warnf("runner not started; ignoring Stop()")
		r.mu.Unlock()
		return
	}
	r.started = false
	cancel := r.cancel
	r.mu.Unlock()

	r.log.Infof("stopping runner")
	cancel()
	r.wg.Wait()
}

// Run starts the runner and blocks until ctx is done, then stops it.
func (r *Runner) Run(ctx context.Context) error {
	r.Start()
	<-ctx.Done()
	r.Stop()
	return nil
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()
	if r.schedule == "" {
		r.runPass(ctx)
	}
	for {
		wait, err := r.nextWait(time.Now())
		if err != nil {
			r.log.Errorf("runner: cannot compute next run for %q: %v", r.schedule, err)
			return
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		r.runPass(ctx)
	}
}

// runPass detaches the pass from the loop context so Stop lets it finish.
func (r *Runner) runPass(ctx context.Context) {
	res, err := r.agent.RunPass(context.WithoutCancel(ctx))
	if err != nil {
		r.log.Errorf("pass %s failed: %v", res.RunID, err)
	}
	if r.onResult != nil {
		r.onResult(res, err)
	}
}

func (r *Runner) nextWait(now time.Time) (time.Duration, error) {
	if r.schedule == "" {
		return r.interval, nil
	}
	next, err := gronx.NextTickAfter(r.schedule, now, false)
	if err != nil {
		return 0, err
	}
	return next.Sub(now), nil
}
