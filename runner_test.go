package agent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingPasser struct {
	calls    int32
	inFlight int32
	maxSeen  int32
	delay    time.Duration
	err      error
}

func (c *countingPasser) RunPass(ctx context.Context) (PassResult, error) {
	n := atomic.AddInt32(&c.inFlight, 1)
	for {
		m := atomic.LoadInt32(&c.maxSeen)
		if n <= m || atomic.CompareAndSwapInt32(&c.maxSeen, m, n) {
			break
		}
	}
	time.Sleep(c.delay)
	atomic.AddInt32(&c.inFlight, -1)
	atomic.AddInt32(&c.calls, 1)
	return PassResult{RunID: "r", State: PassEmpty}, c.err
}

func TestNewRunner_Validation(t *testing.T) {
	p := &countingPasser{}
	cases := []RunnerConfig{
		{},
		{Interval: -time.Second},
		{Interval: time.Second, Schedule: "* * * * *"},
		{Schedule: "not a cron"},
	}
	for _, cfg := range cases {
		_, err := NewRunner(p, cfg)
		require.ErrorIs(t, err, ErrInvalidSchedule, "%+v", cfg)
	}

	_, err := NewRunner(p, RunnerConfig{Schedule: "*/5 * * * *"})
	require.NoError(t, err)
}

func TestRunner_StartStop_Idempotent(t *testing.T) {
	var logMessages []string
	p := &countingPasser{}
	r, err := NewRunner(p, RunnerConfig{Interval: time.Hour, Logger: &testLogger{messages: &logMessages}})
	require.NoError(t, err)

	r.Start()
	r.Start()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&p.calls) == 1 }, time.Second, 5*time.Millisecond)
	r.Stop()
	r.Stop()

	require.NotEmpty(t, logMessages)
}

func TestRunner_IntervalPassesDoNotOverlap(t *testing.T) {
	p := &countingPasser{delay: 5 * time.Millisecond}
	var mu sync.Mutex
	var results int
	r, err := NewRunner(p, RunnerConfig{
		Interval: time.Millisecond,
		Logger:   nopLogger{},
		OnResult: func(PassResult, error) {
			mu.Lock()
			results++
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	r.Start()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&p.calls) >= 3 }, 2*time.Second, 5*time.Millisecond)
	r.Stop()

	calls := atomic.LoadInt32(&p.calls)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, calls, atomic.LoadInt32(&p.calls))
	require.Equal(t, int32(1), atomic.LoadInt32(&p.maxSeen))

	mu.Lock()
	require.Equal(t, int(calls), results)
	mu.Unlock()
}

func TestRunner_ContinuesAfterFailedPass(t *testing.T) {
	p := &countingPasser{err: errors.New("boom")}
	r, err := NewRunner(p, RunnerConfig{Interval: time.Millisecond, Logger: nopLogger{}})
	require.NoError(t, err)

	r.Start()
	defer r.Stop()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&p.calls) >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestRunner_StopWaitsForInFlightPass(t *testing.T) {
	p := &countingPasser{delay: 50 * time.Millisecond}
	r, err := NewRunner(p, RunnerConfig{Interval: time.Hour, Logger: nopLogger{}})
	require.NoError(t, err)

	r.Start()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&p.inFlight) == 1 }, time.Second, time.Millisecond)
	r.Stop()
	require.Equal(t, int32(1), atomic.LoadInt32(&p.calls))
}

func TestRunner_RunBlocksUntilCancel(t *testing.T) {
	p := &countingPasser{}
	r, err := NewRunner(p, RunnerConfig{Interval: time.Hour, Logger: nopLogger{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&p.calls) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunner_CronNextWait(t *testing.T) {
	r, err := NewRunner(&countingPasser{}, RunnerConfig{Schedule: "*/5 * * * *", Logger: nopLogger{}})
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 10, 2, 30, 0, time.UTC)
	wait, err := r.nextWait(now)
	require.NoError(t, err)
	require.Equal(t, 2*time.Minute+30*time.Second, wait)

	r2, err := NewRunner(&countingPasser{}, RunnerConfig{Interval: 3 * time.Second})
	require.NoError(t, err)
	wait, err = r2.nextWait(now)
	require.NoError(t, err)
	require.Equal(t, 3*time.Second, wait)
}

// testLogger is a simple logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages *[]string
}

func (l *testLogger) add(s string) {
	l.mu.Lock()
	*l.messages = append(*l.messages, s)
	l.mu.Unlock()
}

func (l *testLogger) Debugf(format string, args ...interface{}) { l.add("[DEBUG] " + format) }
func (l *testLogger) Infof(format string, args ...interface{})  { l.add("[INFO] " + format) }
func (l *testLogger) Warnf(format string, args ...interface{})  { l.add("[WARN] " + format) }
func (l *testLogger) Errorf(format string, args ...interface{}) { l.add("[ERROR] " + format) }
