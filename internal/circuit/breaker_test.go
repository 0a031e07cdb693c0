package circuit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpc/smartpc/pkg/errors"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestBreaker(cfg Config) (*Breaker, *clock) {
	clk := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := New("compute", cfg)
	b.now = clk.now
	b.resetExpiry(clk.now())
	return b, clk
}

var (
	outage   = errors.Dependency("RunInstances", fmt.Errorf("InternalError"))
	notFound = errors.NotFound(errors.ErrCodeInstanceNotFound, "instance not found: i-1")
)

func fail(err error) func(context.Context) error {
	return func(context.Context) error { return err }
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "CLOSED", StateClosed.String())
	assert.Equal(t, "OPEN", StateOpen.String())
	assert.Equal(t, "HALF_OPEN", StateHalfOpen.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(Config{})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		assert.ErrorIs(t, b.Execute(ctx, fail(outage)), outage)
	}
	assert.Equal(t, StateClosed, b.State())

	require.Error(t, b.Execute(ctx, fail(outage)))
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.False(t, called, "open breaker does not reach the dependency")
	assert.True(t, errors.HasCode(err, errors.ErrCodeCircuitOpen))
	assert.Equal(t, 503, errors.HTTPStatusOf(err))
}

func TestBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	b, _ := newTestBreaker(Config{})

	for i := 0; i < 10; i++ {
		_ = b.Execute(context.Background(), fail(notFound))
	}
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(10), b.Counts().TotalSuccesses)
}

func TestBreaker_SuccessResetsStreak(t *testing.T) {
	b, _ := newTestBreaker(Config{})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_ = b.Execute(ctx, fail(outage))
	}
	require.NoError(t, b.Execute(ctx, fail(nil)))
	for i := 0; i < 4; i++ {
		_ = b.Execute(ctx, fail(outage))
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenTrial(t *testing.T) {
	var transitions []string
	b, clk := newTestBreaker(Config{
		Timeout:     10 * time.Second,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	ctx := context.Background()

	_ = b.Execute(ctx, fail(outage))
	require.Equal(t, StateOpen, b.State())

	clk.advance(11 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State())

	_ = b.Execute(ctx, fail(outage))
	assert.Equal(t, StateOpen, b.State(), "a failed trial reopens")

	clk.advance(11 * time.Second)
	require.NoError(t, b.Execute(ctx, fail(nil)))
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, []string{
		"CLOSED->OPEN", "OPEN->HALF_OPEN", "HALF_OPEN->OPEN", "OPEN->HALF_OPEN", "HALF_OPEN->CLOSED",
	}, transitions)
}

func TestBreaker_HalfOpenLimitsTrials(t *testing.T) {
	b, clk := newTestBreaker(Config{
		Timeout:     time.Second,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})
	ctx := context.Background()
	_ = b.Execute(ctx, fail(outage))
	clk.advance(2 * time.Second)

	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Execute(ctx, func(context.Context) error { <-release; return nil })
	}()
	require.Eventually(t, func() bool { return b.Counts().Requests == 1 }, time.Second, time.Millisecond)

	err := b.Execute(ctx, fail(nil))
	assert.True(t, errors.HasCode(err, errors.ErrCodeCircuitOpen))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_IntervalClearsCounts(t *testing.T) {
	b, clk := newTestBreaker(Config{Interval: time.Minute})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_ = b.Execute(ctx, fail(outage))
	}
	clk.advance(2 * time.Minute)
	_ = b.Execute(ctx, fail(outage))

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(1), b.Counts().ConsecutiveFailures)
}
