package instrument

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpc/smartpc/internal/circuit"
	"github.com/smartpc/smartpc/pkg/errors"
	"github.com/smartpc/smartpc/pkg/health"
	"github.com/smartpc/smartpc/pkg/retry"
)

type recorder struct {
	mu      sync.Mutex
	ops     map[string][]bool
	errs    []string
	retries map[string]int
}

func newRecorder() *recorder {
	return &recorder{ops: map[string][]bool{}, retries: map[string]int{}}
}

func (r *recorder) RecordOperation(operation string, duration time.Duration, size int64, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[operation] = append(r.ops[operation], success)
}

func (r *recorder) RecordError(operation string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, operation)
}

func (r *recorder) RecordRetry(dependency string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries[dependency]++
}

func fastRetry() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.Jitter = false
	return cfg
}

func TestObserver_RetriesThrottledCalls(t *testing.T) {
	rec := newRecorder()
	tracker := health.NewTracker(health.DefaultConfig())
	obs := New("object-store", fastRetry(), rec, tracker)

	attempts := 0
	err := obs.Do(context.Background(), "PutObject", func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.NewError(errors.ErrCodeDependencyThrottled, "SlowDown")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 2, rec.retries["object-store"])
	assert.Equal(t, []bool{true}, rec.ops["object-store.PutObject"])
	assert.True(t, tracker.IsHealthy("object-store"))
}

func TestObserver_RecordsFailures(t *testing.T) {
	rec := newRecorder()
	tracker := health.NewTracker(health.TrackerConfig{ErrorThreshold: 1, UnavailableThreshold: 5})
	obs := New("compute", fastRetry(), rec, tracker)

	_, err := Value(context.Background(), obs, "RunInstances", func(ctx context.Context) (string, error) {
		return "", errors.Dependency("RunInstances", fmt.Errorf("InsufficientInstanceCapacity"))
	})

	require.Error(t, err)
	assert.Equal(t, []bool{false}, rec.ops["compute.RunInstances"])
	assert.Equal(t, []string{"compute.RunInstances"}, rec.errs)
	assert.Equal(t, 0, rec.retries["compute"], "non-retryable errors are not retried")
	assert.Equal(t, health.StateDegraded, tracker.GetState("compute"))
}

func TestObserver_NilCollaborators(t *testing.T) {
	obs := New("inventory", fastRetry(), nil, nil)

	err := obs.Sized(context.Background(), "Save", 12, func(ctx context.Context) error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, "inventory", obs.Component())
}

func TestObserver_PreservesUserRetryHook(t *testing.T) {
	cfg := fastRetry()
	calls := 0
	cfg.OnRetry = func(int, error, time.Duration) { calls++ }
	obs := New("metadata", cfg, nil, nil)

	_ = obs.Do(context.Background(), "Update", func(ctx context.Context) error {
		return errors.NewError(errors.ErrCodeDependencyUnavailable, "conflict")
	})

	assert.Equal(t, 2, calls)
}

func TestObserver_OpenCircuitSkipsDependency(t *testing.T) {
	rec := newRecorder()
	cb := circuit.Config{
		Timeout:     time.Hour,
		ReadyToTrip: func(c circuit.Counts) bool { return c.ConsecutiveFailures >= 2 },
	}
	obs := NewWithBreaker("compute", fastRetry(), cb, rec, nil)

	calls := 0
	outage := func(ctx context.Context) error {
		calls++
		return errors.Dependency("StartInstances", fmt.Errorf("InternalError"))
	}
	for i := 0; i < 2; i++ {
		require.Error(t, obs.Do(context.Background(), "StartInstances", outage))
	}
	require.Equal(t, circuit.StateOpen, obs.Breaker().State())

	err := obs.Do(context.Background(), "StartInstances", outage)
	assert.True(t, errors.HasCode(err, errors.ErrCodeCircuitOpen))
	assert.Equal(t, 2, calls)
	assert.Equal(t, []bool{false, false, false}, rec.ops["compute.StartInstances"])

	_, err = Value(context.Background(), obs, "DescribeInstances", func(ctx context.Context) (int, error) {
		calls++
		return 1, nil
	})
	assert.True(t, errors.HasCode(err, errors.ErrCodeCircuitOpen))
	assert.Equal(t, 2, calls)
}

func TestObserver_NotFoundKeepsCircuitClosed(t *testing.T) {
	obs := New("object-store", fastRetry(), nil, nil)

	for i := 0; i < 10; i++ {
		_ = obs.Do(context.Background(), "HeadObject", func(ctx context.Context) error {
			return errors.NotFound(errors.ErrCodeObjectNotFound, "object not found: k")
		})
	}
	assert.Equal(t, circuit.StateClosed, obs.Breaker().State())
}
