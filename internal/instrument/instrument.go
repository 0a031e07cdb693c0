// Package instrument wraps every managed-service call with the retry policy,
// a circuit breaker and operation metrics, and feeds dependency health.
package instrument

import (
	"context"
	"time"

	"github.com/smartpc/smartpc/internal/circuit"
	"github.com/smartpc/smartpc/pkg/health"
	"github.com/smartpc/smartpc/pkg/retry"
	"github.com/smartpc/smartpc/pkg/types"
)

// Observer is shared by the calls one adapter makes to one dependency.
type Observer struct {
	component string
	retryer   *retry.Retryer
	breaker   *circuit.Breaker
	metrics   types.MetricsCollector
	tracker   *health.Tracker
}

// New returns an Observer for component with the default breaker.
// Nil metrics and tracker are allowed.
func New(component string, cfg retry.Config, metrics types.MetricsCollector, tracker *health.Tracker) *Observer {
	return NewWithBreaker(component, cfg, circuit.DefaultConfig(), metrics, tracker)
}

// NewWithBreaker is New with an explicit breaker configuration.
func NewWithBreaker(component string, cfg retry.Config, cb circuit.Config, metrics types.MetricsCollector, tracker *health.Tracker) *Observer {
	o := &Observer{
		component: component,
		metrics:   metrics,
		tracker:   tracker,
		breaker:   circuit.New(component, cb),
	}
	user := cfg.OnRetry
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		if o.metrics != nil {
			o.metrics.RecordRetry(component)
		}
		if user != nil {
			user(attempt, err, delay)
		}
	}
	o.retryer = retry.New(cfg)
	tracker.RegisterComponent(component)
	return o
}

// Component returns the dependency name used in metrics and health.
func (o *Observer) Component() string {
	return o.component
}

// Breaker returns the breaker guarding the dependency.
func (o *Observer) Breaker() *circuit.Breaker {
	return o.breaker
}

// Do runs fn under the breaker and retry policy and records the outcome.
// The breaker sees one outcome per call, after retries are exhausted.
func (o *Observer) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	err := o.call(ctx, fn)
	o.record(op, time.Since(start), 0, err)
	return err
}

// Value is Do for calls that return a result.
func Value[T any](ctx context.Context, o *Observer, op string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	var out T
	err := o.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = retry.Value(ctx, o.retryer, fn)
		return err
	})
	o.record(op, time.Since(start), 0, err)
	return out, err
}

// Sized is Do for calls that move a payload of known size.
func (o *Observer) Sized(ctx context.Context, op string, size int64, fn func(context.Context) error) error {
	start := time.Now()
	err := o.call(ctx, fn)
	o.record(op, time.Since(start), size, err)
	return err
}

func (o *Observer) call(ctx context.Context, fn func(context.Context) error) error {
	return o.breaker.Execute(ctx, func(ctx context.Context) error {
		return o.retryer.DoWithContext(ctx, fn)
	})
}

func (o *Observer) record(op string, d time.Duration, size int64, err error) {
	name := o.component + "." + op
	if o.metrics != nil {
		o.metrics.RecordOperation(name, d, size, err == nil)
		if err != nil {
			o.metrics.RecordError(name, err)
		}
	}
	o.tracker.Observe(o.component, err)
}
