package instance

import (
	"context"
	"log/slog"
)

type compensation struct {
	name string
	fn   func(ctx context.Context) error
}

// compensator undoes the completed steps of a failed create, newest first.
// Every step runs even when an earlier one fails.
type compensator struct {
	steps    []compensation
	recorder RollbackRecorder
	logger   *slog.Logger
}

func (c *compensator) push(name string, fn func(ctx context.Context) error) {
	c.steps = append(c.steps, compensation{name: name, fn: fn})
}

// run executes the compensations on a context detached from the caller's
// cancellation, and returns the names of the steps that failed.
func (c *compensator) run(ctx context.Context) []string {
	ctx = context.WithoutCancel(ctx)
	var failed []string
	for i := len(c.steps) - 1; i >= 0; i-- {
		step := c.steps[i]
		err := step.fn(ctx)
		if err != nil {
			c.logger.Error("Rollback step failed", "step", step.name, "error", err)
			failed = append(failed, step.name)
		} else {
			c.logger.Info("Rollback step completed", "step", step.name)
		}
		if c.recorder != nil {
			c.recorder.RecordRollbackStep(step.name, err == nil)
		}
	}
	return failed
}
