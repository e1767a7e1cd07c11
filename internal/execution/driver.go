package execution

import (
	"context"
	"time"
)

// ProgressDriver reports step completions for one execution. complete must be
// called with increasing indexes; out-of-order reports are ignored by the Manager.
type ProgressDriver interface {
	Drive(ctx context.Context, steps []string, complete func(idx int)) error
}

// TimedDriver completes one step per Delay. It models perceived progress only.
type TimedDriver struct {
	Delay time.Duration
}

func (d TimedDriver) Drive(ctx context.Context, steps []string, complete func(idx int)) error {
	for i := range steps {
		timer := time.NewTimer(d.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		complete(i)
	}
	return nil
}

// DriverFunc adapts a function to ProgressDriver.
type DriverFunc func(ctx context.Context, steps []string, complete func(idx int)) error

func (f DriverFunc) Drive(ctx context.Context, steps []string, complete func(idx int)) error {
	return f(ctx, steps, complete)
}
