package decision

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"payguard/internal/logger"
	"payguard/internal/scoring"
	"payguard/internal/types"

	"golang.org/x/sync/errgroup"
)

// ScorerOutput is one scorer's result after dispatch.
type ScorerOutput struct {
	Criterion types.Criterion
	Result    scoring.Result
	Err       error
}

// Dispatcher runs every scorer against the same input.
type Dispatcher struct {
	Scorers  []scoring.Scorer
	Parallel bool
}

// NewDispatcher creates a parallel dispatcher.
func NewDispatcher(scorers ...scoring.Scorer) *Dispatcher {
	return &Dispatcher{Scorers: scorers, Parallel: true}
}

// Dispatch returns one output per scorer, ordered by criterion name.
func (d *Dispatcher) Dispatch(ctx context.Context, in scoring.Input) []ScorerOutput {
	outs := make([]ScorerOutput, 0, len(d.Scorers))
	if !d.Parallel {
		for _, s := range d.Scorers {
			if s != nil {
				outs = append(outs, d.invokeSafe(ctx, s, in))
			}
		}
		return sortOutputs(outs)
	}

	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	for _, s := range d.Scorers {
		if s == nil {
			continue
		}
		scorer := s
		eg.Go(func() error {
			out := d.invokeSafe(egCtx, scorer, in)
			mu.Lock()
			outs = append(outs, out)
			mu.Unlock()
			return out.Err
		})
	}
	// A failed scorer cancels its siblings; each output carries its own error.
	_ = eg.Wait()
	return sortOutputs(outs)
}

func (d *Dispatcher) invokeSafe(ctx context.Context, s scoring.Scorer, in scoring.Input) (out ScorerOutput) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warnf("scorer %s panic: %v", s.Criterion(), r)
			out = ScorerOutput{Criterion: s.Criterion(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	start := time.Now()
	res, err := s.Score(ctx, in)
	if err != nil {
		logger.Debugf("scorer %s failed elapsed=%s err=%v", s.Criterion(), time.Since(start), err)
	}
	return ScorerOutput{Criterion: s.Criterion(), Result: res, Err: err}
}

func sortOutputs(outs []ScorerOutput) []ScorerOutput {
	sort.SliceStable(outs, func(i, j int) bool { return outs[i].Criterion < outs[j].Criterion })
	return outs
}
