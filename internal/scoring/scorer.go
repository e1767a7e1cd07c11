package scoring

import (
	"context"
	"fmt"
	"strings"

	"payguard/internal/types"
)

// User priority tokens understood by the MEV scorer.
const (
	PriorityMEVProtection = "mev_protection"
	PriorityBalanced      = "balanced"
)

// Risk tolerance tokens understood by the profit scorer.
const (
	ToleranceConservative = "conservative"
	ToleranceBalanced     = "balanced"
	ToleranceAggressive   = "aggressive"
)

// Input is what every scorer sees. Scorers never mutate Candidates.
type Input struct {
	Candidates    []types.SimulationCandidate
	Priority      string
	RiskTolerance string
}

// Result bundles a scorer's recommendation with its full ordering.
type Result struct {
	Recommendation types.Recommendation
	Ranking        []types.RankedCandidate
}

// TopIDs returns the ids of the first n ranked candidates.
func (r Result) TopIDs(n int) []string {
	if n > len(r.Ranking) {
		n = len(r.Ranking)
	}
	out := make([]string, 0, n)
	for _, rc := range r.Ranking[:n] {
		out = append(out, rc.ID)
	}
	return out
}

// Entry returns the ranking entry for id.
func (r Result) Entry(id string) (types.RankedCandidate, bool) {
	for _, rc := range r.Ranking {
		if rc.ID == id {
			return rc, true
		}
	}
	return types.RankedCandidate{}, false
}

// Scorer ranks a candidate set under a single objective.
type Scorer interface {
	Criterion() types.Criterion
	Score(ctx context.Context, in Input) (Result, error)
}

func normalizeToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func checkInput(ctx context.Context, in Input) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if len(in.Candidates) == 0 {
		return fmt.Errorf("%w: candidate set is empty", types.ErrInvalidInput)
	}
	return nil
}
