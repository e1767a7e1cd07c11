package scoring

import (
	"context"
	"fmt"
	"sort"

	"payguard/internal/types"

	"github.com/shopspring/decimal"
)

const (
	// SecondsPerBlock converts block offsets to wall-clock wait.
	SecondsPerBlock = 12

	mevPriorityBonus      = 10
	mevBalancedBonus      = 5
	mevMaxQuietWaitBlocks = 3
)

// outputShortfallRatio flags winners producing more than 5% below the best output.
var outputShortfallRatio = decimal.RequireFromString("0.95")

// MEVScorer picks the candidate least exposed to sandwich/frontrun extraction.
type MEVScorer struct{}

func NewMEVScorer() MEVScorer { return MEVScorer{} }

func (MEVScorer) Criterion() types.Criterion { return types.CriterionMEVRisk }

// Score orders candidates by ascending mev_risk_score. Ties keep input order.
func (s MEVScorer) Score(ctx context.Context, in Input) (Result, error) {
	if err := checkInput(ctx, in); err != nil {
		return Result{}, err
	}
	cands := in.Candidates
	order := make([]int, len(cands))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return cands[order[a]].MEVRiskScore < cands[order[b]].MEVRiskScore
	})

	bonus := mevBonus(in.Priority)
	ranking := make([]types.RankedCandidate, 0, len(cands))
	for rank, idx := range order {
		c := cands[idx]
		ranking = append(ranking, types.RankedCandidate{
			ID:           c.ID,
			Rank:         rank + 1,
			Score:        scoreToFloat(mevScore(c, bonus)),
			MEVRiskScore: c.MEVRiskScore,
			InputIndex:   idx,
		})
	}

	winner := cands[order[0]]
	ref := mevReference(cands)
	reduction := ref.MEVRiskScore - winner.MEVRiskScore
	if reduction < 0 {
		reduction = 0
	}
	waitSeconds := winner.BlockOffset * SecondsPerBlock

	rec := types.Recommendation{
		Criterion:     types.CriterionMEVRisk,
		RecommendedID: winner.ID,
		Score:         ranking[0].Score,
		Reasoning: fmt.Sprintf(
			"Candidate %s has the lowest MEV risk score (%d/100) with %d adversarial bots detected; executing after %d blocks reduces risk by %d points versus %s.",
			winner.ID, winner.MEVRiskScore, winner.BotsDetected(), winner.BlockOffset, reduction, ref.ID,
		),
		Concerns: mevConcerns(winner, cands, waitSeconds),
		MEV: &types.MEVMetrics{
			RiskScore:          winner.MEVRiskScore,
			ReferenceID:        ref.ID,
			ReferenceRiskScore: ref.MEVRiskScore,
			RiskReduction:      reduction,
			BlockOffset:        winner.BlockOffset,
			WaitSeconds:        waitSeconds,
			BotsDetected:       winner.BotsDetected(),
		},
	}
	return Result{Recommendation: rec, Ranking: ranking}, nil
}

func mevBonus(priority string) int {
	switch normalizeToken(priority) {
	case PriorityMEVProtection:
		return mevPriorityBonus
	case PriorityBalanced:
		return mevBalancedBonus
	default:
		return 0
	}
}

func mevScore(c types.SimulationCandidate, bonus int) decimal.Decimal {
	return clampScore(decFromInt(types.MaxRiskScore - c.MEVRiskScore + bonus))
}

// mevReference is the immediate candidate, or the riskiest one when nothing runs at offset 0.
func mevReference(cands []types.SimulationCandidate) types.SimulationCandidate {
	for _, c := range cands {
		if c.Immediate() {
			return c
		}
	}
	worst := cands[0]
	for _, c := range cands[1:] {
		if c.MEVRiskScore > worst.MEVRiskScore {
			worst = c
		}
	}
	return worst
}

func mevConcerns(winner types.SimulationCandidate, cands []types.SimulationCandidate, waitSeconds int) []string {
	concerns := make([]string, 0, 2)
	if winner.BlockOffset > mevMaxQuietWaitBlocks {
		concerns = append(concerns, fmt.Sprintf(
			"Waiting %d blocks (~%d seconds) exposes the batch to price movement.",
			winner.BlockOffset, waitSeconds,
		))
	}
	best := cands[0].EstimatedOutputUSD
	for _, c := range cands[1:] {
		if c.EstimatedOutputUSD.GreaterThan(best) {
			best = c.EstimatedOutputUSD
		}
	}
	if winner.EstimatedOutputUSD.LessThan(best.Mul(outputShortfallRatio)) {
		gapPct := decZero
		if best.IsPositive() {
			gapPct = best.Sub(winner.EstimatedOutputUSD).Div(best).Mul(decHundred)
		}
		concerns = append(concerns, fmt.Sprintf(
			"Output $%s is %s%% below the best available output ($%s); MEV protection sacrifices profit.",
			usd(winner.EstimatedOutputUSD), gapPct.StringFixed(1), usd(best),
		))
	}
	return concerns
}
