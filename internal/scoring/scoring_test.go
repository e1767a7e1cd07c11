package scoring

import (
	"context"
	"math/rand"
	"testing"

	"payguard/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cand(id string, offset, risk int, output, gas string) types.SimulationCandidate {
	return types.SimulationCandidate{
		ID:                 id,
		BlockOffset:        offset,
		MEVRiskScore:       risk,
		EstimatedOutputUSD: decimal.RequireFromString(output),
		GasCostUSD:         decimal.RequireFromString(gas),
	}
}

func riskyVsDelayed() []types.SimulationCandidate {
	return []types.SimulationCandidate{
		cand("A", 0, 80, "1000", "20"),
		cand("B", 3, 20, "950", "25"),
	}
}

func TestMEVScorer_PrefersDelayedLowRisk(t *testing.T) {
	res, err := NewMEVScorer().Score(context.Background(), Input{Candidates: riskyVsDelayed()})
	require.NoError(t, err)
	rec := res.Recommendation
	assert.Equal(t, "B", rec.RecommendedID)
	require.NotNil(t, rec.MEV)
	assert.Equal(t, 60, rec.MEV.RiskReduction)
	assert.Equal(t, "A", rec.MEV.ReferenceID)
	assert.Equal(t, 36, rec.MEV.WaitSeconds)
	assert.Equal(t, 80.0, rec.Score)
	assert.Contains(t, rec.Reasoning, "Candidate B")
	assert.Contains(t, rec.Reasoning, "(20/100)")
	assert.Contains(t, rec.Reasoning, "0 adversarial bots")
	assert.Contains(t, rec.Reasoning, "after 3 blocks")
	assert.Contains(t, rec.Reasoning, "by 60 points")
	assert.Empty(t, rec.Concerns, "3 blocks is within the quiet window and 950 is exactly 5% below 1000")
}

func TestMEVScorer_PriorityBonus(t *testing.T) {
	cands := riskyVsDelayed()
	tests := []struct {
		priority string
		want     float64
	}{
		{priority: "mev_protection", want: 90},
		{priority: " Balanced ", want: 85},
		{priority: "profit", want: 80},
		{priority: "", want: 80},
	}
	for _, tt := range tests {
		res, err := NewMEVScorer().Score(context.Background(), Input{Candidates: cands, Priority: tt.priority})
		require.NoError(t, err)
		assert.Equal(t, tt.want, res.Recommendation.Score, tt.priority)
	}

	zero := []types.SimulationCandidate{cand("Z", 0, 0, "10", "1")}
	res, err := NewMEVScorer().Score(context.Background(), Input{Candidates: zero, Priority: PriorityMEVProtection})
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.Recommendation.Score, "score is clamped")
}

func TestMEVScorer_TieKeepsInputOrder(t *testing.T) {
	cands := []types.SimulationCandidate{
		cand("first", 2, 30, "100", "1"),
		cand("second", 1, 30, "100", "1"),
		cand("third", 0, 50, "100", "1"),
	}
	res, err := NewMEVScorer().Score(context.Background(), Input{Candidates: cands})
	require.NoError(t, err)
	assert.Equal(t, "first", res.Recommendation.RecommendedID)
	assert.Equal(t, []string{"first", "second"}, res.TopIDs(2))
}

func TestMEVScorer_ReferenceWithoutImmediate(t *testing.T) {
	cands := []types.SimulationCandidate{
		cand("slow", 5, 10, "900", "5"),
		cand("mid", 2, 70, "1000", "5"),
		cand("worst", 1, 70, "1000", "5"),
	}
	res, err := NewMEVScorer().Score(context.Background(), Input{Candidates: cands})
	require.NoError(t, err)
	m := res.Recommendation.MEV
	assert.Equal(t, "mid", m.ReferenceID, "first riskiest candidate is the reference")
	assert.Equal(t, 60, m.RiskReduction)
	require.Len(t, res.Recommendation.Concerns, 2)
	assert.Contains(t, res.Recommendation.Concerns[0], "~60 seconds")
	assert.Contains(t, res.Recommendation.Concerns[1], "10.0% below")
}

func TestMEVScorer_ReductionNeverNegative(t *testing.T) {
	cands := []types.SimulationCandidate{
		cand("now", 0, 10, "100", "1"),
		cand("later", 4, 10, "100", "1"),
	}
	res, err := NewMEVScorer().Score(context.Background(), Input{Candidates: cands})
	require.NoError(t, err)
	assert.Equal(t, "now", res.Recommendation.RecommendedID)
	assert.Equal(t, 0, res.Recommendation.MEV.RiskReduction)
}

func TestMEVScorer_BotsInReasoning(t *testing.T) {
	c := cand("A", 1, 15, "100", "1")
	c.Mempool = &types.MempoolSnapshot{BotsDetected: 4}
	res, err := NewMEVScorer().Score(context.Background(), Input{Candidates: []types.SimulationCandidate{c}})
	require.NoError(t, err)
	assert.Contains(t, res.Recommendation.Reasoning, "4 adversarial bots")
	assert.Equal(t, 4, res.Recommendation.MEV.BotsDetected)
}

func TestScorers_EmptyInput(t *testing.T) {
	for _, s := range []Scorer{NewMEVScorer(), NewProfitScorer(DefaultPenalties())} {
		_, err := s.Score(context.Background(), Input{})
		assert.ErrorIs(t, err, types.ErrInvalidInput, string(s.Criterion()))
	}
}

func TestProfitScorer_PrefersImmediateHigherNet(t *testing.T) {
	res, err := NewProfitScorer(DefaultPenalties()).Score(context.Background(), Input{
		Candidates:    riskyVsDelayed(),
		RiskTolerance: ToleranceBalanced,
	})
	require.NoError(t, err)
	rec := res.Recommendation
	assert.Equal(t, "A", rec.RecommendedID)
	require.NotNil(t, rec.Profit)
	assert.True(t, rec.Profit.NetProfitUSD.Equal(decimal.RequireFromString("930")), rec.Profit.NetProfitUSD.String())
	assert.True(t, rec.Profit.MEVLossUSD.Equal(decimal.RequireFromString("50")))
	assert.True(t, rec.Profit.ProfitDiffUSD.IsZero())
	assert.Equal(t, 70.0, rec.Score)

	b, ok := res.Entry("B")
	require.True(t, ok)
	assert.True(t, b.NetProfitUSD.Equal(decimal.RequireFromString("920.25")), b.NetProfitUSD.String())
	assert.Equal(t, 68.95, b.Score)
	assert.Equal(t, 2, b.Rank)

	require.Len(t, rec.Concerns, 1)
	assert.Contains(t, rec.Concerns[0], "moderate MEV risk (80/100)")
}

func TestMEVLossBands(t *testing.T) {
	tests := []struct {
		risk int
		rate string
	}{
		{0, "0.005"}, {20, "0.005"}, {21, "0.015"}, {40, "0.015"}, {41, "0.025"},
		{60, "0.025"}, {61, "0.035"}, {79, "0.035"}, {80, "0.05"}, {100, "0.05"},
	}
	for _, tt := range tests {
		got := mevLossRate(tt.risk)
		assert.True(t, got.Equal(decimal.RequireFromString(tt.rate)), "risk=%d got=%s", tt.risk, got)
	}
}

func TestToleranceAdjustments(t *testing.T) {
	c := cand("A", 0, 50, "1000", "10")
	conservative := NetProfit(c, ToleranceConservative)
	balanced := NetProfit(c, "")
	aggressive := NetProfit(c, ToleranceAggressive)
	assert.True(t, conservative.LessThan(balanced))
	assert.True(t, balanced.LessThan(aggressive))
	assert.True(t, conservative.Equal(decimal.RequireFromString("952.5")), conservative.String())
	assert.True(t, aggressive.Equal(decimal.RequireFromString("972.5")), aggressive.String())

	scorer := NewProfitScorer(DefaultPenalties())
	single := []types.SimulationCandidate{c}
	res, err := scorer.Score(context.Background(), Input{Candidates: single, RiskTolerance: ToleranceConservative})
	require.NoError(t, err)
	assert.Equal(t, 55.0, res.Recommendation.Score)
	res, err = scorer.Score(context.Background(), Input{Candidates: single, RiskTolerance: ToleranceAggressive})
	require.NoError(t, err)
	assert.Equal(t, 80.0, res.Recommendation.Score)
}

func TestProfitScorer_ConcernsAndCompositeScore(t *testing.T) {
	c := cand("late", 4, 55, "2000", "10")
	c.PriceImpactPercent = decimal.RequireFromString("2.5")
	res, err := NewProfitScorer(DefaultPenalties()).Score(context.Background(), Input{Candidates: []types.SimulationCandidate{c}})
	require.NoError(t, err)
	assert.Len(t, res.Recommendation.Concerns, 3)
	// net = 2000 - 10 - 50 = 1940; composite = 1940 - 27.5 - 8 - 5
	assert.True(t, res.Recommendation.Profit.ProfitScore.Equal(decimal.RequireFromString("1899.5")),
		res.Recommendation.Profit.ProfitScore.String())
	assert.Equal(t, "late", res.Recommendation.Profit.ReferenceID)
}

func TestScorers_WinnerProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tolerances := []string{ToleranceConservative, ToleranceBalanced, ToleranceAggressive}
	for round := 0; round < 200; round++ {
		n := 1 + rng.Intn(6)
		cands := make([]types.SimulationCandidate, n)
		for i := range cands {
			cands[i] = types.SimulationCandidate{
				ID:                 string(rune('A' + i)),
				BlockOffset:        rng.Intn(6),
				MEVRiskScore:       rng.Intn(101),
				EstimatedOutputUSD: decimal.NewFromInt(int64(500 + rng.Intn(1000))),
				GasCostUSD:         decimal.NewFromInt(int64(rng.Intn(50))),
			}
		}
		tol := tolerances[round%len(tolerances)]

		mev, err := NewMEVScorer().Score(context.Background(), Input{Candidates: cands})
		require.NoError(t, err)
		winner, ok := types.FindCandidate(cands, mev.Recommendation.RecommendedID)
		require.True(t, ok)
		assert.GreaterOrEqual(t, mev.Recommendation.MEV.RiskReduction, 0)
		for _, c := range cands {
			assert.LessOrEqual(t, winner.MEVRiskScore, c.MEVRiskScore)
		}

		profit, err := NewProfitScorer(DefaultPenalties()).Score(context.Background(), Input{Candidates: cands, RiskTolerance: tol})
		require.NoError(t, err)
		best, ok := types.FindCandidate(cands, profit.Recommendation.RecommendedID)
		require.True(t, ok)
		bestNet := NetProfit(best, tol)
		for _, c := range cands {
			assert.True(t, bestNet.GreaterThanOrEqual(NetProfit(c, tol)))
		}
		assert.GreaterOrEqual(t, profit.Recommendation.Score, 0.0)
		assert.LessOrEqual(t, profit.Recommendation.Score, 100.0)
	}
}
