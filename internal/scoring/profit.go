package scoring

import (
	"context"
	"fmt"
	"sort"

	"payguard/internal/types"

	"github.com/shopspring/decimal"
)

const (
	profitBaseScore          = 70
	profitAggressiveBonus    = 10
	profitAggressiveMaxRisk  = 70
	profitConservativeCut    = 15
	profitConservativeRisk   = 30
	profitMaxQuietWaitBlocks = 2
	profitModerateRisk       = 50
)

var (
	highPriceImpactPct = decimal.RequireFromString("2.0")

	multiplierConservative = decimal.RequireFromString("1.5")
	multiplierAggressive   = decimal.RequireFromString("0.7")
)

// mevLossBands maps mev_risk_score to the expected share of gross output lost to
// extraction. Edges are part of the contract; do not smooth them.
var mevLossBands = []struct {
	maxRisk   int
	inclusive bool
	rate      decimal.Decimal
}{
	{maxRisk: 20, inclusive: true, rate: decimal.RequireFromString("0.005")},
	{maxRisk: 40, inclusive: true, rate: decimal.RequireFromString("0.015")},
	{maxRisk: 60, inclusive: true, rate: decimal.RequireFromString("0.025")},
	{maxRisk: 80, inclusive: false, rate: decimal.RequireFromString("0.035")},
}

var mevLossTopRate = decimal.RequireFromString("0.05")

// Penalties weight the secondary profit_score composite.
type Penalties struct {
	RiskWeight decimal.Decimal
	WaitWeight decimal.Decimal
	GasWeight  decimal.Decimal
}

// DefaultPenalties returns the stock composite weights.
func DefaultPenalties() Penalties {
	return Penalties{
		RiskWeight: decimal.RequireFromString("0.5"),
		WaitWeight: decimal.RequireFromString("2.0"),
		GasWeight:  decimal.RequireFromString("0.5"),
	}
}

// ProfitScorer picks the candidate with the highest net profit after gas and expected MEV loss.
type ProfitScorer struct {
	Penalties Penalties
}

func NewProfitScorer(p Penalties) ProfitScorer { return ProfitScorer{Penalties: p} }

func (ProfitScorer) Criterion() types.Criterion { return types.CriterionProfit }

type profitEval struct {
	cand        types.SimulationCandidate
	idx         int
	mevLoss     decimal.Decimal
	net         decimal.Decimal
	profitScore decimal.Decimal
}

// Score orders candidates by descending net profit. Ties keep input order.
func (s ProfitScorer) Score(ctx context.Context, in Input) (Result, error) {
	if err := checkInput(ctx, in); err != nil {
		return Result{}, err
	}
	tolerance := normalizeToken(in.RiskTolerance)
	mult := ToleranceMultiplier(tolerance)

	evals := make([]profitEval, len(in.Candidates))
	for i, c := range in.Candidates {
		loss := BaseMEVLoss(c).Mul(mult)
		net := c.EstimatedOutputUSD.Sub(c.GasCostUSD).Sub(loss)
		evals[i] = profitEval{
			cand:        c,
			idx:         i,
			mevLoss:     loss,
			net:         net,
			profitScore: s.compositeScore(c, net),
		}
	}
	ref := profitReference(evals)

	order := make([]int, len(evals))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return evals[order[a]].net.GreaterThan(evals[order[b]].net)
	})

	ranking := make([]types.RankedCandidate, 0, len(evals))
	for rank, idx := range order {
		e := evals[idx]
		ranking = append(ranking, types.RankedCandidate{
			ID:           e.cand.ID,
			Rank:         rank + 1,
			Score:        scoreToFloat(profitScoreFor(e, ref, tolerance)),
			MEVRiskScore: e.cand.MEVRiskScore,
			NetProfitUSD: e.net,
			ProfitScore:  e.profitScore,
			InputIndex:   e.idx,
		})
	}

	win := evals[order[0]]
	diff := win.net.Sub(ref.net)
	label := tolerance
	if label == "" {
		label = ToleranceBalanced
	}
	rec := types.Recommendation{
		Criterion:     types.CriterionProfit,
		RecommendedID: win.cand.ID,
		Score:         ranking[0].Score,
		Reasoning: fmt.Sprintf(
			"Candidate %s maximises net profit at $%s (output $%s - gas $%s - expected MEV loss $%s under %s tolerance), $%s versus %s.",
			win.cand.ID, usd(win.net), usd(win.cand.EstimatedOutputUSD), usd(win.cand.GasCostUSD),
			usd(win.mevLoss), label, usd(diff), ref.cand.ID,
		),
		Concerns: profitConcerns(win.cand),
		Profit: &types.ProfitMetrics{
			NetProfitUSD:       win.net,
			ReferenceID:        ref.cand.ID,
			ReferenceProfitUSD: ref.net,
			ProfitDiffUSD:      diff,
			MEVLossUSD:         win.mevLoss,
			GasCostUSD:         win.cand.GasCostUSD,
			ProfitScore:        win.profitScore,
			RiskTolerance:      label,
		},
	}
	return Result{Recommendation: rec, Ranking: ranking}, nil
}

// NetProfit returns gross output minus gas and tolerance-adjusted MEV loss.
func NetProfit(c types.SimulationCandidate, tolerance string) decimal.Decimal {
	loss := BaseMEVLoss(c).Mul(ToleranceMultiplier(tolerance))
	return c.EstimatedOutputUSD.Sub(c.GasCostUSD).Sub(loss)
}

// BaseMEVLoss applies the risk band rate to the candidate's gross output.
func BaseMEVLoss(c types.SimulationCandidate) decimal.Decimal {
	return c.EstimatedOutputUSD.Mul(mevLossRate(c.MEVRiskScore))
}

func mevLossRate(risk int) decimal.Decimal {
	for _, band := range mevLossBands {
		if risk < band.maxRisk || (band.inclusive && risk == band.maxRisk) {
			return band.rate
		}
	}
	return mevLossTopRate
}

// ToleranceMultiplier scales expected MEV loss by the caller's risk tolerance.
func ToleranceMultiplier(tolerance string) decimal.Decimal {
	switch normalizeToken(tolerance) {
	case ToleranceConservative:
		return multiplierConservative
	case ToleranceAggressive:
		return multiplierAggressive
	default:
		return decOne
	}
}

func (s ProfitScorer) compositeScore(c types.SimulationCandidate, net decimal.Decimal) decimal.Decimal {
	p := s.Penalties
	return net.
		Sub(p.RiskWeight.Mul(decFromInt(c.MEVRiskScore))).
		Sub(p.WaitWeight.Mul(decFromInt(c.BlockOffset))).
		Sub(p.GasWeight.Mul(c.GasCostUSD))
}

// profitReference is the immediate candidate, or the best net-profit one when nothing runs at offset 0.
func profitReference(evals []profitEval) profitEval {
	for _, e := range evals {
		if e.cand.Immediate() {
			return e
		}
	}
	best := evals[0]
	for _, e := range evals[1:] {
		if e.net.GreaterThan(best.net) {
			best = e
		}
	}
	return best
}

func profitScoreFor(e, ref profitEval, tolerance string) decimal.Decimal {
	denom := decimal.Max(ref.net, decOne)
	raw := e.net.Sub(ref.net).Div(denom).Mul(decHundred).Add(decFromInt(profitBaseScore))
	score := clampScore(raw)
	switch {
	case tolerance == ToleranceAggressive && e.cand.MEVRiskScore < profitAggressiveMaxRisk:
		score = score.Add(decFromInt(profitAggressiveBonus))
	case tolerance == ToleranceConservative && e.cand.MEVRiskScore > profitConservativeRisk:
		score = score.Sub(decFromInt(profitConservativeCut))
	}
	return clampScore(score)
}

func profitConcerns(c types.SimulationCandidate) []string {
	concerns := make([]string, 0, 3)
	if c.BlockOffset > profitMaxQuietWaitBlocks {
		concerns = append(concerns, fmt.Sprintf("Waiting %d blocks adds price movement risk.", c.BlockOffset))
	}
	if c.MEVRiskScore > profitModerateRisk {
		concerns = append(concerns, fmt.Sprintf("Accepts moderate MEV risk (%d/100) for higher profit.", c.MEVRiskScore))
	}
	if c.PriceImpactPercent.GreaterThan(highPriceImpactPct) {
		concerns = append(concerns, fmt.Sprintf("High price impact (%s%%).", c.PriceImpactPercent.StringFixed(2)))
	}
	return concerns
}

// PenaltiesFromFloats converts configured weights into a Penalties value.
func PenaltiesFromFloats(risk, wait, gas float64) Penalties {
	return Penalties{
		RiskWeight: decFromFloat(risk),
		WaitWeight: decFromFloat(wait),
		GasWeight:  decFromFloat(gas),
	}
}
