package decision

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"payguard/internal/scoring"
	"payguard/internal/types"

	"github.com/shopspring/decimal"
)

// Result is the outcome of one selection round.
type Result struct {
	Policy   Policy                  `json:"policy"`
	Final    types.Recommendation    `json:"final"`
	MEV      types.Recommendation    `json:"mev_recommendation"`
	Profit   types.Recommendation    `json:"profit_recommendation"`
	Override bool                    `json:"override"`
	Ranking  []types.RankedCandidate `json:"ranking,omitempty"`
}

// Aggregator merges scorer outputs into one recommendation.
type Aggregator interface {
	Aggregate(ctx context.Context, outputs []ScorerOutput, policy Policy) (Result, error)
	Name() string
}

// Weights balance the two criteria when no single priority is named.
type Weights struct {
	MEV    float64
	Profit float64
}

// DefaultWeights splits evenly.
func DefaultWeights() Weights { return Weights{MEV: 0.5, Profit: 0.5} }

func (w Weights) normalized() Weights {
	if w.MEV < 0 {
		w.MEV = 0
	}
	if w.Profit < 0 {
		w.Profit = 0
	}
	if w.MEV+w.Profit == 0 {
		return DefaultWeights()
	}
	return w
}

// balancedTopN is how deep into each ranking a balanced pick may reach.
const balancedTopN = 2

// PriorityAggregator defers to the scorer matching the user's priority; for a
// balanced priority it picks the best combined score among candidates in the
// top two of both rankings, and falls back to the lower-MEV-risk pick otherwise.
type PriorityAggregator struct {
	Weights Weights
}

func (a PriorityAggregator) Name() string { return "priority" }

func (a PriorityAggregator) Aggregate(ctx context.Context, outputs []ScorerOutput, policy Policy) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	byCrit := make(map[types.Criterion]scoring.Result, len(outputs))
	for _, o := range outputs {
		if o.Err != nil {
			return Result{}, fmt.Errorf("%s scorer: %w", o.Criterion, o.Err)
		}
		byCrit[o.Criterion] = o.Result
	}
	mevRes, okMEV := byCrit[types.CriterionMEVRisk]
	profitRes, okProfit := byCrit[types.CriterionProfit]
	if !okMEV || !okProfit {
		return Result{}, errors.New("aggregation requires both mev_risk and profit outputs")
	}
	res := Result{
		Policy: policy,
		MEV:    mevRes.Recommendation,
		Profit: profitRes.Recommendation,
	}
	if crit, ok := policy.authoritative(); ok {
		res.Final = cloneRecommendation(byCrit[crit].Recommendation)
		res.Ranking = byCrit[crit].Ranking
		return res, nil
	}
	final, override, ranking, err := a.balanced(mevRes, profitRes)
	if err != nil {
		return Result{}, err
	}
	res.Final = final
	res.Override = override
	res.Ranking = ranking
	return res, nil
}

type combinedEntry struct {
	mev      types.RankedCandidate
	profit   types.RankedCandidate
	combined decimal.Decimal
	eligible bool
}

func (a PriorityAggregator) balanced(mevRes, profitRes scoring.Result) (types.Recommendation, bool, []types.RankedCandidate, error) {
	w := a.Weights.normalized()
	wMEV := decimal.NewFromFloat(w.MEV)
	wProfit := decimal.NewFromFloat(w.Profit)
	total := wMEV.Add(wProfit)

	inTop := func(ids []string, id string) bool {
		for _, v := range ids {
			if v == id {
				return true
			}
		}
		return false
	}
	mevTop := mevRes.TopIDs(balancedTopN)
	profitTop := profitRes.TopIDs(balancedTopN)

	entries := make([]combinedEntry, 0, len(mevRes.Ranking))
	for _, m := range mevRes.Ranking {
		p, ok := profitRes.Entry(m.ID)
		if !ok {
			continue
		}
		combined := decimal.NewFromFloat(m.Score).Mul(wMEV).
			Add(decimal.NewFromFloat(p.Score).Mul(wProfit)).
			Div(total)
		entries = append(entries, combinedEntry{
			mev:      m,
			profit:   p,
			combined: combined,
			eligible: inTop(mevTop, m.ID) && inTop(profitTop, m.ID),
		})
	}

	var chosen *combinedEntry
	for i := range entries {
		e := &entries[i]
		if !e.eligible {
			continue
		}
		if chosen == nil || better(*e, *chosen) {
			chosen = e
		}
	}
	ranking := rankCombined(entries)

	mevWinner := mevRes.Recommendation.RecommendedID
	profitWinner := profitRes.Recommendation.RecommendedID
	override := false
	if chosen == nil {
		override = true
		for i := range entries {
			if entries[i].mev.ID == mevWinner {
				chosen = &entries[i]
				break
			}
		}
	}
	if chosen == nil {
		return types.Recommendation{}, false, nil, fmt.Errorf(
			"%w: mev winner %q is missing from the shared scorer rankings (%d shared entries)",
			types.ErrInvalidInput, mevWinner, len(entries))
	}

	rec := types.Recommendation{
		Criterion:     types.CriterionAggregate,
		RecommendedID: chosen.mev.ID,
		Score:         chosen.combined.Round(2).InexactFloat64(),
		Concerns:      []string{},
	}
	if override {
		rec.Reasoning = fmt.Sprintf(
			"Balanced priority: MEV scorer picked %s and profit scorer picked %s with no shared top-%d candidate; defaulting to the lower-MEV-risk candidate %s (risk %d/100).",
			mevWinner, profitWinner, balancedTopN, chosen.mev.ID, chosen.mev.MEVRiskScore,
		)
		rec.Concerns = append(rec.Concerns, fmt.Sprintf(
			"Scorers disagreed; overrode profit pick %s in favour of lower-MEV-risk candidate %s.",
			profitWinner, chosen.mev.ID,
		))
	} else {
		rec.Reasoning = fmt.Sprintf(
			"Balanced priority: candidate %s scores %s combined (MEV %.2f x %.2f, profit %.2f x %.2f) and ranks in the top %d of both scorers.",
			chosen.mev.ID, chosen.combined.StringFixed(2), chosen.mev.Score, w.MEV, chosen.profit.Score, w.Profit, balancedTopN,
		)
	}
	if chosen.mev.ID == mevWinner {
		rec.Concerns = append(rec.Concerns, mevRes.Recommendation.Concerns...)
		rec.MEV = mevRes.Recommendation.MEV
	}
	if chosen.mev.ID == profitWinner {
		rec.Concerns = append(rec.Concerns, profitRes.Recommendation.Concerns...)
		rec.Profit = profitRes.Recommendation.Profit
	}
	return rec, override, ranking, nil
}

// better orders combined entries: combined score, then profit composite, then
// lower MEV risk, then input order.
func better(a, b combinedEntry) bool {
	if c := a.combined.Cmp(b.combined); c != 0 {
		return c > 0
	}
	if c := a.profit.ProfitScore.Cmp(b.profit.ProfitScore); c != 0 {
		return c > 0
	}
	if a.mev.MEVRiskScore != b.mev.MEVRiskScore {
		return a.mev.MEVRiskScore < b.mev.MEVRiskScore
	}
	return a.mev.InputIndex < b.mev.InputIndex
}

func rankCombined(entries []combinedEntry) []types.RankedCandidate {
	sorted := make([]combinedEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return better(sorted[i], sorted[j]) })
	out := make([]types.RankedCandidate, 0, len(sorted))
	for i, e := range sorted {
		out = append(out, types.RankedCandidate{
			ID:           e.mev.ID,
			Rank:         i + 1,
			Score:        e.combined.Round(2).InexactFloat64(),
			MEVRiskScore: e.mev.MEVRiskScore,
			NetProfitUSD: e.profit.NetProfitUSD,
			ProfitScore:  e.profit.ProfitScore,
			InputIndex:   e.mev.InputIndex,
		})
	}
	return out
}

func cloneRecommendation(r types.Recommendation) types.Recommendation {
	out := r
	out.Concerns = append([]string{}, r.Concerns...)
	return out
}
