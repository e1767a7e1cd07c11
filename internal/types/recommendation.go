package types

import "github.com/shopspring/decimal"

// Criterion names the objective a recommendation optimises.
type Criterion string

const (
	CriterionMEVRisk   Criterion = "mev_risk"
	CriterionProfit    Criterion = "profit"
	CriterionAggregate Criterion = "aggregate"
)

// Recommendation is the structured output of a scorer or the aggregator.
type Recommendation struct {
	Criterion     Criterion      `json:"criterion"`
	RecommendedID string         `json:"recommended_id"`
	Score         float64        `json:"score"`
	Reasoning     string         `json:"reasoning"`
	Concerns      []string       `json:"concerns"`
	MEV           *MEVMetrics    `json:"mev_metrics,omitempty"`
	Profit        *ProfitMetrics `json:"profit_metrics,omitempty"`
}

// MEVMetrics details the risk figures behind an MEV recommendation.
type MEVMetrics struct {
	RiskScore          int    `json:"risk_score"`
	ReferenceID        string `json:"reference_id"`
	ReferenceRiskScore int    `json:"reference_risk_score"`
	RiskReduction      int    `json:"risk_reduction"`
	BlockOffset        int    `json:"block_offset"`
	WaitSeconds        int    `json:"wait_seconds"`
	BotsDetected       int    `json:"bots_detected"`
}

// ProfitMetrics details the profit figures behind a profit recommendation.
type ProfitMetrics struct {
	NetProfitUSD       decimal.Decimal `json:"net_profit_usd"`
	ReferenceID        string          `json:"reference_id"`
	ReferenceProfitUSD decimal.Decimal `json:"reference_profit_usd"`
	ProfitDiffUSD      decimal.Decimal `json:"profit_diff_usd"`
	MEVLossUSD         decimal.Decimal `json:"mev_loss_usd"`
	GasCostUSD         decimal.Decimal `json:"gas_cost_usd"`
	ProfitScore        decimal.Decimal `json:"profit_score"`
	RiskTolerance      string          `json:"risk_tolerance"`
}

// RankedCandidate is one entry in a scorer's full ordering. It is only meaningful
// inside the scoring call that produced it.
type RankedCandidate struct {
	ID           string          `json:"id"`
	Rank         int             `json:"rank"`
	Score        float64         `json:"score"`
	MEVRiskScore int             `json:"mev_risk_score"`
	NetProfitUSD decimal.Decimal `json:"net_profit_usd"`
	ProfitScore  decimal.Decimal `json:"profit_score"`
	InputIndex   int             `json:"-"`
}
