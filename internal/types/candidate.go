package types

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxRiskScore is the upper bound of SimulationCandidate.MEVRiskScore.
const MaxRiskScore = 100

// MempoolSnapshot carries auxiliary mempool observations. It only feeds reasoning text.
type MempoolSnapshot struct {
	BotsDetected   int `json:"bots_detected"`
	PendingTxCount int `json:"pending_tx_count,omitempty"`
}

// SimulationCandidate is one simulated execution plan, keyed by its block delay.
type SimulationCandidate struct {
	ID                 string           `json:"id"`
	BlockOffset        int              `json:"block_offset"`
	EstimatedOutputUSD decimal.Decimal  `json:"estimated_output_usd"`
	GasCostUSD         decimal.Decimal  `json:"gas_cost_usd"`
	MEVRiskScore       int              `json:"mev_risk_score"`
	PriceImpactPercent decimal.Decimal  `json:"price_impact_percent"`
	Mempool            *MempoolSnapshot `json:"mempool_snapshot,omitempty"`
}

// Immediate reports whether the candidate executes without delay.
func (c SimulationCandidate) Immediate() bool { return c.BlockOffset == 0 }

// BotsDetected returns the adversarial bot count, 0 when no snapshot was taken.
func (c SimulationCandidate) BotsDetected() int {
	if c.Mempool == nil {
		return 0
	}
	return c.Mempool.BotsDetected
}

// Validate checks the field ranges of a single candidate.
func (c SimulationCandidate) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: candidate id is empty", ErrInvalidInput)
	}
	if c.BlockOffset < 0 {
		return fmt.Errorf("%w: candidate %s block_offset must be >= 0", ErrInvalidInput, c.ID)
	}
	if c.MEVRiskScore < 0 || c.MEVRiskScore > MaxRiskScore {
		return fmt.Errorf("%w: candidate %s mev_risk_score must be in [0,%d]", ErrInvalidInput, c.ID, MaxRiskScore)
	}
	if c.EstimatedOutputUSD.IsNegative() {
		return fmt.Errorf("%w: candidate %s estimated_output_usd is negative", ErrInvalidInput, c.ID)
	}
	if c.GasCostUSD.IsNegative() {
		return fmt.Errorf("%w: candidate %s gas_cost_usd is negative", ErrInvalidInput, c.ID)
	}
	return nil
}

// ValidateCandidates rejects empty sets, duplicate ids and out-of-range fields.
func ValidateCandidates(cands []SimulationCandidate) error {
	if len(cands) == 0 {
		return fmt.Errorf("%w: candidate set is empty", ErrInvalidInput)
	}
	seen := make(map[string]bool, len(cands))
	for _, c := range cands {
		if err := c.Validate(); err != nil {
			return err
		}
		if seen[c.ID] {
			return fmt.Errorf("%w: duplicate candidate id %s", ErrInvalidInput, c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}

// FindCandidate returns the candidate with the given id.
func FindCandidate(cands []SimulationCandidate, id string) (SimulationCandidate, bool) {
	for _, c := range cands {
		if c.ID == id {
			return c, true
		}
	}
	return SimulationCandidate{}, false
}
