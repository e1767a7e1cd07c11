package types

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Payment is one payroll transfer instruction.
type Payment struct {
	Amount    decimal.Decimal `json:"amount"`
	FromToken string          `json:"from_token"`
	ToToken   string          `json:"to_token"`
}

// PayrollBatch is the list of payments submitted together.
type PayrollBatch []Payment

// Validate requires a non-empty batch of positive amounts with both tokens named.
func (b PayrollBatch) Validate() error {
	if len(b) == 0 {
		return fmt.Errorf("%w: payroll batch is empty", ErrInvalidInput)
	}
	for i, p := range b {
		if !p.Amount.IsPositive() {
			return fmt.Errorf("%w: payment #%d amount must be > 0", ErrInvalidInput, i+1)
		}
		if strings.TrimSpace(p.FromToken) == "" || strings.TrimSpace(p.ToToken) == "" {
			return fmt.Errorf("%w: payment #%d requires from_token and to_token", ErrInvalidInput, i+1)
		}
	}
	return nil
}

// Total sums every payment amount.
func (b PayrollBatch) Total() decimal.Decimal {
	total := decimal.Zero
	for _, p := range b {
		total = total.Add(p.Amount)
	}
	return total
}

// NettingAnalysis summarises how the batch collapses into fewer on-chain transactions.
// All fields are required; a missing field is a caller bug.
type NettingAnalysis struct {
	NettedTransactions     *int             `json:"netted_transactions"`
	GasSavingsUSD          *decimal.Decimal `json:"gas_savings_usd"`
	NettedGasCostUSD       *decimal.Decimal `json:"netted_gas_cost"`
	ExecutionTimeEstimateS *int             `json:"execution_time_estimate"`
}

// Validate reports the first missing or out-of-range field.
func (n NettingAnalysis) Validate() error {
	switch {
	case n.NettedTransactions == nil:
		return fmt.Errorf("%w: netting analysis missing netted_transactions", ErrInvalidInput)
	case n.GasSavingsUSD == nil:
		return fmt.Errorf("%w: netting analysis missing gas_savings_usd", ErrInvalidInput)
	case n.NettedGasCostUSD == nil:
		return fmt.Errorf("%w: netting analysis missing netted_gas_cost", ErrInvalidInput)
	case n.ExecutionTimeEstimateS == nil:
		return fmt.Errorf("%w: netting analysis missing execution_time_estimate", ErrInvalidInput)
	case *n.NettedTransactions < 0:
		return fmt.Errorf("%w: netted_transactions must be >= 0", ErrInvalidInput)
	case n.NettedGasCostUSD.IsNegative():
		return fmt.Errorf("%w: netted_gas_cost must be >= 0", ErrInvalidInput)
	case *n.ExecutionTimeEstimateS < 0:
		return fmt.Errorf("%w: execution_time_estimate must be >= 0", ErrInvalidInput)
	}
	return nil
}

// NewNettingAnalysis builds a fully populated analysis.
func NewNettingAnalysis(netted int, gasSavings, nettedGasCost decimal.Decimal, etaSeconds int) NettingAnalysis {
	return NettingAnalysis{
		NettedTransactions:     &netted,
		GasSavingsUSD:          &gasSavings,
		NettedGasCostUSD:       &nettedGasCost,
		ExecutionTimeEstimateS: &etaSeconds,
	}
}
