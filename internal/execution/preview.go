package execution

import (
	"payguard/internal/types"

	"github.com/shopspring/decimal"
)

// PreviewTransaction groups the batch by destination token.
type PreviewTransaction struct {
	ToToken     string          `json:"to_token"`
	FromTokens  []string        `json:"from_tokens"`
	Payments    int             `json:"payments"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// SimulationPreview is the one-shot output of a simulate submission.
type SimulationPreview struct {
	Transactions           []PreviewTransaction `json:"transactions"`
	EstimatedGasUSD        decimal.Decimal      `json:"estimated_gas_usd"`
	ExecutionTimeEstimateS int                  `json:"execution_time_estimate"`
	SuccessProbability     float64              `json:"success_probability"`
}

func (p SimulationPreview) clone() SimulationPreview {
	out := p
	out.Transactions = make([]PreviewTransaction, len(p.Transactions))
	for i, tx := range p.Transactions {
		tx.FromTokens = append([]string(nil), tx.FromTokens...)
		out.Transactions[i] = tx
	}
	return out
}

func buildPreview(batch types.PayrollBatch, netting types.NettingAnalysis, successProbability float64) SimulationPreview {
	index := make(map[string]int)
	txs := make([]PreviewTransaction, 0)
	for _, p := range batch {
		i, ok := index[p.ToToken]
		if !ok {
			i = len(txs)
			index[p.ToToken] = i
			txs = append(txs, PreviewTransaction{ToToken: p.ToToken, TotalAmount: decimal.Zero})
		}
		tx := &txs[i]
		tx.Payments++
		tx.TotalAmount = tx.TotalAmount.Add(p.Amount)
		if !containsString(tx.FromTokens, p.FromToken) {
			tx.FromTokens = append(tx.FromTokens, p.FromToken)
		}
	}
	return SimulationPreview{
		Transactions:           txs,
		EstimatedGasUSD:        *netting.NettedGasCostUSD,
		ExecutionTimeEstimateS: *netting.ExecutionTimeEstimateS,
		SuccessProbability:     successProbability,
	}
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
