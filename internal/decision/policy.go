package decision

import (
	"fmt"
	"strings"

	"payguard/internal/scoring"
	"payguard/internal/types"
)

// Policy is the aggregation rule derived from the user's stated priority.
type Policy string

const (
	PolicyMEVProtection Policy = "mev_protection"
	PolicyProfit        Policy = "profit"
	PolicyBalanced      Policy = "balanced"
)

// ParsePriority maps a user priority token to a policy. Empty means balanced.
func ParsePriority(raw string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "balanced":
		return PolicyBalanced, nil
	case "mev_protection", "mev":
		return PolicyMEVProtection, nil
	case "profit", "max_profit":
		return PolicyProfit, nil
	default:
		return "", fmt.Errorf("%w: unknown priority %q", types.ErrInvalidInput, raw)
	}
}

// ParseTolerance normalises a risk tolerance token. Empty means balanced.
func ParseTolerance(raw string) (string, error) {
	switch tol := strings.ToLower(strings.TrimSpace(raw)); tol {
	case "":
		return scoring.ToleranceBalanced, nil
	case scoring.ToleranceConservative, scoring.ToleranceBalanced, scoring.ToleranceAggressive:
		return tol, nil
	default:
		return "", fmt.Errorf("%w: unknown risk tolerance %q", types.ErrInvalidInput, raw)
	}
}

// authoritative returns the criterion whose scorer decides alone under p.
func (p Policy) authoritative() (types.Criterion, bool) {
	switch p {
	case PolicyMEVProtection:
		return types.CriterionMEVRisk, true
	case PolicyProfit:
		return types.CriterionProfit, true
	default:
		return "", false
	}
}
