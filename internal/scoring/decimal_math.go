package scoring

import (
	"github.com/shopspring/decimal"
)

var (
	decZero    = decimal.Zero
	decOne     = decimal.NewFromInt(1)
	decHundred = decimal.NewFromInt(100)
)

func decFromInt(v int) decimal.Decimal {
	return decimal.NewFromInt(int64(v))
}

func decFromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func clampScore(d decimal.Decimal) decimal.Decimal {
	if d.LessThan(decZero) {
		return decZero
	}
	if d.GreaterThan(decHundred) {
		return decHundred
	}
	return d
}

func scoreToFloat(d decimal.Decimal) float64 {
	return clampScore(d).Round(2).InexactFloat64()
}

func usd(d decimal.Decimal) string {
	return d.StringFixed(2)
}
