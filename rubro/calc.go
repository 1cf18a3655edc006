/*
calc.go - Pure cost math for estimates

PURPOSE:
  Computes monthly and total cost for labor and non-labor estimates.
  These functions are pure; the materializer composes them with taxonomy
  resolution and persistence.

MONTH SEMANTICS:
  Months are 1-based and inclusive relative to project start. A start
  before month 1 clamps to 1; an end before the start clamps so the span
  is never shorter than one month. One-time costs always collapse to a
  single month regardless of the input span.

SEE ALSO:
  - materializer.go: The only caller that persists results
*/
package rubro

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// LaborMonthlyCost returns the monthly cost of a staffed role:
// hours * FTEs * rate * (1 + benefitsLoad/100).
func LaborMonthlyCost(hoursPerMonth, fteCount, hourlyRate, onCostPct decimal.Decimal) decimal.Decimal {
	load := decimal.NewFromInt(1).Add(onCostPct.Div(hundred))
	return hoursPerMonth.Mul(fteCount).Mul(hourlyRate).Mul(load)
}

// Span is the resolved month range and total of one estimate.
type Span struct {
	StartMonth int
	EndMonth   int
	Months     int
	TotalCost  decimal.Decimal
}

// SpanCost expands a monthly (recurring) or fixed (one-time) amount over
// a month range, clamping degenerate inputs.
func SpanCost(amount decimal.Decimal, startMonth, endMonth int, recurring bool) Span {
	start := startMonth
	if start < 1 {
		start = 1
	}
	if !recurring {
		// One-time costs occupy exactly one month.
		return Span{StartMonth: start, EndMonth: start, Months: 1, TotalCost: amount}
	}

	end := endMonth
	if end < start {
		end = start
	}
	months := end - start + 1
	return Span{
		StartMonth: start,
		EndMonth:   end,
		Months:     months,
		TotalCost:  amount.Mul(decimal.NewFromInt(int64(months))),
	}
}
