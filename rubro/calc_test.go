package rubro_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/finz/forecast-engine/rubro"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func TestLaborMonthlyCost_LeadScenario(t *testing.T) {
	// GIVEN: MOD-LEAD at 160 h/month, 1 FTE, 6000/h, 25% on-cost
	// WHEN: Computing the monthly cost
	// THEN: 160 * 1 * 6000 * 1.25 = 1,200,000

	monthly := rubro.LaborMonthlyCost(d(160), d(1), d(6000), d(25))
	if !monthly.Equal(d(1_200_000)) {
		t.Errorf("expected 1200000, got %s", monthly)
	}
}

func TestLaborMonthlyCost_ZeroOnCost(t *testing.T) {
	monthly := rubro.LaborMonthlyCost(d(160), d(2), d(100), d(0))
	if !monthly.Equal(d(32_000)) {
		t.Errorf("expected 32000, got %s", monthly)
	}
}

func TestSpanCost_RecurringFullYear(t *testing.T) {
	// Lead scenario over months 1..12: total 14,400,000.
	span := rubro.SpanCost(d(1_200_000), 1, 12, true)
	if span.Months != 12 {
		t.Errorf("expected 12 months, got %d", span.Months)
	}
	if !span.TotalCost.Equal(d(14_400_000)) {
		t.Errorf("expected 14400000, got %s", span.TotalCost)
	}
}

func TestSpanCost_RecurringNonLabor(t *testing.T) {
	// 1000/month over months 1..12 -> 12000.
	span := rubro.SpanCost(d(1000), 1, 12, true)
	if !span.TotalCost.Equal(d(12_000)) {
		t.Errorf("expected 12000, got %s", span.TotalCost)
	}
}

func TestSpanCost_OneTimeCollapsesToSingleMonth(t *testing.T) {
	// Same amount, one-time: a single month at month 1, total 1000.
	span := rubro.SpanCost(d(1000), 1, 12, false)
	if span.Months != 1 {
		t.Errorf("expected 1 month, got %d", span.Months)
	}
	if span.StartMonth != 1 || span.EndMonth != 1 {
		t.Errorf("expected collapsed span [1,1], got [%d,%d]", span.StartMonth, span.EndMonth)
	}
	if !span.TotalCost.Equal(d(1000)) {
		t.Errorf("expected 1000, got %s", span.TotalCost)
	}
}

func TestSpanCost_ClampsDegenerateInputs(t *testing.T) {
	cases := []struct {
		name        string
		start, end  int
		wantStart   int
		wantEnd     int
		wantMonths  int
	}{
		{"end before start", 6, 3, 6, 6, 1},
		{"start below one", -2, 3, 1, 3, 3},
		{"both degenerate", 0, -5, 1, 1, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			span := rubro.SpanCost(d(100), tc.start, tc.end, true)
			if span.StartMonth != tc.wantStart || span.EndMonth != tc.wantEnd {
				t.Errorf("span [%d,%d], want [%d,%d]", span.StartMonth, span.EndMonth, tc.wantStart, tc.wantEnd)
			}
			if span.Months != tc.wantMonths {
				t.Errorf("months %d, want %d", span.Months, tc.wantMonths)
			}
			if !span.TotalCost.Equal(d(100).Mul(decimal.NewFromInt(int64(tc.wantMonths)))) {
				t.Errorf("total %s inconsistent with %d months", span.TotalCost, span.Months)
			}
		})
	}
}
