/*
summary.go - Labor-vs-indirect time series and dashboard aggregation

SUMMARY ALGORITHM:
  Group payroll entries by (period, kind) to get per-period plan/
  forecast/actual payroll. Independently group allocations by period for
  indirect-cost plan/actual. Union the period keys - a period present in
  only one grouping still produces a row. Per side:
    total*      = payroll* + indirect*
    laborShare* = payroll* / total*      (0 when the total is 0)
  Allocations carry no forecast amount, so the forecast side reuses the
  indirect plan.

DASHBOARD AGGREGATION:
  Groups all projects by start date truncated to month, sums payroll per
  kind across each group, and derives payrollTarget = plan * 1.10 when
  plan is positive.

SEE ALSO:
  - ledger.go: The entry queries these build on
*/
package payroll

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/finz/forecast-engine/docstore"
	"github.com/finz/forecast-engine/rubro"
)

// TimeSeriesRow is one period of the labor-vs-indirect summary.
type TimeSeriesRow struct {
	Period string

	PlanMOD     decimal.Decimal
	ForecastMOD decimal.Decimal
	ActualMOD   decimal.Decimal

	IndirectPlan   decimal.Decimal
	IndirectActual decimal.Decimal

	TotalPlan     decimal.Decimal
	TotalForecast decimal.Decimal
	TotalActual   decimal.Decimal

	LaborSharePlan     decimal.Decimal
	LaborShareForecast decimal.Decimal
	LaborShareActual   decimal.Decimal
}

// Summarize derives the per-period time series for one project, rows
// sorted by period ascending.
func (l *Ledger) Summarize(ctx context.Context, projectID rubro.ProjectID) ([]TimeSeriesRow, error) {
	entries, err := l.QueryByProject(ctx, projectID, "")
	if err != nil {
		return nil, err
	}

	type payrollAgg struct{ plan, forecast, actual decimal.Decimal }
	byPeriod := make(map[string]*payrollAgg)
	for _, e := range entries {
		if e.Period == "" {
			continue
		}
		agg := byPeriod[e.Period]
		if agg == nil {
			agg = &payrollAgg{}
			byPeriod[e.Period] = agg
		}
		switch e.Kind {
		case KindPlan:
			agg.plan = agg.plan.Add(e.Amount)
		case KindForecast:
			agg.forecast = agg.forecast.Add(e.Amount)
		case KindActual:
			agg.actual = agg.actual.Add(e.Amount)
		}
	}

	type indirectAgg struct{ plan, actual decimal.Decimal }
	indirect := make(map[string]*indirectAgg)
	allocs, err := l.Allocations.ByProject(ctx, rubro.PartitionKey(projectID))
	if err != nil {
		// Reporting is best-effort: degrade to payroll-only rows.
		log.Printf("WARN payroll: allocation read failed for project %s: %v", projectID, err)
	} else {
		for _, a := range allocs {
			if a.Period == "" {
				continue
			}
			agg := indirect[a.Period]
			if agg == nil {
				agg = &indirectAgg{}
				indirect[a.Period] = agg
			}
			agg.plan = agg.plan.Add(a.Plan)
			agg.actual = agg.actual.Add(a.Actual)
		}
	}

	// Union of period keys from both groupings.
	periods := make(map[string]bool)
	for p := range byPeriod {
		periods[p] = true
	}
	for p := range indirect {
		periods[p] = true
	}

	rows := make([]TimeSeriesRow, 0, len(periods))
	for p := range periods {
		row := TimeSeriesRow{Period: p}
		if agg := byPeriod[p]; agg != nil {
			row.PlanMOD, row.ForecastMOD, row.ActualMOD = agg.plan, agg.forecast, agg.actual
		}
		if agg := indirect[p]; agg != nil {
			row.IndirectPlan, row.IndirectActual = agg.plan, agg.actual
		}

		row.TotalPlan = row.PlanMOD.Add(row.IndirectPlan)
		row.TotalForecast = row.ForecastMOD.Add(row.IndirectPlan)
		row.TotalActual = row.ActualMOD.Add(row.IndirectActual)

		row.LaborSharePlan = laborShare(row.PlanMOD, row.TotalPlan)
		row.LaborShareForecast = laborShare(row.ForecastMOD, row.TotalForecast)
		row.LaborShareActual = laborShare(row.ActualMOD, row.TotalActual)

		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Period < rows[j].Period })
	return rows, nil
}

func laborShare(labor, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return labor.Div(total)
}

// =============================================================================
// DASHBOARD AGGREGATION
// =============================================================================

// MODProjection is one start-month bucket of the portfolio dashboard.
type MODProjection struct {
	Month         string // "YYYY-MM" the member projects started in
	Projects      int
	Plan          decimal.Decimal
	Forecast      decimal.Decimal
	Actual        decimal.Decimal
	PayrollTarget *decimal.Decimal // plan * 1.10 when plan > 0
}

var targetFactor = decimal.NewFromFloat(1.10)

// AggregateByStartMonth groups every project by start_date truncated to
// month and sums its payroll per kind.
func (l *Ledger) AggregateByStartMonth(ctx context.Context) ([]MODProjection, error) {
	paged, err := (docstore.Cursor{}).ScanAll(ctx, l.Store, rubro.SortProjectMeta)
	if err != nil {
		return nil, fmt.Errorf("scan projects: %w", err)
	}
	if paged.Truncated {
		log.Printf("WARN payroll: project scan truncated after %d pages", paged.Pages)
	}

	buckets := make(map[string]*MODProjection)
	for _, item := range paged.Items {
		projectID := rubro.ProjectID(docstore.String(item.Doc, "id"))
		start := docstore.String(item.Doc, "start_date")
		if projectID == "" || len(start) < 7 {
			continue
		}
		month := start[:7]

		entries, err := l.QueryByProject(ctx, projectID, "")
		if err != nil {
			log.Printf("WARN payroll: skipping project %s in dashboard: %v", projectID, err)
			continue
		}

		b := buckets[month]
		if b == nil {
			b = &MODProjection{Month: month}
			buckets[month] = b
		}
		b.Projects++
		for _, e := range entries {
			switch e.Kind {
			case KindPlan:
				b.Plan = b.Plan.Add(e.Amount)
			case KindForecast:
				b.Forecast = b.Forecast.Add(e.Amount)
			case KindActual:
				b.Actual = b.Actual.Add(e.Amount)
			}
		}
	}

	out := make([]MODProjection, 0, len(buckets))
	for _, b := range buckets {
		if b.Plan.IsPositive() {
			target := b.Plan.Mul(targetFactor)
			b.PayrollTarget = &target
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}
