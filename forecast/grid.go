/*
Package forecast assembles the month-by-month forecast grid.

PURPOSE:
  Merges allocations, payroll entries and baseline-derived line items
  into per-(line item, month) cells. Cells are derived on every request
  and never persisted.

KEY CONCEPTS IN THIS FILE (grid.go):
  - Cell: the output unit - planned/forecast/actual/variance for one
    line item in one month, tagged with its source category
  - GridFromLineItems: expands baseline line items into cells

CELL AMOUNTS:
  A recurring item's monthly cell carries UnitCost * Quantity, so
  summing its cells over the span reproduces TotalCost exactly (the
  materialization invariant is TotalCost == UnitCost * Quantity *
  months). A one-time item yields a single cell carrying TotalCost.

SEE ALSO:
  - aggregator.go: The fallback hierarchy producing full grids
*/
package forecast

import (
	"github.com/shopspring/decimal"

	"github.com/finz/forecast-engine/rubro"
)

// Source categorizes where a cell's amounts came from.
type Source string

const (
	SourceAllocation Source = "allocation"
	SourceRubro      Source = "rubro"
	SourcePayroll    Source = "payroll"
)

// Cell is one (line item, month) of the forecast grid.
type Cell struct {
	LineItemID string
	Month      int // 1-based project month
	Planned    decimal.Decimal
	Forecast   decimal.Decimal
	Actual     decimal.Decimal
	Variance   decimal.Decimal // Actual - Planned
	Source     Source
}

// GridFromLineItems expands line items into monthly cells over a grid of
// the given width. Recurring items emit one cell per month of their
// clamped span; one-time items emit a single cell at their start month.
func GridFromLineItems(items []rubro.LineItem, months int) []Cell {
	var cells []Cell
	for _, li := range items {
		if li.Recurring {
			start := li.StartMonth
			if start < 1 {
				start = 1
			}
			end := li.EndMonth
			if end > months {
				end = months
			}
			monthly := li.UnitCost.Mul(li.Quantity)
			for m := start; m <= end; m++ {
				cells = append(cells, Cell{
					LineItemID: li.ID,
					Month:      m,
					Planned:    monthly,
					Forecast:   monthly,
					Source:     SourceRubro,
				})
			}
			continue
		}

		// One-time: a single cell carrying the full cost.
		m := li.StartMonth
		if m < 1 {
			m = 1
		}
		if m > months {
			continue
		}
		cells = append(cells, Cell{
			LineItemID: li.ID,
			Month:      m,
			Planned:    li.TotalCost,
			Forecast:   li.TotalCost,
			Source:     SourceRubro,
		})
	}
	return cells
}
