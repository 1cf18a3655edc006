/*
Package allocation reads planned/actual monetary assignments.

PURPOSE:
  An allocation assigns money from a line item to a specific month,
  independent of payroll. Allocations are a read-only input to this
  engine: the forecast aggregator treats them as the authoritative
  tier-1 source, and the payroll summary uses them for indirect-cost
  metrics. Nothing here writes allocations.

LOOSE MONTH SHAPES:
  Upstream writers disagree on how the month is recorded: a numeric
  1-based index ("month": 3), an explicit index field ("month_index"),
  or a calendar period ("period": "2026-03", sometimes in "month").
  Decoding keeps whichever was present; resolving a calendar period to
  a project-relative index needs the project start date, which only the
  caller has (see forecast.monthIndex).

SEE ALSO:
  - forecast/aggregator.go: Tier-1 consumer
  - payroll/summary.go:     Indirect-cost grouping
*/
package allocation

import (
	"context"
	"fmt"
	"log"
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/finz/forecast-engine/docstore"
)

// SortPrefix is the sort-id prefix for allocation documents.
const SortPrefix = "ALLOC#"

// Allocation is one month's assignment of money to a line item.
type Allocation struct {
	ID      string
	RubroID string // line item id, or canonical code for coarse allocations
	Month   int    // 1-based project month; 0 when only Period is known
	Period  string // "YYYY-MM"; "" when only Month is known
	Plan    decimal.Decimal
	Actual  decimal.Decimal
}

// Reader is the read-only boundary the engine depends on.
type Reader interface {
	ByProject(ctx context.Context, partitionID string) ([]Allocation, error)
}

// =============================================================================
// DOCSTORE READER
// =============================================================================

// StoreReader reads allocations from a document store partition.
type StoreReader struct {
	Store docstore.Store
}

func (r *StoreReader) ByProject(ctx context.Context, partitionID string) ([]Allocation, error) {
	paged, err := (docstore.Cursor{}).QueryAll(ctx, r.Store, partitionID, SortPrefix)
	if err != nil {
		return nil, fmt.Errorf("query allocations: %w", err)
	}
	if paged.Truncated {
		log.Printf("WARN allocation: pagination truncated after %d pages for %s", paged.Pages, partitionID)
	}

	out := make([]Allocation, 0, len(paged.Items))
	for _, it := range paged.Items {
		out = append(out, decode(it))
	}
	return out, nil
}

var periodRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

func decode(item docstore.Item) Allocation {
	doc := item.Doc
	a := Allocation{
		ID:      docstore.String(doc, "id"),
		RubroID: docstore.String(doc, "rubro_id"),
		Period:  docstore.String(doc, "period"),
	}
	if a.ID == "" {
		a.ID = item.Key.SortID[len(SortPrefix):]
	}
	a.Plan, _ = docstore.Decimal(doc, "plan")
	a.Actual, _ = docstore.Decimal(doc, "actual")

	// Month arrives as a numeric index, an explicit month_index field,
	// or a calendar period hiding in the month field.
	if n, ok := docstore.Int(doc, "month"); ok && n > 0 {
		a.Month = n
	} else if n, ok := docstore.Int(doc, "month_index"); ok && n > 0 {
		a.Month = n
	} else if s := docstore.String(doc, "month"); periodRe.MatchString(s) && a.Period == "" {
		a.Period = s
	}
	return a
}

// ValidPeriod reports whether s is a well-formed "YYYY-MM" period key.
func ValidPeriod(s string) bool {
	return periodRe.MatchString(s)
}
