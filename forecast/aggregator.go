/*
aggregator.go - Forecast assembly with the fallback hierarchy

FALLBACK HIERARCHY (strict order; a tier engages only when the previous
tier produced zero rows):
  1. Allocation records, converted 1:1 into cells
  2. Line items of the project's accepted baseline, expanded into a grid.
     A pending baseline never leaks into the forecast.
  3. Empty - a project with an accepted baseline but no allocations and
     no rubros legitimately forecasts nothing.

Payroll entries are merged as a SEPARATE category of cells keyed
payroll-{kind}; they never blend into the allocation/rubro tiers.
After assembly, matched invoice actuals overwrite the actual field of
any cell with the same (line item, month), and variance is recomputed.

READS:
  The five store reads (project, allocations, payroll, line items,
  invoices) are independent and issued concurrently; aggregation is pure
  computation after all of them resolve. Read failures degrade to empty
  inputs with a logged warning - forecasting is a best-effort reporting
  path, not a transaction.

SEE ALSO:
  - grid.go:  Cell type and line-item expansion
  - rubro/query.go: Baseline scoping used by tier 2
*/
package forecast

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finz/forecast-engine/allocation"
	"github.com/finz/forecast-engine/docstore"
	"github.com/finz/forecast-engine/payroll"
	"github.com/finz/forecast-engine/rubro"
)

// Month bounds for one forecast request.
const (
	MinMonths     = 1
	MaxMonths     = 60
	DefaultMonths = 12
)

// SortPrefixInvoice is the sort-id prefix for matched-invoice documents.
const SortPrefixInvoice = "INVOICE#"

// Aggregator merges the engine's read models into forecast cells.
type Aggregator struct {
	Store       docstore.Store
	Ledger      *payroll.Ledger
	Allocations allocation.Reader
}

// New creates an aggregator with all readers backed by one store.
func New(store docstore.Store) *Aggregator {
	return &Aggregator{
		Store:       store,
		Ledger:      payroll.NewLedger(store),
		Allocations: &allocation.StoreReader{Store: store},
	}
}

// Aggregate computes the forecast grid for one project.
func (a *Aggregator) Aggregate(ctx context.Context, projectID rubro.ProjectID, months int) ([]Cell, error) {
	if projectID == "" {
		return nil, &rubro.FieldError{Field: "projectId", Message: "required"}
	}
	if months < MinMonths || months > MaxMonths {
		return nil, &rubro.FieldError{Field: "months", Message: fmt.Sprintf("must be in [%d,%d], got %d", MinMonths, MaxMonths, months)}
	}

	in := a.load(ctx, projectID)

	// Tier 1: authoritative allocations.
	cells := a.allocationCells(in, months)

	// Tier 2: accepted-baseline line items, only when tier 1 is empty.
	if len(cells) == 0 {
		cells = a.rubroCells(in, months)
	}
	// Tier 3: empty is a valid forecast, not an error.

	cells = append(cells, a.payrollCells(in, months)...)

	applyInvoiceActuals(cells, in.invoices)
	for i := range cells {
		cells[i].Variance = cells[i].Actual.Sub(cells[i].Planned)
	}

	sort.Slice(cells, func(i, j int) bool {
		if cells[i].LineItemID != cells[j].LineItemID {
			return cells[i].LineItemID < cells[j].LineItemID
		}
		return cells[i].Month < cells[j].Month
	})
	return cells, nil
}

// =============================================================================
// CONCURRENT LOAD
// =============================================================================

type inputs struct {
	project    rubro.Project
	hasProject bool
	allocs     []allocation.Allocation
	entries    []payroll.Entry
	items      []rubro.LineItem
	invoices   []invoiceMatch
}

// load issues all independent reads concurrently. Each failed read
// degrades to its zero value with a warning.
func (a *Aggregator) load(ctx context.Context, projectID rubro.ProjectID) inputs {
	var in inputs
	var wg sync.WaitGroup
	wg.Add(5)

	go func() {
		defer wg.Done()
		p, err := rubro.LoadProject(ctx, a.Store, projectID)
		if err != nil {
			log.Printf("WARN forecast: project read failed for %s: %v", projectID, err)
			return
		}
		in.project = p
		in.hasProject = true
	}()

	go func() {
		defer wg.Done()
		allocs, err := a.Allocations.ByProject(ctx, rubro.PartitionKey(projectID))
		if err != nil {
			log.Printf("WARN forecast: allocation read failed for %s: %v", projectID, err)
			return
		}
		in.allocs = allocs
	}()

	go func() {
		defer wg.Done()
		entries, err := a.Ledger.QueryByProject(ctx, projectID, "")
		if err != nil {
			log.Printf("WARN forecast: payroll read failed for %s: %v", projectID, err)
			return
		}
		in.entries = entries
	}()

	go func() {
		defer wg.Done()
		items, err := rubro.QueryLineItems(ctx, a.Store, projectID, "")
		if err != nil {
			log.Printf("WARN forecast: line item read failed for %s: %v", projectID, err)
			return
		}
		in.items = items
	}()

	go func() {
		defer wg.Done()
		invoices, err := a.loadInvoices(ctx, projectID)
		if err != nil {
			log.Printf("WARN forecast: invoice read failed for %s: %v", projectID, err)
			return
		}
		in.invoices = invoices
	}()

	wg.Wait()
	return in
}

// =============================================================================
// TIERS
// =============================================================================

func (a *Aggregator) allocationCells(in inputs, months int) []Cell {
	var cells []Cell
	for _, al := range in.allocs {
		m := al.Month
		if m == 0 && al.Period != "" {
			var ok bool
			m, ok = monthIndex(al.Period, in.project.StartDate)
			if !ok {
				log.Printf("WARN forecast: dropping allocation %s: unparseable month (period %q)", al.ID, al.Period)
				continue
			}
		}
		if m < 1 || m > months {
			continue
		}

		id := al.RubroID
		if id == "" {
			id = al.ID
		}
		cells = append(cells, Cell{
			LineItemID: id,
			Month:      m,
			Planned:    al.Plan,
			Forecast:   al.Plan,
			Actual:     al.Actual,
			Source:     SourceAllocation,
		})
	}
	return cells
}

func (a *Aggregator) rubroCells(in inputs, months int) []Cell {
	if !in.hasProject {
		return nil
	}
	active := in.project.ActiveBaseline
	if active == "" || in.project.BaselineStatusOf(active) != rubro.StatusAccepted {
		// A pending baseline must not leak into the forecast.
		return nil
	}
	return GridFromLineItems(rubro.FilterByBaseline(in.items, active), months)
}

// payrollCells groups ledger entries into one synthetic cell per
// (kind, month), keyed payroll-{kind}, separate from the tiered cells.
func (a *Aggregator) payrollCells(in inputs, months int) []Cell {
	type key struct {
		kind  payroll.Kind
		month int
	}
	sums := make(map[key]decimal.Decimal)
	for _, e := range in.entries {
		m, ok := monthIndex(e.Period, in.project.StartDate)
		if !ok {
			continue
		}
		if m < 1 || m > months {
			continue
		}
		k := key{kind: e.Kind, month: m}
		sums[k] = sums[k].Add(e.Amount)
	}

	cells := make([]Cell, 0, len(sums))
	for k, amount := range sums {
		c := Cell{
			LineItemID: "payroll-" + string(k.kind),
			Month:      k.month,
			Source:     SourcePayroll,
		}
		switch k.kind {
		case payroll.KindPlan:
			c.Planned = amount
		case payroll.KindForecast:
			c.Forecast = amount
		case payroll.KindActual:
			c.Actual = amount
		}
		cells = append(cells, c)
	}
	return cells
}

// =============================================================================
// INVOICE OVERLAY
// =============================================================================

type invoiceMatch struct {
	LineItemID string
	Month      int
	Amount     decimal.Decimal
}

func (a *Aggregator) loadInvoices(ctx context.Context, projectID rubro.ProjectID) ([]invoiceMatch, error) {
	paged, err := (docstore.Cursor{}).QueryAll(ctx, a.Store, rubro.PartitionKey(projectID), SortPrefixInvoice)
	if err != nil {
		return nil, err
	}
	if paged.Truncated {
		log.Printf("WARN forecast: invoice pagination truncated after %d pages for %s", paged.Pages, projectID)
	}

	var out []invoiceMatch
	for _, it := range paged.Items {
		if matched, ok := it.Doc["matched"].(bool); ok && !matched {
			continue
		}
		inv := invoiceMatch{LineItemID: docstore.String(it.Doc, "line_item_id")}
		if inv.LineItemID == "" {
			inv.LineItemID = docstore.String(it.Doc, "rubro_id")
		}
		inv.Amount, _ = docstore.Decimal(it.Doc, "amount")
		inv.Month, _ = docstore.Int(it.Doc, "month")
		if inv.LineItemID == "" || inv.Month < 1 {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func applyInvoiceActuals(cells []Cell, invoices []invoiceMatch) {
	if len(invoices) == 0 {
		return
	}
	type key struct {
		id    string
		month int
	}
	byCell := make(map[key]decimal.Decimal, len(invoices))
	for _, inv := range invoices {
		byCell[key{inv.LineItemID, inv.Month}] = inv.Amount
	}
	for i := range cells {
		if amount, ok := byCell[key{cells[i].LineItemID, cells[i].Month}]; ok {
			cells[i].Actual = amount
		}
	}
}

// monthIndex converts a "YYYY-MM" period into a 1-based month relative
// to the project start. Unknown start dates cannot anchor the index.
func monthIndex(period string, start time.Time) (int, bool) {
	if start.IsZero() || !allocation.ValidPeriod(period) {
		return 0, false
	}
	t, err := time.Parse("2006-01", period)
	if err != nil {
		return 0, false
	}
	idx := (t.Year()-start.Year())*12 + int(t.Month()) - int(start.Month()) + 1
	if idx < 1 {
		return 0, false
	}
	return idx, true
}
