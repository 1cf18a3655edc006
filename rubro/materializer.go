/*
materializer.go - Idempotent baseline expansion

PURPOSE:
  Expands an accepted baseline's estimates into persisted line items,
  exactly once per (project, baseline) pair.

ALGORITHM:
  1. Zero estimates -> skipped (no synthetic placeholder rows, ever)
  2. Pre-scan the partition for line items already tagged with this
     baseline -> skipped (cheap repeat-call path)
  3. Conditionally create BASELINE_MARKER#{id}. Losing the conditional
     write means a concurrent materialization won; return skipped. This
     marker is what makes the operation at-most-once - the pre-scan alone
     is a read-then-write race.
  4. Resolve each estimate's code, compute its cost, persist its line
     item. A failure rejects that estimate only; the batch continues and
     the Report carries the per-item errors.

SEE ALSO:
  - calc.go:     Cost math
  - taxonomy:    Code resolution (hard gate - unresolved codes never persist)
  - query.go:    Reads what this writes
*/
package rubro

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finz/forecast-engine/docstore"
	"github.com/finz/forecast-engine/taxonomy"
)

// ReasonNoEstimates is the Report.Reason for a baseline with nothing to
// materialize.
const ReasonNoEstimates = "no_estimates"

// ReasonAlreadyMaterialized is the Report.Reason when the baseline was
// expanded previously (or concurrently).
const ReasonAlreadyMaterialized = "already_materialized"

// Report is the outcome of one materialization call.
type Report struct {
	Seeded  int
	Skipped bool
	Reason  string
	Errors  []ItemError
}

// Materializer expands baselines into line items.
type Materializer struct {
	Store docstore.Store
}

// Materialize runs the expansion. Per-item failures are collected in the
// Report; only store-level failures on the guard path return an error.
func (m *Materializer) Materialize(ctx context.Context, projectID ProjectID, b Baseline) (Report, error) {
	if projectID == "" {
		return Report{}, &FieldError{Field: "projectId", Message: "required"}
	}
	if b.ID == "" {
		return Report{}, &FieldError{Field: "baseline.id", Message: "required"}
	}

	if len(b.Labor) == 0 && len(b.NonLabor) == 0 {
		return Report{Skipped: true, Reason: ReasonNoEstimates}, nil
	}

	// Cheap repeat-call path: any existing line item tagged with this
	// baseline means the work is done.
	done, err := m.alreadyMaterialized(ctx, projectID, b.ID)
	if err != nil {
		return Report{}, err
	}
	if done {
		return Report{Skipped: true, Reason: ReasonAlreadyMaterialized}, nil
	}

	// At-most-once guard: create the marker, or lose to whoever did.
	marker := docstore.Item{
		Key: docstore.Key{
			PartitionID: PartitionKey(projectID),
			SortID:      SortPrefixMarker + string(b.ID),
		},
		Doc: map[string]any{
			"baseline_id": string(b.ID),
			"seeded_at":   time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := m.Store.Put(ctx, marker, docstore.IfNotExists); err != nil {
		if errors.Is(err, docstore.ErrConditionFailed) {
			return Report{Skipped: true, Reason: ReasonAlreadyMaterialized}, nil
		}
		return Report{}, fmt.Errorf("materialization guard: %w", err)
	}

	report := Report{}
	seq := 0
	index := 0

	for _, le := range b.Labor {
		li, err := buildLaborItem(b, le, seq)
		if err != nil {
			report.Errors = append(report.Errors, ItemError{Index: index, RubroID: le.RubroID, Err: err})
			index++
			continue
		}
		seq++
		if err := m.Store.Put(ctx, encodeLineItem(projectID, li), docstore.Unconditional); err != nil {
			report.Errors = append(report.Errors, ItemError{Index: index, RubroID: le.RubroID, Err: err})
		} else {
			report.Seeded++
		}
		index++
	}

	for _, ne := range b.NonLabor {
		li, err := buildNonLaborItem(b, ne, seq)
		if err != nil {
			report.Errors = append(report.Errors, ItemError{Index: index, RubroID: ne.RubroID, Err: err})
			index++
			continue
		}
		seq++
		if err := m.Store.Put(ctx, encodeLineItem(projectID, li), docstore.Unconditional); err != nil {
			report.Errors = append(report.Errors, ItemError{Index: index, RubroID: ne.RubroID, Err: err})
		} else {
			report.Seeded++
		}
		index++
	}

	return report, nil
}

func (m *Materializer) alreadyMaterialized(ctx context.Context, projectID ProjectID, baselineID BaselineID) (bool, error) {
	paged, err := (docstore.Cursor{}).QueryAll(ctx, m.Store, PartitionKey(projectID), SortPrefixRubro)
	if err != nil {
		return false, fmt.Errorf("idempotency scan: %w", err)
	}
	if paged.Truncated {
		log.Printf("WARN rubro: idempotency scan truncated after %d pages for project %s", paged.Pages, projectID)
	}
	for _, item := range paged.Items {
		if decodeLineItem(item).BaselineTag() == baselineID {
			return true, nil
		}
	}
	return false, nil
}

// =============================================================================
// ESTIMATE -> LINE ITEM
// =============================================================================

func buildLaborItem(b Baseline, le LaborEstimate, seq int) (LineItem, error) {
	code, err := taxonomy.Resolve(le.RubroID)
	if err != nil {
		return LineItem{}, err
	}

	// Unit cost is per FTE-month; quantity carries the FTE count so the
	// unit*quantity*months invariant holds.
	unitCost := LaborMonthlyCost(le.HoursPerMonth, decimal.NewFromInt(1), le.HourlyRate, le.OnCostPct)
	monthly := unitCost.Mul(le.FTECount)
	span := SpanCost(monthly, le.StartMonth, le.EndMonth, true)

	name := le.Role
	if name == "" {
		if entry, ok := taxonomy.Lookup(code); ok {
			name = entry.Description
		}
	}

	return LineItem{
		ID:         LineItemID(code, b.ID, seq),
		Code:       code,
		Name:       name,
		Quantity:   le.FTECount,
		UnitCost:   unitCost,
		Currency:   b.Currency,
		Recurring:  true,
		OneTime:    false,
		StartMonth: span.StartMonth,
		EndMonth:   span.EndMonth,
		TotalCost:  span.TotalCost,
		Metadata: Metadata{
			Source:     "baseline",
			BaselineID: b.ID,
			ProjectID:  b.ProjectID,
			Role:       le.Role,
		},
	}, nil
}

func buildNonLaborItem(b Baseline, ne NonLaborEstimate, seq int) (LineItem, error) {
	code, err := taxonomy.Resolve(ne.RubroID)
	if err != nil {
		return LineItem{}, err
	}

	recurring := !ne.OneTime
	span := SpanCost(ne.Amount, ne.StartMonth, ne.EndMonth, recurring)

	name := ne.Description
	if name == "" {
		if entry, ok := taxonomy.Lookup(code); ok {
			name = entry.Description
		}
	}

	return LineItem{
		ID:         LineItemID(code, b.ID, seq),
		Code:       code,
		Name:       name,
		Quantity:   decimal.NewFromInt(1),
		UnitCost:   ne.Amount,
		Currency:   b.Currency,
		Recurring:  recurring,
		OneTime:    ne.OneTime,
		StartMonth: span.StartMonth,
		EndMonth:   span.EndMonth,
		TotalCost:  span.TotalCost,
		Metadata: Metadata{
			Source:     "baseline",
			BaselineID: b.ID,
			ProjectID:  b.ProjectID,
			Vendor:     ne.Vendor,
		},
	}, nil
}
