/*
ledger.go - Payroll entry validation and persistence

VALIDATION ON WRITE:
  - amount >= 0
  - period matches YYYY-MM
  - kind is one of the closed enum
  - a referenced rubro id must resolve through the taxonomy, else the
    entry is rejected with UnknownRubroError

BULK INGESTION:
  PutBulk applies the partial-success policy: each entry is validated
  and written independently; failures are reported per index and never
  roll back entries already written.

SEE ALSO:
  - types.go:   Entry codec and Kind enum
  - summary.go: Read-side aggregation
*/
package payroll

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finz/forecast-engine/allocation"
	"github.com/finz/forecast-engine/docstore"
	"github.com/finz/forecast-engine/rubro"
	"github.com/finz/forecast-engine/taxonomy"
)

// Ledger owns the PayrollEntry lifecycle.
type Ledger struct {
	Store       docstore.Store
	Allocations allocation.Reader
}

// NewLedger creates a ledger reading allocations from the same store.
func NewLedger(store docstore.Store) *Ledger {
	return &Ledger{
		Store:       store,
		Allocations: &allocation.StoreReader{Store: store},
	}
}

// =============================================================================
// WRITES
// =============================================================================

// Put validates and appends one payroll entry, returning it with its
// assigned id and timestamp.
func (l *Ledger) Put(ctx context.Context, e Entry) (Entry, error) {
	if err := validate(e); err != nil {
		return Entry{}, err
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	if err := l.Store.Put(ctx, encodeEntry(e), docstore.Unconditional); err != nil {
		return Entry{}, fmt.Errorf("append payroll entry: %w", err)
	}
	return e, nil
}

// BulkError reports one failed entry of a bulk ingestion.
type BulkError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// BulkResult is the partial-success outcome of PutBulk.
type BulkResult struct {
	InsertedCount int         `json:"insertedCount"`
	Errors        []BulkError `json:"errors"`
}

// PutBulk ingests entries independently; a bad entry rejects that entry
// only and never aborts writes already applied.
func (l *Ledger) PutBulk(ctx context.Context, entries []Entry) BulkResult {
	var res BulkResult
	for i, e := range entries {
		if _, err := l.Put(ctx, e); err != nil {
			res.Errors = append(res.Errors, BulkError{Index: i, Message: err.Error()})
			continue
		}
		res.InsertedCount++
	}
	return res
}

func validate(e Entry) error {
	if e.ProjectID == "" {
		return &rubro.FieldError{Field: "projectId", Message: "required"}
	}
	if !allocation.ValidPeriod(e.Period) {
		return &rubro.FieldError{Field: "period", Message: fmt.Sprintf("must match YYYY-MM, got %q", e.Period)}
	}
	if _, err := ParseKind(string(e.Kind)); err != nil {
		return err
	}
	if e.Amount.IsNegative() {
		return &rubro.FieldError{Field: "amount", Message: "must be >= 0"}
	}
	if e.RubroID != "" {
		code, err := taxonomy.Resolve(e.RubroID)
		if err != nil || !taxonomy.IsCanonical(code) {
			return &UnknownRubroError{RubroID: e.RubroID}
		}
	}
	return nil
}

// =============================================================================
// QUERIES
// =============================================================================

// QueryByProject returns all payroll entries for a project, optionally
// restricted to one kind (empty kind means all).
func (l *Ledger) QueryByProject(ctx context.Context, projectID rubro.ProjectID, kind Kind) ([]Entry, error) {
	if projectID == "" {
		return nil, &rubro.FieldError{Field: "projectId", Message: "required"}
	}
	return l.query(ctx, projectID, SortPrefix, kind)
}

// QueryByPeriod returns a project's entries for one period.
func (l *Ledger) QueryByPeriod(ctx context.Context, projectID rubro.ProjectID, period string, kind Kind) ([]Entry, error) {
	if projectID == "" {
		return nil, &rubro.FieldError{Field: "projectId", Message: "required"}
	}
	if !allocation.ValidPeriod(period) {
		return nil, &rubro.FieldError{Field: "period", Message: fmt.Sprintf("must match YYYY-MM, got %q", period)}
	}

	entries, err := l.query(ctx, projectID, SortPrefix+period+"#", kind)
	if err != nil {
		return nil, err
	}

	// Legacy rows keyed PAYROLL#{id} carry their period only in the
	// document body, so the prefix query misses them.
	all, err := l.query(ctx, projectID, SortPrefix, kind)
	if err != nil {
		return entries, nil
	}
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		seen[e.ID] = true
	}
	for _, e := range all {
		if e.Period == period && !seen[e.ID] {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (l *Ledger) query(ctx context.Context, projectID rubro.ProjectID, sortPrefix string, kind Kind) ([]Entry, error) {
	paged, err := (docstore.Cursor{}).QueryAll(ctx, l.Store, rubro.PartitionKey(projectID), sortPrefix)
	if err != nil {
		return nil, fmt.Errorf("query payroll: %w", err)
	}
	if paged.Truncated {
		log.Printf("WARN payroll: pagination truncated after %d pages for project %s", paged.Pages, projectID)
	}

	out := make([]Entry, 0, len(paged.Items))
	for _, it := range paged.Items {
		if !strings.HasPrefix(it.Key.SortID, SortPrefix) {
			continue
		}
		e := decodeEntry(it)
		if kind != "" && e.Kind != kind {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
