/*
Package payroll implements the append-only payroll ledger.

PURPOSE:
  Records payroll amounts per (project, period), distinguished by kind:
  plan, forecast, or actual. Entries are append-only; corrections are
  new entries, never edits. The ledger also derives the labor-vs-
  indirect time series used for executive reporting.

KEY CONCEPTS IN THIS FILE (types.go):
  - Kind:  closed enum plan | forecast | actual. Legacy rows without a
    kind decode as actual. Aggregation switches over Kind are exhaustive
    so a new kind cannot be added silently.
  - Entry: one payroll amount, optionally linked to a rubro and an
    allocation.

STORE LAYOUT:
  Sort ids follow PAYROLL#{period}#{id}. Legacy rows use PAYROLL#{id}
  with no period segment and no kind field; the codec folds both legacy
  facts into the canonical shape on read.

SEE ALSO:
  - ledger.go:  Validation and writes
  - summary.go: Time series and dashboard aggregation
*/
package payroll

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finz/forecast-engine/docstore"
	"github.com/finz/forecast-engine/rubro"
)

// =============================================================================
// KIND - Closed enum over payroll provenance
// =============================================================================

type Kind string

const (
	KindPlan     Kind = "plan"
	KindForecast Kind = "forecast"
	KindActual   Kind = "actual"
)

// ParseKind validates a kind token.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindPlan, KindForecast, KindActual:
		return Kind(s), nil
	default:
		return "", &rubro.FieldError{Field: "kind", Message: fmt.Sprintf("must be plan, forecast or actual, got %q", s)}
	}
}

// =============================================================================
// ENTRY
// =============================================================================

// Entry is one payroll amount for a (project, period, kind) tuple.
type Entry struct {
	ID            string
	ProjectID     rubro.ProjectID
	Period        string // "YYYY-MM"
	Kind          Kind
	Amount        decimal.Decimal
	Currency      string
	RubroID       string // optional link to a line item's canonical code
	AllocationID  string
	ResourceCount int
	Notes         string
	CreatedAt     time.Time
}

// SortPrefix is the sort-id prefix for payroll documents.
const SortPrefix = "PAYROLL#"

// =============================================================================
// ERRORS
// =============================================================================

// ErrUnknownRubro is the sentinel for a payroll entry referencing a
// cost-line code outside the canonical taxonomy.
var ErrUnknownRubro = errors.New("unknown rubro")

// UnknownRubroError names the rejected reference.
type UnknownRubroError struct {
	RubroID string
}

func (e *UnknownRubroError) Error() string {
	return fmt.Sprintf("unknown rubro: %q is not in the taxonomy", e.RubroID)
}

func (e *UnknownRubroError) Unwrap() error { return ErrUnknownRubro }

// =============================================================================
// DOCUMENT CODEC
// =============================================================================

func encodeEntry(e Entry) docstore.Item {
	return docstore.Item{
		Key: docstore.Key{
			PartitionID: rubro.PartitionKey(e.ProjectID),
			SortID:      SortPrefix + e.Period + "#" + e.ID,
		},
		Doc: map[string]any{
			"id":             e.ID,
			"project_id":     string(e.ProjectID),
			"period":         e.Period,
			"kind":           string(e.Kind),
			"amount":         e.Amount.String(),
			"currency":       e.Currency,
			"rubro_id":       e.RubroID,
			"allocation_id":  e.AllocationID,
			"resource_count": e.ResourceCount,
			"notes":          e.Notes,
			"created_at":     e.CreatedAt.UTC().Format(time.RFC3339),
		},
	}
}

// decodeEntry normalizes a stored document. Legacy rows lack a kind
// (treated as actual) and may lack a period segment in the sort id.
func decodeEntry(item docstore.Item) Entry {
	doc := item.Doc
	e := Entry{
		ID:           docstore.String(doc, "id"),
		ProjectID:    rubro.ProjectID(docstore.String(doc, "project_id")),
		Period:       docstore.String(doc, "period"),
		Currency:     docstore.String(doc, "currency"),
		RubroID:      docstore.String(doc, "rubro_id"),
		AllocationID: docstore.String(doc, "allocation_id"),
		Notes:        docstore.String(doc, "notes"),
	}
	e.Amount, _ = docstore.Decimal(doc, "amount")
	e.ResourceCount, _ = docstore.Int(doc, "resource_count")

	if k := docstore.String(doc, "kind"); k != "" {
		e.Kind = Kind(k)
	} else {
		e.Kind = KindActual
	}

	if raw := docstore.String(doc, "created_at"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			e.CreatedAt = t
		}
	}

	// Legacy sort id PAYROLL#{id}: recover the id; the period, if any,
	// lives only in the document body.
	if e.ID == "" {
		rest := strings.TrimPrefix(item.Key.SortID, SortPrefix)
		if i := strings.IndexByte(rest, '#'); i >= 0 {
			if e.Period == "" {
				e.Period = rest[:i]
			}
			e.ID = rest[i+1:]
		} else {
			e.ID = rest
		}
	}
	return e
}
