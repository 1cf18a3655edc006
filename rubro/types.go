/*
Package rubro implements the baseline materialization core.

PURPOSE:
  A baseline is a project's proposed financial plan: labor and non-labor
  cost estimates. When a baseline is accepted, this package expands it
  into persisted, baseline-scoped line items ("rubros") exactly once,
  and provides the baseline-scoped retrieval and filtering that every
  reporting path builds on.

KEY CONCEPTS IN THIS FILE (types.go):
  - Baseline:         The plan, with LaborEstimate/NonLaborEstimate records
  - LineItem:         A materialized cost line owned by one (project, baseline)
  - Metadata:         Provenance carried by every line item
  - Store key layout: PROJECT#{id} partitions, RUBRO#... sort ids

DESIGN PRINCIPLES:
  1. Precision:    All money uses decimal.Decimal, never float64
  2. Create-once:  Line items are never mutated; superseded baselines keep
                   their line items tagged with the original baseline id
  3. Normalization at the boundary: legacy document shapes (top-level
     baseline_id) are folded into the canonical shape when decoding, so
     interior logic only sees Metadata.BaselineID

SEE ALSO:
  - calc.go:         Pure cost math
  - materializer.go: Idempotent baseline expansion
  - query.go:        Baseline-scoped retrieval and filtering
*/
package rubro

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/finz/forecast-engine/docstore"
	"github.com/finz/forecast-engine/taxonomy"
)

// =============================================================================
// IDENTIFIERS AND LIFECYCLE
// =============================================================================

type ProjectID string
type BaselineID string

// BaselineStatus is the baseline lifecycle. Only accepted baselines feed
// the forecast.
type BaselineStatus string

const (
	StatusDraft     BaselineStatus = "draft"
	StatusHandedOff BaselineStatus = "handed_off"
	StatusAccepted  BaselineStatus = "accepted"
)

// =============================================================================
// ESTIMATES - Inputs to materialization
// =============================================================================

// LaborEstimate is one staffed role in a baseline. Months are 1-based
// and inclusive, relative to the project start.
type LaborEstimate struct {
	Role          string
	RubroID       string // canonical code or legacy alias; resolved on materialization
	FTECount      decimal.Decimal
	HoursPerMonth decimal.Decimal
	HourlyRate    decimal.Decimal
	OnCostPct     decimal.Decimal // benefits load, percent
	StartMonth    int
	EndMonth      int
}

// NonLaborEstimate is a fixed-amount cost, recurring or one-time.
type NonLaborEstimate struct {
	RubroID     string
	Category    string
	Description string
	Vendor      string
	Amount      decimal.Decimal
	OneTime     bool
	StartMonth  int
	EndMonth    int
}

// Baseline is a project's proposed financial plan. Immutable once
// accepted except for status transitions.
type Baseline struct {
	ID        BaselineID
	ProjectID ProjectID
	Currency  string
	Status    BaselineStatus
	Labor     []LaborEstimate
	NonLabor  []NonLaborEstimate
}

// =============================================================================
// LINE ITEM ("RUBRO") - Materialized cost line
// =============================================================================

// Metadata is the provenance bag carried by every materialized line item.
type Metadata struct {
	Source     string // always "baseline" for materialized items
	BaselineID BaselineID
	ProjectID  ProjectID
	Role       string
	Vendor     string
}

// LineItem is one materialized cost line belonging to exactly one
// (project, baseline) pair.
//
// Invariant: TotalCost == UnitCost * Quantity * months for recurring
// items, TotalCost == UnitCost for one-time items.
type LineItem struct {
	ID         string // {canonicalCode}#{baselineID}#{seq}
	Code       taxonomy.Code
	Name       string
	Quantity   decimal.Decimal
	UnitCost   decimal.Decimal
	Currency   string
	Recurring  bool
	OneTime    bool
	StartMonth int
	EndMonth   int
	TotalCost  decimal.Decimal
	Metadata   Metadata
}

// BaselineTag returns the baseline the item belongs to, or "" for
// untracked legacy rows.
func (li LineItem) BaselineTag() BaselineID {
	return li.Metadata.BaselineID
}

// =============================================================================
// STORE KEY LAYOUT
// =============================================================================

const (
	SortPrefixRubro    = "RUBRO#"
	SortPrefixBaseline = "BASELINE#"
	SortPrefixMarker   = "BASELINE_MARKER#"
	SortProjectMeta    = "META"
)

// PartitionKey returns the store partition for a project.
func PartitionKey(projectID ProjectID) string {
	return "PROJECT#" + string(projectID)
}

// LineItemID builds the stable identifier for a materialized line item.
// The (code, baseline, sequence) triple is collision-free across repeated
// materialization attempts for different baselines on the same project.
func LineItemID(code taxonomy.Code, baselineID BaselineID, seq int) string {
	return fmt.Sprintf("%s#%s#%d", code, baselineID, seq)
}

// =============================================================================
// DOCUMENT CODEC
// =============================================================================

func encodeLineItem(projectID ProjectID, li LineItem) docstore.Item {
	return docstore.Item{
		Key: docstore.Key{
			PartitionID: PartitionKey(projectID),
			SortID:      SortPrefixRubro + li.ID,
		},
		Doc: map[string]any{
			"id":          li.ID,
			"code":        string(li.Code),
			"name":        li.Name,
			"quantity":    li.Quantity.String(),
			"unit_cost":   li.UnitCost.String(),
			"currency":    li.Currency,
			"recurring":   li.Recurring,
			"one_time":    li.OneTime,
			"start_month": li.StartMonth,
			"end_month":   li.EndMonth,
			"total_cost":  li.TotalCost.String(),
			"metadata": map[string]any{
				"source":      li.Metadata.Source,
				"baseline_id": string(li.Metadata.BaselineID),
				"project_id":  string(li.Metadata.ProjectID),
				"role":        li.Metadata.Role,
				"vendor":      li.Metadata.Vendor,
			},
		},
	}
}

// decodeLineItem normalizes a stored document into a LineItem. Legacy
// rows may carry the baseline tag at the top level instead of inside
// metadata; the fallback is resolved here so nothing downstream ever
// checks both places.
func decodeLineItem(item docstore.Item) LineItem {
	doc := item.Doc
	li := LineItem{
		ID:        docstore.String(doc, "id"),
		Code:      taxonomy.Code(docstore.String(doc, "code")),
		Name:      docstore.String(doc, "name"),
		Currency:  docstore.String(doc, "currency"),
		Recurring: docstore.Bool(doc, "recurring"),
		OneTime:   docstore.Bool(doc, "one_time"),
	}
	li.Quantity, _ = docstore.Decimal(doc, "quantity")
	li.UnitCost, _ = docstore.Decimal(doc, "unit_cost")
	li.TotalCost, _ = docstore.Decimal(doc, "total_cost")
	li.StartMonth, _ = docstore.Int(doc, "start_month")
	li.EndMonth, _ = docstore.Int(doc, "end_month")

	meta := docstore.Child(doc, "metadata")
	li.Metadata = Metadata{
		Source:     docstore.String(meta, "source"),
		BaselineID: BaselineID(docstore.String(meta, "baseline_id")),
		ProjectID:  ProjectID(docstore.String(meta, "project_id")),
		Role:       docstore.String(meta, "role"),
		Vendor:     docstore.String(meta, "vendor"),
	}
	if li.Metadata.BaselineID == "" {
		// Legacy shape: baseline tag at the top level.
		li.Metadata.BaselineID = BaselineID(docstore.String(doc, "baseline_id"))
	}
	if li.ID == "" {
		// Legacy rows keyed only by sort id.
		li.ID = trimPrefix(item.Key.SortID, SortPrefixRubro)
	}
	return li
}

func trimPrefix(s, prefix string) string {
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):]
	}
	return s
}
