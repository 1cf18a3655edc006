/*
query.go - Baseline-scoped retrieval and filtering

PURPOSE:
  Pages through a project's line items and narrows them to one baseline.
  This filter is the isolation boundary between a project's current plan
  and its superseded history - the classic correctness bug in this
  domain is leaking another baseline's amounts into a total.

UNTAGGED-ROW POLICY (exclude-with-fallback):
  When filtering by a baseline id, rows with no baseline tag are
  excluded - they belong to an untracked legacy seed. If the filter
  would otherwise return zero rows and untagged rows exist, the untagged
  set is returned instead, so a project migrated before tagging existed
  still renders a forecast. This is the one authoritative policy; no
  call site reimplements it.

SEE ALSO:
  - materializer.go: Writes what this reads
  - forecast:        Builds grid cells from the filtered set
*/
package rubro

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/finz/forecast-engine/docstore"
)

// QueryLineItems returns the line items for one baseline of a project.
// An empty baselineID resolves through the project's active-baseline
// pointer; if the project has no pointer either, all line items are
// returned unfiltered.
func QueryLineItems(ctx context.Context, s docstore.Store, projectID ProjectID, baselineID BaselineID) ([]LineItem, error) {
	if projectID == "" {
		return nil, &FieldError{Field: "projectId", Message: "required"}
	}

	if baselineID == "" {
		p, err := LoadProject(ctx, s, projectID)
		if err == nil {
			baselineID = p.ActiveBaseline
		}
		// A missing META document is not fatal: legacy projects have
		// line items but no metadata. Fall through unfiltered.
	}

	paged, err := (docstore.Cursor{}).QueryAll(ctx, s, PartitionKey(projectID), SortPrefixRubro)
	if err != nil {
		return nil, fmt.Errorf("query line items: %w", err)
	}
	if paged.Truncated {
		log.Printf("WARN rubro: line item pagination truncated after %d pages for project %s", paged.Pages, projectID)
	}

	items := make([]LineItem, 0, len(paged.Items))
	for _, it := range paged.Items {
		items = append(items, decodeLineItem(it))
	}
	return FilterByBaseline(items, baselineID), nil
}

// FilterByBaseline applies the exclude-with-fallback policy. An empty
// target id means no filter.
func FilterByBaseline(items []LineItem, baselineID BaselineID) []LineItem {
	if baselineID == "" {
		return items
	}

	tagged := make([]LineItem, 0, len(items))
	var untagged []LineItem
	for _, li := range items {
		switch li.BaselineTag() {
		case baselineID:
			tagged = append(tagged, li)
		case "":
			untagged = append(untagged, li)
		}
	}
	if len(tagged) > 0 {
		return tagged
	}
	// Zero tagged rows: fall back to the untracked legacy seed rather
	// than blanking the project.
	return untagged
}

// CalculateTotalCost sums TotalCost over a line item set. Items whose
// stored total failed to decode contribute zero.
func CalculateTotalCost(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, li := range items {
		total = total.Add(li.TotalCost)
	}
	return total
}
