package rubro_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finz/forecast-engine/docstore"
	"github.com/finz/forecast-engine/rubro"
)

// rawLineItem writes a line item document directly, bypassing the
// materializer, to model legacy and cross-baseline rows.
func rawLineItem(t *testing.T, store docstore.Store, projectID, sortSuffix string, doc map[string]any) {
	t.Helper()
	item := docstore.Item{
		Key: docstore.Key{
			PartitionID: rubro.PartitionKey(rubro.ProjectID(projectID)),
			SortID:      rubro.SortPrefixRubro + sortSuffix,
		},
		Doc: doc,
	}
	require.NoError(t, store.Put(context.Background(), item, docstore.Unconditional))
}

func TestQueryLineItems_BaselineIsolation(t *testing.T) {
	// GIVEN: Line items tagged for baselines A and B under one project
	// WHEN: Querying each baseline
	// THEN: Neither result contains the other's items, and totals exclude
	//       the other baseline's amounts

	ctx := context.Background()
	store := docstore.NewMemory()
	m := &rubro.Materializer{Store: store}

	_, err := m.Materialize(ctx, "p-1", testBaseline("A"))
	require.NoError(t, err)

	bigger := testBaseline("B")
	bigger.NonLabor[0].Amount = d(2000)
	_, err = m.Materialize(ctx, "p-1", bigger)
	require.NoError(t, err)

	itemsA, err := rubro.QueryLineItems(ctx, store, "p-1", "A")
	require.NoError(t, err)
	itemsB, err := rubro.QueryLineItems(ctx, store, "p-1", "B")
	require.NoError(t, err)

	for _, li := range itemsA {
		assert.Equal(t, rubro.BaselineID("A"), li.BaselineTag())
	}
	for _, li := range itemsB {
		assert.Equal(t, rubro.BaselineID("B"), li.BaselineTag())
	}

	totalA := rubro.CalculateTotalCost(itemsA)
	totalB := rubro.CalculateTotalCost(itemsB)
	assert.True(t, totalA.Equal(d(14_412_000)), "total A: %s", totalA)
	assert.True(t, totalB.Equal(d(14_424_000)), "total B: %s", totalB)
}

func TestQueryLineItems_ResolvesActiveBaselinePointer(t *testing.T) {
	// An omitted baseline id resolves through the project's active pointer.
	ctx := context.Background()
	store := docstore.NewMemory()
	m := &rubro.Materializer{Store: store}

	_, err := m.Materialize(ctx, "p-1", testBaseline("A"))
	require.NoError(t, err)
	_, err = m.Materialize(ctx, "p-1", testBaseline("B"))
	require.NoError(t, err)

	require.NoError(t, rubro.SaveProject(ctx, store, rubro.Project{
		ID:             "p-1",
		ActiveBaseline: "B",
		Statuses:       map[rubro.BaselineID]rubro.BaselineStatus{"B": rubro.StatusAccepted},
	}))

	items, err := rubro.QueryLineItems(ctx, store, "p-1", "")
	require.NoError(t, err)
	require.NotEmpty(t, items)
	for _, li := range items {
		assert.Equal(t, rubro.BaselineID("B"), li.BaselineTag())
	}
}

func TestFilterByBaseline_ExcludesUntaggedWhenTaggedRowsExist(t *testing.T) {
	items := []rubro.LineItem{
		{ID: "a", Metadata: rubro.Metadata{BaselineID: "A"}},
		{ID: "legacy"},
		{ID: "b", Metadata: rubro.Metadata{BaselineID: "B"}},
	}

	got := rubro.FilterByBaseline(items, "A")
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestFilterByBaseline_FallsBackToUntaggedOnZeroRows(t *testing.T) {
	// A project migrated before tagging existed has only untagged rows;
	// filtering must return them rather than blanking the project.
	items := []rubro.LineItem{
		{ID: "legacy-1"},
		{ID: "legacy-2"},
		{ID: "b", Metadata: rubro.Metadata{BaselineID: "B"}},
	}

	got := rubro.FilterByBaseline(items, "A")
	require.Len(t, got, 2)
	assert.Equal(t, "legacy-1", got[0].ID)
	assert.Equal(t, "legacy-2", got[1].ID)
}

func TestFilterByBaseline_NoFilterMode(t *testing.T) {
	items := []rubro.LineItem{
		{ID: "a", Metadata: rubro.Metadata{BaselineID: "A"}},
		{ID: "legacy"},
	}
	assert.Len(t, rubro.FilterByBaseline(items, ""), 2)
}

func TestQueryLineItems_LegacyTopLevelBaselineTag(t *testing.T) {
	// GIVEN: A legacy row carrying baseline_id at the top level
	// WHEN: Querying by that baseline
	// THEN: The boundary adapter folds the tag into the canonical shape

	ctx := context.Background()
	store := docstore.NewMemory()

	rawLineItem(t, store, "p-1", "LEGACY#1", map[string]any{
		"code":        "MOD-SR",
		"baseline_id": "old-bl",
		"unit_cost":   "100",
		"total_cost":  "1200",
		"recurring":   true,
		"start_month": 1,
		"end_month":   12,
	})

	items, err := rubro.QueryLineItems(ctx, store, "p-1", "old-bl")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, rubro.BaselineID("old-bl"), items[0].BaselineTag())
	assert.Equal(t, "LEGACY#1", items[0].ID)
	assert.True(t, items[0].TotalCost.Equal(d(1200)))
}

func TestCalculateTotalCost_TreatsUndecodableAsZero(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()

	rawLineItem(t, store, "p-1", "X#1", map[string]any{
		"id":          "X#1",
		"total_cost":  "not-a-number",
		"baseline_id": "A",
	})
	rawLineItem(t, store, "p-1", "X#2", map[string]any{
		"id":          "X#2",
		"total_cost":  "250",
		"baseline_id": "A",
	})

	items, err := rubro.QueryLineItems(ctx, store, "p-1", "A")
	require.NoError(t, err)
	total := rubro.CalculateTotalCost(items)
	assert.True(t, total.Equal(d(250)), "total: %s", total)
}

func TestQueryLineItems_RequiresProject(t *testing.T) {
	_, err := rubro.QueryLineItems(context.Background(), docstore.NewMemory(), "", "A")
	assert.ErrorIs(t, err, rubro.ErrValidation)
}
