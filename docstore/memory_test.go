package docstore_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finz/forecast-engine/docstore"
)

func item(partition, sort string, doc map[string]any) docstore.Item {
	return docstore.Item{
		Key: docstore.Key{PartitionID: partition, SortID: sort},
		Doc: doc,
	}
}

func TestGet_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()

	require.NoError(t, store.Put(ctx, item("P#1", "META", map[string]any{"name": "alpha"}), docstore.Unconditional))

	got, err := store.Get(ctx, docstore.Key{PartitionID: "P#1", SortID: "META"})
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Doc["name"])

	_, err = store.Get(ctx, docstore.Key{PartitionID: "P#1", SortID: "MISSING"})
	assert.True(t, errors.Is(err, docstore.ErrNotFound))
}

func TestGet_ReturnsACopy(t *testing.T) {
	// Mutating a returned document must not leak back into the store.
	ctx := context.Background()
	store := docstore.NewMemory()
	require.NoError(t, store.Put(ctx, item("P#1", "META", map[string]any{"name": "alpha"}), docstore.Unconditional))

	got, _ := store.Get(ctx, docstore.Key{PartitionID: "P#1", SortID: "META"})
	got.Doc["name"] = "mutated"

	again, _ := store.Get(ctx, docstore.Key{PartitionID: "P#1", SortID: "META"})
	assert.Equal(t, "alpha", again.Doc["name"])
}

func TestPut_IfNotExists(t *testing.T) {
	// GIVEN: A document already at the key
	// WHEN: A conditional Put targets the same key
	// THEN: ErrConditionFailed, and the original document survives

	ctx := context.Background()
	store := docstore.NewMemory()
	key := item("P#1", "BASELINE_MARKER#b-1", map[string]any{"winner": "first"})

	require.NoError(t, store.Put(ctx, key, docstore.IfNotExists))

	loser := item("P#1", "BASELINE_MARKER#b-1", map[string]any{"winner": "second"})
	err := store.Put(ctx, loser, docstore.IfNotExists)
	require.Error(t, err)
	assert.True(t, errors.Is(err, docstore.ErrConditionFailed))

	got, err := store.Get(ctx, key.Key)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Doc["winner"])

	// Unconditional still overwrites.
	require.NoError(t, store.Put(ctx, loser, docstore.Unconditional))
	got, _ = store.Get(ctx, key.Key)
	assert.Equal(t, "second", got.Doc["winner"])
}

func TestQuery_PrefixAndOrder(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()

	// Inserted out of order on purpose.
	for _, sort := range []string{"RUBRO#b", "PAYROLL#x", "RUBRO#a", "META"} {
		require.NoError(t, store.Put(ctx, item("P#1", sort, map[string]any{}), docstore.Unconditional))
	}
	require.NoError(t, store.Put(ctx, item("P#2", "RUBRO#z", map[string]any{}), docstore.Unconditional))

	res, err := store.Query(ctx, "P#1", "RUBRO#", docstore.Page{})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "RUBRO#a", res.Items[0].Key.SortID)
	assert.Equal(t, "RUBRO#b", res.Items[1].Key.SortID)
	assert.Empty(t, res.NextToken)

	// Empty prefix matches the whole partition, never its neighbors.
	res, err = store.Query(ctx, "P#1", "", docstore.Page{})
	require.NoError(t, err)
	assert.Len(t, res.Items, 4)
}

func TestQuery_Pagination(t *testing.T) {
	// GIVEN: 5 documents under one prefix
	// WHEN: Paging with limit 2 and following NextToken
	// THEN: Pages of 2/2/1 with no overlap; the last page has no token

	ctx := context.Background()
	store := docstore.NewMemory()
	for i := 0; i < 5; i++ {
		sort := fmt.Sprintf("RUBRO#%02d", i)
		require.NoError(t, store.Put(ctx, item("P#1", sort, map[string]any{"i": i}), docstore.Unconditional))
	}

	var all []docstore.Item
	token := ""
	pages := 0
	for {
		res, err := store.Query(ctx, "P#1", "RUBRO#", docstore.Page{Limit: 2, Token: token})
		require.NoError(t, err)
		pages++
		all = append(all, res.Items...)
		if res.NextToken == "" {
			break
		}
		token = res.NextToken
	}

	assert.Equal(t, 3, pages)
	require.Len(t, all, 5)
	for i, it := range all {
		assert.Equal(t, fmt.Sprintf("RUBRO#%02d", i), it.Key.SortID)
	}
}

func TestQuery_BadToken(t *testing.T) {
	store := docstore.NewMemory()
	_, err := store.Query(context.Background(), "P#1", "", docstore.Page{Token: "not-a-token"})
	assert.True(t, errors.Is(err, docstore.ErrBadToken))
}

func TestScan_CrossesPartitions(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	require.NoError(t, store.Put(ctx, item("P#2", "META", map[string]any{}), docstore.Unconditional))
	require.NoError(t, store.Put(ctx, item("P#1", "META", map[string]any{}), docstore.Unconditional))
	require.NoError(t, store.Put(ctx, item("P#1", "RUBRO#a", map[string]any{}), docstore.Unconditional))

	res, err := store.Scan(ctx, "META", docstore.Page{})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "P#1", res.Items[0].Key.PartitionID)
	assert.Equal(t, "P#2", res.Items[1].Key.PartitionID)
}

func TestBatchWrite(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()

	items := make([]docstore.Item, 0, 3)
	for i := 0; i < 3; i++ {
		items = append(items, item("P#1", fmt.Sprintf("RUBRO#%d", i), map[string]any{}))
	}
	require.NoError(t, store.BatchWrite(ctx, items))

	res, err := store.Query(ctx, "P#1", "RUBRO#", docstore.Page{})
	require.NoError(t, err)
	assert.Len(t, res.Items, 3)

	oversized := make([]docstore.Item, docstore.MaxBatchSize+1)
	for i := range oversized {
		oversized[i] = item("P#1", fmt.Sprintf("X#%d", i), map[string]any{})
	}
	err = store.BatchWrite(ctx, oversized)
	assert.True(t, errors.Is(err, docstore.ErrBatchTooLarge))
}

func TestCursor_DrainsAndTruncates(t *testing.T) {
	// GIVEN: 10 documents and a cursor budgeted at 2 pages of 3
	// WHEN: Draining
	// THEN: 6 items come back with Truncated=true; a roomy budget
	//       drains everything

	ctx := context.Background()
	store := docstore.NewMemory()
	for i := 0; i < 10; i++ {
		sort := fmt.Sprintf("RUBRO#%02d", i)
		require.NoError(t, store.Put(ctx, item("P#1", sort, map[string]any{}), docstore.Unconditional))
	}

	paged, err := (docstore.Cursor{MaxPages: 2, PageSize: 3}).QueryAll(ctx, store, "P#1", "RUBRO#")
	require.NoError(t, err)
	assert.True(t, paged.Truncated)
	assert.Equal(t, 2, paged.Pages)
	assert.Len(t, paged.Items, 6)

	paged, err = (docstore.Cursor{PageSize: 3}).QueryAll(ctx, store, "P#1", "RUBRO#")
	require.NoError(t, err)
	assert.False(t, paged.Truncated)
	assert.Len(t, paged.Items, 10)
}
