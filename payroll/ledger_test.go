package payroll_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finz/forecast-engine/docstore"
	"github.com/finz/forecast-engine/payroll"
	"github.com/finz/forecast-engine/rubro"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func entry(period string, kind payroll.Kind, amount float64) payroll.Entry {
	return payroll.Entry{
		ProjectID: "p-1",
		Period:    period,
		Kind:      kind,
		Amount:    d(amount),
		Currency:  "MXN",
	}
}

func TestPut_AssignsIDAndPersists(t *testing.T) {
	ctx := context.Background()
	ledger := payroll.NewLedger(docstore.NewMemory())

	e, err := ledger.Put(ctx, entry("2026-03", payroll.KindPlan, 10000))
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.CreatedAt.IsZero())

	got, err := ledger.QueryByProject(ctx, "p-1", "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, payroll.KindPlan, got[0].Kind)
	assert.True(t, got[0].Amount.Equal(d(10000)))
}

func TestPut_Validation(t *testing.T) {
	ctx := context.Background()
	ledger := payroll.NewLedger(docstore.NewMemory())

	cases := []struct {
		name string
		e    payroll.Entry
	}{
		{"missing project", payroll.Entry{Period: "2026-01", Kind: payroll.KindPlan}},
		{"bad period", entry("2026-13", payroll.KindPlan, 1)},
		{"bad period format", entry("Jan 2026", payroll.KindPlan, 1)},
		{"bad kind", entry("2026-01", "estimate", 1)},
		{"negative amount", entry("2026-01", payroll.KindActual, -5)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ledger.Put(ctx, tc.e)
			assert.ErrorIs(t, err, rubro.ErrValidation)
		})
	}
}

func TestPut_UnknownRubroRejected(t *testing.T) {
	ctx := context.Background()
	ledger := payroll.NewLedger(docstore.NewMemory())

	e := entry("2026-01", payroll.KindActual, 100)
	e.RubroID = "NOT-A-RUBRO"
	_, err := ledger.Put(ctx, e)
	assert.ErrorIs(t, err, payroll.ErrUnknownRubro)

	// An alias resolving to a canonical code is accepted.
	e.RubroID = "licencias"
	_, err = ledger.Put(ctx, e)
	assert.NoError(t, err)
}

func TestQueryByProject_FiltersByKind(t *testing.T) {
	ctx := context.Background()
	ledger := payroll.NewLedger(docstore.NewMemory())

	for _, e := range []payroll.Entry{
		entry("2026-01", payroll.KindPlan, 100),
		entry("2026-01", payroll.KindActual, 80),
		entry("2026-02", payroll.KindPlan, 100),
	} {
		_, err := ledger.Put(ctx, e)
		require.NoError(t, err)
	}

	plans, err := ledger.QueryByProject(ctx, "p-1", payroll.KindPlan)
	require.NoError(t, err)
	assert.Len(t, plans, 2)

	actuals, err := ledger.QueryByProject(ctx, "p-1", payroll.KindActual)
	require.NoError(t, err)
	assert.Len(t, actuals, 1)
}

func TestQueryByPeriod(t *testing.T) {
	ctx := context.Background()
	ledger := payroll.NewLedger(docstore.NewMemory())

	for _, e := range []payroll.Entry{
		entry("2026-01", payroll.KindPlan, 100),
		entry("2026-02", payroll.KindPlan, 200),
	} {
		_, err := ledger.Put(ctx, e)
		require.NoError(t, err)
	}

	got, err := ledger.QueryByPeriod(ctx, "p-1", "2026-02", "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Amount.Equal(d(200)))

	_, err = ledger.QueryByPeriod(ctx, "p-1", "bogus", "")
	assert.ErrorIs(t, err, rubro.ErrValidation)
}

func TestLegacyEntry_DefaultsToActual(t *testing.T) {
	// GIVEN: A legacy row keyed PAYROLL#{id} with no kind field
	// WHEN: Querying the ledger
	// THEN: It decodes as kind=actual with its period from the body

	ctx := context.Background()
	store := docstore.NewMemory()
	ledger := payroll.NewLedger(store)

	legacy := docstore.Item{
		Key: docstore.Key{PartitionID: rubro.PartitionKey("p-1"), SortID: payroll.SortPrefix + "legacy-1"},
		Doc: map[string]any{"period": "2025-11", "amount": "750"},
	}
	require.NoError(t, store.Put(ctx, legacy, docstore.Unconditional))

	got, err := ledger.QueryByProject(ctx, "p-1", payroll.KindActual)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "legacy-1", got[0].ID)
	assert.Equal(t, "2025-11", got[0].Period)
	assert.True(t, got[0].Amount.Equal(d(750)))

	byPeriod, err := ledger.QueryByPeriod(ctx, "p-1", "2025-11", "")
	require.NoError(t, err)
	assert.Len(t, byPeriod, 1)
}

func TestPutBulk_PartialSuccess(t *testing.T) {
	// GIVEN: A batch with two valid and two invalid entries
	// WHEN: Bulk ingesting
	// THEN: Valid entries persist; failures are reported per index and
	//       never roll back applied writes

	ctx := context.Background()
	ledger := payroll.NewLedger(docstore.NewMemory())

	res := ledger.PutBulk(ctx, []payroll.Entry{
		entry("2026-01", payroll.KindPlan, 100),
		entry("bad", payroll.KindPlan, 100),
		entry("2026-02", payroll.KindActual, 50),
		entry("2026-02", "bogus", 50),
	})

	assert.Equal(t, 2, res.InsertedCount)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, 1, res.Errors[0].Index)
	assert.Equal(t, 3, res.Errors[1].Index)

	got, err := ledger.QueryByProject(ctx, "p-1", "")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestParseKind_ClosedEnum(t *testing.T) {
	for _, s := range []string{"plan", "forecast", "actual"} {
		k, err := payroll.ParseKind(s)
		require.NoError(t, err)
		assert.Equal(t, payroll.Kind(s), k)
	}
	_, err := payroll.ParseKind("projection")
	assert.ErrorIs(t, err, rubro.ErrValidation)
}
