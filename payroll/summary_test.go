package payroll_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finz/forecast-engine/allocation"
	"github.com/finz/forecast-engine/docstore"
	"github.com/finz/forecast-engine/payroll"
	"github.com/finz/forecast-engine/rubro"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func putAllocation(t *testing.T, store docstore.Store, projectID, id string, doc map[string]any) {
	t.Helper()
	item := docstore.Item{
		Key: docstore.Key{
			PartitionID: rubro.PartitionKey(rubro.ProjectID(projectID)),
			SortID:      allocation.SortPrefix + id,
		},
		Doc: doc,
	}
	require.NoError(t, store.Put(context.Background(), item, docstore.Unconditional))
}

func TestSummarize_PlanAndActual(t *testing.T) {
	// GIVEN: One period with plan 10000 and actual 7500, no allocations
	// WHEN: Summarizing
	// THEN: One row with planMOD=10000, actualMOD=7500 and labor share 1

	ctx := context.Background()
	ledger := payroll.NewLedger(docstore.NewMemory())

	_, err := ledger.Put(ctx, entry("2026-01", payroll.KindPlan, 10000))
	require.NoError(t, err)
	_, err = ledger.Put(ctx, entry("2026-01", payroll.KindActual, 7500))
	require.NoError(t, err)

	rows, err := ledger.Summarize(ctx, "p-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "2026-01", row.Period)
	assert.True(t, row.PlanMOD.Equal(d(10000)), "planMOD: %s", row.PlanMOD)
	assert.True(t, row.ActualMOD.Equal(d(7500)), "actualMOD: %s", row.ActualMOD)
	assert.True(t, row.TotalPlan.Equal(d(10000)))
	assert.True(t, row.TotalActual.Equal(d(7500)))

	// No indirect costs: all labor.
	assert.True(t, row.LaborSharePlan.Equal(d(1)), "share: %s", row.LaborSharePlan)
	assert.True(t, row.LaborShareActual.Equal(d(1)))
}

func TestSummarize_MergesIndirectCosts(t *testing.T) {
	// GIVEN: Payroll plan 7500 and an allocation with plan 2500 in the
	//        same period
	// WHEN: Summarizing
	// THEN: totalPlan=10000 and laborSharePlan=0.75

	ctx := context.Background()
	store := docstore.NewMemory()
	ledger := payroll.NewLedger(store)

	_, err := ledger.Put(ctx, entry("2026-01", payroll.KindPlan, 7500))
	require.NoError(t, err)
	putAllocation(t, store, "p-1", "a1", map[string]any{
		"id": "a1", "period": "2026-01", "plan": "2500", "actual": "1000",
	})

	rows, err := ledger.Summarize(ctx, "p-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.True(t, row.IndirectPlan.Equal(d(2500)))
	assert.True(t, row.TotalPlan.Equal(d(10000)))
	assert.True(t, row.LaborSharePlan.Equal(d(0.75)), "share: %s", row.LaborSharePlan)
}

func TestSummarize_UnionsPeriodKeys(t *testing.T) {
	// A period with only allocation data still produces a row, and
	// vice versa; rows come back sorted ascending.
	ctx := context.Background()
	store := docstore.NewMemory()
	ledger := payroll.NewLedger(store)

	_, err := ledger.Put(ctx, entry("2026-02", payroll.KindPlan, 500))
	require.NoError(t, err)
	putAllocation(t, store, "p-1", "a1", map[string]any{
		"id": "a1", "period": "2026-01", "plan": "300",
	})

	rows, err := ledger.Summarize(ctx, "p-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "2026-01", rows[0].Period)
	assert.True(t, rows[0].PlanMOD.IsZero())
	assert.True(t, rows[0].IndirectPlan.Equal(d(300)))
	assert.True(t, rows[0].LaborSharePlan.IsZero())

	assert.Equal(t, "2026-02", rows[1].Period)
	assert.True(t, rows[1].PlanMOD.Equal(d(500)))
}

func TestAggregateByStartMonth(t *testing.T) {
	// GIVEN: Two projects starting the same month and one a month later
	// WHEN: Aggregating the dashboard
	// THEN: Buckets sum member payroll and derive payrollTarget=plan*1.10

	ctx := context.Background()
	store := docstore.NewMemory()
	ledger := payroll.NewLedger(store)

	save := func(id string, start string) {
		require.NoError(t, rubro.SaveProject(ctx, store, rubro.Project{
			ID:        rubro.ProjectID(id),
			StartDate: mustDate(t, start),
		}))
	}
	save("p-1", "2026-01-01")
	save("p-2", "2026-01-01")
	save("p-3", "2026-02-01")

	put := func(project string, kind payroll.Kind, amount float64) {
		e := entry("2026-01", kind, amount)
		e.ProjectID = rubro.ProjectID(project)
		_, err := ledger.Put(ctx, e)
		require.NoError(t, err)
	}
	put("p-1", payroll.KindPlan, 1000)
	put("p-2", payroll.KindPlan, 500)
	put("p-2", payroll.KindActual, 400)
	put("p-3", payroll.KindForecast, 200)

	buckets, err := ledger.AggregateByStartMonth(ctx)
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	jan := buckets[0]
	assert.Equal(t, "2026-01", jan.Month)
	assert.Equal(t, 2, jan.Projects)
	assert.True(t, jan.Plan.Equal(d(1500)))
	assert.True(t, jan.Actual.Equal(d(400)))
	require.NotNil(t, jan.PayrollTarget)
	assert.True(t, jan.PayrollTarget.Equal(d(1650)), "target: %s", jan.PayrollTarget)

	feb := buckets[1]
	assert.Equal(t, "2026-02", feb.Month)
	assert.True(t, feb.Forecast.Equal(d(200)))
	assert.Nil(t, feb.PayrollTarget, "no target without a positive plan")
}
