package local

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-ai/finsight/data"
)

func TestProviderDeterminism(t *testing.T) {
	ctx := context.Background()
	spec := data.QuerySpec{View: ViewLoans, Limit: 25}

	first, err := New().Query(ctx, spec)
	require.NoError(t, err)
	second, err := New().Query(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 25)
}

func TestProviderQuery(t *testing.T) {
	ctx := context.Background()
	p := New()

	t.Run("unknown view", func(t *testing.T) {
		_, err := p.Query(ctx, data.QuerySpec{View: "branches"})
		assert.Error(t, err)
	})

	t.Run("equality filter", func(t *testing.T) {
		records, err := p.Query(ctx, data.QuerySpec{
			View:    ViewLoans,
			Filters: []data.Filter{{Field: "status", Op: "=", Value: "default"}},
		})
		require.NoError(t, err)
		require.NotEmpty(t, records)
		for _, r := range records {
			assert.Equal(t, "default", r["status"])
		}
	})

	t.Run("numeric filter", func(t *testing.T) {
		records, err := p.Query(ctx, data.QuerySpec{
			View:    ViewCustomers,
			Filters: []data.Filter{{Field: "churn_risk", Op: ">=", Value: 0.7}},
		})
		require.NoError(t, err)
		require.NotEmpty(t, records)
		for _, r := range records {
			assert.GreaterOrEqual(t, r["churn_risk"].(float64), 0.7)
		}
	})

	t.Run("metrics without grouping yield one record", func(t *testing.T) {
		records, err := p.Query(ctx, data.QuerySpec{
			View:    ViewDeposits,
			Metrics: []string{"count", "sum", "average"},
		})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, 400, records[0]["total_count"])
		assert.Greater(t, records[0]["total_amount"].(float64), 0.0)
		assert.Greater(t, records[0]["average_amount"].(float64), 0.0)
	})

	t.Run("grouped aggregation is sorted by group key", func(t *testing.T) {
		records, err := p.Query(ctx, data.QuerySpec{
			View:    ViewLoans,
			Metrics: []string{"count", "default_rate"},
			GroupBy: []string{"loan_type"},
		})
		require.NoError(t, err)
		require.NotEmpty(t, records)
		prev := ""
		total := 0
		for _, r := range records {
			key := r["loan_type"].(string)
			assert.GreaterOrEqual(t, key, prev)
			prev = key
			total += r["total_count"].(int)
			assert.Contains(t, r, "default_rate")
		}
		assert.Equal(t, 300, total)
	})

	t.Run("limit caps raw results", func(t *testing.T) {
		records, err := p.Query(ctx, data.QuerySpec{View: ViewTransactions, Limit: 10})
		require.NoError(t, err)
		assert.Len(t, records, 10)
	})

	t.Run("time range filter", func(t *testing.T) {
		all, err := p.Query(ctx, data.QuerySpec{View: ViewTransactions})
		require.NoError(t, err)
		windowed, err := p.Query(ctx, data.QuerySpec{
			View:      ViewTransactions,
			TimeRange: &data.TimeRange{Start: "2024-06-01", End: "2024-12-31"},
		})
		require.NoError(t, err)
		assert.Less(t, len(windowed), len(all))
		for _, r := range windowed {
			date := r["date"].(string)
			assert.GreaterOrEqual(t, date, "2024-06-01")
			assert.LessOrEqual(t, date, "2024-12-31")
		}
	})
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 0.13, round2(0.125))
	assert.Equal(t, 2.34, round2(2.344))
	assert.Equal(t, 0.0, round2(0))
	// Negative amounts round away from zero, not toward it.
	assert.Equal(t, -0.13, round2(-0.125))
	assert.Equal(t, -2.34, round2(-2.344))
}

func TestProviderViews(t *testing.T) {
	assert.Equal(t,
		[]string{ViewCustomers, ViewLoans, ViewDeposits, ViewTransactions},
		New().Views())
}
