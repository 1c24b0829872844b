package storage

import (
	"context"
	"testing"
	"time"

	"rankledger/internal/models"
	"rankledger/internal/util"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	march = models.PeriodOf(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	april = models.PeriodOf(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	t1    = time.Date(2025, 3, 2, 7, 0, 0, 0, time.UTC)
	t2    = time.Date(2025, 4, 2, 7, 0, 0, 0, time.UTC)
)

func entity(name string, rank int, score string, period models.Period) models.Entity {
	e := models.Entity{Name: name, Rank: rank, Location: "Somewhere", Period: period}
	if score != "" {
		e.Score = decimal.NewNullDecimal(decimal.RequireFromString(score))
	}
	return e
}

func stage(t *testing.T, s Store, period models.Period, batches ...[]models.Entity) Staging {
	t.Helper()
	ctx := context.Background()
	st, err := s.OpenStaging(ctx, uuid.NewString(), period)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Drop(context.Background()) })
	for _, b := range batches {
		require.NoError(t, st.Append(ctx, b))
	}
	return st
}

// runStoreContract exercises the behaviour every backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("history merge keeps latest row per name", func(t *testing.T) {
		s := newStore(t)
		st := stage(t, s, march,
			[]models.Entity{entity("Alpha", 1, "99.5", march), entity("Beta", 2, "", march)},
			[]models.Entity{entity("Alpha", 3, "87.125", march)},
		)
		res, err := st.Merge(ctx, models.PolicyHistory, t1)
		require.NoError(t, err)
		require.Equal(t, models.MergeResult{Attempted: 2, Committed: 2}, res)

		rows, err := s.Snapshot(ctx, models.PolicyHistory, march)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		require.Equal(t, "Beta", rows[0].Name)
		require.False(t, rows[0].Score.Valid)
		require.Equal(t, "Alpha", rows[1].Name)
		require.Equal(t, 3, rows[1].Rank)
		require.True(t, rows[1].Score.Decimal.Equal(decimal.RequireFromString("87.125")))
		require.True(t, rows[1].Period.Equal(march))
		require.True(t, rows[1].CreatedAt.Equal(t1))
		require.Nil(t, rows[1].UpdatedAt)
	})

	t.Run("empty staging is a no-op", func(t *testing.T) {
		s := newStore(t)
		st := stage(t, s, march)
		res, err := st.Merge(ctx, models.PolicyHistory, t1)
		require.NoError(t, err)
		require.Equal(t, models.MergeResult{}, res)
		captured, err := s.Captured(ctx, models.PolicyHistory, march)
		require.NoError(t, err)
		require.False(t, captured)
	})

	t.Run("history collision rolls back the whole merge", func(t *testing.T) {
		s := newStore(t)
		_, err := stage(t, s, march, []models.Entity{entity("Alpha", 1, "90", march)}).Merge(ctx, models.PolicyHistory, t1)
		require.NoError(t, err)

		st := stage(t, s, march, []models.Entity{entity("Gamma", 5, "70", march), entity("Alpha", 2, "80", march)})
		res, err := st.Merge(ctx, models.PolicyHistory, t2)
		require.ErrorIs(t, err, util.ErrConstraintViolation)
		require.Equal(t, models.MergeResult{Attempted: 2, Committed: 0}, res)

		rows, err := s.Snapshot(ctx, models.PolicyHistory, march)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		require.Equal(t, "Alpha", rows[0].Name)
		require.Equal(t, 1, rows[0].Rank)
	})

	t.Run("invalid row rolls back the whole merge", func(t *testing.T) {
		s := newStore(t)
		st := stage(t, s, march, []models.Entity{entity("Alpha", 1, "90", march), entity("Broken", -4, "", march)})
		res, err := st.Merge(ctx, models.PolicyHistory, t1)
		require.ErrorIs(t, err, util.ErrStorage)
		require.Equal(t, 0, res.Committed)
		require.Equal(t, 2, res.Attempted)

		rows, err := s.Snapshot(ctx, models.PolicyHistory, march)
		require.NoError(t, err)
		require.Empty(t, rows)
	})

	t.Run("current state upsert keeps created_at", func(t *testing.T) {
		s := newStore(t)
		_, err := stage(t, s, march, []models.Entity{entity("Alpha", 4, "80", march)}).Merge(ctx, models.PolicyCurrent, t1)
		require.NoError(t, err)

		res, err := stage(t, s, april, []models.Entity{entity("Alpha", 2, "85", april), entity("Beta", 9, "", april)}).Merge(ctx, models.PolicyCurrent, t2)
		require.NoError(t, err)
		require.Equal(t, models.MergeResult{Attempted: 2, Committed: 2}, res)

		rows, err := s.Snapshot(ctx, models.PolicyCurrent, models.Period{})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		alpha := rows[0]
		require.Equal(t, "Alpha", alpha.Name)
		require.Equal(t, 2, alpha.Rank)
		require.True(t, alpha.Period.Equal(april))
		require.True(t, alpha.CreatedAt.Equal(t1))
		require.NotNil(t, alpha.UpdatedAt)
		require.True(t, alpha.UpdatedAt.Equal(t2))
		require.Nil(t, rows[1].UpdatedAt)
	})

	t.Run("current state failure leaves prior rows untouched", func(t *testing.T) {
		s := newStore(t)
		_, err := stage(t, s, march, []models.Entity{entity("Alpha", 4, "80", march)}).Merge(ctx, models.PolicyCurrent, t1)
		require.NoError(t, err)
		before, err := s.Snapshot(ctx, models.PolicyCurrent, models.Period{})
		require.NoError(t, err)
		require.Len(t, before, 1)

		st := stage(t, s, april, []models.Entity{entity("Alpha", 2, "85", april), entity("Broken", -1, "", april)})
		res, err := st.Merge(ctx, models.PolicyCurrent, t2)
		require.ErrorIs(t, err, util.ErrStorage)
		require.Equal(t, models.MergeResult{Attempted: 2, Committed: 0}, res)

		after, err := s.Snapshot(ctx, models.PolicyCurrent, models.Period{})
		require.NoError(t, err)
		require.Empty(t, cmp.Diff(before, after))
		require.Equal(t, 4, after[0].Rank)
		require.True(t, after[0].Period.Equal(march))
		require.True(t, after[0].CreatedAt.Equal(t1))
		require.Nil(t, after[0].UpdatedAt)
	})

	t.Run("current state ignores older periods", func(t *testing.T) {
		s := newStore(t)
		_, err := stage(t, s, april, []models.Entity{entity("Alpha", 2, "85", april)}).Merge(ctx, models.PolicyCurrent, t2)
		require.NoError(t, err)

		res, err := stage(t, s, march, []models.Entity{entity("Alpha", 7, "60", march)}).Merge(ctx, models.PolicyCurrent, t2)
		require.NoError(t, err)
		require.Equal(t, 1, res.Attempted)
		require.Equal(t, 0, res.Committed)

		rows, err := s.Snapshot(ctx, models.PolicyCurrent, april)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		require.Equal(t, 2, rows[0].Rank)
	})

	t.Run("captured is per policy and period", func(t *testing.T) {
		s := newStore(t)
		_, err := stage(t, s, march, []models.Entity{entity("Alpha", 1, "", march)}).Merge(ctx, models.PolicyHistory, t1)
		require.NoError(t, err)

		got, err := s.Captured(ctx, models.PolicyHistory, march)
		require.NoError(t, err)
		require.True(t, got)
		got, err = s.Captured(ctx, models.PolicyHistory, april)
		require.NoError(t, err)
		require.False(t, got)
		got, err = s.Captured(ctx, models.PolicyCurrent, march)
		require.NoError(t, err)
		require.False(t, got)

		periods, err := s.Periods(ctx, models.PolicyHistory)
		require.NoError(t, err)
		require.Len(t, periods, 1)
		require.True(t, periods[0].Equal(march))
	})

	t.Run("staging is scoped to one period", func(t *testing.T) {
		s := newStore(t)
		st := stage(t, s, march)
		require.ErrorIs(t, st.Append(ctx, []models.Entity{entity("Alpha", 1, "", april)}), util.ErrStorage)

		require.NoError(t, st.Append(ctx, []models.Entity{entity("Beta", 2, "", models.Period{})}))
		res, err := st.Merge(ctx, models.PolicyHistory, t1)
		require.NoError(t, err)
		require.Equal(t, 1, res.Committed)

		rows, err := s.Snapshot(ctx, models.PolicyHistory, march)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		require.Equal(t, "Beta", rows[0].Name)
		require.True(t, rows[0].Period.Equal(march))
	})

	t.Run("staging tables are listed and dropped", func(t *testing.T) {
		s := newStore(t)
		st, err := s.OpenStaging(ctx, uuid.NewString(), march)
		require.NoError(t, err)

		names, err := s.StagingTables(ctx)
		require.NoError(t, err)
		require.Contains(t, names, st.Name())

		require.NoError(t, st.Drop(ctx))
		require.NoError(t, st.Drop(ctx))
		require.ErrorIs(t, st.Append(ctx, []models.Entity{entity("Alpha", 1, "", march)}), util.ErrStagingClosed)

		names, err = s.StagingTables(ctx)
		require.NoError(t, err)
		require.NotContains(t, names, st.Name())

		orphan, err := s.OpenStaging(ctx, uuid.NewString(), march)
		require.NoError(t, err)
		require.NoError(t, s.DropStaging(ctx, orphan.Name()))
		require.Error(t, s.DropStaging(ctx, "entity_snapshots"))
	})
}
