package retention

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sangege/redeembot/redeembot/database"
	"github.com/sangege/redeembot/redeembot/database/repositories"
)

func newTestEngine(t *testing.T) (*Engine, repositories.ClaimRepository) {
	t.Helper()

	db, err := database.New(context.Background(), database.Config{
		Path: filepath.Join(t.TempDir(), "test.sqlite"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitializeSchema(context.Background()))

	claims := repositories.NewClaimRepository(db.BunDB())
	return NewEngine(db, claims), claims
}

func seedMonth(t *testing.T, claims repositories.ClaimRepository, year int, month time.Month, rows int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < rows; i++ {
		at := time.Date(year, month, 1+i%27, 12, 0, 0, 0, time.UTC)
		_, err := claims.Record(ctx, fmt.Sprintf("acc%d", i), fmt.Sprintf("%d", i), "CODE", at)
		require.NoError(t, err)
	}
}

func TestPurgeDeletesOldestMonthsFirst(t *testing.T) {
	engine, claims := newTestEngine(t)
	ctx := context.Background()

	seedMonth(t, claims, 2023, time.November, 40)
	seedMonth(t, claims, 2023, time.December, 30)
	seedMonth(t, claims, 2024, time.January, 20)

	// Target zero: nothing fits, so every month goes, oldest first.
	report, err := engine.Purge(ctx, 0)
	require.NoError(t, err)

	require.Len(t, report.Deleted, 3)
	assert.Equal(t, MonthRange{Year: 2023, Month: time.November, Rows: 40}, report.Deleted[0])
	assert.Equal(t, MonthRange{Year: 2023, Month: time.December, Rows: 30}, report.Deleted[1])
	assert.Equal(t, MonthRange{Year: 2024, Month: time.January, Rows: 20}, report.Deleted[2])

	_, _, ok, err := claims.OldestClaimMonth(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "ledger should be empty")
}

func TestPurgeStopsAtTarget(t *testing.T) {
	engine, claims := newTestEngine(t)
	ctx := context.Background()

	seedMonth(t, claims, 2023, time.November, 500)
	seedMonth(t, claims, 2024, time.January, 5)

	// Fold the fresh rows from the WAL into the main file so Size sees them.
	require.NoError(t, engine.db.Vacuum(ctx))
	initial, err := engine.db.Size()
	require.NoError(t, err)

	// A target just under the current size only needs the big month gone.
	report, err := engine.Purge(ctx, initial-1)
	require.NoError(t, err)

	require.Len(t, report.Deleted, 1)
	assert.Equal(t, MonthRange{Year: 2023, Month: time.November, Rows: 500}, report.Deleted[0])
	assert.LessOrEqual(t, report.FinalBytes, initial-1)

	history, err := claims.HistoryByPlayer(ctx, "0")
	require.NoError(t, err)
	assert.NotEmpty(t, history, "the newest month survives")
}

func TestPurgeNoopWhenUnderTarget(t *testing.T) {
	engine, claims := newTestEngine(t)
	ctx := context.Background()

	seedMonth(t, claims, 2024, time.January, 10)

	report, err := engine.Purge(ctx, 1<<30)
	require.NoError(t, err)
	assert.Empty(t, report.Deleted)
	assert.Equal(t, report.InitialBytes, report.FinalBytes)

	history, err := claims.HistoryByPlayer(ctx, "0")
	require.NoError(t, err)
	assert.NotEmpty(t, history, "nothing is deleted below the target")
}

func TestPurgeEmptyLedger(t *testing.T) {
	engine, _ := newTestEngine(t)

	report, err := engine.Purge(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, report.Deleted)
}
