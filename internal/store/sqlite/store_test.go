package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Gfz-arka/MFE-5250/internal/store/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func openTestStore(t *testing.T) *SqliteStore {
	t.Helper()
	s, err := NewSqliteStore(filepath.Join(t.TempDir(), "results", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRunRoundTripAndUpsert(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	run := &model.RunModel{
		ID: "r1", BatchID: "b1", Layer: 0, Strategy: "factor_rebalance", Factor: "pe",
		Status: model.RunStatusRunning, InitialCapital: 1000,
		ConfigJSON: datatypes.JSON(`{"basket_size":2}`), CreatedAtUnix: 10,
	}
	require.NoError(t, s.Runs().Save(ctx, run))

	run.Status = model.RunStatusDone
	run.FinalValue = 1100
	require.NoError(t, s.Runs().Save(ctx, run))

	got, err := s.Runs().FindByID(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.RunStatusDone, got.Status)
	assert.Equal(t, 1100.0, got.FinalValue)
	assert.JSONEq(t, `{"basket_size":2}`, string(got.ConfigJSON))

	missing, err := s.Runs().FindByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListByBatchOrdersLayers(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	for _, r := range []model.RunModel{
		{ID: "b", BatchID: "x", Layer: 1, CreatedAtUnix: 1},
		{ID: "a", BatchID: "x", Layer: 0, CreatedAtUnix: 1},
		{ID: "c", BatchID: "y", Layer: 0, CreatedAtUnix: 2},
	} {
		require.NoError(t, s.Runs().Save(ctx, &r))
	}
	runs, err := s.Runs().ListByBatch(ctx, "x")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "a", runs[0].ID)

	recent, err := s.Runs().ListRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "c", recent[0].ID)
}

func TestUnitOfWorkRollback(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	uow, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.Runs().Save(ctx, &model.RunModel{ID: "tx"}))
	require.NoError(t, uow.Equity().InsertBatch(ctx, []model.EquityPointModel{{RunID: "tx", Seq: 0, Total: 1}}))
	require.NoError(t, uow.Rollback())

	got, err := s.Runs().FindByID(ctx, "tx")
	require.NoError(t, err)
	assert.Nil(t, got)
	points, err := s.Equity().ListByRun(ctx, "tx")
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestSeriesOrderedBySeq(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	uow, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.Equity().InsertBatch(ctx, []model.EquityPointModel{
		{RunID: "r", Seq: 1, Date: "2020-02-28", Total: 2},
		{RunID: "r", Seq: 0, Date: "2020-01-31", Total: 1},
	}))
	require.NoError(t, uow.Executions().InsertBatch(ctx, []model.ExecutionModel{
		{RunID: "r", Seq: 0, Symbol: "A", Quantity: 10},
		{RunID: "r", Seq: 1, Symbol: "B", Quantity: 20},
	}))
	require.NoError(t, uow.Commit())

	points, err := s.Equity().ListByRun(ctx, "r")
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "2020-01-31", points[0].Date)

	rows, err := s.Executions().ListByRun(ctx, "r", 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "A", rows[0].Symbol)
	assert.Empty(t, mustList(t, s, "other"))
}

func mustList(t *testing.T, s *SqliteStore, runID string) []model.ExecutionModel {
	t.Helper()
	rows, err := s.Executions().ListByRun(context.Background(), runID, 0)
	require.NoError(t, err)
	return rows
}
