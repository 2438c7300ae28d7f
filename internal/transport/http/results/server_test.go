package resultshttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/Gfz-arka/MFE-5250/internal/store/model"
	"github.com/Gfz-arka/MFE-5250/internal/store/sqlite"
)

func seededServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	st, err := sqlite.NewSqliteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	for layer, id := range []string{"run-0", "run-1"} {
		require.NoError(t, st.Runs().Save(ctx, &model.RunModel{
			ID: id, BatchID: "batch-1", Layer: layer, Strategy: "factor_rebalance", Factor: "pe",
			Status: model.RunStatusDone, InitialCapital: 10000, FinalValue: 10100 + float64(layer),
			ConfigJSON: datatypes.JSON(`{"basket_size":2}`), CreatedAtUnix: 100,
		}))
		require.NoError(t, st.Equity().InsertBatch(ctx, []model.EquityPointModel{
			{RunID: id, Seq: 0, Date: "2020-01-30", Cash: 10000, Total: 10000, Equity: 1},
			{RunID: id, Seq: 1, Date: "2020-01-31", Cash: 5000, Total: 10100, Returns: 0.01, Equity: 1.01,
				HoldingsJSON: datatypes.JSON(`{"A":5100}`)},
		}))
	}
	require.NoError(t, st.Executions().InsertBatch(ctx, []model.ExecutionModel{
		{RunID: "run-0", Seq: 0, Date: "2020-01-31", Symbol: "A", Direction: "LONG", Side: "BUY", Quantity: 50, Price: 100, Commission: 5, SignalID: 1, OrderID: 1},
	}))

	cfg.Store = st
	srv, err := NewServer(cfg)
	require.NoError(t, err)
	return srv
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNewServerRequiresStore(t *testing.T) {
	_, err := NewServer(Config{})
	assert.Error(t, err)
}

func TestRunListAndDetail(t *testing.T) {
	srv := seededServer(t, Config{})
	assert.Equal(t, ":9991", srv.Addr())

	rec := get(t, srv, "/api/runs?batch=batch-1")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Runs []runView `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Runs, 2)
	assert.Equal(t, 0, list.Runs[0].Layer)
	assert.Equal(t, 1, list.Runs[1].Layer)

	rec = get(t, srv, "/api/runs/run-1")
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		Run runView `json:"run"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, 10101.0, detail.Run.FinalValue)
	assert.JSONEq(t, `{"basket_size":2}`, string(detail.Run.Config))
}

func TestRunNotFound(t *testing.T) {
	srv := seededServer(t, Config{})
	for _, path := range []string{"/api/runs/nope", "/api/runs/nope/equity", "/api/runs/nope/executions", "/report/nope"} {
		assert.Equal(t, http.StatusNotFound, get(t, srv, path).Code, path)
	}
}

func TestRunEquityAndExecutions(t *testing.T) {
	srv := seededServer(t, Config{})

	rec := get(t, srv, "/api/runs/run-0/equity")
	require.Equal(t, http.StatusOK, rec.Code)
	var eq struct {
		Equity []equityView `json:"equity"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &eq))
	require.Len(t, eq.Equity, 2)
	assert.Equal(t, 1.01, eq.Equity[1].Equity)
	assert.Equal(t, map[string]float64{"A": 5100}, eq.Equity[1].Holdings)

	rec = get(t, srv, "/api/runs/run-0/executions")
	require.Equal(t, http.StatusOK, rec.Code)
	var ex struct {
		Executions []executionView `json:"executions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ex))
	require.Len(t, ex.Executions, 1)
	assert.Equal(t, int64(50), ex.Executions[0].Quantity)

	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/runs/run-0/executions?limit=x").Code)
}

func TestReportRendersBatchLayers(t *testing.T) {
	srv := seededServer(t, Config{})
	rec := get(t, srv, "/report/run-0")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "layer 0")
	assert.Contains(t, rec.Body.String(), "layer 1")
}

func TestRateLimiterRejectsBurst(t *testing.T) {
	srv := seededServer(t, Config{RatePerSec: 0.001, Burst: 2})
	assert.Equal(t, http.StatusOK, get(t, srv, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(t, srv, "/healthz").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(t, srv, "/healthz").Code)
}

func TestStartStopsOnCancel(t *testing.T) {
	srv := seededServer(t, Config{Addr: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}
