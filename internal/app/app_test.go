package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	brcfg "github.com/Gfz-arka/MFE-5250/internal/config"
)

var testDates = []string{"2020-01-30", "2020-01-31", "2020-02-03", "2020-02-28", "2020-03-02", "2020-03-03"}

// writeMarketData 生成三只股票的行情与因子文件：一月因子 A>B>C，二月 C>B>A。
func writeMarketData(t *testing.T, root string) (string, string) {
	t.Helper()
	priceDir := filepath.Join(root, "prices")
	factorDir := filepath.Join(root, "factors")
	require.NoError(t, os.MkdirAll(priceDir, 0o755))
	require.NoError(t, os.MkdirAll(factorDir, 0o755))
	prices := map[string]float64{"A": 100, "B": 200, "C": 350}
	factors := map[string][2]float64{"A": {5, 1}, "B": {3, 2}, "C": {1, 9}}
	for sym, px := range prices {
		var pb, fb strings.Builder
		pb.WriteString("date,open,high,low,close\n")
		fb.WriteString("date,pe\n")
		for _, d := range testDates {
			fmt.Fprintf(&pb, "%s,%g,%g,%g,%g\n", d, px, px, px, px)
			f := factors[sym][0]
			if !strings.HasPrefix(d, "2020-01") {
				f = factors[sym][1]
			}
			fmt.Fprintf(&fb, "%s,%g\n", d, f)
		}
		require.NoError(t, os.WriteFile(filepath.Join(priceDir, sym+".csv"), []byte(pb.String()), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(factorDir, sym+".csv"), []byte(fb.String()), 0o644))
	}
	return priceDir, factorDir
}

func testConfig(t *testing.T) *brcfg.Config {
	t.Helper()
	root := t.TempDir()
	priceDir, factorDir := writeMarketData(t, root)
	return &brcfg.Config{
		App: brcfg.AppConfig{Env: "test", LogLevel: "error"},
		Data: brcfg.DataConfig{
			Source:    brcfg.DataSourceCSV,
			PriceDir:  priceDir,
			FactorDir: factorDir,
			CacheDir:  filepath.Join(root, "cache"),
			Symbols:   []string{"A", "B", "C"},
		},
		Backtest: brcfg.BacktestConfig{
			Strategy:       "factor_rebalance",
			InitialCapital: 10000,
			BasketSize:     2,
			Factor:         "pe",
			Layers:         1,
			Commission:     -1,
		},
		Report: brcfg.ReportConfig{OutputDir: filepath.Join(root, "out"), HTML: true},
		Store:  brcfg.StoreConfig{ResultsPath: filepath.Join(root, "runs.db")},
	}
}

func TestRunOncePersistsAndReports(t *testing.T) {
	cfg := testConfig(t)
	a, err := NewAppBuilder(cfg).Build(context.Background())
	require.NoError(t, err)
	defer a.Close()

	out, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Len(t, out.RunIDs, 1)
	assert.NotEmpty(t, out.BatchID)

	res := out.Results[0]
	assert.Equal(t, 2, res.Counters.Ticks)
	assert.Positive(t, res.Counters.Fills)
	assert.Contains(t, out.Files, filepath.Join(cfg.Report.OutputDir, "equity_layer0.csv"))
	assert.Contains(t, out.Files, filepath.Join(cfg.Report.OutputDir, "factor_layers.html"))

	runs, err := a.store.Runs().ListByBatch(context.Background(), out.BatchID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "pe", runs[0].Factor)

	assert.Contains(t, FormatOutcome(out), out.BatchID)
}

func TestRunOnceWritesAndReplaysCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.Data.WriteCache = true
	cfg.Store.ResultsPath = ""
	cfg.Report.HTML = false
	a, err := NewAppBuilder(cfg).Build(context.Background())
	require.NoError(t, err)
	first, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	a.Close()
	assert.Empty(t, first.RunIDs)

	cfg.Data.WriteCache = false
	cfg.Data.Source = brcfg.DataSourceSQLite
	b, err := NewAppBuilder(cfg).Build(context.Background())
	require.NoError(t, err)
	defer b.Close()
	second, err := b.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, second.Results, 1)
	assert.Equal(t, first.Results[0].Summary, second.Results[0].Summary)
	assert.Equal(t, first.Results[0].Executions, second.Results[0].Executions)
}

func TestSymbolsFromUniverseManifest(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "universe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("symbols: [C, A]\n"), 0o644))
	cfg.Data.UniversePath = path
	cfg.Store.ResultsPath = ""

	a, err := NewAppBuilder(cfg).Build(context.Background())
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, []string{"C", "A"}, a.Symbols())
	assert.Equal(t, path, a.Summary.Data.Universe)
}

func TestServeModeRequiresStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.App.HTTPAddr = "127.0.0.1:0"
	cfg.Store.ResultsPath = ""
	_, err := NewAppBuilder(cfg).Build(context.Background())
	assert.Error(t, err)
}

func TestRunnerConfigMapping(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backtest.RunLayers = []int{0}
	cfg.Backtest.KeepOverlap = true
	cfg.Backtest.HeartbeatMS = 3
	rc := NewPipeline(cfg, nil, nil, nil).RunnerConfig()
	assert.Equal(t, "pe", rc.Factor)
	assert.Equal(t, []int{0}, rc.RunLayers)
	assert.True(t, rc.KeepOverlap)
	assert.Equal(t, -1.0, rc.Commission)
	assert.Equal(t, "3ms", rc.Heartbeat.String())
}

func TestExecuteRejectsEmptyUniverse(t *testing.T) {
	_, err := NewPipeline(testConfig(t), nil, nil, nil).Execute(context.Background(), nil)
	assert.Error(t, err)
}
