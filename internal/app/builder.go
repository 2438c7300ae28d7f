package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gfz-arka/MFE-5250/internal/backtest"
	brcfg "github.com/Gfz-arka/MFE-5250/internal/config"
	cfgloader "github.com/Gfz-arka/MFE-5250/internal/config/loader"
	"github.com/Gfz-arka/MFE-5250/internal/market"
	"github.com/Gfz-arka/MFE-5250/internal/report"
	"github.com/Gfz-arka/MFE-5250/internal/store"
	"github.com/Gfz-arka/MFE-5250/internal/store/sqlite"
	resultshttp "github.com/Gfz-arka/MFE-5250/internal/transport/http/results"
)

// AppBuilder 按配置组装各组件，各构造步骤可在测试中替换。
type AppBuilder struct {
	cfg *brcfg.Config

	universeFn func(brcfg.DataConfig, bool) (*cfgloader.UniverseLoader, error)
	storeFn    func(brcfg.StoreConfig) (store.Store, error)
	cacheFn    func(brcfg.DataConfig) (*market.Cache, error)
	httpFn     func(brcfg.AppConfig, store.Store) (*resultshttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

// WithStore 使用给定的结果存储，跳过按配置打开 sqlite。
func WithStore(s store.Store) AppBuilderOption {
	return func(b *AppBuilder) {
		b.storeFn = func(brcfg.StoreConfig) (store.Store, error) { return s, nil }
	}
}

func NewAppBuilder(cfg *brcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		universeFn: buildUniverse,
		storeFn:    buildStore,
		cacheFn:    buildCache,
		httpFn:     buildResultsHTTP,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg

	serve := strings.TrimSpace(cfg.App.HTTPAddr) != ""
	universe, err := b.universeFn(cfg.Data, serve)
	if err != nil {
		return nil, err
	}
	results, err := b.storeFn(cfg.Store)
	if err != nil {
		return nil, err
	}
	cache, err := b.cacheFn(cfg.Data)
	if err != nil {
		closeQuietly(results)
		return nil, err
	}

	var recorder *backtest.ResultRecorder
	if results != nil {
		recorder = backtest.NewResultRecorder(results)
	}
	writer := report.NewWriter(report.Options{
		Dir:         cfg.Report.OutputDir,
		HTML:        cfg.Report.HTML,
		PNG:         cfg.Report.PNG,
		StockSymbol: cfg.Report.StockSymbol,
	})

	var server *resultshttp.Server
	if serve {
		if results == nil {
			return nil, fmt.Errorf("app.http_addr 需要 store.results_path")
		}
		server, err = b.httpFn(cfg.App, results)
		if err != nil {
			closeQuietly(results)
			return nil, err
		}
	}

	return &App{
		cfg:      cfg,
		universe: universe,
		store:    results,
		cache:    cache,
		pipeline: NewPipeline(cfg, cache, recorder, writer),
		server:   server,
		Summary:  newStartupSummary(cfg, universe),
	}, nil
}

func buildUniverse(cfg brcfg.DataConfig, watch bool) (*cfgloader.UniverseLoader, error) {
	if strings.TrimSpace(cfg.UniversePath) == "" {
		return nil, nil
	}
	return cfgloader.NewUniverseLoader(cfg.UniversePath, watch)
}

func buildStore(cfg brcfg.StoreConfig) (store.Store, error) {
	if strings.TrimSpace(cfg.ResultsPath) == "" {
		return nil, nil
	}
	s, err := sqlite.NewSqliteStore(cfg.ResultsPath)
	if err != nil {
		return nil, fmt.Errorf("打开结果库失败: %w", err)
	}
	return s, nil
}

func buildCache(cfg brcfg.DataConfig) (*market.Cache, error) {
	if cfg.Source != brcfg.DataSourceSQLite && !cfg.WriteCache {
		return nil, nil
	}
	return market.NewCache(cfg.CacheDir)
}

func buildResultsHTTP(cfg brcfg.AppConfig, s store.Store) (*resultshttp.Server, error) {
	return resultshttp.NewServer(resultshttp.Config{
		Addr:       cfg.HTTPAddr,
		Store:      s,
		RatePerSec: cfg.HTTPRatePerSec,
		Burst:      cfg.HTTPBurst,
	})
}

func closeQuietly(s store.Store) {
	if s != nil {
		_ = s.Close()
	}
}
