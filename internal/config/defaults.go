package config

import (
	"strings"
)

// 默认值常量
const (
	defaultAppEnv          = "dev"
	defaultAppLogLevel     = "info"
	defaultHTTPRatePerSec  = 20
	defaultHTTPBurst       = 40
	defaultDataSource      = DataSourceCSV
	defaultPriceDir        = "data/prices"
	defaultFactorDir       = "data/factors"
	defaultCacheDir        = "data/cache"
	defaultStrategy        = "factor_rebalance"
	defaultInitialCapital  = 100000
	defaultBasketSize      = 10
	defaultFactor          = "close"
	defaultLayers          = 1
	defaultCommission      = -1
	defaultReportOutputDir = "results"
	defaultResultsPath     = "results/runs.db"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Data.applyDefaults(keys)
	c.Backtest.applyDefaults(keys)
	c.Report.applyDefaults(keys)
	c.Store.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		fieldDefault{
			key:   "app.http_rate_per_sec",
			need:  func() bool { return a.HTTPRatePerSec == 0 },
			apply: func() { a.HTTPRatePerSec = defaultHTTPRatePerSec },
		},
		fieldDefault{
			key:   "app.http_burst",
			need:  func() bool { return a.HTTPBurst <= 0 },
			apply: func() { a.HTTPBurst = defaultHTTPBurst },
		},
	)
}

func (d *DataConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("data.source", &d.Source, defaultDataSource),
		stringFieldDefault("data.price_dir", &d.PriceDir, defaultPriceDir),
		stringFieldDefault("data.factor_dir", &d.FactorDir, defaultFactorDir),
		stringFieldDefault("data.cache_dir", &d.CacheDir, defaultCacheDir),
	)
	d.Source = strings.ToLower(strings.TrimSpace(d.Source))
	d.Symbols = normalizeSymbols(d.Symbols)
}

func (b *BacktestConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("backtest.strategy", &b.Strategy, defaultStrategy),
		stringFieldDefault("backtest.factor", &b.Factor, defaultFactor),
		fieldDefault{
			key:   "backtest.initial_capital",
			need:  func() bool { return b.InitialCapital == 0 },
			apply: func() { b.InitialCapital = defaultInitialCapital },
		},
		fieldDefault{
			key:   "backtest.basket_size",
			need:  func() bool { return b.BasketSize == 0 },
			apply: func() { b.BasketSize = defaultBasketSize },
		},
		fieldDefault{
			key:   "backtest.layers",
			need:  func() bool { return b.Layers == 0 },
			apply: func() { b.Layers = defaultLayers },
		},
		// 未配置佣金时走分档，显式写 0 则为零佣金
		fieldDefault{
			key:   "backtest.commission",
			apply: func() { b.Commission = defaultCommission },
		},
	)
	b.Strategy = strings.ToLower(strings.TrimSpace(b.Strategy))
	b.Factor = strings.TrimSpace(b.Factor)
}

func (r *ReportConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("report.output_dir", &r.OutputDir, defaultReportOutputDir),
		boolFieldDefault("report.html", &r.HTML, true),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.results_path", &s.ResultsPath, defaultResultsPath),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func normalizeSymbols(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, sym := range in {
		sym = strings.TrimSpace(sym)
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
