package config

import (
	"fmt"
	"strings"
	"time"
)

// validate 对配置进行基础校验，核心构造函数假定参数已合法。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Data.validate(); err != nil {
		return err
	}
	if err := c.Backtest.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(a.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("app.log_level 不支持: %s", a.LogLevel)
	}
	if a.HTTPRatePerSec < 0 {
		return fmt.Errorf("app.http_rate_per_sec must be >= 0")
	}
	return nil
}

func (d *DataConfig) validate() error {
	switch d.Source {
	case DataSourceCSV:
		if strings.TrimSpace(d.PriceDir) == "" {
			return fmt.Errorf("data.price_dir is required when data.source = csv")
		}
	case DataSourceSQLite:
		if strings.TrimSpace(d.CacheDir) == "" {
			return fmt.Errorf("data.cache_dir is required when data.source = sqlite")
		}
	default:
		return fmt.Errorf("data.source must be csv or sqlite, got %q", d.Source)
	}
	if len(d.Symbols) == 0 && strings.TrimSpace(d.UniversePath) == "" {
		return fmt.Errorf("data.symbols or data.universe_path is required")
	}
	return nil
}

func (b *BacktestConfig) validate() error {
	switch b.Strategy {
	case "factor_rebalance", "buy_and_hold":
	default:
		return fmt.Errorf("backtest.strategy must be factor_rebalance or buy_and_hold, got %q", b.Strategy)
	}
	if b.InitialCapital <= 0 {
		return fmt.Errorf("backtest.initial_capital must be > 0")
	}
	if b.BasketSize <= 0 {
		return fmt.Errorf("backtest.basket_size must be > 0")
	}
	if b.Layers <= 0 {
		return fmt.Errorf("backtest.layers must be > 0")
	}
	if b.Strategy == "factor_rebalance" {
		if b.Factor == "" {
			return fmt.Errorf("backtest.factor is required")
		}
		if b.BasketSize/b.Layers == 0 {
			return fmt.Errorf("backtest.basket_size (%d) must be >= backtest.layers (%d)", b.BasketSize, b.Layers)
		}
	}
	for _, l := range b.RunLayers {
		if l < 0 || l >= b.Layers {
			return fmt.Errorf("backtest.run_layers contains %d, must be within [0,%d)", l, b.Layers)
		}
	}
	if s := strings.TrimSpace(b.StartDate); s != "" {
		if _, err := time.Parse("2006-01-02", s); err != nil {
			return fmt.Errorf("backtest.start_date must be YYYY-MM-DD: %w", err)
		}
	}
	if b.HeartbeatMS < 0 {
		return fmt.Errorf("backtest.heartbeat_ms must be >= 0")
	}
	return nil
}
