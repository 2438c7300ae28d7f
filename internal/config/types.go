package config

import (
	"strings"
	"time"
)

// Config 是因子回测的主配置载体。
type Config struct {
	App      AppConfig      `toml:"app"`
	Data     DataConfig     `toml:"data"`
	Backtest BacktestConfig `toml:"backtest"`
	Report   ReportConfig   `toml:"report"`
	Store    StoreConfig    `toml:"store"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
	// HTTPAddr 为空时不启动结果 API
	HTTPAddr       string  `toml:"http_addr"`
	HTTPRatePerSec float64 `toml:"http_rate_per_sec"`
	HTTPBurst      int     `toml:"http_burst"`
}

// DataConfig 描述行情与因子的来源。
type DataConfig struct {
	Source       string   `toml:"source"`
	PriceDir     string   `toml:"price_dir"`
	FactorDir    string   `toml:"factor_dir"`
	CacheDir     string   `toml:"cache_dir"`
	UniversePath string   `toml:"universe_path"`
	Symbols      []string `toml:"symbols"`
	// WriteCache 为 true 时 csv 加载后回写 sqlite 缓存
	WriteCache bool `toml:"write_cache"`
}

const (
	DataSourceCSV    = "csv"
	DataSourceSQLite = "sqlite"
)

type BacktestConfig struct {
	Strategy       string  `toml:"strategy"`
	InitialCapital float64 `toml:"initial_capital"`
	BasketSize     int     `toml:"basket_size"`
	Factor         string  `toml:"factor"`
	Layers         int     `toml:"layers"`
	RunLayers      []int   `toml:"run_layers"`
	StartDate      string  `toml:"start_date"`
	HeartbeatMS    int     `toml:"heartbeat_ms"`
	// Commission < 0 表示使用分档佣金
	Commission  float64 `toml:"commission"`
	AllowShort  bool    `toml:"allow_short"`
	KeepOverlap bool    `toml:"keep_overlap"`
}

// Start 返回解析后的起始日期，未配置时为零值。
func (b BacktestConfig) Start() time.Time {
	s := strings.TrimSpace(b.StartDate)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (b BacktestConfig) Heartbeat() time.Duration {
	return time.Duration(b.HeartbeatMS) * time.Millisecond
}

type ReportConfig struct {
	OutputDir   string `toml:"output_dir"`
	HTML        bool   `toml:"html"`
	PNG         bool   `toml:"png"`
	StockSymbol string `toml:"stock_symbol"`
}

type StoreConfig struct {
	// ResultsPath 为空时不持久化运行结果
	ResultsPath string `toml:"results_path"`
}

// keySet 记录配置文件里显式出现过的键，用于区分“未配置”与“配置为零值”。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
