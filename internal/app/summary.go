package app

import (
	"fmt"
	"strings"

	brcfg "github.com/Gfz-arka/MFE-5250/internal/config"
	cfgloader "github.com/Gfz-arka/MFE-5250/internal/config/loader"
)

type StartupSummary struct {
	Data     DataSummary
	Backtest BacktestSummary
	Outputs  OutputSummary
}

type DataSummary struct {
	Source   string
	Universe string
	Symbols  []string
}

type BacktestSummary struct {
	Strategy       string
	Factor         string
	BasketSize     int
	Layers         int
	RunLayers      []int
	InitialCapital float64
	Commission     string
	StartDate      string
	KeepOverlap    bool
}

type OutputSummary struct {
	ReportDir   string
	HTML        bool
	PNG         bool
	ResultsPath string
	HTTPAddr    string
}

func newStartupSummary(cfg *brcfg.Config, universe *cfgloader.UniverseLoader) *StartupSummary {
	s := &StartupSummary{
		Data: DataSummary{Source: cfg.Data.Source, Universe: "inline", Symbols: cfg.Data.Symbols},
		Backtest: BacktestSummary{
			Strategy:       cfg.Backtest.Strategy,
			Factor:         cfg.Backtest.Factor,
			BasketSize:     cfg.Backtest.BasketSize,
			Layers:         cfg.Backtest.Layers,
			RunLayers:      cfg.Backtest.RunLayers,
			InitialCapital: cfg.Backtest.InitialCapital,
			Commission:     "tiered",
			StartDate:      cfg.Backtest.StartDate,
			KeepOverlap:    cfg.Backtest.KeepOverlap,
		},
		Outputs: OutputSummary{
			ReportDir:   cfg.Report.OutputDir,
			HTML:        cfg.Report.HTML,
			PNG:         cfg.Report.PNG,
			ResultsPath: cfg.Store.ResultsPath,
			HTTPAddr:    cfg.App.HTTPAddr,
		},
	}
	if cfg.Backtest.Commission >= 0 {
		s.Backtest.Commission = fmt.Sprintf("fixed %.2f", cfg.Backtest.Commission)
	}
	if universe != nil {
		s.Data.Universe = universe.Path()
		s.Data.Symbols = universe.Symbols()
	}
	return s
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%*s\n", 40+len("启动配置摘要 (STARTUP SUMMARY)")/2, "启动配置摘要 (STARTUP SUMMARY)")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Println("[行情数据 (DATA)]")
	fmt.Printf("  数据源: %s\n", s.Data.Source)
	fmt.Printf("  股票池: %s (%d)\n", s.Data.Universe, len(s.Data.Symbols))
	fmt.Printf("  标的:   %s\n", formatList(s.Data.Symbols))
	fmt.Println()

	fmt.Println("[回测参数 (BACKTEST)]")
	fmt.Printf("  策略:     %s\n", s.Backtest.Strategy)
	fmt.Printf("  因子:     %s\n", s.Backtest.Factor)
	fmt.Printf("  持仓数:   %d  分层: %d  运行层: %s\n", s.Backtest.BasketSize, s.Backtest.Layers, formatLayers(s.Backtest.RunLayers))
	fmt.Printf("  初始资金: %.2f\n", s.Backtest.InitialCapital)
	fmt.Printf("  佣金:     %s\n", s.Backtest.Commission)
	fmt.Printf("  起始日期: %s\n", orDash(s.Backtest.StartDate))
	fmt.Printf("  保留重叠: %t\n", s.Backtest.KeepOverlap)
	fmt.Println()

	fmt.Println("[输出 (OUTPUTS)]")
	fmt.Printf("  报告目录: %s (html=%t png=%t)\n", s.Outputs.ReportDir, s.Outputs.HTML, s.Outputs.PNG)
	fmt.Printf("  结果库:   %s\n", orDash(s.Outputs.ResultsPath))
	fmt.Printf("  HTTP:     %s\n", orDash(s.Outputs.HTTPAddr))
	fmt.Println(strings.Repeat("=", 80))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	const maxShown = 20
	if len(items) > maxShown {
		return strings.Join(items[:maxShown], ", ") + fmt.Sprintf(" ... (+%d)", len(items)-maxShown)
	}
	return strings.Join(items, ", ")
}

func formatLayers(layers []int) string {
	if len(layers) == 0 {
		return "all"
	}
	parts := make([]string, len(layers))
	for i, l := range layers {
		parts[i] = fmt.Sprint(l)
	}
	return strings.Join(parts, ",")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
