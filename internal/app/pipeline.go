package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gfz-arka/MFE-5250/internal/backtest"
	brcfg "github.com/Gfz-arka/MFE-5250/internal/config"
	"github.com/Gfz-arka/MFE-5250/internal/logger"
	"github.com/Gfz-arka/MFE-5250/internal/market"
	"github.com/Gfz-arka/MFE-5250/internal/report"
)

// Outcome 是一次完整回测（全部分层）的产物。
type Outcome struct {
	BatchID string
	RunIDs  []string
	Results []*backtest.LayerResult
	Files   []string
}

// Pipeline 串起 加载行情 → 分层回测 → 持久化 → 报告。
type Pipeline struct {
	cfg      *brcfg.Config
	cache    *market.Cache
	recorder *backtest.ResultRecorder
	writer   *report.Writer
}

func NewPipeline(cfg *brcfg.Config, cache *market.Cache, recorder *backtest.ResultRecorder, writer *report.Writer) *Pipeline {
	return &Pipeline{cfg: cfg, cache: cache, recorder: recorder, writer: writer}
}

// RunnerConfig 把配置映射为回测参数。
func (p *Pipeline) RunnerConfig() backtest.RunnerConfig {
	bt := p.cfg.Backtest
	return backtest.RunnerConfig{
		Strategy:       bt.Strategy,
		Factor:         bt.Factor,
		BasketSize:     bt.BasketSize,
		Layers:         bt.Layers,
		KeepOverlap:    bt.KeepOverlap,
		InitialCapital: bt.InitialCapital,
		Commission:     bt.Commission,
		AllowShort:     bt.AllowShort,
		Start:          bt.Start(),
		Heartbeat:      bt.Heartbeat(),
		RunLayers:      append([]int(nil), bt.RunLayers...),
	}
}

// LoadTable 按配置的数据源加载行情表。
func (p *Pipeline) LoadTable(ctx context.Context, symbols []string) (*market.Table, error) {
	data := p.cfg.Data
	bt := p.cfg.Backtest
	switch data.Source {
	case brcfg.DataSourceSQLite:
		if p.cache == nil {
			return nil, fmt.Errorf("data.source = sqlite 但缓存未初始化")
		}
		return p.cache.LoadTable(ctx, symbols, bt.Factor, bt.Start())
	default:
		table, err := market.LoadCSV(market.LoadOptions{
			PriceDir:  data.PriceDir,
			FactorDir: data.FactorDir,
			Symbols:   symbols,
			Factor:    bt.Factor,
			Start:     bt.Start(),
		})
		if err != nil {
			return nil, err
		}
		if data.WriteCache && p.cache != nil {
			if err := p.cache.SaveTable(ctx, table); err != nil {
				return nil, fmt.Errorf("写入行情缓存失败: %w", err)
			}
			logger.Infof("[app] 行情已写入缓存 %s", data.CacheDir)
		}
		return table, nil
	}
}

// Execute 对给定股票池跑完全部分层。回测出错时，已完成的分层照常持久化，失败层记为 failed。
func (p *Pipeline) Execute(ctx context.Context, symbols []string) (*Outcome, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("股票池为空")
	}
	table, err := p.LoadTable(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("加载行情失败: %w", err)
	}
	first, last := table.Range()
	logger.Infof("[app] 行情已加载: %d 个标的, %s ~ %s", len(symbols), first.Format(market.DateLayout), last.Format(market.DateLayout))

	runner := backtest.NewRunner(table, p.RunnerConfig())
	out := &Outcome{BatchID: backtest.NewBatchID()}
	results, runErr := runner.Run(ctx)
	out.Results = results

	if p.recorder != nil {
		for _, res := range results {
			id, err := p.recorder.Record(ctx, out.BatchID, runner.Config(), res)
			if err != nil {
				return out, fmt.Errorf("保存回测结果失败: %w", err)
			}
			out.RunIDs = append(out.RunIDs, id)
		}
		if runErr != nil {
			layers := runner.LayerIndexes()
			if len(results) < len(layers) {
				if _, err := p.recorder.RecordFailure(context.WithoutCancel(ctx), out.BatchID, runner.Config(), layers[len(results)], runErr); err != nil {
					logger.Errorf("[app] 记录失败分层出错: %v", err)
				}
			}
		}
	}
	if runErr != nil {
		return out, runErr
	}

	if p.writer != nil {
		title := fmt.Sprintf("%s layers (%s)", p.cfg.Backtest.Factor, p.cfg.Backtest.Strategy)
		files, err := p.writer.Write(ctx, title, results, table)
		out.Files = files
		if err != nil {
			return out, fmt.Errorf("输出报告失败: %w", err)
		}
	}
	logger.InfoBlock(FormatOutcome(out))
	return out, nil
}

// FormatOutcome 生成分层汇总表。
func FormatOutcome(out *Outcome) string {
	if out == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "batch %s\n", out.BatchID)
	fmt.Fprintf(&b, "%-6s %-10s %-12s %-9s %-8s %-8s %-5s %-6s\n", "layer", "final", "total_ret", "sharpe", "max_dd", "dd_len", "fills", "na")
	for _, res := range out.Results {
		s := res.Summary
		fmt.Fprintf(&b, "%-6d %-10.2f %-12.4f %-9.3f %-8.2f %-8d %-5d %-6d\n",
			res.Layer, s.FinalValue, s.TotalReturn, s.Sharpe, s.MaxDrawdown, s.DrawdownDuration,
			res.Counters.Fills, res.Diagnostics.FactorNA)
	}
	for _, f := range out.Files {
		fmt.Fprintf(&b, "output: %s\n", f)
	}
	return b.String()
}
