package backtest

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Gfz-arka/MFE-5250/internal/event"
	"github.com/Gfz-arka/MFE-5250/internal/execution"
	"github.com/Gfz-arka/MFE-5250/internal/feed"
	"github.com/Gfz-arka/MFE-5250/internal/logger"
	"github.com/Gfz-arka/MFE-5250/internal/market"
	"github.com/Gfz-arka/MFE-5250/internal/portfolio"
	"github.com/Gfz-arka/MFE-5250/internal/strategy"
)

// RunnerConfig 是一次分层回测的参数快照，调用方负责校验。
type RunnerConfig struct {
	Strategy       string        `json:"strategy"`
	Factor         string        `json:"factor"`
	BasketSize     int           `json:"basket_size"`
	Layers         int           `json:"layers"`
	KeepOverlap    bool          `json:"keep_overlap"`
	InitialCapital float64       `json:"initial_capital"`
	Commission     float64       `json:"commission"`
	AllowShort     bool          `json:"allow_short"`
	Start          time.Time     `json:"start"`
	Heartbeat      time.Duration `json:"heartbeat"`
	// RunLayers 非空时只运行列出的分层。
	RunLayers []int `json:"run_layers,omitempty"`
}

// LayerResult 是单层回测的全部输出。
type LayerResult struct {
	Layer       int                     `json:"layer"`
	Strategy    string                  `json:"strategy"`
	Factor      string                  `json:"factor"`
	Equity      []portfolio.EquityPoint `json:"equity"`
	Executions  []execution.Record      `json:"executions"`
	Signals     []event.SignalEvent     `json:"-"`
	Orders      []event.OrderEvent      `json:"-"`
	Summary     portfolio.Summary       `json:"summary"`
	Counters    Counters                `json:"counters"`
	Diagnostics feed.Diagnostics        `json:"diagnostics"`
	Positions   map[string]int64        `json:"positions"`
	Cash        float64                 `json:"cash"`
	Basket      []string                `json:"basket,omitempty"`
}

// Runner 在同一张行情表上依次运行各分层，每层前重置时间步进器。
type Runner struct {
	table *market.Table
	feed  *feed.Monthly
	cfg   RunnerConfig
	clock strategy.Clock
}

func NewRunner(table *market.Table, cfg RunnerConfig) *Runner {
	if cfg.Strategy == "" {
		cfg.Strategy = strategy.NameFactorRebalance
	}
	if cfg.Factor == "" {
		cfg.Factor = table.Factor()
	}
	return &Runner{
		table: table,
		feed:  feed.NewMonthly(table, cfg.Start),
		cfg:   cfg,
	}
}

// SetClock 替换信号时间源（测试用）。
func (r *Runner) SetClock(c strategy.Clock) { r.clock = c }

func (r *Runner) Config() RunnerConfig { return r.cfg }

// LayerIndexes 返回需要运行的分层序号。
func (r *Runner) LayerIndexes() []int {
	if r.cfg.Strategy != strategy.NameFactorRebalance {
		return []int{0}
	}
	total := max(r.cfg.Layers, 1)
	var out []int
	if len(r.cfg.RunLayers) > 0 {
		for _, l := range r.cfg.RunLayers {
			if l >= 0 && l < total && !slices.Contains(out, l) {
				out = append(out, l)
			}
		}
		return out
	}
	for i := 0; i < total; i++ {
		out = append(out, i)
	}
	return out
}

// Run 依次运行所有分层；任一层出错立即返回已完成的结果与错误。
func (r *Runner) Run(ctx context.Context) ([]*LayerResult, error) {
	var results []*LayerResult
	for _, layer := range r.LayerIndexes() {
		res, err := r.RunLayer(ctx, layer)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (r *Runner) RunLayer(ctx context.Context, layer int) (*LayerResult, error) {
	r.feed.Reset()
	var opts []strategy.Option
	if r.clock != nil {
		opts = append(opts, strategy.WithClock(r.clock))
	}

	var (
		strat  strategy.Strategy
		ledger *portfolio.Ledger
		slots  int
		basket func() []string
	)
	newLedger := func() *portfolio.Ledger {
		return portfolio.NewLedger(r.feed, portfolio.Config{
			InitialCapital: r.cfg.InitialCapital,
			Slots:          slots,
			AllowShort:     r.cfg.AllowShort,
			Start:          r.cfg.Start,
		})
	}
	switch r.cfg.Strategy {
	case strategy.NameFactorRebalance:
		slots = strategy.SlotsPerLayer(r.cfg.BasketSize, r.cfg.Layers)
		ledger = newLedger()
		fr := strategy.NewFactorRebalance(r.feed, strategy.RebalanceConfig{
			Factor:      r.cfg.Factor,
			BasketSize:  r.cfg.BasketSize,
			Layers:      r.cfg.Layers,
			KeepOverlap: r.cfg.KeepOverlap,
		}, append(opts, strategy.WithPositions(ledger))...)
		strat, basket = fr, fr.Basket
	case strategy.NameBuyAndHold:
		slots = len(r.table.Symbols())
		ledger = newLedger()
		strat = strategy.NewBuyAndHold(r.feed, opts...)
	default:
		return nil, fmt.Errorf("unknown strategy %q", r.cfg.Strategy)
	}
	sim := execution.NewSimulator(execution.CommissionFromConfig(r.cfg.Commission))
	engine := NewEngine(r.feed, strat, ledger, sim, EngineConfig{Layer: layer, Heartbeat: r.cfg.Heartbeat})

	logger.Infof("[backtest] layer %d 开始: strategy=%s factor=%s slots=%d", layer, strat.Name(), r.cfg.Factor, slots)
	started := time.Now()
	if err := engine.Run(ctx); err != nil {
		return nil, err
	}

	curve := ledger.Finalize()
	res := &LayerResult{
		Layer:       layer,
		Strategy:    strat.Name(),
		Factor:      r.cfg.Factor,
		Equity:      curve,
		Executions:  sim.Records(),
		Signals:     engine.Signals(),
		Orders:      engine.Orders(),
		Summary:     portfolio.Summarize(curve, portfolio.PeriodsPerYear),
		Counters:    engine.Counters(),
		Diagnostics: r.feed.Diagnostics(),
		Positions:   ledger.Positions(),
		Cash:        ledger.Cash(),
	}
	if basket != nil {
		res.Basket = basket()
	}
	if res.Diagnostics.FactorNA > 0 {
		logger.Warnf("[backtest] layer %d 因子缺失标的 %d 个: %v", layer, res.Diagnostics.FactorNA, res.Diagnostics.FactorNASymbols)
	}
	if res.Counters.Rejected > 0 {
		logger.Warnf("[backtest] layer %d 有 %d 笔订单因数量为 0 或价格无效被拒绝", layer, res.Counters.Rejected)
	}
	logger.Infof("[backtest] layer %d 完成 (%s): signals=%d orders=%d fills=%d total_return=%.4f sharpe=%.3f",
		layer, time.Since(started).Round(time.Millisecond), res.Counters.Signals, res.Counters.Orders, res.Counters.Fills,
		res.Summary.TotalReturn, res.Summary.Sharpe)
	return res, nil
}
