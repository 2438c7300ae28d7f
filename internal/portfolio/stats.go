package portfolio

import "math"

// PeriodsPerYear 月度调仓的年化周期数。
const PeriodsPerYear = 12

// Summary 是权益曲线的汇总统计。
type Summary struct {
	InitialValue     float64 `json:"initial_value"`
	FinalValue       float64 `json:"final_value"`
	TotalReturn      float64 `json:"total_return"`
	Sharpe           float64 `json:"sharpe"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	DrawdownDuration int     `json:"drawdown_duration"`
	Points           int     `json:"points"`
}

// Summarize 需要已填充 Returns/Equity 的曲线（见 Finalize）。
func Summarize(curve []EquityPoint, periods int) Summary {
	s := Summary{Points: len(curve)}
	if len(curve) == 0 {
		return s
	}
	s.InitialValue = curve[0].Total
	s.FinalValue = curve[len(curve)-1].Total
	s.TotalReturn = curve[len(curve)-1].Equity - 1
	returns := make([]float64, len(curve))
	equity := make([]float64, len(curve))
	for i, p := range curve {
		returns[i] = p.Returns
		equity[i] = p.Equity
	}
	s.Sharpe = SharpeRatio(returns, periods)
	s.MaxDrawdown, s.DrawdownDuration = Drawdowns(equity)
	return s
}

// SharpeRatio 年化夏普（无风险利率为 0，样本标准差）。
func SharpeRatio(returns []float64, periods int) float64 {
	n := len(returns)
	if n < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(n)
	ss := 0.0
	for _, r := range returns {
		ss += (r - mean) * (r - mean)
	}
	std := math.Sqrt(ss / float64(n-1))
	if std == 0 {
		return 0
	}
	return math.Sqrt(float64(periods)) * mean / std
}

// Drawdowns 返回相对历史高点的最大回撤（绝对值）以及最长回撤持续期数。
func Drawdowns(equity []float64) (float64, int) {
	hwm := math.Inf(-1)
	maxDD := 0.0
	duration, maxDuration := 0, 0
	for _, v := range equity {
		if v > hwm {
			hwm = v
		}
		dd := hwm - v
		if dd > 0 {
			duration++
		} else {
			duration = 0
		}
		maxDD = math.Max(maxDD, dd)
		maxDuration = max(maxDuration, duration)
	}
	return maxDD, maxDuration
}
