// Package portfolio 维护回测账本：现金、持仓、逐 tick 的权益曲线，以及信号到订单的等权定量。
package portfolio

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Gfz-arka/MFE-5250/internal/event"
	"github.com/Gfz-arka/MFE-5250/internal/logger"
	"github.com/Gfz-arka/MFE-5250/internal/market"
	"github.com/Gfz-arka/MFE-5250/internal/pkg/nullable"
)

var (
	// ErrUnknownSymbol 信号或成交引用了股票池之外的标的。
	ErrUnknownSymbol = errors.New("portfolio: unknown symbol")
	// ErrFinalized 权益曲线已定稿，不再接受更新。
	ErrFinalized = errors.New("portfolio: ledger finalized")
)

// PriceReader 提供标的最新收盘价与当前行情日期（feed.Monthly 实现）。
type PriceReader interface {
	Symbols() []string
	LatestValue(symbol, field string) (nullable.Float, error)
	LatestDate() time.Time
}

type Config struct {
	InitialCapital float64
	// Slots 为等权份数 N，即每层篮子容量。
	Slots      int
	AllowShort bool
	// Start 非零时在权益曲线开头写入一个初始资金点。
	Start time.Time
}

// EquityPoint 是一次 mark-to-market 的结果。Returns 与 Equity 在 Finalize 时填充。
type EquityPoint struct {
	Date       time.Time          `json:"date"`
	Cash       float64            `json:"cash"`
	Commission float64            `json:"commission"`
	Total      float64            `json:"total"`
	Holdings   map[string]float64 `json:"holdings,omitempty"`
	Returns    float64            `json:"returns"`
	Equity     float64            `json:"equity_curve"`
}

// Ledger 单线程使用，由驱动循环独占。
type Ledger struct {
	prices  PriceReader
	cfg     Config
	symbols []string

	cash       decimal.Decimal
	commission decimal.Decimal
	positions  map[string]int64

	curve       []EquityPoint
	nextOrderID int64
	skipped     int
	finalized   bool
}

func NewLedger(prices PriceReader, cfg Config) *Ledger {
	symbols := prices.Symbols()
	l := &Ledger{
		prices:     prices,
		cfg:        cfg,
		symbols:    symbols,
		cash:       decimal.NewFromFloat(cfg.InitialCapital),
		commission: decimal.Zero,
		positions:  make(map[string]int64, len(symbols)),
	}
	for _, s := range symbols {
		l.positions[s] = 0
	}
	if !cfg.Start.IsZero() {
		l.curve = append(l.curve, EquityPoint{
			Date:     cfg.Start,
			Cash:     cfg.InitialCapital,
			Total:    cfg.InitialCapital,
			Holdings: l.zeroHoldings(),
		})
	}
	return l
}

func (l *Ledger) zeroHoldings() map[string]float64 {
	h := make(map[string]float64, len(l.symbols))
	for _, s := range l.symbols {
		h[s] = 0
	}
	return h
}

func (l *Ledger) Cash() float64 { return l.cash.InexactFloat64() }

func (l *Ledger) Position(symbol string) int64 { return l.positions[symbol] }

// Positions 返回持仓副本。
func (l *Ledger) Positions() map[string]int64 {
	out := make(map[string]int64, len(l.positions))
	for k, v := range l.positions {
		out[k] = v
	}
	return out
}

// Skipped 返回因方向/持仓组合无效而未生成订单的信号数。
func (l *Ledger) Skipped() int { return l.skipped }

// UpdateTimeIndex 按最新收盘价重估持仓并追加权益点；同一日期重复调用时覆盖最后一个点。
func (l *Ledger) UpdateTimeIndex() error {
	if l.finalized {
		return ErrFinalized
	}
	date := l.prices.LatestDate()
	holdings := make(map[string]float64, len(l.symbols))
	total := l.cash
	for _, sym := range l.symbols {
		qty := l.positions[sym]
		if qty == 0 {
			holdings[sym] = 0
			continue
		}
		px, err := l.prices.LatestValue(sym, market.FieldClose)
		if err != nil {
			return err
		}
		value := decimal.NewFromInt(qty).Mul(decimal.NewFromFloat(px.Or(0)))
		holdings[sym] = value.InexactFloat64()
		total = total.Add(value)
	}
	pt := EquityPoint{
		Date:       date,
		Cash:       l.cash.InexactFloat64(),
		Commission: l.commission.InexactFloat64(),
		Total:      total.InexactFloat64(),
		Holdings:   holdings,
	}
	if n := len(l.curve); n > 0 && l.curve[n-1].Date.Equal(date) {
		l.curve[n-1] = pt
		return nil
	}
	l.curve = append(l.curve, pt)
	return nil
}

// OnSignal 把信号换算为订单；无效组合返回 nil。
func (l *Ledger) OnSignal(sig event.SignalEvent) (*event.OrderEvent, error) {
	pos, ok := l.positions[sig.Symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, sig.Symbol)
	}
	order := event.OrderEvent{
		SignalID:       sig.ID,
		Date:           sig.Date,
		Symbol:         sig.Symbol,
		OrderType:      event.OrderTypeMarket,
		ReferencePrice: sig.ReferencePrice,
		Direction:      sig.Direction,
	}
	switch {
	case sig.Direction == event.DirectionLong && pos == 0:
		order.Side = event.SideBuy
		order.Quantity = l.targetQuantity(sig.ReferencePrice)
	case sig.Direction == event.DirectionShort && pos == 0 && l.cfg.AllowShort:
		order.Side = event.SideSell
		order.Quantity = l.targetQuantity(sig.ReferencePrice)
	case sig.Direction == event.DirectionExit && pos > 0:
		order.Side = event.SideSell
		order.Quantity = pos
	case sig.Direction == event.DirectionExit && pos < 0:
		order.Side = event.SideBuy
		order.Quantity = -pos
	default:
		l.skipped++
		logger.Debugf("[portfolio] 忽略信号 %s (position=%d)", sig, pos)
		return nil, nil
	}
	l.nextOrderID++
	order.ID = l.nextOrderID
	if order.Quantity == 0 {
		logger.Warnf("[portfolio] %s %s 参考价无效或资金不足，数量为 0", sig.Date.Format(market.DateLayout), sig.Symbol)
	}
	return &order, nil
}

// targetQuantity = floor(cash / N / price)；价格缺失或非正时为 0。
func (l *Ledger) targetQuantity(price nullable.Float) int64 {
	if !price.Positive() {
		return 0
	}
	slots := max(l.cfg.Slots, 1)
	qty := l.cash.Div(decimal.NewFromInt(int64(slots)).Mul(decimal.NewFromFloat(price.Or(0)))).Floor()
	if qty.Sign() <= 0 {
		return 0
	}
	return qty.IntPart()
}

// OnFill 更新现金与持仓。
func (l *Ledger) OnFill(fill event.FillEvent) error {
	if l.finalized {
		return ErrFinalized
	}
	pos, ok := l.positions[fill.Symbol]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSymbol, fill.Symbol)
	}
	if fill.Quantity <= 0 {
		logger.Warnf("[portfolio] 忽略数量为 %d 的成交 %s", fill.Quantity, fill.Symbol)
		return nil
	}
	notional := decimal.NewFromFloat(fill.FillCost).Mul(decimal.NewFromInt(fill.Quantity))
	fee := decimal.NewFromFloat(fill.Commission)
	switch fill.Side {
	case event.SideBuy:
		l.cash = l.cash.Sub(notional).Sub(fee)
		l.positions[fill.Symbol] = pos + fill.Quantity
	case event.SideSell:
		l.cash = l.cash.Add(notional).Sub(fee)
		l.positions[fill.Symbol] = pos - fill.Quantity
	default:
		return fmt.Errorf("portfolio: invalid fill side %q", fill.Side)
	}
	l.commission = l.commission.Add(fee)
	return nil
}

// Finalize 计算收益率列并冻结权益曲线，可重复调用。
func (l *Ledger) Finalize() []EquityPoint {
	if !l.finalized {
		fillReturns(l.curve)
		l.finalized = true
	}
	return l.EquityCurve()
}

// EquityCurve 返回权益曲线副本。
func (l *Ledger) EquityCurve() []EquityPoint {
	out := make([]EquityPoint, len(l.curve))
	copy(out, l.curve)
	return out
}

func (l *Ledger) Finalized() bool { return l.finalized }

func fillReturns(curve []EquityPoint) {
	equity := 1.0
	for i := range curve {
		r := 0.0
		if i > 0 && curve[i-1].Total != 0 {
			r = curve[i].Total/curve[i-1].Total - 1
		}
		equity *= 1 + r
		curve[i].Returns = r
		curve[i].Equity = equity
	}
}
