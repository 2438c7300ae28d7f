// Package strategy 定义回测策略能力接口，以及按因子分层调仓和买入持有两种实现。
package strategy

import (
	"time"

	"github.com/Gfz-arka/MFE-5250/internal/event"
	"github.com/Gfz-arka/MFE-5250/internal/market"
	"github.com/Gfz-arka/MFE-5250/internal/pkg/nullable"
)

// Strategy 处理一次 Market tick，返回零个或多个信号，由驱动循环按顺序入队。
type Strategy interface {
	Name() string
	OnMarket(layer int) ([]event.SignalEvent, error)
}

// Transferrer 由两阶段策略实现：调仓进行中时驱动循环需补发一次 Market tick。
type Transferrer interface {
	Transferring() bool
}

// BarReader 是策略可见的只读行情视图（feed.Monthly 实现）。
type BarReader interface {
	Symbols() []string
	LatestBar(symbol string) (market.Bar, error)
	LatestValue(symbol, field string) (nullable.Float, error)
}

// PositionReader 暴露组合的真实持仓数量（portfolio.Ledger 实现）。
type PositionReader interface {
	Position(symbol string) int64
}

// PositionFlag 是策略侧的持仓记账标记，用于避免重复信号。
type PositionFlag string

const (
	FlagOut  PositionFlag = "OUT"
	FlagLong PositionFlag = "LONG"
)

// Clock 用于填写信号的 IssuedAt，测试中可替换。
type Clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }

type flagBook struct {
	order []string
	flags map[string]PositionFlag
}

func newFlagBook(symbols []string) flagBook {
	fb := flagBook{order: append([]string(nil), symbols...), flags: make(map[string]PositionFlag, len(symbols))}
	for _, s := range symbols {
		fb.flags[s] = FlagOut
	}
	return fb
}

// Flags 返回持仓标记的副本。
func (fb flagBook) Flags() map[string]PositionFlag {
	out := make(map[string]PositionFlag, len(fb.flags))
	for k, v := range fb.flags {
		out[k] = v
	}
	return out
}

// signalFor 以最新收盘价作为参考价构造信号；该标的尚无数据时参考价为 null。
func signalFor(bars BarReader, strategyID int, symbol string, dir event.Direction, now Clock) (event.SignalEvent, error) {
	sig := event.SignalEvent{
		StrategyID:     strategyID,
		Symbol:         symbol,
		IssuedAt:       now(),
		Direction:      dir,
		ReferencePrice: nullable.Null(),
		Strength:       1.0,
	}
	price, err := bars.LatestValue(symbol, market.FieldClose)
	if err != nil {
		return sig, err
	}
	sig.ReferencePrice = price
	if b, err := bars.LatestBar(symbol); err == nil {
		sig.Date = b.Date
	}
	return sig, nil
}
