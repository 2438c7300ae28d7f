// Package event 定义回测引擎内部流转的四类事件以及承载它们的 FIFO 队列。
package event

import (
	"fmt"
	"time"

	"github.com/Gfz-arka/MFE-5250/internal/pkg/nullable"
)

type Kind int

const (
	KindMarket Kind = iota
	KindSignal
	KindOrder
	KindFill
)

func (k Kind) String() string {
	switch k {
	case KindMarket:
		return "MARKET"
	case KindSignal:
		return "SIGNAL"
	case KindOrder:
		return "ORDER"
	case KindFill:
		return "FILL"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Event 是带标签的事件变体，Kind 决定唯一的处理者。
type Event interface {
	Kind() Kind
}

// Direction 为信号方向。
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
	DirectionExit  Direction = "EXIT"
)

// Side 为订单/成交的买卖方向。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderTypeMarket 市价单，目前唯一支持的类型。
const OrderTypeMarket = "MKT"

// MarketEvent 表示一次新的调仓 tick，不携带数据。
// Synthetic 标记由驱动循环补发的 tick（两阶段调仓的第二阶段）。
type MarketEvent struct {
	Synthetic bool
}

func (MarketEvent) Kind() Kind { return KindMarket }

type SignalEvent struct {
	ID             int64
	StrategyID     int
	Date           time.Time
	Symbol         string
	IssuedAt       time.Time
	Direction      Direction
	ReferencePrice nullable.Float
	Strength       float64
}

func (SignalEvent) Kind() Kind { return KindSignal }

func (s SignalEvent) String() string {
	return fmt.Sprintf("Signal#%d %s %s @%s (%s)", s.ID, s.Direction, s.Symbol, s.ReferencePrice, s.Date.Format("2006-01-02"))
}

type OrderEvent struct {
	ID             int64
	SignalID       int64
	Date           time.Time
	Symbol         string
	OrderType      string
	Quantity       int64
	Side           Side
	ReferencePrice nullable.Float
	Direction      Direction
}

func (OrderEvent) Kind() Kind { return KindOrder }

func (o OrderEvent) String() string {
	return fmt.Sprintf("Order#%d %s %s qty=%d type=%s dir=%s @%s", o.ID, o.Side, o.Symbol, o.Quantity, o.OrderType, o.Direction, o.ReferencePrice)
}

// FillEvent 是一次成交回报。FillCost 为单位成交价。
type FillEvent struct {
	OrderID    int64
	Date       time.Time
	Symbol     string
	Quantity   int64
	Side       Side
	FillCost   float64
	Commission float64
}

func (FillEvent) Kind() Kind { return KindFill }

// Notional 返回成交金额（不含佣金）。
func (f FillEvent) Notional() float64 {
	return f.FillCost * float64(f.Quantity)
}
