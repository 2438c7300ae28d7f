// Package execution 模拟撮合：市价单按订单参考价立即全部成交，并记录执行明细。
package execution

import (
	"math"
	"time"

	"github.com/Gfz-arka/MFE-5250/internal/event"
	"github.com/Gfz-arka/MFE-5250/internal/logger"
	"github.com/Gfz-arka/MFE-5250/internal/market"
)

// CommissionFunc 根据成交数量计算佣金，必须是确定且非负的。
type CommissionFunc func(quantity int64) float64

// TieredCommission 为 IB 阶梯佣金：500 股以内每股 0.013，以上每股 0.008，最低 1.3。
func TieredCommission(quantity int64) float64 {
	q := float64(quantity)
	if quantity <= 500 {
		return math.Max(1.3, 0.013*q)
	}
	return math.Max(1.3, 0.008*q)
}

// FixedCommission 每笔成交收取固定佣金。
func FixedCommission(fee float64) CommissionFunc {
	return func(int64) float64 { return fee }
}

// CommissionFromConfig 非负值视为固定佣金覆盖，负值使用阶梯佣金。
func CommissionFromConfig(override float64) CommissionFunc {
	if override >= 0 {
		return FixedCommission(override)
	}
	return TieredCommission
}

// Record 是执行明细表的一行，每笔成交一行。
type Record struct {
	Date       time.Time       `json:"date"`
	Symbol     string          `json:"symbol"`
	Direction  event.Direction `json:"direction"`
	Side       event.Side      `json:"side"`
	Quantity   int64           `json:"quantity"`
	Price      float64         `json:"price"`
	Commission float64         `json:"commission"`
	SignalID   int64           `json:"signal_id"`
	OrderID    int64           `json:"order_id"`
}

type Simulator struct {
	commission CommissionFunc
	records    []Record
	rejected   int
}

func NewSimulator(commission CommissionFunc) *Simulator {
	if commission == nil {
		commission = TieredCommission
	}
	return &Simulator{commission: commission}
}

// Execute 返回成交；数量为 0 或参考价无效的订单被拒绝（返回 nil，不影响账本）。
func (s *Simulator) Execute(o event.OrderEvent) *event.FillEvent {
	if o.Quantity <= 0 || !o.ReferencePrice.Positive() {
		s.rejected++
		logger.Debugf("[execution] 拒绝订单 %s", o)
		return nil
	}
	price := o.ReferencePrice.Or(0)
	fill := &event.FillEvent{
		OrderID:    o.ID,
		Date:       o.Date,
		Symbol:     o.Symbol,
		Quantity:   o.Quantity,
		Side:       o.Side,
		FillCost:   price,
		Commission: s.commission(o.Quantity),
	}
	s.records = append(s.records, Record{
		Date:       o.Date,
		Symbol:     o.Symbol,
		Direction:  o.Direction,
		Side:       o.Side,
		Quantity:   o.Quantity,
		Price:      price,
		Commission: fill.Commission,
		SignalID:   o.SignalID,
		OrderID:    o.ID,
	})
	logger.Debugf("[execution] %s %s %s x%d @%.4f fee=%.4f", o.Date.Format(market.DateLayout), o.Side, o.Symbol, o.Quantity, price, fill.Commission)
	return fill
}

// Records 返回执行明细副本。
func (s *Simulator) Records() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Simulator) Rejected() int { return s.rejected }
