package strategy

import (
	"slices"

	"github.com/Gfz-arka/MFE-5250/internal/event"
	"github.com/Gfz-arka/MFE-5250/internal/logger"
)

const NameFactorRebalance = "factor_rebalance"

// RebalanceConfig 为分层调仓参数，调用方负责校验。
type RebalanceConfig struct {
	StrategyID int
	Factor     string
	BasketSize int
	Layers     int
	// KeepOverlap 为 true 时，新旧篮子重叠的标的在退出阶段保留，不再重复买入。
	KeepOverlap bool
}

// FactorRebalance 是两阶段调仓状态机：
// IDLE 收到 tick 时平掉所有 LONG 并进入 TRANSFERRING；
// TRANSFERRING 收到 tick 时买入目标篮子中处于 OUT 的标的并回到 IDLE。
type FactorRebalance struct {
	bars      BarReader
	positions PositionReader
	cfg       RebalanceConfig
	now       Clock

	flagBook
	transferring bool
	basket       []string
	cycles       int
}

type Option func(*options)

type options struct {
	now       Clock
	positions PositionReader
}

// WithClock 替换信号 IssuedAt 的时间源。
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.now = c
		}
	}
}

// WithPositions 让保留重叠标的前核对真实持仓；入场被拒的标的会重新发出 LONG。
func WithPositions(p PositionReader) Option {
	return func(o *options) {
		if p != nil {
			o.positions = p
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: utcNow}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func NewFactorRebalance(bars BarReader, cfg RebalanceConfig, opts ...Option) *FactorRebalance {
	o := buildOptions(opts)
	if cfg.StrategyID == 0 {
		cfg.StrategyID = 1
	}
	return &FactorRebalance{
		bars:      bars,
		positions: o.positions,
		cfg:       cfg,
		now:       o.now,
		flagBook:  newFlagBook(bars.Symbols()),
	}
}

func (s *FactorRebalance) Name() string { return NameFactorRebalance }

func (s *FactorRebalance) Transferring() bool { return s.transferring }

// Slots 返回每层篮子容量，即组合下单时的等权份数 N。
func (s *FactorRebalance) Slots() int { return SlotsPerLayer(s.cfg.BasketSize, s.cfg.Layers) }

// Basket 返回最近一次计算的目标篮子。
func (s *FactorRebalance) Basket() []string { return slices.Clone(s.basket) }

// Cycles 返回已完成的调仓轮数。
func (s *FactorRebalance) Cycles() int { return s.cycles }

func (s *FactorRebalance) OnMarket(layer int) ([]event.SignalEvent, error) {
	scored, err := Snapshot(s.bars, s.cfg.Factor)
	if err != nil {
		return nil, err
	}
	s.basket = SelectLayer(Rank(scored), layer, s.Slots())

	if !s.transferring {
		signals, err := s.exitPhase()
		if err != nil {
			return nil, err
		}
		s.transferring = true
		return signals, nil
	}
	signals, err := s.enterPhase()
	if err != nil {
		return nil, err
	}
	s.transferring = false
	s.cycles++
	logger.Debugf("[strategy] layer=%d cycle=%d basket=%v", layer, s.cycles, s.basket)
	return signals, nil
}

func (s *FactorRebalance) exitPhase() ([]event.SignalEvent, error) {
	var out []event.SignalEvent
	for _, sym := range s.order {
		if s.flags[sym] != FlagLong {
			continue
		}
		if s.cfg.KeepOverlap && slices.Contains(s.basket, sym) {
			if s.positions != nil && s.positions.Position(sym) == 0 {
				// 入场订单被拒，账本无持仓：降为 OUT，入场阶段重新买入
				s.flags[sym] = FlagOut
			}
			continue
		}
		sig, err := signalFor(s.bars, s.cfg.StrategyID, sym, event.DirectionExit, s.now)
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
		s.flags[sym] = FlagOut
	}
	return out, nil
}

func (s *FactorRebalance) enterPhase() ([]event.SignalEvent, error) {
	var out []event.SignalEvent
	for _, sym := range s.order {
		if s.flags[sym] != FlagOut || !slices.Contains(s.basket, sym) {
			continue
		}
		sig, err := signalFor(s.bars, s.cfg.StrategyID, sym, event.DirectionLong, s.now)
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
		s.flags[sym] = FlagLong
	}
	return out, nil
}
