// Package backtest 是事件驱动回测的驱动循环：推进时间、分发事件、补发两阶段调仓所需的 tick，
// 并按分层依次运行、汇总和持久化结果。
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gfz-arka/MFE-5250/internal/event"
	"github.com/Gfz-arka/MFE-5250/internal/execution"
	"github.com/Gfz-arka/MFE-5250/internal/logger"
	"github.com/Gfz-arka/MFE-5250/internal/portfolio"
	"github.com/Gfz-arka/MFE-5250/internal/strategy"
)

// ErrStalledTransfer 补发 tick 后策略仍处于调仓中，说明策略违反两阶段约定。
var ErrStalledTransfer = errors.New("backtest: strategy still transferring after synthetic tick")

// Feed 是驱动循环所需的时间步进能力（feed.Monthly 实现）。
type Feed interface {
	Continue() bool
	Step() bool
}

// Counters 统计各类事件数量。
type Counters struct {
	Ticks          int `json:"ticks"`
	SyntheticTicks int `json:"synthetic_ticks"`
	Signals        int `json:"signals"`
	Orders         int `json:"orders"`
	Fills          int `json:"fills"`
	Rejected       int `json:"rejected"`
	Skipped        int `json:"skipped"`
}

// Observer 在每个事件被分发前调用。
type Observer func(event.Event)

type EngineConfig struct {
	Layer     int
	Heartbeat time.Duration
	Observer  Observer
}

// Engine 独占事件队列，单线程按 FIFO 逐个分发。
type Engine struct {
	feed     Feed
	strategy strategy.Strategy
	ledger   *portfolio.Ledger
	exec     *execution.Simulator
	queue    *event.Queue

	layer     int
	heartbeat time.Duration
	observer  Observer

	counters     Counters
	nextSignalID int64
	signals      []event.SignalEvent
	orders       []event.OrderEvent
}

func NewEngine(f Feed, strat strategy.Strategy, ledger *portfolio.Ledger, exec *execution.Simulator, cfg EngineConfig) *Engine {
	return &Engine{
		feed:      f,
		strategy:  strat,
		ledger:    ledger,
		exec:      exec,
		queue:     event.NewQueue(),
		layer:     cfg.Layer,
		heartbeat: cfg.Heartbeat,
		observer:  cfg.Observer,
	}
}

// Run 循环直到数据耗尽、队列清空且策略不在调仓中，然后定稿权益曲线。
func (e *Engine) Run(ctx context.Context) error {
	for iter := 1; e.feed.Continue(); iter++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.feed.Step() {
			e.counters.Ticks++
			logger.Debugf("[backtest] layer=%d tick #%d (iteration %d)", e.layer, e.counters.Ticks, iter)
			e.queue.Push(event.MarketEvent{})
		}
		if err := e.settle(); err != nil {
			return fmt.Errorf("layer %d iteration %d: %w", e.layer, iter, err)
		}
		if err := sleepWithContext(ctx, e.heartbeat); err != nil {
			return err
		}
	}
	// 数据耗尽时若仍在调仓，先完成买入阶段
	if err := e.settle(); err != nil {
		return fmt.Errorf("layer %d final settle: %w", e.layer, err)
	}
	e.ledger.Finalize()
	e.counters.Rejected = e.exec.Rejected()
	e.counters.Skipped = e.ledger.Skipped()
	return nil
}

// settle 清空队列；若策略仍在调仓则补发一次 Market 并再次清空。
func (e *Engine) settle() error {
	if err := e.drain(); err != nil {
		return err
	}
	if !e.transferring() {
		return nil
	}
	e.counters.SyntheticTicks++
	e.queue.Push(event.MarketEvent{Synthetic: true})
	if err := e.drain(); err != nil {
		return err
	}
	if e.transferring() {
		return ErrStalledTransfer
	}
	return nil
}

func (e *Engine) transferring() bool {
	t, ok := e.strategy.(strategy.Transferrer)
	return ok && t.Transferring()
}

func (e *Engine) drain() error {
	for {
		ev, ok := e.queue.Pop()
		if !ok {
			return nil
		}
		if e.observer != nil {
			e.observer(ev)
		}
		if err := e.dispatch(ev); err != nil {
			return err
		}
	}
}

func (e *Engine) dispatch(ev event.Event) error {
	switch ev := ev.(type) {
	case event.MarketEvent:
		signals, err := e.strategy.OnMarket(e.layer)
		if err != nil {
			return err
		}
		for _, sig := range signals {
			e.nextSignalID++
			sig.ID = e.nextSignalID
			e.queue.Push(sig)
		}
		return e.ledger.UpdateTimeIndex()
	case event.SignalEvent:
		e.counters.Signals++
		e.signals = append(e.signals, ev)
		order, err := e.ledger.OnSignal(ev)
		if err != nil {
			return err
		}
		if order != nil {
			e.queue.Push(*order)
		}
		return nil
	case event.OrderEvent:
		e.counters.Orders++
		e.orders = append(e.orders, ev)
		if fill := e.exec.Execute(ev); fill != nil {
			e.queue.Push(*fill)
		}
		return nil
	case event.FillEvent:
		e.counters.Fills++
		return e.ledger.OnFill(ev)
	default:
		return fmt.Errorf("backtest: unexpected event %T", ev)
	}
}

func (e *Engine) Counters() Counters {
	c := e.counters
	c.Rejected = e.exec.Rejected()
	c.Skipped = e.ledger.Skipped()
	return c
}

// Pending 返回队列中尚未处理的事件数。
func (e *Engine) Pending() int { return e.queue.Len() }

func (e *Engine) Signals() []event.SignalEvent { return append([]event.SignalEvent(nil), e.signals...) }

func (e *Engine) Orders() []event.OrderEvent { return append([]event.OrderEvent(nil), e.orders...) }

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
