// Package feed 把多个标的的日线按自然月同步推进，每跨入一个新月份只产生一次 Market tick。
package feed

import (
	"errors"
	"fmt"
	"time"

	"github.com/Gfz-arka/MFE-5250/internal/logger"
	"github.com/Gfz-arka/MFE-5250/internal/market"
	"github.com/Gfz-arka/MFE-5250/internal/pkg/nullable"
)

var (
	// ErrUnknownSymbol 查询了行情表之外的标的，属于结构性错误，调用方应立即终止回测。
	ErrUnknownSymbol = errors.New("symbol not available in the historical data set")
	// ErrNoBars 该标的尚未揭示任何 bar（非致命）。
	ErrNoBars = errors.New("no bars revealed yet")
)

// Diagnostics 暴露数据质量信息。
type Diagnostics struct {
	Ticks           int      `json:"ticks"`
	FactorNA        int      `json:"factor_na"`
	FactorNASymbols []string `json:"factor_na_symbols,omitempty"`
}

// Monthly 是按月推进的时间步进器。
type Monthly struct {
	table   *market.Table
	symbols []string
	streams map[string]*stream

	startMonth market.Month
	current    market.Month
	cont       bool

	ticks     int
	naChecked bool
	naSymbols []string
}

// NewMonthly 以 start 所在月份作为初始"当前月"；start 为零值时取行情表的最早日期。
func NewMonthly(table *market.Table, start time.Time) *Monthly {
	if start.IsZero() {
		start, _ = table.Range()
	}
	m := &Monthly{
		table:      table,
		symbols:    table.Symbols(),
		streams:    make(map[string]*stream),
		startMonth: market.MonthOf(start),
	}
	for _, sym := range m.symbols {
		bars, _ := table.Bars(sym)
		m.streams[sym] = newStream(bars)
	}
	m.Reset()
	return m
}

// Reset 回卷所有游标、清空已揭示数据与诊断计数，用于分层重复回测。
func (m *Monthly) Reset() {
	for _, st := range m.streams {
		st.reset()
	}
	m.current = m.startMonth
	m.cont = true
	m.ticks = 0
	m.naChecked = false
	m.naSymbols = nil
}

// Continue 为 false 表示至少一个标的的数据已经耗尽。
func (m *Monthly) Continue() bool { return m.cont }

func (m *Monthly) CurrentMonth() market.Month { return m.current }

func (m *Monthly) Symbols() []string {
	out := make([]string, len(m.symbols))
	copy(out, m.symbols)
	return out
}

// Step 为每个标的推进一步，若有标的跨入新月份则返回 true（调用方据此投递一次 Market 事件）。
func (m *Monthly) Step() bool {
	crossed := false
	latest := m.current
	for _, sym := range m.symbols {
		st := m.streams[sym]
		if st.state == buffered {
			st.promote()
			continue
		}
		bar, ok := st.pull()
		if !ok {
			m.cont = false
			continue
		}
		month := bar.Month()
		if !month.After(m.current) {
			// 同月或日历滞后的旧月份 bar 直接揭示
			st.revealed = append(st.revealed, bar)
			continue
		}
		st.park(bar)
		crossed = true
		if month.After(latest) {
			latest = month
		}
	}
	if !crossed {
		return false
	}
	if !m.naChecked {
		m.checkFactorNA()
	}
	logger.Debugf("[feed] %s -> %s tick=%d", m.current, latest, m.ticks+1)
	m.current = latest
	m.ticks++
	return true
}

// checkFactorNA 只在第一个调仓月统计因子缺失的标的。
func (m *Monthly) checkFactorNA() {
	m.naChecked = true
	for _, sym := range m.symbols {
		b, ok := m.streams[sym].latest()
		if !ok || b.Value(m.table.Factor()).IsNull() {
			m.naSymbols = append(m.naSymbols, sym)
		}
	}
	if len(m.naSymbols) > 0 {
		logger.Warnf("[feed] %s 首个调仓月有 %d 个标的因子 %s 缺失", m.current, len(m.naSymbols), m.table.Factor())
	}
}

func (m *Monthly) Diagnostics() Diagnostics {
	return Diagnostics{
		Ticks:           m.ticks,
		FactorNA:        len(m.naSymbols),
		FactorNASymbols: append([]string(nil), m.naSymbols...),
	}
}

func (m *Monthly) stream(symbol string) (*stream, error) {
	st, ok := m.streams[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return st, nil
}

// LatestBar 返回最近揭示的 bar。
func (m *Monthly) LatestBar(symbol string) (market.Bar, error) {
	st, err := m.stream(symbol)
	if err != nil {
		return market.Bar{}, err
	}
	b, ok := st.latest()
	if !ok {
		return market.Bar{}, fmt.Errorf("%w: %s", ErrNoBars, symbol)
	}
	return b, nil
}

// LatestBars 返回最近 n 根 bar，历史不足时返回更少。
func (m *Monthly) LatestBars(symbol string, n int) ([]market.Bar, error) {
	st, err := m.stream(symbol)
	if err != nil {
		return nil, err
	}
	return st.tail(n), nil
}

func (m *Monthly) LatestBarDate(symbol string) (time.Time, error) {
	b, err := m.LatestBar(symbol)
	if err != nil {
		return time.Time{}, err
	}
	return b.Date, nil
}

// LatestValue 返回最近 bar 的字段值；尚无数据时为 null。
func (m *Monthly) LatestValue(symbol, field string) (nullable.Float, error) {
	st, err := m.stream(symbol)
	if err != nil {
		return nullable.Null(), err
	}
	b, ok := st.latest()
	if !ok {
		return nullable.Null(), nil
	}
	return b.Value(field), nil
}

// LatestValues 返回最近 n 根 bar 的字段值，历史不足时返回更少。
func (m *Monthly) LatestValues(symbol, field string, n int) ([]nullable.Float, error) {
	bars, err := m.LatestBars(symbol, n)
	if err != nil {
		return nil, err
	}
	out := make([]nullable.Float, len(bars))
	for i, b := range bars {
		out[i] = b.Value(field)
	}
	return out, nil
}

// LatestDate 返回全体标的中最新的已揭示日期。
func (m *Monthly) LatestDate() time.Time {
	var latest time.Time
	for _, sym := range m.symbols {
		if b, ok := m.streams[sym].latest(); ok && b.Date.After(latest) {
			latest = b.Date
		}
	}
	return latest
}
