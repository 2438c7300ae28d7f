package market

import (
	"fmt"
	"slices"
	"time"
)

// Table 是加载完成后的只读行情表：每个标的一串按日期升序的日线。
type Table struct {
	factor  string
	symbols []string
	bars    map[string][]Bar
}

// NewTable 校验并复制输入。symbols 决定遍历顺序；series 中缺失的标的视为零根 K 线。
func NewTable(factor string, symbols []string, series map[string][]Bar) (*Table, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("market table requires at least one symbol")
	}
	t := &Table{
		factor:  factor,
		symbols: make([]string, 0, len(symbols)),
		bars:    make(map[string][]Bar, len(symbols)),
	}
	for _, sym := range symbols {
		if _, dup := t.bars[sym]; dup {
			return nil, fmt.Errorf("duplicate symbol %s", sym)
		}
		list := slices.Clone(series[sym])
		for i := 1; i < len(list); i++ {
			if !list[i].Date.After(list[i-1].Date) {
				return nil, fmt.Errorf("%s: bars not strictly ordered at %s", sym, list[i].Date.Format(DateLayout))
			}
		}
		if list == nil {
			list = []Bar{}
		}
		t.symbols = append(t.symbols, sym)
		t.bars[sym] = list
	}
	return t, nil
}

// Factor 返回本表加载时使用的排序因子名。
func (t *Table) Factor() string { return t.factor }

func (t *Table) Symbols() []string { return slices.Clone(t.symbols) }

func (t *Table) Has(symbol string) bool {
	_, ok := t.bars[symbol]
	return ok
}

// Bars 返回某标的的全部日线。调用方不得修改返回的切片。
func (t *Table) Bars(symbol string) ([]Bar, bool) {
	list, ok := t.bars[symbol]
	return list, ok
}

func (t *Table) Len(symbol string) int { return len(t.bars[symbol]) }

// Range 返回全表最早与最晚日期。
func (t *Table) Range() (time.Time, time.Time) {
	var first, last time.Time
	for _, list := range t.bars {
		if len(list) == 0 {
			continue
		}
		if first.IsZero() || list[0].Date.Before(first) {
			first = list[0].Date
		}
		if end := list[len(list)-1].Date; end.After(last) {
			last = end
		}
	}
	return first, last
}
