package strategy

import (
	"fmt"
	"sort"

	"github.com/Gfz-arka/MFE-5250/internal/pkg/nullable"
)

// Scored 为一个标的的因子快照。
type Scored struct {
	Symbol string
	Value  nullable.Float
}

// Rank 按因子降序排序，null 排在最后；相等时保持输入（股票池）顺序。
func Rank(items []Scored) []Scored {
	out := append([]Scored(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		return nullable.CompareDesc(out[i].Value, out[j].Value) < 0
	})
	return out
}

// SlotsPerLayer 返回每层的篮子容量 floor(basketSize / layers)。
func SlotsPerLayer(basketSize, layers int) int {
	if layers <= 0 || basketSize <= 0 {
		return 0
	}
	return basketSize / layers
}

// SelectLayer 取排序结果的 [layer*n, (layer+1)*n) 区间，越界部分截断。
func SelectLayer(ranked []Scored, layer, n int) []string {
	if n <= 0 || layer < 0 {
		return nil
	}
	lo := layer * n
	if lo >= len(ranked) {
		return nil
	}
	hi := min(lo+n, len(ranked))
	out := make([]string, 0, hi-lo)
	for _, s := range ranked[lo:hi] {
		out = append(out, s.Symbol)
	}
	return out
}

// Snapshot 读取全部标的当前的因子值。
func Snapshot(bars BarReader, factor string) ([]Scored, error) {
	symbols := bars.Symbols()
	out := make([]Scored, 0, len(symbols))
	for _, sym := range symbols {
		v, err := bars.LatestValue(sym, factor)
		if err != nil {
			return nil, fmt.Errorf("读取 %s 因子 %s 失败: %w", sym, factor, err)
		}
		out = append(out, Scored{Symbol: sym, Value: v})
	}
	return out, nil
}
