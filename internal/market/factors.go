package market

import (
	"strconv"
	"strings"

	talib "github.com/markcheno/go-talib"

	"github.com/Gfz-arka/MFE-5250/internal/pkg/nullable"
)

// DerivedFactor 是可由收盘价直接计算的技术因子，形如 roc_20 / rsi_14 / sma_ratio_20 / momentum_10。
type DerivedFactor struct {
	Kind   string
	Period int
}

var derivedKinds = []string{"sma_ratio", "momentum", "roc", "rsi"}

// ParseDerivedFactor 解析因子名；不是派生因子时返回 false。
func ParseDerivedFactor(name string) (DerivedFactor, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, kind := range derivedKinds {
		rest, ok := strings.CutPrefix(name, kind+"_")
		if !ok {
			continue
		}
		period, err := strconv.Atoi(rest)
		if err != nil || period < 2 {
			return DerivedFactor{}, false
		}
		return DerivedFactor{Kind: kind, Period: period}, true
	}
	return DerivedFactor{}, false
}

func (d DerivedFactor) Name() string {
	return d.Kind + "_" + strconv.Itoa(d.Period)
}

// Compute 返回与 closes 等长的因子序列，预热期内为 null。
func (d DerivedFactor) Compute(closes []float64) []nullable.Float {
	out := make([]nullable.Float, len(closes))
	if len(closes) <= d.Period {
		return out
	}
	var (
		raw   []float64
		first = d.Period
	)
	switch d.Kind {
	case "roc":
		raw = talib.Roc(closes, d.Period)
	case "rsi":
		raw = talib.Rsi(closes, d.Period)
	case "momentum":
		raw = talib.Mom(closes, d.Period)
	case "sma_ratio":
		sma := talib.Sma(closes, d.Period)
		raw = make([]float64, len(closes))
		for i := range closes {
			raw[i] = nullable.Of(closes[i]).Div(nullable.Of(sma[i])).Sub(nullable.Of(1)).Or(0)
		}
		first = d.Period - 1
	default:
		return out
	}
	for i := first; i < len(raw) && i < len(out); i++ {
		// 上市前的 0 价格会让 roc/sma_ratio 失真，直接记为缺失
		if closes[i] == 0 || closes[i-first] == 0 {
			continue
		}
		out[i] = nullable.Of(raw[i])
	}
	return out
}
