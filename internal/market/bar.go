package market

import (
	"fmt"
	"strings"
	"time"

	"github.com/Gfz-arka/MFE-5250/internal/pkg/nullable"
)

// 字段名，供 Bar.Value / 排序因子使用。
const (
	FieldOpen      = "open"
	FieldHigh      = "high"
	FieldLow       = "low"
	FieldClose     = "close"
	FieldPctChange = "pct_change"
)

// DateLayout 是日线数据统一的日期格式。
const DateLayout = "2006-01-02"

// Bar 是某个标的的一根日线，附带当日的因子值（可能缺失）。
type Bar struct {
	Date      time.Time      `json:"date"`
	Open      float64        `json:"open"`
	High      float64        `json:"high"`
	Low       float64        `json:"low"`
	Close     float64        `json:"close"`
	Factor    nullable.Float `json:"factor"`
	PctChange nullable.Float `json:"pct_change"`
}

// Value 按字段名取值。OHLC 与 pct_change 以外的名字一律指向因子列。
func (b Bar) Value(field string) nullable.Float {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case FieldOpen:
		return nullable.Of(b.Open)
	case FieldHigh:
		return nullable.Of(b.High)
	case FieldLow:
		return nullable.Of(b.Low)
	case FieldClose:
		return nullable.Of(b.Close)
	case FieldPctChange:
		return b.PctChange
	default:
		return b.Factor
	}
}

// Month 返回所属自然月。
func (b Bar) Month() Month { return MonthOf(b.Date) }

func (b Bar) String() string {
	return fmt.Sprintf("%s O=%.4f H=%.4f L=%.4f C=%.4f F=%s", b.Date.Format(DateLayout), b.Open, b.High, b.Low, b.Close, b.Factor)
}

// IsPriceField 判断字段是否为行情自带列（无需额外因子文件）。
func IsPriceField(field string) bool {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case FieldOpen, FieldHigh, FieldLow, FieldClose, FieldPctChange:
		return true
	}
	return false
}

// Month 以 (年, 月) 标识一个自然月。
type Month struct {
	Year  int
	Month time.Month
}

func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

func (m Month) index() int { return m.Year*12 + int(m.Month) - 1 }

func (m Month) Before(o Month) bool { return m.index() < o.index() }

func (m Month) After(o Month) bool { return m.index() > o.index() }

func (m Month) IsZero() bool { return m.Year == 0 && m.Month == 0 }

func (m Month) String() string { return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month)) }
