package market

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Gfz-arka/MFE-5250/internal/logger"
	"github.com/Gfz-arka/MFE-5250/internal/pkg/nullable"
)

// ErrNoPriceFile 表示某个标的缺少行情文件。
var ErrNoPriceFile = errors.New("price file not found")

var dateLayouts = []string{DateLayout, "2006/01/02", "20060102", "2006-01-02 15:04:05"}

// LoadOptions 描述一次 CSV 加载。
type LoadOptions struct {
	PriceDir  string
	FactorDir string
	Symbols   []string
	Factor    string
	Start     time.Time
}

// priceRow 为原始 CSV 行（尚未对齐日历）。
type priceRow struct {
	date                   time.Time
	open, high, low, close float64
}

// LoadCSV 读取 <PriceDir>/<symbol>.csv 与 <FactorDir>/<symbol>.csv，生成行情表：
// 所有标的对齐到并集日历并前向填充（上市前填 0），因子按日期左连接（缺失为 null），
// 随后计算 pct_change，最后截取 Start 之后的数据。
func LoadCSV(opts LoadOptions) (*Table, error) {
	if len(opts.Symbols) == 0 {
		return nil, fmt.Errorf("load csv: symbols 不能为空")
	}
	raw := make(map[string][]priceRow, len(opts.Symbols))
	calendarSet := make(map[time.Time]struct{})
	for _, sym := range opts.Symbols {
		path := filepath.Join(opts.PriceDir, sym+".csv")
		rows, err := readPriceFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sym, err)
		}
		raw[sym] = rows
		for _, r := range rows {
			calendarSet[r.date] = struct{}{}
		}
	}
	calendar := make([]time.Time, 0, len(calendarSet))
	for d := range calendarSet {
		calendar = append(calendar, d)
	}
	sort.Slice(calendar, func(i, j int) bool { return calendar[i].Before(calendar[j]) })

	derived, isDerived := ParseDerivedFactor(opts.Factor)
	series := make(map[string][]Bar, len(opts.Symbols))
	for _, sym := range opts.Symbols {
		bars := forwardFill(calendar, raw[sym])
		switch {
		case IsPriceField(opts.Factor):
		case isDerived:
			closes := make([]float64, len(bars))
			for i, b := range bars {
				closes[i] = b.Close
			}
			for i, v := range derived.Compute(closes) {
				bars[i].Factor = v
			}
		default:
			factors, err := readFactorFile(filepath.Join(opts.FactorDir, sym+".csv"), opts.Factor)
			if err != nil {
				if !errors.Is(err, os.ErrNotExist) {
					return nil, fmt.Errorf("%s: %w", sym, err)
				}
				logger.Warnf("[market] %s 缺少因子文件，%s 全部记为缺失", sym, opts.Factor)
			}
			for i := range bars {
				bars[i].Factor = factors[bars[i].Date]
			}
		}
		fillPctChange(bars)
		series[sym] = sliceFrom(bars, opts.Start)
	}
	return NewTable(opts.Factor, opts.Symbols, series)
}

func forwardFill(calendar []time.Time, rows []priceRow) []Bar {
	out := make([]Bar, len(calendar))
	var last priceRow
	j := 0
	for i, d := range calendar {
		for j < len(rows) && !rows[j].date.After(d) {
			last = rows[j]
			j++
		}
		out[i] = Bar{Date: d, Open: last.open, High: last.high, Low: last.low, Close: last.close}
	}
	return out
}

func fillPctChange(bars []Bar) {
	for i := range bars {
		if i == 0 {
			bars[i].PctChange = nullable.Null()
			continue
		}
		bars[i].PctChange = nullable.Of(bars[i].Close).PctChange(nullable.Of(bars[i-1].Close))
	}
}

func sliceFrom(bars []Bar, start time.Time) []Bar {
	if start.IsZero() {
		return bars
	}
	idx := sort.Search(len(bars), func(i int) bool { return !bars[i].Date.Before(start) })
	return bars[idx:]
}

func readPriceFile(path string) ([]priceRow, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoPriceFile, path)
		}
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}
	cols := indexColumns(header)
	dateCol, ok := dateColumn(cols)
	if !ok {
		return nil, fmt.Errorf("%s: missing date column", path)
	}
	need := []string{FieldOpen, FieldHigh, FieldLow, FieldClose}
	for _, name := range need {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%s: missing %s column", path, name)
		}
	}
	byDate := make(map[time.Time]priceRow)
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		d, err := parseDate(rec[dateCol])
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		var vals [4]float64
		for i, name := range need {
			vals[i] = parseFloatOrZero(rec[cols[name]])
		}
		byDate[d] = priceRow{date: d, open: vals[0], high: vals[1], low: vals[2], close: vals[3]}
	}
	rows := make([]priceRow, 0, len(byDate))
	for _, row := range byDate {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].date.Before(rows[j].date) })
	return rows, nil
}

// readFactorFile 返回 日期→因子值。文件不存在时返回空表与 os.ErrNotExist。
func readFactorFile(path, factor string) (map[time.Time]nullable.Float, error) {
	out := make(map[time.Time]nullable.Float)
	f, err := os.Open(path)
	if err != nil {
		return out, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err != nil {
		return out, fmt.Errorf("read header %s: %w", path, err)
	}
	cols := indexColumns(header)
	dateCol, ok := dateColumn(cols)
	if !ok {
		return out, fmt.Errorf("%s: missing date column", path)
	}
	valCol, ok := cols[strings.ToLower(strings.TrimSpace(factor))]
	if !ok {
		return out, fmt.Errorf("%s: factor column %q not found", path, factor)
	}
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		d, err := parseDate(rec[dateCol])
		if err != nil {
			return out, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		out[d] = parseNullable(rec[valCol])
	}
	return out, nil
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, seen := cols[h]; !seen {
			cols[h] = i
		}
	}
	return cols
}

func dateColumn(cols map[string]int) (int, bool) {
	for _, name := range []string{"datetime", "date", "trade_date"} {
		if idx, ok := cols[name]; ok {
			return idx, true
		}
	}
	return 0, false
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func parseFloatOrZero(s string) float64 {
	return parseNullable(s).Or(0)
}

func parseNullable(s string) nullable.Float {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "na", "null", "none":
		return nullable.Null()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nullable.Null()
	}
	return nullable.Of(v)
}
