// Package report 输出回测结果：CSV 明细、go-echarts 交互图表以及可选的 PNG 截图。
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/Gfz-arka/MFE-5250/internal/backtest"
	"github.com/Gfz-arka/MFE-5250/internal/execution"
	"github.com/Gfz-arka/MFE-5250/internal/market"
	"github.com/Gfz-arka/MFE-5250/internal/portfolio"
)

var equityHeader = []string{"date", "cash", "commission", "total", "returns", "equity_curve"}

var executionHeader = []string{"date", "symbol", "direction", "side", "quantity", "price", "commission", "signal_id", "order_id"}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// WriteEquityCSV 写出权益曲线，列顺序固定，保证相同输入得到相同字节。
// 基础列之后按标的名排序追加各标的持仓市值。
func WriteEquityCSV(w io.Writer, curve []portfolio.EquityPoint) error {
	symbols := holdingSymbols(curve)
	cw := csv.NewWriter(w)
	if err := cw.Write(append(slices.Clone(equityHeader), symbols...)); err != nil {
		return err
	}
	for _, p := range curve {
		row := []string{
			p.Date.Format(market.DateLayout),
			formatFloat(p.Cash),
			formatFloat(p.Commission),
			formatFloat(p.Total),
			formatFloat(p.Returns),
			formatFloat(p.Equity),
		}
		for _, sym := range symbols {
			row = append(row, formatFloat(p.Holdings[sym]))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func holdingSymbols(curve []portfolio.EquityPoint) []string {
	set := make(map[string]struct{})
	for _, p := range curve {
		for sym := range p.Holdings {
			set[sym] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(set))
}

// WriteExecutionsCSV 每笔成交一行。
func WriteExecutionsCSV(w io.Writer, records []execution.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(executionHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Date.Format(market.DateLayout),
			r.Symbol,
			string(r.Direction),
			string(r.Side),
			strconv.FormatInt(r.Quantity, 10),
			formatFloat(r.Price),
			formatFloat(r.Commission),
			strconv.FormatInt(r.SignalID, 10),
			strconv.FormatInt(r.OrderID, 10),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteLayerCSV 写出 equity_layer<N>.csv 与 executions_layer<N>.csv，返回文件路径。
func WriteLayerCSV(dir string, res *backtest.LayerResult) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	equityPath := filepath.Join(dir, fmt.Sprintf("equity_layer%d.csv", res.Layer))
	if err := writeFile(equityPath, func(w io.Writer) error { return WriteEquityCSV(w, res.Equity) }); err != nil {
		return nil, err
	}
	execPath := filepath.Join(dir, fmt.Sprintf("executions_layer%d.csv", res.Layer))
	if err := writeFile(execPath, func(w io.Writer) error { return WriteExecutionsCSV(w, res.Executions) }); err != nil {
		return nil, err
	}
	return []string{equityPath, execPath}, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("写入 %s 失败: %w", path, err)
	}
	return f.Close()
}
