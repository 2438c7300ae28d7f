package report

import (
	"bytes"
	"fmt"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/Gfz-arka/MFE-5250/internal/backtest"
	"github.com/Gfz-arka/MFE-5250/internal/event"
	"github.com/Gfz-arka/MFE-5250/internal/market"
)

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorBull          = "#34d399"
	colorBear          = "#f87171"

	chartWidthPx   = 1400
	equityHeightPx = 520
	stockHeightPx  = 520
)

// Series 是一条按日期排列的曲线。
type Series struct {
	Name   string
	Dates  []string
	Values []float64
}

// Marker 标注一次买入/退出成交。
type Marker struct {
	Date      string
	Price     float64
	Direction event.Direction
}

// StockPanel 为单个标的的 K 线与成交标记。
type StockPanel struct {
	Symbol  string
	Bars    []market.Bar
	Markers []Marker
}

// PageInput 描述一个报告页面。
type PageInput struct {
	Title    string
	Subtitle string
	Layers   []Series
	Stock    *StockPanel
}

// LayerSeries 取分层结果的累计净值曲线。
func LayerSeries(res *backtest.LayerResult) Series {
	s := Series{Name: fmt.Sprintf("layer %d", res.Layer)}
	for _, p := range res.Equity {
		s.Dates = append(s.Dates, p.Date.Format(market.DateLayout))
		s.Values = append(s.Values, p.Equity)
	}
	return s
}

// MarkersFor 从成交记录中提取某标的的买卖点。
func MarkersFor(res *backtest.LayerResult, symbol string) []Marker {
	var out []Marker
	for _, r := range res.Executions {
		if r.Symbol != symbol {
			continue
		}
		out = append(out, Marker{Date: r.Date.Format(market.DateLayout), Price: r.Price, Direction: r.Direction})
	}
	return out
}

// BuildPage 渲染 HTML：各层净值叠加在一张折线图上，可选附加个股 K 线。
func BuildPage(input PageInput) ([]byte, error) {
	if len(input.Layers) == 0 {
		return nil, fmt.Errorf("no equity series to render")
	}
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.PageTitle = input.Title
	page.AddCharts(buildEquityChart(input))
	if input.Stock != nil && len(input.Stock.Bars) > 0 {
		page.AddCharts(buildStockChart(*input.Stock))
	}
	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func initOpts(height int) opts.Initialization {
	return opts.Initialization{
		Theme:           types.ThemeWesteros,
		Width:           fmt.Sprintf("%dpx", chartWidthPx),
		Height:          fmt.Sprintf("%dpx", height),
		BackgroundColor: colorBackground,
	}
}

func buildEquityChart(input PageInput) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(equityHeightPx)),
		charts.WithTitleOpts(opts.Title{
			Title:         input.Title,
			Subtitle:      input.Subtitle,
			Left:          "left",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "30", TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", AxisLabel: &opts.AxisLabel{Color: colorTextSecondary}}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:      "equity",
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	// 各层日期可能不同（起始点），以最长的一条为横轴
	axis := input.Layers[0].Dates
	for _, s := range input.Layers[1:] {
		if len(s.Dates) > len(axis) {
			axis = s.Dates
		}
	}
	line.SetXAxis(axis)
	for _, s := range input.Layers {
		line.AddSeries(s.Name, alignSeries(axis, s), charts.WithLineStyleOpts(opts.LineStyle{Width: 2}))
	}
	return line
}

func alignSeries(axis []string, s Series) []opts.LineData {
	byDate := make(map[string]float64, len(s.Dates))
	for i, d := range s.Dates {
		byDate[d] = s.Values[i]
	}
	out := make([]opts.LineData, len(axis))
	for i, d := range axis {
		v, ok := byDate[d]
		if !ok || math.IsNaN(v) {
			out[i] = opts.LineData{Value: nil}
			continue
		}
		out[i] = opts.LineData{Value: round(v, 6)}
	}
	return out
}

func buildStockChart(panel StockPanel) *charts.Kline {
	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(stockHeightPx)),
		charts.WithTitleOpts(opts.Title{Title: panel.Symbol, Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", AxisLabel: &opts.AxisLabel{Color: colorTextSecondary}}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true), AxisLabel: &opts.AxisLabel{Color: colorTextSecondary}}),
	)
	kline.SetSeriesOptions(charts.WithItemStyleOpts(opts.ItemStyle{
		Color:        colorBull,
		Color0:       colorBear,
		BorderColor:  colorBull,
		BorderColor0: colorBear,
	}))

	axis := make([]string, len(panel.Bars))
	data := make([]opts.KlineData, len(panel.Bars))
	for i, b := range panel.Bars {
		axis[i] = b.Date.Format(market.DateLayout)
		data[i] = opts.KlineData{Value: [4]float64{b.Open, b.Close, b.Low, b.High}}
	}
	kline.SetXAxis(axis)
	kline.AddSeries(panel.Symbol, data)

	if len(panel.Markers) > 0 {
		scatter := charts.NewScatter()
		scatter.SetXAxis(axis)
		scatter.AddSeries("Buy", markerData(axis, panel.Markers, event.DirectionLong),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: colorBull}))
		scatter.AddSeries("Exit", markerData(axis, panel.Markers, event.DirectionExit),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: colorBear}))
		kline.Overlap(scatter)
	}
	return kline
}

func markerData(axis []string, markers []Marker, dir event.Direction) []opts.ScatterData {
	prices := make(map[string]float64)
	for _, m := range markers {
		if m.Direction == dir {
			prices[m.Date] = m.Price
		}
	}
	out := make([]opts.ScatterData, len(axis))
	for i, d := range axis {
		if p, ok := prices[d]; ok {
			out[i] = opts.ScatterData{Value: p, Symbol: "triangle", SymbolSize: 12}
			continue
		}
		out[i] = opts.ScatterData{Value: nil}
	}
	return out
}

func round(val float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Round(val*scale) / scale
}
