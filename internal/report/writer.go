package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Gfz-arka/MFE-5250/internal/backtest"
	"github.com/Gfz-arka/MFE-5250/internal/logger"
	"github.com/Gfz-arka/MFE-5250/internal/market"
)

// HTMLFile 为分层对比页面的文件名。
const HTMLFile = "factor_layers.html"

// PNGFile 为分层对比页面截图的文件名。
const PNGFile = "factor_layers.png"

// Options 控制报告输出。
type Options struct {
	Dir  string
	HTML bool
	PNG  bool
	// StockSymbol 非空时附加该标的的 K 线及买卖点，取第一层的成交
	StockSymbol string
}

// Writer 把一次运行的全部分层结果写到目录。
type Writer struct {
	opts Options
}

func NewWriter(opts Options) *Writer {
	if strings.TrimSpace(opts.Dir) == "" {
		opts.Dir = "results"
	}
	return &Writer{opts: opts}
}

// Dir 返回输出目录。
func (w *Writer) Dir() string { return w.opts.Dir }

// Write 输出 CSV、HTML 与可选 PNG，返回写出的文件路径。
// PNG 失败（本机无浏览器）只记录告警，不影响其他产物。
func (w *Writer) Write(ctx context.Context, title string, results []*backtest.LayerResult, table *market.Table) ([]string, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("no layer results to write")
	}
	var files []string
	for _, res := range results {
		paths, err := WriteLayerCSV(w.opts.Dir, res)
		if err != nil {
			return files, err
		}
		files = append(files, paths...)
	}
	if !w.opts.HTML && !w.opts.PNG {
		return files, nil
	}

	html, err := BuildPage(w.pageInput(title, results, table))
	if err != nil {
		return files, err
	}
	if w.opts.HTML {
		path := filepath.Join(w.opts.Dir, HTMLFile)
		if err := os.WriteFile(path, html, 0o644); err != nil {
			return files, err
		}
		files = append(files, path)
	}
	if w.opts.PNG {
		if err := EnsureHeadlessAvailable(ctx); err != nil {
			logger.Warnf("[report] 跳过 PNG 报告，无头浏览器不可用: %v", err)
			return files, nil
		}
		png, err := RenderPNG(ctx, html, chartWidthPx, equityHeightPx+stockHeightPx)
		if err != nil {
			logger.Warnf("[report] 渲染 PNG 报告失败: %v", err)
			return files, nil
		}
		path := filepath.Join(w.opts.Dir, PNGFile)
		if err := os.WriteFile(path, png, 0o644); err != nil {
			return files, err
		}
		files = append(files, path)
	}
	return files, nil
}

func (w *Writer) pageInput(title string, results []*backtest.LayerResult, table *market.Table) PageInput {
	input := PageInput{Title: title}
	first := results[0]
	input.Subtitle = fmt.Sprintf("%s · factor=%s · layers=%d", first.Strategy, first.Factor, len(results))
	for _, res := range results {
		input.Layers = append(input.Layers, LayerSeries(res))
	}
	if w.opts.StockSymbol != "" && table != nil {
		if bars, ok := table.Bars(w.opts.StockSymbol); ok {
			input.Stock = &StockPanel{
				Symbol:  w.opts.StockSymbol,
				Bars:    bars,
				Markers: MarkersFor(first, w.opts.StockSymbol),
			}
		}
	}
	return input
}
