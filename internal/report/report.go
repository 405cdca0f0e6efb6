package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	talib "github.com/markcheno/go-talib"

	"sigtrader/internal/broker"
	"sigtrader/internal/model"
	"sigtrader/internal/pkg/format"
)

// 中文说明：
// HTML 复盘报告：处理结果分布 + 资金流水曲线（带均线）。
// 输出单个自包含文件，直接浏览器打开。

// Generator 报告生成器。
type Generator struct {
	outputDir string
	smaPeriod int
}

// New 创建生成器。
func New(outputDir string, smaPeriod int) *Generator {
	if smaPeriod <= 0 {
		smaPeriod = 5
	}
	return &Generator{outputDir: outputDir, smaPeriod: smaPeriod}
}

// Generate 生成报告，返回文件路径。
func (g *Generator) Generate(records []*model.Record, orders []*broker.Order) (string, error) {
	if err := os.MkdirAll(g.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	page := components.NewPage()
	page.AddCharts(g.outcomeBar(records), g.cashflowLine(orders))

	path := filepath.Join(g.outputDir, fmt.Sprintf("report_%s.html", time.Now().Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("创建报告文件失败: %w", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		return "", fmt.Errorf("渲染报告失败: %w", err)
	}
	return path, nil
}

// outcomeBar 处理结果分布：已下单 / 各类跳过原因。
func (g *Generator) outcomeBar(records []*model.Record) *charts.Bar {
	counts := map[string]int{}
	executed := 0
	for _, rec := range records {
		if rec.Executed() {
			executed++
			continue
		}
		key := string(rec.Skip)
		if key == "" {
			key = "parsed_only"
		}
		counts[key]++
	}

	labels := []string{"executed", "parsed_only",
		string(model.SkipParseFailure), string(model.SkipResolutionFailure),
		string(model.SkipMarketData), string(model.SkipRiskRejection)}
	values := make([]opts.BarData, 0, len(labels))
	total := executed
	for _, c := range counts {
		total += c
	}
	for _, label := range labels {
		n := counts[label]
		if label == "executed" {
			n = executed
		}
		values = append(values, opts.BarData{Value: n})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "指令处理结果",
			Subtitle: fmt.Sprintf("共 %d 条, 执行率 %s", total, format.Percent(ratio(executed, total))),
		}),
	)
	bar.SetXAxis(labels).AddSeries("条数", values)
	return bar
}

// cashflowLine 按订单时间累计资金流水，叠加均线。
func (g *Generator) cashflowLine(orders []*broker.Order) *charts.Line {
	var xs []string
	var equity []float64
	cum := 0.0
	for _, o := range orders {
		amount := o.Price * float64(o.Executed) * 100
		if o.Side == broker.SideBuy {
			cum -= amount
		} else {
			cum += amount
		}
		xs = append(xs, o.SubmittedAt.Format("01-02 15:04"))
		equity = append(equity, cum)
	}

	line := charts.NewLine()
	subtitle := "无订单"
	if len(equity) > 0 {
		low, high := format.RangeSummary(equity)
		subtitle = fmt.Sprintf("区间 [%s, %s]", format.Float(low, 2), format.Float(high, 2))
	}
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "资金流水", Subtitle: subtitle}),
	)
	line.SetXAxis(xs).AddSeries("累计流水", lineData(equity))

	if len(equity) >= g.smaPeriod {
		sma := talib.Sma(equity, g.smaPeriod)
		line.AddSeries(fmt.Sprintf("SMA%d", g.smaPeriod), lineData(sma))
	}
	return line
}

func lineData(values []float64) []opts.LineData {
	out := make([]opts.LineData, len(values))
	for i, v := range values {
		out[i] = opts.LineData{Value: v}
	}
	return out
}

func ratio(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}
