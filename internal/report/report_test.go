package report

import (
	"os"
	"strings"
	"testing"
	"time"

	"sigtrader/internal/broker"
	"sigtrader/internal/model"
)

func TestGenerateReport(t *testing.T) {
	records := []*model.Record{
		{Index: 1, OrderID: "o1"},
		{Index: 2, Skip: model.SkipParseFailure},
		{Index: 3, Skip: model.SkipMarketData},
	}
	base := time.Date(2026, 2, 6, 10, 0, 0, 0, time.UTC)
	orders := []*broker.Order{
		{Side: broker.SideBuy, Price: 3.1, Executed: 2, SubmittedAt: base},
		{Side: broker.SideSell, Price: 3.6, Executed: 1, SubmittedAt: base.Add(time.Hour)},
		{Side: broker.SideSell, Price: 3.4, Executed: 1, SubmittedAt: base.Add(2 * time.Hour)},
	}

	g := New(t.TempDir(), 2)
	path, err := g.Generate(records, orders)
	if err != nil {
		t.Fatalf("生成失败: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取报告失败: %v", err)
	}
	html := string(data)
	for _, want := range []string{"指令处理结果", "资金流水", "SMA2"} {
		if !strings.Contains(html, want) {
			t.Errorf("报告缺少 %q", want)
		}
	}
}

func TestGenerateEmptyReport(t *testing.T) {
	g := New(t.TempDir(), 5)
	if _, err := g.Generate(nil, nil); err != nil {
		t.Fatalf("空数据也应能生成: %v", err)
	}
}
