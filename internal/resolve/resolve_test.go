package resolve

import (
	"testing"

	"sigtrader/internal/model"
)

func rawMsg(domID, content, author, ts string) *model.RawMessage {
	return &model.RawMessage{DomID: domID, Content: content, Author: author, Timestamp: ts}
}

func TestResolveFromGroupHistory(t *testing.T) {
	entry := rawMsg("m1", "TSLA 440c 2/9 3.1", "trader_a", "Feb 6, 2026 10:30 AM")
	grp := model.NewTradeGroup("g1", "TSLA")
	grp.Add(entry, model.KindEntry)

	msg := rawMsg("m2", "止损在2.9", "trader_a", "Feb 6, 2026 10:35 AM")
	in := &model.Instruction{Type: model.Modify, StopLoss: 2.9}

	if err := New(10, 0.3).Resolve(in, msg, grp, nil); err != nil {
		t.Fatalf("补全失败: %v", err)
	}
	if in.Ticker != "TSLA" || in.Strike != 440 || in.Option != model.Call {
		t.Errorf("合约 = %s %g %v, 期望 TSLA 440 CALL", in.Ticker, in.Strike, in.Option)
	}
	if in.Expiry != "260209" {
		t.Errorf("到期 = %q, 期望 260209", in.Expiry)
	}
	if in.Symbol != "TSLA260209C440000.US" {
		t.Errorf("代码 = %q, 期望 TSLA260209C440000.US", in.Symbol)
	}
	if in.Source != model.SourceGroupHistory {
		t.Errorf("来源 = %s, 期望 group_history", in.Source)
	}
	if in.StopLoss != 2.9 {
		t.Errorf("止损被改写: %g", in.StopLoss)
	}
}

func TestResolveLoosenedTickerMatch(t *testing.T) {
	entry := rawMsg("m1", "NVDA 145c 2/9 2.0", "trader_a", "Feb 6, 2026 10:00 AM")
	grp := model.NewTradeGroup("g1", "NVDA")
	grp.Add(entry, model.KindEntry)

	msg := rawMsg("m2", "2.5止损剩下的ba", "trader_a", "Feb 6, 2026 10:30 AM")
	in := &model.Instruction{Type: model.Modify, Ticker: "BA", StopLoss: 2.5}

	if err := New(10, 0.3).Resolve(in, msg, grp, nil); err != nil {
		t.Fatalf("补全失败: %v", err)
	}
	// 标的不改写，其余要素从组内唯一的买入借用
	if in.Ticker != "BA" {
		t.Errorf("标的被改写: %q", in.Ticker)
	}
	if in.Strike != 145 || in.Expiry != "260209" {
		t.Errorf("要素 = %g %q, 期望 145 260209", in.Strike, in.Expiry)
	}
}

func TestResolveFromQuote(t *testing.T) {
	msg := rawMsg("m2", "1.35出剩下的", "trader_b", "Feb 6, 2026 11:00 AM")
	msg.Refer = "INTC - $48 CALLS 本周 $1.2"
	in := &model.Instruction{Type: model.Close, Price: 1.35}

	if err := New(10, 0.3).Resolve(in, msg, nil, nil); err != nil {
		t.Fatalf("补全失败: %v", err)
	}
	if in.Ticker != "INTC" || in.Strike != 48 {
		t.Errorf("合约 = %s %g, 期望 INTC 48", in.Ticker, in.Strike)
	}
	if in.Source != model.SourceQuoted {
		t.Errorf("来源 = %s, 期望 quoted", in.Source)
	}
}

func TestResolveFromQuoteFuzzyMatch(t *testing.T) {
	// 引用文本本身解析不出买入，但能在回看窗口里模糊匹配到原始消息。
	// 窗口里另有一条更近的买入，命中引用层即不再回退到回看层。
	recent := []*model.RawMessage{
		rawMsg("m3", "AMD 120c 2/9 1.2", "trader_a", "Feb 6, 2026 10:20 AM"),
		rawMsg("m1", "TSLA 440c 2/9 3.1", "trader_a", "Feb 6, 2026 10:00 AM"),
	}
	msg := rawMsg("m4", "止损在2.9", "trader_b", "Feb 6, 2026 10:30 AM")
	msg.Refer = "xiaozhaolucky TSLA 440 看涨 • Feb 6"
	in := &model.Instruction{Type: model.Modify, StopLoss: 2.9}

	if err := New(10, 0.3).Resolve(in, msg, nil, recent); err != nil {
		t.Fatalf("补全失败: %v", err)
	}
	if in.Ticker != "TSLA" {
		t.Errorf("应命中被引用的 TSLA, 得到 %q", in.Ticker)
	}
	if in.Source != model.SourceQuoted {
		t.Errorf("来源 = %s, 期望 quoted", in.Source)
	}
}

func TestResolveConservativePicksNearest(t *testing.T) {
	// recent 新的在前：AMD 比 AAPL 更近
	recent := []*model.RawMessage{
		rawMsg("m3", "AMD 120c 2/9 1.2", "trader_a", "Feb 6, 2026 10:20 AM"),
		rawMsg("m2", "AAPL 230c 2/9 3.0", "trader_a", "Feb 6, 2026 10:00 AM"),
	}
	msg := rawMsg("m4", "止损提高到1.5", "trader_a", "Feb 6, 2026 10:30 AM")
	in := &model.Instruction{Type: model.Modify, StopLoss: 1.5}

	if err := New(10, 0.3).Resolve(in, msg, nil, recent); err != nil {
		t.Fatalf("补全失败: %v", err)
	}
	if in.Ticker != "AMD" {
		t.Errorf("应取最近的买入 AMD, 得到 %q", in.Ticker)
	}
	if in.Source != model.SourceLookback {
		t.Errorf("来源 = %s, 期望 lookback_window", in.Source)
	}
}

func TestResolveFailsWithoutContext(t *testing.T) {
	msg := rawMsg("m1", "止损在2.9", "trader_a", "Feb 6, 2026 10:30 AM")
	in := &model.Instruction{Type: model.Modify, StopLoss: 2.9}

	if err := New(10, 0.3).Resolve(in, msg, nil, nil); err == nil {
		t.Fatal("无上下文时应返回错误")
	}
}

func TestResolveBuyGeneratesSymbol(t *testing.T) {
	msg := rawMsg("m1", "TSLA 440c 2/9 3.1", "trader_a", "Feb 6, 2026 10:30 AM")
	in := &model.Instruction{
		Type: model.Buy, Ticker: "TSLA", Option: model.Call,
		Strike: 440, Expiry: "2/9", Price: 3.1,
	}
	if err := New(10, 0.3).Resolve(in, msg, nil, nil); err != nil {
		t.Fatalf("买入指令不应失败: %v", err)
	}
	if in.Symbol != "TSLA260209C440000.US" {
		t.Errorf("代码 = %q, 期望 TSLA260209C440000.US", in.Symbol)
	}
}

func TestResolveRelativeExpiryUsesMessageTime(t *testing.T) {
	// 2026-02-04 是周三，当周周五为 2026-02-06
	msg := rawMsg("m1", "INTC - $48 CALLS 本周 $1.2", "trader_a", "Feb 4, 2026 10:00 AM")
	in := &model.Instruction{
		Type: model.Buy, Ticker: "INTC", Option: model.Call,
		Strike: 48, Expiry: "本周", Price: 1.2,
	}
	if err := New(10, 0.3).Resolve(in, msg, nil, nil); err != nil {
		t.Fatalf("补全失败: %v", err)
	}
	if in.Expiry != "260206" {
		t.Errorf("到期 = %q, 期望 260206", in.Expiry)
	}
}
