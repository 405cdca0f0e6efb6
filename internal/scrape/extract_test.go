package scrape

import (
	"context"
	"testing"
	"time"

	"sigtrader/internal/model"
	"sigtrader/internal/session"
)

const samplePage = `
<html><body>
<div data-message-id="m1" data-has-message-above="false" data-has-message-below="true">
  <span>xiaozhaolucky</span>
  <span>Feb 6, 2026 10:30 AM</span>
  <p>TSLA 440c 2/9 3.1</p>
</div>
<div data-message-id="m2" data-has-message-above="true" data-has-message-below="false">
  <p>止损在2.9</p>
  <p>由 12 阅读</p>
</div>
<div data-message-id="m3">
  <blockquote>TSLA 440c 2/9 3.1</blockquote>
  <span>trader_b</span>
  <span>Feb 6, 2026 11:00 AM</span>
  <p>2.5附近出1/3</p>
</div>
</body></html>`

func TestExtractMessages(t *testing.T) {
	msgs, err := Extract(samplePage)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("消息数 = %d, 期望 3", len(msgs))
	}

	m1 := msgs[0]
	if m1.DomID != "m1" || m1.Content != "TSLA 440c 2/9 3.1" {
		t.Errorf("m1 = %+v", m1)
	}
	if m1.Author != "xiaozhaolucky" {
		t.Errorf("m1 作者 = %q, 期望 xiaozhaolucky", m1.Author)
	}
	if m1.Timestamp != "Feb 6, 2026 10:30 AM" {
		t.Errorf("m1 时间 = %q", m1.Timestamp)
	}
	if m1.Position != model.PositionFirst {
		t.Errorf("m1 位置 = %s, 期望 first", m1.Position)
	}

	m2 := msgs[1]
	if m2.Content != "止损在2.9" {
		t.Errorf("m2 内容 = %q, 阅读量行应被过滤", m2.Content)
	}
	if !m2.HasAbove || m2.Position != model.PositionLast {
		t.Errorf("m2 相邻标记异常: %+v", m2)
	}
	if m2.Author != "xiaozhaolucky" || m2.Timestamp != "Feb 6, 2026 10:30 AM" {
		t.Errorf("m2 未继承链首作者/时间: author=%q ts=%q", m2.Author, m2.Timestamp)
	}
	if len(m2.History) != 1 || m2.History[0] != "TSLA 440c 2/9 3.1" {
		t.Errorf("m2 历史 = %v, 期望 [TSLA 440c 2/9 3.1]", m2.History)
	}

	m3 := msgs[2]
	if m3.Refer != "TSLA 440c 2/9 3.1" {
		t.Errorf("m3 引用 = %q", m3.Refer)
	}
	if m3.Content != "2.5附近出1/3" {
		t.Errorf("m3 内容 = %q, 引用文本应被剔除", m3.Content)
	}
}

func TestExtractChainInheritance(t *testing.T) {
	page := `
<html><body>
<div data-message-id="a1" data-has-message-below="true">
  <span>trader_a</span>
  <span>Feb 6, 2026 10:30 AM</span>
  <p>NVDA 145c 2/9 2.0</p>
</div>
<div data-message-id="a2" data-has-message-above="true" data-has-message-below="true">
  <p>小仓位</p>
</div>
<div data-message-id="a3" data-has-message-above="true">
  <p>止损1.8</p>
</div>
<div data-message-id="b1">
  <span>trader_b</span>
  <span>Feb 6, 2026 11:00 AM</span>
  <p>AMD 120c 2/9 1.2</p>
</div>
</body></html>`

	msgs, err := Extract(page)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("消息数 = %d, 期望 4", len(msgs))
	}

	a3 := msgs[2]
	if a3.Author != "trader_a" || a3.Timestamp != "Feb 6, 2026 10:30 AM" {
		t.Errorf("链尾未继承链首头部: author=%q ts=%q", a3.Author, a3.Timestamp)
	}
	if len(a3.History) != 2 || a3.History[0] != "NVDA 145c 2/9 2.0" || a3.History[1] != "小仓位" {
		t.Errorf("链尾历史 = %v, 期望链内全部更早消息", a3.History)
	}

	// 新链开始后不再继承上一链
	b1 := msgs[3]
	if b1.Author != "trader_b" || len(b1.History) != 0 {
		t.Errorf("新链不应继承上一链: author=%q history=%v", b1.Author, b1.History)
	}
}

// stubSource 固定返回同一页面。
type stubSource struct{ html string }

func (s *stubSource) HTML(ctx context.Context) (string, error) { return s.html, nil }

func TestMonitorProcessesNewMessagesOnce(t *testing.T) {
	sess := session.New(session.Options{}, nil, nil)
	m := NewMonitor("test", &stubSource{html: samplePage}, sess, time.Second, false)

	ctx := context.Background()
	if err := m.poll(ctx); err != nil {
		t.Fatalf("轮询失败: %v", err)
	}
	got := len(sess.Records()) + len(sess.Discards())
	if got != 3 {
		t.Fatalf("处理数 = %d, 期望 3", got)
	}

	// 同一页面再轮询一次不应重复处理
	if err := m.poll(ctx); err != nil {
		t.Fatalf("轮询失败: %v", err)
	}
	if again := len(sess.Records()) + len(sess.Discards()); again != got {
		t.Errorf("重复处理: %d -> %d", got, again)
	}
}

func TestMonitorSkipInitial(t *testing.T) {
	sess := session.New(session.Options{}, nil, nil)
	m := NewMonitor("test", &stubSource{html: samplePage}, sess, time.Second, true)

	ctx := context.Background()
	if err := m.markExisting(ctx); err != nil {
		t.Fatalf("初始快照失败: %v", err)
	}
	if err := m.poll(ctx); err != nil {
		t.Fatalf("轮询失败: %v", err)
	}
	if n := len(sess.Records()) + len(sess.Discards()); n != 0 {
		t.Errorf("历史消息不应被处理: %d", n)
	}
}
