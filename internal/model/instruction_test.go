package model

import (
	"strings"
	"testing"
)

func TestNormalizeExpiry(t *testing.T) {
	const friday = "Feb 6, 2026 10:30 AM"    // 周五
	const wednesday = "Feb 4, 2026 10:30 AM" // 周三

	cases := []struct {
		name      string
		expiry    string
		timestamp string
		want      string
	}{
		{"已归一化", "260209", "", "260209"},
		{"月/日", "2/9", friday, "260209"},
		{"中文月日", "2月9日", friday, "260209"},
		{"今天", "今天", friday, "260206"},
		{"本周", "本周", wednesday, "260206"},
		{"下周", "下周", wednesday, "260213"},
		// 周五的"本周"滚动到下一个周五, "下周"再往后一周
		{"周五的本周", "本周", friday, "260213"},
		{"周五的下周", "下周", friday, "260220"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeExpiry(tc.expiry, tc.timestamp)
			if err != nil {
				t.Fatalf("归一化失败: %v", err)
			}
			if got != tc.want {
				t.Errorf("NormalizeExpiry(%q, %q) = %q, 期望 %q",
					tc.expiry, tc.timestamp, got, tc.want)
			}
		})
	}
}

func TestNormalizeExpiryRequiresMessageTime(t *testing.T) {
	// 消息时间不可解析时不允许落回挂钟时间
	for _, expiry := range []string{"本周", "下周", "今天", "2/9"} {
		if _, err := NormalizeExpiry(expiry, "不是时间戳"); err == nil {
			t.Errorf("NormalizeExpiry(%q) 无消息时间应返回错误", expiry)
		}
	}
}

func TestNeedsCompletion(t *testing.T) {
	buy := &Instruction{Type: Buy}
	if buy.NeedsCompletion() {
		t.Error("BUY 不需要补全")
	}
	optSell := &Instruction{Type: Sell, Ticker: "TSLA"}
	if !optSell.NeedsCompletion() {
		t.Error("缺行权价/到期日的期权卖出需要补全")
	}
	// 股票类指令解析时即带完整代码, 无行权价与到期日也不需要补全
	stockSell := &Instruction{Type: Sell, Ticker: "PLTR", Symbol: "PLTR.US"}
	if stockSell.NeedsCompletion() {
		t.Error("已带代码的股票卖出不需要补全")
	}
}

func TestOptionSymbol(t *testing.T) {
	if got := OptionSymbol("TSLA", Call, 440, "260209"); got != "TSLA260209C440000.US" {
		t.Errorf("代码 = %q", got)
	}
	if got := OptionSymbol("INTC", Put, 48.5, "260206"); got != "INTC260206P48500.US" {
		t.Errorf("代码 = %q", got)
	}
}

func TestInstructionString(t *testing.T) {
	in := &Instruction{Type: Buy, Ticker: "TSLA", Option: Call, Strike: 440, Price: 3.1, Expiry: "260209"}
	if s := in.String(); !strings.Contains(s, "TSLA") || !strings.Contains(s, "买入") {
		t.Errorf("展示文本异常: %q", s)
	}
}
