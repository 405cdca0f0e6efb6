package match

import "testing"

func TestCleanQuote(t *testing.T) {
	cases := []struct {
		name  string
		quote string
		want  string
	}{
		{"头像占位", "X 440c 本周", "440c 本周"},
		{"作者名前缀", "xiaozhaoluckyGILD 440c 本周", "GILD 440c 本周"},
		{"保留 X 开头的代码", "XOM 回吸 105", "XOM 回吸 105"},
		{"去时间戳", "GILD 440c • Feb 6, 2026 10:30 AM 本周", "GILD 440c 本周"},
		{"空引用", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CleanQuote(tc.quote); got != tc.want {
				t.Errorf("CleanQuote(%q) = %q, 期望 %q", tc.quote, got, tc.want)
			}
		})
	}
}

func TestExtractKeyInfo(t *testing.T) {
	info := ExtractKeyInfo("TSLA 440 CALLS 止损 2.9")
	if len(info.Symbols) != 1 || info.Symbols[0] != "TSLA" {
		t.Errorf("Symbols = %v, 期望 [TSLA]", info.Symbols)
	}
	hasStop := false
	for _, a := range info.Actions {
		if a == "STOP" {
			hasStop = true
		}
	}
	if !hasStop {
		t.Errorf("Actions = %v, 期望包含 STOP", info.Actions)
	}
}

func TestSimilarity(t *testing.T) {
	// 同代码同价格的近似文本得分高，无关文本得分低
	high := Similarity("TSLA 440 看涨", "TSLA 440c 2/9 3.1")
	low := Similarity("TSLA 440 看涨", "今天聊点别的")
	if high < 0.3 {
		t.Errorf("近似文本得分 %.2f, 期望 >= 0.3", high)
	}
	if low >= high {
		t.Errorf("无关文本得分 %.2f 不应高于近似文本 %.2f", low, high)
	}
	if Similarity("", "任意文本") != 0 {
		t.Error("空文本得分应为 0")
	}
}

func TestBestMatch(t *testing.T) {
	candidates := []Candidate{
		{ID: "c1", Content: "今天聊点别的"},
		{ID: "c2", Content: "TSLA 440c 2/9 3.1"},
	}
	best, score := BestMatch("TSLA 440 看涨", candidates, 0.3)
	if best == nil || best.ID != "c2" {
		t.Fatalf("best = %+v, 期望 c2", best)
	}
	if score < 0.3 {
		t.Errorf("score = %.2f, 期望 >= 0.3", score)
	}

	// 清洗后不足 5 个字符的引用不参与匹配
	if got, _ := BestMatch("X 44", candidates, 0.3); got != nil {
		t.Errorf("过短引用不应命中: %+v", got)
	}
}

func TestMatchWithContextFallsBack(t *testing.T) {
	candidates := []Candidate{
		{ID: "c1", Content: "TSLA 440c 2/9 3.1", Author: "trader_a", Timestamp: "Feb 6, 2026 10:00 AM"},
		{ID: "c2", Content: "AMD 120c 2/9 1.2", Author: "trader_b", Timestamp: "Feb 5, 2026 09:00 AM"},
	}

	// 作者命中时在上下文池内匹配
	best, _ := MatchWithContext("TSLA 440 看涨", candidates, "trader_a", "", 0.3)
	if best == nil || best.ID != "c1" {
		t.Fatalf("best = %+v, 期望 c1", best)
	}

	// 作者与日期都不匹配时回退到全量候选
	best, _ = MatchWithContext("TSLA 440 看涨", candidates, "trader_z", "Jan 1, 2026", 0.3)
	if best == nil || best.ID != "c1" {
		t.Fatalf("回退匹配 best = %+v, 期望 c1", best)
	}
}
