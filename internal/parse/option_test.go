package parse

import (
	"math"
	"testing"

	"sigtrader/internal/model"
)

func TestParseOptionBuy(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		ticker string
		opt    model.OptionType
		strike float64
		expiry string
		price  float64
	}{
		{"完整格式", "INTC - $48 CALLS 本周 $1.2", "INTC", model.Call, 48, "本周", 1.2},
		{"紧凑格式", "TSLA 440c 2/9 3.1", "TSLA", model.Call, 440, "2/9", 3.1},
		{"紧凑put", "SPY 450p 本周 2.1", "SPY", model.Put, 450, "本周", 2.1},
		{"小写", "msft 330 call 下周 2.8", "MSFT", model.Call, 330, "下周", 2.8},
		{"中文日期", "NVDA - $145 CALLS 2月21日 $3.5", "NVDA", model.Call, 145, "2月21日", 3.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := ParseOption(tc.text)
			if in == nil {
				t.Fatalf("未解析出指令: %q", tc.text)
			}
			if in.Type != model.Buy {
				t.Fatalf("类型 = %s, 期望 BUY", in.Type)
			}
			if in.Ticker != tc.ticker || in.Option != tc.opt || in.Strike != tc.strike {
				t.Errorf("合约 = %s %v %g, 期望 %s %v %g",
					in.Ticker, in.Option, in.Strike, tc.ticker, tc.opt, tc.strike)
			}
			if in.Expiry != tc.expiry {
				t.Errorf("到期 = %q, 期望 %q", in.Expiry, tc.expiry)
			}
			if in.Price != tc.price {
				t.Errorf("价格 = %g, 期望 %g", in.Price, tc.price)
			}
		})
	}
}

func TestParseOptionBuyExtras(t *testing.T) {
	in := ParseOption("INTC - $48 CALLS 本周 $1.2 小仓位 止损0.95")
	if in == nil || in.Type != model.Buy {
		t.Fatalf("未解析出买入指令: %+v", in)
	}
	if in.PosSize != "小仓位" {
		t.Errorf("仓位 = %q, 期望 小仓位", in.PosSize)
	}
	if in.StopLoss != 0.95 {
		t.Errorf("止损 = %g, 期望 0.95", in.StopLoss)
	}
}

func TestParseOptionBuyPriceRange(t *testing.T) {
	in := ParseOption("AMD - $120 CALLS 本周 $1.2-1.4")
	if in == nil || in.PriceRng == nil {
		t.Fatalf("未解析出价格区间: %+v", in)
	}
	if in.PriceRng.Low != 1.2 || in.PriceRng.High != 1.4 {
		t.Errorf("区间 = %+v, 期望 [1.2, 1.4]", in.PriceRng)
	}
	if mid := in.EffectivePrice(); math.Abs(mid-1.3) > 1e-9 {
		t.Errorf("中间价 = %g, 期望 1.3", mid)
	}
}

func TestParseOptionSell(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		qty    string
		price  float64
		ticker string
	}{
		{"份额中文", "NVDA 2.25 出三分之一", "1/3", 2.25, "NVDA"},
		{"份额分数", "2.5附近出1/3 本周call仓位", "1/3", 2.5, ""},
		{"百分比", "INTC 1.5出50%", "50%", 1.5, "INTC"},
		{"出一半", "3.1左右出一半", "1/2", 3.1, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := ParseOption(tc.text)
			if in == nil {
				t.Fatalf("未解析出指令: %q", tc.text)
			}
			if in.Type != model.Sell {
				t.Fatalf("类型 = %s, 期望 SELL (含 call 字样也不应判为买入)", in.Type)
			}
			if in.SellQty != tc.qty {
				t.Errorf("数量 = %q, 期望 %q", in.SellQty, tc.qty)
			}
			if in.Price != tc.price {
				t.Errorf("价格 = %g, 期望 %g", in.Price, tc.price)
			}
			if in.Ticker != tc.ticker {
				t.Errorf("标的 = %q, 期望 %q", in.Ticker, tc.ticker)
			}
		})
	}
}

func TestParseOptionClose(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		price float64
	}{
		{"全部出", "1.35 全部出", 1.35},
		{"都出", "2.8附近都出", 2.8},
		{"出剩下", "1.35出剩下的", 1.35},
		{"无价格", "全出", 0},
		{"份额全部", "3.0出全部", 3.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := ParseOption(tc.text)
			if in == nil {
				t.Fatalf("未解析出指令: %q", tc.text)
			}
			if in.Type != model.Close {
				t.Fatalf("类型 = %s, 期望 CLOSE", in.Type)
			}
			if in.Price != tc.price {
				t.Errorf("价格 = %g, 期望 %g", in.Price, tc.price)
			}
		})
	}
}

func TestParseOptionModify(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		stopLoss float64
		takeProf float64
		ticker   string
	}{
		{"止损在", "止损在2.9", 2.9, 0, ""},
		{"SL简写", "SL 1.5", 1.5, 0, ""},
		{"调高止损", "止损提高到3.2", 3.2, 0, ""},
		{"价格在前", "2.5止损剩下的ba 横盘有磨损了", 2.5, 0, "BA"},
		{"价格在前SL", "1.8SL剩下的nvda", 1.8, 0, "NVDA"},
		{"价格在前无标的", "0.95止损", 0.95, 0, ""},
		{"止盈", "止盈在4.5", 0, 4.5, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := ParseOption(tc.text)
			if in == nil {
				t.Fatalf("未解析出指令: %q", tc.text)
			}
			if in.Type != model.Modify {
				t.Fatalf("类型 = %s, 期望 MODIFY", in.Type)
			}
			if in.StopLoss != tc.stopLoss {
				t.Errorf("止损 = %g, 期望 %g", in.StopLoss, tc.stopLoss)
			}
			if in.TakeProf != tc.takeProf {
				t.Errorf("止盈 = %g, 期望 %g", in.TakeProf, tc.takeProf)
			}
			if in.Ticker != tc.ticker {
				t.Errorf("标的 = %q, 期望 %q", in.Ticker, tc.ticker)
			}
		})
	}
}

func TestParseOptionUnrecognized(t *testing.T) {
	for _, text := range []string{"今天行情不错", "大家早上好", "关注一下科技股"} {
		if in := ParseOption(text); in != nil {
			t.Errorf("%q 不应解析出指令, 得到 %+v", text, in)
		}
	}
}

func TestExtractTicker(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"$TSLA 看涨", "TSLA"},
		{"INTC - $48 CALLS", "INTC"},
		{"TSLA 440c 本周", "TSLA"},
		{"xiaozhaoluckyGILD 440c 本周", "GILD"},
		{"NVDA 2.25 出三分之一", "NVDA"},
		{"这个CALL很不错", ""},
		{"随便聊聊", ""},
	}
	for _, tc := range cases {
		if got := ExtractTicker(tc.text); got != tc.want {
			t.Errorf("ExtractTicker(%q) = %q, 期望 %q", tc.text, got, tc.want)
		}
	}
}

func TestClassifyKind(t *testing.T) {
	cases := []struct {
		text string
		want model.MessageKind
	}{
		{"INTC - $48 CALLS 本周 $1.2", model.KindEntry},
		{"TSLA 440c 3.1", model.KindEntry},
		{"2.25 出三分之一", model.KindExit},
		{"止损提高到3.2", model.KindUpdate},
		// 卖出消息常带 call 字样，必须先按卖出判定
		{"2.5附近出1/3 本周call仓位", model.KindExit},
		{"横盘中", model.KindUpdate},
	}
	for _, tc := range cases {
		if got := ClassifyKind(tc.text); got != tc.want {
			t.Errorf("ClassifyKind(%q) = %s, 期望 %s", tc.text, got, tc.want)
		}
	}
}
