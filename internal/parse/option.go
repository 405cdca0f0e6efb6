package parse

import (
	"regexp"
	"strconv"
	"strings"

	"sigtrader/internal/model"
)

// 中文说明：
// 期权指令解析。规则顺序即优先级：
// 卖出/清仓/改单类规则排在买入前面，否则"2.5附近出1/3 本周call"
// 这类消息会因含有 call 被误判为买入。

// portionMap 中文份额词到标准分数的映射。
var portionMap = map[string]string{
	"三分之一": "1/3",
	"三分之二": "2/3",
	"一半":   "1/2",
	"全部":   "全部",
}

var (
	rePositionSize = regexp.MustCompile(`(小仓位|中仓位|大仓位|轻仓|重仓|半仓|满仓)`)
	reEmbeddedSL   = regexp.MustCompile(`(?i)(?:止损|SL|stop\s*loss)\s*(?:在|到|至)?\s*(\d+(?:[.。]\d+)?)`)
	reCloseVerb    = regexp.MustCompile(`(?:全部出|全出|都出|出\s*(?:剩下|剩余)的?)`)
)

// optionRules 期权消息的有序规则表。
var optionRules = []Rule{
	{
		Name: "adjust_stop",
		Pattern: regexp.MustCompile(
			`(?i)(?:止损|SL|stop\s*loss)\s*(?:提高|调整|移动|上调)(?:到|至)?\s*(\d+(?:[.。]\d+)?)`),
		Build: func(m []string, raw string) *model.Instruction {
			return &model.Instruction{
				Type:     model.Modify,
				StopLoss: parsePrice(m[1]),
			}
		},
	},
	{
		Name: "take_profit_portion",
		Pattern: regexp.MustCompile(
			`(\d+(?:[.。]\d+)?)\s*(?:附近|左右)?\s*出\s*(?:剩下|剩余)?\s*(三分之一|三分之二|一半|全部|1/3|2/3|1/2|\d+%)`),
		Build: func(m []string, raw string) *model.Instruction {
			return sellByPortion(parsePrice(m[1]), m[2])
		},
	},
	{
		Name: "sell_portion",
		Pattern: regexp.MustCompile(
			`出\s*(?:剩下|剩余)?\s*(三分之一|三分之二|一半|全部|1/3|2/3|1/2|\d+%)`),
		Build: func(m []string, raw string) *model.Instruction {
			return sellByPortion(0, m[1])
		},
	},
	{
		Name: "close_all",
		Pattern: regexp.MustCompile(
			`(?:(\d+(?:[.。]\d+)?)\s*(?:附近|左右)?\s*)?(?:全部出|全出|都出|出\s*(?:剩下|剩余)的?)`),
		Build: func(m []string, raw string) *model.Instruction {
			if !reCloseVerb.MatchString(raw) {
				return nil
			}
			return &model.Instruction{
				Type:  model.Close,
				Price: parsePrice(m[1]),
			}
		},
	},
	{
		Name: "open",
		Pattern: regexp.MustCompile(
			`(?i)\b([A-Za-z]{1,5})\s*[-–]?\s*\$?(\d+(?:[.。]\d+)?)\s*(CALLS?|PUTS?)\s*` +
				`(?:(本周|下周|这周|当周|今天|\d{1,2}/\d{1,2}|\d{1,2}月\d{1,2}日?)\s*)?` +
				`\$?(\d+(?:[.。]\d+)?)(?:\s*[-~]\s*\$?(\d+(?:[.。]\d+)?))?`),
		Build: buildOpen,
	},
	{
		Name: "open_compact",
		Pattern: regexp.MustCompile(
			`(?i)\b([A-Za-z]{2,5})\s+(\d+(?:[.。]\d+)?)\s*([cp])\b\s*` +
				`(?:(本周|下周|这周|当周|今天|\d{1,2}/\d{1,2}|\d{1,2}月\d{1,2}日?)\s*)?` +
				`\$?(\d+(?:[.。]\d+)?)?(?:\s*[-~]\s*\$?(\d+(?:[.。]\d+)?))?`),
		Build: buildOpen,
	},
	{
		Name: "reverse_stop_loss",
		Pattern: regexp.MustCompile(
			`(?i)(\d+(?:[.。]\d+)?)\s*(?:止损|SL)(?:\s*剩下的?\s*([A-Za-z]{2,5}))?`),
		Build: func(m []string, raw string) *model.Instruction {
			in := &model.Instruction{
				Type:     model.Modify,
				StopLoss: parsePrice(m[1]),
			}
			if t := strings.ToUpper(m[2]); t != "" && !IsExcludedTicker(t) {
				in.Ticker = t
			}
			return in
		},
	},
	{
		Name: "stop_loss",
		Pattern: regexp.MustCompile(
			`(?i)(?:止损|SL|stop\s*loss)\s*(?:在|到|至)?\s*(\d+(?:[.。]\d+)?)`),
		Build: func(m []string, raw string) *model.Instruction {
			return &model.Instruction{
				Type:     model.Modify,
				StopLoss: parsePrice(m[1]),
			}
		},
	},
	{
		Name: "take_profit_target",
		Pattern: regexp.MustCompile(
			`(?i)(?:止盈|TP|take\s*profit)\s*(?:在|到|至)?\s*(\d+(?:[.。]\d+)?)`),
		Build: func(m []string, raw string) *model.Instruction {
			return &model.Instruction{
				Type:     model.Modify,
				TakeProf: parsePrice(m[1]),
			}
		},
	},
	{
		Name: "take_profit_reverse",
		Pattern: regexp.MustCompile(
			`(?i)(\d+(?:[.。]\d+)?)\s*(?:附近|左右)?\s*(?:止盈|TP)\b`),
		Build: func(m []string, raw string) *model.Instruction {
			return &model.Instruction{
				Type:     model.Modify,
				TakeProf: parsePrice(m[1]),
			}
		},
	},
}

// sellByPortion 按份额词构造卖出/清仓指令。"全部"等价于清仓。
func sellByPortion(price float64, portion string) *model.Instruction {
	if mapped, ok := portionMap[portion]; ok {
		portion = mapped
	}
	if portion == "全部" {
		return &model.Instruction{Type: model.Close, Price: price}
	}
	return &model.Instruction{
		Type:    model.Sell,
		Price:   price,
		SellQty: portion,
	}
}

// buildOpen 从 open/open_compact 的分组构造买入指令。
// 分组：1 ticker, 2 行权价, 3 CALL/PUT, 4 到期, 5 价格, 6 价格区间上限。
func buildOpen(m []string, raw string) *model.Instruction {
	ticker := strings.ToUpper(m[1])
	if IsExcludedTicker(ticker) {
		return nil
	}
	in := &model.Instruction{
		Type:   model.Buy,
		Ticker: ticker,
		Strike: parsePrice(m[2]),
		Expiry: m[4],
	}
	switch strings.ToUpper(m[3])[:1] {
	case "C":
		in.Option = model.Call
	case "P":
		in.Option = model.Put
	}
	low := parsePrice(m[5])
	if high := parsePrice(m[6]); high > 0 {
		if high < low {
			low, high = high, low
		}
		in.PriceRng = &model.Range{Low: low, High: high}
	} else {
		in.Price = low
	}
	// 同一条消息里常附带止损与仓位说明
	if sl := reEmbeddedSL.FindStringSubmatch(raw); sl != nil {
		in.StopLoss = parsePrice(sl[1])
	}
	if ps := rePositionSize.FindStringSubmatch(raw); ps != nil {
		in.PosSize = ps[1]
	}
	return in
}

func parsePrice(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(NormalizePrice(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseOption 解析期权消息，未识别返回 nil。
// 解析成功后补齐标的（从全文提取）、消息指纹与原文。
func ParseOption(text string) *model.Instruction {
	cleaned := PrepareText(text)
	in, _ := apply(optionRules, cleaned)
	if in == nil {
		return nil
	}
	if in.Ticker == "" {
		in.Ticker = ExtractTicker(text)
	}
	in.RawText = text
	in.MessageID = MessageID(text)
	return in
}
