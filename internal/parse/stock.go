package parse

import (
	"regexp"
	"strings"

	"sigtrader/internal/model"
)

// 中文说明：
// 股票频道的口语指令。与期权不同，股票消息以"回吸/低吸/建仓"等
// 动词为核心，标的直接给代码，无行权价与到期日。

var reWatchOnly = regexp.MustCompile(`观察|再看|等等看|先看`)

// stockRules 股票消息的有序规则表，卖出类在前。
var stockRules = []Rule{
	{
		Name: "stock_sell_half",
		Pattern: regexp.MustCompile(
			`(?i)\b([A-Za-z]{2,5})\s*(\d+(?:[.。]\d+)?)?\s*(?:附近|左右)?\s*出一半`),
		Build: func(m []string, raw string) *model.Instruction {
			return stockSell(m[1], m[2], "1/2")
		},
	},
	{
		Name: "stock_reduce",
		Pattern: regexp.MustCompile(
			`(?i)\b([A-Za-z]{2,5})\s*(\d+(?:[.。]\d+)?)?\s*(?:附近|左右)?\s*(?:减仓|减半)`),
		Build: func(m []string, raw string) *model.Instruction {
			return stockSell(m[1], m[2], "1/2")
		},
	},
	{
		Name: "stock_close",
		Pattern: regexp.MustCompile(
			`(?i)\b([A-Za-z]{2,5})\s*(\d+(?:[.。]\d+)?)?\s*(?:附近|左右)?\s*(?:清仓|全出|都出)`),
		Build: func(m []string, raw string) *model.Instruction {
			in := stockSell(m[1], m[2], "")
			if in != nil {
				in.Type = model.Close
			}
			return in
		},
	},
	{
		Name: "stock_buy_dip",
		Pattern: regexp.MustCompile(
			`(?i)\b([A-Za-z]{2,5})\s*(\d+(?:[.。]\d+)?)(?:\s*[-~]\s*(\d+(?:[.。]\d+)?))?\s*` +
				`(?:附近|左右)?\s*(?:回吸|低吸|补仓|建仓|挂单|吸)`),
		Build: buildStockBuy,
	},
	{
		Name: "stock_buy_verb_first",
		Pattern: regexp.MustCompile(
			`(?i)(?:回吸|低吸|补仓|建仓|挂单)\s*([A-Za-z]{2,5})\s*` +
				`(\d+(?:[.。]\d+)?)?(?:\s*[-~]\s*(\d+(?:[.。]\d+)?))?`),
		Build: buildStockBuy,
	},
}

func buildStockBuy(m []string, raw string) *model.Instruction {
	ticker := strings.ToUpper(m[1])
	if IsExcludedTicker(ticker) {
		return nil
	}
	in := &model.Instruction{
		Type:   model.Buy,
		Ticker: ticker,
		Symbol: ticker + ".US",
	}
	low := parsePrice(m[2])
	if high := parsePrice(m[3]); high > 0 {
		if high < low {
			low, high = high, low
		}
		in.PriceRng = &model.Range{Low: low, High: high}
	} else {
		in.Price = low
	}
	if ps := rePositionSize.FindStringSubmatch(raw); ps != nil {
		in.PosSize = ps[1]
	}
	return in
}

func stockSell(ticker, price, qty string) *model.Instruction {
	t := strings.ToUpper(ticker)
	if IsExcludedTicker(t) {
		return nil
	}
	return &model.Instruction{
		Type:    model.Sell,
		Ticker:  t,
		Symbol:  t + ".US",
		Price:   parsePrice(price),
		SellQty: qty,
	}
}

// ParseStock 解析股票消息，未识别或属于观望类文本返回 nil。
func ParseStock(text string) *model.Instruction {
	cleaned := PrepareText(text)
	if reWatchOnly.MatchString(cleaned) {
		return nil
	}
	in, _ := apply(stockRules, cleaned)
	if in == nil {
		return nil
	}
	in.RawText = text
	in.MessageID = MessageID(text)
	return in
}
