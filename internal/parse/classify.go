package parse

import (
	"regexp"
	"strings"

	"sigtrader/internal/model"
)

// 卖出词先于开仓词检查：卖出消息里常带 call/put 字样，
// 反过来开仓消息不会出现"出/卖"。
var (
	exitKeywords   = []string{"出", "卖", "sell", "exit", "平仓"}
	updateKeywords = []string{"止损", "上移", "调整", "stop loss", "trailing"}
	entryKeywords  = []string{"call", "put", "calls", "puts", "买入", "buy", "entry"}

	reEntryCompact = regexp.MustCompile(`(?i)\d+(?:\.\d+)?\s*[cp]\b`)
	reEntryStrike  = regexp.MustCompile(`-\s*\$\d+`)
)

// ClassifyKind 判定消息在交易组中的角色。无法判断时归入 update，
// 宁可挂错组也不丢消息。
func ClassifyKind(text string) model.MessageKind {
	lower := strings.ToLower(text)
	for _, kw := range exitKeywords {
		if strings.Contains(lower, kw) {
			return model.KindExit
		}
	}
	for _, kw := range updateKeywords {
		if strings.Contains(lower, kw) {
			return model.KindUpdate
		}
	}
	for _, kw := range entryKeywords {
		if strings.Contains(lower, kw) {
			return model.KindEntry
		}
	}
	if reEntryCompact.MatchString(text) || reEntryStrike.MatchString(text) {
		return model.KindEntry
	}
	return model.KindUpdate
}
