package parse

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"

	"sigtrader/internal/model"
)

// 中文说明：
// 声明式规则表：每条规则是 (名称, 正则, 构造函数)，按固定顺序逐条尝试，
// 第一条产出指令的规则生效。规则可独立单测，新增口语变体只需加一行。

// Rule 单条解析规则。
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Build   func(m []string, raw string) *model.Instruction
}

// apply 依次尝试规则表，返回第一条命中的指令。
func apply(rules []Rule, text string) (*model.Instruction, string) {
	for _, r := range rules {
		m := r.Pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if in := r.Build(m, text); in != nil {
			return in, r.Name
		}
	}
	return nil, ""
}

// MessageID 为无 domID 的文本生成稳定标识。
func MessageID(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])[:12]
}

var (
	reLowerUpper   = regexp.MustCompile(`([a-z])([A-Z]{2,})`)
	reLeadingX     = regexp.MustCompile(`^[XＸ]+`)
	reXPrefix      = regexp.MustCompile(`\bX([A-Z]{2,5})\b`)
	reClockTime    = regexp.MustCompile(`\d{1,2}:\d{2}\s*[AP]M`)
	reLoneAMPM     = regexp.MustCompile(`\s+[AP]M\s+`)
	reAuthorBullet = regexp.MustCompile(`[\w]+•\s*[A-Z][a-z]{2}\s+\d{1,2},\s+\d{4}\s+\d{1,2}:\d{2}\s+[AP]M`)
	reCNPeriod     = regexp.MustCompile(`。`)
)

// excludedTickers 常见的非股票代码大写词。
var excludedTickers = map[string]struct{}{
	"CALL": {}, "PUT": {}, "CALLS": {}, "PUTS": {}, "TAIL": {},
	"ALSO": {}, "FROM": {}, "WITH": {}, "THAT": {}, "THIS": {},
	"ABOUT": {}, "WHEN": {}, "PM": {}, "AM": {},
}

// IsExcludedTicker 判断大写词是否在排除表中。
func IsExcludedTicker(symbol string) bool {
	_, ok := excludedTickers[strings.ToUpper(symbol)]
	return ok
}

// PrepareText 解析前的文本预处理：
// 去掉引用占位 X 与时间/作者噪声，并在小写串与紧随的大写串之间
// 插入空格，拆开作者名直接粘住 ticker 的写法（xiaozhaoluckyGILD）。
func PrepareText(text string) string {
	cleaned := reLeadingX.ReplaceAllString(text, "")
	if !strings.Contains(text, "$X") {
		cleaned = reXPrefix.ReplaceAllString(cleaned, "$1")
	}
	cleaned = reClockTime.ReplaceAllString(cleaned, "")
	cleaned = reLoneAMPM.ReplaceAllString(cleaned, " ")
	cleaned = reAuthorBullet.ReplaceAllString(cleaned, "")
	cleaned = reLowerUpper.ReplaceAllString(cleaned, "$1 $2")
	return cleaned
}

// NormalizePrice 处理价格里混入的中文句号："21。5" -> "21.5"。
func NormalizePrice(s string) string {
	return reCNPeriod.ReplaceAllString(s, ".")
}

// tickerPatterns 提取标的的有序模式，从最具体到最宽泛。
var tickerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\$([A-Za-z]{1,5})\b`),
	regexp.MustCompile(`(?i)\b([A-Za-z]{2,5})\s*-\s*\$`),
	regexp.MustCompile(`(?i)\b([A-Za-z]{2,5})\s+\d+(?:\.\d+)?[cp]\b`),
	regexp.MustCompile(`(?i)[\p{Han}]+([A-Za-z]{2,5})期权`),
	regexp.MustCompile(`(?i)\b([A-Za-z]{2,5})期权`),
	regexp.MustCompile(`(?i)\b([A-Za-z]{2,5})\s+call`),
	regexp.MustCompile(`(?i)\b([A-Za-z]{2,5})\s+put`),
	regexp.MustCompile(`(?i)\b([A-Za-z]{2,5})[\p{Han}]+call`),
	regexp.MustCompile(`(?i)\b([A-Za-z]{2,5})[\p{Han}]+put`),
	regexp.MustCompile(`(?i)\b([A-Za-z]{2,5})价内`),
	regexp.MustCompile(`(?i)\b([A-Za-z]{2,5})\s+\d+\.?\d*\s*出`),
	regexp.MustCompile(`(?i)\b([A-Za-z]{2,5})剩下`),
	regexp.MustCompile(`(?i)\b([A-Za-z]{2,5})\s+\d+\.?\d*\s*(?:附近)?都出`),
}

// ExtractTicker 从消息文本提取标的代码，未找到返回空串。
func ExtractTicker(text string) string {
	cleaned := PrepareText(text)
	for _, p := range tickerPatterns {
		if m := p.FindStringSubmatch(cleaned); m != nil {
			symbol := strings.ToUpper(m[1])
			if !IsExcludedTicker(symbol) {
				return symbol
			}
		}
	}
	return ""
}
