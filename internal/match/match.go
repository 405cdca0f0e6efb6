package match

import (
	"regexp"
	"sort"
	"strings"
)

// 中文说明：
// 引用消息匹配器。引用文本在 DOM 里混有作者名、时间戳等噪声，
// 清洗后按多路加权信号计算相似度，从候选消息中挑出被引用的那条。

var (
	reAvatarX   = regexp.MustCompile(`^[XＸ]+\s*`)
	reAuthorRun = regexp.MustCompile(`^[a-z]+`)
	reTimestamp = regexp.MustCompile(`[•·]?\s*[A-Z][a-z]{2}\s+\d{1,2},\s+\d{4}.*?[AP]M`)
	reBulletDay = regexp.MustCompile(`[•·]\s*[A-Z][a-z]{2}\s+\d{1,2}`)
	reSpaces    = regexp.MustCompile(`\s+`)
	reSymbol    = regexp.MustCompile(`\b([A-Z]{2,5})\b`)
	rePrice     = regexp.MustCompile(`\$?\d+\.?\d*`)
	reWord      = regexp.MustCompile(`\b\w{3,}\b`)
	reDigits    = regexp.MustCompile(`^\d+$`)
)

var excludeSymbols = map[string]struct{}{
	"CALL": {}, "PUT": {}, "CALLS": {}, "PUTS": {},
	"TAIL": {}, "PM": {}, "AM": {},
}

// CleanQuote 清理引用文本：头像占位 X、作者名前缀、时间戳。
func CleanQuote(quote string) string {
	if quote == "" {
		return ""
	}
	// 仅当开头的 X 后接非字母或结尾时才视为头像占位，保留 XOM 这类代码
	text := quote
	if loc := reAvatarX.FindStringIndex(text); loc != nil {
		rest := text[loc[1]:]
		if rest == "" || !isLetter(rest[0]) {
			text = rest
		}
	}
	// 小写作者名直接粘在大写 ticker 前：xiaozhaoluckyGILD -> GILD
	if loc := reAuthorRun.FindStringIndex(text); loc != nil {
		rest := text[loc[1]:]
		if rest != "" && rest[0] >= 'A' && rest[0] <= 'Z' {
			text = rest
		}
	}
	text = reTimestamp.ReplaceAllString(text, "")
	text = reBulletDay.ReplaceAllString(text, "")
	return strings.TrimSpace(reSpaces.ReplaceAllString(text, " "))
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// KeyInfo 从消息文本抽取的匹配要素。
type KeyInfo struct {
	Symbols  []string
	Prices   []string
	Actions  []string
	Keywords []string
}

// ExtractKeyInfo 提取股票代码、价格、操作方向与关键词。
func ExtractKeyInfo(text string) KeyInfo {
	var info KeyInfo
	for _, m := range reSymbol.FindAllStringSubmatch(text, -1) {
		if _, skip := excludeSymbols[m[1]]; !skip {
			info.Symbols = append(info.Symbols, m[1])
		}
	}
	info.Prices = rePrice.FindAllString(text, -1)

	lower := strings.ToLower(text)
	if containsAny(lower, "call", "calls", "买", "buy") {
		info.Actions = append(info.Actions, "BUY")
	}
	if containsAny(lower, "put", "puts", "出", "卖", "sell") {
		info.Actions = append(info.Actions, "SELL")
	}
	if containsAny(lower, "止损", "stop") {
		info.Actions = append(info.Actions, "STOP")
	}

	for _, w := range reWord.FindAllString(text, -1) {
		if !reDigits.MatchString(w) {
			info.Keywords = append(info.Keywords, w)
		}
	}
	return info
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Similarity 计算两段文本的相似度，范围 [0,1]。
// 加权：代码 0.4、价格 0.2、方向 0.15、关键词至多 0.15、包含关系至多 0.1。
// 各信号相互独立，无结构化信号时退化为包含关系打分。
func Similarity(quoteText, candidateText string) float64 {
	if quoteText == "" || candidateText == "" {
		return 0
	}
	qi := ExtractKeyInfo(quoteText)
	ci := ExtractKeyInfo(candidateText)

	score := 0.0
	if intersects(qi.Symbols, ci.Symbols) {
		score += 0.4
	}
	if intersects(qi.Prices, ci.Prices) {
		score += 0.2
	}
	if intersects(qi.Actions, ci.Actions) {
		score += 0.15
	}
	if n := commonLowered(head(qi.Keywords, 10), head(ci.Keywords, 10)); n > 0 {
		kw := float64(n) * 0.05
		if kw > 0.15 {
			kw = 0.15
		}
		score += kw
	}

	// 引用文本主要片段是否出现在候选文本里
	candidateLower := strings.ToLower(candidateText)
	var parts []string
	for _, p := range strings.Fields(strings.ToLower(quoteText)) {
		if len(p) > 3 {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 {
		hits := 0
		for _, p := range parts {
			if strings.Contains(candidateLower, p) {
				hits++
			}
		}
		score += float64(hits) / float64(len(parts)) * 0.1
	}

	if score > 1 {
		score = 1
	}
	return score
}

func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

func commonLowered(a, b []string) int {
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[strings.ToLower(v)] = struct{}{}
	}
	n := 0
	seen := make(map[string]struct{})
	for _, v := range b {
		lv := strings.ToLower(v)
		if _, ok := set[lv]; ok {
			if _, dup := seen[lv]; !dup {
				seen[lv] = struct{}{}
				n++
			}
		}
	}
	return n
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// Candidate 待匹配的候选消息。
type Candidate struct {
	ID        string
	Content   string
	Author    string
	Timestamp string
}

// BestMatch 返回得分不低于 minScore 的最高分候选；无命中返回 nil。
// 清洗后不足 5 个字符的引用不参与匹配。
func BestMatch(quote string, candidates []Candidate, minScore float64) (*Candidate, float64) {
	if quote == "" || len(candidates) == 0 {
		return nil, 0
	}
	clean := CleanQuote(quote)
	if len([]rune(clean)) < 5 {
		return nil, 0
	}

	type scored struct {
		score float64
		idx   int
	}
	var hits []scored
	for i, c := range candidates {
		if c.Content == "" {
			continue
		}
		if s := Similarity(clean, c.Content); s >= minScore {
			hits = append(hits, scored{s, i})
		}
	}
	if len(hits) == 0 {
		return nil, 0
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	best := candidates[hits[0].idx]
	return &best, hits[0].score
}

// attempt 一次匹配尝试：先按上下文过滤候选，再以给定阈值系数打分。
type attempt struct {
	filterContext bool
	scoreFactor   float64
}

// 固定的两轮回退策略：先收紧上下文，失败后放宽到全部候选并降阈值。
var matchAttempts = []attempt{
	{filterContext: true, scoreFactor: 1.0},
	{filterContext: false, scoreFactor: 0.8},
}

// MatchWithContext 按作者/日期先筛选候选，失败后降低阈值全量重试。
func MatchWithContext(quote string, candidates []Candidate, author, datePart string, minScore float64) (*Candidate, float64) {
	for _, at := range matchAttempts {
		pool := candidates
		if at.filterContext {
			pool = filterByContext(candidates, author, datePart)
			if len(pool) == 0 {
				continue
			}
		}
		if best, score := BestMatch(quote, pool, minScore*at.scoreFactor); best != nil {
			return best, score
		}
		if at.filterContext && len(pool) > 0 {
			// 上下文池非空但没有达标者，继续放宽重试
			continue
		}
	}
	return nil, 0
}

func filterByContext(candidates []Candidate, author, datePart string) []Candidate {
	if author == "" && datePart == "" {
		return candidates
	}
	var out []Candidate
	for _, c := range candidates {
		if author != "" && c.Author == author {
			out = append(out, c)
			continue
		}
		if datePart != "" && candidateDate(c.Timestamp) == datePart {
			out = append(out, c)
		}
	}
	return out
}

func candidateDate(timestamp string) string {
	fields := strings.Fields(timestamp)
	if len(fields) >= 3 {
		return strings.Join(fields[:3], " ")
	}
	return timestamp
}
