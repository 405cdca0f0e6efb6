package filter

import (
	"regexp"
	"strings"
)

// 中文说明：
// 统一的消息过滤规则。频道 DOM 里混杂大量元数据（阅读量、已编辑、
// 纯时间戳行、头像占位符），进入解析管线前先过滤掉。

var (
	reReadCount     = regexp.MustCompile(`^(由\s*)?\d+\s*阅读$`)
	reTimestampLine = regexp.MustCompile(`^•.*\d{1,2}:\d{2}\s+[AP]M$`)
	reTimeOnly      = regexp.MustCompile(`^\d{1,2}:\d{2}\s+[AP]M$`)
	reDateLine      = regexp.MustCompile(`^[A-Z][a-z]{2}\s+\d{1,2},\s+\d{4}`)
	reBullets       = regexp.MustCompile(`[•·]`)
	reSpaces        = regexp.MustCompile(`\s+`)
	reTailSuffix    = regexp.MustCompile(`Tail$`)
	reAuthorReject  = regexp.MustCompile(`\d{4}|\d+:\d+|\d{1,2}月`)
)

var excludeTexts = map[string]struct{}{
	"•": {}, "Tail": {}, "X": {},
	"Edited": {}, "Reply": {}, "Delete": {},
	"已编辑": {}, "回复": {}, "删除": {}, "编辑": {},
}

var weekdays = []string{
	"Monday", "Tuesday", "Wednesday", "Thursday",
	"Friday", "Saturday", "Sunday",
}

// IsMetadata 判断文本是否为应丢弃的元数据。
func IsMetadata(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return true
	}
	if _, ok := excludeTexts[text]; ok {
		return true
	}
	if reReadCount.MatchString(text) || reTimestampLine.MatchString(text) {
		return true
	}
	if IsTimestampOnly(text) {
		return true
	}
	if len([]rune(text)) < 2 {
		return true
	}
	return false
}

// IsTimestampOnly 纯时间戳行：含星期与 AM/PM，且词数≤4、总长<30。
func IsTimestampOnly(text string) bool {
	clean := strings.TrimSpace(reBullets.ReplaceAllString(text, ""))
	hasWeekday := false
	for _, day := range weekdays {
		if strings.Contains(clean, day) {
			hasWeekday = true
			break
		}
	}
	hasTime := strings.Contains(clean, "PM") || strings.Contains(clean, "AM")
	words := strings.Fields(clean)
	return hasWeekday && hasTime && len(words) <= 4 && len(clean) < 30
}

// CleanText 去掉 Tail 结尾标记并压缩空白。
func CleanText(text string) string {
	text = reTailSuffix.ReplaceAllString(text, "")
	return strings.TrimSpace(reSpaces.ReplaceAllString(text, " "))
}

// ContentLines 从整段文本中筛出有效内容行，剔除作者行、时间行与元数据。
func ContentLines(full, author, timestamp string) []string {
	if full == "" {
		return nil
	}
	var out []string
	for _, line := range strings.Split(full, "\n") {
		line = CleanText(line)
		if line == "" || IsMetadata(line) {
			continue
		}
		if line == author || line == timestamp {
			continue
		}
		if reDateLine.MatchString(line) || reTimeOnly.MatchString(line) {
			continue
		}
		out = append(out, line)
	}
	return out
}

// IsImageOnly 只有图片和阅读量、没有实质内容的消息。
func IsImageOnly(hasAttachment bool, primary string, related []string) bool {
	if !hasAttachment {
		return false
	}
	if reReadCount.MatchString(strings.TrimSpace(primary)) {
		return true
	}
	return len([]rune(primary)) < 10 && len(related) == 0
}

// IsValidAuthor 文本是否可能是作者名。
func IsValidAuthor(text string) bool {
	if text == "" || len(text) > 50 {
		return false
	}
	if _, ok := excludeTexts[text]; ok {
		return false
	}
	if strings.Contains(text, "PM") || strings.Contains(text, "AM") {
		return false
	}
	if strings.ContainsAny(text, "•$") {
		return false
	}
	if reAuthorReject.MatchString(text) {
		return false
	}
	return true
}
