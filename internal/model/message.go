package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// 中文说明：
// RawMessage 是抓取器产出的原始消息记录。domID 在会话内稳定唯一，
// position 由 DOM 的 has-message-above/below 标记推导，history 保存
// 同组更早消息的文本（按到达顺序）。

// Position 表示消息在 DOM 消息组中的位置。
type Position string

const (
	PositionSingle Position = "single"
	PositionFirst  Position = "first"
	PositionMiddle Position = "middle"
	PositionLast   Position = "last"
)

// PositionFromFlags 根据相邻标记推导位置状态。
func PositionFromFlags(hasAbove, hasBelow bool) Position {
	switch {
	case !hasAbove && !hasBelow:
		return PositionSingle
	case !hasAbove && hasBelow:
		return PositionFirst
	case hasAbove && hasBelow:
		return PositionMiddle
	default:
		return PositionLast
	}
}

// RawMessage 单条原始聊天消息。
type RawMessage struct {
	DomID           string   `json:"domID"`
	Content         string   `json:"content"`
	OriginalContent string   `json:"original_content,omitempty"`
	Author          string   `json:"author,omitempty"`
	Timestamp       string   `json:"timestamp"`
	Refer           string   `json:"refer,omitempty"`
	Position        Position `json:"position"`
	History         []string `json:"history"`
	HasAbove        bool     `json:"-"`
	HasBelow        bool     `json:"-"`
	HasAttachment   bool     `json:"-"`
}

// Validate 检查输入契约：domID 与 content 缺一不可。
func (m *RawMessage) Validate() error {
	if m == nil {
		return fmt.Errorf("消息为空")
	}
	if strings.TrimSpace(m.DomID) == "" {
		return fmt.Errorf("消息缺少 domID")
	}
	if strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("消息缺少 content: domID=%s", m.DomID)
	}
	return nil
}

// DatePart 返回时间戳的日期部分（如 "Jan 23, 2026"），用于同日匹配。
func (m *RawMessage) DatePart() string {
	return DatePartOf(m.Timestamp)
}

// DatePartOf 截取 "Jan 23, 2026 12:51 AM" 形式时间戳的前三段。
func DatePartOf(timestamp string) string {
	fields := strings.Fields(timestamp)
	if len(fields) >= 3 {
		return strings.Join(fields[:3], " ")
	}
	return timestamp
}

var (
	reChannelTime = regexp.MustCompile(`^([A-Z][a-z]{2}) (\d{1,2}), (\d{4}) (\d{1,2}):(\d{2}) ([AP]M)$`)
	reISOPrefix   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2}`)
	reCNMonthDay  = regexp.MustCompile(`^(\d{1,2})月(\d{1,2})日?\s+(\d{1,2}):(\d{2})$`)
	reRelative    = regexp.MustCompile(`^(Today|Yesterday|Monday|Tuesday|Wednesday|Thursday|Friday|Saturday|Sunday)\s+(\d{1,2}):(\d{2}) ([AP]M)$`)
)

// ParseTimestamp 解析频道里出现的各种时间戳格式，失败时返回错误。
// now 仅用于 Today/Yesterday/星期几 这类相对格式的折算。
func ParseTimestamp(raw string, now time.Time) (time.Time, error) {
	s := strings.TrimSpace(strings.Trim(raw, "•· "))
	if s == "" {
		return time.Time{}, fmt.Errorf("时间戳为空")
	}
	if m := reChannelTime.FindStringSubmatch(s); m != nil {
		return time.Parse("Jan 2, 2006 3:04 PM", s)
	}
	if reISOPrefix.MatchString(s) {
		// 去掉毫秒尾巴后按标准格式解析
		base := strings.Replace(s[:19], "T", " ", 1)
		return time.Parse("2006-01-02 15:04:05", base)
	}
	if m := reCNMonthDay.FindStringSubmatch(s); m != nil {
		return time.Parse("2006-1-2 15:04", fmt.Sprintf("%d-%s-%s %s:%s", now.Year(), m[1], m[2], m[3], m[4]))
	}
	if m := reRelative.FindStringSubmatch(s); m != nil {
		t, err := time.Parse("3:04 PM", fmt.Sprintf("%s:%s %s", m[2], m[3], m[4]))
		if err != nil {
			return time.Time{}, err
		}
		day := now
		switch m[1] {
		case "Today":
		case "Yesterday":
			day = now.AddDate(0, 0, -1)
		default:
			// 最近一个该星期几（含今天）
			target := weekdayIndex(m[1])
			for day.Weekday() != target {
				day = day.AddDate(0, 0, -1)
			}
		}
		return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("无法识别的时间戳: %q", raw)
}

// NormalizeTimestamp 将任意受支持格式的时间戳转为 "2006-01-02 15:04:05.000"。
// 解析失败时原样返回。
func NormalizeTimestamp(raw string, now time.Time) string {
	t, err := ParseTimestamp(raw, now)
	if err != nil {
		return raw
	}
	return t.Format("2006-01-02 15:04:05.000")
}

func weekdayIndex(name string) time.Weekday {
	switch name {
	case "Sunday":
		return time.Sunday
	case "Monday":
		return time.Monday
	case "Tuesday":
		return time.Tuesday
	case "Wednesday":
		return time.Wednesday
	case "Thursday":
		return time.Thursday
	case "Friday":
		return time.Friday
	default:
		return time.Saturday
	}
}
