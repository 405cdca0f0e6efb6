package scrape

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sigtrader/internal/filter"
	"sigtrader/internal/model"
)

// 中文说明：
// DOM 抽取。消息节点带 data-message-id，相邻关系由
// data-has-message-above/below 标记。作者与时间戳没有稳定的
// class，只能按行启发式识别。

const (
	selMessage    = "[data-message-id]"
	selQuote      = `[class*="peer/reply"], blockquote`
	selAttachment = "figure img, img[data-attachment]"
	attrAbove     = "data-has-message-above"
	attrBelow     = "data-has-message-below"
)

// Extract 从页面 HTML 解析出按 DOM 顺序排列的消息。
// 相邻消息链（has-above 接续）里只有链首带作者与时间戳，
// 后续消息继承链首的头部，并把链内更早消息的文本收进 history。
func Extract(html string) ([]*model.RawMessage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var out []*model.RawMessage
	var chain []*model.RawMessage
	doc.Find(selMessage).Each(func(_ int, sel *goquery.Selection) {
		domID, ok := sel.Attr("data-message-id")
		if !ok || domID == "" {
			return
		}
		msg := extractOne(domID, sel)
		if msg == nil {
			return
		}
		if !msg.HasAbove {
			chain = nil
		}
		if len(chain) > 0 {
			head := chain[0]
			if msg.Author == "" {
				msg.Author = head.Author
			}
			if msg.Timestamp == "" {
				msg.Timestamp = head.Timestamp
			}
			for _, prev := range chain {
				if prev.Content != "" {
					msg.History = append(msg.History, prev.Content)
				}
			}
		}
		chain = append(chain, msg)
		out = append(out, msg)
	})
	return out, nil
}

func extractOne(domID string, sel *goquery.Selection) *model.RawMessage {
	hasAbove := sel.AttrOr(attrAbove, "") == "true"
	hasBelow := sel.AttrOr(attrBelow, "") == "true"

	refer := strings.TrimSpace(sel.Find(selQuote).First().Text())
	hasAttachment := sel.Find(selAttachment).Length() > 0

	full := sel.Text()
	author, timestamp := headerOf(full)
	lines := filter.ContentLines(full, author, timestamp)
	// 引用文本混在整段里, 从内容行中剔除
	if refer != "" {
		kept := lines[:0]
		for _, line := range lines {
			if line != filter.CleanText(refer) {
				kept = append(kept, line)
			}
		}
		lines = kept
	}
	content := strings.TrimSpace(strings.Join(lines, " "))
	if content == "" && !hasAttachment {
		return nil
	}

	return &model.RawMessage{
		DomID:           domID,
		Content:         content,
		OriginalContent: strings.TrimSpace(full),
		Author:          author,
		Timestamp:       timestamp,
		Refer:           refer,
		Position:        model.PositionFromFlags(hasAbove, hasBelow),
		HasAbove:        hasAbove,
		HasBelow:        hasBelow,
		HasAttachment:   hasAttachment,
	}
}

// headerOf 从消息文本的头几行识别作者与时间戳。
// 单行消息没有头部，整行都是内容。
func headerOf(full string) (author, timestamp string) {
	var lines []string
	for _, line := range strings.Split(full, "\n") {
		if line = filter.CleanText(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 2 {
		return "", ""
	}
	head := lines
	if len(head) > 4 {
		head = head[:4]
	}
	for i, line := range head {
		if timestamp == "" {
			if _, err := model.ParseTimestamp(line, time.Now()); err == nil {
				timestamp = line
				continue
			}
		}
		// 带数字的行更可能是内容而不是用户名
		if author == "" && i < 2 && filter.IsValidAuthor(line) &&
			!filter.IsMetadata(line) && !strings.ContainsAny(line, "0123456789") {
			author = line
		}
	}
	return author, timestamp
}
