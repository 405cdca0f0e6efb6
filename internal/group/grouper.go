package group

import (
	"strings"

	"sigtrader/internal/filter"
	"sigtrader/internal/logger"
	"sigtrader/internal/model"
	"sigtrader/internal/parse"
	"sigtrader/internal/pkg/text"
)

// 中文说明：
// 消息分组器。把围绕同一笔交易的入场/出场/调整消息归入同一组，
// 组是上下文补全的第一查找层。单线程逐条处理，状态全部在实例内。

const defaultSearchLimit = 10

// Grouper 按交易归组消息。非并发安全，单会话单实例使用。
type Grouper struct {
	searchLimit     int
	preferAdjacency bool

	groups      map[string]*model.TradeGroup
	order       []string
	lastGroupID string
	lastSymbol  map[string]string
	seen        []seenMessage
}

// seenMessage 已处理消息及其解析出的标的。
type seenMessage struct {
	msg         *model.RawMessage
	symbol      string
	quoteSymbol string
}

// Result 单条消息的归组结果。
type Result struct {
	GroupID  string
	Symbol   string
	Kind     model.MessageKind
	Group    *model.TradeGroup
	Skipped  bool
	SkipNote string
}

// New 创建分组器。searchLimit<=0 时取默认回看窗口。
func New(searchLimit int, preferAdjacency bool) *Grouper {
	if searchLimit <= 0 {
		searchLimit = defaultSearchLimit
	}
	return &Grouper{
		searchLimit:     searchLimit,
		preferAdjacency: preferAdjacency,
		groups:          make(map[string]*model.TradeGroup),
		lastSymbol:      make(map[string]string),
	}
}

// Process 处理一条消息：过滤元数据、提取标的、判定角色并归组。
func (g *Grouper) Process(msg *model.RawMessage) Result {
	content := strings.TrimSpace(msg.Content)
	if filter.IsMetadata(content) {
		return Result{Skipped: true, SkipNote: "元数据"}
	}

	symbol := parse.ExtractTicker(content)
	quoteSymbol := ""
	if msg.Refer != "" {
		quoteSymbol = parse.ExtractTicker(msg.Refer)
	}
	if symbol == "" {
		symbol = g.inferSymbol(msg, quoteSymbol)
	}

	kind := parse.ClassifyKind(content)

	var grp *model.TradeGroup
	if kind == model.KindEntry && symbol != "" {
		grp = g.entryGroup(symbol, msg)
	} else {
		grp = g.matchGroup(symbol, msg)
	}
	if grp == nil {
		// 落单消息自成一组，symbol 可能为空
		grp = g.newGroup(symbol, msg)
	}
	grp.Add(msg, kind)

	g.lastGroupID = grp.GroupID
	if symbol != "" && msg.Author != "" {
		g.lastSymbol[msg.Author] = symbol
	}
	g.seen = append(g.seen, seenMessage{msg: msg, symbol: symbol, quoteSymbol: quoteSymbol})

	logger.Debugf("消息归组: domID=%s symbol=%s kind=%s group=%s 内容=%q",
		msg.DomID, symbol, kind, grp.GroupID, text.Truncate(content, 60))
	return Result{GroupID: grp.GroupID, Symbol: symbol, Kind: kind, Group: grp}
}

// inferSymbol 消息自身无标的时的推断顺序：
// 相邻上一条 > 回看窗口内最近的 > 本条引用 > 该作者最近一次标的。
func (g *Grouper) inferSymbol(msg *model.RawMessage, quoteSymbol string) string {
	if g.preferAdjacency && msg.HasAbove && len(g.seen) > 0 {
		prev := g.seen[len(g.seen)-1]
		if prev.symbol != "" {
			return prev.symbol
		}
		if prev.quoteSymbol != "" {
			return prev.quoteSymbol
		}
	}
	for i := len(g.seen) - 1; i >= 0 && i >= len(g.seen)-g.searchLimit; i-- {
		if g.seen[i].symbol != "" {
			return g.seen[i].symbol
		}
		if g.seen[i].quoteSymbol != "" {
			return g.seen[i].quoteSymbol
		}
	}
	if quoteSymbol != "" {
		return quoteSymbol
	}
	return g.lastSymbol[msg.Author]
}

// entryGroup 入场消息总是落到 (symbol, author, 日期) 决定的组。
func (g *Grouper) entryGroup(symbol string, msg *model.RawMessage) *model.TradeGroup {
	id := model.GroupID(symbol, msg.Author, msg.Timestamp)
	if grp, ok := g.groups[id]; ok {
		return grp
	}
	grp := model.NewTradeGroup(id, symbol)
	g.groups[id] = grp
	g.order = append(g.order, id)
	return grp
}

// matchGroup 依次用四种策略为出场/调整消息找组：
// 相邻接续、引用内容匹配、同标的同作者同日、同标的同日且组内有该作者。
func (g *Grouper) matchGroup(symbol string, msg *model.RawMessage) *model.TradeGroup {
	if g.preferAdjacency && msg.HasAbove && g.lastGroupID != "" {
		if grp, ok := g.groups[g.lastGroupID]; ok {
			return grp
		}
	}

	if msg.Refer != "" {
		if grp := g.matchByQuote(msg); grp != nil {
			return grp
		}
	}

	if symbol == "" {
		return nil
	}
	date := msg.DatePart()

	for i := len(g.order) - 1; i >= 0; i-- {
		grp := g.groups[g.order[i]]
		entry := grp.EntryMessage
		if grp.Symbol != symbol || entry == nil {
			continue
		}
		if entry.Author == msg.Author && entry.DatePart() == date {
			return grp
		}
	}
	for i := len(g.order) - 1; i >= 0; i-- {
		grp := g.groups[g.order[i]]
		entry := grp.EntryMessage
		if grp.Symbol != symbol || entry == nil {
			continue
		}
		if entry.DatePart() == date && grp.HasAuthor(msg.Author) {
			return grp
		}
	}
	return nil
}

// matchByQuote 引用文本与某组入场消息内容匹配（包含或同日词元重叠）。
func (g *Grouper) matchByQuote(msg *model.RawMessage) *model.TradeGroup {
	quote := strings.ToLower(strings.TrimSpace(msg.Refer))
	if quote == "" {
		return nil
	}
	for i := len(g.order) - 1; i >= 0; i-- {
		grp := g.groups[g.order[i]]
		entry := grp.EntryMessage
		if entry == nil {
			continue
		}
		content := strings.ToLower(entry.Content)
		if strings.Contains(content, quote) || strings.Contains(quote, content) {
			return grp
		}
		if entry.DatePart() == msg.DatePart() && tokenOverlap(quote, content) {
			return grp
		}
	}
	return nil
}

// tokenOverlap 引用里长度>3 的词元是否出现在入场内容中。
func tokenOverlap(quote, content string) bool {
	for _, tok := range strings.Fields(quote) {
		if len(tok) > 3 && strings.Contains(content, tok) {
			return true
		}
	}
	return false
}

func (g *Grouper) newGroup(symbol string, msg *model.RawMessage) *model.TradeGroup {
	id := model.GroupID(symbol, msg.Author, msg.Timestamp)
	if grp, ok := g.groups[id]; ok {
		return grp
	}
	grp := model.NewTradeGroup(id, symbol)
	g.groups[id] = grp
	g.order = append(g.order, id)
	return grp
}

// Group 按 ID 取组，不存在返回 nil。
func (g *Grouper) Group(id string) *model.TradeGroup {
	return g.groups[id]
}

// Groups 按创建顺序返回全部组。
func (g *Grouper) Groups() []*model.TradeGroup {
	out := make([]*model.TradeGroup, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.groups[id])
	}
	return out
}

// Recent 返回最近处理的至多 n 条消息，新的在前。
func (g *Grouper) Recent(n int) []*model.RawMessage {
	if n <= 0 || n > len(g.seen) {
		n = len(g.seen)
	}
	out := make([]*model.RawMessage, 0, n)
	for i := len(g.seen) - 1; i >= len(g.seen)-n; i-- {
		out = append(out, g.seen[i].msg)
	}
	return out
}
