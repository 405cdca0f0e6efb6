package resolve

import (
	"fmt"
	"strings"

	"sigtrader/internal/logger"
	"sigtrader/internal/match"
	"sigtrader/internal/model"
	"sigtrader/internal/parse"
)

// 中文说明：
// 上下文解析器。卖出/清仓/改单消息经常省略合约要素（标的、行权价、
// 到期日），从所在交易组、引用消息和回看窗口里找到对应的买入指令，
// 只回填缺失字段，绝不覆盖已有字段。
//
// 有标的时按激进策略（先按标的过滤，失败后放宽），无标的时按保守
// 策略（只认最近的买入）。两种策略都是显式的有序层级，便于逐层单测。

const (
	defaultSearchLimit = 10
	defaultMinScore    = 0.3
)

// Resolver 补全指令缺失字段。
type Resolver struct {
	searchLimit int
	minScore    float64 // 引用模糊匹配的最低相似度
}

// New 创建解析器。searchLimit<=0、minScore<=0 时取默认值。
func New(searchLimit int, minScore float64) *Resolver {
	if searchLimit <= 0 {
		searchLimit = defaultSearchLimit
	}
	if minScore <= 0 {
		minScore = defaultMinScore
	}
	return &Resolver{searchLimit: searchLimit, minScore: minScore}
}

// candidate 上下文候选：一条买入指令及其来源原文。
type candidate struct {
	in     *model.Instruction
	origin string
}

// tier 一层候选来源。层按顺序尝试，先命中先用。
type tier struct {
	name        string
	source      model.ContextSource
	matchTicker bool
	collect     func() []candidate
}

// Resolve 补全指令并生成期权代码。补全后仍缺要素时返回错误。
func (r *Resolver) Resolve(in *model.Instruction, msg *model.RawMessage, grp *model.TradeGroup, recent []*model.RawMessage) error {
	in.Timestamp = msg.Timestamp
	if in.Source == "" {
		in.Source = model.SourceNone
	}

	if in.NeedsCompletion() {
		r.complete(in, msg, grp, recent)
	}
	if in.NeedsCompletion() {
		return fmt.Errorf("指令缺少合约要素: ticker=%q strike=%g expiry=%q",
			in.Ticker, in.Strike, in.Expiry)
	}
	return r.finalize(in, msg)
}

// complete 逐层查找买入上下文并回填。
func (r *Resolver) complete(in *model.Instruction, msg *model.RawMessage, grp *model.TradeGroup, recent []*model.RawMessage) {
	aggressive := in.Ticker != ""

	tiers := []tier{
		{
			name: "交易组历史", source: model.SourceGroupHistory, matchTicker: true,
			collect: func() []candidate { return r.groupCandidates(msg, grp) },
		},
		{
			// 标的已知但组内没有同标的买入时，放宽标的限制再试一次
			name: "交易组历史(放宽)", source: model.SourceGroupHistory, matchTicker: false,
			collect: func() []candidate { return r.groupCandidates(msg, grp) },
		},
		{
			name: "引用消息", source: model.SourceQuoted, matchTicker: true,
			collect: func() []candidate { return r.quoteCandidates(msg, recent) },
		},
		{
			name: "回看窗口", source: model.SourceLookback, matchTicker: true,
			collect: func() []candidate { return r.lookbackCandidates(msg, recent) },
		},
	}

	for _, t := range tiers {
		if !aggressive && t.name == "交易组历史(放宽)" {
			// 无标的时各层本来就不过滤，放宽层没有意义
			continue
		}
		for _, c := range t.collect() {
			if aggressive && t.matchTicker && c.in.Ticker != in.Ticker {
				continue
			}
			applyContext(in, c.in)
			in.Source = t.source
			in.DependMsg = c.origin
			logger.Debugf("上下文补全: 来源=%s 依据=%q", t.name, c.origin)
			return
		}
	}
}

// groupCandidates 组内历史消息中的买入指令，新的在前。
func (r *Resolver) groupCandidates(msg *model.RawMessage, grp *model.TradeGroup) []candidate {
	var out []candidate
	if grp != nil {
		for i := len(grp.RawMessages) - 1; i >= 0; i-- {
			m := grp.RawMessages[i]
			if m.DomID == msg.DomID {
				continue
			}
			if c := buyCandidate(m.Content); c != nil {
				out = append(out, candidate{in: c, origin: m.Content})
			}
		}
	}
	// DOM 同组的更早消息文本也作为候选
	for i := len(msg.History) - 1; i >= 0; i-- {
		if c := buyCandidate(msg.History[i]); c != nil {
			out = append(out, candidate{in: c, origin: msg.History[i]})
		}
	}
	return out
}

// quoteCandidates 引用文本清洗后解析出的买入指令。引用本身解析不出
// 时，在回看窗口里模糊匹配被引用的原始消息再解析。
func (r *Resolver) quoteCandidates(msg *model.RawMessage, recent []*model.RawMessage) []candidate {
	if msg.Refer == "" {
		return nil
	}
	clean := match.CleanQuote(msg.Refer)
	if c := buyCandidate(clean); c != nil {
		return []candidate{{in: c, origin: msg.Refer}}
	}

	var pool []match.Candidate
	for i := 0; i < len(recent) && i < r.searchLimit; i++ {
		m := recent[i]
		if m.DomID == msg.DomID {
			continue
		}
		pool = append(pool, match.Candidate{
			ID: m.DomID, Content: m.Content, Author: m.Author, Timestamp: m.Timestamp,
		})
	}
	best, score := match.MatchWithContext(msg.Refer, pool, msg.Author, datePart(msg.Timestamp), r.minScore)
	if best == nil {
		return nil
	}
	if c := buyCandidate(best.Content); c != nil {
		logger.Debugf("引用模糊匹配命中: 得分=%.2f 原文=%q", score, best.Content)
		return []candidate{{in: c, origin: best.Content}}
	}
	return nil
}

// datePart 时间戳的日期部分，如 "Feb 6, 2026"。
func datePart(timestamp string) string {
	fields := strings.Fields(timestamp)
	if len(fields) >= 3 {
		return strings.Join(fields[:3], " ")
	}
	return timestamp
}

// lookbackCandidates 回看窗口内（新的在前）的买入指令。
func (r *Resolver) lookbackCandidates(msg *model.RawMessage, recent []*model.RawMessage) []candidate {
	var out []candidate
	for i := 0; i < len(recent) && i < r.searchLimit; i++ {
		m := recent[i]
		if m.DomID == msg.DomID {
			continue
		}
		if c := buyCandidate(m.Content); c != nil {
			out = append(out, candidate{in: c, origin: m.Content})
		}
	}
	return out
}

// buyCandidate 文本解析为含标的与行权价的买入指令时才算候选。
func buyCandidate(text string) *model.Instruction {
	in := parse.ParseOption(text)
	if in == nil || in.Type != model.Buy {
		return nil
	}
	if in.Ticker == "" || in.Strike == 0 {
		return nil
	}
	return in
}

// applyContext 仅回填缺失字段。
func applyContext(in, ctx *model.Instruction) {
	if in.Ticker == "" {
		in.Ticker = ctx.Ticker
	}
	if in.Option == "" {
		in.Option = ctx.Option
	}
	if in.Strike == 0 {
		in.Strike = ctx.Strike
	}
	if in.Expiry == "" {
		in.Expiry = ctx.Expiry
	}
}

// finalize 归一化到期日并生成期权代码。
// 相对到期日一律以消息时间折算，与程序运行时刻无关。
func (r *Resolver) finalize(in *model.Instruction, msg *model.RawMessage) error {
	// 期权开仓没写到期日时默认当周，信号频道的惯例。股票指令无到期日。
	if in.Type == model.Buy && in.Option != "" && in.Expiry == "" && in.Ticker != "" {
		in.Expiry = "本周"
	}
	if in.Expiry != "" {
		yymmdd, err := model.NormalizeExpiry(in.Expiry, msg.Timestamp)
		if err != nil {
			return fmt.Errorf("到期日归一化失败: %w", err)
		}
		in.Expiry = yymmdd
	}
	if in.Symbol == "" && in.Ticker != "" && in.Option != "" && in.Strike > 0 && in.Expiry != "" {
		in.Symbol = model.OptionSymbol(in.Ticker, in.Option, in.Strike, in.Expiry)
	}
	return nil
}
