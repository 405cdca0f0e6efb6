package session

import (
	"context"
	"fmt"

	"sigtrader/internal/filter"
	"sigtrader/internal/group"
	"sigtrader/internal/logger"
	"sigtrader/internal/model"
	"sigtrader/internal/parse"
	"sigtrader/internal/pkg/jsonutil"
	"sigtrader/internal/pkg/sliceutil"
	"sigtrader/internal/resolve"
	"sigtrader/internal/trade"
)

// 中文说明：
// 会话：单个频道的完整处理管线。消息逐条经过
// 过滤 -> 归组 -> 解析 -> 上下文补全 -> 交易决策，
// 每条消息产出一条处理记录。全部状态挂在会话实例上，无全局变量。

// PageKind 频道类型，决定用哪套解析规则。
type PageKind string

const (
	PageOption PageKind = "option"
	PageStock  PageKind = "stock"
)

// Recorder 处理结果的持久化钩子。
type Recorder interface {
	SaveMessage(msg *model.RawMessage) error
	SaveRecord(rec *model.Record) error
}

// Options 会话参数。
type Options struct {
	Kind          PageKind
	AutoTrade     bool
	SearchLimit   int
	MinMatchScore float64
	// 关闭相邻消息优先接续。默认开启，与频道 DOM 的分组语义一致
	DisableAdjacency bool
	FilterAuthors    []string
}

// Session 单频道处理会话。非并发安全，消息按到达顺序逐条处理。
type Session struct {
	opts     Options
	grouper  *group.Grouper
	resolver *resolve.Resolver
	engine   *trade.Engine
	recorder Recorder

	authors  map[string]struct{}
	records  []*model.Record
	discards []*model.Record
	index    int
}

// New 创建会话。engine 为 nil 时只解析不交易，recorder 可为 nil。
func New(opts Options, engine *trade.Engine, recorder Recorder) *Session {
	if opts.Kind == "" {
		opts.Kind = PageOption
	}
	s := &Session{
		opts:     opts,
		grouper:  group.New(opts.SearchLimit, !opts.DisableAdjacency),
		resolver: resolve.New(opts.SearchLimit, opts.MinMatchScore),
		engine:   engine,
		recorder: recorder,
	}
	if len(opts.FilterAuthors) > 0 {
		s.authors = make(map[string]struct{}, len(opts.FilterAuthors))
		for _, a := range opts.FilterAuthors {
			s.authors[a] = struct{}{}
		}
	}
	return s
}

// Process 处理一条消息。元数据与被作者过滤的消息返回 (nil, nil)，
// 缺 domID/content 是输入契约破坏，返回错误。
func (s *Session) Process(ctx context.Context, msg *model.RawMessage) (*model.Record, error) {
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("非法消息: %w", err)
	}
	if s.authors != nil {
		if _, ok := s.authors[msg.Author]; !ok {
			return nil, nil
		}
	}
	if filter.IsImageOnly(msg.HasAttachment, msg.Content, msg.History) {
		return nil, nil
	}

	res := s.grouper.Process(msg)
	if res.Skipped {
		logger.Debugf("跳过消息 %s: %s", msg.DomID, res.SkipNote)
		return nil, nil
	}
	if s.recorder != nil {
		if err := s.recorder.SaveMessage(msg); err != nil {
			logger.Warnf("消息持久化失败: %v", err)
		}
	}

	s.index++
	rec := &model.Record{Index: s.index, Message: msg}

	in := s.parseMessage(msg.Content)
	if in == nil {
		rec.Skip = model.SkipParseFailure
		rec.SkipNote = "未识别出交易指令"
		return s.finish(rec), nil
	}
	in.MessageID = msg.DomID
	rec.Instruction = in

	if err := s.resolver.Resolve(in, msg, res.Group, s.grouper.Recent(s.opts.SearchLimit)); err != nil {
		rec.Skip = model.SkipResolutionFailure
		rec.SkipNote = err.Error()
		return s.finish(rec), nil
	}
	logger.Infof("指令就绪: %s", in)
	logger.Debugf("指令明细: %s", jsonutil.MarshalPretty(in))

	if s.engine != nil && s.opts.AutoTrade {
		out, err := s.engine.Execute(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("交易执行失败: %w", err)
		}
		rec.OrderID = out.OrderID
		rec.Skip = out.Skip
		rec.SkipNote = out.Note
	}
	return s.finish(rec), nil
}

func (s *Session) parseMessage(content string) *model.Instruction {
	if s.opts.Kind == PageStock {
		return parse.ParseStock(content)
	}
	return parse.ParseOption(content)
}

func (s *Session) finish(rec *model.Record) *model.Record {
	if rec.Discarded() {
		s.discards = append(s.discards, rec)
		logger.Debugf("记录落入失败清单: #%d %s (%s)", rec.Index, rec.Skip, rec.SkipNote)
	} else {
		s.records = append(s.records, rec)
	}
	if s.recorder != nil {
		if err := s.recorder.SaveRecord(rec); err != nil {
			logger.Warnf("记录持久化失败: %v", err)
		}
	}
	return rec
}

// Records 成功处理的记录副本。
func (s *Session) Records() []*model.Record {
	return sliceutil.Records(s.records)
}

// Discards 失败清单副本。
func (s *Session) Discards() []*model.Record {
	return sliceutil.Records(s.discards)
}

// Groups 会话内全部交易组。
func (s *Session) Groups() []*model.TradeGroup {
	return s.grouper.Groups()
}
