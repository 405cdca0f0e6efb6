package scrape

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"time"

	"sigtrader/internal/logger"
	"sigtrader/internal/model"
	"sigtrader/internal/session"
)

// 中文说明：
// 轮询监视器。按固定间隔抓取页面 DOM，对比上一轮快照，
// 把新增或被编辑的消息按 DOM 顺序送入会话。

// PageSource 页面 DOM 来源，真实浏览器或测试桩。
type PageSource interface {
	HTML(ctx context.Context) (string, error)
}

// Monitor 单个频道页面的监视器。
type Monitor struct {
	name        string
	source      PageSource
	sess        *session.Session
	interval    time.Duration
	skipInitial bool

	seen map[string]string // domID -> 内容指纹
}

// NewMonitor 创建监视器。interval<=0 时取 2 秒。
func NewMonitor(name string, source PageSource, sess *session.Session, interval time.Duration, skipInitial bool) *Monitor {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Monitor{
		name:        name,
		source:      source,
		sess:        sess,
		interval:    interval,
		skipInitial: skipInitial,
		seen:        make(map[string]string),
	}
}

// Run 轮询直到 ctx 取消。单次抓取失败只记日志，下一轮重试。
func (m *Monitor) Run(ctx context.Context) error {
	if m.skipInitial {
		if err := m.markExisting(ctx); err != nil {
			logger.Warnf("[%s] 初始快照失败: %v", m.name, err)
		}
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.poll(ctx); err != nil {
				logger.Warnf("[%s] 轮询失败: %v", m.name, err)
			}
		}
	}
}

// markExisting 把启动时页面上已有的消息记为已读，不回放历史。
func (m *Monitor) markExisting(ctx context.Context) error {
	msgs, err := m.fetch(ctx)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		m.seen[msg.DomID] = fingerprint(msg)
	}
	logger.Infof("[%s] 跳过页面已有的 %d 条历史消息", m.name, len(msgs))
	return nil
}

func (m *Monitor) poll(ctx context.Context) error {
	msgs, err := m.fetch(ctx)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		fp := fingerprint(msg)
		if m.seen[msg.DomID] == fp {
			continue
		}
		m.seen[msg.DomID] = fp
		if _, err := m.sess.Process(ctx, msg); err != nil {
			logger.Errorf("[%s] 处理消息 %s 失败: %v", m.name, msg.DomID, err)
		}
	}
	return nil
}

func (m *Monitor) fetch(ctx context.Context) ([]*model.RawMessage, error) {
	html, err := m.source.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return Extract(html)
}

// fingerprint 内容指纹，消息被编辑时随之变化。
func fingerprint(msg *model.RawMessage) string {
	sum := md5.Sum([]byte(msg.Content + "|" + msg.Refer))
	return hex.EncodeToString(sum[:])
}
