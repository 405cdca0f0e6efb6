package model

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// MessageKind 消息在交易组内的角色。
type MessageKind string

const (
	KindEntry  MessageKind = "entry"
	KindExit   MessageKind = "exit"
	KindUpdate MessageKind = "update"
)

// TradeGroup 一组围绕同一笔交易的消息。组在会话内只增不删。
type TradeGroup struct {
	GroupID        string
	Symbol         string
	EntryMessage   *RawMessage
	ExitMessages   []*RawMessage
	UpdateMessages []*RawMessage
	RawMessages    []*RawMessage
}

// NewTradeGroup 创建空组。
func NewTradeGroup(groupID, symbol string) *TradeGroup {
	return &TradeGroup{GroupID: groupID, Symbol: symbol}
}

// Add 将消息按角色挂入组。
func (g *TradeGroup) Add(msg *RawMessage, kind MessageKind) {
	g.RawMessages = append(g.RawMessages, msg)
	switch kind {
	case KindEntry:
		g.EntryMessage = msg
	case KindExit:
		g.ExitMessages = append(g.ExitMessages, msg)
	default:
		g.UpdateMessages = append(g.UpdateMessages, msg)
	}
}

// HasAuthor 组内是否已有该作者的消息。
func (g *TradeGroup) HasAuthor(author string) bool {
	for _, m := range g.RawMessages {
		if m.Author == author {
			return true
		}
	}
	return false
}

// GroupID 由 (symbol, author, 日期) 派生，同一输入恒产生同一 ID。
func GroupID(symbol, author, timestamp string) string {
	key := fmt.Sprintf("%s_%s_%s", symbol, author, DatePartOf(timestamp))
	sum := md5.Sum([]byte(key))
	return fmt.Sprintf("%s_%s", symbol, hex.EncodeToString(sum[:])[:8])
}
