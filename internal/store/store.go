package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"sigtrader/internal/model"
)

// 中文说明：
// SQLite 持久层。消息按 domID 去重保存，处理记录带指令 JSON 落库，
// 重启后可恢复审计视图。纯 Go 驱动，无需 CGO。

// Store SQLite 存储。
type Store struct {
	db *sql.DB
}

// Open 打开（必要时建库建表）。
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	// 单写者，避免 SQLITE_BUSY
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS messages (
	dom_id     TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	author     TEXT,
	timestamp  TEXT,
	refer      TEXT,
	position   TEXT,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS records (
	idx         INTEGER,
	dom_id      TEXT PRIMARY KEY,
	instruction TEXT,
	skip        TEXT,
	skip_note   TEXT,
	order_id    TEXT,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages(timestamp);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("初始化表结构失败: %w", err)
	}
	return nil
}

// SaveMessage 保存消息，domID 冲突时覆盖（编辑过的消息取最新内容）。
func (s *Store) SaveMessage(msg *model.RawMessage) error {
	_, err := s.db.Exec(`
INSERT INTO messages (dom_id, content, author, timestamp, refer, position, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(dom_id) DO UPDATE SET
	content = excluded.content,
	author = excluded.author,
	timestamp = excluded.timestamp,
	refer = excluded.refer,
	position = excluded.position`,
		msg.DomID, msg.Content, msg.Author, msg.Timestamp, msg.Refer,
		string(msg.Position), time.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("保存消息失败: %w", err)
	}
	return nil
}

// SaveRecord 保存处理记录，同一消息重复处理时覆盖。
func (s *Store) SaveRecord(rec *model.Record) error {
	var instrJSON []byte
	if rec.Instruction != nil {
		var err error
		if instrJSON, err = json.Marshal(rec.Instruction); err != nil {
			return fmt.Errorf("序列化指令失败: %w", err)
		}
	}
	domID := ""
	if rec.Message != nil {
		domID = rec.Message.DomID
	}
	_, err := s.db.Exec(`
INSERT INTO records (idx, dom_id, instruction, skip, skip_note, order_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(dom_id) DO UPDATE SET
	idx = excluded.idx,
	instruction = excluded.instruction,
	skip = excluded.skip,
	skip_note = excluded.skip_note,
	order_id = excluded.order_id`,
		rec.Index, domID, string(instrJSON), string(rec.Skip), rec.SkipNote,
		rec.OrderID, time.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("保存记录失败: %w", err)
	}
	return nil
}

// Messages 按时间戳升序返回全部消息。
func (s *Store) Messages() ([]*model.RawMessage, error) {
	rows, err := s.db.Query(`
SELECT dom_id, content, author, timestamp, refer, position
FROM messages ORDER BY timestamp, dom_id`)
	if err != nil {
		return nil, fmt.Errorf("查询消息失败: %w", err)
	}
	defer rows.Close()

	var out []*model.RawMessage
	for rows.Next() {
		var m model.RawMessage
		var pos string
		if err := rows.Scan(&m.DomID, &m.Content, &m.Author, &m.Timestamp, &m.Refer, &pos); err != nil {
			return nil, fmt.Errorf("读取消息失败: %w", err)
		}
		m.Position = model.Position(pos)
		out = append(out, &m)
	}
	return out, rows.Err()
}

// Records 按处理顺序返回全部记录。
func (s *Store) Records() ([]*model.Record, error) {
	rows, err := s.db.Query(`
SELECT idx, dom_id, instruction, skip, skip_note, order_id
FROM records ORDER BY idx`)
	if err != nil {
		return nil, fmt.Errorf("查询记录失败: %w", err)
	}
	defer rows.Close()

	var out []*model.Record
	for rows.Next() {
		var rec model.Record
		var domID, instrJSON, skip string
		if err := rows.Scan(&rec.Index, &domID, &instrJSON, &skip, &rec.SkipNote, &rec.OrderID); err != nil {
			return nil, fmt.Errorf("读取记录失败: %w", err)
		}
		rec.Skip = model.SkipReason(skip)
		if instrJSON != "" {
			var in model.Instruction
			if err := json.Unmarshal([]byte(instrJSON), &in); err == nil {
				rec.Instruction = &in
			}
		}
		if domID != "" {
			rec.Message = &model.RawMessage{DomID: domID}
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Close 关闭数据库。
func (s *Store) Close() error {
	return s.db.Close()
}
