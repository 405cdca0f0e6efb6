package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sigtrader/internal/broker"
	"sigtrader/internal/logger"
	"sigtrader/internal/model"
	"sigtrader/internal/session"
)

// 中文说明：
// 审计 API。只读视图：处理记录、失败清单、交易组与当前持仓，
// 供排查"为什么这条消息没下单"。

// Server 审计 HTTP 服务。
type Server struct {
	listen   string
	sessions map[string]*session.Session
	broker   broker.Broker
	engine   *gin.Engine
}

// NewServer 创建服务。broker 可为 nil（纯解析模式无持仓视图）。
func NewServer(listen string, sessions map[string]*session.Session, b broker.Broker) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{listen: listen, sessions: sessions, broker: b, engine: r}

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/records", s.handleRecords)
	api.GET("/discards", s.handleDiscards)
	api.GET("/groups", s.handleGroups)
	api.GET("/positions", s.handlePositions)
	return s
}

// Start 启动并在 ctx 取消时优雅退出。
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.listen, Handler: s.engine}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("审计 API 监听 %s", s.listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "pages": len(s.sessions)})
}

func (s *Server) handleRecords(c *gin.Context) {
	c.JSON(http.StatusOK, s.collect(func(sess *session.Session) []*model.Record {
		return sess.Records()
	}))
}

func (s *Server) handleDiscards(c *gin.Context) {
	c.JSON(http.StatusOK, s.collect(func(sess *session.Session) []*model.Record {
		return sess.Discards()
	}))
}

// recordView 记录的对外形态。
type recordView struct {
	Index       int                `json:"index"`
	DomID       string             `json:"domID"`
	Content     string             `json:"content"`
	Author      string             `json:"author,omitempty"`
	Instruction *model.Instruction `json:"instruction,omitempty"`
	Skip        string             `json:"skip,omitempty"`
	SkipNote    string             `json:"skip_note,omitempty"`
	OrderID     string             `json:"order_id,omitempty"`
}

func (s *Server) collect(pick func(*session.Session) []*model.Record) gin.H {
	out := gin.H{}
	for name, sess := range s.sessions {
		records := pick(sess)
		views := make([]recordView, 0, len(records))
		for _, rec := range records {
			v := recordView{
				Index:       rec.Index,
				Instruction: rec.Instruction,
				Skip:        string(rec.Skip),
				SkipNote:    rec.SkipNote,
				OrderID:     rec.OrderID,
			}
			if rec.Message != nil {
				v.DomID = rec.Message.DomID
				v.Content = rec.Message.Content
				v.Author = rec.Message.Author
			}
			views = append(views, v)
		}
		out[name] = views
	}
	return out
}

// groupView 交易组摘要。
type groupView struct {
	GroupID  string `json:"group_id"`
	Symbol   string `json:"symbol"`
	Entry    string `json:"entry,omitempty"`
	Exits    int    `json:"exits"`
	Updates  int    `json:"updates"`
	Messages int    `json:"messages"`
}

func (s *Server) handleGroups(c *gin.Context) {
	out := gin.H{}
	for name, sess := range s.sessions {
		groups := sess.Groups()
		views := make([]groupView, 0, len(groups))
		for _, g := range groups {
			v := groupView{
				GroupID:  g.GroupID,
				Symbol:   g.Symbol,
				Exits:    len(g.ExitMessages),
				Updates:  len(g.UpdateMessages),
				Messages: len(g.RawMessages),
			}
			if g.EntryMessage != nil {
				v.Entry = g.EntryMessage.Content
			}
			views = append(views, v)
		}
		out[name] = views
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handlePositions(c *gin.Context) {
	if s.broker == nil {
		c.JSON(http.StatusOK, []any{})
		return
	}
	positions, err := s.broker.Positions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, positions)
}
