package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"sigtrader/internal/broker"
	"sigtrader/internal/config"
	"sigtrader/internal/logger"
	"sigtrader/internal/model"
	"sigtrader/internal/pkg/sliceutil"
	"sigtrader/internal/report"
	"sigtrader/internal/scrape"
	"sigtrader/internal/session"
	"sigtrader/internal/store"
	"sigtrader/internal/trade"
	"sigtrader/internal/web"
)

// App 负责应用级编排：加载配置→初始化依赖→启动各频道监视与审计服务。
type App struct {
	cfg      *config.Config
	broker   *broker.PaperBroker
	store    *store.Store
	sessions map[string]*session.Session
	monitors []*scrape.Monitor
	browsers []*scrape.Browser
	web      *web.Server
	report   *report.Generator
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// AppBuilder 分步构建 App，便于 wire 注入。
type AppBuilder struct {
	cfg *config.Config
}

// NewAppBuilder 创建构建器。
func NewAppBuilder(cfg *config.Config) *AppBuilder {
	return &AppBuilder{cfg: cfg}
}

// Build 按配置装配全部依赖。
func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	cfg := b.cfg
	a := &App{cfg: cfg, sessions: make(map[string]*session.Session)}

	a.broker = buildBroker(cfg)
	logger.Infof("✓ 模拟券商就绪 (初始资金 $%.0f)", cfg.Trader.InitialCash)

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	a.store = st
	logger.Infof("✓ 存储就绪: %s", cfg.Store.Path)

	engine := buildEngine(cfg, a.broker)

	for _, page := range cfg.Pages {
		if !page.Enabled {
			logger.Infof("跳过未启用页面: %s", page.Name)
			continue
		}
		sess := buildSession(cfg, page, engine, st)
		a.sessions[page.Name] = sess

		browser, err := scrape.NewBrowser(scrape.BrowserConfig{
			Headless:    cfg.Browser.Headless,
			UserDataDir: cfg.Browser.UserDataDir,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("页面 %s: %w", page.Name, err)
		}
		if err := browser.Navigate(ctx, page.URL); err != nil {
			browser.Close()
			a.Close()
			return nil, fmt.Errorf("页面 %s: %w", page.Name, err)
		}
		a.browsers = append(a.browsers, browser)

		interval := time.Duration(cfg.Browser.PollIntervalSeconds * float64(time.Second))
		a.monitors = append(a.monitors,
			scrape.NewMonitor(page.Name, browser, sess, interval, cfg.Browser.SkipInitial))
		logger.Infof("✓ 频道监视就绪: %s (%s)", page.Name, page.Kind)
	}
	if len(a.monitors) == 0 {
		a.Close()
		return nil, fmt.Errorf("没有已启用的频道页面")
	}

	if cfg.Web.Enabled {
		a.web = web.NewServer(cfg.Web.Listen, a.sessions, a.broker)
		logger.Infof("✓ 审计 API 就绪: %s", cfg.Web.Listen)
	}
	a.report = report.New(cfg.Report.OutputDir, cfg.Report.SMAPeriod)
	return a, nil
}

func buildBroker(cfg *config.Config) *broker.PaperBroker {
	return broker.NewPaper(broker.PaperConfig{
		InitialCash:      cfg.Trader.InitialCash,
		MinOrderAmount:   cfg.Trader.MinOrderAmount,
		MaxPositionRatio: cfg.Trader.MaxPositionRatio,
		MaxDailyLoss:     cfg.Trader.MaxDailyLoss,
	})
}

func buildEngine(cfg *config.Config, b broker.Broker) *trade.Engine {
	return trade.New(b, trade.Config{
		MaxSingleTrade: cfg.Trader.MaxSingleTrade,
		MaxQuantity:    cfg.Trader.MaxQuantity,
		PriceTolerance: cfg.Trader.PriceTolerance,
	})
}

func buildSession(cfg *config.Config, page config.Page, engine *trade.Engine, st *store.Store) *session.Session {
	kind := session.PageOption
	if page.Kind == "stock" {
		kind = session.PageStock
	}
	adjacency := cfg.Group.PreferAdjacency == nil || *cfg.Group.PreferAdjacency
	return session.New(session.Options{
		Kind:             kind,
		AutoTrade:        cfg.Trader.Enabled,
		SearchLimit:      cfg.Resolver.SearchLimit,
		MinMatchScore:    cfg.Matcher.MinScore,
		DisableAdjacency: !adjacency,
		FilterAuthors:    sliceutil.Strings(cfg.Trader.FilterAuthors),
	}, engine, st)
}

// Run 启动全部频道监视与审计服务，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	group, ctx := errgroup.WithContext(ctx)

	if a.web != nil {
		group.Go(func() error {
			if err := a.web.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Warnf("审计 API 停止: %v", err)
			}
			return nil
		})
	}
	for _, m := range a.monitors {
		m := m
		group.Go(func() error {
			err := m.Run(ctx)
			if err == context.Canceled {
				return nil
			}
			return err
		})
	}

	err := group.Wait()
	a.writeReport()
	if err == context.Canceled {
		return nil
	}
	return err
}

// writeReport 退出前生成复盘报告，汇总全部会话。
func (a *App) writeReport() {
	orders, err := a.broker.TodayOrders(context.Background(), "")
	if err != nil {
		logger.Warnf("查询订单失败: %v", err)
	}
	var all []*model.Record
	for _, sess := range a.sessions {
		all = append(all, sess.Records()...)
		all = append(all, sess.Discards()...)
	}
	if path, err := a.report.Generate(all, orders); err == nil {
		logger.Infof("报告已生成: %s", path)
	} else {
		logger.Warnf("报告生成失败: %v", err)
	}
}

// Close 释放浏览器与存储。
func (a *App) Close() {
	for _, b := range a.browsers {
		b.Close()
	}
	if a.store != nil {
		a.store.Close()
		a.store = nil
	}
}
