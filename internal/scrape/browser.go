package scrape

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"sigtrader/internal/logger"
)

// 中文说明：
// 浏览器封装。频道页面是重前端应用，消息由 JS 渲染，必须经真实
// 浏览器拿 DOM。一个 Browser 实例对应一个标签页。

// BrowserConfig 浏览器参数。
type BrowserConfig struct {
	Headless    bool
	UserDataDir string
}

// Browser 一个受控的浏览器标签页。
type Browser struct {
	allocCancel context.CancelFunc
	tabCancel   context.CancelFunc
	tab         context.Context
}

// NewBrowser 启动浏览器。登录态保存在 user_data_dir，重启免扫码。
func NewBrowser(cfg BrowserConfig) (*Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.WindowSize(1440, 960),
	)
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tab, tabCancel := chromedp.NewContext(allocCtx)

	// 先起浏览器，失败尽早暴露
	if err := chromedp.Run(tab); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}
	return &Browser{allocCancel: allocCancel, tabCancel: tabCancel, tab: tab}, nil
}

// Navigate 打开频道页面并等待消息容器渲染。
func (b *Browser) Navigate(ctx context.Context, url string) error {
	logger.Infof("打开频道页面: %s", url)
	runCtx, cancel := context.WithTimeout(b.tab, 60*time.Second)
	defer cancel()
	if err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
	); err != nil {
		return fmt.Errorf("打开页面失败: %w", err)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return nil
}

// HTML 抓取当前页面的完整 DOM。
func (b *Browser) HTML(ctx context.Context) (string, error) {
	runCtx, cancel := context.WithTimeout(b.tab, 30*time.Second)
	defer cancel()
	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", fmt.Errorf("抓取页面失败: %w", err)
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return html, nil
}

// Close 关闭标签页与浏览器。
func (b *Browser) Close() {
	b.tabCancel()
	b.allocCancel()
}
