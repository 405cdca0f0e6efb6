package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"sigtrader/internal/app"
	"sigtrader/internal/config"
	"sigtrader/internal/logger"
)

// 入口程序：
// 1) 加载 TOML 配置
// 2) 装配浏览器、解析会话、模拟券商与审计服务
// 3) 轮询频道页面直到收到退出信号
// 4) 退出前生成复盘报告
func main() {
	// 从环境变量或默认路径读取配置文件路径
	cfgPath := os.Getenv("SIGTRADER_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.toml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	logger.Infof("✓ 配置加载成功（页面数=%d，自动交易=%v）", len(cfg.Pages), cfg.Trader.Enabled)

	a, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("初始化失败: %v", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Infof("sigtrader 启动完成。开始监视频道消息。按 Ctrl+C 退出。")
	if err := a.Run(ctx); err != nil {
		logger.Fatalf("运行失败: %v", err)
	}
}
