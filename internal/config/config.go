package config

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// 配置结构体（按模块分节，保留必要字段，便于后续扩展）
type Config struct {
	App struct {
		Env      string `toml:"env"`
		LogLevel string `toml:"log_level"`
	} `toml:"app"`

	// 监听的频道页面，每个页面一个独立会话
	Pages []Page `toml:"pages"`

	Browser struct {
		Headless            bool   `toml:"headless"`
		PollIntervalSeconds float64 `toml:"poll_interval_seconds"`
		SkipInitial         bool   `toml:"skip_initial"` // 启动时跳过页面上已有的历史消息
		UserDataDir         string `toml:"user_data_dir"`
	} `toml:"browser"`

	Matcher struct {
		MinScore float64 `toml:"min_score"` // 引用匹配的最低相似度
	} `toml:"matcher"`

	Resolver struct {
		SearchLimit int `toml:"search_limit"` // 上下文回看窗口
	} `toml:"resolver"`

	Group struct {
		// 相邻消息优先接续上一组。默认开启，显式置 false 才关闭
		PreferAdjacency *bool `toml:"prefer_adjacency"`
	} `toml:"group"`

	Trader struct {
		Enabled          bool     `toml:"enabled"`
		InitialCash      float64  `toml:"initial_cash"`
		MaxSingleTrade   float64  `toml:"max_single_trade"`
		MaxQuantity      int      `toml:"max_quantity"`
		PriceTolerance   float64  `toml:"price_tolerance_pct"`
		MinOrderAmount   float64  `toml:"min_order_amount"`
		MaxPositionRatio float64  `toml:"max_position_ratio"`
		MaxDailyLoss     float64  `toml:"max_daily_loss"`
		FilterAuthors    []string `toml:"filter_authors"`
	} `toml:"trader"`

	Store struct {
		Path string `toml:"path"` // SQLite 文件路径
	} `toml:"store"`

	Web struct {
		Enabled bool   `toml:"enabled"`
		Listen  string `toml:"listen"`
	} `toml:"web"`

	Report struct {
		OutputDir string `toml:"output_dir"`
		SMAPeriod int    `toml:"sma_period"` // 权益曲线均线周期
	} `toml:"report"`
}

// Page 单个频道页面。
type Page struct {
	Name    string `toml:"name"`
	URL     string `toml:"url"`
	Kind    string `toml:"kind"` // option | stock
	Enabled bool   `toml:"enabled"`
}

// Load 读取并解析 TOML 配置文件，并设置缺省值与基本校验
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析 TOML 失败: %w", err)
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// 默认值设置
func applyDefaults(c *Config) {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Browser.PollIntervalSeconds <= 0 {
		c.Browser.PollIntervalSeconds = 2.0
	}
	if c.Matcher.MinScore <= 0 {
		c.Matcher.MinScore = 0.3
	}
	if c.Resolver.SearchLimit <= 0 {
		c.Resolver.SearchLimit = 10
	}
	if c.Group.PreferAdjacency == nil {
		on := true
		c.Group.PreferAdjacency = &on
	}
	if c.Trader.InitialCash <= 0 {
		c.Trader.InitialCash = 100000
	}
	if c.Trader.MaxSingleTrade <= 0 {
		c.Trader.MaxSingleTrade = 10000
	}
	if c.Trader.MaxQuantity <= 0 {
		c.Trader.MaxQuantity = 10
	}
	if c.Trader.PriceTolerance <= 0 {
		c.Trader.PriceTolerance = 5
	}
	if c.Store.Path == "" {
		c.Store.Path = "sigtrader.db"
	}
	if c.Web.Listen == "" {
		c.Web.Listen = ":8686"
	}
	if c.Report.OutputDir == "" {
		c.Report.OutputDir = "reports"
	}
	if c.Report.SMAPeriod <= 0 {
		c.Report.SMAPeriod = 5
	}
	for i := range c.Pages {
		if c.Pages[i].Kind == "" {
			c.Pages[i].Kind = "option"
		}
	}
}

// 基础校验
func validate(c *Config) error {
	if len(c.Pages) == 0 {
		return fmt.Errorf("pages 至少需要一个频道页面")
	}
	seen := make(map[string]struct{}, len(c.Pages))
	for _, p := range c.Pages {
		if p.Name == "" {
			return fmt.Errorf("pages 中存在缺少 name 的页面")
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("页面名称重复: %s", p.Name)
		}
		seen[p.Name] = struct{}{}
		if p.Enabled && p.URL == "" {
			return fmt.Errorf("页面 %s 已启用但缺少 url", p.Name)
		}
		if p.Kind != "option" && p.Kind != "stock" {
			return fmt.Errorf("页面 %s 的 kind 非法: %s (仅支持 option/stock)", p.Name, p.Kind)
		}
	}
	if c.Matcher.MinScore > 1 {
		return fmt.Errorf("matcher.min_score 需在 (0,1]")
	}
	if c.Trader.MaxPositionRatio < 0 || c.Trader.MaxPositionRatio > 1 {
		return fmt.Errorf("trader.max_position_ratio 需在 [0,1]")
	}
	if c.Trader.MaxDailyLoss < 0 || c.Trader.MaxDailyLoss > 1 {
		return fmt.Errorf("trader.max_daily_loss 需在 [0,1]")
	}
	return nil
}
