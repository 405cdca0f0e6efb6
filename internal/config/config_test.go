package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[[pages]]
name = "options"
url = "https://chat.example.com/options"
enabled = true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if cfg.App.LogLevel != "info" {
		t.Errorf("log_level 默认值 = %q", cfg.App.LogLevel)
	}
	if cfg.Browser.PollIntervalSeconds != 2.0 {
		t.Errorf("poll_interval_seconds 默认值 = %v", cfg.Browser.PollIntervalSeconds)
	}
	if cfg.Resolver.SearchLimit != 10 {
		t.Errorf("search_limit 默认值 = %d", cfg.Resolver.SearchLimit)
	}
	if cfg.Trader.InitialCash != 100000 {
		t.Errorf("initial_cash 默认值 = %v", cfg.Trader.InitialCash)
	}
	if cfg.Trader.PriceTolerance != 5 {
		t.Errorf("price_tolerance_pct 默认值 = %v", cfg.Trader.PriceTolerance)
	}
	if cfg.Pages[0].Kind != "option" {
		t.Errorf("kind 默认值 = %q", cfg.Pages[0].Kind)
	}
	if cfg.Web.Listen != ":8686" {
		t.Errorf("web.listen 默认值 = %q", cfg.Web.Listen)
	}
	if cfg.Group.PreferAdjacency == nil || !*cfg.Group.PreferAdjacency {
		t.Error("prefer_adjacency 默认应开启")
	}
}

func TestLoadKeepsExplicitAdjacencyOff(t *testing.T) {
	path := writeConfig(t, `
[[pages]]
name = "options"
url = "https://chat.example.com/options"

[group]
prefer_adjacency = false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if cfg.Group.PreferAdjacency == nil || *cfg.Group.PreferAdjacency {
		t.Error("显式关闭的 prefer_adjacency 不应被默认值覆盖")
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
[app]
log_level = "debug"

[[pages]]
name = "options"
url = "https://chat.example.com/options"
kind = "option"
enabled = true

[[pages]]
name = "stocks"
url = "https://chat.example.com/stocks"
kind = "stock"
enabled = false

[browser]
headless = true
poll_interval_seconds = 1.5
skip_initial = true

[trader]
enabled = true
initial_cash = 50000
max_quantity = 5
filter_authors = ["xiaozhaolucky"]

[web]
enabled = true
listen = ":9000"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if len(cfg.Pages) != 2 || cfg.Pages[1].Kind != "stock" {
		t.Errorf("pages 解析异常: %+v", cfg.Pages)
	}
	if !cfg.Browser.SkipInitial || cfg.Browser.PollIntervalSeconds != 1.5 {
		t.Errorf("browser 解析异常: %+v", cfg.Browser)
	}
	if cfg.Trader.InitialCash != 50000 || cfg.Trader.MaxQuantity != 5 {
		t.Errorf("trader 解析异常: %+v", cfg.Trader)
	}
	if len(cfg.Trader.FilterAuthors) != 1 || cfg.Trader.FilterAuthors[0] != "xiaozhaolucky" {
		t.Errorf("filter_authors 解析异常: %v", cfg.Trader.FilterAuthors)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "无页面",
			body: `[app]`,
			want: "至少需要一个",
		},
		{
			name: "页面名重复",
			body: `
[[pages]]
name = "a"
url = "https://x/1"
[[pages]]
name = "a"
url = "https://x/2"
`,
			want: "重复",
		},
		{
			name: "启用页面缺 url",
			body: `
[[pages]]
name = "a"
enabled = true
`,
			want: "缺少 url",
		},
		{
			name: "非法 kind",
			body: `
[[pages]]
name = "a"
url = "https://x/1"
kind = "futures"
`,
			want: "kind 非法",
		},
		{
			name: "仓位比例越界",
			body: `
[[pages]]
name = "a"
url = "https://x/1"
[trader]
max_position_ratio = 1.5
`,
			want: "max_position_ratio",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.body)
			_, err := Load(path)
			if err == nil {
				t.Fatal("期望校验失败")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("错误信息 = %v, 期望包含 %q", err, tc.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("期望读取失败")
	}
}
