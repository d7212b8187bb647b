package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github-trending/internal/common"
	"github-trending/internal/domain"
)

// envPrefix 环境变量前缀，GT_AI__DEFAULT_PROVIDER 映射到 ai.default_provider
const envPrefix = "GT_"

// KnownProviders 支持的 LLM 后端名单，工厂据此做快速失败
var KnownProviders = []string{"claude", "openai", "deepseek", "ollama", "gemini"}

// PopularLanguages languages 模式展示的常见语言
var PopularLanguages = []string{
	"python", "javascript", "typescript", "go", "rust",
	"java", "c++", "c", "swift", "kotlin", "ruby", "php",
}

// Config 汇总全部可调参数，按 默认值 < YAML < 环境变量 叠加
type Config struct {
	Scraper ScraperConfig `koanf:"scraper"`
	AI      AIConfig      `koanf:"ai"`
	Cache   CacheConfig   `koanf:"cache"`
	Store   StoreConfig   `koanf:"store"`
}

// ScraperConfig 抓取端参数
type ScraperConfig struct {
	BaseURL     string        `koanf:"base_url"`
	Timeout     time.Duration `koanf:"timeout"`
	MaxRetries  int           `koanf:"max_retries"`
	MinDelay    time.Duration `koanf:"min_delay"`
	MaxDelay    time.Duration `koanf:"max_delay"`
	Limit       int           `koanf:"limit"`
	Proxy       string        `koanf:"proxy"`
	GitHubToken string        `koanf:"github_token"`
	UserAgents  []string      `koanf:"user_agents"`
}

// AIConfig LLM 分析参数
type AIConfig struct {
	DefaultProvider string                    `koanf:"default_provider"`
	DetailLevel     string                    `koanf:"detail_level"`
	Providers       map[string]ProviderConfig `koanf:"providers"`
}

// ProviderConfig 单个后端的连接参数，APIKey 通常来自环境变量
type ProviderConfig struct {
	Model     string `koanf:"model"`
	APIKey    string `koanf:"api_key"`
	BaseURL   string `koanf:"base_url"`
	MaxTokens int    `koanf:"max_tokens"`
}

// CacheConfig 分析结果缓存参数，零值即启用
type CacheConfig struct {
	Disabled bool   `koanf:"disabled"`
	Dir      string `koanf:"dir"`
	TTLHours int    `koanf:"ttl_hours"`
}

// StoreConfig 持久化参数，sqlite 的 DSN 就是文件路径
type StoreConfig struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

// Default 返回一份开箱即用的配置
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load 按 默认值 -> YAML 文件 -> GT_ 环境变量 -> 直连密钥环境变量
// 的顺序叠加配置。path 为空时跳过文件层；文件不存在不算错误。
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, common.WrapError(common.ErrCodeConfig, fmt.Sprintf("读取配置文件 %s", path), err)
			}
		} else if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, common.WrapError(common.ErrCodeConfig, fmt.Sprintf("解析配置文件 %s", path), err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, common.WrapError(common.ErrCodeConfig, "读取环境变量", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, common.WrapError(common.ErrCodeConfig, "映射配置", err)
	}

	applyDefaults(cfg)
	applyEnvKeys(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults 给零值字段补上默认值
func applyDefaults(cfg *Config) {
	if cfg.Scraper.BaseURL == "" {
		cfg.Scraper.BaseURL = "https://github.com/trending"
	}
	if cfg.Scraper.Timeout == 0 {
		cfg.Scraper.Timeout = 30 * time.Second
	}
	if cfg.Scraper.MaxRetries == 0 {
		cfg.Scraper.MaxRetries = 3
	}
	if cfg.Scraper.MinDelay == 0 {
		cfg.Scraper.MinDelay = time.Second
	}
	if cfg.Scraper.MaxDelay == 0 {
		cfg.Scraper.MaxDelay = 3 * time.Second
	}
	if cfg.Scraper.Limit == 0 {
		cfg.Scraper.Limit = 25
	}
	if len(cfg.Scraper.UserAgents) == 0 {
		cfg.Scraper.UserAgents = []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		}
	}

	if cfg.AI.DefaultProvider == "" {
		cfg.AI.DefaultProvider = "claude"
	}
	if cfg.AI.DetailLevel == "" {
		cfg.AI.DetailLevel = string(domain.DetailStandard)
	}
	if cfg.AI.Providers == nil {
		cfg.AI.Providers = map[string]ProviderConfig{}
	}
	defaults := map[string]ProviderConfig{
		"claude":   {Model: "claude-sonnet-4-20250514", MaxTokens: 4096},
		"openai":   {Model: "gpt-4o-mini", MaxTokens: 4096},
		"deepseek": {Model: "deepseek-chat", BaseURL: "https://api.deepseek.com", MaxTokens: 4096},
		"ollama":   {Model: "llama3.2", BaseURL: "http://localhost:11434", MaxTokens: 4096},
		"gemini":   {Model: "gemini-2.5-flash-lite", MaxTokens: 4096},
	}
	for name, def := range defaults {
		p := cfg.AI.Providers[name]
		if p.Model == "" {
			p.Model = def.Model
		}
		if p.BaseURL == "" {
			p.BaseURL = def.BaseURL
		}
		if p.MaxTokens == 0 {
			p.MaxTokens = def.MaxTokens
		}
		cfg.AI.Providers[name] = p
	}

	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = ".ai_cache"
	}
	if cfg.Cache.TTLHours == 0 {
		cfg.Cache.TTLHours = 24
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite"
	}
	if cfg.Store.DSN == "" && cfg.Store.Driver == "sqlite" {
		cfg.Store.DSN = "trending.db"
	}
}

// applyEnvKeys 把约定俗成的密钥环境变量灌进对应后端
func applyEnvKeys(cfg *Config) {
	keys := map[string]string{
		"claude":   "ANTHROPIC_API_KEY",
		"openai":   "OPENAI_API_KEY",
		"deepseek": "DEEPSEEK_API_KEY",
		"gemini":   "GEMINI_API_KEY",
	}
	for name, envKey := range keys {
		if v := os.Getenv(envKey); v != "" {
			p := cfg.AI.Providers[name]
			if p.APIKey == "" {
				p.APIKey = v
				cfg.AI.Providers[name] = p
			}
		}
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" && cfg.Scraper.GitHubToken == "" {
		cfg.Scraper.GitHubToken = v
	}
}

// Validate 做快速失败检查，错误都带 CONFIG_ERROR 码
func (c *Config) Validate() error {
	if !knownProvider(c.AI.DefaultProvider) {
		return common.NewError(common.ErrCodeConfig,
			fmt.Sprintf("未知的 LLM 后端 %q，可选: %s", c.AI.DefaultProvider, strings.Join(KnownProviders, ", ")))
	}
	switch domain.DetailLevel(c.AI.DetailLevel) {
	case domain.DetailBrief, domain.DetailStandard, domain.DetailDeep:
	default:
		return common.NewError(common.ErrCodeConfig, fmt.Sprintf("未知的 detail 档位 %q", c.AI.DetailLevel))
	}
	if c.Scraper.MinDelay <= 0 || c.Scraper.MaxDelay < c.Scraper.MinDelay {
		return common.NewError(common.ErrCodeConfig,
			fmt.Sprintf("限速区间不合法: min=%v max=%v", c.Scraper.MinDelay, c.Scraper.MaxDelay))
	}
	if c.Scraper.Limit <= 0 {
		return common.NewError(common.ErrCodeConfig, fmt.Sprintf("limit 必须为正数: %d", c.Scraper.Limit))
	}
	if c.Cache.TTLHours <= 0 {
		return common.NewError(common.ErrCodeConfig, fmt.Sprintf("缓存 TTL 必须为正数: %d", c.Cache.TTLHours))
	}
	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		return common.NewError(common.ErrCodeConfig, fmt.Sprintf("未知的存储驱动 %q", c.Store.Driver))
	}
	return nil
}

// Provider 取某个后端的最终参数，名字不认识时报配置错误
func (c *Config) Provider(name string) (ProviderConfig, error) {
	if !knownProvider(name) {
		return ProviderConfig{}, common.NewError(common.ErrCodeConfig,
			fmt.Sprintf("未知的 LLM 后端 %q，可选: %s", name, strings.Join(KnownProviders, ", ")))
	}
	return c.AI.Providers[name], nil
}

// CacheTTL 换算成 time.Duration
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLHours) * time.Hour
}

func knownProvider(name string) bool {
	for _, p := range KnownProviders {
		if p == name {
			return true
		}
	}
	return false
}
