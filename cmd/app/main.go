package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github-trending/internal/adapter/aicache"
	"github-trending/internal/adapter/llm"
	"github-trending/internal/adapter/output"
	"github-trending/internal/adapter/repository"
	"github-trending/internal/adapter/scraper"
	"github-trending/internal/common"
	"github-trending/internal/config"
	"github-trending/internal/domain"
	"github-trending/internal/port"
	"github-trending/internal/service"
)

// cliFlags 收拢全部命令行参数，方便在各模式之间传递
type cliFlags struct {
	language string
	since    string
	limit    int
	output   string
	out      string
	save     bool
	withAI   bool
	aiModel  string
	aiCache  bool
	cacheSet bool // -ai-cache 是否被显式传入
	aiForce  bool
	detail   string
	proxy    string
	db       string
	minScore float64
	days     int
	clearAll bool
	interval time.Duration
}

func main() {
	// .env 是可选文件，加载失败不吱声
	_ = godotenv.Load()

	// 1. 定义命令行参数
	mode := flag.String("mode", "trending", "运行模式: trending / high-score / stats / cleanup / cache-clear / languages / watch")
	configPath := flag.String("config", "", "YAML 配置文件路径")
	language := flag.String("language", "", "筛选编程语言，空表示全部")
	since := flag.String("since", "daily", "时间周期: daily / weekly / monthly")
	limit := flag.Int("limit", 0, "返回数量上限，0 表示用各模式的默认值")
	outputFormat := flag.String("output", "table", "输出格式: table / json / markdown / csv")
	outFile := flag.String("out", "", "把结果写到文件而不是终端")
	save := flag.Bool("save", false, "把榜单快照和分析结果存进数据库")
	withAI := flag.Bool("ai", false, "对每个仓库做 AI 分析")
	aiModel := flag.String("ai-model", "", "LLM 后端: claude / openai / deepseek / ollama / gemini")
	aiCache := flag.Bool("ai-cache", true, "是否启用分析结果缓存")
	aiForce := flag.Bool("ai-force", false, "忽略已有缓存强制重新分析")
	detail := flag.String("detail", "", "分析深度: brief / standard / deep")
	proxy := flag.String("proxy", "", "HTTP 代理地址")
	db := flag.String("db", "", "数据库位置，sqlite 文件路径或 postgres DSN")
	minScore := flag.Float64("min-score", 7.0, "high-score 模式的最低评分")
	days := flag.Int("days", 0, "时间窗口天数，0 表示用各模式的默认值")
	clearAll := flag.Bool("all", false, "cache-clear 模式下连未过期的缓存一起清空")
	interval := flag.Duration("interval", 30*time.Minute, "watch 模式的抓取间隔")
	flag.Parse()

	f := cliFlags{
		language: *language,
		since:    *since,
		limit:    *limit,
		output:   *outputFormat,
		out:      *outFile,
		save:     *save,
		withAI:   *withAI,
		aiModel:  *aiModel,
		aiCache:  *aiCache,
		aiForce:  *aiForce,
		detail:   *detail,
		proxy:    *proxy,
		db:       *db,
		minScore: *minScore,
		days:     *days,
		clearAll: *clearAll,
		interval: *interval,
	}
	flag.Visit(func(fl *flag.Flag) {
		if fl.Name == "ai-cache" {
			f.cacheSet = true
		}
	})

	if !domain.ValidPeriod(f.since) {
		log.Fatalf("❌ 未知的时间周期 %q，可选: daily / weekly / monthly", f.since)
	}

	// 2. 加载配置并叠加命令行覆盖
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ 配置加载失败: %v", err)
	}
	if err := applyFlagOverrides(cfg, f); err != nil {
		log.Fatalf("❌ %v", err)
	}

	// 3. 信号触发优雅退出
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. 根据模式分流
	if err := run(ctx, *mode, cfg, f); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func run(ctx context.Context, mode string, cfg *config.Config, f cliFlags) error {
	switch mode {
	case "trending":
		return runTrending(ctx, cfg, f)
	case "watch":
		return runWatch(ctx, cfg, f)
	case "high-score":
		return runHighScore(ctx, cfg, f)
	case "stats":
		return runStats(ctx, cfg)
	case "cleanup":
		return runCleanup(ctx, cfg, f.days)
	case "cache-clear":
		return runCacheClear(cfg, f.clearAll)
	case "languages":
		return runLanguages(ctx, cfg)
	default:
		return common.NewError(common.ErrCodeInvalidInput,
			fmt.Sprintf("未知模式 %q，可选: trending / high-score / stats / cleanup / cache-clear / languages / watch", mode))
	}
}

// applyFlagOverrides 把显式传入的命令行参数盖到配置上，盖完再校验一次
func applyFlagOverrides(cfg *config.Config, f cliFlags) error {
	if f.aiModel != "" {
		cfg.AI.DefaultProvider = strings.ToLower(f.aiModel)
	}
	if f.detail != "" {
		cfg.AI.DetailLevel = f.detail
	}
	if f.proxy != "" {
		cfg.Scraper.Proxy = f.proxy
	}
	if f.limit > 0 {
		cfg.Scraper.Limit = f.limit
	}
	if f.cacheSet {
		cfg.Cache.Disabled = !f.aiCache
	}
	if f.db != "" {
		cfg.Store = storeConfigForDSN(f.db)
	}
	return cfg.Validate()
}

// storeConfigForDSN 从 -db 的取值猜驱动: 带 scheme 或 host= 的按 postgres 算，
// 其余一律当 sqlite 文件路径
func storeConfigForDSN(dsn string) config.StoreConfig {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return config.StoreConfig{Driver: "postgres", DSN: dsn}
	}
	return config.StoreConfig{Driver: "sqlite", DSN: dsn}
}

// buildCycle 按参数组装一轮抓取要用到的全部组件
// AI 后端不可用时降级为纯榜单模式，不让整个命令失败
func buildCycle(ctx context.Context, cfg *config.Config, f cliFlags) (*service.TrendingService, service.CycleOptions, error) {
	opts := service.CycleOptions{
		Language: f.language,
		Period:   domain.Period(f.since),
		Limit:    cfg.Scraper.Limit,
		WithAI:   f.withAI,
		Save:     f.save,
	}

	limiter := common.NewRateLimiter(cfg.Scraper.MinDelay, cfg.Scraper.MaxDelay)
	client, err := scraper.NewClient(cfg.Scraper, limiter)
	if err != nil {
		return nil, opts, err
	}
	source := scraper.NewTrendingScraper(client, scraper.NewParser())

	var readme port.ReadmeSource
	var analyzer port.Analyzer
	if opts.WithAI {
		aiClient, err := buildAnalyzer(ctx, cfg, f.aiForce, limiter)
		if err != nil {
			return nil, opts, err
		}
		if !aiClient.IsAvailable(ctx) {
			fmt.Println("⚠️ AI 后端不可用，本次跳过 AI 分析")
			fmt.Println("提示: 用 -ai-model 换一个后端，或设置对应的 API Key 环境变量")
			opts.WithAI = false
		} else {
			fmt.Printf("🤖 使用 AI 模型: %s\n", aiClient.ModelName())
			bucket := common.NewTokenBucket(2, 5)
			readme = scraper.NewReadmeFetcher(client, cfg.Scraper.GitHubToken, domain.DetailLevel(cfg.AI.DetailLevel), bucket)
			analyzer = aiClient
		}
	}

	var store port.RepoStore
	if opts.Save {
		st, err := repository.New(cfg.Store)
		if err != nil {
			return nil, opts, err
		}
		store = st
	}

	return service.NewTrendingService(source, readme, analyzer, store), opts, nil
}

// buildAnalyzer 组装 LLM 客户端，-ai-force 时缓存只写不读
func buildAnalyzer(ctx context.Context, cfg *config.Config, force bool, limiter *common.RateLimiter) (*llm.Client, error) {
	name := cfg.AI.DefaultProvider
	pcfg, err := cfg.Provider(name)
	if err != nil {
		return nil, err
	}
	provider, err := llm.NewProvider(ctx, name, pcfg)
	if err != nil {
		return nil, err
	}

	var cache port.AnalysisCache
	if !cfg.Cache.Disabled {
		fileCache := aicache.New(cfg.Cache.Dir, cfg.CacheTTL(), true)
		if force {
			cache = aicache.WriteOnly{Inner: fileCache}
		} else {
			cache = fileCache
		}
	}
	return llm.NewClient(provider, name, cache, limiter), nil
}

// emit 渲染结果，-out 非空时写文件，否则直接打到终端
func emit(formatter *output.Formatter, repos []*domain.TrendingRepo, format, path string) error {
	if path != "" {
		if err := formatter.WriteFile(repos, format, path); err != nil {
			return err
		}
		fmt.Printf("📄 结果已保存到: %s\n", path)
		return nil
	}
	text, err := formatter.Render(repos, format)
	if err != nil {
		return err
	}
	fmt.Print(text)
	return nil
}

// --- trending 模式: 抓一轮榜单，按需分析和入库 ---
func runTrending(ctx context.Context, cfg *config.Config, f cliFlags) error {
	svc, opts, err := buildCycle(ctx, cfg, f)
	if err != nil {
		return err
	}

	repos, err := svc.RunCycle(ctx, opts)
	if err != nil {
		return err
	}
	return emit(output.NewFormatter(), repos, f.output, f.out)
}

// --- watch 模式: 定时重抓，每轮结果照常渲染 ---
func runWatch(ctx context.Context, cfg *config.Config, f cliFlags) error {
	svc, opts, err := buildCycle(ctx, cfg, f)
	if err != nil {
		return err
	}

	formatter := output.NewFormatter()
	return svc.Watch(ctx, f.interval, opts, func(repos []*domain.TrendingRepo) {
		if err := emit(formatter, repos, f.output, f.out); err != nil {
			log.Printf("⚠️ 输出失败: %v", err)
		}
	})
}

// --- high-score 模式: 从数据库捞历史高分项目 ---
func runHighScore(ctx context.Context, cfg *config.Config, f cliFlags) error {
	store, err := repository.New(cfg.Store)
	if err != nil {
		return err
	}

	repos, err := store.HighScore(ctx, f.minScore, f.days, f.language, f.limit)
	if err != nil {
		return err
	}
	if len(repos) == 0 {
		fmt.Println("没有找到符合条件的仓库")
		return nil
	}

	fmt.Printf("🏆 评分 >= %.1f 的 TOP %d 项目:\n\n", f.minScore, len(repos))
	return emit(output.NewFormatter(), repos, f.output, f.out)
}

// --- stats 模式: 数据库汇总统计 ---
func runStats(ctx context.Context, cfg *config.Config) error {
	store, err := repository.New(cfg.Store)
	if err != nil {
		return err
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Println("📊 数据库统计")
	fmt.Println()
	fmt.Printf("  快照总数: %d\n", stats.TotalRepos)
	fmt.Printf("  分析总数: %d\n", stats.TotalAnalyses)
	fmt.Printf("  平均评分: %.2f/10\n", stats.AvgScore)
	fmt.Printf("  高价值推荐: %d\n", stats.WorthwhileCount)

	// ByLanguage 是无序 map，展示用按数量排好序的查询
	if langs, err := store.Languages(ctx); err == nil && len(langs) > 0 {
		fmt.Println()
		fmt.Println("  语言分布:")
		for i, lc := range langs {
			if i >= 10 {
				break
			}
			fmt.Printf("    %s: %d\n", lc.Language, lc.Count)
		}
	}
	return nil
}

// --- cleanup 模式: 清理 N 天前的快照 ---
func runCleanup(ctx context.Context, cfg *config.Config, days int) error {
	store, err := repository.New(cfg.Store)
	if err != nil {
		return err
	}

	if days <= 0 {
		days = 30
	}
	deleted, err := store.Cleanup(ctx, days)
	if err != nil {
		return err
	}
	fmt.Printf("✅ 已清理 %d 条 %d 天前的快照\n", deleted, days)
	return nil
}

// --- cache-clear 模式: 清理分析结果缓存 ---
func runCacheClear(cfg *config.Config, clearAll bool) error {
	cache := aicache.New(cfg.Cache.Dir, cfg.CacheTTL(), true)

	if clearAll {
		removed, err := cache.ClearAll()
		if err != nil {
			return err
		}
		fmt.Printf("✅ 已清空全部缓存，共 %d 条\n", removed)
		return nil
	}

	removed, err := cache.ClearExpired()
	if err != nil {
		return err
	}
	stats := cache.Stats()
	fmt.Printf("✅ 已清理 %d 条过期缓存，剩余 %d 条有效 (%.2f MB)\n",
		removed, stats.Valid, float64(stats.TotalBytes)/1024/1024)
	return nil
}

// --- languages 模式: 常用语言 + 已入库语言分布 ---
func runLanguages(ctx context.Context, cfg *config.Config) error {
	fmt.Println("📚 常用语言")
	fmt.Println()
	for i, lang := range config.PopularLanguages {
		fmt.Printf("  %-12s", lang)
		if (i+1)%5 == 0 {
			fmt.Println()
		}
	}
	if len(config.PopularLanguages)%5 != 0 {
		fmt.Println()
	}

	// 数据库这段是锦上添花，打不开就只展示常用列表
	if store, err := repository.New(cfg.Store); err == nil {
		if counts, err := store.Languages(ctx); err == nil && len(counts) > 0 {
			fmt.Println()
			fmt.Println("📦 已入库语言:")
			for _, lc := range counts {
				fmt.Printf("  %s: %d\n", lc.Language, lc.Count)
			}
		}
	}

	fmt.Println()
	fmt.Println("提示: 用 -language 参数筛选语言，比如:")
	fmt.Println("  github-trending -language go")
	return nil
}
