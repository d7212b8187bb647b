package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github-trending/internal/adapter/scraper"
	"github-trending/internal/common"
	"github-trending/internal/config"
	"github-trending/internal/domain"
)

// 调试入口: 抓前 3 个榜单条目，把解析出来的字段原样打出来，
// 不碰 AI 也不碰数据库，专门用来确认页面结构没变
func main() {
	_ = godotenv.Load()

	cfg := config.Default()

	fmt.Println("🔍 调试模式: 抓取并打印榜单条目")

	// 初始化组件
	limiter := common.NewRateLimiter(cfg.Scraper.MinDelay, cfg.Scraper.MaxDelay)
	client, err := scraper.NewClient(cfg.Scraper, limiter)
	if err != nil {
		log.Fatalf("❌ 抓取客户端初始化失败: %v", err)
	}
	source := scraper.NewTrendingScraper(client, scraper.NewParser())

	ctx := context.Background()

	// 1. 抓榜单
	fmt.Println("📥 正在抓取 GitHub Trending...")
	repos, err := source.FetchTrending(ctx, "", domain.PeriodDaily, 3)
	if err != nil {
		log.Fatalf("❌ 抓取失败: %v", err)
	}
	fmt.Printf("✅ 成功解析 %d 个条目\n\n", len(repos))

	if len(repos) == 0 {
		fmt.Println("❌ 没有解析到任何条目，页面结构可能变了")
		return
	}

	// 2. 打印字段
	for i, repo := range repos {
		fmt.Printf("条目 #%d: %s\n", i+1, repo.FullName())
		fmt.Printf("  URL: %s\n", repo.CanonicalURL())
		fmt.Printf("  描述: %s\n", repo.Description)
		fmt.Printf("  语言: %s\n", repo.Language)
		fmt.Printf("  星标: %d (今日 +%d)\n", repo.Stars, repo.TodayStars)
		fmt.Printf("  Fork: %d\n", repo.Forks)
		fmt.Printf("  贡献者头像: %d 个\n", len(repo.Contributors))
		fmt.Println()
	}

	// 3. 顺手验证一下 README 链路
	first := repos[0]
	fmt.Printf("📖 抓取 %s 的 README (brief 档)...\n", first.FullName())

	fetcher := scraper.NewReadmeFetcher(client, cfg.Scraper.GitHubToken, domain.DetailBrief, common.NewTokenBucket(2, 5))
	readme, err := fetcher.FetchReadme(ctx, first.Owner, first.Name)
	if err != nil {
		log.Printf("⚠️ README 获取失败: %v", err)
		return
	}
	fmt.Printf("✅ README 长度: %d 字符\n", len(readme))
}
