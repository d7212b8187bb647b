package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github-trending/internal/common"
	"github-trending/internal/domain"
	"github-trending/internal/port"
)

// TrendingService 业务编排层，把 抓榜单 -> 取 README -> AI 鉴定 -> 入库
// 串成一条流水线。各环节通过 port 接口解耦，方便单测和替换实现。
type TrendingService struct {
	source   port.TrendingSource
	readme   port.ReadmeSource
	analyzer port.Analyzer
	store    port.RepoStore
}

// NewTrendingService 创建服务实例。readme/analyzer 只在 AI 分析时用到，
// store 只在入库时用到，不需要的环节可以传 nil。
func NewTrendingService(source port.TrendingSource, readme port.ReadmeSource, analyzer port.Analyzer, store port.RepoStore) *TrendingService {
	return &TrendingService{
		source:   source,
		readme:   readme,
		analyzer: analyzer,
		store:    store,
	}
}

// CycleOptions 一轮抓取周期的参数
type CycleOptions struct {
	Language string        // 空串表示全部语言
	Period   domain.Period // daily / weekly / monthly
	Limit    int           // 最多返回多少条
	WithAI   bool          // 是否对每个仓库做 AI 分析
	Save     bool          // 是否把快照和分析结果入库
}

// FetchTrending 抓取趋势榜单
func (s *TrendingService) FetchTrending(ctx context.Context, language string, period domain.Period, limit int) ([]*domain.TrendingRepo, error) {
	label := language
	if label == "" {
		label = "全部"
	}
	fmt.Printf("🔍 正在获取 %s 语言的 %s Trending...\n", label, period)

	repos, err := s.source.FetchTrending(ctx, language, period, limit)
	if err != nil {
		return nil, err
	}

	fmt.Printf("✅ 找到 %d 个仓库\n", len(repos))
	return repos, nil
}

// AnalyzeRepos 逐个仓库做 AI 分析，结果挂在 repo.Analysis 上。
// 单个仓库失败不中断整批；README 拿不到就让模型凭描述打分。
func (s *TrendingService) AnalyzeRepos(ctx context.Context, repos []*domain.TrendingRepo) {
	if len(repos) == 0 {
		return
	}

	total := len(repos)
	fmt.Printf("🧠 开始 AI 分析，共 %d 个仓库...\n", total)

	cacheHits := 0
	failed := 0
	for i, repo := range repos {
		// 检查上下文是否已取消
		select {
		case <-ctx.Done():
			fmt.Printf("⏰ 分析被中断，已处理 %d/%d 个仓库\n", i, total)
			goto finish
		default:
		}

		readme, err := s.readme.FetchReadme(ctx, repo.Owner, repo.Name)
		if err != nil {
			log.Printf("⚠️ [%d/%d] %s README 获取失败: %v", i+1, total, repo.FullName(), err)
			readme = ""
		}

		analysis, fromCache := s.analyzer.Analyze(ctx, repo, readme)
		repo.Analysis = analysis

		switch {
		case analysis.Status == domain.StatusFailed:
			failed++
			log.Printf("⚠️ [%d/%d] %s 分析失败: %s", i+1, total, repo.FullName(), analysis.ErrorMessage)
		case fromCache:
			cacheHits++
			fmt.Printf("  [%d/%d] %s (缓存) 评分 %.1f\n", i+1, total, repo.FullName(), analysis.Score)
		default:
			fmt.Printf("  [%d/%d] %s 评分 %.1f\n", i+1, total, repo.FullName(), analysis.Score)
		}
	}

finish:
	fmt.Printf("🎉 AI 分析完成: 缓存命中 %d 个, 失败 %d 个\n", cacheHits, failed)
}

// Save 把快照批量入库，带分析结果的仓库再逐条存分析。
// 单条分析入库失败只记日志，不影响其他条目。
func (s *TrendingService) Save(ctx context.Context, repos []*domain.TrendingRepo) error {
	if len(repos) == 0 {
		return nil
	}
	if s.store == nil {
		return common.NewError(common.ErrCodeConfig, "未配置存储，无法保存")
	}

	if err := s.store.SaveRepos(ctx, repos); err != nil {
		return err
	}

	saved := 0
	for _, repo := range repos {
		if repo.Analysis == nil {
			continue
		}
		if err := s.store.SaveAnalysis(ctx, repo.Analysis); err != nil {
			log.Printf("⚠️ %s 分析结果入库失败: %v", repo.FullName(), err)
			continue
		}
		saved++
	}

	fmt.Printf("💾 已入库 %d 个快照, %d 条分析\n", len(repos), saved)
	return nil
}

// RunCycle 跑完整的一轮: 抓榜单 -> (可选) AI 分析 -> (可选) 入库。
// 返回带分析结果的仓库列表，交给上层渲染输出。
func (s *TrendingService) RunCycle(ctx context.Context, opts CycleOptions) ([]*domain.TrendingRepo, error) {
	repos, err := s.FetchTrending(ctx, opts.Language, opts.Period, opts.Limit)
	if err != nil {
		return nil, err
	}
	if len(repos) == 0 {
		return repos, nil
	}

	if opts.WithAI {
		s.AnalyzeRepos(ctx, repos)
	}

	if opts.Save {
		// 入库失败不拦输出，榜单照常往下走
		if err := s.Save(ctx, repos); err != nil {
			log.Printf("❌ 入库失败: %v", err)
		}
	}

	return repos, nil
}

// Watch 定时模式: 先立即跑一轮，之后每隔 interval 重抓一次，
// 直到上下文取消。handle 在每轮成功后收到结果，由上层决定怎么展示。
func (s *TrendingService) Watch(ctx context.Context, interval time.Duration, opts CycleOptions, handle func([]*domain.TrendingRepo)) error {
	if interval <= 0 {
		return common.NewError(common.ErrCodeInvalidInput, "定时间隔必须大于 0")
	}

	job := cron.FuncJob(func() {
		repos, err := s.RunCycle(ctx, opts)
		if err != nil {
			log.Printf("❌ 本轮抓取失败: %v", err)
			return
		}
		if handle != nil {
			handle(repos)
		}
	})

	c := cron.New()
	c.Schedule(cron.Every(interval), job)

	fmt.Printf("⏰ 定时模式已启动，每 %s 抓取一次\n", interval)
	fmt.Println("按下 Ctrl+C 可以优雅停止程序")

	// 第一轮不等定时器
	job.Run()
	c.Start()

	<-ctx.Done()
	// 等正在跑的那一轮收尾
	<-c.Stop().Done()
	fmt.Println("\n👋 定时任务已停止")
	return nil
}
