package port

import (
	"context"

	"github-trending/internal/domain"
)

// TrendingSource (侦察兵): 负责抓取趋势榜页面并解析出仓库条目
// 实现可以是爬虫，也可以换成 API 数据源
type TrendingSource interface {
	// 比如：FetchTrending(ctx, "go", domain.PeriodDaily, 25)
	FetchTrending(ctx context.Context, language string, period domain.Period, limit int) ([]*domain.TrendingRepo, error)
}

// ReadmeSource (资料员): 负责拿到仓库的 README 原文
// 内部自带多级回退 (raw -> API -> 页面抓取)
type ReadmeSource interface {
	FetchReadme(ctx context.Context, owner, name string) (string, error)
}

// Analyzer (鉴定师): 负责调用 LLM 对单个仓库做价值分析
// 永远返回结构完整的结果，失败信息走 Status/ErrorMessage 字段
type Analyzer interface {
	// 第二个返回值表示结果是否来自缓存
	Analyze(ctx context.Context, repo *domain.TrendingRepo, readme string) (*domain.AIAnalysis, bool)
}

// AnalysisCache (管家): 内容寻址的分析结果缓存
// Get 过期视为未命中；Set 尽力而为，失败不外抛
type AnalysisCache interface {
	Get(subject, content string) *domain.AIAnalysis
	Set(subject, content string, analysis *domain.AIAnalysis)
}

// RepoStore (仓库管理员): 负责榜单快照与分析结果的持久化和查询
type RepoStore interface {
	// 保存一批快照 (按身份+周期+日期去重)
	SaveRepos(ctx context.Context, repos []*domain.TrendingRepo) error

	// 保存一条分析结果
	SaveAnalysis(ctx context.Context, analysis *domain.AIAnalysis) error

	// 查询高分仓库，返回的条目带 Analysis
	HighScore(ctx context.Context, minScore float64, days int, language string, limit int) ([]*domain.TrendingRepo, error)

	// 汇总统计
	Stats(ctx context.Context) (*domain.StoreStats, error)

	// 清理 N 天前的快照，返回删除行数
	Cleanup(ctx context.Context, days int) (int64, error)

	// 已入库的语言分布，按数量降序
	Languages(ctx context.Context) ([]domain.LanguageCount, error)
}
