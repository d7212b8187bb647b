package repository

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github-trending/internal/common"
	"github-trending/internal/config"
	"github-trending/internal/domain"
)

// Store 用 GORM 落盘榜单快照和分析结果，实现 port.RepoStore
type Store struct {
	db *gorm.DB
}

// New 按配置选择驱动，连好库并自动迁移表结构
// sqlite 的 DSN 就是文件路径，":memory:" 可以跑纯内存库
func New(cfg config.StoreConfig) (*Store, error) {
	var dial gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dial = postgres.Open(cfg.DSN)
	default:
		dial = sqlite.Open(cfg.DSN)
	}

	// 终端留给表格输出，GORM 的慢查询日志就不凑热闹了
	db, err := gorm.Open(dial, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "连接数据库", err)
	}

	// 自动迁移，字段变了也会跟着更新
	if err := db.AutoMigrate(&domain.TrendingRepo{}, &domain.AIAnalysis{}); err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "迁移表结构", err)
	}

	return &Store{db: db}, nil
}

// snapshotColumns 同一天重复抓取时允许覆盖的字段
var snapshotColumns = []string{
	"url", "description", "language", "stars", "forks", "today_stars",
	"contributors", "captured_at",
}

// analysisColumns 重新分析同一个仓库时整行覆盖的字段
var analysisColumns = []string{
	"summary", "key_features", "tech_stack", "use_cases", "learning_value",
	"score", "worthwhile", "reason", "status", "provider", "model",
	"analyzed_at", "error_message",
}

// SaveRepos 批量保存榜单快照
// 去重键是 身份+周期+自然日：同一天再抓同一个仓库只刷新数字，不会越攒越多
func (s *Store) SaveRepos(ctx context.Context, repos []*domain.TrendingRepo) error {
	if len(repos) == 0 {
		return nil
	}

	for _, repo := range repos {
		if repo.CapturedAt.IsZero() {
			repo.CapturedAt = time.Now()
		}
		repo.CapturedDate = repo.CapturedAt.Format("2006-01-02")
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "owner"}, {Name: "name"}, {Name: "period"}, {Name: "captured_date"},
		},
		DoUpdates: clause.AssignmentColumns(snapshotColumns),
	}).Create(&repos).Error
	if err != nil {
		return common.WrapError(common.ErrCodeDatabase, "保存榜单快照", err)
	}
	return nil
}

// SaveAnalysis 保存一条分析结果，同一个仓库后来的覆盖先前的
func (s *Store) SaveAnalysis(ctx context.Context, analysis *domain.AIAnalysis) error {
	if analysis == nil {
		return nil
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "repo_full_name"}},
		DoUpdates: clause.AssignmentColumns(analysisColumns),
	}).Create(analysis).Error
	if err != nil {
		return common.WrapError(common.ErrCodeDatabase, "保存分析结果", err)
	}
	return nil
}

// HighScore 查出高分仓库，返回条目带上配对的分析
// minScore<=0 用默认阈值 7.0，days<=0 不限时间窗，limit<=0 默认 50
func (s *Store) HighScore(ctx context.Context, minScore float64, days int, language string, limit int) ([]*domain.TrendingRepo, error) {
	if minScore <= 0 {
		minScore = 7.0
	}
	if limit <= 0 {
		limit = 50
	}

	// 每个仓库只看最新一条快照，老快照留给历史统计
	latest := s.db.Model(&domain.TrendingRepo{}).Select("MAX(id)").Group("owner, name")

	q := s.db.WithContext(ctx).Where("id IN (?)", latest)
	if days > 0 {
		q = q.Where("captured_at >= ?", time.Now().AddDate(0, 0, -days))
	}
	if language != "" {
		q = q.Where("LOWER(language) = LOWER(?)", language)
	}

	var repos []*domain.TrendingRepo
	if err := q.Find(&repos).Error; err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "查询快照", err)
	}
	if len(repos) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(repos))
	for _, repo := range repos {
		names = append(names, repo.FullName())
	}

	var analyses []*domain.AIAnalysis
	err := s.db.WithContext(ctx).
		Where("repo_full_name IN ?", names).
		Where("status = ? AND score >= ?", domain.StatusCompleted, minScore).
		Find(&analyses).Error
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "查询分析结果", err)
	}

	byName := make(map[string]*domain.AIAnalysis, len(analyses))
	for _, a := range analyses {
		byName[a.RepoFullName] = a
	}

	// 没配上合格分析的仓库不算高分，直接丢掉
	matched := make([]*domain.TrendingRepo, 0, len(analyses))
	for _, repo := range repos {
		if a, ok := byName[repo.FullName()]; ok {
			repo.Analysis = a
			matched = append(matched, repo)
		}
	}

	// 分数优先，同分比星标
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Analysis.Score != matched[j].Analysis.Score {
			return matched[i].Analysis.Score > matched[j].Analysis.Score
		}
		return matched[i].Stars > matched[j].Stars
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Stats 汇总库里攒了多少东西
func (s *Store) Stats(ctx context.Context) (*domain.StoreStats, error) {
	stats := &domain.StoreStats{ByLanguage: map[string]int64{}}

	if err := s.db.WithContext(ctx).Model(&domain.TrendingRepo{}).Count(&stats.TotalRepos).Error; err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "统计快照总量", err)
	}
	if err := s.db.WithContext(ctx).Model(&domain.AIAnalysis{}).Count(&stats.TotalAnalyses).Error; err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "统计分析总量", err)
	}

	var avg float64
	err := s.db.WithContext(ctx).Model(&domain.AIAnalysis{}).
		Where("status = ?", domain.StatusCompleted).
		Select("COALESCE(AVG(score), 0)").
		Scan(&avg).Error
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "统计平均分", err)
	}
	stats.AvgScore = math.Round(avg*100) / 100

	err = s.db.WithContext(ctx).Model(&domain.AIAnalysis{}).
		Where("status = ? AND worthwhile = ?", domain.StatusCompleted, true).
		Count(&stats.WorthwhileCount).Error
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "统计值得关注数", err)
	}

	counts, err := s.Languages(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range counts {
		stats.ByLanguage[c.Language] = c.Count
	}
	return stats, nil
}

// Cleanup 清掉 N 天前的旧快照并返回删除行数，days<=0 时默认保留 30 天
// 分析结果不动：它按仓库只存最新一份，本身不会膨胀
func (s *Store) Cleanup(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().AddDate(0, 0, -days)

	res := s.db.WithContext(ctx).Where("captured_at < ?", cutoff).Delete(&domain.TrendingRepo{})
	if res.Error != nil {
		return 0, common.WrapError(common.ErrCodeDatabase, "清理历史快照", res.Error)
	}
	return res.RowsAffected, nil
}

// Languages 已入库语言的快照分布，按数量降序
func (s *Store) Languages(ctx context.Context) ([]domain.LanguageCount, error) {
	var counts []domain.LanguageCount
	err := s.db.WithContext(ctx).
		Model(&domain.TrendingRepo{}).
		Select("language, COUNT(*) AS count").
		Where("language <> ''").
		Group("language").
		Order("count DESC, language ASC").
		Scan(&counts).Error
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "统计语言分布", err)
	}
	return counts, nil
}
