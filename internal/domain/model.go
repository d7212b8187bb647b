package domain

import (
	"fmt"
	"time"
)

// Period 趋势榜的统计窗口
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// ValidPeriod 判断窗口参数是否合法
func ValidPeriod(p string) bool {
	switch Period(p) {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return true
	}
	return false
}

// AnalysisStatus AI 分析的生命周期状态
type AnalysisStatus string

const (
	StatusPending    AnalysisStatus = "pending"
	StatusInProgress AnalysisStatus = "in-progress"
	StatusCompleted  AnalysisStatus = "completed"
	StatusFailed     AnalysisStatus = "failed"
)

// DetailLevel README 投喂给模型前的截断档位
type DetailLevel string

const (
	DetailBrief    DetailLevel = "brief"
	DetailStandard DetailLevel = "standard"
	DetailDeep     DetailLevel = "deep"
)

// Budget 返回该档位允许的 README 字节预算
func (d DetailLevel) Budget() int {
	switch d {
	case DetailBrief:
		return 2000
	case DetailDeep:
		return 20000
	default:
		return 8000
	}
}

// 学习价值档位，合法值只有这三个
const (
	LearningHigh   = "high"
	LearningMedium = "medium"
	LearningLow    = "low"
)

// NormalizeLearningValue 把任意输入收敛到合法档位，对不上的一律归 medium
func NormalizeLearningValue(v string) string {
	switch v {
	case LearningHigh, LearningMedium, LearningLow:
		return v
	}
	return LearningMedium
}

// ParseFailedSummary 解码失败时占位结果的摘要文本
const ParseFailedSummary = "parse failed"

// TrendingRepo 代表榜单上的一个仓库条目
type TrendingRepo struct {
	ID uint `json:"-" gorm:"primaryKey;autoIncrement"`

	// 身份信息 (来自页面链接的前两段路径)
	Owner string `json:"owner" gorm:"uniqueIndex:idx_snapshot"`
	Name  string `json:"name" gorm:"uniqueIndex:idx_snapshot"`
	URL   string `json:"url"`

	// 页面字段，解析失败时保持零值
	Description  string   `json:"description"`
	Language     string   `json:"language" gorm:"index"`
	Stars        int      `json:"stars"`
	Forks        int      `json:"forks"`
	TodayStars   int      `json:"today_stars"`
	Contributors []string `json:"contributors" gorm:"serializer:json"`

	// 抓取元数据。CapturedDate 是 CapturedAt 所在的自然日，
	// 和身份、周期一起构成快照去重键：同一天重复抓取只覆盖不新增
	Period       Period    `json:"period" gorm:"uniqueIndex:idx_snapshot"`
	CapturedAt   time.Time `json:"captured_at"`
	CapturedDate string    `json:"-" gorm:"uniqueIndex:idx_snapshot"`

	// 本次运行配对的分析结果，不随快照入库
	Analysis *AIAnalysis `json:"analysis,omitempty" gorm:"-"`
}

// FullName 返回 owner/name 形式的完整标识
func (r *TrendingRepo) FullName() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}

// CanonicalURL 页面没给链接时按身份推导
func (r *TrendingRepo) CanonicalURL() string {
	if r.URL != "" {
		return r.URL
	}
	return fmt.Sprintf("https://github.com/%s/%s", r.Owner, r.Name)
}

// AIAnalysis AI 对单个仓库的深度分析结果
type AIAnalysis struct {
	ID           uint   `json:"-" gorm:"primaryKey;autoIncrement"`
	RepoFullName string `json:"repo_full_name" gorm:"uniqueIndex"` // 一个仓库只留最新一次分析

	// 模型产出字段，经过校验与钳制
	Summary       string   `json:"summary"`
	KeyFeatures   []string `json:"key_features" gorm:"serializer:json"`
	TechStack     []string `json:"tech_stack" gorm:"serializer:json"`
	UseCases      []string `json:"use_cases" gorm:"serializer:json"`
	LearningValue string   `json:"learning_value"` // high / medium / low
	Score         float64  `json:"score"`          // 固定落在 [0,10]
	Worthwhile    bool     `json:"worthwhile"`
	Reason        string   `json:"reason"`

	// 调用元数据
	Status       AnalysisStatus `json:"status"`
	Provider     string         `json:"provider"`
	Model        string         `json:"model"`
	AnalyzedAt   time.Time      `json:"analyzed_at"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// IsHighScore 判断是否值得重点关注 (阈值与 high-score 查询默认值一致)
func (a *AIAnalysis) IsHighScore() bool {
	return a.Status == StatusCompleted && a.Score >= 7.0
}

// IsPlaceholder 判断是否为解码失败后的占位结果
func (a *AIAnalysis) IsPlaceholder() bool {
	return a.Summary == ParseFailedSummary && a.Score == 5.0
}

// StoreStats 入库数据的汇总信息
type StoreStats struct {
	TotalRepos      int64            `json:"total_repos"`
	TotalAnalyses   int64            `json:"total_analyses"`
	AvgScore        float64          `json:"avg_score"` // 只统计 completed，保留两位小数
	WorthwhileCount int64            `json:"worthwhile_count"`
	ByLanguage      map[string]int64 `json:"by_language"`
}

// LanguageCount 单个语言的入库数量
type LanguageCount struct {
	Language string `json:"language"`
	Count    int64  `json:"count"`
}
