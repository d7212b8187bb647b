package llm

import (
	"context"
	"log"
	"time"

	"github-trending/internal/common"
	"github-trending/internal/domain"
	"github-trending/internal/port"
)

// Client 鉴定流程的指挥者，把 缓存查询 -> 限速 -> 模型调用 -> 结果解析
// 串成一条链。实现了 port.Analyzer 接口。
//
// 失败语义:
//   - 传输层出错 -> Status=failed + ErrorMessage，不重试
//   - 返回内容解析不出来 -> 占位结果，但调用成功了，Status 仍是 completed
//   - 缓存读写出错 -> 当没发生，缓存只是优化不是正确性前提
type Client struct {
	provider     Provider
	providerName string
	cache        port.AnalysisCache
	limiter      *common.RateLimiter

	nowFunc func() time.Time
}

// NewClient 组装鉴定器。cache 或 limiter 传 nil 表示跳过对应环节。
func NewClient(provider Provider, providerName string, cache port.AnalysisCache, limiter *common.RateLimiter) *Client {
	return &Client{
		provider:     provider,
		providerName: providerName,
		cache:        cache,
		limiter:      limiter,
		nowFunc:      time.Now,
	}
}

// Analyze 对单个仓库做一次完整的价值分析
// 命中缓存直接短路返回，不占用限速窗口；第二个返回值表示是否来自缓存
func (c *Client) Analyze(ctx context.Context, repo *domain.TrendingRepo, readme string) (*domain.AIAnalysis, bool) {
	subject := repo.FullName()

	if c.cache != nil {
		// 只认完整的结果，半截的缓存当未命中
		if cached := c.cache.Get(subject, readme); cached != nil && cached.Status == domain.StatusCompleted {
			return cached, true
		}
	}

	result := &domain.AIAnalysis{
		RepoFullName: subject,
		Status:       domain.StatusInProgress,
		Provider:     c.providerName,
		Model:        c.provider.ModelName(),
	}

	if c.limiter != nil {
		c.limiter.Acquire()
	}

	raw, err := c.provider.Call(ctx, systemPrompt, buildAnalysisPrompt(repo, readme))
	if err != nil {
		// 要不要对这个仓库再试一次由上层决定
		result.Status = domain.StatusFailed
		result.ErrorMessage = err.Error()
		return result, false
	}

	parsed, ok := parseAnalysis(raw)
	if !ok {
		log.Printf("解析 %s 的 AI 返回失败，使用占位结果", subject)
	}

	result.Summary = parsed.Summary
	result.KeyFeatures = parsed.KeyFeatures
	result.TechStack = parsed.TechStack
	result.UseCases = parsed.UseCases
	result.LearningValue = parsed.LearningValue
	result.Score = parsed.Score
	result.Worthwhile = parsed.Worthwhile
	result.Reason = parsed.Reason
	result.Status = domain.StatusCompleted
	result.AnalyzedAt = c.nowFunc()

	if c.cache != nil {
		c.cache.Set(subject, readme, result)
	}
	return result, false
}

// IsAvailable 透传底层供应商的可用性探测
func (c *Client) IsAvailable(ctx context.Context) bool {
	return c.provider.IsAvailable(ctx)
}

// ModelName 返回实际使用的模型标识
func (c *Client) ModelName() string {
	return c.provider.ModelName()
}
