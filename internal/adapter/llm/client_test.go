package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github-trending/internal/common"
	"github-trending/internal/domain"
)

// fakeProvider 可编程的假供应商，记录调用情况
type fakeProvider struct {
	response string
	err      error

	calls            int
	lastSystemPrompt string
	lastUserPrompt   string
}

func (p *fakeProvider) Call(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	p.calls++
	p.lastSystemPrompt = systemPrompt
	p.lastUserPrompt = userPrompt
	if p.err != nil {
		return "", p.err
	}
	return p.response, nil
}

func (p *fakeProvider) IsAvailable(ctx context.Context) bool { return p.err == nil }

func (p *fakeProvider) ModelName() string { return "fake-model" }

// fakeCache 内存版缓存，记录写入次数
type fakeCache struct {
	entries map[string]*domain.AIAnalysis
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]*domain.AIAnalysis{}}
}

func (c *fakeCache) key(subject, content string) string { return subject + "|" + content }

func (c *fakeCache) Get(subject, content string) *domain.AIAnalysis {
	return c.entries[c.key(subject, content)]
}

func (c *fakeCache) Set(subject, content string, analysis *domain.AIAnalysis) {
	c.sets++
	c.entries[c.key(subject, content)] = analysis
}

func sampleRepo() *domain.TrendingRepo {
	return &domain.TrendingRepo{
		Owner:      "yazi-rs",
		Name:       "yazi",
		Language:   "Rust",
		Stars:      10000,
		TodayStars: 500,
	}
}

func TestClient_Analyze_Success(t *testing.T) {
	provider := &fakeProvider{response: wellFormedPayload}
	cache := newFakeCache()
	client := NewClient(provider, "claude", cache, nil)

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	client.nowFunc = func() time.Time { return ts }

	got, fromCache := client.Analyze(context.Background(), sampleRepo(), "readme 内容")

	assert.False(t, fromCache)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, "yazi-rs/yazi", got.RepoFullName)
	assert.Equal(t, "claude", got.Provider)
	assert.Equal(t, "fake-model", got.Model)
	assert.Equal(t, ts, got.AnalyzedAt)
	assert.Equal(t, "一个用 Rust 写的终端文件管理器", got.Summary)
	assert.Equal(t, 8.5, got.Score)
	assert.True(t, got.Worthwhile)
	assert.Empty(t, got.ErrorMessage)

	// 成功结果要写透缓存
	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, got, cache.Get("yazi-rs/yazi", "readme 内容"))
}

func TestClient_Analyze_CacheHit(t *testing.T) {
	cached := wellFormedResult()
	cached.RepoFullName = "yazi-rs/yazi"
	cached.Status = domain.StatusCompleted

	cache := newFakeCache()
	cache.entries[cache.key("yazi-rs/yazi", "readme 内容")] = cached

	provider := &fakeProvider{err: errors.New("不应该被调用")}
	limiter := common.NewRateLimiter(2*time.Second, 2*time.Second)
	limiter.Acquire()
	client := NewClient(provider, "claude", cache, limiter)

	start := time.Now()
	got, fromCache := client.Analyze(context.Background(), sampleRepo(), "readme 内容")

	assert.True(t, fromCache)
	assert.Equal(t, cached, got)
	assert.Equal(t, 0, provider.calls)
	assert.Equal(t, 0, cache.sets)
	// 命中缓存不消耗限速窗口
	assert.Less(t, time.Since(start), time.Second)
}

func TestClient_Analyze_TransportError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("connection refused")}
	cache := newFakeCache()
	client := NewClient(provider, "openai", cache, nil)

	got, fromCache := client.Analyze(context.Background(), sampleRepo(), "")

	assert.False(t, fromCache)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "connection refused")
	assert.Equal(t, "yazi-rs/yazi", got.RepoFullName)
	assert.Equal(t, "openai", got.Provider)
	assert.Equal(t, "fake-model", got.Model)
	assert.True(t, got.AnalyzedAt.IsZero())

	// 不重试，失败结果也不进缓存
	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, 0, cache.sets)
}

func TestClient_Analyze_ParseFailureStillCompletes(t *testing.T) {
	provider := &fakeProvider{response: "我没法分析这个项目。"}
	cache := newFakeCache()
	client := NewClient(provider, "claude", cache, nil)

	got, fromCache := client.Analyze(context.Background(), sampleRepo(), "readme")

	// 调用本身成功了，占位结果照样算 completed
	assert.False(t, fromCache)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, domain.ParseFailedSummary, got.Summary)
	assert.Equal(t, 5.0, got.Score)
	assert.False(t, got.Worthwhile)
	assert.True(t, got.IsPlaceholder())
	assert.Empty(t, got.ErrorMessage)
	assert.Equal(t, 1, cache.sets)
}

func TestClient_Analyze_IncompleteCacheEntryIgnored(t *testing.T) {
	cache := newFakeCache()
	cache.entries[cache.key("yazi-rs/yazi", "readme")] = &domain.AIAnalysis{
		RepoFullName: "yazi-rs/yazi",
		Status:       domain.StatusFailed,
	}

	provider := &fakeProvider{response: wellFormedPayload}
	client := NewClient(provider, "claude", cache, nil)

	got, fromCache := client.Analyze(context.Background(), sampleRepo(), "readme")

	// 半截的缓存条目当未命中，重新分析并覆盖
	assert.False(t, fromCache)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, 1, cache.sets)
}

func TestClient_Analyze_RateLimited(t *testing.T) {
	provider := &fakeProvider{response: wellFormedPayload}
	limiter := common.NewRateLimiter(300*time.Millisecond, 300*time.Millisecond)
	client := NewClient(provider, "claude", nil, limiter)

	start := time.Now()
	client.Analyze(context.Background(), sampleRepo(), "第一份")
	client.Analyze(context.Background(), sampleRepo(), "第二份")

	// 第一次免等，第二次要等满窗口
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
	assert.Equal(t, 2, provider.calls)
}

func TestClient_Analyze_PromptWiring(t *testing.T) {
	provider := &fakeProvider{response: wellFormedPayload}
	client := NewClient(provider, "claude", nil, nil)

	client.Analyze(context.Background(), sampleRepo(), "README 正文")

	assert.Contains(t, provider.lastSystemPrompt, "技术专家")
	assert.Contains(t, provider.lastUserPrompt, "yazi-rs/yazi")
	assert.Contains(t, provider.lastUserPrompt, "README 正文")
}

func TestClient_Passthrough(t *testing.T) {
	provider := &fakeProvider{}
	client := NewClient(provider, "claude", nil, nil)

	assert.True(t, client.IsAvailable(context.Background()))
	assert.Equal(t, "fake-model", client.ModelName())
}
