package llm

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github-trending/internal/common"
	"github-trending/internal/config"
)

// deepseekProvider 复用 OpenAI 兼容协议，只是换了接入点
type deepseekProvider struct {
	client    openai.Client
	model     string
	maxTokens int
}

func newDeepSeekProvider(cfg config.ProviderConfig) (*deepseekProvider, error) {
	if cfg.APIKey == "" {
		return nil, common.NewError(common.ErrCodeConfig, "deepseek 供应商缺少 API Key，请设置 DEEPSEEK_API_KEY")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.deepseek.com"
	}

	return &deepseekProvider{
		client: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(baseURL),
		),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

func (p *deepseekProvider) Call(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return chatCompletion(ctx, p.client, p.model, p.maxTokens, systemPrompt, userPrompt, "DeepSeek")
}

func (p *deepseekProvider) IsAvailable(ctx context.Context) bool {
	return true
}

func (p *deepseekProvider) ModelName() string {
	return p.model
}
