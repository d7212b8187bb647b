package llm

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github-trending/internal/common"
	"github-trending/internal/config"
)

// anthropicProvider 走 Anthropic Messages API
type anthropicProvider struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

func newAnthropicProvider(cfg config.ProviderConfig) (*anthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, common.NewError(common.ErrCodeConfig, "claude 供应商缺少 API Key，请设置 ANTHROPIC_API_KEY")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &anthropicProvider{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

func (p *anthropicProvider) Call(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(p.maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", common.WrapError(common.ErrCodeLLM, "Claude 调用失败", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", common.NewError(common.ErrCodeLLM, "Claude 返回内容为空")
	}
	return sb.String(), nil
}

func (p *anthropicProvider) IsAvailable(ctx context.Context) bool {
	return true
}

func (p *anthropicProvider) ModelName() string {
	return p.model
}
