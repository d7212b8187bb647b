package llm

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github-trending/internal/common"
	"github-trending/internal/config"
)

// openaiProvider 走 OpenAI Chat Completions API
type openaiProvider struct {
	client    openai.Client
	model     string
	maxTokens int
}

func newOpenAIProvider(cfg config.ProviderConfig) (*openaiProvider, error) {
	if cfg.APIKey == "" {
		return nil, common.NewError(common.ErrCodeConfig, "openai 供应商缺少 API Key，请设置 OPENAI_API_KEY")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &openaiProvider{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

func (p *openaiProvider) Call(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return chatCompletion(ctx, p.client, p.model, p.maxTokens, systemPrompt, userPrompt, "OpenAI")
}

func (p *openaiProvider) IsAvailable(ctx context.Context) bool {
	return true
}

func (p *openaiProvider) ModelName() string {
	return p.model
}

// chatCompletion 是所有 OpenAI 兼容后端的公共调用路径
func chatCompletion(ctx context.Context, client openai.Client, model string, maxTokens int, systemPrompt, userPrompt, label string) (string, error) {
	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		MaxTokens: openai.Int(int64(maxTokens)),
	})
	if err != nil {
		return "", common.WrapError(common.ErrCodeLLM, label+" 调用失败", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", common.NewError(common.ErrCodeLLM, label+" 返回内容为空")
	}
	return resp.Choices[0].Message.Content, nil
}
