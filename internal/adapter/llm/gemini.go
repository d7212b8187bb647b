package llm

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github-trending/internal/common"
	"github-trending/internal/config"
)

// geminiProvider 走 Google Generative AI SDK
type geminiProvider struct {
	client    *genai.Client
	name      string
	maxTokens int
}

func newGeminiProvider(ctx context.Context, cfg config.ProviderConfig) (*geminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, common.NewError(common.ErrCodeConfig, "gemini 供应商缺少 API Key，请设置 GEMINI_API_KEY")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, common.WrapError(common.ErrCodeLLM, "创建 Gemini 客户端", err)
	}

	return &geminiProvider{
		client:    client,
		name:      cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

func (p *geminiProvider) Call(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	model := p.client.GenerativeModel(p.name)
	// 强制要求返回 JSON，降低解析错误的概率
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	if p.maxTokens > 0 {
		model.SetMaxOutputTokens(int32(p.maxTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", common.WrapError(common.ErrCodeLLM, "Gemini 调用失败", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", common.NewError(common.ErrCodeLLM, "Gemini 返回内容为空")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", common.NewError(common.ErrCodeLLM, "Gemini 返回格式错误")
	}
	return sb.String(), nil
}

func (p *geminiProvider) IsAvailable(ctx context.Context) bool {
	return true
}

func (p *geminiProvider) ModelName() string {
	return p.name
}
