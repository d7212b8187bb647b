package llm

import (
	"context"
	"fmt"

	"github-trending/internal/common"
	"github-trending/internal/config"
)

// Provider 是底层模型服务的统一出口
// Call 只负责拿到模型的原始文本，结果怎么解释是上层的事
type Provider interface {
	// Call 发送系统提示词和用户提示词，返回模型的原始输出
	Call(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// IsAvailable 探测服务当前能不能用
	IsAvailable(ctx context.Context) bool
	// ModelName 返回实际使用的模型标识
	ModelName() string
}

// NewProvider 按名字构建供应商
// 远程服务缺 API Key 时立即报错，不要等到第一次调用才发现
func NewProvider(ctx context.Context, name string, cfg config.ProviderConfig) (Provider, error) {
	switch name {
	case "claude":
		return newAnthropicProvider(cfg)
	case "openai":
		return newOpenAIProvider(cfg)
	case "deepseek":
		return newDeepSeekProvider(cfg)
	case "ollama":
		return newOllamaProvider(cfg)
	case "gemini":
		return newGeminiProvider(ctx, cfg)
	default:
		return nil, common.NewError(common.ErrCodeConfig, fmt.Sprintf("不认识的 AI 供应商: %s", name))
	}
}
