package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github-trending/internal/config"
)

const ollamaProbeTimeout = 2 * time.Second

// ollamaProvider 对接本地 Ollama 服务
// 聊天走它的 OpenAI 兼容端点，可用性探测走原生的 /api/tags
type ollamaProvider struct {
	client     openai.Client
	httpClient *http.Client
	host       string
	model      string
	maxTokens  int
}

// newOllamaProvider 本地服务不要求 API Key
func newOllamaProvider(cfg config.ProviderConfig) (*ollamaProvider, error) {
	host := strings.TrimSuffix(cfg.BaseURL, "/")
	if host == "" {
		host = "http://localhost:11434"
	}

	return &ollamaProvider{
		client: openai.NewClient(
			option.WithBaseURL(host+"/v1"),
			option.WithAPIKey("ollama"),
		),
		httpClient: &http.Client{Timeout: ollamaProbeTimeout},
		host:       host,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
	}, nil
}

func (p *ollamaProvider) Call(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return chatCompletion(ctx, p.client, p.model, p.maxTokens, systemPrompt, userPrompt, "Ollama")
}

// IsAvailable 向本地服务的 /api/tags 发一次短超时探测
func (p *ollamaProvider) IsAvailable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, ollamaProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, p.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (p *ollamaProvider) ModelName() string {
	return p.model
}
