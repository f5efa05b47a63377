package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
)

const (
	ProviderOllama     = "ollama"
	ollamaDefaultModel = "mistral-small3.2:24b"

	ollamaBaseURL = "http://localhost:11434"
	ollamaURLEnv  = "OLLAMA_URL"
)

// Ollama 调用本地 /api/generate（非流式），不需要 API Key。
type Ollama struct {
	opts Options
}

func NewOllama(opts Options) *Ollama {
	return &Ollama{opts: opts}
}

func (o *Ollama) Name() string { return ProviderOllama }

func (o *Ollama) DefaultModel() string { return ollamaDefaultModel }

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// base 的优先级：Options.BaseURL > $OLLAMA_URL > 默认地址。
func (o *Ollama) base() string {
	def := ollamaBaseURL
	if s := strings.TrimSpace(os.Getenv(ollamaURLEnv)); s != "" {
		def = strings.TrimRight(s, "/")
	}
	return o.opts.baseURL(def)
}

func (o *Ollama) Generate(ctx context.Context, req Request) (string, error) {
	var out, failed ollamaResponse
	resp, err := newRestClient(ProviderOllama, o.opts, o.base()).R().
		SetContext(ctx).
		SetBody(ollamaRequest{
			Model:  req.Model,
			Prompt: req.Prompt,
			Options: map[string]any{
				"temperature": req.Temperature,
				"top_p":       req.TopP,
			},
		}).
		SetResult(&out).
		SetError(&failed).
		Post("/api/generate")
	if err != nil {
		return "", fmt.Errorf("ollama 请求失败：%w", err)
	}
	if resp.IsError() {
		return "", apiError(ProviderOllama, resp, "", failed.Error)
	}
	return out.Response, nil
}
