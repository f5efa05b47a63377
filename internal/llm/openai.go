package llm

import (
	"context"
	"fmt"
)

const (
	ProviderOpenAI     = "openai"
	openaiDefaultModel = "gpt-4o"

	openAIBaseURL = "https://api.openai.com"
	openAIKeyEnv  = "OPENAI_API_KEY"
)

// OpenAI 调用 chat completions 接口；BaseURL 可指向任何兼容实现。
type OpenAI struct {
	opts Options
	base string
}

func NewOpenAI(opts Options) *OpenAI {
	return &OpenAI{opts: opts, base: opts.baseURL(openAIBaseURL)}
}

func (o *OpenAI) Name() string { return ProviderOpenAI }

func (o *OpenAI) DefaultModel() string { return openaiDefaultModel }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	TopP        float64         `json:"top_p"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

type openAIError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	key, err := o.opts.key(openAIKeyEnv)
	if err != nil {
		return "", err
	}

	var out openAIResponse
	var failed openAIError
	resp, err := newRestClient(ProviderOpenAI, o.opts, o.base).R().
		SetContext(ctx).
		SetAuthToken(key).
		SetBody(openAIRequest{
			Model:       req.Model,
			Messages:    []openAIMessage{{Role: "user", Content: req.Prompt}},
			Temperature: req.Temperature,
			TopP:        req.TopP,
		}).
		SetResult(&out).
		SetError(&failed).
		Post("/v1/chat/completions")
	if err != nil {
		return "", fmt.Errorf("openai 请求失败：%w", err)
	}
	if resp.IsError() {
		code := failed.Error.Type
		if s, ok := failed.Error.Code.(string); ok && s != "" {
			code = s
		}
		return "", apiError(ProviderOpenAI, resp, code, failed.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openai 未返回 choices")
	}
	return out.Choices[0].Message.Content, nil
}
