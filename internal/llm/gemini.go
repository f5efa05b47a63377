package llm

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	ProviderGemini     = "gemini"
	geminiDefaultModel = "gemini-1.5-flash"

	geminiKeyEnv = "GEMINI_API_KEY"
)

// Gemini 通过 generative-ai-go 调用 Google Gemini。
type Gemini struct {
	opts Options
}

func NewGemini(opts Options) *Gemini {
	return &Gemini{opts: opts}
}

func (g *Gemini) Name() string { return ProviderGemini }

func (g *Gemini) DefaultModel() string { return geminiDefaultModel }

func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	key, err := g.opts.key(geminiKeyEnv)
	if err != nil {
		return "", err
	}

	copts := []option.ClientOption{option.WithAPIKey(key)}
	if g.opts.BaseURL != "" {
		copts = append(copts, option.WithEndpoint(g.opts.BaseURL))
	}
	client, err := genai.NewClient(ctx, copts...)
	if err != nil {
		return "", fmt.Errorf("创建 gemini 客户端失败：%w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(req.Model)
	model.SetTemperature(float32(req.Temperature))
	model.SetTopP(float32(req.TopP))

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("gemini 生成失败：%w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini 未返回 candidates")
	}
	c := resp.Candidates[0]
	if c.Content == nil || len(c.Content.Parts) == 0 {
		return "", fmt.Errorf("gemini 返回内容为空")
	}
	if txt, ok := c.Content.Parts[0].(genai.Text); ok {
		return string(txt), nil
	}
	return "", fmt.Errorf("gemini 返回了非文本内容")
}
