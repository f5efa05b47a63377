package llm

import (
	"context"
	"fmt"
)

const (
	ProviderDashScope     = "dashscope"
	dashscopeDefaultModel = "qwen-plus"

	dashScopeBaseURL = "https://dashscope.aliyuncs.com"
	dashScopePath    = "/api/v1/services/aigc/text-generation/generation"
	dashScopeKeyEnv  = "DASHSCOPE_API_KEY"
)

// DashScope 调用通义千问原生文本生成接口（result_format=message）。
type DashScope struct {
	opts Options
	base string
}

func NewDashScope(opts Options) *DashScope {
	return &DashScope{opts: opts, base: opts.baseURL(dashScopeBaseURL)}
}

func (d *DashScope) Name() string { return ProviderDashScope }

func (d *DashScope) DefaultModel() string { return dashscopeDefaultModel }

type dashScopeRequest struct {
	Model string `json:"model"`
	Input struct {
		Prompt string `json:"prompt"`
	} `json:"input"`
	Parameters struct {
		Temperature  float64 `json:"temperature"`
		TopP         float64 `json:"top_p"`
		ResultFormat string  `json:"result_format"`
	} `json:"parameters"`
}

type dashScopeResponse struct {
	Output struct {
		Text    string `json:"text"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

func (d *DashScope) Generate(ctx context.Context, req Request) (string, error) {
	key, err := d.opts.key(dashScopeKeyEnv)
	if err != nil {
		return "", err
	}

	var body dashScopeRequest
	body.Model = req.Model
	body.Input.Prompt = req.Prompt
	body.Parameters.Temperature = req.Temperature
	body.Parameters.TopP = req.TopP
	body.Parameters.ResultFormat = "message"

	var out, failed dashScopeResponse
	resp, err := newRestClient(ProviderDashScope, d.opts, d.base).R().
		SetContext(ctx).
		SetAuthToken(key).
		SetBody(body).
		SetResult(&out).
		SetError(&failed).
		Post(dashScopePath)
	if err != nil {
		return "", fmt.Errorf("dashscope 请求失败：%w", err)
	}
	if resp.IsError() {
		return "", apiError(ProviderDashScope, resp, failed.Code, failed.Message)
	}
	// 200 但带业务错误码的情况也按 API 错误处理。
	if out.Code != "" {
		return "", apiError(ProviderDashScope, resp, out.Code, out.Message)
	}
	if len(out.Output.Choices) > 0 {
		return out.Output.Choices[0].Message.Content, nil
	}
	if out.Output.Text != "" {
		return out.Output.Text, nil
	}
	return "", fmt.Errorf("dashscope 返回内容为空（request_id=%s）", out.RequestID)
}
