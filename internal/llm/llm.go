// Package llm 封装“提交 prompt，拿回一段文本”的模型调用。
//
// 约束：一次 Generate 就是一次 API 调用，不在这里重试；失败如何降级由调用方决定。
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrMissingAPIKey 表示所需的 API Key 环境变量未设置。
var ErrMissingAPIKey = errors.New("API Key 未设置")

// Request 是一次生成请求。
type Request struct {
	Model       string
	Prompt      string
	Temperature float64
	TopP        float64
}

// Generator 是模型提供方的最小接口。
//
// DefaultModel 是未显式配置模型时使用的模型名；各家模型名互不通用。
type Generator interface {
	Name() string
	DefaultModel() string
	Generate(ctx context.Context, req Request) (string, error)
}

// APIError 表示模型 API 返回了非成功响应。
type APIError struct {
	Provider string
	Status   int
	Code     string
	Message  string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s API 错误：status=%d code=%s message=%s", e.Provider, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%s API 错误：status=%d message=%s", e.Provider, e.Status, e.Message)
}

// Options 是各 provider 共用的构造参数。
//
// APIKey 为空时从 provider 约定的环境变量读取；BaseURL 为空时使用官方地址。
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *slog.Logger
}

func (o Options) key(env string) (string, error) {
	if k := strings.TrimSpace(o.APIKey); k != "" {
		return k, nil
	}
	if k := strings.TrimSpace(os.Getenv(env)); k != "" {
		return k, nil
	}
	return "", fmt.Errorf("%w：%s", ErrMissingAPIKey, env)
}

func (o Options) baseURL(def string) string {
	if s := strings.TrimSpace(o.BaseURL); s != "" {
		return strings.TrimRight(s, "/")
	}
	return def
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// newRestClient 构造带超时与调试日志的 resty 客户端。
func newRestClient(name string, o Options, base string) *resty.Client {
	c := resty.New().
		SetBaseURL(base).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if o.Timeout > 0 {
		c.SetTimeout(o.Timeout)
	}
	log := o.logger()
	c.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		log.Debug("llm 响应", "provider", name, "status", resp.StatusCode(), "elapsed", resp.Time())
		return nil
	})
	c.OnError(func(req *resty.Request, err error) {
		log.Debug("llm 请求失败", "provider", name, "url", req.URL, "err", err)
	})
	return c
}

// apiError 从非成功响应构造 *APIError；code/message 解析不到时回落为响应正文。
func apiError(provider string, resp *resty.Response, code, message string) *APIError {
	if message == "" {
		message = strings.TrimSpace(resp.String())
		if r := []rune(message); len(r) > 200 {
			message = string(r[:200])
		}
	}
	return &APIError{Provider: provider, Status: resp.StatusCode(), Code: code, Message: message}
}
