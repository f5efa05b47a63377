package httpx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html/charset"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultRetryMax   = 2
	defaultRetryDelay = 500 * time.Millisecond

	// maxBodySize 防止异常的超大响应耗尽内存；搜索页与缩略图都远小于该值。
	maxBodySize = 20 << 20
)

var tracer = otel.Tracer("dishkit/httpx")

// ErrBodyTooLarge 表示响应体超过 MaxBodySize；不会重试，也不会返回截断的内容。
var ErrBodyTooLarge = errors.New("响应体超出大小上限")

// Options 是构造 Client 所需的全部网络策略（来自 config.Config）。
type Options struct {
	Timeout    time.Duration
	RetryMax   int
	RetryDelay time.Duration
	// UserAgent 为空时每个请求从内置 UA 池随机选取。
	UserAgent string
	// Referer 非空时写入每个请求（图床防盗链）。
	Referer string
}

// Client 把“固定超时 + 固定次数、固定间隔的线性重试”固化为统一策略。
//
// 设计目标：search/imgsync 只负责“定位资源 + 解析/落盘”，不关心网络策略细节。
type Client struct {
	HTTP *http.Client

	// RetryMax 表示最大重试次数（不含首次尝试）。例如 2 表示最多 3 次尝试。
	RetryMax   int
	RetryDelay time.Duration

	// MaxBodySize 是允许读取的最大响应体字节数；<=0 时使用内置上限（20 MiB）。
	MaxBodySize int64

	Logger *slog.Logger

	// sleep 可替换，测试里用来避免真实等待。
	sleep func(ctx context.Context, d time.Duration) error
}

// Response 是一次成功（2xx）GET 的结果，Body 已完整读出。
type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Text 按响应声明（或嗅探）的编码把 Body 转成 UTF-8 文本。
func (r *Response) Text() (string, error) {
	if r == nil {
		return "", errors.New("nil response")
	}
	rd, err := charset.NewReader(bytes.NewReader(r.Body), r.ContentType)
	if err != nil {
		return "", err
	}
	b, err := io.ReadAll(rd)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// HTTPStatusError 表示站点返回了非 2xx 的 HTTP 状态码（同样会触发重试）。
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// RetryError 表示重试耗尽后仍失败；调用方应把它当作“无数据”，跳过该输入继续处理。
type RetryError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("GET %s 失败（共 %d 次尝试）：%v", e.URL, e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

// StatusCode 从 err 中提取 HTTP 状态码；不是状态码错误时返回 0。
func StatusCode(err error) int {
	var se *HTTPStatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// New 按 Options 构造 Client；零值字段回落到内置默认值（RetryMax<0 视为 0）。
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retryMax := opts.RetryMax
	if retryMax < 0 {
		retryMax = 0
	}
	delay := opts.RetryDelay
	if delay < 0 {
		delay = 0
	}

	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	tr := &Transport{
		Base:      base,
		ua:        globalUA,
		UserAgent: strings.TrimSpace(opts.UserAgent),
		Referer:   strings.TrimSpace(opts.Referer),
	}
	return &Client{
		HTTP: &http.Client{
			Transport: tr,
			Timeout:   timeout,
		},
		RetryMax:   retryMax,
		RetryDelay: delay,
	}
}

// Default 返回与原脚本一致的策略：10s 超时、重试 2 次、间隔 500ms。
func Default() *Client {
	return New(Options{Timeout: defaultTimeout, RetryMax: defaultRetryMax, RetryDelay: defaultRetryDelay})
}

// Get 执行带有界重试的 GET。
//
// 规则：
// - 传输错误（超时/连接失败）与非 2xx 状态码都算失败，都会重试
// - 两次尝试之间固定等待 RetryDelay（阻塞 sleep，无指数退避）
// - ctx 取消：立即停止重试，返回最后一次错误
// - 重试耗尽：返回 nil + *RetryError，并记录一条 error 日志
func (c *Client) Get(ctx context.Context, u string) (*Response, error) {
	ctx, span := tracer.Start(ctx, "httpx.Get")
	defer span.End()
	span.SetAttributes(attribute.String("http.url", u))

	logger := c.logger()
	attempts := 0
	var lastErr error
	for attempt := 0; attempt <= c.RetryMax; attempt++ {
		attempts++
		resp, err := c.once(ctx, u)
		if err == nil {
			span.SetAttributes(attribute.Int("http.attempts", attempts))
			return resp, nil
		}
		lastErr = err
		logger.WarnContext(ctx, "请求失败", "url", u, "attempt", attempt, "err", err)

		if errors.Is(err, ErrBodyTooLarge) {
			break
		}
		if ctx.Err() != nil {
			// ctx 已取消：不再重试，直接返回最后错误（更可解释）。
			break
		}
		if attempt < c.RetryMax {
			if err := c.doSleep(ctx, c.RetryDelay); err != nil {
				break
			}
		}
	}

	span.SetAttributes(attribute.Int("http.attempts", attempts))
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "retries exhausted")
	logger.ErrorContext(ctx, "请求失败，放弃该资源", "url", u, "attempts", attempts, "err", lastErr)
	return nil, &RetryError{URL: u, Attempts: attempts, Err: lastErr}
}

func (c *Client) once(ctx context.Context, u string) (*Response, error) {
	if c.HTTP == nil {
		return nil, errors.New("nil http client")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 丢弃 body，让连接可以被复用。
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &HTTPStatusError{URL: u, StatusCode: resp.StatusCode}
	}
	limit := c.MaxBodySize
	if limit <= 0 {
		limit = maxBodySize
	}
	// 多读 1 字节用来判断是否超限。
	b, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("%w：%d 字节", ErrBodyTooLarge, limit)
	}
	return &Response{
		URL:         u,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        b,
	}, nil
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Client) doSleep(ctx context.Context, d time.Duration) error {
	if c.sleep != nil {
		return c.sleep(ctx, d)
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Transport 负责“固定请求头”：UA（固定值或 UA 池）与可选 Referer。
type Transport struct {
	Base http.RoundTripper

	ua *uaPool

	UserAgent string
	Referer   string
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}
	// Clone 会复制 Header 等，避免在 RoundTripper 内部“污染”调用方的 request。
	r := req.Clone(req.Context())
	if r.Header.Get("User-Agent") == "" {
		if t.UserAgent != "" {
			r.Header.Set("User-Agent", t.UserAgent)
		} else if t.ua != nil {
			r.Header.Set("User-Agent", t.ua.random())
		}
	}
	if t.Referer != "" && r.Header.Get("Referer") == "" {
		r.Header.Set("Referer", t.Referer)
	}
	return t.Base.RoundTrip(r)
}

type uaPool struct {
	mu  sync.Mutex
	rnd *rand.Rand
	uas []string
}

func (p *uaPool) random() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uas[p.rnd.Intn(len(p.uas))]
}

var globalUA = newUAPool()

func newUAPool() *uaPool {
	uas := []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	}
	return &uaPool{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		uas: uas,
	}
}
