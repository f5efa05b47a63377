package httpx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"
)

func quietClient(opts Options) *Client {
	c := New(opts)
	c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return c
}

func TestGet_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	c := quietClient(Options{RetryMax: 2, RetryDelay: 250 * time.Millisecond})
	var slept []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	resp, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if string(resp.Body) != "ok" {
		t.Fatalf("body 不一致：%q", string(resp.Body))
	}
	if calls.Load() != 3 {
		t.Fatalf("期望 3 次请求，实际 %d", calls.Load())
	}
	// 固定间隔：每次都等同样长的时间（无指数退避）。
	if len(slept) != 2 || slept[0] != 250*time.Millisecond || slept[1] != 250*time.Millisecond {
		t.Fatalf("等待间隔不符合固定线性重试：%v", slept)
	}
}

func TestGet_ExhaustedReturnsAbsent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := quietClient(Options{RetryMax: 2, RetryDelay: time.Millisecond})

	resp, err := c.Get(context.Background(), srv.URL)
	if resp != nil {
		t.Fatalf("重试耗尽时应返回 nil，实际 %+v", resp)
	}
	var re *RetryError
	if !errors.As(err, &re) {
		t.Fatalf("期望 *RetryError，实际：%T %v", err, err)
	}
	if re.Attempts != 3 || calls.Load() != 3 {
		t.Fatalf("期望 3 次尝试，实际 attempts=%d calls=%d", re.Attempts, calls.Load())
	}
	if StatusCode(err) != http.StatusServiceUnavailable {
		t.Fatalf("期望状态码 503，实际 %d", StatusCode(err))
	}
}

func TestGet_ZeroRetrySingleAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := quietClient(Options{RetryMax: 0})
	if _, err := c.Get(context.Background(), srv.URL); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	if calls.Load() != 1 {
		t.Fatalf("RetryMax=0 时只应请求 1 次，实际 %d", calls.Load())
	}
}

func TestGet_BodyOverLimitIsError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, "0123456789")
	}))
	defer srv.Close()

	c := quietClient(Options{RetryMax: 2})
	c.sleep = func(context.Context, time.Duration) error { return nil }

	c.MaxBodySize = 9
	resp, err := c.Get(context.Background(), srv.URL)
	if !errors.Is(err, ErrBodyTooLarge) || resp != nil {
		t.Fatalf("超限时应返回 ErrBodyTooLarge 而不是截断内容：resp=%v err=%v", resp, err)
	}
	if calls.Load() != 1 {
		t.Fatalf("超限不应重试，实际请求 %d 次", calls.Load())
	}

	// 恰好等于上限时正常返回。
	c.MaxBodySize = 10
	resp, err = c.Get(context.Background(), srv.URL)
	if err != nil || string(resp.Body) != "0123456789" {
		t.Fatalf("等于上限时应完整返回：resp=%v err=%v", resp, err)
	}
}

func TestGet_TransportErrorIsRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	u := srv.URL
	srv.Close() // 连接会被拒绝

	c := quietClient(Options{RetryMax: 1, RetryDelay: time.Millisecond})
	_, err := c.Get(context.Background(), u)
	var re *RetryError
	if !errors.As(err, &re) || re.Attempts != 2 {
		t.Fatalf("期望 2 次尝试后的 *RetryError，实际：%v", err)
	}
	if StatusCode(err) != 0 {
		t.Fatalf("传输错误不应带状态码：%d", StatusCode(err))
	}
}

func TestGet_ContextCanceledStopsRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := quietClient(Options{RetryMax: 5})
	c.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	if _, err := c.Get(ctx, srv.URL); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	if calls.Load() != 1 {
		t.Fatalf("ctx 取消后不应继续重试，实际请求 %d 次", calls.Load())
	}
}

func TestTransport_FixedHeaders(t *testing.T) {
	var ua, ref string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		ref = r.Header.Get("Referer")
	}))
	defer srv.Close()

	c := quietClient(Options{UserAgent: "dishkit-test", Referer: "https://img.example.test/"})
	if _, err := c.Get(context.Background(), srv.URL); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if ua != "dishkit-test" {
		t.Fatalf("期望固定 UA，实际 %q", ua)
	}
	if ref != "https://img.example.test/" {
		t.Fatalf("期望 Referer，实际 %q", ref)
	}
}

func TestTransport_UAPoolWhenUnset(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	c := quietClient(Options{})
	if _, err := c.Get(context.Background(), srv.URL); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	found := false
	for _, s := range globalUA.uas {
		if s == ua {
			found = true
		}
	}
	if !found {
		t.Fatalf("UA 应来自内置 UA 池，实际 %q", ua)
	}
}

func TestResponse_TextDecodesGBK(t *testing.T) {
	gbk, err := simplifiedchinese.GBK.NewEncoder().String("<html><body>麻婆豆腐</body></html>")
	if err != nil {
		t.Fatalf("GBK 编码失败：%v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=gbk")
		_, _ = io.WriteString(w, gbk)
	}))
	defer srv.Close()

	resp, err := quietClient(Options{}).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	txt, err := resp.Text()
	if err != nil {
		t.Fatalf("Text 失败：%v", err)
	}
	if txt != "<html><body>麻婆豆腐</body></html>" {
		t.Fatalf("GBK 未正确转为 UTF-8：%q", txt)
	}
}

func TestNew_Defaults(t *testing.T) {
	c := New(Options{RetryMax: -1, RetryDelay: -time.Second})
	if c.RetryMax != 0 || c.RetryDelay != 0 {
		t.Fatalf("负数应归零：retry=%d delay=%v", c.RetryMax, c.RetryDelay)
	}
	if c.HTTP.Timeout != defaultTimeout {
		t.Fatalf("期望默认超时 %v，实际 %v", defaultTimeout, c.HTTP.Timeout)
	}
	d := Default()
	if d.RetryMax != 2 || d.RetryDelay != 500*time.Millisecond {
		t.Fatalf("Default 策略不正确：retry=%d delay=%v", d.RetryMax, d.RetryDelay)
	}
}
