// Package imgproxy 是图床的防盗链代理：浏览器请求 /proxy-image/<path>，代理带上图床要求的 Referer 转发。
package imgproxy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	DefaultPrefix    = "/proxy-image/"
	defaultUserAgent = "Mozilla/5.0"
	defaultType      = "image/jpeg"
	cacheControl     = "public, max-age=31536000"
)

// Proxy 是 http.Handler；不持有可变状态，可被并发请求共享。
type Proxy struct {
	// Client 用于请求上游；为 nil 时使用 http.DefaultClient。
	Client *http.Client
	// Host 是图床地址（以 "/" 结尾），同时作为 Referer。
	Host string
	// Prefix 是代理路径前缀，默认 DefaultPrefix。
	Prefix string
	Logger *slog.Logger
}

func (p *Proxy) prefix() string {
	if p.Prefix == "" {
		return DefaultPrefix
	}
	return p.Prefix
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	prefix := p.prefix()
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, prefix)
	target := p.Host + path

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, nil)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ua := r.Header.Get("User-Agent")
	if ua == "" {
		ua = defaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Referer", p.Host)

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			p.logger().WarnContext(r.Context(), "请求图床失败", "url", target, "err", err)
		}
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(resp.StatusCode)
		_, _ = io.WriteString(w, "Image not found")
		return
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = defaultType
	}
	h := w.Header()
	h.Set("Content-Type", ct)
	h.Set("Cache-Control", cacheControl)
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(resp.StatusCode)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		p.logger().DebugContext(r.Context(), "转发图片中断", "url", target, "err", err)
	}
}

// NewMux 挂载代理与 /healthcheck。
func NewMux(p *Proxy) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/", p)
	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			p.logger().Error("写入 healthcheck 失败", "err", err)
		}
	})
	return mux
}

func (p *Proxy) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
