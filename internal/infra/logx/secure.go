package logx

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// MaskValue 替换敏感值。
const MaskValue = "***REDACTED***"

// sensitiveKeys：属性名（小写）命中即脱敏。
var sensitiveKeys = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"api_key":             true,
	"apikey":              true,
	"api-key":             true,
	"password":            true,
	"secret":              true,
	"token":               true,
	"access_token":        true,
}

// sensitiveKeywords：属性名包含即脱敏。不含裸 "key"（会误伤 keyword 等字段）。
var sensitiveKeywords = []string{"password", "secret", "token", "auth", "credential", "api_key", "apikey"}

// sensitivePatterns：值命中即脱敏，与属性名无关。
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	// DashScope / OpenAI 风格的 key
	regexp.MustCompile(`^sk-[A-Za-z0-9_-]{16,}$`),
	// Google API key
	regexp.MustCompile(`^AIza[0-9A-Za-z_-]{35}$`),
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
}

// SecureHandler 包装任意 slog.Handler，在记录进入下游前把敏感属性替换为 MaskValue。
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler 包装 h；h 为 nil 时使用 slog.Default().Handler()。
func NewSecureHandler(h slog.Handler) *SecureHandler {
	if h == nil {
		h = slog.Default().Handler()
	}
	return &SecureHandler{handler: h}
}

func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(sanitize(a))
		return true
	})
	return h.handler.Handle(ctx, out)
}

func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = sanitize(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(clean)}
}

func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

func sanitize(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		clean := make([]slog.Attr, len(group))
		for i, g := range group {
			clean[i] = sanitize(g)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(clean...)}
	}

	key := strings.ToLower(a.Key)
	if sensitiveKeys[key] || containsKeyword(key) {
		return slog.String(a.Key, MaskValue)
	}
	if a.Value.Kind() == slog.KindString && isSensitiveValue(a.Value.String()) {
		return slog.String(a.Key, MaskValue)
	}
	return a
}

func containsKeyword(key string) bool {
	for _, k := range sensitiveKeywords {
		if strings.Contains(key, k) {
			return true
		}
	}
	return false
}

func isSensitiveValue(v string) bool {
	for _, p := range sensitivePatterns {
		if p.MatchString(v) {
			return true
		}
	}
	return false
}
