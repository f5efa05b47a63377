// Package logx 构造全局 slog.Logger：终端走 tint 彩色输出，--log-format json 走 JSON；两者都经过脱敏。
package logx

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

type Options struct {
	Verbose bool
	Format  string
	// NoColor 关闭 tint 的 ANSI 颜色（输出不是终端时）。
	NoColor bool
}

// ParseFormat 校验 --log-format。
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("--log-format 只能是 text|json，实际是 %q", s)
	}
}

// New 返回写到 w 的 logger；verbose 时为 Debug 级别，否则 Info。
func New(w io.Writer, opts Options) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}

	var h slog.Handler
	if strings.EqualFold(opts.Format, FormatJSON) {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		h = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			NoColor:    opts.NoColor,
		})
	}
	return slog.New(NewSecureHandler(h))
}
