// Package report 负责把结果写成 json / table / markdown 三种格式。
//
// 约束：json 是机器可读契约（非 TTY 默认）；table/markdown 只面向人。
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/John-Robertt/dishkit/internal/domain"
)

type Format string

const (
	FormatJSON     Format = "json"
	FormatTable    Format = "table"
	FormatMarkdown Format = "markdown"
)

// ParseFormat 解析 --output；空字符串返回 def。
func ParseFormat(s string, def Format) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "json":
		return FormatJSON, nil
	case "table":
		return FormatTable, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("--output 只能是 json|table|markdown，实际是 %q", s)
	}
}

// Writer 按选定格式输出。
type Writer struct {
	out    io.Writer
	format Format
}

func NewWriter(out io.Writer, format Format) *Writer {
	if format == "" {
		format = FormatJSON
	}
	return &Writer{out: out, format: format}
}

func (w *Writer) Format() Format { return w.format }

// Dishes 输出菜单。
func (w *Writer) Dishes(ds []domain.Dish) error {
	switch w.format {
	case FormatTable:
		return writeDishTable(w.out, ds)
	case FormatMarkdown:
		return writeDishMarkdown(w.out, ds)
	default:
		if ds == nil {
			ds = []domain.Dish{}
		}
		return w.json(ds)
	}
}

// Links 输出链接搜索结果。
func (w *Writer) Links(rs []domain.LinkResult) error {
	switch w.format {
	case FormatTable:
		return writeLinkTable(w.out, rs)
	case FormatMarkdown:
		return writeLinkMarkdown(w.out, rs)
	default:
		if rs == nil {
			rs = []domain.LinkResult{}
		}
		return w.json(rs)
	}
}

// Sync 输出图片同步报告。
func (w *Writer) Sync(rr domain.SyncReport) error {
	switch w.format {
	case FormatTable:
		return writeSyncTable(w.out, rr)
	case FormatMarkdown:
		return writeSyncMarkdown(w.out, rr)
	default:
		if rr.Entries == nil {
			rr.Entries = []domain.SyncEntry{}
		}
		return w.json(rr)
	}
}

func (w *Writer) json(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// SyncSummaryLine 是同步结束时打印的一行摘要。
func SyncSummaryLine(rr domain.SyncReport) string {
	s := rr.Summary
	if rr.DryRun {
		return fmt.Sprintf("完成（dry-run）！计划处理 %d 张图片", s.Planned)
	}
	return fmt.Sprintf("完成！成功下载 %d 张图片，失败 %d 张图片，删除 %d 张图片", s.Downloaded, s.Failed, s.Deleted)
}

// LinkMapLine 把结果写成 `"k": "v", ...` 形式，方便直接粘贴进页面数据的对象字面量。
func LinkMapLine(rs []domain.LinkResult) string {
	parts := make([]string, 0, len(rs))
	for _, r := range rs {
		parts = append(parts, fmt.Sprintf("%q: %q", r.Keyword, r.Link))
	}
	return strings.Join(parts, ", ")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
