package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/John-Robertt/dishkit/internal/domain"
)

func newTable(out io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(header)
	t.SetStyle(table.StyleRounded)
	return t
}

func writeDishTable(out io.Writer, ds []domain.Dish) error {
	t := newTable(out, table.Row{"#", "菜名", "菜系", "特色", "味道", "用时", "价格", "链接"})
	for i, d := range ds {
		t.AppendRow(table.Row{
			i + 1,
			d.Name,
			orDash(d.Cuisine),
			orDash(strings.Join(d.Characteristics, "、")),
			orDash(strings.Join(d.Flavors, "、")),
			orDash(d.PrepTime),
			orDash(d.Cost),
			formatLinks(d),
		})
	}
	t.Render()
	return nil
}

func writeLinkTable(out io.Writer, rs []domain.LinkResult) error {
	t := newTable(out, table.Row{"关键词", "链接", "封面"})
	found := 0
	for _, r := range rs {
		if r.Link != "" {
			found++
		}
		t.AppendRow(table.Row{r.Keyword, orDash(r.Link), orDash(r.Cover)})
	}
	t.AppendFooter(table.Row{"合计", strconv.Itoa(found) + "/" + strconv.Itoa(len(rs)), ""})
	t.Render()
	return nil
}

func writeSyncTable(out io.Writer, rr domain.SyncReport) error {
	t := newTable(out, table.Row{"文件", "动作", "详情"})
	for _, e := range rr.Entries {
		detail := e.ErrorMsg
		if detail == "" {
			detail = e.URL
		}
		t.AppendRow(table.Row{e.Name, actionLabel(e.Action), orDash(detail)})
	}
	t.AppendFooter(table.Row{"", "", SyncSummaryLine(rr)})
	t.Render()
	return nil
}

// formatLinks 按输入顺序，每行一个 `key: url`。
func formatLinks(d domain.Dish) string {
	if len(d.Links) == 0 {
		return "-"
	}
	keys := d.LinkKeys()
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+": "+orDash(d.Links[k]))
	}
	return strings.Join(lines, "\n")
}

func actionLabel(a string) string {
	switch a {
	case domain.ActionDownloaded:
		return "✅ 下载成功"
	case domain.ActionFailed:
		return "❌ 失败"
	case domain.ActionDeleteFailed:
		return "❌ 删除失败"
	case domain.ActionDeleted:
		return "❌ 已删除"
	case domain.ActionWouldDownload:
		return "计划下载"
	case domain.ActionWouldDelete:
		return "计划删除"
	default:
		return a
	}
}
