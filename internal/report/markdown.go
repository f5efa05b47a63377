package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"

	"github.com/John-Robertt/dishkit/internal/domain"
)

func writeDishMarkdown(out io.Writer, ds []domain.Dish) error {
	md := markdown.NewMarkdown(out)
	md.H1("菜单")
	md.PlainText("")

	rows := make([][]string, 0, len(ds))
	for _, d := range ds {
		name := d.Name
		if link := firstLink(d); link != "" {
			name = "[" + d.Name + "](" + link + ")"
		}
		rows = append(rows, []string{
			name,
			orDash(d.Cuisine),
			orDash(strings.Join(d.Characteristics, "、")),
			orDash(strings.Join(d.Flavors, "、")),
			orDash(d.PrepTime),
			orDash(d.Cost),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"菜名", "菜系", "特色", "味道", "用时", "价格"},
		Rows:   rows,
	})
	md.PlainText("")
	return md.Build()
}

func writeLinkMarkdown(out io.Writer, rs []domain.LinkResult) error {
	md := markdown.NewMarkdown(out)
	md.H1("菜谱链接")
	md.PlainText("")

	var missing []string
	rows := make([][]string, 0, len(rs))
	for _, r := range rs {
		if r.Link == "" {
			missing = append(missing, r.Keyword)
		}
		rows = append(rows, []string{r.Keyword, orDash(r.Link)})
	}
	md.Table(markdown.TableSet{Header: []string{"关键词", "链接"}, Rows: rows})
	md.PlainText("")

	if len(missing) > 0 {
		md.H2("未找到")
		md.PlainText("")
		md.BulletList(missing...)
		md.PlainText("")
	}
	return md.Build()
}

func writeSyncMarkdown(out io.Writer, rr domain.SyncReport) error {
	md := markdown.NewMarkdown(out)
	md.H1("图片同步")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"项目", "数量"},
		Rows: [][]string{
			{"页面引用", strconv.Itoa(rr.Referenced)},
			{"下载", strconv.Itoa(rr.Summary.Downloaded)},
			{"失败", strconv.Itoa(rr.Summary.Failed)},
			{"删除", strconv.Itoa(rr.Summary.Deleted)},
			{"计划", strconv.Itoa(rr.Summary.Planned)},
		},
	})
	md.PlainText("")

	if len(rr.Entries) > 0 {
		md.H2("明细")
		md.PlainText("")
		items := make([]string, 0, len(rr.Entries))
		for _, e := range rr.Entries {
			item := "`" + e.Name + "` " + actionLabel(e.Action)
			if e.ErrorMsg != "" {
				item += "：" + e.ErrorMsg
			}
			items = append(items, item)
		}
		md.BulletList(items...)
		md.PlainText("")
	}
	md.PlainText(SyncSummaryLine(rr))
	return md.Build()
}

// firstLink 返回按输入顺序第一个非空链接。
func firstLink(d domain.Dish) string {
	for _, k := range d.LinkKeys() {
		if v := d.Links[k]; v != "" {
			return v
		}
	}
	return ""
}
