package main

import (
	"fmt"
	"io"

	"github.com/John-Robertt/dishkit/internal/domain"
	"github.com/John-Robertt/dishkit/internal/imgsync"
)

var _ imgsync.Observer = (*progressLines)(nil)

// progressLines 把同步事件逐行写到 w（stderr），不污染 stdout 的结果输出。
type progressLines struct {
	w io.Writer
}

func (p *progressLines) OnScan(matches, referenced int) {
	if matches == 0 {
		fmt.Fprintln(p.w, "未找到匹配的图片链接。")
		return
	}
	fmt.Fprintf(p.w, "找到 %d 个图片需要处理（去重并合并白名单后 %d 个）。\n", matches, referenced)
}

func (p *progressLines) OnDownload(_, url string) {
	fmt.Fprintf(p.w, "正在下载: %s\n", url)
}

func (p *progressLines) OnEntry(e domain.SyncEntry) {
	switch e.Action {
	case domain.ActionDownloaded:
		fmt.Fprintf(p.w, "✅ 下载成功: %s\n", e.Name)
	case domain.ActionFailed:
		fmt.Fprintf(p.w, "❌ 下载失败 %s: %s\n", e.Name, e.ErrorMsg)
	case domain.ActionDeleteFailed:
		fmt.Fprintf(p.w, "❌ 删除失败 %s: %s\n", e.Name, e.ErrorMsg)
	case domain.ActionDeleted:
		fmt.Fprintf(p.w, "❌ 文件已删除 %s\n", e.Name)
	case domain.ActionWouldDownload:
		fmt.Fprintf(p.w, "计划下载: %s\n", e.URL)
	case domain.ActionWouldDelete:
		fmt.Fprintf(p.w, "计划删除: %s\n", e.Name)
	}
}
