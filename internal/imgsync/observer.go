package imgsync

import "github.com/John-Robertt/dishkit/internal/domain"

// Observer 把“同步进度/条目结果”从核心流程中解耦出来。
//
// 约束：imgsync 只负责发事件，不做任何输出；CLI 决定打印格式。
type Observer interface {
	// OnScan 在页面解析完成后调用：matches 为匹配次数（未去重），referenced 为去重 + 白名单后的集合大小。
	OnScan(matches, referenced int)
	// OnDownload 在开始下载某个文件前调用。
	OnDownload(name, url string)
	// OnEntry 在某个文件处理完成（下载成功/失败/删除/计划）时调用。
	OnEntry(e domain.SyncEntry)
}

type nopObserver struct{}

func (nopObserver) OnScan(int, int)           {}
func (nopObserver) OnDownload(string, string) {}
func (nopObserver) OnEntry(domain.SyncEntry)  {}
