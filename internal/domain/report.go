package domain

import (
	"sort"
	"time"
)

const (
	ActionDownloaded = "downloaded"
	ActionFailed     = "failed"
	ActionDeleted    = "deleted"
	// ActionDeleteFailed 表示删除未引用文件失败；与下载失败一起计入 Failed。
	ActionDeleteFailed = "delete_failed"

	// dry-run 下只记录计划动作，不触碰网络与磁盘。
	ActionWouldDownload = "would_download"
	ActionWouldDelete   = "would_delete"
)

// SyncReport 是一次图片缓存同步（imgs）的结果。
type SyncReport struct {
	Dir    string `json:"dir"`
	DryRun bool   `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Matches 是页面中匹配到的图片引用次数（未去重）。
	Matches int `json:"matches"`
	// Referenced 是页面引用 + 白名单的去重集合大小。
	Referenced int `json:"referenced"`

	Summary SyncSummary `json:"summary"`
	Entries []SyncEntry `json:"entries"`
}

type SyncSummary struct {
	Downloaded int `json:"downloaded"`
	Failed     int `json:"failed"`
	Deleted    int `json:"deleted"`
	Planned    int `json:"planned"`
}

type SyncEntry struct {
	Name     string `json:"name"`
	Action   string `json:"action"`
	URL      string `json:"url,omitempty"`
	ErrorMsg string `json:"error_msg,omitempty"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC
// 2) entries 稳定排序：按 name 字典序，同名按 action
// 3) summary 由 entries 计算得出
func (r *SyncReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Entries, func(i, j int) bool {
		if r.Entries[i].Name != r.Entries[j].Name {
			return r.Entries[i].Name < r.Entries[j].Name
		}
		return r.Entries[i].Action < r.Entries[j].Action
	})

	var s SyncSummary
	for _, e := range r.Entries {
		switch e.Action {
		case ActionDownloaded:
			s.Downloaded++
		case ActionFailed, ActionDeleteFailed:
			s.Failed++
		case ActionDeleted:
			s.Deleted++
		case ActionWouldDownload, ActionWouldDelete:
			s.Planned++
		}
	}
	r.Summary = s
}

// Changed 报告本次同步是否对目录做了（或计划做）任何修改。
func (r SyncReport) Changed() bool {
	return r.Summary.Downloaded+r.Summary.Deleted+r.Summary.Planned > 0
}
