package imgsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/John-Robertt/dishkit/internal/domain"
	"github.com/John-Robertt/dishkit/internal/infra/fsx"
	"github.com/John-Robertt/dishkit/internal/infra/httpx"
)

const (
	// DefaultHostVar/DefaultParamVar 是页面模板里拼接图片 URL 用的两个占位符：
	// `${img_host}<filename>${img_param}`
	DefaultHostVar  = "${img_host}"
	DefaultParamVar = "${img_param}"
)

// ErrInputNotFound 表示待解析的页面文件不存在（imgs 唯一的提前退出条件）。
var ErrInputNotFound = errors.New("找不到页面文件")

// Fetcher 是下载图片所需的最小网络能力；*httpx.Client 满足该接口。
type Fetcher interface {
	Get(ctx context.Context, u string) (*httpx.Response, error)
}

// Pattern 描述页面模板中图片引用的写法。
type Pattern struct {
	HostVar  string
	ParamVar string
}

// DefaultPattern 与静态页面的模板写法一致。
func DefaultPattern() Pattern {
	return Pattern{HostVar: DefaultHostVar, ParamVar: DefaultParamVar}
}

// Regexp 构造非贪婪的匹配表达式；占位符按字面量转义。
func (p Pattern) Regexp() *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(p.HostVar) + `(.*?)` + regexp.QuoteMeta(p.ParamVar))
}

// Extract 返回页面中匹配到的全部文件名（按出现顺序，未去重）。
func (p Pattern) Extract(content string) []string {
	ms := p.Regexp().FindAllStringSubmatch(content, -1)
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m[1])
	}
	return out
}

// Referenced 把匹配结果去重并与白名单合并，返回排序后的集合。
func Referenced(matches, allowList []string) []string {
	set := make(map[string]struct{}, len(matches)+len(allowList))
	for _, s := range matches {
		if s = strings.TrimSpace(s); s != "" {
			set[s] = struct{}{}
		}
	}
	for _, s := range allowList {
		if s = strings.TrimSpace(s); s != "" {
			set[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Syncer 把本地图片目录与页面引用的文件集合对齐（缺的下载、多的删除）。
//
// 语义：收敛式对齐。输入不变时第二次运行不会再下载或删除任何文件。
// 没有回滚：下载失败的文件保持缺失，留给下一次运行。
type Syncer struct {
	Fetcher Fetcher
	Pattern Pattern

	// Dir 是本地图片目录。
	Dir string
	// Host/Param 用于拼接下载地址：Host + name + Param。
	Host  string
	Param string
	// AllowList 中的文件即使页面未引用也保留（例如 preview.png）。
	AllowList []string

	DryRun   bool
	Observer Observer
	Logger   *slog.Logger
}

// SyncFile 读取 htmlPath 后执行 Sync；文件不存在时返回 ErrInputNotFound。
func (s *Syncer) SyncFile(ctx context.Context, htmlPath string) (domain.SyncReport, error) {
	b, err := os.ReadFile(htmlPath)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.SyncReport{}, fmt.Errorf("%w：%s", ErrInputNotFound, htmlPath)
		}
		return domain.SyncReport{}, err
	}
	return s.Sync(ctx, string(b))
}

// Sync 执行一次对齐，返回带统计的报告。
// 只有列目录失败才返回 error；单个文件的下载/删除失败记录为条目。
func (s *Syncer) Sync(ctx context.Context, content string) (domain.SyncReport, error) {
	obs := s.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	pattern := s.Pattern
	if pattern.HostVar == "" || pattern.ParamVar == "" {
		pattern = DefaultPattern()
	}

	rr := domain.SyncReport{
		Dir:       s.Dir,
		DryRun:    s.DryRun,
		StartedAt: time.Now(),
		Entries:   make([]domain.SyncEntry, 0, 16),
	}

	matches := pattern.Extract(content)
	names := Referenced(matches, s.AllowList)
	rr.Matches = len(matches)
	rr.Referenced = len(names)
	obs.OnScan(len(matches), len(names))

	keep := make(map[string]struct{}, len(names))
	for _, name := range names {
		rel, err := fsx.CleanRel(name)
		if err != nil {
			e := domain.SyncEntry{Name: name, Action: domain.ActionFailed, ErrorMsg: err.Error()}
			rr.Entries = append(rr.Entries, e)
			obs.OnEntry(e)
			continue
		}
		key := filepath.ToSlash(rel)
		keep[key] = struct{}{}

		if exists, err := isFile(filepath.Join(s.Dir, rel)); err != nil {
			e := domain.SyncEntry{Name: key, Action: domain.ActionFailed, ErrorMsg: err.Error()}
			rr.Entries = append(rr.Entries, e)
			obs.OnEntry(e)
			continue
		} else if exists {
			continue
		}

		e := s.download(ctx, obs, key, name)
		rr.Entries = append(rr.Entries, e)
		obs.OnEntry(e)
	}

	local, err := fsx.ListFiles(s.Dir)
	if err != nil {
		rr.FinishedAt = time.Now()
		rr.Finalize()
		return rr, fmt.Errorf("列出图片目录失败：%w", err)
	}
	for _, name := range local {
		if _, ok := keep[name]; ok {
			continue
		}
		e := s.remove(name)
		rr.Entries = append(rr.Entries, e)
		obs.OnEntry(e)
	}

	rr.FinishedAt = time.Now()
	rr.Finalize()
	return rr, nil
}

func (s *Syncer) download(ctx context.Context, obs Observer, key, name string) domain.SyncEntry {
	u := s.Host + name + s.Param
	if s.DryRun {
		return domain.SyncEntry{Name: key, Action: domain.ActionWouldDownload, URL: u}
	}
	obs.OnDownload(key, u)

	if s.Fetcher == nil {
		return domain.SyncEntry{Name: key, Action: domain.ActionFailed, URL: u, ErrorMsg: "fetcher 为空"}
	}
	resp, err := s.Fetcher.Get(ctx, u)
	if err != nil {
		return domain.SyncEntry{Name: key, Action: domain.ActionFailed, URL: u, ErrorMsg: err.Error()}
	}
	if len(resp.Body) == 0 {
		return domain.SyncEntry{Name: key, Action: domain.ActionFailed, URL: u, ErrorMsg: "empty response body"}
	}
	if err := fsx.WriteFileAtomic(s.Dir, key, resp.Body); err != nil {
		s.logger().ErrorContext(ctx, "写入图片失败", "name", key, "err", err)
		return domain.SyncEntry{Name: key, Action: domain.ActionFailed, URL: u, ErrorMsg: err.Error()}
	}
	return domain.SyncEntry{Name: key, Action: domain.ActionDownloaded, URL: u}
}

func (s *Syncer) remove(name string) domain.SyncEntry {
	if s.DryRun {
		return domain.SyncEntry{Name: name, Action: domain.ActionWouldDelete}
	}
	if fsx.IsTempFile(path.Base(name)) {
		s.logger().Info("清理中断写入遗留的临时文件", "name", name)
	}
	if err := os.Remove(filepath.Join(s.Dir, filepath.FromSlash(name))); err != nil && !os.IsNotExist(err) {
		return domain.SyncEntry{Name: name, Action: domain.ActionDeleteFailed, ErrorMsg: err.Error()}
	}
	return domain.SyncEntry{Name: name, Action: domain.ActionDeleted}
}

func isFile(path string) (bool, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if fi.IsDir() {
		return false, &fsx.PathTypeConflictError{Path: path, Want: "file", Got: "dir"}
	}
	return true, nil
}

func (s *Syncer) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
