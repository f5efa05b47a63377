package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/dishkit/internal/domain"
	"github.com/John-Robertt/dishkit/internal/infra/httpx"
)

// ErrNotFound 表示页面结构里找不到结果容器/链接（与网络失败区分）。
// 调用方应把对应链接留空，而不是中止整个批次。
var ErrNotFound = errors.New("未找到菜谱链接")

// Fetcher 是 Searcher 依赖的最小网络能力；*httpx.Client 满足该接口。
type Fetcher interface {
	Get(ctx context.Context, u string) (*httpx.Response, error)
}

// Result 是搜索结果页中第一个菜谱的解析结果。
type Result struct {
	Link  string
	Cover string
}

// Searcher 实现“菜名 -> 首个菜谱链接”。
//
// 约束：
// - Search 不做重试/缓存（重试由 Fetcher 统一控制）
// - ParseFirstRecipe 必须是纯函数（只依赖输入 html + base）
type Searcher struct {
	Fetcher Fetcher
	// Base 用于把相对 href 解析为绝对 URL，例如 https://www.xiachufang.com
	Base *url.URL
	// SearchURL 是不含 keyword 的搜索入口，例如 https://www.xiachufang.com/search/?keyword=
	SearchURL string

	Logger *slog.Logger
}

// New 用站点根地址与搜索入口构造 Searcher。
func New(f Fetcher, baseURL, searchURL string) (*Searcher, error) {
	if f == nil {
		return nil, errors.New("fetcher 不能为空")
	}
	bu, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || bu.Scheme == "" || bu.Host == "" {
		return nil, fmt.Errorf("base url 无效：%q", baseURL)
	}
	if strings.TrimSpace(searchURL) == "" {
		return nil, errors.New("search url 不能为空")
	}
	return &Searcher{Fetcher: f, Base: bu, SearchURL: searchURL}, nil
}

// Search 搜索 keyword 并解析第一个菜谱。
//
// 返回值：
// - 网络失败（重试耗尽）：*httpx.RetryError
// - 页面无结果：ErrNotFound
func (s *Searcher) Search(ctx context.Context, keyword string) (Result, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return Result{}, errors.New("keyword 不能为空")
	}
	resp, err := s.Fetcher.Get(ctx, s.SearchURL+url.QueryEscape(keyword))
	if err != nil {
		return Result{}, err
	}
	html, err := resp.Text()
	if err != nil {
		return Result{}, err
	}
	return ParseFirstRecipe([]byte(html), s.Base)
}

// Resolve 与 Search 相同，但把两类失败都降级为空结果，只记录日志。
func (s *Searcher) Resolve(ctx context.Context, keyword string) domain.LinkResult {
	out := domain.LinkResult{Keyword: keyword}
	r, err := s.Search(ctx, keyword)
	switch {
	case err == nil:
		out.Link, out.Cover = r.Link, r.Cover
	case errors.Is(err, ErrNotFound):
		s.logger().InfoContext(ctx, "搜索无结果", "keyword", keyword)
	default:
		s.logger().WarnContext(ctx, "搜索菜谱失败", "keyword", keyword, "err", err)
	}
	return out
}

// ResolveAll 对 names 逐个搜索 prefix+name，返回 name -> link（失败为空串）。
// 顺序执行；单个失败不影响其他。
func (s *Searcher) ResolveAll(ctx context.Context, prefix string, names []string) []domain.LinkResult {
	out := make([]domain.LinkResult, 0, len(names))
	for _, name := range names {
		if ctx.Err() != nil {
			out = append(out, domain.LinkResult{Keyword: name})
			continue
		}
		r := s.Resolve(ctx, prefix+name)
		r.Keyword = name
		out = append(out, r)
	}
	return out
}

// ParseFirstRecipe 在搜索结果页中定位 div.recipe，取其中第一个 <a>。
//
// 规则：
// - href 以 base 解析为绝对 URL，并去掉 query/fragment
// - cover 取该 <a> 内 div.cover img 的 data-src（同样去掉 query）；缺失不算错误
// - 容器/链接/href 任一缺失：ErrNotFound
func ParseFirstRecipe(html []byte, base *url.URL) (Result, error) {
	if len(html) == 0 {
		return Result{}, ErrNotFound
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return Result{}, err
	}

	a := doc.Find("div.recipe").First().Find("a").First()
	if a.Length() == 0 {
		return Result{}, ErrNotFound
	}
	href, ok := a.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return Result{}, ErrNotFound
	}
	link := resolveURL(base, href)
	if link == "" {
		return Result{}, ErrNotFound
	}

	cover := ""
	if src, ok := a.Find("div.cover img").First().Attr("data-src"); ok {
		cover = stripQuery(strings.TrimSpace(src))
	}
	return Result{Link: link, Cover: cover}, nil
}

func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ru, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		ru = base.ResolveReference(ru)
	}
	ru.RawQuery = ""
	ru.ForceQuery = false
	ru.Fragment = ""
	return ru.String()
}

func stripQuery(s string) string {
	if i := strings.IndexByte(s, '?'); i >= 0 {
		return s[:i]
	}
	return s
}

func (s *Searcher) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
