package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/John-Robertt/dishkit/internal/domain"
	"github.com/John-Robertt/dishkit/internal/infra/httpx"
)

var testBase, _ = url.Parse("https://www.xiachufang.com")

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("读取 fixture 失败：%v", err)
	}
	return b
}

func TestParseFirstRecipe_FromSearchFixture(t *testing.T) {
	r, err := ParseFirstRecipe(readFixture(t, "search.html"), testBase)
	if err != nil {
		t.Fatalf("ParseFirstRecipe 失败：%v", err)
	}
	want := Result{
		Link:  "https://www.xiachufang.com/recipe/78140/",
		Cover: "https://i2.chuimg.com/f8f10c40efea45099c416a2ed9123d4a_1864w_1242h.jpg",
	}
	if diff := cmp.Diff(want, r); diff != "" {
		t.Fatalf("解析结果不一致 (-want +got):\n%s", diff)
	}
}

func TestParseFirstRecipe_NotFound(t *testing.T) {
	cases := map[string][]byte{
		"no_container": readFixture(t, "empty.html"),
		"no_anchor":    []byte(`<div class="recipe"><span>x</span></div>`),
		"empty_href":   []byte(`<div class="recipe"><a href="  ">x</a></div>`),
		"empty_body":   nil,
	}
	for name, html := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFirstRecipe(html, testBase)
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("期望 ErrNotFound，实际：%v", err)
			}
		})
	}
}

func TestParseFirstRecipe_AbsoluteHrefAndNoCover(t *testing.T) {
	html := []byte(`<div class="recipe"><a href="https://m.xiachufang.com/recipe/1/?a=b#top">x</a></div>`)
	r, err := ParseFirstRecipe(html, testBase)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if r.Link != "https://m.xiachufang.com/recipe/1/" {
		t.Fatalf("绝对 href 应保留 host 并去掉 query/fragment，实际 %q", r.Link)
	}
	if r.Cover != "" {
		t.Fatalf("无 cover 时应为空串，实际 %q", r.Cover)
	}
}

type stubFetcher struct {
	pages map[string]string
	err   error
	urls  []string
}

func (f *stubFetcher) Get(ctx context.Context, u string) (*httpx.Response, error) {
	f.urls = append(f.urls, u)
	if f.err != nil {
		return nil, f.err
	}
	for k, body := range f.pages {
		if strings.Contains(u, url.QueryEscape(k)) {
			return &httpx.Response{URL: u, StatusCode: 200, ContentType: "text/html; charset=utf-8", Body: []byte(body)}, nil
		}
	}
	return &httpx.Response{URL: u, StatusCode: 200, ContentType: "text/html", Body: []byte("<html></html>")}, nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSearcher_ResolveAll_NotFoundAndNetworkFailureAreEmpty(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		"清炒香菇": `<div class="recipe"><a href="/recipe/1/">x</a></div>`,
	}}
	s, err := New(f, "https://www.xiachufang.com", "https://www.xiachufang.com/search/?keyword=")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	s.Logger = quiet()

	got := s.ResolveAll(context.Background(), "清炒", []string{"香菇", "木耳"})
	want := []domain.LinkResult{
		{Keyword: "香菇", Link: "https://www.xiachufang.com/recipe/1/"},
		{Keyword: "木耳", Link: ""},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("结果不一致 (-want +got):\n%s", diff)
	}
	if !strings.HasPrefix(f.urls[0], "https://www.xiachufang.com/search/?keyword=") {
		t.Fatalf("搜索 URL 不正确：%q", f.urls[0])
	}

	// 网络失败（重试耗尽）同样降级为空链接，不中止批次。
	f2 := &stubFetcher{err: &httpx.RetryError{URL: "x", Attempts: 3, Err: errors.New("timeout")}}
	s.Fetcher = f2
	got = s.ResolveAll(context.Background(), "", []string{"香菇", "木耳"})
	if len(got) != 2 || got[0].Link != "" || got[1].Link != "" {
		t.Fatalf("网络失败应得到空链接：%+v", got)
	}
	if len(f2.urls) != 2 {
		t.Fatalf("单个失败不应中止后续搜索，实际请求 %d 次", len(f2.urls))
	}
}

func TestSearcher_Search_OverHTTP(t *testing.T) {
	fixture := readFixture(t, "search.html")
	var gotKeyword string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKeyword = r.URL.Query().Get("keyword")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(fixture)
	}))
	defer srv.Close()

	c := httpx.New(httpx.Options{RetryMax: 0})
	c.Logger = quiet()
	s, err := New(c, srv.URL, srv.URL+"/search/?keyword=")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	r, err := s.Search(context.Background(), "麻婆豆腐")
	if err != nil {
		t.Fatalf("Search 失败：%v", err)
	}
	if gotKeyword != "麻婆豆腐" {
		t.Fatalf("keyword 未正确编码：%q", gotKeyword)
	}
	if r.Link != srv.URL+"/recipe/78140/" {
		t.Fatalf("链接应以搜索站点为 base 解析，实际 %q", r.Link)
	}
}

func TestNew_InvalidBase(t *testing.T) {
	if _, err := New(&stubFetcher{}, "not a url", "x"); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	if _, err := New(nil, "https://x.test", "x"); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
}
