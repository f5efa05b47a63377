package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"

	"github.com/adrg/xdg"
	"github.com/google/go-cmp/cmp"

	"github.com/John-Robertt/dishkit/internal/domain"
	"github.com/John-Robertt/dishkit/internal/infra/fsx"
)

// workdir 切换到临时目录并隔离 XDG 配置，返回该目录。
func workdir(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	xdg.Reload()
	t.Cleanup(xdg.Reload)
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("写入文件失败 %q：%v", path, err)
	}
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errb bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errb)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errb.String(), err
}

func TestNotifySignals_Catchable(t *testing.T) {
	var hasTerm bool
	for _, sig := range notifySignals {
		if sig == os.Kill {
			t.Fatalf("SIGKILL 无法捕获，不应注册：%v", notifySignals)
		}
		if sig == syscall.SIGTERM {
			hasTerm = true
		}
	}
	if !hasTerm {
		t.Fatalf("应注册 SIGTERM：%v", notifySignals)
	}
}

func TestRootCmd_Flags(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"config", "verbose", "log-format", "output"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Fatalf("缺少全局参数 --%s", name)
		}
	}
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"imgs", "links", "enrich", "serve"} {
		if !strings.Contains(strings.Join(names, ","), want) {
			t.Fatalf("缺少子命令 %q：%v", want, names)
		}
	}
}

func TestImgs_SyncAndIdempotent(t *testing.T) {
	dir := workdir(t)

	var hits atomic.Int32
	img := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("w") != "150" {
			http.Error(w, "bad param", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte("img" + r.URL.Path))
	}))
	t.Cleanup(img.Close)

	writeFile(t, filepath.Join(dir, "dishkit.json"), `{
		"http": {"retry_delay_ms": 1},
		"images": {"host": "`+img.URL+`/", "param": "?w=150"},
	}`)
	writeFile(t, filepath.Join(dir, "index.html"), "<script>`${img_host}A.jpg${img_param} ${img_host}B.jpg${img_param}`</script>")
	writeFile(t, filepath.Join(dir, "imgs", "stale.jpg"), "x")

	stdout, stderr, err := execute(t, "imgs", "-o", "json")
	if err != nil {
		t.Fatalf("不期望错误：%v\nstderr=%s", err, stderr)
	}
	var rr domain.SyncReport
	if err := json.Unmarshal([]byte(stdout), &rr); err != nil {
		t.Fatalf("stdout 应为 JSON 报告：%v\n%s", err, stdout)
	}
	// A.jpg、B.jpg 与白名单里的 preview.png 都需要下载。
	if rr.Summary != (domain.SyncSummary{Downloaded: 3, Deleted: 1}) {
		t.Fatalf("统计不正确：%+v", rr.Summary)
	}
	if !strings.Contains(stderr, "完成！成功下载 3 张图片，失败 0 张图片，删除 1 张图片") {
		t.Fatalf("stderr 缺少摘要行：%s", stderr)
	}
	files, _ := fsx.ListFiles(filepath.Join(dir, "imgs"))
	if diff := cmp.Diff([]string{"A.jpg", "B.jpg", "preview.png"}, files); diff != "" {
		t.Fatalf("目录内容不正确 (-want +got):\n%s", diff)
	}

	hits.Store(0)
	stdout, _, err = execute(t, "imgs", "-o", "json", "-q")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	rr = domain.SyncReport{}
	_ = json.Unmarshal([]byte(stdout), &rr)
	if rr.Changed() || hits.Load() != 0 {
		t.Fatalf("第二次运行应为 no-op：summary=%+v hits=%d", rr.Summary, hits.Load())
	}
}

func TestImgs_MissingHTML(t *testing.T) {
	workdir(t)
	_, _, err := execute(t, "imgs", "--html", "nope.html")
	if err == nil || !strings.Contains(err.Error(), "找不到页面文件") {
		t.Fatalf("缺少页面文件应报错，实际：%v", err)
	}
}

func TestImgs_DryRun(t *testing.T) {
	dir := workdir(t)
	writeFile(t, filepath.Join(dir, "index.html"), "${img_host}A.jpg${img_param}")
	writeFile(t, filepath.Join(dir, "imgs", "stale.jpg"), "x")

	stdout, _, err := execute(t, "imgs", "--dry-run", "-o", "json")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	var rr domain.SyncReport
	if err := json.Unmarshal([]byte(stdout), &rr); err != nil {
		t.Fatalf("stdout 应为 JSON：%v", err)
	}
	// A.jpg + preview.png 计划下载，stale.jpg 计划删除。
	if !rr.DryRun || rr.Summary.Planned != 3 {
		t.Fatalf("dry-run 报告不正确：%+v", rr)
	}
	if _, err := os.Stat(filepath.Join(dir, "imgs", "stale.jpg")); err != nil {
		t.Fatalf("dry-run 不应删除文件：%v", err)
	}
}

func searchSite(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Query().Get("keyword") {
		case "清炒香菇", "酿豆腐":
			_, _ = w.Write([]byte(`<div class="recipe"><a href="/recipe/1/?from=s"><div class="cover"><img data-src="https://i/1.jpg?x=1"></div></a></div>`))
		default:
			_, _ = w.Write([]byte(`<div class="empty">没有结果</div>`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLinks_JSON(t *testing.T) {
	dir := workdir(t)
	site := searchSite(t)
	writeFile(t, filepath.Join(dir, "dishkit.json"), `{"site":{"base_url":"`+site.URL+`"},"http":{"retry_delay_ms":1}}`)

	stdout, stderr, err := execute(t, "links", "-o", "json", "香菇", "木耳")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	var got []domain.LinkResult
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("stdout 应为 JSON：%v\n%s", err, stdout)
	}
	want := []domain.LinkResult{
		{Keyword: "香菇", Link: site.URL + "/recipe/1/", Cover: "https://i/1.jpg"},
		{Keyword: "木耳", Link: ""},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("链接结果不正确 (-want +got):\n%s", diff)
	}
	if !strings.Contains(stderr, "木耳: \n") {
		t.Fatalf("stderr 应逐行输出结果：%q", stderr)
	}
}

func TestLinks_TableAppendsMapLine(t *testing.T) {
	dir := workdir(t)
	site := searchSite(t)
	writeFile(t, filepath.Join(dir, "dishkit.json"), `{"site":{"base_url":"`+site.URL+`"}}`)

	stdout, _, err := execute(t, "links", "-o", "table", "香菇")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !strings.Contains(stdout, `"香菇": "`+site.URL+`/recipe/1/"`) {
		t.Fatalf("table 输出末尾应附带映射行：%s", stdout)
	}
}

const dishesJSON = `[
  {"菜名":"酿豆腐","菜系":"","特色":[],"味道":[],"用时":"","链接":{},"图片":""},
  {"菜名":"红烧素鸡","菜系":"家常菜","特色":[],"味道":[],"用时":"30m","链接":{"红烧素鸡":"https://x/2"},"图片":"https://i/2.jpg"}
]`

func TestEnrich_SkipAllIsIdentity(t *testing.T) {
	dir := workdir(t)
	writeFile(t, filepath.Join(dir, "in.json"), dishesJSON)

	stdout, _, err := execute(t, "enrich", "--skip-llm", "--skip-links", "-i", "in.json", "-o", "json")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	var got, want []domain.Dish
	_ = json.Unmarshal([]byte(dishesJSON), &want)
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("stdout 应为 JSON：%v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("跳过两步时应原样输出 (-want +got):\n%s", diff)
	}
}

func TestEnrich_DashScopeAndLinks(t *testing.T) {
	dir := workdir(t)
	site := searchSite(t)
	t.Setenv("DASHSCOPE_API_KEY", "sk-test")

	var calls atomic.Int32
	model := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		content := `[{"菜名":"酿豆腐","菜系":"客家菜","特色":["酿"],"味道":["鲜"],"用时":"40m","价格":"20"}]`
		_ = json.NewEncoder(w).Encode(map[string]any{
			"output": map[string]any{"choices": []any{map[string]any{"message": map[string]any{"content": content}}}},
		})
	}))
	t.Cleanup(model.Close)

	writeFile(t, filepath.Join(dir, "dishkit.json"), `{"site":{"base_url":"`+site.URL+`"},"http":{"retry_delay_ms":1}}`)
	writeFile(t, filepath.Join(dir, "in.json"), dishesJSON)

	stdout, stderr, err := execute(t, "enrich", "-i", "in.json", "-o", "json", "--base-url", model.URL)
	if err != nil {
		t.Fatalf("不期望错误：%v\n%s", err, stderr)
	}
	var got []domain.Dish
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("stdout 应为 JSON：%v\n%s", err, stdout)
	}
	if calls.Load() != 1 {
		t.Fatalf("两道菜一批，应只调用一次模型，实际 %d", calls.Load())
	}
	if got[0].Cuisine != "客家菜" || got[0].Cost != "20" || got[0].Links["酿豆腐"] != site.URL+"/recipe/1/" || got[0].Cover != "https://i/1.jpg" {
		t.Fatalf("第一道菜补全不正确：%+v", got[0])
	}
	// 模型只返回一个元素：第二道菜的分析字段保持不变；链接齐全也不再搜索。
	if got[1].Cuisine != "家常菜" || got[1].PrepTime != "30m" || got[1].Links["红烧素鸡"] != "https://x/2" {
		t.Fatalf("第二道菜不应变化：%+v", got[1])
	}
}

func TestEnrich_ProviderDefaultModel(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want string
	}{
		{name: "provider_default", want: "gpt-4o"},
		{name: "flag_override", args: []string{"--model", "gpt-4o-mini"}, want: "gpt-4o-mini"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := workdir(t)
			t.Setenv("OPENAI_API_KEY", "sk-test")

			models := make(chan string, 4)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var body struct {
					Model string `json:"model"`
				}
				_ = json.NewDecoder(r.Body).Decode(&body)
				models <- body.Model
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]any{
					"choices": []any{map[string]any{"message": map[string]any{"content": "[]"}}},
				})
			}))
			t.Cleanup(srv.Close)
			writeFile(t, filepath.Join(dir, "in.json"), dishesJSON)

			args := append([]string{"enrich", "-i", "in.json", "-o", "json", "--provider", "openai", "--skip-links", "--base-url", srv.URL}, tc.args...)
			if _, stderr, err := execute(t, args...); err != nil {
				t.Fatalf("不期望错误：%v\n%s", err, stderr)
			}
			close(models)
			var got []string
			for m := range models {
				got = append(got, m)
			}
			if diff := cmp.Diff([]string{tc.want}, got); diff != "" {
				t.Fatalf("发给 openai 的模型名不正确 (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEnrich_InvalidProvider(t *testing.T) {
	workdir(t)
	_, _, err := execute(t, "enrich", "--provider", "nope", "--skip-links")
	if err == nil || !strings.Contains(err.Error(), "llm.provider") {
		t.Fatalf("未知 provider 应报配置错误，实际：%v", err)
	}
}

func TestRoot_InvalidOutput(t *testing.T) {
	workdir(t)
	_, _, err := execute(t, "links", "-o", "xml", "香菇")
	if err == nil || !strings.Contains(err.Error(), "--output") {
		t.Fatalf("非法 --output 应报错，实际：%v", err)
	}
}
