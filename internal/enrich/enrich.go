// Package enrich 给菜品补全分析字段（菜系/特色/味道/用时/价格），并补齐菜谱链接与封面。
package enrich

import (
	"context"
	"log/slog"
	"strings"

	"github.com/John-Robertt/dishkit/internal/domain"
	"github.com/John-Robertt/dishkit/internal/llm"
)

const DefaultBatchSize = 10

// LinkResolver 是补链接所需的最小能力；*search.Searcher 满足该接口。
// 实现必须把“未找到/网络失败”降级为空结果，而不是报错。
type LinkResolver interface {
	Resolve(ctx context.Context, keyword string) domain.LinkResult
}

// Enricher 先按批调用模型做分析，再逐道菜补链接与封面。
//
// 失败语义：任何一批的模型调用或解析失败，该批原样透传；不重试，不部分应用。
type Enricher struct {
	Generator llm.Generator
	Resolver  LinkResolver

	Prompt      string
	Model       string
	Temperature float64
	TopP        float64
	BatchSize   int

	// LenientJSON 为 true 时按 JSON5 解析模型返回；默认严格 JSON，解析失败的批次原样透传。
	LenientJSON bool

	SkipLLM   bool
	SkipLinks bool

	Logger *slog.Logger
}

// Run 处理整张菜单，返回新切片；输入不被修改，输出顺序与输入一致。
func (e *Enricher) Run(ctx context.Context, dishes []domain.Dish) []domain.Dish {
	out := domain.CloneDishes(dishes)
	if !e.SkipLLM && e.Generator != nil {
		analyzed := make([]domain.Dish, 0, len(out))
		for _, batch := range Batches(out, e.BatchSize) {
			res, _ := e.AnalyzeBatch(ctx, batch)
			analyzed = append(analyzed, res...)
		}
		out = analyzed
	}
	if !e.SkipLinks && e.Resolver != nil {
		for i := range out {
			out[i] = e.ResolveLinks(ctx, out[i])
		}
	}
	return out
}

// AnalyzeBatch 对一批菜发起一次模型调用。
// 返回值总是可用的：失败时为输入的副本，error 仅用于说明原因。
func (e *Enricher) AnalyzeBatch(ctx context.Context, batch []domain.Dish) ([]domain.Dish, error) {
	log := e.logger()
	names := dishNames(batch)

	model := e.Model
	if model == "" {
		model = e.Generator.DefaultModel()
	}
	content, err := e.Generator.Generate(ctx, llm.Request{
		Model:       model,
		Prompt:      RenderPrompt(e.Prompt, batch),
		Temperature: e.Temperature,
		TopP:        e.TopP,
	})
	if err != nil {
		log.ErrorContext(ctx, "调用大模型失败", "provider", e.Generator.Name(), "dishes", names, "err", err)
		return domain.CloneDishes(batch), err
	}
	content = strings.TrimSpace(content)
	log.DebugContext(ctx, "分析结果", "dishes", names, "content", content)

	parseFn := Parse
	if e.LenientJSON {
		parseFn = ParseLenient
	}
	results, err := parseFn(content)
	if err != nil {
		log.WarnContext(ctx, "解析大模型返回的 JSON 失败", "dishes", names, "err", err)
		return domain.CloneDishes(batch), err
	}
	for _, i := range Misaligned(batch, results) {
		log.WarnContext(ctx, "分析结果可能错位", "index", i, "want", batch[i].Name, "got", results[i].Name)
	}
	if len(results) != len(batch) {
		log.WarnContext(ctx, "分析结果数量与输入不一致", "want", len(batch), "got", len(results))
	}
	return Apply(batch, results), nil
}

// Keywords 返回需要搜索的关键词：链接表非空时按输入顺序取 URL 为空的键，否则取菜名本身。
// 空白键会先被丢弃。
func Keywords(d domain.Dish) (links map[string]string, keywords []string) {
	links = make(map[string]string, len(d.Links))
	var order []string
	for _, k := range d.LinkKeys() {
		if strings.TrimSpace(k) == "" {
			continue
		}
		links[k] = d.Links[k]
		order = append(order, k)
	}
	if len(links) == 0 {
		return links, []string{d.Name}
	}
	for _, k := range order {
		if links[k] == "" {
			keywords = append(keywords, k)
		}
	}
	return links, keywords
}

// ResolveLinks 为一道菜补齐链接；第一个关键词的封面用于填充空的封面字段。
func (e *Enricher) ResolveLinks(ctx context.Context, d domain.Dish) domain.Dish {
	out := d.Clone()
	links, keywords := Keywords(out)
	for i, kw := range keywords {
		r := e.Resolver.Resolve(ctx, kw)
		links[kw] = r.Link
		if i == 0 && out.Cover == "" && r.Cover != "" {
			out.Cover = r.Cover
		}
		e.logger().InfoContext(ctx, "搜索完成", "keyword", kw, "link", r.Link)
	}
	out.Links = links
	return out
}

// Batches 按顺序切分；size<=0 时使用 DefaultBatchSize。子切片与输入共享底层数组。
func Batches(dishes []domain.Dish, size int) [][]domain.Dish {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]domain.Dish
	for start := 0; start < len(dishes); start += size {
		end := start + size
		if end > len(dishes) {
			end = len(dishes)
		}
		out = append(out, dishes[start:end:end])
	}
	return out
}

func dishNames(batch []domain.Dish) []string {
	names := make([]string, 0, len(batch))
	for _, d := range batch {
		names = append(names, d.Name)
	}
	return names
}

func (e *Enricher) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
