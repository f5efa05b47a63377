package llm

import (
	"fmt"
	"sort"
	"strings"
)

// Registry 是 generator 的只读注册表（按 name 索引）。
type Registry struct {
	byName map[string]Generator
}

func NewRegistry(gens ...Generator) (Registry, error) {
	byName := make(map[string]Generator, len(gens))
	for _, g := range gens {
		if g == nil {
			return Registry{}, fmt.Errorf("generator 不能为空")
		}
		name := strings.ToLower(strings.TrimSpace(g.Name()))
		if name == "" {
			return Registry{}, fmt.Errorf("generator.Name 不能为空")
		}
		if _, ok := byName[name]; ok {
			return Registry{}, fmt.Errorf("重复的 generator：%q", name)
		}
		byName[name] = g
	}
	return Registry{byName: byName}, nil
}

// Default 注册全部内置 provider；每个 provider 的 BaseURL 取自 opts（仅对选中的那个有意义）。
func Default(selected string, opts Options) Registry {
	pick := func(name string) Options {
		if strings.EqualFold(strings.TrimSpace(selected), name) {
			return opts
		}
		return Options{Timeout: opts.Timeout, Logger: opts.Logger}
	}
	r, _ := NewRegistry(
		NewDashScope(pick(ProviderDashScope)),
		NewOpenAI(pick(ProviderOpenAI)),
		NewOllama(pick(ProviderOllama)),
		NewGemini(pick(ProviderGemini)),
	)
	return r
}

func (r Registry) Get(name string) (Generator, bool) {
	if r.byName == nil {
		return nil, false
	}
	name = strings.ToLower(strings.TrimSpace(name))
	g, ok := r.byName[name]
	return g, ok
}

// Names 返回排序后的已注册名称。
func (r Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
