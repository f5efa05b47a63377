package domain

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Dish 是菜谱列表中的一条记录。
//
// JSON/YAML 字段名沿用静态页面使用的中文 key，输出可以直接粘贴回页面数据。
type Dish struct {
	Name            string            `json:"菜名" yaml:"菜名"`
	Cuisine         string            `json:"菜系" yaml:"菜系"`
	Characteristics []string          `json:"特色" yaml:"特色"`
	Flavors         []string          `json:"味道" yaml:"味道"`
	PrepTime        string            `json:"用时" yaml:"用时"`
	Cost            string            `json:"价格,omitempty" yaml:"价格,omitempty"`
	Links           map[string]string `json:"链接" yaml:"链接"`
	Cover           string            `json:"图片" yaml:"图片"`

	// LinkOrder 记录输入文件里链接键的先后顺序（map 本身无序）。
	// 为空时按键的字典序处理。
	LinkOrder []string `json:"-" yaml:"-"`
}

// LinkKeys 按 LinkOrder 返回 Links 的键；LinkOrder 未覆盖的键按字典序追加在后面。
func (d Dish) LinkKeys() []string {
	keys := make([]string, 0, len(d.Links))
	seen := make(map[string]struct{}, len(d.Links))
	for _, k := range d.LinkOrder {
		if _, ok := d.Links[k]; !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	var rest []string
	for k := range d.Links {
		if _, ok := seen[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// MarshalJSON 让 链接 按 LinkKeys 的顺序输出，其余字段与结构体标签一致。
func (d Dish) MarshalJSON() ([]byte, error) {
	type plain Dish
	out := struct {
		plain
		Links orderedLinks `json:"链接"`
	}{plain: plain(d), Links: orderedLinks{m: d.Links, keys: d.LinkKeys()}}
	return marshalNoEscape(out)
}

// marshalNoEscape 与 json.Marshal 相同，但不转义 HTML 字符（URL 里的 & 保持原样）。
func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

type orderedLinks struct {
	m    map[string]string
	keys []string
}

func (o orderedLinks) MarshalJSON() ([]byte, error) {
	if o.m == nil {
		return []byte("null"), nil
	}
	out := []byte{'{'}
	for i, k := range o.keys {
		if i > 0 {
			out = append(out, ',')
		}
		kb, err := marshalNoEscape(k)
		if err != nil {
			return nil, err
		}
		vb, err := marshalNoEscape(o.m[k])
		if err != nil {
			return nil, err
		}
		out = append(out, kb...)
		out = append(out, ':')
		out = append(out, vb...)
	}
	return append(out, '}'), nil
}

// Clone 深拷贝 slice 与 map，保证批处理“原样透传”时调用方持有的记录不被修改。
func (d Dish) Clone() Dish {
	out := d
	if d.Characteristics != nil {
		out.Characteristics = append([]string{}, d.Characteristics...)
	}
	if d.Flavors != nil {
		out.Flavors = append([]string{}, d.Flavors...)
	}
	if d.LinkOrder != nil {
		out.LinkOrder = append([]string{}, d.LinkOrder...)
	}
	if d.Links != nil {
		out.Links = make(map[string]string, len(d.Links))
		for k, v := range d.Links {
			out.Links[k] = v
		}
	}
	return out
}

// CloneDishes 逐条 Clone。
func CloneDishes(in []Dish) []Dish {
	if in == nil {
		return nil
	}
	out := make([]Dish, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

// LinkResult 是一次“菜名 -> 首个菜谱”搜索的结果；未找到时 Link/Cover 为空串。
type LinkResult struct {
	Keyword string `json:"keyword"`
	Link    string `json:"link"`
	Cover   string `json:"cover,omitempty"`
}
