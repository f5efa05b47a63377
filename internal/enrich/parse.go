package enrich

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/titanous/json5"

	"github.com/John-Robertt/dishkit/internal/domain"
)

// FormatError 表示模型返回的内容无法解析为预期的 JSON 数组。
type FormatError struct {
	Reason  string
	Content string
	Err     error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("解析大模型返回的 JSON 失败：%s：%v", e.Reason, e.Err)
	}
	return fmt.Sprintf("解析大模型返回的 JSON 失败：%s", e.Reason)
}

func (e *FormatError) Unwrap() error { return e.Err }

// IsFormatError 判断 err 是否为 *FormatError。
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// Analysis 是模型对单道菜给出的分析结果。
type Analysis struct {
	Name            string
	Cuisine         string
	Characteristics []string
	Flavors         []string
	PrepTime        string
	Cost            string
}

// ExtractJSONArray 截取第一个 '[' 到最后一个 ']' 之间（含）的文本。
func ExtractJSONArray(content string) (string, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start == -1 || end == -1 || end < start {
		return "", &FormatError{Reason: "未找到 JSON 数组", Content: content}
	}
	return content[start : end+1], nil
}

// Parse 把模型返回的文本按严格 JSON 解析为分析结果；单引号、尾逗号等都算格式错误。
//
// 字段类型宽松处理：数字会被格式化为字符串；单个字符串会被包成数组。
func Parse(content string) ([]Analysis, error) {
	return parse(content, json.Unmarshal)
}

// ParseLenient 与 Parse 相同，但按 JSON5 解析（容忍注释、单引号与尾逗号）。
func ParseLenient(content string) ([]Analysis, error) {
	return parse(content, json5.Unmarshal)
}

func parse(content string, unmarshal func([]byte, any) error) ([]Analysis, error) {
	raw, err := ExtractJSONArray(content)
	if err != nil {
		return nil, err
	}
	var items []map[string]any
	if err := unmarshal([]byte(raw), &items); err != nil {
		return nil, &FormatError{Reason: "JSON 语法错误", Content: content, Err: err}
	}
	out := make([]Analysis, 0, len(items))
	for _, m := range items {
		out = append(out, Analysis{
			Name:            asString(m["菜名"]),
			Cuisine:         strings.TrimSpace(asString(m["菜系"])),
			Characteristics: asStrings(m["特色"]),
			Flavors:         asStrings(m["味道"]),
			PrepTime:        asString(m["用时"]),
			Cost:            asString(m["价格"]),
		})
	}
	return out, nil
}

// Apply 按位置把结果合并回批次：第 i 个结果更新第 i 道菜；多出的结果丢弃，缺少结果的菜保持不变。
// 返回新切片，batch 本身不被修改。
func Apply(batch []domain.Dish, results []Analysis) []domain.Dish {
	out := domain.CloneDishes(batch)
	for i := range out {
		if i >= len(results) {
			break
		}
		r := results[i]
		out[i].Cuisine = r.Cuisine
		out[i].Characteristics = r.Characteristics
		out[i].Flavors = r.Flavors
		out[i].PrepTime = r.PrepTime
		out[i].Cost = r.Cost
	}
	return out
}

// MisalignThreshold 低于该相似度时认为结果与输入可能错位。
const MisalignThreshold = 0.7

// Misaligned 返回结果菜名与输入菜名相似度过低的位置（结果未给出菜名时不判断）。
// 只用于告警：Apply 仍然按位置合并。
func Misaligned(batch []domain.Dish, results []Analysis) []int {
	var idx []int
	for i := 0; i < len(batch) && i < len(results); i++ {
		got := strings.TrimSpace(results[i].Name)
		if got == "" {
			continue
		}
		if matchr.JaroWinkler(batch[i].Name, got, false) < MisalignThreshold {
			idx = append(idx, i)
		}
	}
	return idx
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func asStrings(v any) []string {
	switch t := v.(type) {
	case nil:
		return []string{}
	case []any:
		out := make([]string, 0, len(t))
		for _, x := range t {
			if s := strings.TrimSpace(asString(x)); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		if s := strings.TrimSpace(asString(t)); s != "" {
			return []string{s}
		}
		return []string{}
	}
}
