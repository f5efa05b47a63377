// Package seed 提供内置的默认输入，并负责从文件加载自定义输入。
//
// 文件格式：YAML 或 JSON（JSON 是 YAML 的子集，统一用 yaml.v3 解码）。
package seed

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/dishkit/internal/domain"
)

//go:embed dishes.yaml
var dishesYAML []byte

//go:embed links.yaml
var linksYAML []byte

// LinkSeed 是 links 命令的输入：对每个 name 搜索 Prefix+name。
type LinkSeed struct {
	Prefix string   `yaml:"prefix" json:"prefix"`
	Names  []string `yaml:"names" json:"names"`
}

// Dishes 返回内置菜单的一份新副本。
func Dishes() []domain.Dish {
	ds, err := DecodeDishes(bytes.NewReader(dishesYAML))
	if err != nil {
		panic(fmt.Sprintf("内置 dishes.yaml 无效：%v", err))
	}
	return ds
}

// Links 返回内置的链接搜索输入。
func Links() LinkSeed {
	s, err := DecodeLinks(bytes.NewReader(linksYAML))
	if err != nil {
		panic(fmt.Sprintf("内置 links.yaml 无效：%v", err))
	}
	return s
}

// LoadDishes 从文件读取菜单；path 为空时返回内置菜单。
func LoadDishes(path string) ([]domain.Dish, error) {
	if strings.TrimSpace(path) == "" {
		return Dishes(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ds, err := DecodeDishes(f)
	if err != nil {
		return nil, fmt.Errorf("解析菜单文件 %q 失败：%w", path, err)
	}
	return ds, nil
}

// LoadLinks 从文件读取链接搜索输入；path 为空时返回内置输入。
func LoadLinks(path string) (LinkSeed, error) {
	if strings.TrimSpace(path) == "" {
		return Links(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return LinkSeed{}, err
	}
	defer f.Close()
	s, err := DecodeLinks(f)
	if err != nil {
		return LinkSeed{}, fmt.Errorf("解析链接输入 %q 失败：%w", path, err)
	}
	return s, nil
}

// DecodeDishes 解码菜单并补齐 nil 字段（输出 JSON 时保持 [] 与 {} 而不是 null）。
//
// 先解码为 yaml.Node，以便记下每道菜 链接 的键顺序。
func DecodeDishes(r io.Reader) ([]domain.Dish, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return []domain.Dish{}, nil
		}
		return nil, err
	}
	var ds []domain.Dish
	if err := doc.Decode(&ds); err != nil {
		return nil, err
	}
	orders := linkOrders(&doc)
	for i := range ds {
		if strings.TrimSpace(ds[i].Name) == "" {
			return nil, fmt.Errorf("第 %d 道菜缺少菜名", i+1)
		}
		if i < len(orders) {
			ds[i].LinkOrder = orders[i]
		}
		normalize(&ds[i])
	}
	if ds == nil {
		ds = []domain.Dish{}
	}
	return ds, nil
}

// linkOrders 按菜单顺序返回每道菜 链接 映射里键的出现顺序。
func linkOrders(doc *yaml.Node) [][]string {
	root := doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.SequenceNode {
		return nil
	}
	out := make([][]string, 0, len(root.Content))
	for _, item := range root.Content {
		var keys []string
		if item.Kind == yaml.MappingNode {
			for i := 0; i+1 < len(item.Content); i += 2 {
				k, v := item.Content[i], item.Content[i+1]
				if k.Value != "链接" || v.Kind != yaml.MappingNode {
					continue
				}
				for j := 0; j+1 < len(v.Content); j += 2 {
					keys = append(keys, v.Content[j].Value)
				}
			}
		}
		out = append(out, keys)
	}
	return out
}

// DecodeLinks 解码链接搜索输入；names 不能为空。
func DecodeLinks(r io.Reader) (LinkSeed, error) {
	var s LinkSeed
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return LinkSeed{}, err
	}
	names := s.Names[:0]
	for _, n := range s.Names {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	s.Names = names
	if len(s.Names) == 0 {
		return LinkSeed{}, errors.New("names 不能为空")
	}
	return s, nil
}

func normalize(d *domain.Dish) {
	if d.Characteristics == nil {
		d.Characteristics = []string{}
	}
	if d.Flavors == nil {
		d.Flavors = []string{}
	}
	if d.Links == nil {
		d.Links = map[string]string{}
	}
}
