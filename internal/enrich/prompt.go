package enrich

import (
	"encoding/json"
	"strings"

	"github.com/John-Robertt/dishkit/internal/domain"
)

const namesPlaceholder = "{dish_names}"

// DefaultPrompt 是批量分析用的提示词；{dish_names} 会被替换为菜名的 JSON 数组。
const DefaultPrompt = `请分析以下菜肴列表，并以严格的 JSON 格式返回结果，返回一个数组，每个元素包含字段：菜名、菜系、特色、味道、用时、价格。

要求：
- 菜名：保持原菜名不变
- 菜系：中国的八大菜系（如川菜、粤菜、鲁菜、苏菜、浙菜、闽菜、湘菜、徽菜）或其他地方知名菜系（如潮汕菜、客家菜等）、家常菜、国外菜系（如意大利菜、日本料理等），若无法判断则为空字符串。
- 特色：指这道菜的独特烹饪方式或关键调料，如豆瓣酱、花雕酒、甜面酱、咖喱等，格式为数组，若无明显特色则为空数组。
- 味道：显著的味型，如微辣、麻、鲜、酱香、酸甜等，格式为数组，若无则为空数组。
- 用时：预估制作时间，单位为分钟，格式为数字加'm'，例如 '30m'，若无法判断则为空字符串。
- 价格：预估家庭制作成本（人民币），不用添加单位，例如 '25'，若无法判断则为空字符串。

只返回一个 JSON 数组，每道菜的数据为数组中的一个map，返回结果的顺序需要与输入的顺序一致，不要任何额外说明。

菜肴列表：{dish_names}`

// RenderPrompt 用批次内的菜名填充模板；模板为空时使用 DefaultPrompt。
func RenderPrompt(tmpl string, batch []domain.Dish) string {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultPrompt
	}
	names := make([]string, 0, len(batch))
	for _, d := range batch {
		names = append(names, d.Name)
	}
	b, _ := json.Marshal(names)
	return strings.ReplaceAll(tmpl, namesPlaceholder, string(b))
}
