package logx

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func decodeLine(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(b), &m); err != nil {
		t.Fatalf("日志不是合法 JSON：%v\n%s", err, b)
	}
	return m
}

func TestSecureHandler_RedactsKeysAndValues(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, Options{Format: FormatJSON})

	log.Info("req",
		"Authorization", "Bearer abc",
		"keyword", "清炒香菇",
		"header", "Bearer xyz",
		"dashscope_key", "sk-0123456789abcdef0123",
		slog.Group("llm", slog.String("api_key", "k"), slog.String("model", "qwen-plus")),
	)
	m := decodeLine(t, buf.Bytes())

	for _, k := range []string{"Authorization", "header", "dashscope_key"} {
		if m[k] != MaskValue {
			t.Fatalf("%s 应被脱敏，实际=%v", k, m[k])
		}
	}
	if m["keyword"] != "清炒香菇" {
		t.Fatalf("普通字段不应被脱敏：%v", m["keyword"])
	}
	g := m["llm"].(map[string]any)
	if g["api_key"] != MaskValue || g["model"] != "qwen-plus" {
		t.Fatalf("group 内字段处理不正确：%v", g)
	}
}

func TestSecureHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, Options{Format: FormatJSON}).With("token", "t1", "provider", "dashscope")
	log.Info("x")
	m := decodeLine(t, buf.Bytes())
	if m["token"] != MaskValue || m["provider"] != "dashscope" {
		t.Fatalf("With 属性处理不正确：%v", m)
	}
}

func TestNew_Levels(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, Options{Format: FormatText, NoColor: true}).Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("非 verbose 不应输出 debug：%q", buf.String())
	}
	New(&buf, Options{Format: FormatText, NoColor: true, Verbose: true}).Debug("shown", "n", 1)
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("verbose 应输出 debug：%q", buf.String())
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Fatalf("默认应为 text：%q %v", f, err)
	}
	if f, err := ParseFormat("JSON"); err != nil || f != FormatJSON {
		t.Fatalf("应接受大小写：%q %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatalf("未知格式应报错")
	}
}
