package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/adrg/xdg"
	"github.com/titanous/json5"
)

const (
	// ErrCodeNotFound 表示显式指定的配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	// AppName 用于 XDG 配置目录：$XDG_CONFIG_HOME/dishkit/。
	AppName = "dishkit"
	// FileName 是配置文件名（允许 JSON5：注释、尾逗号）。
	FileName = "dishkit.json"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultBaseURL   = "https://www.xiachufang.com"
	DefaultImageHost = "https://i2.chuimg.com/"
	// DefaultImageParam 让图床返回 150x150 的缩略图（七牛 imageView2 语法）。
	DefaultImageParam = "?imageView2/1/w/150/h/150/interlace/1/q/75"
	DefaultProvider   = "dashscope"
	DefaultBatchSize  = 10
	DefaultPort       = "8787"
)

// Config 是所有子命令共用的显式配置对象（取代脚本里的全局常量）。
//
// 覆盖优先级（固定）：CLI flag > 配置文件 > 内置默认值。
// 指针字段表示“0 或空串也是合法值”，nil 才会回落到默认值。
type Config struct {
	HTTP   HTTPConfig   `json:"http"`
	Site   SiteConfig   `json:"site"`
	Images ImagesConfig `json:"images"`
	LLM    LLMConfig    `json:"llm"`
	Serve  ServeConfig  `json:"serve"`
}

type HTTPConfig struct {
	TimeoutMS    int    `json:"timeout_ms"`
	RetryMax     *int   `json:"retry_max"`
	RetryDelayMS *int   `json:"retry_delay_ms"`
	UserAgent    string `json:"user_agent"`
}

type SiteConfig struct {
	BaseURL    string `json:"base_url"`
	SearchPath string `json:"search_path"`
	// LinkPrefix 是 links 子命令拼在菜名前的搜索前缀（例如 “清炒”）。
	LinkPrefix *string `json:"link_prefix"`
}

type ImagesConfig struct {
	Host      string   `json:"host"`
	Param     *string  `json:"param"`
	HTMLFile  string   `json:"html_file"`
	Dir       string   `json:"dir"`
	AllowList []string `json:"allow_list"`
	// RetryMax 单独控制图片下载的重试（原脚本图片只下载一次）。
	RetryMax *int `json:"retry_max"`
}

type LLMConfig struct {
	Provider string `json:"provider"`
	// Model 为空时使用所选 provider 的默认模型。
	Model       string   `json:"model"`
	BaseURL     string   `json:"base_url"`
	Temperature *float64 `json:"temperature"`
	TopP        *float64 `json:"top_p"`
	BatchSize   int      `json:"batch_size"`
	TimeoutMS   int      `json:"timeout_ms"`
	// LenientJSON 为 true 时按 JSON5 解析模型返回（容忍单引号、尾逗号）。
	LenientJSON bool `json:"lenient_json"`
}

type ServeConfig struct {
	Port      string `json:"port"`
	ImageHost string `json:"image_host"`
	Prefix    string `json:"prefix"`
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Defaults 返回内置默认配置（与原脚本中的常量一致）。
func Defaults() Config {
	return Config{
		HTTP: HTTPConfig{
			TimeoutMS:    10_000,
			RetryMax:     intPtr(2),
			RetryDelayMS: intPtr(500),
			UserAgent:    DefaultUserAgent,
		},
		Site: SiteConfig{
			BaseURL:    DefaultBaseURL,
			SearchPath: "/search/?keyword=",
			LinkPrefix: strPtr("清炒"),
		},
		Images: ImagesConfig{
			Host:      DefaultImageHost,
			Param:     strPtr(DefaultImageParam),
			HTMLFile:  "index.html",
			Dir:       "imgs",
			AllowList: []string{"preview.png"},
			RetryMax:  intPtr(0),
		},
		LLM: LLMConfig{
			Provider:    DefaultProvider,
			Temperature: floatPtr(0.3),
			TopP:        floatPtr(0.8),
			BatchSize:   DefaultBatchSize,
			TimeoutMS:   120_000,
		},
		Serve: ServeConfig{
			Port:      DefaultPort,
			ImageHost: DefaultImageHost,
			Prefix:    "/proxy-image/",
		},
	}
}

// Load 发现并读取配置文件，与默认值合并并校验。
//
// 发现规则（固定）：
// 1) explicit 非空：必须存在，否则 config_not_found
// 2) 否则依次尝试 <cwd>/dishkit.json、$XDG_CONFIG_HOME/dishkit/dishkit.json（均可选）
//
// 返回值 path 为实际读取的配置文件；全部不存在时为空串（直接使用默认值）。
func Load(cwd, explicit string) (cfg Config, path string, err error) {
	var fc Config
	if strings.TrimSpace(explicit) != "" {
		path = absCleanFrom(cwd, explicit)
		var exists bool
		fc, exists, err = readFileConfig(path)
		if err != nil {
			return Config{}, path, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
		}
		if !exists {
			return Config{}, path, &Error{Code: ErrCodeNotFound, Path: path, Err: os.ErrNotExist}
		}
	} else {
		for _, dir := range searchDirs(cwd) {
			p := filepath.Join(dir, FileName)
			c, exists, e := readFileConfig(p)
			if e != nil {
				return Config{}, p, &Error{Code: ErrCodeInvalid, Path: p, Err: e}
			}
			if exists {
				fc, path = c, p
				break
			}
		}
	}

	cfg, err = merge(fc)
	if err != nil {
		return Config{}, path, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, path, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}
	return cfg, path, nil
}

func searchDirs(cwd string) []string {
	dirs := []string{filepath.Clean(cwd)}
	if xdg.ConfigHome != "" {
		dirs = append(dirs, filepath.Join(xdg.ConfigHome, AppName))
	}
	return dirs
}

// merge 用默认值补齐文件配置中的零值字段。
// WithoutDereference：非 nil 指针视为“已显式设置”，不再深入比较其指向的零值。
func merge(fc Config) (Config, error) {
	if err := mergo.Merge(&fc, Defaults(), mergo.WithoutDereference); err != nil {
		return Config{}, err
	}
	return fc, nil
}

// Validate 校验合并后的配置；调用方在 CLI 覆盖后应再调用一次。
func (c *Config) Validate() error {
	if err := validateHTTPURL("site.base_url", c.Site.BaseURL); err != nil {
		return err
	}
	if err := validateHTTPURL("images.host", c.Images.Host); err != nil {
		return err
	}
	if err := validateHTTPURL("serve.image_host", c.Serve.ImageHost); err != nil {
		return err
	}
	if c.HTTP.TimeoutMS <= 0 {
		return fmt.Errorf("http.timeout_ms 必须为正数，实际是 %d", c.HTTP.TimeoutMS)
	}
	if c.HTTPRetryDelay() < 0 {
		return fmt.Errorf("http.retry_delay_ms 不能为负数，实际是 %d", *c.HTTP.RetryDelayMS)
	}
	if r := c.HTTPRetryMax(); r < 0 || r > 10 {
		return fmt.Errorf("http.retry_max 范围为 [0, 10]，实际是 %d", r)
	}
	if r := c.ImageRetryMax(); r < 0 || r > 10 {
		return fmt.Errorf("images.retry_max 范围为 [0, 10]，实际是 %d", r)
	}
	if strings.TrimSpace(c.Images.Dir) == "" {
		return errors.New("images.dir 不能为空")
	}
	for _, name := range c.Images.AllowList {
		if strings.TrimSpace(name) == "" || strings.Contains(name, "..") {
			return fmt.Errorf("images.allow_list 含非法文件名：%q", name)
		}
	}
	if !strings.HasPrefix(c.Serve.Prefix, "/") || !strings.HasSuffix(c.Serve.Prefix, "/") {
		return fmt.Errorf("serve.prefix 必须以 / 开头和结尾，实际是 %q", c.Serve.Prefix)
	}

	// 批大小：范围建议 [1, 50]；超出截断。
	if c.LLM.BatchSize < 1 {
		c.LLM.BatchSize = 1
	}
	if c.LLM.BatchSize > 50 {
		c.LLM.BatchSize = 50
	}
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	switch c.LLM.Provider {
	case "dashscope", "openai", "ollama", "gemini":
	case "":
		return errors.New("llm.provider 不能为空")
	default:
		return fmt.Errorf("llm.provider 只能是 dashscope/openai/ollama/gemini，实际是 %q", c.LLM.Provider)
	}
	if c.LLM.BaseURL != "" {
		if err := validateHTTPURL("llm.base_url", c.LLM.BaseURL); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutMS) * time.Millisecond
}

func (c Config) HTTPRetryDelay() time.Duration {
	if c.HTTP.RetryDelayMS == nil {
		return 0
	}
	return time.Duration(*c.HTTP.RetryDelayMS) * time.Millisecond
}

func (c Config) HTTPRetryMax() int {
	if c.HTTP.RetryMax == nil {
		return 0
	}
	return *c.HTTP.RetryMax
}

func (c Config) ImageRetryMax() int {
	if c.Images.RetryMax == nil {
		return 0
	}
	return *c.Images.RetryMax
}

func (c Config) LLMTimeout() time.Duration { return time.Duration(c.LLM.TimeoutMS) * time.Millisecond }

func (c Config) Temperature() float64 {
	if c.LLM.Temperature == nil {
		return 0
	}
	return *c.LLM.Temperature
}

func (c Config) TopP() float64 {
	if c.LLM.TopP == nil {
		return 0
	}
	return *c.LLM.TopP
}

// LinkPrefix 返回 links 的搜索前缀；显式配置为空串表示不加前缀。
func (c Config) LinkPrefix() string {
	if c.Site.LinkPrefix == nil {
		return ""
	}
	return *c.Site.LinkPrefix
}

// ImageParam 返回缩略图参数；显式配置为空串表示下载原图。
func (c Config) ImageParam() string {
	if c.Images.Param == nil {
		return ""
	}
	return *c.Images.Param
}

// SearchURL 返回搜索入口（不含 keyword），例如 https://www.xiachufang.com/search/?keyword=
func (c Config) SearchURL() string {
	return strings.TrimRight(c.Site.BaseURL, "/") + c.Site.SearchPath
}

func validateHTTPURL(field, raw string) error {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s 无效：%q", field, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s 必须是 http/https：%q", field, raw)
	}
	return nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON5 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc Config, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, false, nil
		}
		return Config{}, false, err
	}
	if err := json5.Unmarshal(b, &fc); err != nil {
		return Config{}, true, err
	}
	return fc, true, nil
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }
