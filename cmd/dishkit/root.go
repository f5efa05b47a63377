package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/dishkit/internal/config"
	"github.com/John-Robertt/dishkit/internal/infra/httpx"
	"github.com/John-Robertt/dishkit/internal/infra/logx"
	"github.com/John-Robertt/dishkit/internal/report"
	"github.com/John-Robertt/dishkit/internal/search"
)

// runtimeEnv 由 root 的 PersistentPreRunE 填充，子命令共享。
type runtimeEnv struct {
	configPath string
	verbose    bool
	logFormat  string
	output     string

	cfg     config.Config
	cfgFile string
	log     *slog.Logger
}

func newRootCmd() *cobra.Command {
	env := &runtimeEnv{}

	cmd := &cobra.Command{
		Use:   "dishkit",
		Short: "菜谱静态页的数据维护工具",
		Long: `dishkit 维护菜谱静态页背后的数据：

  imgs    按页面引用同步本地缩略图目录（缺的下载、多的删除）
  links   按 “前缀+菜名” 搜索菜谱链接
  enrich  调用大模型补全菜系/特色/味道/用时/价格，并补齐链接与封面
  serve   启动图床防盗链代理

配置文件 dishkit.json（允许注释与尾逗号）依次在当前目录与 $XDG_CONFIG_HOME/dishkit/ 查找；
命令行参数优先于配置文件，配置文件优先于内置默认值。`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env 可选（API Key 等），读取失败忽略。
			_ = godotenv.Load()
			return env.init(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&env.configPath, "config", "c", "", "配置文件路径（默认按发现规则查找）")
	cmd.PersistentFlags().BoolVarP(&env.verbose, "verbose", "v", false, "输出 debug 日志")
	cmd.PersistentFlags().StringVar(&env.logFormat, "log-format", logx.FormatText, "日志格式：text|json")
	cmd.PersistentFlags().StringVarP(&env.output, "output", "o", "", "结果格式：json|table|markdown（默认：终端为 table，否则 json）")

	cmd.AddCommand(newImgsCmd(env))
	cmd.AddCommand(newLinksCmd(env))
	cmd.AddCommand(newEnrichCmd(env))
	cmd.AddCommand(newServeCmd(env))
	return cmd
}

func (e *runtimeEnv) init(cmd *cobra.Command) error {
	format, err := logx.ParseFormat(e.logFormat)
	if err != nil {
		return err
	}
	errW := cmd.ErrOrStderr()
	e.log = logx.New(errW, logx.Options{Verbose: e.verbose, Format: format, NoColor: !isTTYWriter(errW)})
	slog.SetDefault(e.log)

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("读取当前目录失败：%w", err)
	}
	cfg, path, err := config.Load(cwd, e.configPath)
	if err != nil {
		return err
	}
	e.cfg, e.cfgFile = cfg, path
	if path != "" {
		e.log.Debug("已读取配置文件", "path", path)
	}
	return nil
}

// writer 按 --output 选择输出格式；未指定时终端用 table，管道/文件用 json。
func (e *runtimeEnv) writer(cmd *cobra.Command) (*report.Writer, error) {
	out := cmd.OutOrStdout()
	def := report.FormatJSON
	if isTTYWriter(out) {
		def = report.FormatTable
	}
	f, err := report.ParseFormat(e.output, def)
	if err != nil {
		return nil, err
	}
	return report.NewWriter(out, f), nil
}

// revalidate 在 flag 覆盖后再次校验配置。
func (e *runtimeEnv) revalidate() error {
	if err := e.cfg.Validate(); err != nil {
		return &config.Error{Code: config.ErrCodeInvalid, Path: e.cfgFile, Err: err}
	}
	return nil
}

func (e *runtimeEnv) httpClient(retryMax int, referer string) *httpx.Client {
	c := httpx.New(httpx.Options{
		Timeout:    e.cfg.HTTPTimeout(),
		RetryMax:   retryMax,
		RetryDelay: e.cfg.HTTPRetryDelay(),
		UserAgent:  e.cfg.HTTP.UserAgent,
		Referer:    referer,
	})
	c.Logger = e.log
	return c
}

func (e *runtimeEnv) searcher() (*search.Searcher, error) {
	s, err := search.New(e.httpClient(e.cfg.HTTPRetryMax(), ""), e.cfg.Site.BaseURL, e.cfg.SearchURL())
	if err != nil {
		return nil, err
	}
	s.Logger = e.log
	return s, nil
}

func isTTYWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isTTY(f)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
