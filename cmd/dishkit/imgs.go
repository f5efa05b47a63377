package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/dishkit/internal/imgsync"
	"github.com/John-Robertt/dishkit/internal/report"
)

func newImgsCmd(env *runtimeEnv) *cobra.Command {
	var (
		htmlFile string
		dir      string
		host     string
		param    string
		dryRun   bool
		quiet    bool
	)

	cmd := &cobra.Command{
		Use:   "imgs",
		Short: "按页面引用同步本地缩略图目录",
		Long: `解析页面中 ${img_host}<文件名>${img_param} 形式的图片引用，
下载本地缺失的缩略图，删除页面不再引用的文件（白名单除外）。

重复运行是收敛的：输入不变时第二次运行不会再下载或删除。`,
		Example: `  # 使用默认的 index.html 与 imgs/
  dishkit imgs

  # 只看计划，不下载不删除
  dishkit imgs --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := &env.cfg
			if cmd.Flags().Changed("html") {
				cfg.Images.HTMLFile = htmlFile
			}
			if cmd.Flags().Changed("dir") {
				cfg.Images.Dir = dir
			}
			if cmd.Flags().Changed("host") {
				cfg.Images.Host = host
			}
			if cmd.Flags().Changed("param") {
				cfg.Images.Param = &param
			}
			if err := env.revalidate(); err != nil {
				return err
			}

			w, err := env.writer(cmd)
			if err != nil {
				return err
			}

			s := &imgsync.Syncer{
				Fetcher:   env.httpClient(cfg.ImageRetryMax(), ""),
				Pattern:   imgsync.DefaultPattern(),
				Dir:       filepath.Clean(cfg.Images.Dir),
				Host:      cfg.Images.Host,
				Param:     cfg.ImageParam(),
				AllowList: cfg.Images.AllowList,
				DryRun:    dryRun,
				Logger:    env.log,
			}
			if !quiet {
				s.Observer = &progressLines{w: cmd.ErrOrStderr()}
			}

			rr, err := s.SyncFile(cmd.Context(), cfg.Images.HTMLFile)
			if err != nil {
				return err
			}
			if err := w.Sync(rr); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "\n%s\n", report.SyncSummaryLine(rr))
			return nil
		},
	}

	cmd.Flags().StringVar(&htmlFile, "html", "", "页面文件（默认 images.html_file）")
	cmd.Flags().StringVar(&dir, "dir", "", "本地图片目录（默认 images.dir）")
	cmd.Flags().StringVar(&host, "host", "", "图床地址（默认 images.host）")
	cmd.Flags().StringVar(&param, "param", "", "缩略图参数（默认 images.param）")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "只输出计划，不下载不删除")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "不输出逐条进度")
	return cmd
}
