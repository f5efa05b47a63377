package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/dishkit/internal/report"
	"github.com/John-Robertt/dishkit/internal/seed"
)

func newLinksCmd(env *runtimeEnv) *cobra.Command {
	var (
		input  string
		prefix string
	)

	cmd := &cobra.Command{
		Use:   "links [name...]",
		Short: "按 “前缀+菜名” 搜索菜谱链接",
		Long: `对每个菜名搜索 “前缀+菜名”，取第一条搜索结果的链接。
未找到或网络失败时该菜名对应空字符串，不影响其余菜名。

菜名来源优先级：命令行参数 > --input 文件 > 内置列表。`,
		Example: `  dishkit links
  dishkit links --prefix 凉拌 黄瓜 木耳
  dishkit links --input mushrooms.yaml -o markdown`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := seed.LoadLinks(input)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				in.Names = args
			}
			// 前缀优先级：--prefix > 输入文件 > 配置。
			p := env.cfg.LinkPrefix()
			if in.Prefix != "" && input != "" {
				p = in.Prefix
			}
			if cmd.Flags().Changed("prefix") {
				p = prefix
			}

			w, err := env.writer(cmd)
			if err != nil {
				return err
			}
			s, err := env.searcher()
			if err != nil {
				return err
			}

			results := s.ResolveAll(cmd.Context(), p, in.Names)
			errW := cmd.ErrOrStderr()
			for _, r := range results {
				fmt.Fprintf(errW, "%s: %s\n", r.Keyword, r.Link)
			}
			if err := w.Links(results); err != nil {
				return err
			}
			if w.Format() != report.FormatJSON {
				fmt.Fprintln(cmd.OutOrStdout(), report.LinkMapLine(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "YAML/JSON 输入文件（prefix + names）")
	cmd.Flags().StringVar(&prefix, "prefix", "", "搜索前缀（默认 site.link_prefix）")
	return cmd
}
