package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/dishkit/internal/enrich"
	"github.com/John-Robertt/dishkit/internal/llm"
	"github.com/John-Robertt/dishkit/internal/seed"
)

func newEnrichCmd(env *runtimeEnv) *cobra.Command {
	var (
		input      string
		provider   string
		model      string
		baseURL    string
		batchSize  int
		promptFile string
		skipLLM    bool
		skipLinks  bool
	)

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "调用大模型补全菜品信息，并补齐链接与封面",
		Long: `第一步：按批（默认 10 道一批）调用一次大模型，补全菜系/特色/味道/用时/价格。
某一批调用失败或返回内容无法解析时，这一批原样保留，不重试。

第二步：为每道菜补齐链接。链接表为空时搜索菜名本身，否则只搜索链接为空的关键词；
第一个关键词的搜索封面用于填充空的图片字段。

API Key 从环境变量读取（支持 .env）：DASHSCOPE_API_KEY / OPENAI_API_KEY / GEMINI_API_KEY；
ollama 读取 OLLAMA_URL。`,
		Example: `  dishkit enrich
  dishkit enrich --input dishes.yaml --provider openai --model gpt-4o-mini
  dishkit enrich --skip-llm -o markdown`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := &env.cfg
			if cmd.Flags().Changed("provider") {
				cfg.LLM.Provider = provider
			}
			if cmd.Flags().Changed("model") {
				cfg.LLM.Model = model
			}
			if cmd.Flags().Changed("base-url") {
				cfg.LLM.BaseURL = baseURL
			}
			if cmd.Flags().Changed("batch-size") {
				cfg.LLM.BatchSize = batchSize
			}
			if err := env.revalidate(); err != nil {
				return err
			}

			dishes, err := seed.LoadDishes(input)
			if err != nil {
				return err
			}
			w, err := env.writer(cmd)
			if err != nil {
				return err
			}

			e := &enrich.Enricher{
				Model:       cfg.LLM.Model,
				Temperature: cfg.Temperature(),
				TopP:        cfg.TopP(),
				BatchSize:   cfg.LLM.BatchSize,
				LenientJSON: cfg.LLM.LenientJSON,
				SkipLLM:     skipLLM,
				SkipLinks:   skipLinks,
				Logger:      env.log,
			}
			if promptFile != "" {
				p, err := readPrompt(promptFile)
				if err != nil {
					return err
				}
				e.Prompt = p
			}
			if !skipLLM {
				reg := llm.Default(cfg.LLM.Provider, llm.Options{
					BaseURL: cfg.LLM.BaseURL,
					Timeout: cfg.LLMTimeout(),
					Logger:  env.log,
				})
				g, ok := reg.Get(cfg.LLM.Provider)
				if !ok {
					return fmt.Errorf("未知的 provider：%q", cfg.LLM.Provider)
				}
				e.Generator = g
			}
			if !skipLinks {
				s, err := env.searcher()
				if err != nil {
					return err
				}
				e.Resolver = s
			}

			out := e.Run(cmd.Context(), dishes)
			// 被中断时不输出残缺结果。
			if err := cmd.Context().Err(); err != nil {
				return err
			}
			return w.Dishes(out)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "YAML/JSON 菜单文件（默认使用内置菜单）")
	cmd.Flags().StringVar(&provider, "provider", "", "模型提供方：dashscope|openai|ollama|gemini（默认 llm.provider）")
	cmd.Flags().StringVar(&model, "model", "", "模型名（默认 llm.model）")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "模型 API 地址（默认官方地址）")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "每次调用分析的菜数（默认 llm.batch_size）")
	cmd.Flags().StringVar(&promptFile, "prompt", "", "自定义提示词文件（{dish_names} 会被替换为菜名数组）")
	cmd.Flags().BoolVar(&skipLLM, "skip-llm", false, "跳过大模型分析")
	cmd.Flags().BoolVar(&skipLinks, "skip-links", false, "跳过链接与封面搜索")
	return cmd
}

func readPrompt(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("读取提示词文件失败：%w", err)
	}
	return string(b), nil
}
