package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/dishkit/internal/imgproxy"
)

func newServeCmd(env *runtimeEnv) *cobra.Command {
	var (
		port      string
		imageHost string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动图床防盗链代理",
		Long: `GET /proxy-image/<path> 会带上图床要求的 Referer 转发到 <image_host><path>，
成功时附带长缓存与跨域头；/healthcheck 返回 OK。`,
		Example: `  dishkit serve
  dishkit serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := &env.cfg
			if cmd.Flags().Changed("port") {
				cfg.Serve.Port = port
			}
			if cmd.Flags().Changed("image-host") {
				cfg.Serve.ImageHost = imageHost
			}
			if err := env.revalidate(); err != nil {
				return err
			}

			p := &imgproxy.Proxy{
				// 代理流式转发：不用 httpx 的重试与整包读取，只复用其传输层超时。
				Client: env.httpClient(0, "").HTTP,
				Host:   cfg.Serve.ImageHost,
				Prefix: cfg.Serve.Prefix,
				Logger: env.log,
			}

			addr := net.JoinHostPort("", cfg.Serve.Port)
			server := &http.Server{
				Addr:              addr,
				Handler:           imgproxy.NewMux(p),
				ReadHeaderTimeout: 10 * time.Second,
			}
			return serve(cmd.Context(), server, env)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "监听端口（默认 serve.port）")
	cmd.Flags().StringVar(&imageHost, "image-host", "", "图床地址（默认 serve.image_host）")
	return cmd
}

// serve 阻塞直到 ctx 取消（Ctrl+C）或服务出错；取消时优雅关闭。
func serve(ctx context.Context, server *http.Server, env *runtimeEnv) error {
	log := env.log
	serverErr := make(chan error, 1)
	go func() {
		log.Info("图片代理已启动", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("正在关闭图片代理...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("关闭图片代理失败", "err", err)
			return err
		}
		log.Info("图片代理已停止")
		return nil
	case err := <-serverErr:
		return err
	}
}
