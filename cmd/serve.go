package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shouni/go-story-kit/internal/pipeline"
)

var addrFlag string

// serveCmd は、物語生成を HTTP API として提供するのだ。
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "物語生成の HTTP API を起動するのだ。",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return requireAPIKey(cfg)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if addrFlag != "" {
			cfg.Addr = addrFlag
		}
		return pipeline.Serve(ctx, cfg)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&addrFlag, "addr", "a", "", "待ち受けアドレスなのだ。未指定なら ADDR を使うのだ。")
}
