package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shouni/go-story-kit/internal/config"
	"github.com/shouni/go-story-kit/internal/pipeline"
)

// generateCmd は、物語の本文・挿絵・読み上げ音声を生成して書き出すのだ。
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "AIに挿絵と読み上げ付きの物語を生成させますなのだ。",
	Long: `指定した内容から物語の本文を生成し、ページごとに挿絵と読み上げ音声を作るのだ。
出力は Markdown・HTML・JSON の3つのファイルになるのだよ。`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return requireAPIKey(cfg)
	},
	RunE: generateCommand,
}

func init() {
	f := generateCmd.Flags()
	f.StringVarP(&opts.Prompt, "prompt", "p", "", "物語の内容なのだ。")
	f.StringVarP(&opts.Length, "length", "l", "short", "物語の長さ（short / medium / long）なのだ。")
	f.StringVarP(&opts.MainCharacter, "character", "c", "", "主人公の名前と見た目なのだ。")
	f.StringVar(&opts.Location, "location", "", "物語の舞台なのだ。")
	f.StringVar(&opts.Theme, "theme", "", "物語のテーマなのだ。")
	f.StringVarP(&opts.Topic, "topic", "t", "", "物語のタイトルなのだ。")
	f.BoolVar(&opts.Example, "example", false, "同梱のサンプル入力を使うのだ。")
	f.StringVarP(&opts.OutputDir, "output-dir", "o", config.DefaultOutputDir, "保存先（ローカル or gs://...）なのだ。")
	f.StringVarP(&opts.User, "user", "u", config.DefaultLocalUser, "クレジットを消費するユーザー ID なのだ。")
}

func generateCommand(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg.Options = opts
	slog.Info("物語生成パイプラインを起動するのだ！",
		"provider", cfg.Provider,
		"length", opts.Length,
		"output", opts.OutputDir)

	if err := pipeline.Execute(ctx, cfg, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("パイプライン実行中にエラーが発生したのだ: %w", err)
	}
	return nil
}
