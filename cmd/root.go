package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/shouni/go-story-kit/internal/config"
)

const appName = "story-kit"

var (
	cfg  *config.Config
	opts config.GenerateOptions

	providerFlag  string
	logLevelFlag  string
	logFormatFlag string
)

var rootCmd = &cobra.Command{
	Use:               appName,
	Short:             "挿絵と読み上げ付きの物語を生成するのだ。",
	SilenceUsage:      true,
	PersistentPreRunE: preRunAppE,
}

// addAppFlags は、アプリケーション全般に適用されるグローバルフラグを定義するのだ。
func addAppFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().StringVar(&providerFlag, "provider", "", "使用するプロバイダー（gemini / openai）なのだ。未指定なら PROVIDER を使うのだ。")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "ログレベル（debug / info / warn / error）なのだ。")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "", "ログ形式（text / json）なのだ。")
}

// preRunAppE は、.env と環境変数を読み込み、フラグで上書きしてからロガーを設定するのだ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf(".env の読み込みに失敗したのだ: %w", err)
	}

	cfg = config.LoadConfig()
	if providerFlag != "" {
		cfg.Provider = providerFlag
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}
	if logFormatFlag != "" {
		cfg.LogFormat = logFormatFlag
	}
	cfg.Options = opts

	slog.SetDefault(newLogger(cfg.LogLevel, cfg.LogFormat))
	return nil
}

// requireAPIKey はプロバイダーの API キーが設定されているかを確認するのだ。
func requireAPIKey(cfg *config.Config) error {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return fmt.Errorf("エラー: 環境変数 OPENAI_API_KEY が設定されていません。OpenAI の利用には必須なのだ")
		}
	default:
		if cfg.GeminiAPIKey == "" {
			return fmt.Errorf("エラー: 環境変数 GEMINI_API_KEY が設定されていません。Gemini APIの利用には必須なのだ")
		}
	}
	return nil
}

func newLogger(level, format string) *slog.Logger {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		lv = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: lv}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts))
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
// main.go から呼び出されて、cobra のコマンドライン解析を開始するのだよ。
func Execute() {
	addAppFlags(rootCmd)
	rootCmd.AddCommand(generateCmd, serveCmd, tokenCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
