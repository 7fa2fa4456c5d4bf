package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/shouni/go-story-kit/internal/config"
	"github.com/shouni/go-story-kit/pkg/client"
	"github.com/shouni/go-story-kit/pkg/credit"
	"github.com/shouni/go-story-kit/pkg/metrics"
	"github.com/shouni/go-story-kit/pkg/parser"
	"github.com/shouni/go-story-kit/pkg/prompts"
	"github.com/shouni/go-story-kit/pkg/storage"
)

// AppContext は、アプリケーション実行に必要な共通コンテキストを保持する
// これを各Build関数に渡すことで、依存関係の注入を簡素化します。
type AppContext struct {
	Config  *config.Config         // Configは、環境変数から読み込まれたグローバルな設定です（APIキー、モデル名など）。
	Options config.GenerateOptions // Optionsは、コマンドラインから渡された実行時の設定です。
	Writer  storage.OutputWriter   // Writerは、生成物をローカルまたは GCS に保存するための出力先です。
	Blobs   *storage.BlobStore     // Blobsは、ページ画像と音声の保存先です。
	Ledger  credit.Ledger          // Ledgerは、ユーザーごとの残りクレジットです。
	Client  client.GenerationClient
	Prompts *prompts.TextPromptBuilder
	Parser  *parser.PageParser
	Metrics *metrics.Prometheus
	// Registry は Metrics の登録先で、/metrics で公開されます。
	Registry *prometheus.Registry

	closers []func() error
}

// NewAppContext は設定から全コンポーネントを初期化します。
func NewAppContext(ctx context.Context, cfg *config.Config) (*AppContext, error) {
	appCtx := &AppContext{Config: cfg, Options: cfg.Options}

	writer, err := BuildWriter(ctx, appCtx)
	if err != nil {
		return nil, err
	}
	appCtx.Writer = writer
	appCtx.Blobs = storage.NewBlobStore(writer, cfg.MediaDir, cfg.PublicBaseURL)

	ledger, err := BuildLedger(ctx, appCtx)
	if err != nil {
		appCtx.Close()
		return nil, err
	}
	appCtx.Ledger = ledger

	text, image, speech, err := BuildProviders(ctx, cfg)
	if err != nil {
		appCtx.Close()
		return nil, err
	}
	appCtx.Client = client.NewComposer(text, image, speech, ledger, BuildRateLimiter(cfg))

	appCtx.Prompts, err = prompts.NewTextPromptBuilder(cfg.ImagePromptSuffix)
	if err != nil {
		appCtx.Close()
		return nil, fmt.Errorf("プロンプトビルダーの初期化に失敗しました: %w", err)
	}
	appCtx.Parser = parser.NewPageParser(parser.DefaultOptions())

	appCtx.Registry = prometheus.NewRegistry()
	appCtx.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appCtx.Metrics = metrics.NewPrometheus(appCtx.Registry)

	slog.InfoContext(ctx, "アプリケーションを初期化しました",
		"provider", cfg.Provider,
		"media_dir", cfg.MediaDir,
		"shared_ledger", cfg.RedisAddr != "")
	return appCtx, nil
}

// Close は保持しているクライアントを解放します。
func (a *AppContext) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *AppContext) addCloser(fn func() error) {
	a.closers = append(a.closers, fn)
}
