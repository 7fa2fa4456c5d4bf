package builder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/shouni/go-story-kit/internal/config"
	"github.com/shouni/go-story-kit/pkg/asset"
	"github.com/shouni/go-story-kit/pkg/auth"
	"github.com/shouni/go-story-kit/pkg/client"
	"github.com/shouni/go-story-kit/pkg/credit"
	"github.com/shouni/go-story-kit/pkg/domain"
	"github.com/shouni/go-story-kit/pkg/pipeline"
	"github.com/shouni/go-story-kit/pkg/provider/gemini"
	"github.com/shouni/go-story-kit/pkg/provider/openai"
	"github.com/shouni/go-story-kit/pkg/publisher"
	"github.com/shouni/go-story-kit/pkg/server"
	"github.com/shouni/go-story-kit/pkg/storage"
)

// BuildProviders は PROVIDER に応じてテキスト・画像・音声のアダプターを構築します。
func BuildProviders(ctx context.Context, cfg *config.Config) (client.TextGenerator, client.ImageGenerator, client.SpeechGenerator, error) {
	switch cfg.Provider {
	case config.ProviderGemini, "":
		c, err := gemini.New(ctx, gemini.Config{
			APIKey:      cfg.GeminiAPIKey,
			TextModel:   cfg.GeminiTextModel,
			ImageModel:  cfg.GeminiImageModel,
			SpeechModel: cfg.GeminiSpeechModel,
			Voice:       cfg.Voice,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("Gemini アダプターの初期化に失敗しました: %w", err)
		}
		return c, c, c, nil
	case config.ProviderOpenAI:
		c, err := openai.New(openai.Config{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			TextModel:   cfg.OpenAITextModel,
			ImageModel:  cfg.OpenAIImageModel,
			SpeechModel: cfg.OpenAISpeechModel,
			Voice:       cfg.Voice,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("OpenAI アダプターの初期化に失敗しました: %w", err)
		}
		return c, c, c, nil
	default:
		return nil, nil, nil, fmt.Errorf("不明なプロバイダーです: '%s'", cfg.Provider)
	}
}

// BuildRateLimiter はリモート呼び出しの間隔を制限する Limiter を構築します。間隔が0以下なら制限しません。
func BuildRateLimiter(cfg *config.Config) *rate.Limiter {
	if cfg.RequestInterval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(cfg.RequestInterval), 1)
}

// BuildWriter はローカルと GCS を振り分ける OutputWriter を構築します。
// GCS クライアントは gs:// の出力先が設定されている場合だけ初期化します。
func BuildWriter(ctx context.Context, appCtx *AppContext) (storage.OutputWriter, error) {
	w := &storage.RoutingWriter{Local: storage.NewLocalWriter()}
	if !asset.IsGCS(appCtx.Config.MediaDir) && !asset.IsGCS(appCtx.Options.OutputDir) {
		return w, nil
	}

	gcsWriter, err := storage.NewGCSWriter(ctx)
	if err != nil {
		return nil, err
	}
	appCtx.addCloser(gcsWriter.Close)
	w.GCS = gcsWriter
	return w, nil
}

// BuildLedger は REDIS_ADDR が設定されていれば Redis、なければメモリ上の台帳を構築します。
func BuildLedger(ctx context.Context, appCtx *AppContext) (credit.Ledger, error) {
	cfg := appCtx.Config
	if cfg.RedisAddr == "" {
		slog.WarnContext(ctx, "REDIS_ADDR が未設定のため、クレジットはプロセス内でのみ保持されます")
		return credit.NewMemoryLedger(cfg.InitialCredits), nil
	}

	rdb, err := credit.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	appCtx.addCloser(rdb.Close)
	return credit.NewRedisLedger(rdb, cfg.InitialCredits), nil
}

// PipelineConfig は設定からパイプラインの設定を組み立てます。
func PipelineConfig(cfg *config.Config) pipeline.Config {
	pc := pipeline.DefaultConfig()
	pc.ImageAttempts = cfg.ImageAttempts
	pc.ImageBackoff = explicitDelay(cfg.ImageBackoff)
	pc.InterPageDelay = explicitDelay(cfg.InterPageDelay)
	pc.CallTimeout = cfg.CallTimeout
	pc.SpeechVoice = cfg.Voice
	return pc
}

// explicitDelay は環境変数で 0 を指定された待機時間を「待機なし」として扱います。
func explicitDelay(d time.Duration) time.Duration {
	if d <= 0 {
		return pipeline.NoDelay
	}
	return d
}

// BuildPipeline は principal のためのパイプラインを構築します。
func BuildPipeline(appCtx *AppContext, principal pipeline.PrincipalSource) (*pipeline.Pipeline, error) {
	return pipeline.New(pipeline.Dependencies{
		Client:    appCtx.Client,
		Uploader:  appCtx.Blobs,
		Audio:     appCtx.Blobs,
		Parser:    appCtx.Parser,
		Prompts:   appCtx.Prompts,
		Principal: principal,
		Metrics:   appCtx.Metrics,
	}, PipelineConfig(appCtx.Config))
}

// BuildPublisher は完成した物語を書き出す Publisher を構築します。
func BuildPublisher(appCtx *AppContext) *publisher.StoryPublisher {
	return publisher.NewStoryPublisher(appCtx.Writer, nil)
}

// BuildJWTManager はトークンの発行・検証に使う JWTManager を構築します。
func BuildJWTManager(cfg *config.Config) (*auth.JWTManager, error) {
	if cfg.JWTSecret == config.DefaultJWTSecret {
		slog.Warn("JWT_SECRET が既定値のままです。本番環境では必ず変更してください")
	}
	return auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer)
}

// BuildRouter は HTTP API のルーターを構築します。
func BuildRouter(appCtx *AppContext) (*gin.Engine, *server.Registry, error) {
	jwtManager, err := BuildJWTManager(appCtx.Config)
	if err != nil {
		return nil, nil, err
	}

	registry := server.NewRegistry(func(p domain.Principal) (*pipeline.Pipeline, error) {
		return BuildPipeline(appCtx, pipeline.StaticPrincipal(p))
	}, appCtx.Config.SessionTTL, 0)

	// ローカル保存のメディアは公開 URL が設定されている場合だけ配信する
	mediaDir := ""
	if !asset.IsGCS(appCtx.Config.MediaDir) && appCtx.Config.PublicBaseURL != "" {
		mediaDir = appCtx.Config.MediaDir
	}

	router, err := server.NewRouter(server.Options{
		Registry: registry,
		Auth:     jwtManager,
		Ledger:   appCtx.Ledger,
		Metrics:  appCtx.Metrics,
		Gatherer: appCtx.Registry,
		MediaDir: mediaDir,
	})
	if err != nil {
		return nil, nil, err
	}
	return router, registry, nil
}
