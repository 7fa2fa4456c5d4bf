package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shouni/go-story-kit/examples"
	"github.com/shouni/go-story-kit/internal/builder"
	"github.com/shouni/go-story-kit/internal/config"
	"github.com/shouni/go-story-kit/internal/runner"
	"github.com/shouni/go-story-kit/pkg/domain"
	storypipeline "github.com/shouni/go-story-kit/pkg/pipeline"
	"github.com/shouni/go-story-kit/pkg/publisher"
	"github.com/shouni/go-story-kit/pkg/server"
)

// Execute は物語を1つ生成し、出力先に書き出すのだ。進捗は out に表示します。
func Execute(ctx context.Context, cfg *config.Config, out io.Writer) error {
	params, err := resolveParams(cfg.Options)
	if err != nil {
		return err
	}

	appCtx, err := builder.NewAppContext(ctx, cfg)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	// --- Phase 1: Generate (本文・画像・音声) ---
	story, err := runGenerateStep(ctx, appCtx, params, out)
	if err != nil {
		return err
	}

	// --- Phase 2: Publish (公開/保存) ---
	res, err := runPublishStep(ctx, appCtx, story)
	if err != nil {
		return err
	}

	if degraded := story.DegradedPages(); len(degraded) > 0 {
		slog.WarnContext(ctx, "画像または音声が欠けているページがあるのだ", "pages", degraded)
	}
	slog.InfoContext(ctx, "すべての生成工程が完了したのだ！", "title", story.Title, "html", res.HTMLPath)
	return nil
}

// Serve は HTTP API を ctx がキャンセルされるまで提供するのだ。
func Serve(ctx context.Context, cfg *config.Config) error {
	appCtx, err := builder.NewAppContext(ctx, cfg)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	router, registry, err := builder.BuildRouter(appCtx)
	if err != nil {
		return fmt.Errorf("ルーターの構築に失敗したのだ: %w", err)
	}
	defer registry.Close()

	return server.Run(ctx, cfg.Addr, router)
}

// IssueToken は開発用のトークンを発行するのだ。grant が正の場合はクレジットも付与します。
func IssueToken(ctx context.Context, cfg *config.Config, p domain.Principal, ttl time.Duration, grant int64) (string, error) {
	jwtManager, err := builder.BuildJWTManager(cfg)
	if err != nil {
		return "", err
	}
	token, err := jwtManager.Generate(p, ttl)
	if err != nil {
		return "", err
	}

	if grant > 0 {
		appCtx := &builder.AppContext{Config: cfg}
		defer appCtx.Close()
		ledger, err := builder.BuildLedger(ctx, appCtx)
		if err != nil {
			return "", err
		}
		remaining, err := ledger.Grant(ctx, p.ID, grant)
		if err != nil {
			return "", fmt.Errorf("クレジットの付与に失敗したのだ: %w", err)
		}
		slog.InfoContext(ctx, "クレジットを付与したのだ", "user", p.ID, "remaining", remaining)
	}
	return token, nil
}

func resolveParams(opts config.GenerateOptions) (domain.StoryGenerationParams, error) {
	if opts.Example {
		return examples.LoadStoryParams()
	}
	if strings.TrimSpace(opts.Prompt) == "" {
		return domain.StoryGenerationParams{}, fmt.Errorf("物語の内容（--prompt）を指定してほしいのだ")
	}
	length, err := domain.ParseLength(opts.Length)
	if err != nil {
		return domain.StoryGenerationParams{}, err
	}
	return domain.StoryGenerationParams{
		Prompt:        strings.TrimSpace(opts.Prompt),
		Length:        length,
		MainCharacter: opts.MainCharacter,
		Location:      opts.Location,
		Theme:         opts.Theme,
		Topic:         opts.Topic,
	}, nil
}

// runGenerateStep は GenerateRunner を使って物語を生成するのだ
func runGenerateStep(ctx context.Context, appCtx *builder.AppContext, params domain.StoryGenerationParams, out io.Writer) (*domain.GeneratedStory, error) {
	user := appCtx.Options.User
	if user == "" {
		user = config.DefaultLocalUser
	}
	p, err := builder.BuildPipeline(appCtx, storypipeline.StaticPrincipal(domain.Principal{ID: user}))
	if err != nil {
		return nil, fmt.Errorf("パイプラインの構築に失敗したのだ: %w", err)
	}

	slog.InfoContext(ctx, "Phase 1: 物語の生成を開始するのだ...", "length", params.Length, "pages", params.Length.PageCount())
	return runner.NewStoryGenerateRunner(p, out).Run(ctx, params)
}

// runPublishStep は PublisherRunner を使って最終成果物を保存するのだ
func runPublishStep(ctx context.Context, appCtx *builder.AppContext, story *domain.GeneratedStory) (publisher.PublishResult, error) {
	outputDir := appCtx.Options.OutputDir
	if outputDir == "" {
		outputDir = config.DefaultOutputDir
	}
	slog.InfoContext(ctx, "Phase 2: 公開処理を開始するのだ...", "output", outputDir)

	res, err := runner.NewDefaultPublisherRunner(outputDir, builder.BuildPublisher(appCtx)).Run(ctx, story)
	if err != nil {
		return res, fmt.Errorf("公開処理に失敗したのだ: %w", err)
	}
	return res, nil
}
