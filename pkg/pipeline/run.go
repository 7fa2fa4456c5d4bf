package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shouni/go-story-kit/pkg/domain"
	"github.com/shouni/go-story-kit/pkg/metrics"
)

// execute は1回の実行の全フェーズを順に処理します。
// 各チェックポイントで ctx を確認し、キャンセル後は状態を更新せずに戻ります。
func (p *Pipeline) execute(ctx context.Context, r *run) {
	defer close(r.done)
	defer r.cancel()

	logger := slog.Default().With("run_id", r.id, "principal", r.principal.ID)

	rawText, pages, err := p.runTextPhase(ctx, r, logger)
	if err != nil {
		p.fail(ctx, r, logger, err)
		return
	}
	if ctx.Err() != nil {
		return
	}

	title := strings.TrimSpace(r.params.Topic)
	if title == "" {
		title = p.cfg.FallbackTitle
	}

	if !p.runImagePhase(ctx, r, logger, pages) {
		return
	}
	if !p.runAudioPhase(ctx, r, logger, pages) {
		return
	}
	p.finalize(ctx, r, logger, &domain.GeneratedStory{
		Title:       title,
		FullContent: rawText,
		Pages:       pages,
	})
}

// fail は実行を error 状態で終了させます。物語は公開しません。
func (p *Pipeline) fail(ctx context.Context, r *run, logger *slog.Logger, err error) {
	if ctx.Err() != nil {
		return
	}
	msg := domain.UserMessage(err)
	if p.update(r, func(s domain.State) domain.State {
		return domain.State{
			Phase:         domain.Failed{Message: msg},
			Progress:      s.Progress,
			Step:          s.Step,
			ImageProgress: s.ImageProgress,
			AudioProgress: s.AudioProgress,
		}
	}) {
		p.deps.Metrics.RunFinished(string(domain.StatusError))
		logger.ErrorContext(ctx, "物語生成に失敗しました", "error", err)
	}
}

// runTextPhase は本文を生成してページに分割します。ここでの失敗はすべて致命的です。
func (p *Pipeline) runTextPhase(ctx context.Context, r *run, logger *slog.Logger) (string, []domain.Page, error) {
	started := time.Now()
	defer func() { p.deps.Metrics.PhaseDuration(string(domain.StatusGeneratingText), time.Since(started)) }()

	prompt, err := p.deps.Prompts.BuildStoryPrompt(r.params, p.deps.Parser.Delimiter())
	if err != nil {
		return "", nil, fmt.Errorf("本文プロンプトの構築に失敗しました: %w", err)
	}

	callCtx, cancel := p.callContext(ctx)
	res, err := p.deps.Client.GenerateText(callCtx, prompt)
	cancel()
	if ctx.Err() != nil {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	if !res.Success || strings.TrimSpace(res.Story) == "" {
		return "", nil, errors.New(domain.MessageTextUnavailable)
	}
	logger.InfoContext(ctx, "本文を生成しました", "prompt_tokens", res.PromptTokens, "total_tokens", res.TotalTokens)

	texts, err := p.deps.Parser.Parse(res.Story)
	if err != nil {
		return "", nil, err
	}

	pages := make([]domain.Page, 0, len(texts))
	for i, text := range texts {
		imagePrompt, err := p.deps.Prompts.BuildImagePrompt(r.params.MainCharacter, r.params.Location, text)
		if err != nil {
			return "", nil, fmt.Errorf("画像プロンプトの構築に失敗しました (page %d): %w", i+1, err)
		}
		pages = append(pages, domain.Page{
			Number:      i + 1,
			Content:     text,
			ImagePrompt: imagePrompt,
		})
	}
	return res.Story, pages, nil
}

// finalize はクレジットを減算し、物語を組み立てて完了状態にします。
// クレジット減算の失敗はログに残すだけで、完了を妨げません。
func (p *Pipeline) finalize(ctx context.Context, r *run, logger *slog.Logger, story *domain.GeneratedStory) {
	if !p.update(r, func(s domain.State) domain.State {
		return domain.State{
			Phase:         domain.Finalizing{},
			Progress:      progressFinalizing,
			Step:          "Finishing up",
			ImageProgress: s.ImageProgress,
			AudioProgress: s.AudioProgress,
		}
	}) {
		return
	}

	callCtx, cancel := p.callContext(ctx)
	res, err := p.deps.Client.DecrementCredit(callCtx)
	cancel()
	switch {
	case ctx.Err() != nil:
		return
	case err != nil:
		p.deps.Metrics.CreditDecrement(metrics.OutcomeError)
		logger.WarnContext(ctx, "クレジットの減算に失敗しました。生成結果はそのまま返します", "error", err)
	case !res.Success:
		p.deps.Metrics.CreditDecrement(metrics.OutcomeSoftFailure)
		logger.WarnContext(ctx, "クレジットの減算が受け付けられませんでした")
	default:
		p.deps.Metrics.CreditDecrement(metrics.OutcomeSuccess)
		logger.InfoContext(ctx, "クレジットを減算しました", "remaining", res.RemainingUses)
	}

	complete, err := domain.NewComplete(story)
	if err != nil {
		p.fail(ctx, r, logger, err)
		return
	}
	if p.update(r, func(s domain.State) domain.State {
		return domain.State{
			Phase:         complete,
			Progress:      progressComplete,
			Step:          "Story ready",
			ImageProgress: s.ImageProgress,
			AudioProgress: s.AudioProgress,
		}
	}) {
		p.deps.Metrics.RunFinished(string(domain.StatusComplete))
		logger.InfoContext(ctx, "物語生成が完了しました",
			"title", story.Title,
			"pages", len(story.Pages),
			"degraded_pages", story.DegradedPages())
	}
}

// callContext は1回のリモート呼び出し用のタイムアウト付き context を返します。
func (p *Pipeline) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.cfg.CallTimeout)
}

// sleep は ctx がキャンセルされるまで d だけ待ちます。
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// bandProgress は start から end までの帯の中で done/total の位置を返します。
func bandProgress(start, end, done, total int) int {
	if total <= 0 {
		return end
	}
	return start + (end-start)*done/total
}
