package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shouni/go-story-kit/pkg/domain"
	"github.com/shouni/go-story-kit/pkg/metrics"
	"github.com/shouni/go-story-kit/pkg/retry"
)

const mediaKindImage = "image"

// runImagePhase は各ページの画像を順番に生成してアップロードします。
// 1ページの失敗は致命的ではなく、そのページの ImageURL が nil のまま続行します。
// キャンセルされた場合は false を返します。
func (p *Pipeline) runImagePhase(ctx context.Context, r *run, logger *slog.Logger, pages []domain.Page) bool {
	started := time.Now()
	defer func() { p.deps.Metrics.PhaseDuration(string(domain.StatusGeneratingImages), time.Since(started)) }()

	total := len(pages)
	if !p.update(r, func(domain.State) domain.State {
		return domain.State{
			Phase:         domain.GeneratingImages{},
			Progress:      progressTextDone,
			Step:          fmt.Sprintf("Illustrating page 1 of %d", total),
			ImageProgress: domain.Counter{Current: 0, Total: total},
			AudioProgress: domain.Counter{Current: 0, Total: total},
		}
	}) {
		return false
	}

	for i := range pages {
		if ctx.Err() != nil {
			return false
		}
		if i > 0 {
			if err := sleep(ctx, p.cfg.InterPageDelay); err != nil {
				return false
			}
		}

		pages[i].ImageURL = p.generatePageImage(ctx, r, logger, pages[i])
		if ctx.Err() != nil {
			return false
		}

		done := i + 1
		if !p.update(r, func(s domain.State) domain.State {
			step := fmt.Sprintf("Illustrating page %d of %d", min(done+1, total), total)
			return domain.State{
				Phase:         domain.GeneratingImages{},
				Progress:      bandProgress(progressTextDone, progressImagesEnd, done, total),
				Step:          step,
				ImageProgress: domain.Counter{Current: done, Total: total},
				AudioProgress: s.AudioProgress,
			}
		}) {
			return false
		}
	}
	return true
}

// generatePageImage は1ページ分の画像生成とアップロードを最大 ImageAttempts 回試行します。
// 成功、失敗、空応答（ソフト失敗）のいずれも1回の試行として数えます。
func (p *Pipeline) generatePageImage(ctx context.Context, r *run, logger *slog.Logger, page domain.Page) *string {
	policy := retry.Policy{Attempts: p.cfg.ImageAttempts, Interval: p.cfg.ImageBackoff}

	var url string
	err := retry.Do(ctx, policy, func(attempt int) error {
		callCtx, cancel := p.callContext(ctx)
		res, err := p.deps.Client.GenerateImage(callCtx, page.ImagePrompt)
		cancel()
		if ctx.Err() != nil {
			return retry.Permanent(ctx.Err())
		}
		if err != nil {
			p.deps.Metrics.MediaAttempt(mediaKindImage, metrics.OutcomeError)
			return err
		}
		if !res.Usable() {
			p.deps.Metrics.MediaAttempt(mediaKindImage, metrics.OutcomeSoftFailure)
			return domain.ErrEmptyPayload
		}

		callCtx, cancel = p.callContext(ctx)
		u, err := p.deps.Uploader.Upload(callCtx, res.Base64, r.principal.ID)
		cancel()
		if ctx.Err() != nil {
			return retry.Permanent(ctx.Err())
		}
		if err != nil {
			p.deps.Metrics.MediaAttempt(mediaKindImage, metrics.OutcomeError)
			return err
		}

		p.deps.Metrics.MediaAttempt(mediaKindImage, metrics.OutcomeSuccess)
		url = u
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		logger.WarnContext(ctx, "画像生成に失敗しました。再試行します",
			"page", page.Number, "attempt", attempt, "wait", wait, "error", err)
	})

	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		p.deps.Metrics.MediaAttempt(mediaKindImage, metrics.OutcomeExhausted)
		logger.WarnContext(ctx, "画像を生成できませんでした。画像なしで続行します",
			"page", page.Number, "attempts", policy.Attempts, "error", err)
		return nil
	}
	return &url
}
