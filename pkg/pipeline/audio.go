package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shouni/go-story-kit/pkg/client"
	"github.com/shouni/go-story-kit/pkg/domain"
	"github.com/shouni/go-story-kit/pkg/metrics"
)

const mediaKindAudio = "audio"

// runAudioPhase は各ページの読み上げ音声を順番に生成します。
// 音声は再試行せず、失敗したページは AudioURL が nil のまま続行します。
// キャンセルされた場合は false を返します。
func (p *Pipeline) runAudioPhase(ctx context.Context, r *run, logger *slog.Logger, pages []domain.Page) bool {
	started := time.Now()
	defer func() { p.deps.Metrics.PhaseDuration(string(domain.StatusGeneratingAudio), time.Since(started)) }()

	total := len(pages)
	if !p.update(r, func(s domain.State) domain.State {
		return domain.State{
			Phase:         domain.GeneratingAudio{},
			Progress:      progressAudioStart,
			Step:          fmt.Sprintf("Narrating page 1 of %d", total),
			ImageProgress: s.ImageProgress,
			AudioProgress: domain.Counter{Current: 0, Total: total},
		}
	}) {
		return false
	}

	for i := range pages {
		if ctx.Err() != nil {
			return false
		}

		pages[i].AudioURL = p.generatePageAudio(ctx, logger, pages[i])
		if ctx.Err() != nil {
			return false
		}

		done := i + 1
		if !p.update(r, func(s domain.State) domain.State {
			return domain.State{
				Phase:         domain.GeneratingAudio{},
				Progress:      bandProgress(progressAudioStart, progressAudioEnd, done, total),
				Step:          fmt.Sprintf("Narrating page %d of %d", min(done+1, total), total),
				ImageProgress: s.ImageProgress,
				AudioProgress: domain.Counter{Current: done, Total: total},
			}
		}) {
			return false
		}
	}
	return true
}

// generatePageAudio は1ページ分の音声を1回だけ生成して保存します。
func (p *Pipeline) generatePageAudio(ctx context.Context, logger *slog.Logger, page domain.Page) *string {
	callCtx, cancel := p.callContext(ctx)
	res, err := p.deps.Client.GenerateSpeech(callCtx, client.SpeechRequest{
		Text:         truncateRunes(page.Content, p.cfg.MaxSpeechChars),
		Voice:        p.cfg.SpeechVoice,
		Model:        p.cfg.SpeechModel,
		Instructions: p.cfg.SpeechInstructions,
	})
	cancel()
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		p.deps.Metrics.MediaAttempt(mediaKindAudio, metrics.OutcomeError)
		logger.WarnContext(ctx, "音声生成に失敗しました。音声なしで続行します", "page", page.Number, "error", err)
		return nil
	}
	if !res.Usable() {
		p.deps.Metrics.MediaAttempt(mediaKindAudio, metrics.OutcomeSoftFailure)
		logger.WarnContext(ctx, "音声データが空でした。音声なしで続行します", "page", page.Number)
		return nil
	}

	callCtx, cancel = p.callContext(ctx)
	ref, err := p.deps.Audio.PersistAudio(callCtx, res.Base64, res.MIMEType)
	cancel()
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		p.deps.Metrics.MediaAttempt(mediaKindAudio, metrics.OutcomeError)
		logger.WarnContext(ctx, "音声の保存に失敗しました。音声なしで続行します", "page", page.Number, "error", err)
		return nil
	}

	p.deps.Metrics.MediaAttempt(mediaKindAudio, metrics.OutcomeSuccess)
	return &ref
}

// truncateRunes は文字数（rune 数）で max を超える部分を切り捨てます。
func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
