package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/shouni/go-story-kit/pkg/credit"
	"github.com/shouni/go-story-kit/pkg/domain"
)

// Composer はテキスト・画像・音声のプロバイダーとクレジット台帳を束ねて
// GenerationClient を実装します。
type Composer struct {
	Text        TextGenerator
	Image       ImageGenerator
	Speech      SpeechGenerator
	Ledger      credit.Ledger
	RateLimiter *rate.Limiter
}

// NewComposer は Composer の新しいインスタンスを生成します。limiter が nil の場合は制限しません。
func NewComposer(text TextGenerator, image ImageGenerator, speech SpeechGenerator, ledger credit.Ledger, limiter *rate.Limiter) *Composer {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Composer{
		Text:        text,
		Image:       image,
		Speech:      speech,
		Ledger:      ledger,
		RateLimiter: limiter,
	}
}

// GenerateText は残高を確認したうえで物語本文を生成します。
func (c *Composer) GenerateText(ctx context.Context, prompt string) (TextResult, error) {
	p, ok := domain.PrincipalFromContext(ctx)
	if !ok {
		return TextResult{}, domain.NewRemoteError(domain.CodeUnauthenticated, "", domain.ErrSignInRequired)
	}

	if c.Ledger != nil {
		remaining, err := c.Ledger.Remaining(ctx, p.ID)
		if err != nil {
			return TextResult{}, domain.NewRemoteError(domain.CodeUnknown, "", fmt.Errorf("残高の確認に失敗しました: %w", err))
		}
		if remaining <= 0 {
			return TextResult{}, domain.NewRemoteError(domain.CodeResourceExhausted, "", domain.ErrNoCredits)
		}
	}

	if err := c.RateLimiter.Wait(ctx); err != nil {
		return TextResult{}, err
	}
	return c.Text.GenerateText(ctx, prompt)
}

// GenerateImage は画像を1枚生成します。
func (c *Composer) GenerateImage(ctx context.Context, prompt string) (MediaResult, error) {
	if err := c.RateLimiter.Wait(ctx); err != nil {
		return MediaResult{}, err
	}
	return c.Image.GenerateImage(ctx, prompt)
}

// GenerateSpeech は音声を合成します。
func (c *Composer) GenerateSpeech(ctx context.Context, req SpeechRequest) (MediaResult, error) {
	if err := c.RateLimiter.Wait(ctx); err != nil {
		return MediaResult{}, err
	}
	return c.Speech.GenerateSpeech(ctx, req)
}

// DecrementCredit は context の Principal の残高を1減らします。
func (c *Composer) DecrementCredit(ctx context.Context) (CreditResult, error) {
	p, ok := domain.PrincipalFromContext(ctx)
	if !ok {
		return CreditResult{}, domain.ErrSignInRequired
	}
	if c.Ledger == nil {
		return CreditResult{Success: true}, nil
	}

	remaining, err := c.Ledger.Decrement(ctx, p.ID)
	if errors.Is(err, domain.ErrNoCredits) {
		slog.WarnContext(ctx, "残高が0のユーザーの減算要求なのだ", "principal", p.ID)
		return CreditResult{Success: false}, nil
	}
	if err != nil {
		return CreditResult{}, err
	}
	return CreditResult{Success: true, RemainingUses: remaining}, nil
}
