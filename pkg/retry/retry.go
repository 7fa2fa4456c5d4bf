// Package retry は試行回数に比例して待機時間が伸びる再試行ヘルパーです。
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy は再試行の方針です。Attempts は初回を含む総試行回数です。
type Policy struct {
	Attempts int
	Interval time.Duration
}

// Delay は attempt 回目（1始まり）の失敗後に待つ時間を返します。
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if p.Interval <= 0 {
		return 0
	}
	return time.Duration(attempt) * p.Interval
}

// linearBackOff は attempt * interval を返す backoff.BackOff です。
type linearBackOff struct {
	policy  Policy
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.policy.Delay(b.attempt)
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}

// Permanent は再試行せずに即座に終了させるエラーを包みます。
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do は op が成功するか試行回数を使い切るまで実行します。
// 各失敗の後、次の試行がある場合のみ notify が呼ばれてから待機します。
// ctx がキャンセルされると待機を打ち切ります。
func Do(ctx context.Context, p Policy, op func(attempt int) error, notify func(attempt int, err error, wait time.Duration)) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var b backoff.BackOff = &linearBackOff{policy: p}
	b = backoff.WithMaxRetries(b, uint64(attempts-1))
	b = backoff.WithContext(b, ctx)

	attempt := 0
	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempt++
		return op(attempt)
	}

	var onRetry backoff.Notify
	if notify != nil {
		onRetry = func(err error, wait time.Duration) {
			notify(attempt, err, wait)
		}
	}
	return backoff.RetryNotify(operation, b, onRetry)
}
