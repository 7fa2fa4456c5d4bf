// Package credit は生成回数を制限するクレジット残高を管理します。
package credit

import (
	"context"
	"sync"

	"github.com/shouni/go-story-kit/pkg/domain"
)

// DefaultInitialCredits は未登録ユーザーに付与される初期クレジットです。
const DefaultInitialCredits = 3

// Ledger はユーザーごとのクレジット残高を管理するインターフェースです。
type Ledger interface {
	// Remaining は現在の残高を返します。
	Remaining(ctx context.Context, principalID string) (int64, error)
	// Decrement は残高を1減らし、減算後の残高を返します。残高がない場合は domain.ErrNoCredits を返します。
	Decrement(ctx context.Context, principalID string) (int64, error)
	// Grant は残高を n 増やし、加算後の残高を返します。
	Grant(ctx context.Context, principalID string, n int64) (int64, error)
}

// MemoryLedger はプロセス内のマップで残高を保持する Ledger です。
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]int64
	initial  int64
}

// NewMemoryLedger は MemoryLedger を生成します。
func NewMemoryLedger(initial int64) *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[string]int64),
		initial:  initial,
	}
}

func (l *MemoryLedger) balance(principalID string) int64 {
	v, ok := l.balances[principalID]
	if !ok {
		v = l.initial
		l.balances[principalID] = v
	}
	return v
}

func (l *MemoryLedger) Remaining(_ context.Context, principalID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(principalID), nil
}

func (l *MemoryLedger) Decrement(_ context.Context, principalID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	v := l.balance(principalID)
	if v <= 0 {
		return 0, domain.ErrNoCredits
	}
	v--
	l.balances[principalID] = v
	return v, nil
}

func (l *MemoryLedger) Grant(_ context.Context, principalID string, n int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	v := l.balance(principalID) + n
	l.balances[principalID] = v
	return v, nil
}
