package server

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/shouni/go-story-kit/pkg/domain"
	"github.com/shouni/go-story-kit/pkg/pipeline"
)

const (
	DefaultSessionTTL      = 30 * time.Minute
	DefaultCleanupInterval = 5 * time.Minute
)

// PipelineFactory はユーザー1人分のパイプラインを生成します。
type PipelineFactory func(p domain.Principal) (*pipeline.Pipeline, error)

// Registry はユーザーごとのパイプラインを保持します。
// 一定時間アクセスのないパイプラインは破棄します。実行中のパイプラインは期限切れになりません。
// 1人のユーザーが同時に持てるパイプラインは1つだけです。
type Registry struct {
	cache   *cache.Cache
	group   singleflight.Group
	factory PipelineFactory

	// mu は期限の付け替えと watchers を保護する
	mu       sync.Mutex
	watchers map[*pipeline.Pipeline]func()
}

// NewRegistry は Registry を生成します。
func NewRegistry(factory PipelineFactory, ttl, cleanupInterval time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	r := &Registry{
		cache:    cache.New(ttl, cleanupInterval),
		factory:  factory,
		watchers: make(map[*pipeline.Pipeline]func()),
	}
	r.cache.OnEvicted(r.onEvicted)
	return r
}

// Get は principal のパイプラインを返します。存在しない場合は生成します。
// 同じユーザーへの同時リクエストでも生成は1回だけです。
func (r *Registry) Get(p domain.Principal) (*pipeline.Pipeline, error) {
	if !p.Valid() {
		return nil, domain.ErrSignInRequired
	}
	if v, ok := r.cache.Get(p.ID); ok {
		pl := v.(*pipeline.Pipeline)
		r.keep(p.ID, pl)
		return pl, nil
	}

	val, err, _ := r.group.Do(p.ID, func() (any, error) {
		// 期限切れのまま残っている項目を先に追い出して、古いパイプラインを後片付けする
		r.cache.DeleteExpired()
		if v, ok := r.cache.Get(p.ID); ok {
			return v, nil
		}
		pl, err := r.factory(p)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if err := r.cache.Add(p.ID, pl, cache.DefaultExpiration); err != nil {
			// 掃除中に実行中のパイプラインが戻された
			if v, ok := r.cache.Get(p.ID); ok {
				return v, nil
			}
			return nil, err
		}
		r.watchers[pl] = r.watch(p.ID, pl)
		return pl, nil
	})
	if err != nil {
		return nil, fmt.Errorf("パイプラインの生成に失敗しました: %w", err)
	}

	pl, ok := val.(*pipeline.Pipeline)
	if !ok {
		return nil, fmt.Errorf("unexpected return type from singleflight: %T", val)
	}
	return pl, nil
}

// Len は保持しているパイプライン数を返します。
func (r *Registry) Len() int {
	return r.cache.ItemCount()
}

// Close は保持しているすべてのパイプラインを中断して破棄します。
func (r *Registry) Close() {
	r.cache.DeleteExpired()
	for id, item := range r.cache.Items() {
		if pl, ok := item.Object.(*pipeline.Pipeline); ok {
			pl.Reset()
		}
		r.cache.Delete(id)
	}
}

// watch はパイプラインの状態を購読し、実行中かどうかに合わせて期限を付け替えます。
// 返される関数で購読を止めます。
func (r *Registry) watch(id string, pl *pipeline.Pipeline) func() {
	states, unsubscribe := pl.Subscribe(1)
	go func() {
		busy := false
		for s := range states {
			if s.IsBusy() != busy {
				busy = s.IsBusy()
				r.keep(id, pl)
			}
		}
	}()
	return unsubscribe
}

// keep は id がまだ pl を指している場合だけ期限を更新します。
// 実行中は期限なし、アイドル中は既定の期限にします。
func (r *Registry) keep(id string, pl *pipeline.Pipeline) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.cache.Get(id); !ok || v != pl {
		return
	}
	exp := cache.DefaultExpiration
	if pl.Snapshot().IsBusy() {
		exp = cache.NoExpiration
	}
	r.cache.Set(id, pl, exp)
}

func (r *Registry) onEvicted(id string, v any) {
	pl, ok := v.(*pipeline.Pipeline)
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if pl.Snapshot().IsBusy() {
		// 期限を付け替える前に追い出された実行中のパイプラインは戻す
		if err := r.cache.Add(id, pl, cache.NoExpiration); err == nil {
			return
		}
		// すでに新しいパイプラインがあるので、古い実行は中断する
		pl.Reset()
		slog.Warn("同じユーザーの新しいパイプラインがあるため、実行中の生成を中断しました", "principal", id)
	}
	if stop, ok := r.watchers[pl]; ok {
		stop()
		delete(r.watchers, pl)
	}
	slog.Debug("パイプラインを破棄しました", "principal", id)
}
