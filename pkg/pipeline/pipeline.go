// Package pipeline は物語生成の状態機械を実装します。
// テキスト、画像、音声、クレジット減算の順に1ページずつ処理し、
// 状態のスナップショットを購読者に配信します。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/shouni/go-story-kit/pkg/client"
	"github.com/shouni/go-story-kit/pkg/domain"
	"github.com/shouni/go-story-kit/pkg/metrics"
	"github.com/shouni/go-story-kit/pkg/parser"
	"github.com/shouni/go-story-kit/pkg/storage"
)

// ErrAlreadyRunning は実行中に Start が呼ばれた場合に返されます。実行中の状態は変更されません。
var ErrAlreadyRunning = errors.New("生成はすでに実行中です")

// ErrCancelled は Generate の実行中に Reset された場合に返されます。
var ErrCancelled = errors.New("生成はキャンセルされました")

// Dependencies はパイプラインが利用する外部機能です。
type Dependencies struct {
	Client    client.GenerationClient
	Uploader  storage.BlobUploader
	Audio     storage.AudioStore
	Parser    parser.Parser
	Prompts   PromptBuilder
	Principal PrincipalSource
	Metrics   metrics.Recorder
}

// run は1回の生成実行です。
type run struct {
	seq       uint64
	id        string
	principal domain.Principal
	params    domain.StoryGenerationParams
	cancel    context.CancelFunc
	done      chan struct{}
}

// Pipeline は1度に1つの生成だけを実行する状態機械です。
type Pipeline struct {
	deps Dependencies
	cfg  Config

	mu          sync.Mutex
	state       domain.State
	seq         uint64
	current     *run
	subscribers map[chan domain.State]struct{}
}

// New は Pipeline を生成します。
func New(deps Dependencies, cfg Config) (*Pipeline, error) {
	if deps.Client == nil || deps.Uploader == nil || deps.Audio == nil || deps.Parser == nil || deps.Prompts == nil {
		return nil, fmt.Errorf("パイプラインの依存関係が不足しています")
	}
	if deps.Principal == nil {
		deps.Principal = PrincipalFunc(func() (domain.Principal, bool) { return domain.Principal{}, false })
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	return &Pipeline{
		deps:        deps,
		cfg:         cfg.withDefaults(),
		state:       domain.IdleState(),
		subscribers: make(map[chan domain.State]struct{}),
	}, nil
}

// Snapshot は現在の状態を返します。
func (p *Pipeline) Snapshot() domain.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start は生成をバックグラウンドで開始します。
// 実行中の場合は警告を出して ErrAlreadyRunning を返し、何も変更しません。
// サインインしていない場合は通信せずに error 状態へ遷移します。
// ctx の値は引き継ぎますが、キャンセルは引き継ぎません。中断には Reset を使います。
func (p *Pipeline) Start(ctx context.Context, params domain.StoryGenerationParams) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.IsBusy() {
		slog.WarnContext(ctx, "生成の実行中に開始要求がありました。無視します", "status", p.state.Status())
		return ErrAlreadyRunning
	}

	principal, ok := p.deps.Principal.Principal()
	if !ok {
		p.setLocked(domain.State{Phase: domain.Failed{Message: domain.MessageSignInRequired}})
		p.deps.Metrics.RunFinished(string(domain.StatusError))
		slog.WarnContext(ctx, "サインインしていないため生成を開始できません")
		return domain.ErrSignInRequired
	}

	p.seq++
	runCtx, cancel := context.WithCancel(domain.WithPrincipal(context.WithoutCancel(ctx), principal))
	r := &run{
		seq:       p.seq,
		id:        uuid.NewString(),
		principal: principal,
		params:    params,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	p.current = r

	p.setLocked(domain.State{
		Phase:    domain.GeneratingText{},
		Progress: progressStarted,
		Step:     "Writing the story",
	})

	slog.InfoContext(ctx, "物語生成を開始します", "run_id", r.id, "principal", principal.ID, "length", params.Length)
	go p.execute(runCtx, r)
	return nil
}

// Reset は実行中の生成を中断し、直ちに初期状態へ戻します。
// 通信中の呼び出しの完了は待ちません。その結果は破棄されます。
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r := p.current; r != nil {
		r.cancel()
		if p.state.IsBusy() {
			p.deps.Metrics.RunFinished(metrics.OutcomeCancelled)
			slog.Info("物語生成をキャンセルしました", "run_id", r.id, "status", p.state.Status())
		}
	}
	// 連番を進めて、中断した実行からの遅延更新を無効にする
	p.seq++
	p.current = nil
	p.setLocked(domain.IdleState())
}

// Cancel は Reset の別名です。
func (p *Pipeline) Cancel() {
	p.Reset()
}

// Wait は現在の実行のゴルーチンが終了するまで待ち、その時点の状態を返します。
// 実行がない場合は直ちに返ります。
func (p *Pipeline) Wait(ctx context.Context) (domain.State, error) {
	p.mu.Lock()
	r := p.current
	p.mu.Unlock()

	if r != nil {
		select {
		case <-r.done:
		case <-ctx.Done():
			return p.Snapshot(), ctx.Err()
		}
	}
	return p.Snapshot(), nil
}

// Generate は生成を開始して完了まで待つ同期版です。ctx がキャンセルされると Reset します。
func (p *Pipeline) Generate(ctx context.Context, params domain.StoryGenerationParams) (*domain.GeneratedStory, error) {
	if err := p.Start(ctx, params); err != nil {
		return nil, err
	}

	state, err := p.Wait(ctx)
	if err != nil {
		p.Reset()
		return nil, err
	}

	switch ph := state.Phase.(type) {
	case domain.Complete:
		return ph.Story(), nil
	case domain.Failed:
		return nil, errors.New(ph.Message)
	default:
		return nil, ErrCancelled
	}
}

// Subscribe は状態が更新されるたびにスナップショットを受け取るチャネルを返します。
// 受信が追いつかない場合は古いスナップショットを捨てて最新を残します。
// 返される関数で購読を解除するとチャネルは閉じられます。
func (p *Pipeline) Subscribe(buffer int) (<-chan domain.State, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan domain.State, buffer)

	p.mu.Lock()
	p.subscribers[ch] = struct{}{}
	ch <- p.state
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.subscribers, ch)
			close(ch)
		})
	}
}

// setLocked は状態を丸ごと置き換えて購読者に配信します。p.mu を保持して呼び出します。
func (p *Pipeline) setLocked(s domain.State) {
	p.state = s
	for ch := range p.subscribers {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

// update は実行 r がまだ有効な場合のみ状態を更新します。
// 進捗率は実行内で減少せず、100 は完了状態にだけ許されます。
func (p *Pipeline) update(r *run, fn func(domain.State) domain.State) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != r || p.seq != r.seq {
		return false
	}

	prev := p.state
	next := fn(prev)
	if next.Progress < prev.Progress {
		next.Progress = prev.Progress
	}
	if _, ok := next.Phase.(domain.Complete); ok {
		next.Progress = progressComplete
	} else if next.Progress >= progressComplete {
		next.Progress = progressComplete - 1
	}
	p.setLocked(next)
	return true
}
