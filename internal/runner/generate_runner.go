package runner

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/shouni/go-story-kit/pkg/domain"
	"github.com/shouni/go-story-kit/pkg/pipeline"
)

// GenerateRunner は物語生成を1回実行するインターフェースなのだ。
type GenerateRunner interface {
	Run(ctx context.Context, params domain.StoryGenerationParams) (*domain.GeneratedStory, error)
}

// StoryGenerateRunner はパイプラインを同期的に実行し、進捗を out に表示します。
type StoryGenerateRunner struct {
	pipeline *pipeline.Pipeline
	out      io.Writer
}

func NewStoryGenerateRunner(p *pipeline.Pipeline, out io.Writer) *StoryGenerateRunner {
	if out == nil {
		out = io.Discard
	}
	return &StoryGenerateRunner{pipeline: p, out: out}
}

// Run は生成を実行します。ctx がキャンセルされると生成を中断します。
func (r *StoryGenerateRunner) Run(ctx context.Context, params domain.StoryGenerationParams) (*domain.GeneratedStory, error) {
	states, unsubscribe := r.pipeline.Subscribe(32)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.report(states)
	}()

	story, err := r.pipeline.Generate(ctx, params)
	unsubscribe()
	wg.Wait()

	if err != nil {
		return nil, fmt.Errorf("物語の生成に失敗したのだ: %w", err)
	}
	return story, nil
}

// report は状態の変化を1行ずつ表示します。同じステップの繰り返しは省きます。
func (r *StoryGenerateRunner) report(states <-chan domain.State) {
	last := ""
	for s := range states {
		if s.Status() == domain.StatusIdle {
			continue
		}
		line := fmt.Sprintf("[%3d%%] %s", s.Progress, s.Step)
		if msg := s.ErrorMessage(); msg != "" {
			line = fmt.Sprintf("[%3d%%] error: %s", s.Progress, msg)
		}
		if line == last {
			continue
		}
		last = line
		fmt.Fprintln(r.out, line)
	}
}
