package runner

import (
	"context"

	"github.com/shouni/go-story-kit/pkg/domain"
	"github.com/shouni/go-story-kit/pkg/publisher"
)

// PublisherRunner はパブリッシュ処理のインターフェースです。
type PublisherRunner interface {
	Run(ctx context.Context, story *domain.GeneratedStory) (publisher.PublishResult, error)
}

// DefaultPublisherRunner は pkg/publisher を利用した標準実装です。
type DefaultPublisherRunner struct {
	outputDir string
	publisher *publisher.StoryPublisher
}

func NewDefaultPublisherRunner(outputDir string, pub *publisher.StoryPublisher) *DefaultPublisherRunner {
	return &DefaultPublisherRunner{
		outputDir: outputDir,
		publisher: pub,
	}
}

func (pr *DefaultPublisherRunner) Run(ctx context.Context, story *domain.GeneratedStory) (publisher.PublishResult, error) {
	return pr.publisher.Publish(ctx, story, publisher.Options{OutputDir: pr.outputDir})
}
