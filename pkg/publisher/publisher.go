// Package publisher は完成した物語を Markdown・HTML・JSON として書き出します。
package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/sync/errgroup"

	"github.com/shouni/go-story-kit/pkg/asset"
	"github.com/shouni/go-story-kit/pkg/domain"
	"github.com/shouni/go-story-kit/pkg/storage"
)

const (
	defaultStoryHTML = "story.html"

	contentTypeMarkdown = "text/markdown; charset=utf-8"
	contentTypeHTML     = "text/html; charset=utf-8"
	contentTypeJSON     = "application/json"
)

// Options はパブリッシュ動作を制御する設定項目です。
type Options struct {
	OutputDir string
}

// PublishResult はパブリッシュ処理の結果として生成されたファイルの情報を保持します。
type PublishResult struct {
	MarkdownPath string
	HTMLPath     string
	JSONPath     string
}

// StoryPublisher は成果物の永続化とフォーマット変換を担います。
type StoryPublisher struct {
	writer storage.OutputWriter
	md     goldmark.Markdown
}

// NewStoryPublisher は StoryPublisher を生成します。md が nil の場合は goldmark の既定設定を使います。
func NewStoryPublisher(writer storage.OutputWriter, md goldmark.Markdown) *StoryPublisher {
	if md == nil {
		md = goldmark.New()
	}
	return &StoryPublisher{writer: writer, md: md}
}

// Publish は Markdown の構築、HTML 変換、JSON 化を行い、3つのファイルを並行して書き出すのだ。
func (p *StoryPublisher) Publish(ctx context.Context, story *domain.GeneratedStory, opts Options) (PublishResult, error) {
	var result PublishResult
	if story == nil {
		return result, domain.ErrNilStory
	}

	var err error
	if result.MarkdownPath, err = asset.ResolveOutputPath(opts.OutputDir, asset.DefaultStoryMarkdown); err != nil {
		return result, err
	}
	if result.HTMLPath, err = asset.ResolveOutputPath(opts.OutputDir, defaultStoryHTML); err != nil {
		return result, err
	}
	if result.JSONPath, err = asset.ResolveOutputPath(opts.OutputDir, asset.DefaultStoryJSON); err != nil {
		return result, err
	}

	markdown := BuildMarkdown(story)
	page, err := p.renderHTML(story.Title, markdown)
	if err != nil {
		return result, err
	}
	data, err := json.MarshalIndent(story, "", "  ")
	if err != nil {
		return result, fmt.Errorf("JSON の変換に失敗しました: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	write := func(path string, body []byte, contentType string) {
		g.Go(func() error {
			if err := p.writer.Write(gctx, path, bytes.NewReader(body), contentType); err != nil {
				return fmt.Errorf("%s の書き込みに失敗しました: %w", path, err)
			}
			return nil
		})
	}
	write(result.MarkdownPath, []byte(markdown), contentTypeMarkdown)
	write(result.HTMLPath, page, contentTypeHTML)
	write(result.JSONPath, data, contentTypeJSON)
	if err := g.Wait(); err != nil {
		return result, err
	}

	slog.InfoContext(ctx, "物語を書き出しました",
		"title", story.Title,
		"markdown", result.MarkdownPath,
		"html", result.HTMLPath)
	return result, nil
}

// BuildMarkdown は物語を Markdown に変換します。画像と音声がないページは本文だけを出力します。
func BuildMarkdown(story *domain.GeneratedStory) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", story.Title)

	for _, page := range story.Pages {
		fmt.Fprintf(&sb, "## Page %d\n\n", page.Number)
		if page.HasImage() {
			fmt.Fprintf(&sb, "![Page %d](%s)\n\n", page.Number, *page.ImageURL)
		}
		sb.WriteString(strings.TrimSpace(page.Content))
		sb.WriteString("\n\n")
		if page.HasAudio() {
			fmt.Fprintf(&sb, "[Listen to page %d](%s)\n\n", page.Number, *page.AudioURL)
		}
	}
	return sb.String()
}
