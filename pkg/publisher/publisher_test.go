package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/shouni/go-story-kit/pkg/domain"
)

type memoryWriter struct {
	mu    sync.Mutex
	files map[string]string
	types map[string]string
	err   error
}

func newMemoryWriter() *memoryWriter {
	return &memoryWriter{files: map[string]string{}, types: map[string]string{}}
}

func (w *memoryWriter) Write(_ context.Context, path string, r io.Reader, contentType string) error {
	if w.err != nil {
		return w.err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.files[path] = buf.String()
	w.types[path] = contentType
	return nil
}

func ptr(s string) *string { return &s }

func sampleStory() *domain.GeneratedStory {
	return &domain.GeneratedStory{
		Title:       "Milo <Finds> His Way",
		FullContent: "raw",
		Pages: []domain.Page{
			{Number: 1, Content: "Milo woke up.", ImageURL: ptr("https://media.example/1.png"), AudioURL: ptr("https://media.example/1.mp3")},
			{Number: 2, Content: "Milo went home."},
		},
	}
}

func TestBuildMarkdown(t *testing.T) {
	md := BuildMarkdown(sampleStory())

	for _, want := range []string{
		"# Milo <Finds> His Way\n",
		"## Page 1\n\n![Page 1](https://media.example/1.png)\n\nMilo woke up.\n\n[Listen to page 1](https://media.example/1.mp3)",
		"## Page 2\n\nMilo went home.\n",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown に %q が含まれていないのだ:\n%s", want, md)
		}
	}
	if strings.Count(md, "![") != 1 {
		t.Error("画像のないページに画像を出力してはいけないのだ")
	}
}

func TestStoryPublisher_Publish(t *testing.T) {
	t.Run("3つのファイルを書き出すのだ", func(t *testing.T) {
		w := newMemoryWriter()
		p := NewStoryPublisher(w, nil)
		dir := filepath.Join("out", "story-1")

		res, err := p.Publish(context.Background(), sampleStory(), Options{OutputDir: dir})
		if err != nil {
			t.Fatalf("予期しないエラーなのだ: %v", err)
		}
		if res.MarkdownPath != filepath.Join(dir, "story.md") || res.JSONPath != filepath.Join(dir, "story.json") {
			t.Errorf("パスが違うのだ: %+v", res)
		}

		html := w.files[res.HTMLPath]
		if !strings.Contains(html, `<img src="https://media.example/1.png" alt="Page 1">`) {
			t.Errorf("画像が HTML に変換されていないのだ:\n%s", html)
		}
		if !strings.Contains(html, "<title>Milo &lt;Finds&gt; His Way</title>") {
			t.Errorf("タイトルがエスケープされていないのだ:\n%s", html)
		}
		if w.types[res.HTMLPath] != contentTypeHTML {
			t.Errorf("Content-Type が違うのだ: %s", w.types[res.HTMLPath])
		}

		var decoded domain.GeneratedStory
		if err := json.Unmarshal([]byte(w.files[res.JSONPath]), &decoded); err != nil {
			t.Fatalf("JSON が不正なのだ: %v", err)
		}
		if len(decoded.Pages) != 2 || decoded.Pages[1].ImageURL != nil {
			t.Errorf("JSON の内容が違うのだ: %+v", decoded)
		}
	})

	t.Run("gs:// の出力先も扱えるのだ", func(t *testing.T) {
		w := newMemoryWriter()
		res, err := NewStoryPublisher(w, nil).Publish(context.Background(), sampleStory(), Options{OutputDir: "gs://bucket/stories/1"})
		if err != nil {
			t.Fatalf("予期しないエラーなのだ: %v", err)
		}
		if res.MarkdownPath != "gs://bucket/stories/1/story.md" {
			t.Errorf("パスが違うのだ: %s", res.MarkdownPath)
		}
	})

	t.Run("書き込みの失敗を返すのだ", func(t *testing.T) {
		w := newMemoryWriter()
		w.err = errors.New("disk full")
		if _, err := NewStoryPublisher(w, nil).Publish(context.Background(), sampleStory(), Options{OutputDir: "out"}); err == nil {
			t.Error("エラーになるはずなのだ")
		}
	})

	t.Run("nil の物語は拒否するのだ", func(t *testing.T) {
		if _, err := NewStoryPublisher(newMemoryWriter(), nil).Publish(context.Background(), nil, Options{}); !errors.Is(err, domain.ErrNilStory) {
			t.Errorf("ErrNilStory を期待したのだ: %v", err)
		}
	})
}
