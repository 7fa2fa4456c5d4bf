package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shouni/go-story-kit/pkg/client"
	"github.com/shouni/go-story-kit/pkg/domain"
	"github.com/shouni/go-story-kit/pkg/parser"
)

const twoPageStory = "The Lost Fox\nMilo woke up in the forest.\n---PAGE---\nMilo found his way home."

// fakeClient は呼び出し回数を数える GenerationClient です。
type fakeClient struct {
	mu sync.Mutex

	text         string
	textErr      error
	imageEmpty   bool
	imageErrs    int // 先頭から何回画像生成を失敗させるか
	speechErr    error
	decrementErr error

	// blockText / blockImage が設定されている場合、呼び出し時に通知して ctx が終わるか解放されるまで待つ
	blockText  chan struct{}
	blockImage chan struct{}
	entered    chan struct{}

	textCalls, imageCalls, speechCalls, decrementCalls int
	speechTexts                                        []string
	imageTimes                                         []time.Time
}

func (f *fakeClient) GenerateText(ctx context.Context, prompt string) (client.TextResult, error) {
	f.mu.Lock()
	f.textCalls++
	block := f.blockText
	f.mu.Unlock()

	if block != nil {
		f.entered <- struct{}{}
		select {
		case <-block:
		case <-ctx.Done():
			return client.TextResult{}, ctx.Err()
		}
	}
	if f.textErr != nil {
		return client.TextResult{}, f.textErr
	}
	return client.TextResult{Success: true, Story: f.text, PromptTokens: 10, TotalTokens: 50}, nil
}

func (f *fakeClient) GenerateImage(ctx context.Context, prompt string) (client.MediaResult, error) {
	f.mu.Lock()
	f.imageCalls++
	f.imageTimes = append(f.imageTimes, time.Now())
	n := f.imageCalls
	block := f.blockImage
	f.mu.Unlock()

	if block != nil {
		f.entered <- struct{}{}
		select {
		case <-block:
		case <-ctx.Done():
			return client.MediaResult{}, ctx.Err()
		}
	}
	if n <= f.imageErrs {
		return client.MediaResult{}, errors.New("一時的な失敗")
	}
	if f.imageEmpty {
		return client.MediaResult{Success: true}, nil
	}
	return client.MediaResult{Success: true, Base64: "aW1n", MIMEType: "image/png"}, nil
}

func (f *fakeClient) GenerateSpeech(_ context.Context, req client.SpeechRequest) (client.MediaResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.speechCalls++
	f.speechTexts = append(f.speechTexts, req.Text)
	if f.speechErr != nil {
		return client.MediaResult{}, f.speechErr
	}
	return client.MediaResult{Success: true, Base64: "c291bmQ=", MIMEType: "audio/mpeg"}, nil
}

func (f *fakeClient) DecrementCredit(context.Context) (client.CreditResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decrementCalls++
	if f.decrementErr != nil {
		return client.CreditResult{}, f.decrementErr
	}
	return client.CreditResult{Success: true, RemainingUses: 2}, nil
}

func (f *fakeClient) counts() (text, image, speech, decrement int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.textCalls, f.imageCalls, f.speechCalls, f.decrementCalls
}

type fakeBlobs struct {
	mu        sync.Mutex
	uploadErr error
	uploads   int
	owners    []string
	audio     int
}

func (b *fakeBlobs) Upload(_ context.Context, _ string, ownerID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploads++
	if b.uploadErr != nil {
		return "", b.uploadErr
	}
	b.owners = append(b.owners, ownerID)
	return fmt.Sprintf("https://media.example/images/%s/%d.png", ownerID, len(b.owners)), nil
}

func (b *fakeBlobs) PersistAudio(context.Context, string, string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.audio++
	return fmt.Sprintf("https://media.example/audio/%d.mp3", b.audio), nil
}

type fakePrompts struct{}

func (fakePrompts) BuildStoryPrompt(params domain.StoryGenerationParams, delimiter string) (string, error) {
	return fmt.Sprintf("%s (%d pages, %s)", params.Prompt, params.Length.PageCount(), delimiter), nil
}

func (fakePrompts) BuildImagePrompt(mainCharacter, location, pageText string) (string, error) {
	return mainCharacter + " in " + location + ": " + pageText, nil
}

func testConfig() Config {
	return Config{
		ImageAttempts:  3,
		ImageBackoff:   NoDelay,
		InterPageDelay: NoDelay,
		MaxSpeechChars: DefaultMaxSpeechChars,
		CallTimeout:    5 * time.Second,
		FallbackTitle:  DefaultFallbackTitle,
	}
}

func newTestPipeline(t *testing.T, c *fakeClient, signedIn bool) (*Pipeline, *fakeBlobs) {
	t.Helper()
	return newTestPipelineWith(t, c, &fakeBlobs{}, testConfig(), signedIn)
}

func newTestPipelineWith(t *testing.T, c *fakeClient, blobs *fakeBlobs, cfg Config, signedIn bool) (*Pipeline, *fakeBlobs) {
	t.Helper()
	deps := Dependencies{
		Client:   c,
		Uploader: blobs,
		Audio:    blobs,
		Parser:   parser.NewPageParser(parser.DefaultOptions()),
		Prompts:  fakePrompts{},
	}
	if signedIn {
		deps.Principal = StaticPrincipal(domain.Principal{ID: "user-1"})
	}
	p, err := New(deps, cfg)
	if err != nil {
		t.Fatalf("New に失敗したのだ: %v", err)
	}
	return p, blobs
}

func testParams() domain.StoryGenerationParams {
	return domain.StoryGenerationParams{
		Prompt:        "a fox who gets lost",
		Length:        domain.LengthShort,
		MainCharacter: "Milo the fox",
		Location:      "a pine forest",
		Topic:         "Milo Finds His Way",
	}
}

func TestPipeline_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("全フェーズが成功すると完成した物語を返すのだ", func(t *testing.T) {
		c := &fakeClient{text: twoPageStory}
		p, blobs := newTestPipeline(t, c, true)

		story, err := p.Generate(ctx, testParams())
		if err != nil {
			t.Fatalf("予期しないエラーなのだ: %v", err)
		}
		if story.Title != "Milo Finds His Way" {
			t.Errorf("タイトルが違うのだ: %q", story.Title)
		}
		if story.FullContent != twoPageStory {
			t.Errorf("本文は生のテキストのはずなのだ: %q", story.FullContent)
		}
		if len(story.Pages) != 2 {
			t.Fatalf("2ページのはずなのだ: %d", len(story.Pages))
		}
		for i, page := range story.Pages {
			if page.Number != i+1 {
				t.Errorf("ページ番号が連続していないのだ: %d", page.Number)
			}
			if !page.HasImage() || !page.HasAudio() {
				t.Errorf("画像と音声があるはずなのだ: %+v", page)
			}
		}
		if story.Pages[0].Content != "Milo woke up in the forest." {
			t.Errorf("タイトル行が除去されていないのだ: %q", story.Pages[0].Content)
		}
		if !strings.HasPrefix(story.Pages[1].ImagePrompt, "Milo the fox in a pine forest") {
			t.Errorf("画像プロンプトが違うのだ: %q", story.Pages[1].ImagePrompt)
		}

		text, image, speech, dec := c.counts()
		if text != 1 || image != 2 || speech != 2 || dec != 1 {
			t.Errorf("呼び出し回数が違うのだ: text=%d image=%d speech=%d decrement=%d", text, image, speech, dec)
		}
		for _, owner := range blobs.owners {
			if owner != "user-1" {
				t.Errorf("アップロードの所有者が違うのだ: %s", owner)
			}
		}

		s := p.Snapshot()
		if s.Status() != domain.StatusComplete || s.Progress != 100 {
			t.Errorf("完了状態のはずなのだ: %s %d", s.Status(), s.Progress)
		}
		if s.ImageProgress != (domain.Counter{Current: 2, Total: 2}) || s.AudioProgress != (domain.Counter{Current: 2, Total: 2}) {
			t.Errorf("カウンタが違うのだ: %+v %+v", s.ImageProgress, s.AudioProgress)
		}
	})

	t.Run("トピックが空ならフォールバックのタイトルを使うのだ", func(t *testing.T) {
		c := &fakeClient{text: twoPageStory}
		p, _ := newTestPipeline(t, c, true)

		params := testParams()
		params.Topic = "  "
		story, err := p.Generate(ctx, params)
		if err != nil {
			t.Fatalf("予期しないエラーなのだ: %v", err)
		}
		if story.Title != DefaultFallbackTitle {
			t.Errorf("タイトルが違うのだ: %q", story.Title)
		}
	})

	t.Run("画像がソフト失敗し続けても画像なしで完了するのだ", func(t *testing.T) {
		c := &fakeClient{text: twoPageStory, imageEmpty: true}
		p, blobs := newTestPipeline(t, c, true)

		story, err := p.Generate(ctx, testParams())
		if err != nil {
			t.Fatalf("予期しないエラーなのだ: %v", err)
		}
		for _, page := range story.Pages {
			if page.ImageURL != nil {
				t.Errorf("ImageURL は nil のはずなのだ: %v", *page.ImageURL)
			}
		}
		if _, image, _, _ := c.counts(); image != 6 {
			t.Errorf("1ページにつき3回試行するはずなのだ: %d", image)
		}
		if len(blobs.owners) != 0 {
			t.Errorf("空の応答はアップロードしないのだ: %d", len(blobs.owners))
		}
		if len(story.DegradedPages()) != 2 {
			t.Errorf("2ページが劣化しているはずなのだ: %v", story.DegradedPages())
		}
	})

	t.Run("画像の一時的な失敗は再試行で回復するのだ", func(t *testing.T) {
		c := &fakeClient{text: twoPageStory, imageErrs: 2}
		p, _ := newTestPipeline(t, c, true)

		story, err := p.Generate(ctx, testParams())
		if err != nil {
			t.Fatalf("予期しないエラーなのだ: %v", err)
		}
		if !story.Pages[0].HasImage() || !story.Pages[1].HasImage() {
			t.Error("両方のページに画像があるはずなのだ")
		}
		if _, image, _, _ := c.counts(); image != 4 {
			t.Errorf("1ページ目に3回、2ページ目に1回のはずなのだ: %d", image)
		}
	})

	t.Run("音声の失敗は再試行せずに続行するのだ", func(t *testing.T) {
		c := &fakeClient{text: twoPageStory, speechErr: errors.New("tts down")}
		p, _ := newTestPipeline(t, c, true)

		story, err := p.Generate(ctx, testParams())
		if err != nil {
			t.Fatalf("予期しないエラーなのだ: %v", err)
		}
		for _, page := range story.Pages {
			if page.AudioURL != nil {
				t.Errorf("AudioURL は nil のはずなのだ: %v", *page.AudioURL)
			}
			if !page.HasImage() {
				t.Error("画像は残っているはずなのだ")
			}
		}
		if _, _, speech, _ := c.counts(); speech != 2 {
			t.Errorf("音声は1ページにつき1回だけのはずなのだ: %d", speech)
		}
	})

	t.Run("クレジット減算の失敗は完了を妨げないのだ", func(t *testing.T) {
		c := &fakeClient{text: twoPageStory, decrementErr: errors.New("ledger offline")}
		p, _ := newTestPipeline(t, c, true)

		story, err := p.Generate(ctx, testParams())
		if err != nil || story == nil {
			t.Fatalf("完了するはずなのだ: %v", err)
		}
		if p.Snapshot().Status() != domain.StatusComplete {
			t.Errorf("完了状態のはずなのだ: %s", p.Snapshot().Status())
		}
	})

	t.Run("本文生成の失敗はマップされたメッセージで失敗するのだ", func(t *testing.T) {
		c := &fakeClient{textErr: domain.NewRemoteError(domain.CodeResourceExhausted, "", errors.New("quota"))}
		p, _ := newTestPipeline(t, c, true)

		story, err := p.Generate(ctx, testParams())
		if err == nil || story != nil {
			t.Fatalf("失敗するはずなのだ: %v", story)
		}
		s := p.Snapshot()
		if s.Status() != domain.StatusError || s.ErrorMessage() != domain.MessageOutOfCredits {
			t.Errorf("状態が違うのだ: %s %q", s.Status(), s.ErrorMessage())
		}
		if s.Story() != nil {
			t.Error("失敗時に物語を公開してはいけないのだ")
		}
		if _, image, speech, dec := c.counts(); image+speech+dec != 0 {
			t.Error("後続のフェーズを呼んではいけないのだ")
		}
	})

	t.Run("空の本文は既定のメッセージで失敗するのだ", func(t *testing.T) {
		c := &fakeClient{text: "   "}
		p, _ := newTestPipeline(t, c, true)

		if _, err := p.Generate(ctx, testParams()); err == nil {
			t.Fatal("失敗するはずなのだ")
		}
		if msg := p.Snapshot().ErrorMessage(); msg != domain.MessageTextUnavailable {
			t.Errorf("メッセージが違うのだ: %q", msg)
		}
	})

	t.Run("ページに分割できない本文は失敗するのだ", func(t *testing.T) {
		c := &fakeClient{text: "---PAGE---\n \n---PAGE---"}
		p, _ := newTestPipeline(t, c, true)

		story, err := p.Generate(ctx, testParams())
		if err == nil || story != nil {
			t.Fatal("失敗するはずなのだ")
		}
		if p.Snapshot().Status() != domain.StatusError {
			t.Errorf("error 状態のはずなのだ: %s", p.Snapshot().Status())
		}
	})

	t.Run("未サインインでは通信せずに失敗するのだ", func(t *testing.T) {
		c := &fakeClient{text: twoPageStory}
		p, _ := newTestPipeline(t, c, false)

		_, err := p.Generate(ctx, testParams())
		if !errors.Is(err, domain.ErrSignInRequired) {
			t.Fatalf("ErrSignInRequired を期待したのだ: %v", err)
		}
		if msg := p.Snapshot().ErrorMessage(); msg != domain.MessageSignInRequired {
			t.Errorf("メッセージが違うのだ: %q", msg)
		}
		if text, image, speech, dec := c.counts(); text+image+speech+dec != 0 {
			t.Error("リモート呼び出しをしてはいけないのだ")
		}
	})

	t.Run("音声に渡す本文は文字数で切り詰めるのだ", func(t *testing.T) {
		long := strings.Repeat("ねこ", 3000)
		c := &fakeClient{text: long + "\n---PAGE---\nおわり"}
		p, _ := newTestPipeline(t, c, true)

		if _, err := p.Generate(ctx, testParams()); err != nil {
			t.Fatalf("予期しないエラーなのだ: %v", err)
		}
		if n := len([]rune(c.speechTexts[0])); n != DefaultMaxSpeechChars {
			t.Errorf("切り詰め後の文字数が違うのだ: %d", n)
		}
		if c.speechTexts[1] != "おわり" {
			t.Errorf("短い本文はそのままのはずなのだ: %q", c.speechTexts[1])
		}
	})
}

func TestPipeline_StartWhileRunning(t *testing.T) {
	c := &fakeClient{
		text:      twoPageStory,
		blockText: make(chan struct{}),
		entered:   make(chan struct{}, 1),
	}
	p, _ := newTestPipeline(t, c, true)

	if err := p.Start(context.Background(), testParams()); err != nil {
		t.Fatalf("1回目の Start は成功するはずなのだ: %v", err)
	}
	<-c.entered

	if err := p.Start(context.Background(), testParams()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("ErrAlreadyRunning を期待したのだ: %v", err)
	}
	if s := p.Snapshot(); s.Status() != domain.StatusGeneratingText {
		t.Errorf("実行中の状態は変わらないはずなのだ: %s", s.Status())
	}

	close(c.blockText)
	s, err := p.Wait(context.Background())
	if err != nil || s.Status() != domain.StatusComplete {
		t.Fatalf("完了するはずなのだ: %s %v", s.Status(), err)
	}
	if text, _, _, _ := c.counts(); text != 1 {
		t.Errorf("本文生成は1回だけのはずなのだ: %d", text)
	}
}

func TestPipeline_Reset(t *testing.T) {
	t.Run("画像生成中に中断すると以降の呼び出しをしないのだ", func(t *testing.T) {
		c := &fakeClient{
			text:       twoPageStory,
			blockImage: make(chan struct{}),
			entered:    make(chan struct{}, 1),
		}
		p, _ := newTestPipeline(t, c, true)

		if err := p.Start(context.Background(), testParams()); err != nil {
			t.Fatalf("Start に失敗したのだ: %v", err)
		}
		<-c.entered

		p.mu.Lock()
		r := p.current
		p.mu.Unlock()

		p.Cancel()
		if s := p.Snapshot(); s.Status() != domain.StatusIdle || s.Progress != 0 {
			t.Errorf("直ちに idle に戻るはずなのだ: %s %d", s.Status(), s.Progress)
		}

		select {
		case <-r.done:
		case <-time.After(5 * time.Second):
			t.Fatal("実行が終了しないのだ")
		}

		_, image, speech, dec := c.counts()
		if image != 1 || speech != 0 || dec != 0 {
			t.Errorf("中断後に呼び出してはいけないのだ: image=%d speech=%d decrement=%d", image, speech, dec)
		}
		if s := p.Snapshot(); s.Status() != domain.StatusIdle {
			t.Errorf("中断した実行が状態を書き換えたのだ: %s", s.Status())
		}
	})

	t.Run("中断後に新しい実行を開始できるのだ", func(t *testing.T) {
		c := &fakeClient{
			text:      twoPageStory,
			blockText: make(chan struct{}),
			entered:   make(chan struct{}, 1),
		}
		p, _ := newTestPipeline(t, c, true)

		if err := p.Start(context.Background(), testParams()); err != nil {
			t.Fatalf("Start に失敗したのだ: %v", err)
		}
		<-c.entered
		p.Reset()

		c.mu.Lock()
		c.blockText = nil
		c.mu.Unlock()

		story, err := p.Generate(context.Background(), testParams())
		if err != nil || story == nil {
			t.Fatalf("2回目の実行は完了するはずなのだ: %v", err)
		}
	})

	t.Run("完了後の Reset は idle に戻すのだ", func(t *testing.T) {
		c := &fakeClient{text: twoPageStory}
		p, _ := newTestPipeline(t, c, true)

		if _, err := p.Generate(context.Background(), testParams()); err != nil {
			t.Fatalf("予期しないエラーなのだ: %v", err)
		}
		p.Reset()
		if s := p.Snapshot(); s.Status() != domain.StatusIdle || s.Story() != nil {
			t.Errorf("idle に戻るはずなのだ: %s", s.Status())
		}
	})
}

func TestPipeline_Subscribe(t *testing.T) {
	c := &fakeClient{text: twoPageStory}
	p, _ := newTestPipeline(t, c, true)

	states, unsubscribe := p.Subscribe(64)
	if _, err := p.Generate(context.Background(), testParams()); err != nil {
		t.Fatalf("予期しないエラーなのだ: %v", err)
	}
	unsubscribe()

	var got []domain.State
	for s := range states {
		got = append(got, s)
	}
	if len(got) < 2 || got[0].Status() != domain.StatusIdle {
		t.Fatalf("最初のスナップショットは idle のはずなのだ: %d", len(got))
	}

	prev := 0
	var seen []domain.Status
	for _, s := range got[1:] {
		if s.Progress < prev {
			t.Errorf("進捗率が減少したのだ: %d -> %d", prev, s.Progress)
		}
		prev = s.Progress
		if (s.Progress == 100) != (s.Status() == domain.StatusComplete) {
			t.Errorf("100 は完了状態だけのはずなのだ: %s %d", s.Status(), s.Progress)
		}
		if len(seen) == 0 || seen[len(seen)-1] != s.Status() {
			seen = append(seen, s.Status())
		}
	}

	want := []domain.Status{
		domain.StatusGeneratingText,
		domain.StatusGeneratingImages,
		domain.StatusGeneratingAudio,
		domain.StatusFinalizing,
		domain.StatusComplete,
	}
	if fmt.Sprint(seen) != fmt.Sprint(want) {
		t.Errorf("フェーズの順序が違うのだ: %v", seen)
	}
}

func TestPipeline_ImagePhase(t *testing.T) {
	t.Run("ページ間の待機は2ページ目以降だけなのだ", func(t *testing.T) {
		const delay = 200 * time.Millisecond
		cfg := testConfig()
		cfg.InterPageDelay = delay

		c := &fakeClient{text: twoPageStory}
		p, _ := newTestPipelineWith(t, c, &fakeBlobs{}, cfg, true)

		started := time.Now()
		if _, err := p.Generate(context.Background(), testParams()); err != nil {
			t.Fatalf("予期しないエラーなのだ: %v", err)
		}

		c.mu.Lock()
		times := append([]time.Time(nil), c.imageTimes...)
		c.mu.Unlock()
		if len(times) != 2 {
			t.Fatalf("画像生成は2回のはずなのだ: %d", len(times))
		}
		if first := times[0].Sub(started); first >= delay {
			t.Errorf("1ページ目の前に待機してはいけないのだ: %v", first)
		}
		if gap := times[1].Sub(times[0]); gap < delay {
			t.Errorf("2ページ目の前に待機するはずなのだ: %v", gap)
		}
	})

	t.Run("ページ間の待機中に中断すると次の画像を生成しないのだ", func(t *testing.T) {
		cfg := testConfig()
		cfg.InterPageDelay = 5 * time.Second

		c := &fakeClient{text: twoPageStory}
		p, _ := newTestPipelineWith(t, c, &fakeBlobs{}, cfg, true)

		states, unsubscribe := p.Subscribe(16)
		defer unsubscribe()

		if err := p.Start(context.Background(), testParams()); err != nil {
			t.Fatalf("Start に失敗したのだ: %v", err)
		}
		p.mu.Lock()
		r := p.current
		p.mu.Unlock()

		timeout := time.After(5 * time.Second)
		for waiting := true; waiting; {
			select {
			case s := <-states:
				waiting = s.ImageProgress.Current < 1
			case <-timeout:
				t.Fatal("1ページ目の画像が完了しないのだ")
			}
		}

		p.Cancel()
		select {
		case <-r.done:
		case <-time.After(time.Second):
			t.Fatal("待機中の中断がすぐに反映されないのだ")
		}

		if _, image, speech, _ := c.counts(); image != 1 || speech != 0 {
			t.Errorf("中断後に生成してはいけないのだ: image=%d speech=%d", image, speech)
		}
		if s := p.Snapshot(); s.Status() != domain.StatusIdle {
			t.Errorf("idle のままのはずなのだ: %s", s.Status())
		}
	})

	t.Run("アップロードの失敗も1回の試行として数えるのだ", func(t *testing.T) {
		c := &fakeClient{text: twoPageStory}
		blobs := &fakeBlobs{uploadErr: &domain.StorageError{Op: "upload", Err: errors.New("書き込みに失敗")}}
		p, _ := newTestPipelineWith(t, c, blobs, testConfig(), true)

		story, err := p.Generate(context.Background(), testParams())
		if err != nil {
			t.Fatalf("アップロードの失敗は致命的ではないのだ: %v", err)
		}
		if s := p.Snapshot(); s.Status() != domain.StatusComplete {
			t.Errorf("完了するはずなのだ: %s", s.Status())
		}
		for _, page := range story.Pages {
			if page.ImageURL != nil {
				t.Errorf("ページ %d の ImageURL は nil のはずなのだ: %s", page.Number, *page.ImageURL)
			}
		}

		_, image, _, _ := c.counts()
		blobs.mu.Lock()
		uploads := blobs.uploads
		blobs.mu.Unlock()
		if image != 6 || uploads != 6 {
			t.Errorf("1ページあたり3回ずつ試行するはずなのだ: image=%d upload=%d", image, uploads)
		}
	})
}

func TestConfig_WithDefaults(t *testing.T) {
	t.Run("ゼロ値はデフォルトの待機時間になるのだ", func(t *testing.T) {
		c := Config{}.withDefaults()
		if c.ImageBackoff != DefaultImageBackoff || c.InterPageDelay != DefaultInterPageDelay {
			t.Errorf("デフォルトの待機時間を期待したのだ: %s %s", c.ImageBackoff, c.InterPageDelay)
		}
		if c.ImageAttempts != DefaultImageAttempts || c.FallbackTitle != DefaultFallbackTitle {
			t.Errorf("デフォルト値が入っていないのだ: %+v", c)
		}
	})

	t.Run("NoDelay は待機なしになるのだ", func(t *testing.T) {
		c := Config{ImageBackoff: NoDelay, InterPageDelay: NoDelay}.withDefaults()
		if c.ImageBackoff != 0 || c.InterPageDelay != 0 {
			t.Errorf("待機なしを期待したのだ: %s %s", c.ImageBackoff, c.InterPageDelay)
		}
	})

	t.Run("指定した待機時間はそのまま使うのだ", func(t *testing.T) {
		c := Config{ImageBackoff: time.Second, InterPageDelay: 3 * time.Second}.withDefaults()
		if c.ImageBackoff != time.Second || c.InterPageDelay != 3*time.Second {
			t.Errorf("指定値が変わったのだ: %s %s", c.ImageBackoff, c.InterPageDelay)
		}
	})
}

func TestBandProgress(t *testing.T) {
	tests := []struct {
		done, total, want int
	}{
		{0, 2, 15},
		{1, 2, 35},
		{2, 2, 55},
		{0, 0, 55},
	}
	for _, tt := range tests {
		if got := bandProgress(progressTextDone, progressImagesEnd, tt.done, tt.total); got != tt.want {
			t.Errorf("bandProgress(%d, %d) = %d, want %d", tt.done, tt.total, got, tt.want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("あいうえお", 3); got != "あいう" {
		t.Errorf("got %q", got)
	}
	if got := truncateRunes("abc", 3); got != "abc" {
		t.Errorf("got %q", got)
	}
	if got := truncateRunes("abc", 0); got != "abc" {
		t.Errorf("got %q", got)
	}
}
