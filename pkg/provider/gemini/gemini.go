// Package gemini は google.golang.org/genai を使ったテキスト・画像・音声生成アダプターです。
package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/shouni/go-story-kit/pkg/client"
	"github.com/shouni/go-story-kit/pkg/domain"
)

const (
	DefaultTextModel   = "gemini-2.5-flash"
	DefaultImageModel  = "gemini-2.5-flash-image"
	DefaultSpeechModel = "gemini-2.5-flash-preview-tts"
	DefaultVoice       = "Kore"
	DefaultTemperature = 0.9
)

// Config は Gemini アダプターの設定です。
type Config struct {
	APIKey      string
	TextModel   string
	ImageModel  string
	SpeechModel string
	Voice       string
	Temperature float32
}

// DefaultConfig は推奨されるデフォルト設定を返すのだ。
func DefaultConfig() Config {
	return Config{
		TextModel:   DefaultTextModel,
		ImageModel:  DefaultImageModel,
		SpeechModel: DefaultSpeechModel,
		Voice:       DefaultVoice,
		Temperature: DefaultTemperature,
	}
}

// contentGenerator は genai.Models のうち利用するメソッドだけを切り出したものです。
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client は client.TextGenerator / ImageGenerator / SpeechGenerator を実装します。
type Client struct {
	models contentGenerator
	cfg    Config
}

// New は API キーから genai クライアントを初期化します。
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY が設定されていません")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai クライアントの初期化に失敗しました: %w", err)
	}
	return newWithModels(gc.Models, cfg), nil
}

func newWithModels(models contentGenerator, cfg Config) *Client {
	def := DefaultConfig()
	if cfg.TextModel == "" {
		cfg.TextModel = def.TextModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = def.ImageModel
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = def.SpeechModel
	}
	if cfg.Voice == "" {
		cfg.Voice = def.Voice
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = def.Temperature
	}
	return &Client{models: models, cfg: cfg}
}

// GenerateText は物語本文を生成します。
func (c *Client) GenerateText(ctx context.Context, prompt string) (client.TextResult, error) {
	resp, err := c.models.GenerateContent(ctx, c.cfg.TextModel, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.cfg.Temperature),
	})
	if err != nil {
		return client.TextResult{}, mapError(err)
	}

	text := strings.TrimSpace(collectText(resp))
	res := client.TextResult{Success: text != "", Story: text}
	if resp.UsageMetadata != nil {
		res.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		res.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	slog.DebugContext(ctx, "テキスト生成が完了しました", "model", c.cfg.TextModel, "total_tokens", res.TotalTokens)
	return res, nil
}

// GenerateImage は画像を生成します。画像パートがない応答はソフト失敗として返します。
func (c *Client) GenerateImage(ctx context.Context, prompt string) (client.MediaResult, error) {
	resp, err := c.models.GenerateContent(ctx, c.cfg.ImageModel, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
	})
	if err != nil {
		return client.MediaResult{}, mapError(err)
	}

	blob := firstInlineData(resp, "image/")
	if blob == nil {
		return client.MediaResult{Success: true}, nil
	}
	return client.MediaResult{
		Success:  true,
		Base64:   base64.StdEncoding.EncodeToString(blob.Data),
		MIMEType: blob.MIMEType,
	}, nil
}

// GenerateSpeech はテキストを読み上げた音声を生成します。
// Gemini の TTS は生の PCM を返すため WAV に包んで返します。
func (c *Client) GenerateSpeech(ctx context.Context, req client.SpeechRequest) (client.MediaResult, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.SpeechModel
	}
	voice := req.Voice
	if voice == "" {
		voice = c.cfg.Voice
	}

	text := req.Text
	if req.Instructions != "" {
		text = req.Instructions + "\n\n" + req.Text
	}

	resp, err := c.models.GenerateContent(ctx, model, genai.Text(text), &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	})
	if err != nil {
		return client.MediaResult{}, mapError(err)
	}

	blob := firstInlineData(resp, "audio/")
	if blob == nil || len(blob.Data) == 0 {
		return client.MediaResult{Success: true}, nil
	}

	data, mimeType := blob.Data, blob.MIMEType
	if isPCM(mimeType) {
		data = pcmToWAV(data, sampleRateFromMIME(mimeType))
		mimeType = "audio/wav"
	}
	return client.MediaResult{
		Success:  true,
		Base64:   base64.StdEncoding.EncodeToString(data),
		MIMEType: mimeType,
	}, nil
}

func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			sb.WriteString(part.Text)
		}
		if sb.Len() > 0 {
			break
		}
	}
	return sb.String()
}

func firstInlineData(resp *genai.GenerateContentResponse, mimePrefix string) *genai.Blob {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			if strings.HasPrefix(part.InlineData.MIMEType, mimePrefix) {
				return part.InlineData
			}
		}
	}
	return nil
}

// mapError は genai のエラーを domain.RemoteError に変換します。
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return domain.NewRemoteError(domain.CodeFromHTTPStatus(apiErr.Code), apiErr.Message, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return domain.NewRemoteError(domain.CodeFromHTTPStatus(apiErrPtr.Code), apiErrPtr.Message, err)
	}
	return domain.NewRemoteError(domain.CodeUnknown, "", err)
}
