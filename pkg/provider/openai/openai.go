// Package openai は openai-go を使ったテキスト・画像・音声生成アダプターです。
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/shouni/go-story-kit/pkg/client"
	"github.com/shouni/go-story-kit/pkg/domain"
)

const (
	DefaultTextModel   = "gpt-4o-mini"
	DefaultImageModel  = "dall-e-3"
	DefaultSpeechModel = "gpt-4o-mini-tts"
	DefaultVoice       = "nova"

	systemPrompt = "You are a gentle, imaginative children's book author."
)

// Config は OpenAI アダプターの設定です。
type Config struct {
	APIKey      string
	BaseURL     string
	TextModel   string
	ImageModel  string
	SpeechModel string
	Voice       string
}

// DefaultConfig は推奨されるデフォルト設定を返すのだ。
func DefaultConfig() Config {
	return Config{
		TextModel:   DefaultTextModel,
		ImageModel:  DefaultImageModel,
		SpeechModel: DefaultSpeechModel,
		Voice:       DefaultVoice,
	}
}

// Client は client.TextGenerator / ImageGenerator / SpeechGenerator を実装します。
type Client struct {
	api openai.Client
	cfg Config
}

// New は OpenAI クライアントを初期化します。
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY が設定されていません")
	}
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

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{api: openai.NewClient(opts...), cfg: cfg}, nil
}

// GenerateText は Chat Completions で物語本文を生成します。
func (c *Client) GenerateText(ctx context.Context, prompt string) (client.TextResult, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.cfg.TextModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return client.TextResult{}, mapError(err)
	}
	if len(resp.Choices) == 0 {
		return client.TextResult{Success: false}, nil
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	slog.DebugContext(ctx, "テキスト生成が完了しました", "model", c.cfg.TextModel, "total_tokens", resp.Usage.TotalTokens)
	return client.TextResult{
		Success:      text != "",
		Story:        text,
		PromptTokens: int(resp.Usage.PromptTokens),
		TotalTokens:  int(resp.Usage.TotalTokens),
	}, nil
}

// GenerateImage は Images API で1枚の画像を base64 形式で生成します。
func (c *Client) GenerateImage(ctx context.Context, prompt string) (client.MediaResult, error) {
	resp, err := c.api.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(c.cfg.ImageModel),
		N:              openai.Int(1),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
		Size:           openai.ImageGenerateParamsSize1024x1024,
	})
	if err != nil {
		return client.MediaResult{}, mapError(err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return client.MediaResult{Success: true}, nil
	}
	return client.MediaResult{
		Success:  true,
		Base64:   resp.Data[0].B64JSON,
		MIMEType: "image/png",
	}, nil
}

// GenerateSpeech は Audio Speech API で MP3 音声を生成します。
func (c *Client) GenerateSpeech(ctx context.Context, req client.SpeechRequest) (client.MediaResult, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.SpeechModel
	}
	voice := req.Voice
	if voice == "" {
		voice = c.cfg.Voice
	}

	params := openai.AudioSpeechNewParams{
		Input:          req.Text,
		Model:          openai.SpeechModel(model),
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	}
	if req.Instructions != "" {
		params.Instructions = openai.String(req.Instructions)
	}

	resp, err := c.api.Audio.Speech.New(ctx, params)
	if err != nil {
		return client.MediaResult{}, mapError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return client.MediaResult{}, domain.NewRemoteError(domain.CodeUnknown, "", fmt.Errorf("音声データの読み込みに失敗しました: %w", err))
	}
	if len(data) == 0 {
		return client.MediaResult{Success: true}, nil
	}
	return client.MediaResult{
		Success:  true,
		Base64:   base64.StdEncoding.EncodeToString(data),
		MIMEType: "audio/mpeg",
	}, nil
}

// mapError は openai-go のエラーを domain.RemoteError に変換します。
func mapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return domain.NewRemoteError(domain.CodeFromHTTPStatus(apiErr.StatusCode), apiErr.Message, err)
	}
	return domain.NewRemoteError(domain.CodeUnknown, "", err)
}
