package client

import "context"

// GenerationClient はパイプラインが利用するリモート生成機能の契約です。
type GenerationClient interface {
	GenerateText(ctx context.Context, prompt string) (TextResult, error)
	GenerateImage(ctx context.Context, prompt string) (MediaResult, error)
	GenerateSpeech(ctx context.Context, req SpeechRequest) (MediaResult, error)
	// DecrementCredit は context の Principal のクレジットを1減らします。
	DecrementCredit(ctx context.Context) (CreditResult, error)
}

// TextGenerator はテキスト生成プロバイダーです。
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (TextResult, error)
}

// ImageGenerator は画像生成プロバイダーです。
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (MediaResult, error)
}

// SpeechGenerator は音声合成プロバイダーです。
type SpeechGenerator interface {
	GenerateSpeech(ctx context.Context, req SpeechRequest) (MediaResult, error)
}
