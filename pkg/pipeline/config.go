package pipeline

import "time"

// デフォルト値の定義なのだ
const (
	DefaultImageAttempts      = 3
	DefaultImageBackoff       = 2 * time.Second
	DefaultInterPageDelay     = 2 * time.Second
	DefaultCallTimeout        = 2 * time.Minute
	DefaultMaxSpeechChars     = 4096
	DefaultFallbackTitle      = "Story"
	DefaultSpeechInstructions = "Read aloud like a warm, calm storyteller reading a picture book to a young child."

	// NoDelay を ImageBackoff や InterPageDelay に指定すると待機しません。
	// ゼロ値はデフォルトの待機時間に置き換えられます。
	NoDelay time.Duration = -1
)

// 進捗率の区切り
const (
	progressStarted    = 5
	progressTextDone   = 15
	progressImagesEnd  = 55
	progressAudioStart = 60
	progressAudioEnd   = 90
	progressFinalizing = 95
	progressComplete   = 100
)

// Config は生成パイプラインの挙動を制御する設定です。
type Config struct {
	// --- Image Retry ---
	// 待機時間は 0 でデフォルト値、NoDelay（負の値）で待機なしになります。
	ImageAttempts  int
	ImageBackoff   time.Duration
	InterPageDelay time.Duration

	// --- Speech ---
	SpeechVoice        string
	SpeechModel        string
	SpeechInstructions string
	MaxSpeechChars     int

	// --- Misc ---
	CallTimeout   time.Duration
	FallbackTitle string
}

// DefaultConfig は推奨されるデフォルト設定を返すヘルパー関数なのだ。
// 音声のボイスとモデルは空のままにし、プロバイダー側の既定値を使います。
func DefaultConfig() Config {
	return Config{
		ImageAttempts:      DefaultImageAttempts,
		ImageBackoff:       DefaultImageBackoff,
		InterPageDelay:     DefaultInterPageDelay,
		SpeechInstructions: DefaultSpeechInstructions,
		MaxSpeechChars:     DefaultMaxSpeechChars,
		CallTimeout:        DefaultCallTimeout,
		FallbackTitle:      DefaultFallbackTitle,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ImageAttempts <= 0 {
		c.ImageAttempts = def.ImageAttempts
	}
	c.ImageBackoff = durationOrDefault(c.ImageBackoff, def.ImageBackoff)
	c.InterPageDelay = durationOrDefault(c.InterPageDelay, def.InterPageDelay)
	if c.MaxSpeechChars <= 0 {
		c.MaxSpeechChars = def.MaxSpeechChars
	}
	if c.FallbackTitle == "" {
		c.FallbackTitle = def.FallbackTitle
	}
	return c
}

func durationOrDefault(d, def time.Duration) time.Duration {
	switch {
	case d == 0:
		return def
	case d < 0:
		return 0
	default:
		return d
	}
}
