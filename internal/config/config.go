package config

import (
	"log/slog"
	"time"

	"github.com/shouni/go-utils/envutil"
)

// デフォルト値の定義なのだ
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	DefaultProvider          = ProviderGemini
	DefaultMediaDir          = "output/media"
	DefaultOutputDir         = "output/story"
	DefaultAddr              = ":8080"
	DefaultJWTIssuer         = "go-story-kit"
	DefaultJWTSecret         = "dev-secret-change-me"
	DefaultTokenTTL          = 24 * time.Hour
	DefaultInitialCredits    = 3
	DefaultRequestInterval   = 500 * time.Millisecond
	DefaultSessionTTL        = 30 * time.Minute
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultLocalUser         = "local-user"
	DefaultImagePromptSuffix = "soft watercolor picture-book illustration, warm colors, gentle lighting, no text"
)

// Config はアプリケーション全体の環境設定（APIキーやクラウド設定）を保持する構造体なのだ。
type Config struct {
	// --- Provider ---
	Provider          string
	GeminiAPIKey      string
	GeminiTextModel   string
	GeminiImageModel  string
	GeminiSpeechModel string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAITextModel   string
	OpenAIImageModel  string
	OpenAISpeechModel string
	Voice             string
	ImagePromptSuffix string
	RequestInterval   time.Duration

	// --- Pipeline ---
	ImageAttempts  int
	ImageBackoff   time.Duration
	InterPageDelay time.Duration
	CallTimeout    time.Duration

	// --- Storage ---
	MediaDir      string // ローカルディレクトリ or gs://bucket/prefix
	PublicBaseURL string // ローカル保存時にメディアを公開する URL (例: http://localhost:8080/media)

	// --- Credits / Auth ---
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	InitialCredits int64
	JWTSecret      string
	JWTIssuer      string

	// --- Server ---
	Addr       string
	SessionTTL time.Duration

	// --- Logging ---
	LogLevel  string
	LogFormat string

	Options GenerateOptions
}

// LoadConfig は環境変数から設定を読み込み、構造体を返すのだ！
func LoadConfig() *Config {
	return &Config{
		Provider:          envutil.GetEnv("PROVIDER", DefaultProvider),
		GeminiAPIKey:      envutil.GetEnv("GEMINI_API_KEY", ""),
		GeminiTextModel:   envutil.GetEnv("GEMINI_MODEL", ""),
		GeminiImageModel:  envutil.GetEnv("IMAGE_GEMINI_MODEL", ""),
		GeminiSpeechModel: envutil.GetEnv("SPEECH_GEMINI_MODEL", ""),
		OpenAIAPIKey:      envutil.GetEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     envutil.GetEnv("OPENAI_BASE_URL", ""),
		OpenAITextModel:   envutil.GetEnv("OPENAI_MODEL", ""),
		OpenAIImageModel:  envutil.GetEnv("IMAGE_OPENAI_MODEL", ""),
		OpenAISpeechModel: envutil.GetEnv("SPEECH_OPENAI_MODEL", ""),
		Voice:             envutil.GetEnv("VOICE", ""),
		ImagePromptSuffix: envutil.GetEnv("IMAGE_PROMPT_SUFFIX", DefaultImagePromptSuffix),
		RequestInterval:   getDuration("REQUEST_INTERVAL", DefaultRequestInterval),

		ImageAttempts:  envutil.GetEnvAsInt("IMAGE_ATTEMPTS", 3),
		ImageBackoff:   getDuration("IMAGE_BACKOFF", 2*time.Second),
		InterPageDelay: getDuration("INTER_PAGE_DELAY", 2*time.Second),
		CallTimeout:    getDuration("CALL_TIMEOUT", 2*time.Minute),

		MediaDir:      envutil.GetEnv("MEDIA_DIR", DefaultMediaDir),
		PublicBaseURL: envutil.GetEnv("PUBLIC_BASE_URL", ""),

		RedisAddr:      envutil.GetEnv("REDIS_ADDR", ""),
		RedisPassword:  envutil.GetEnv("REDIS_PASSWORD", ""),
		RedisDB:        envutil.GetEnvAsInt("REDIS_DB", 0),
		InitialCredits: int64(envutil.GetEnvAsInt("INITIAL_CREDITS", DefaultInitialCredits)),
		JWTSecret:      envutil.GetEnv("JWT_SECRET", DefaultJWTSecret),
		JWTIssuer:      envutil.GetEnv("JWT_ISSUER", DefaultJWTIssuer),

		Addr:       envutil.GetEnv("ADDR", DefaultAddr),
		SessionTTL: getDuration("SESSION_TTL", DefaultSessionTTL),

		LogLevel:  envutil.GetEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat: envutil.GetEnv("LOG_FORMAT", DefaultLogFormat),
	}
}

// GenerateOptions は CLI フラグから渡される実行時のパラメータなのだ。
type GenerateOptions struct {
	// 物語の入力
	Prompt        string // --prompt
	Length        string // --length
	MainCharacter string // --character
	Location      string // --location
	Theme         string // --theme
	Topic         string // --topic
	Example       bool   // --example: 同梱のサンプルを使う

	// 出力
	OutputDir string // --output-dir
	User      string // --user: クレジットを消費するユーザー
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("環境変数を時間として解釈できません。デフォルト値を使います", "key", key, "value", raw)
		return def
	}
	return v
}
