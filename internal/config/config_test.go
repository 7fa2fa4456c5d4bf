package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	t.Run("未設定の値はデフォルトになるのだ", func(t *testing.T) {
		unsetenv(t, "PROVIDER", "IMAGE_ATTEMPTS", "INTER_PAGE_DELAY", "INITIAL_CREDITS")

		cfg := LoadConfig()
		if cfg.Provider != DefaultProvider {
			t.Errorf("Provider = %q", cfg.Provider)
		}
		if cfg.ImageAttempts != 3 || cfg.InterPageDelay != 2*time.Second {
			t.Errorf("再試行の既定値が違うのだ: %d %s", cfg.ImageAttempts, cfg.InterPageDelay)
		}
		if cfg.InitialCredits != DefaultInitialCredits {
			t.Errorf("InitialCredits = %d", cfg.InitialCredits)
		}
	})

	t.Run("環境変数を読み込むのだ", func(t *testing.T) {
		t.Setenv("PROVIDER", ProviderOpenAI)
		t.Setenv("IMAGE_ATTEMPTS", "5")
		t.Setenv("CALL_TIMEOUT", "45s")
		t.Setenv("MEDIA_DIR", "gs://bucket/media")

		cfg := LoadConfig()
		if cfg.Provider != ProviderOpenAI || cfg.ImageAttempts != 5 || cfg.CallTimeout != 45*time.Second {
			t.Errorf("値が反映されていないのだ: %+v", cfg)
		}
		if cfg.MediaDir != "gs://bucket/media" {
			t.Errorf("MediaDir = %q", cfg.MediaDir)
		}
	})

	t.Run("解釈できない値はデフォルトに戻すのだ", func(t *testing.T) {
		t.Setenv("IMAGE_ATTEMPTS", "many")
		t.Setenv("IMAGE_BACKOFF", "soon")

		cfg := LoadConfig()
		if cfg.ImageAttempts != 3 || cfg.ImageBackoff != 2*time.Second {
			t.Errorf("デフォルトに戻っていないのだ: %d %s", cfg.ImageAttempts, cfg.ImageBackoff)
		}
	})
}

// unsetenv はテスト終了時に元の値へ戻したうえで環境変数を削除します。
func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		if err := os.Unsetenv(k); err != nil {
			t.Fatalf("Unsetenv に失敗したのだ: %v", err)
		}
	}
}
