package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEnvFiles_LoadsKeyValues(t *testing.T) {
	t.Setenv("FOO", "")
	t.Setenv("BAR", "")
	t.Setenv("BAZ", "")

	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "\n# sample dotenv file\nFOO=alpha\nexport BAR=\"beta gamma\"\nBAZ='x=y'\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}
	if err := LoadEnvFiles(envPath, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("FOO"); got != "alpha" {
		t.Fatalf("FOO=%q, want alpha", got)
	}
	if got := os.Getenv("BAR"); got != "beta gamma" {
		t.Fatalf("BAR=%q, want beta gamma", got)
	}
	if got := os.Getenv("BAZ"); got != "x=y" {
		t.Fatalf("BAZ=%q, want x=y", got)
	}
}

// Later files override earlier ones when loading multiple dotenv files.
func TestLoadEnvFiles_OverrideOrder(t *testing.T) {
	t.Setenv("K", "")
	dir := t.TempDir()
	a := filepath.Join(dir, ".env.a")
	b := filepath.Join(dir, ".env.b")
	if err := os.WriteFile(a, []byte("K=first\n"), 0o600); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := os.WriteFile(b, []byte("K=second\n"), 0o600); err != nil {
		t.Fatalf("write b: %v", err)
	}
	if err := LoadEnvFiles(a, b); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("K"); got != "second" {
		t.Fatalf("override order failed: got %q, want second", got)
	}
}

func TestApplyEnvToConfig_FromEnv(t *testing.T) {
	t.Setenv("GCS_BUCKET_NAME", "narrations")
	t.Setenv("TTS_PROVIDER", "openai")
	t.Setenv("TTS_VOICE_GENDER", "female")
	t.Setenv("CACHE_MAX_AGE", "48h")
	t.Setenv("BATCH_CONCURRENCY", "8")
	t.Setenv("CHUNK_STRICT", "yes")
	t.Setenv("EXTRACT_SPECIALIZED_DOMAINS", "example.org, , news.test")

	cfg := Config{TTSProvider: "elevenlabs"}
	ApplyEnvToConfig(&cfg)
	if cfg.TTSProvider != "elevenlabs" {
		t.Fatalf("explicit value overwritten: %q", cfg.TTSProvider)
	}
	if cfg.GCSBucket != "narrations" || cfg.VoiceGender != "female" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.CacheMaxAge != 48*time.Hour || cfg.BatchConcurrency != 8 || !cfg.ChunkStrict {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.SpecializedDomains) != 2 || cfg.SpecializedDomains[1] != "news.test" {
		t.Fatalf("domains = %v", cfg.SpecializedDomains)
	}
}
