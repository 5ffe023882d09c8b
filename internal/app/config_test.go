package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigFile_YAMLAndPrecedence(t *testing.T) {
	t.Setenv("TTS_LANGUAGE_CODE", "en-GB")
	dir := t.TempDir()
	p := filepath.Join(dir, "speakloud.yaml")
	yml := `
urls: ["https://example.com/a"]
tts:
  provider: openai
  languageCode: fi-FI
  voice: nova
  openai:
    key: sk-file
chunk:
  maxBytes: 3000
storage:
  bucket: from-file
cache:
  maxAge: 24h
`
	if err := os.WriteFile(p, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	fc, err := LoadConfigFile(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	cfg := Config{VoiceName: "onyx"} // from a flag
	ApplyEnvToConfig(&cfg)
	ApplyFileConfig(&cfg, fc)
	ApplyDefaults(&cfg)

	if cfg.VoiceName != "onyx" {
		t.Fatalf("flag should win, got %q", cfg.VoiceName)
	}
	if cfg.LanguageCode != "en-GB" {
		t.Fatalf("env should beat file, got %q", cfg.LanguageCode)
	}
	if cfg.TTSProvider != "openai" || cfg.OpenAIAPIKey != "sk-file" || cfg.ChunkMaxBytes != 3000 {
		t.Fatalf("file values missing: %+v", cfg)
	}
	if cfg.CacheMaxAge != 24*time.Hour || cfg.GCSBucket != "from-file" {
		t.Fatalf("file values missing: %+v", cfg)
	}
	if cfg.DownloadsDir != DefaultDownloadsDir || cfg.StorageDir != "" {
		t.Fatalf("defaults: downloads=%q storage=%q", cfg.DownloadsDir, cfg.StorageDir)
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadConfigFile_JSON(t *testing.T) {
	p := filepath.Join(t.TempDir(), "c.json")
	if err := os.WriteFile(p, []byte(`{"tts":{"provider":"google"},"batch":{"concurrency":2}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	fc, err := LoadConfigFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if fc.TTS.Provider != "google" || fc.Batch.Concurrency != 2 {
		t.Fatalf("fc = %+v", fc)
	}
}

func TestValidateConfig(t *testing.T) {
	base := Config{}
	ApplyDefaults(&base)
	if err := ValidateConfig(base); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	cases := map[string]Config{
		"openai": {TTSProvider: "openai", StorageDir: "p"},
		"eleven": {TTSProvider: "elevenlabs", StorageDir: "p"},
		"bogus":  {TTSProvider: "polly", StorageDir: "p"},
		"store":  {TTSProvider: "google"},
		"neg":    {TTSProvider: "google", StorageDir: "p", BatchConcurrency: -1},
	}
	for name, cfg := range cases {
		err := ValidateConfig(cfg)
		if err == nil || !strings.HasPrefix(err.Error(), "config:") {
			t.Fatalf("%s: expected config error, got %v", name, err)
		}
	}
}

func TestApplyDefaults_ClampsChunksForOpenAI(t *testing.T) {
	for in, want := range map[int]int{0: 4096, 5000: 4096, 3000: 3000} {
		cfg := Config{TTSProvider: "OpenAI", OpenAIAPIKey: "sk", StorageDir: "p", ChunkMaxBytes: in}
		ApplyDefaults(&cfg)
		if cfg.ChunkMaxBytes != want {
			t.Fatalf("maxBytes %d: got %d, want %d", in, cfg.ChunkMaxBytes, want)
		}
		if err := ValidateConfig(cfg); err != nil {
			t.Fatalf("maxBytes %d: %v", in, err)
		}
	}

	google := Config{}
	ApplyDefaults(&google)
	if google.ChunkMaxBytes != 0 {
		t.Fatalf("google keeps the chunker default, got %d", google.ChunkMaxBytes)
	}

	raw := Config{TTSProvider: "openai", OpenAIAPIKey: "sk", StorageDir: "p", ChunkMaxBytes: 5000}
	if err := ValidateConfig(raw); err == nil {
		t.Fatal("expected error for an oversized openai chunk limit")
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" a, ,b ,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("got %v", got)
	}
}
