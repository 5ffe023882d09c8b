package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperifyio/speakloud/internal/tts/openaitts"
)

// Config holds runtime configuration for the application. Sources are
// layered flags > environment > config file > defaults; ApplyEnvToConfig,
// ApplyFileConfig and ApplyDefaults each fill only fields still unset.
type Config struct {
	// Input
	URLs      []string
	URLsFile  string
	Hashtags  []string
	VoiceName string

	// Speech
	TTSProvider     string
	LanguageCode    string
	VoiceGender     string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAITTSModel  string
	ElevenLabsKey   string
	ElevenLabsModel string
	ChunkMaxBytes   int
	ChunkStrict     bool

	// Extraction
	SpecializedDomains []string
	RespectRobots      bool

	// Output
	GCSBucket        string
	DriveFolderID    string
	StorageDir       string
	StorageBaseURL   string
	DatabaseURL      string
	DownloadsDir     string
	KeepDownloads    bool
	FFmpegPath       string
	DisableNormalize bool
	Transcript       bool

	// Cache
	CacheDir          string
	CacheMaxAge       time.Duration
	CacheClear        bool
	CacheStrictPerms  bool
	AudioCacheMaxSize int64

	// Runtime
	BatchConcurrency int
	ListenAddr       string
	Verbose          bool
}

// Defaults for settings that are never left empty.
const (
	DefaultTTSProvider      = "google"
	DefaultLanguageCode     = "en-US"
	DefaultVoiceGender      = "NEUTRAL"
	DefaultDownloadsDir     = "downloads"
	DefaultStorageDir       = "public"
	DefaultCacheDir         = ".speakloud-cache"
	DefaultFFmpegPath       = "ffmpeg"
	DefaultBatchConcurrency = 4
)

// ApplyDefaults fills any field still unset with its built-in default.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	setStr := func(dst *string, v string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = v
		}
	}
	setStr(&cfg.TTSProvider, DefaultTTSProvider)
	setStr(&cfg.LanguageCode, DefaultLanguageCode)
	setStr(&cfg.VoiceGender, DefaultVoiceGender)
	setStr(&cfg.DownloadsDir, DefaultDownloadsDir)
	setStr(&cfg.CacheDir, DefaultCacheDir)
	setStr(&cfg.FFmpegPath, DefaultFFmpegPath)
	if cfg.GCSBucket == "" && cfg.DriveFolderID == "" {
		setStr(&cfg.StorageDir, DefaultStorageDir)
	}
	if cfg.BatchConcurrency == 0 {
		cfg.BatchConcurrency = DefaultBatchConcurrency
	}
	cfg.TTSProvider = strings.ToLower(strings.TrimSpace(cfg.TTSProvider))
	// A byte cap never admits more characters than bytes.
	if cfg.TTSProvider == "openai" && (cfg.ChunkMaxBytes == 0 || cfg.ChunkMaxBytes > openaitts.MaxInput) {
		cfg.ChunkMaxBytes = openaitts.MaxInput
	}
}

// ValidateConfig reports settings that make startup impossible: missing
// credentials for the chosen speech provider, unknown providers, negative
// limits.
func ValidateConfig(cfg Config) error {
	switch cfg.TTSProvider {
	case "google":
	case "openai":
		if trim(cfg.OpenAIAPIKey) == "" && trim(cfg.OpenAIBaseURL) == "" {
			return errors.New("config: openai provider needs OPENAI_API_KEY (or OPENAI_BASE_URL for a local server)")
		}
		if cfg.ChunkMaxBytes > openaitts.MaxInput {
			return fmt.Errorf("config: openai accepts at most %d characters per request, chunk limit is %d", openaitts.MaxInput, cfg.ChunkMaxBytes)
		}
	case "elevenlabs":
		if trim(cfg.ElevenLabsKey) == "" {
			return errors.New("config: elevenlabs provider needs ELEVENLABS_API_KEY")
		}
	default:
		return fmt.Errorf("config: unknown tts provider %q (want google, openai or elevenlabs)", cfg.TTSProvider)
	}
	if trim(cfg.GCSBucket) == "" && trim(cfg.DriveFolderID) == "" && trim(cfg.StorageDir) == "" {
		return errors.New("config: GCS_BUCKET_NAME, DRIVE_FOLDER_ID or STORAGE_DIR is required")
	}
	if cfg.ChunkMaxBytes < 0 || cfg.BatchConcurrency < 0 || cfg.AudioCacheMaxSize < 0 || cfg.CacheMaxAge < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	return nil
}

func trim(s string) string { return strings.TrimSpace(s) }

// SplitList splits a comma separated value, dropping blanks.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
