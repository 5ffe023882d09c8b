package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvToConfig populates unset fields of cfg from environment variables.
// Explicit cfg values take precedence over env.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	setStr := func(dst *string, keys ...string) {
		if *dst != "" {
			return
		}
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	setStr(&cfg.TTSProvider, "TTS_PROVIDER")
	setStr(&cfg.LanguageCode, "TTS_LANGUAGE_CODE")
	setStr(&cfg.VoiceGender, "TTS_VOICE_GENDER")
	setStr(&cfg.VoiceName, "TTS_VOICE_NAME")
	setStr(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	setStr(&cfg.OpenAIBaseURL, "OPENAI_BASE_URL")
	setStr(&cfg.OpenAITTSModel, "OPENAI_TTS_MODEL")
	setStr(&cfg.ElevenLabsKey, "ELEVENLABS_API_KEY")
	setStr(&cfg.ElevenLabsModel, "ELEVENLABS_MODEL")
	setStr(&cfg.GCSBucket, "GCS_BUCKET_NAME")
	setStr(&cfg.DriveFolderID, "DRIVE_FOLDER_ID")
	setStr(&cfg.StorageDir, "STORAGE_DIR")
	setStr(&cfg.StorageBaseURL, "STORAGE_BASE_URL")
	setStr(&cfg.DatabaseURL, "DATABASE_URL")
	setStr(&cfg.DownloadsDir, "DOWNLOADS_DIR")
	setStr(&cfg.FFmpegPath, "FFMPEG_PATH")
	setStr(&cfg.CacheDir, "CACHE_DIR")
	setStr(&cfg.ListenAddr, "LISTEN_ADDR")

	if len(cfg.SpecializedDomains) == 0 {
		if v := os.Getenv("EXTRACT_SPECIALIZED_DOMAINS"); strings.TrimSpace(v) != "" {
			cfg.SpecializedDomains = SplitList(v)
		}
	}
	if len(cfg.Hashtags) == 0 {
		if v := os.Getenv("HASHTAGS"); strings.TrimSpace(v) != "" {
			cfg.Hashtags = SplitList(v)
		}
	}

	setInt := func(dst *int, key string) {
		if *dst != 0 {
			return
		}
		if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil && n > 0 {
			*dst = n
		}
	}
	setInt(&cfg.ChunkMaxBytes, "CHUNK_MAX_BYTES")
	setInt(&cfg.BatchConcurrency, "BATCH_CONCURRENCY")

	if cfg.AudioCacheMaxSize == 0 {
		if n, err := strconv.ParseInt(strings.TrimSpace(os.Getenv("AUDIO_CACHE_MAX_BYTES")), 10, 64); err == nil && n > 0 {
			cfg.AudioCacheMaxSize = n
		}
	}
	if cfg.CacheMaxAge == 0 {
		if s := os.Getenv("CACHE_MAX_AGE"); s != "" {
			if d, err := time.ParseDuration(s); err == nil {
				cfg.CacheMaxAge = d
			}
		}
	}

	setBool := func(dst *bool, envKey string) {
		if *dst {
			return
		}
		switch strings.ToLower(strings.TrimSpace(os.Getenv(envKey))) {
		case "1", "true", "yes", "on":
			*dst = true
		}
	}
	setBool(&cfg.ChunkStrict, "CHUNK_STRICT")
	setBool(&cfg.KeepDownloads, "KEEP_DOWNLOADS")
	setBool(&cfg.DisableNormalize, "DISABLE_NORMALIZE")
	setBool(&cfg.Transcript, "TRANSCRIPT")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
	setBool(&cfg.RespectRobots, "RESPECT_ROBOTS")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
	setBool(&cfg.Verbose, "VERBOSE")
}
