package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig represents the single-file configuration schema.
type FileConfig struct {
	URLs     []string `yaml:"urls" json:"urls"`
	Hashtags []string `yaml:"hashtags" json:"hashtags"`

	TTS struct {
		Provider     string `yaml:"provider" json:"provider"`
		LanguageCode string `yaml:"languageCode" json:"languageCode"`
		Gender       string `yaml:"gender" json:"gender"`
		Voice        string `yaml:"voice" json:"voice"`
		OpenAI       struct {
			Key   string `yaml:"key" json:"key"`
			Base  string `yaml:"base" json:"base"`
			Model string `yaml:"model" json:"model"`
		} `yaml:"openai" json:"openai"`
		ElevenLabs struct {
			Key   string `yaml:"key" json:"key"`
			Model string `yaml:"model" json:"model"`
		} `yaml:"elevenlabs" json:"elevenlabs"`
	} `yaml:"tts" json:"tts"`

	Chunk struct {
		MaxBytes int  `yaml:"maxBytes" json:"maxBytes"`
		Strict   bool `yaml:"strict" json:"strict"`
	} `yaml:"chunk" json:"chunk"`

	Extract struct {
		SpecializedDomains []string `yaml:"specializedDomains" json:"specializedDomains"`
		RespectRobots      bool     `yaml:"respectRobots" json:"respectRobots"`
	} `yaml:"extract" json:"extract"`

	Storage struct {
		Bucket      string `yaml:"bucket" json:"bucket"`
		DriveFolder string `yaml:"driveFolder" json:"driveFolder"`
		Dir         string `yaml:"dir" json:"dir"`
		BaseURL     string `yaml:"baseURL" json:"baseURL"`
	} `yaml:"storage" json:"storage"`

	Database struct {
		URL string `yaml:"url" json:"url"`
	} `yaml:"database" json:"database"`

	Audio struct {
		DownloadsDir     string `yaml:"downloadsDir" json:"downloadsDir"`
		KeepDownloads    bool   `yaml:"keepDownloads" json:"keepDownloads"`
		FFmpeg           string `yaml:"ffmpeg" json:"ffmpeg"`
		DisableNormalize bool   `yaml:"disableNormalize" json:"disableNormalize"`
		Transcript       bool   `yaml:"transcript" json:"transcript"`
	} `yaml:"audio" json:"audio"`

	Cache struct {
		Dir          string        `yaml:"dir" json:"dir"`
		MaxAge       time.Duration `yaml:"maxAge" json:"maxAge"`
		Clear        bool          `yaml:"clear" json:"clear"`
		StrictPerms  bool          `yaml:"strictPerms" json:"strictPerms"`
		AudioMaxSize int64         `yaml:"audioMaxBytes" json:"audioMaxBytes"`
	} `yaml:"cache" json:"cache"`

	Batch struct {
		Concurrency int `yaml:"concurrency" json:"concurrency"`
	} `yaml:"batch" json:"batch"`

	Listen  string `yaml:"listen" json:"listen"`
	Verbose bool   `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays values from fc into cfg for any fields that are
// still unset. Flags and env should already have been applied.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	str := func(dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
		}
	}
	list := func(dst *[]string, v []string) {
		if len(*dst) == 0 && len(v) > 0 {
			*dst = append([]string{}, v...)
		}
	}
	flag := func(dst *bool, v bool) {
		if !*dst && v {
			*dst = true
		}
	}

	list(&cfg.URLs, fc.URLs)
	list(&cfg.Hashtags, fc.Hashtags)

	str(&cfg.TTSProvider, fc.TTS.Provider)
	str(&cfg.LanguageCode, fc.TTS.LanguageCode)
	str(&cfg.VoiceGender, fc.TTS.Gender)
	str(&cfg.VoiceName, fc.TTS.Voice)
	str(&cfg.OpenAIAPIKey, fc.TTS.OpenAI.Key)
	str(&cfg.OpenAIBaseURL, fc.TTS.OpenAI.Base)
	str(&cfg.OpenAITTSModel, fc.TTS.OpenAI.Model)
	str(&cfg.ElevenLabsKey, fc.TTS.ElevenLabs.Key)
	str(&cfg.ElevenLabsModel, fc.TTS.ElevenLabs.Model)

	if cfg.ChunkMaxBytes == 0 && fc.Chunk.MaxBytes > 0 {
		cfg.ChunkMaxBytes = fc.Chunk.MaxBytes
	}
	flag(&cfg.ChunkStrict, fc.Chunk.Strict)
	list(&cfg.SpecializedDomains, fc.Extract.SpecializedDomains)

	str(&cfg.GCSBucket, fc.Storage.Bucket)
	str(&cfg.DriveFolderID, fc.Storage.DriveFolder)
	str(&cfg.StorageDir, fc.Storage.Dir)
	str(&cfg.StorageBaseURL, fc.Storage.BaseURL)
	str(&cfg.DatabaseURL, fc.Database.URL)

	str(&cfg.DownloadsDir, fc.Audio.DownloadsDir)
	flag(&cfg.KeepDownloads, fc.Audio.KeepDownloads)
	str(&cfg.FFmpegPath, fc.Audio.FFmpeg)
	flag(&cfg.DisableNormalize, fc.Audio.DisableNormalize)
	flag(&cfg.Transcript, fc.Audio.Transcript)

	str(&cfg.CacheDir, fc.Cache.Dir)
	if cfg.CacheMaxAge == 0 && fc.Cache.MaxAge > 0 {
		cfg.CacheMaxAge = fc.Cache.MaxAge
	}
	flag(&cfg.CacheClear, fc.Cache.Clear)
	flag(&cfg.RespectRobots, fc.Extract.RespectRobots)
	flag(&cfg.CacheStrictPerms, fc.Cache.StrictPerms)
	if cfg.AudioCacheMaxSize == 0 && fc.Cache.AudioMaxSize > 0 {
		cfg.AudioCacheMaxSize = fc.Cache.AudioMaxSize
	}

	if cfg.BatchConcurrency == 0 && fc.Batch.Concurrency > 0 {
		cfg.BatchConcurrency = fc.Batch.Concurrency
	}
	str(&cfg.ListenAddr, fc.Listen)
	flag(&cfg.Verbose, fc.Verbose)
}
