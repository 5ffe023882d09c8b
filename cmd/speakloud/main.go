package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/speakloud/internal/app"
	"github.com/hyperifyio/speakloud/internal/observe"
)

// options are the command-line settings that are not part of app.Config.
type options struct {
	configPath string
	envFiles   []string
	serveAddr  string
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, opts, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("invalid flags")
	}
	cfg, err = resolveConfig(cfg, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		log.Error().Err(err).Msg("run failed")
		stop()
		os.Exit(1)
	}
}

// parseFlags reads args into a Config. Every flag defaults to its zero value
// so that environment and file settings can fill what was not given.
func parseFlags(fs *flag.FlagSet, args []string) (app.Config, options, error) {
	var (
		cfg      app.Config
		opts     options
		urls     string
		hashtags string
		envFiles string
		domains  string
	)
	fs.StringVar(&urls, "url", "", "Comma-separated article URLs to narrate")
	fs.StringVar(&cfg.URLsFile, "urls.file", "", "File with one article URL per line")
	fs.StringVar(&hashtags, "hashtags", "", "Comma-separated hashtags stored with each article")
	fs.StringVar(&cfg.VoiceName, "voice", "", "Provider voice name override")
	fs.StringVar(&opts.configPath, "config", "", "YAML or JSON config file")
	fs.StringVar(&envFiles, "env", "", "Comma-separated dotenv files loaded before reading the environment")
	fs.StringVar(&opts.serveAddr, "serve", "", "Serve the HTTP API on this address instead of processing URLs")
	fs.StringVar(&cfg.TTSProvider, "tts.provider", "", "Speech provider: google, openai or elevenlabs")
	fs.StringVar(&cfg.LanguageCode, "tts.lang", "", "Voice language code, e.g. en-US")
	fs.StringVar(&cfg.VoiceGender, "tts.gender", "", "Voice gender: male, female or neutral")
	fs.StringVar(&cfg.OpenAIBaseURL, "openai.base", "", "OpenAI-compatible base URL")
	fs.StringVar(&cfg.OpenAITTSModel, "openai.model", "", "OpenAI speech model")
	fs.StringVar(&cfg.ElevenLabsModel, "elevenlabs.model", "", "ElevenLabs model ID")
	fs.IntVar(&cfg.ChunkMaxBytes, "chunk.maxBytes", 0, "Maximum UTF-8 bytes per synthesis request")
	fs.BoolVar(&cfg.ChunkStrict, "chunk.strict", false, "Hard-split sentences longer than the chunk limit at word boundaries")
	fs.BoolVar(&cfg.RespectRobots, "robots", false, "Skip pages that robots.txt disallows")
	fs.StringVar(&domains, "extract.specialized", "", "Comma-separated domains that use density-based extraction")
	fs.StringVar(&cfg.GCSBucket, "gcs.bucket", "", "Google Cloud Storage bucket for published audio")
	fs.StringVar(&cfg.DriveFolderID, "drive.folder", "", "Google Drive folder ID for published audio")
	fs.StringVar(&cfg.StorageDir, "storage.dir", "", "Local publish directory when no bucket is set")
	fs.StringVar(&cfg.StorageBaseURL, "storage.baseURL", "", "Public URL prefix for the local publish directory")
	fs.StringVar(&cfg.DatabaseURL, "db.url", "", "PostgreSQL connection string for article metadata")
	fs.StringVar(&cfg.DownloadsDir, "downloads.dir", "", "Directory for assembled audio files")
	fs.BoolVar(&cfg.KeepDownloads, "downloads.keep", false, "Keep local audio files after upload")
	fs.StringVar(&cfg.FFmpegPath, "ffmpeg", "", "Path to the ffmpeg binary used for loudness normalization")
	fs.BoolVar(&cfg.DisableNormalize, "normalize.disable", false, "Skip loudness normalization")
	fs.BoolVar(&cfg.Transcript, "transcript", false, "Publish a PDF transcript next to the audio")
	fs.StringVar(&cfg.CacheDir, "cache.dir", "", "Cache directory path")
	fs.DurationVar(&cfg.CacheMaxAge, "cache.maxAge", 0, "Max age for cache entries before purge (e.g. 24h); 0 disables")
	fs.BoolVar(&cfg.CacheClear, "cache.clear", false, "Clear cache directory before run")
	fs.BoolVar(&cfg.CacheStrictPerms, "cache.strictPerms", false, "Restrict cache permissions (0700 dirs, 0600 files)")
	fs.Int64Var(&cfg.AudioCacheMaxSize, "cache.audioMaxBytes", 0, "Evict cached audio beyond this many bytes; 0 disables")
	fs.IntVar(&cfg.BatchConcurrency, "batch.concurrency", 0, "Articles processed in parallel")
	fs.BoolVar(&cfg.Verbose, "v", false, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return app.Config{}, options{}, err
	}

	cfg.URLs = append(app.SplitList(urls), fs.Args()...)
	cfg.Hashtags = app.SplitList(hashtags)
	cfg.SpecializedDomains = app.SplitList(domains)
	opts.envFiles = app.SplitList(envFiles)
	return cfg, opts, nil
}

// resolveConfig layers dotenv files, the environment and the config file
// under the flag values.
func resolveConfig(cfg app.Config, opts options) (app.Config, error) {
	if len(opts.envFiles) > 0 {
		if err := app.LoadEnvFiles(opts.envFiles...); err != nil {
			return cfg, err
		}
	} else {
		_ = app.LoadEnvFiles(".env")
	}
	app.ApplyEnvToConfig(&cfg)
	if strings.TrimSpace(opts.configPath) != "" {
		fc, err := app.LoadConfigFile(opts.configPath)
		if err != nil {
			return cfg, err
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	if opts.serveAddr != "" {
		cfg.ListenAddr = opts.serveAddr
		cfg.URLs, cfg.URLsFile = nil, ""
	}
	return cfg, nil
}

// listenAddr is the API address, or empty for a one-shot batch run. A
// configured listen address only applies when no URLs were given.
func listenAddr(cfg app.Config) string {
	if len(cfg.URLs) > 0 || strings.TrimSpace(cfg.URLsFile) != "" {
		return ""
	}
	return cfg.ListenAddr
}

func run(ctx context.Context, cfg app.Config, out io.Writer) error {
	addr := listenAddr(cfg)
	if addr != "" {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: app.BuildVersion})
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	if addr != "" {
		return a.Serve(ctx, addr)
	}

	reports, err := a.Run(ctx)
	if len(reports) > 0 {
		if werr := app.WriteReport(out, reports); werr != nil {
			return werr
		}
	}
	return err
}
