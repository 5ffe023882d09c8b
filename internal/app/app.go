package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/speakloud/internal/api"
	"github.com/hyperifyio/speakloud/internal/audio"
	"github.com/hyperifyio/speakloud/internal/cache"
	"github.com/hyperifyio/speakloud/internal/chunk"
	"github.com/hyperifyio/speakloud/internal/extract"
	"github.com/hyperifyio/speakloud/internal/fetch"
	"github.com/hyperifyio/speakloud/internal/metadata"
	"github.com/hyperifyio/speakloud/internal/observe"
	"github.com/hyperifyio/speakloud/internal/pipeline"
	"github.com/hyperifyio/speakloud/internal/retry"
	"github.com/hyperifyio/speakloud/internal/robots"
	"github.com/hyperifyio/speakloud/internal/storage"
	"github.com/hyperifyio/speakloud/internal/tts"
	"github.com/hyperifyio/speakloud/internal/tts/elevenlabs"
	"github.com/hyperifyio/speakloud/internal/tts/googletts"
	"github.com/hyperifyio/speakloud/internal/tts/openaitts"
)

// ErrSomeFailed is returned by Run when at least one URL failed.
var ErrSomeFailed = errors.New("one or more articles failed")

// App owns the constructed collaborators of one process.
type App struct {
	cfg      Config
	pipeline *pipeline.Pipeline
	store    metadata.Store
	metrics  *observe.Metrics
	closers  []func()
}

// Overrides substitutes collaborators, mainly in tests. Nil fields are built
// from the config.
type Overrides struct {
	Provider tts.Provider
	Uploader storage.Uploader
	Store    metadata.Store
	Fetcher  extract.Fetcher
}

// New builds the application from cfg.
func New(ctx context.Context, cfg Config) (*App, error) {
	return NewWith(ctx, cfg, Overrides{})
}

// NewWith is New with injected collaborators.
func NewWith(ctx context.Context, cfg Config, o Overrides) (*App, error) {
	ApplyDefaults(&cfg)
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, metrics: observe.DefaultMetrics()}

	pageCache, audioCache := a.setupCache()

	provider := o.Provider
	if provider == nil {
		p, closer, err := newProvider(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		provider = p
		if closer != nil {
			a.closers = append(a.closers, closer)
		}
	}

	uploader := o.Uploader
	if uploader == nil {
		u, err := a.newUploader(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		uploader = u
	}

	store := o.Store
	if store == nil {
		s, err := a.newStore(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		store = s
	}
	a.store = store

	var primary, fallback extract.Fetcher = o.Fetcher, o.Fetcher
	if o.Fetcher == nil {
		primary, fallback = newFetchers(cfg, pageCache)
	}
	ex := extract.New(primary, fallback, cfg.SpecializedDomains)
	ex.Metrics = a.metrics

	voice := tts.Voice{
		LanguageCode: cfg.LanguageCode,
		Gender:       tts.ParseGender(cfg.VoiceGender),
	}.WithName(cfg.VoiceName)

	a.pipeline = &pipeline.Pipeline{
		Extractor: ex,
		Synthesizer: &tts.Synthesizer{
			Provider: provider,
			Retry:    retry.Default(),
			Cache:    audioCache,
			Metrics:  a.metrics,
		},
		Assembler:    &audio.Assembler{Normalizer: a.newNormalizer()},
		Uploader:     storage.Retrying{Inner: uploader, Policy: retry.Default()},
		Store:        store,
		Voice:        voice,
		Chunking:     chunk.Options{MaxBytes: cfg.ChunkMaxBytes, Strict: cfg.ChunkStrict},
		DownloadsDir: cfg.DownloadsDir,
		Transcripts:  cfg.Transcript,
		KeepLocal:    cfg.KeepDownloads,
		Concurrency:  cfg.BatchConcurrency,
		Metrics:      a.metrics,
	}
	log.Info().
		Str("provider", provider.Name()).
		Str("voice", voice.String()).
		Str("version", BuildVersion).
		Str("commit", BuildCommit).
		Msg("speakloud ready")
	return a, nil
}

// setupCache applies the clear and purge controls, then returns the caches.
func (a *App) setupCache() (*cache.PageCache, *cache.AudioCache) {
	dir := a.cfg.CacheDir
	if dir == "" {
		return nil, nil
	}
	if a.cfg.CacheClear {
		if err := cache.ClearDir(dir); err != nil {
			log.Warn().Err(err).Msg("cache clear failed")
		}
	}
	pagesDir := filepath.Join(dir, "pages")
	audioDir := filepath.Join(dir, "audio")
	if a.cfg.CacheMaxAge > 0 {
		if n, err := cache.PurgePagesByAge(pagesDir, a.cfg.CacheMaxAge); err == nil && n > 0 {
			log.Info().Int("removed", n).Msg("purged stale pages")
		}
		if n, err := cache.PurgeAudioByAge(audioDir, a.cfg.CacheMaxAge); err == nil && n > 0 {
			log.Info().Int("removed", n).Msg("purged stale audio")
		}
	}
	if a.cfg.AudioCacheMaxSize > 0 {
		if _, err := cache.EnforceAudioLimit(audioDir, a.cfg.AudioCacheMaxSize, 0); err != nil {
			log.Warn().Err(err).Msg("audio cache limit failed")
		}
	}
	return &cache.PageCache{Dir: pagesDir, StrictPerms: a.cfg.CacheStrictPerms},
		&cache.AudioCache{Dir: audioDir, StrictPerms: a.cfg.CacheStrictPerms}
}

func newProvider(ctx context.Context, cfg Config) (tts.Provider, func(), error) {
	switch cfg.TTSProvider {
	case "openai":
		return openaitts.NewWithClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAITTSModel, newHTTPClient(5*time.Minute)), nil, nil
	case "elevenlabs":
		var opts []elevenlabs.Option
		if cfg.ElevenLabsModel != "" {
			opts = append(opts, elevenlabs.WithModel(cfg.ElevenLabsModel))
		}
		p, err := elevenlabs.New(cfg.ElevenLabsKey, opts...)
		return p, nil, err
	default:
		p, err := googletts.New(ctx)
		if err != nil {
			return nil, nil, err
		}
		return p, func() { _ = p.Close() }, nil
	}
}

// newFetchers returns the retrying page fetcher and the single-attempt
// client the extractor falls back to once retries are exhausted.
func newFetchers(cfg Config, pc *cache.PageCache) (primary, fallback *fetch.Client) {
	hc := newHTTPClient(60 * time.Second)
	var rc fetch.RobotsChecker
	if cfg.RespectRobots {
		rc = &robots.Checker{HTTPClient: newHTTPClient(10 * time.Second), UserAgent: UserAgentVersion()}
	}
	primary = fetch.New(pc)
	primary.HTTPClient = hc
	primary.Robots = rc
	fallback = &fetch.Client{
		HTTPClient:        hc,
		Retry:             retry.Policy{MaxAttempts: 1},
		PerRequestTimeout: fetch.DefaultTimeout,
		Cache:             pc,
		BypassCache:       true,
		Robots:            rc,
	}
	return primary, fallback
}

func (a *App) newUploader(ctx context.Context) (storage.Uploader, error) {
	if a.cfg.GCSBucket != "" {
		g, err := storage.NewGCS(ctx, a.cfg.GCSBucket)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = g.Close() })
		return g, nil
	}
	if a.cfg.DriveFolderID != "" {
		return storage.NewDrive(ctx, a.cfg.DriveFolderID)
	}
	log.Warn().Str("dir", a.cfg.StorageDir).Msg("no bucket or Drive folder set; publishing to a local directory")
	return storage.Local{Dir: a.cfg.StorageDir, BaseURL: a.cfg.StorageBaseURL}, nil
}

func (a *App) newStore(ctx context.Context) (metadata.Store, error) {
	if a.cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set; article metadata is kept in memory only")
		return metadata.NewMemoryStore(), nil
	}
	s, err := metadata.OpenPostgres(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, s.Close)
	return s, nil
}

func (a *App) newNormalizer() audio.Normalizer {
	if a.cfg.DisableNormalize {
		return audio.PassthroughNormalizer{}
	}
	n := audio.FFmpegNormalizer{Path: a.cfg.FFmpegPath}
	if !n.Available() {
		log.Warn().Str("ffmpeg", a.cfg.FFmpegPath).Msg("ffmpeg not found; loudness normalization disabled")
		return audio.PassthroughNormalizer{}
	}
	return n
}

// Pipeline exposes the configured pipeline.
func (a *App) Pipeline() *pipeline.Pipeline { return a.pipeline }

// Close releases clients in reverse construction order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// URLs merges the configured URLs with those listed in URLsFile, one per
// line, ignoring blanks and # comments.
func (a *App) URLs() ([]string, error) {
	urls := append([]string{}, a.cfg.URLs...)
	if strings.TrimSpace(a.cfg.URLsFile) == "" {
		return urls, nil
	}
	f, err := os.Open(a.cfg.URLsFile)
	if err != nil {
		return nil, fmt.Errorf("read urls file: %w", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, sc.Err()
}

// Run processes every configured URL and returns the per-URL reports.
// The error is ErrSomeFailed when any URL failed.
func (a *App) Run(ctx context.Context) ([]pipeline.Report, error) {
	urls, err := a.URLs()
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, errors.New("no URLs given")
	}
	reports := a.pipeline.ProcessBatch(ctx, urls, a.cfg.Hashtags, a.cfg.VoiceName)
	if pipeline.Failed(reports) > 0 {
		return reports, ErrSomeFailed
	}
	return reports, nil
}

// Serve runs the HTTP API on addr until ctx is cancelled.
func (a *App) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(a.pipeline, a.store, a.metrics),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("listening")
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
