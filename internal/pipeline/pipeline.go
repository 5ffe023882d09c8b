// Package pipeline sequences one article through extraction, chunking,
// synthesis, assembly, upload and metadata persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/speakloud/internal/article"
	"github.com/hyperifyio/speakloud/internal/audio"
	"github.com/hyperifyio/speakloud/internal/chunk"
	"github.com/hyperifyio/speakloud/internal/metadata"
	"github.com/hyperifyio/speakloud/internal/observe"
	"github.com/hyperifyio/speakloud/internal/storage"
	"github.com/hyperifyio/speakloud/internal/transcript"
	"github.com/hyperifyio/speakloud/internal/tts"
)

var (
	// ErrInvalidURL is returned for input without a scheme and host.
	ErrInvalidURL = errors.New("invalid URL")
	// ErrExtractFailed is returned when no strategy produced article text.
	ErrExtractFailed = errors.New("no text content found at the provided URL")
)

// Stage is a state of one pipeline run.
type Stage string

const (
	StageStart         Stage = "start"
	StageFetched       Stage = "fetched"
	StageExtractFailed Stage = "extract_failed"
	StageExtracted     Stage = "extracted"
	StageChunked       Stage = "chunked"
	StageSynthesizing  Stage = "synthesizing"
	StageAssembled     Stage = "assembled"
	StageUploaded      Stage = "uploaded"
	StageMetadataSaved Stage = "metadata_saved"
	StageDone          Stage = "done"
	StageFailed        Stage = "failed"
)

// Extractor returns a record whose empty Text signals failure.
type Extractor interface {
	Extract(ctx context.Context, url string) article.Record
}

// Synthesizer turns ordered chunks into segment files.
type Synthesizer interface {
	SynthesizeAll(ctx context.Context, chunks []chunk.Chunk, voice tts.Voice) ([]tts.Segment, error)
}

// Assembler joins segment files into outPath and releases them.
type Assembler interface {
	Assemble(ctx context.Context, segments []tts.Segment, outPath string) (audio.Assembled, error)
}

// Pipeline holds the collaborators of a run. It is safe for concurrent use
// when its collaborators are.
type Pipeline struct {
	Extractor   Extractor
	Synthesizer Synthesizer
	Assembler   Assembler
	Uploader    storage.Uploader
	Store       metadata.Store

	Voice        tts.Voice
	Chunking     chunk.Options
	DownloadsDir string
	// Transcripts enables a PDF transcript uploaded next to the audio.
	Transcripts bool
	// KeepLocal leaves the assembled file in DownloadsDir after upload.
	KeepLocal bool
	// Concurrency bounds ProcessBatch. Zero or less means 4.
	Concurrency int

	Metrics *observe.Metrics
	// OnStage, when set, observes every state transition.
	OnStage func(url string, s Stage)

	now func() time.Time
}

// Result describes a finished run.
type Result struct {
	ID              string  `json:"id"`
	URL             string  `json:"url"`
	DownloadLink    string  `json:"download_link"`
	TranscriptLink  string  `json:"transcript_link,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
	// Reused is set when an earlier run already produced the audio.
	Reused bool `json:"reused"`
}

func (p *Pipeline) stage(url string, s Stage) {
	log.Debug().Str("url", url).Str("stage", string(s)).Msg("pipeline stage")
	if p.OnStage != nil {
		p.OnStage(url, s)
	}
}

func (p *Pipeline) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}

// Process narrates rawURL and returns where the audio was published.
// voiceName overrides the configured voice when non-empty.
func (p *Pipeline) Process(ctx context.Context, rawURL string, hashtags []string, voiceName string) (res Result, err error) {
	start := time.Now()
	status := "success"
	defer func() {
		if err != nil {
			status = "failed"
			p.stage(rawURL, StageFailed)
			log.Error().Err(err).Str("url", rawURL).Msg("pipeline failed")
		} else if res.Reused {
			status = "reused"
		}
		p.Metrics.RecordRun(ctx, status, time.Since(start))
	}()

	p.stage(rawURL, StageStart)
	if !article.ValidURL(rawURL) {
		return Result{}, fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}

	if p.Store != nil {
		existing, err := p.Store.FindByURL(ctx, rawURL)
		if err != nil {
			return Result{}, fmt.Errorf("lookup existing article: %w", err)
		}
		if existing != nil && existing.DownloadLink != "" {
			log.Info().Str("url", rawURL).Str("id", existing.ID).Msg("article already processed")
			p.stage(rawURL, StageDone)
			res := Result{ID: existing.ID, URL: rawURL, DownloadLink: existing.DownloadLink,
				TranscriptLink: existing.TranscriptLink, Reused: true}
			if existing.AudioLength != nil {
				res.DurationSeconds = *existing.AudioLength
			}
			return res, nil
		}
	}

	rec := p.Extractor.Extract(ctx, rawURL)
	p.stage(rawURL, StageFetched)
	if rec.Empty() {
		p.stage(rawURL, StageExtractFailed)
		return Result{}, ErrExtractFailed
	}
	p.stage(rawURL, StageExtracted)

	chunks := chunk.Narration(rec.Intro(), rec.Text, p.Chunking)
	p.stage(rawURL, StageChunked)
	log.Info().Str("url", rawURL).Int("chunks", len(chunks)).Msg("chunked article")

	voice := p.Voice
	if strings.TrimSpace(voiceName) != "" {
		voice = voice.WithName(voiceName)
	}
	p.stage(rawURL, StageSynthesizing)
	segs, err := p.Synthesizer.SynthesizeAll(ctx, chunks, voice)
	if err != nil {
		return Result{}, err
	}

	now := p.clock()
	dir := p.DownloadsDir
	if dir == "" {
		dir = "downloads"
	}
	stem := BaseName(rec, now)
	outPath, err := ReservePath(dir, stem, ".mp3", func(name string) (bool, error) {
		return p.Uploader.Exists(ctx, name)
	})
	if err != nil {
		tts.ReleaseAll(segs)
		return Result{}, err
	}
	if !p.KeepLocal {
		defer removeQuietly(outPath)
	}

	assembled, err := p.Assembler.Assemble(ctx, segs, outPath)
	if err != nil {
		removeQuietly(outPath)
		return Result{}, fmt.Errorf("assemble audio: %w", err)
	}
	p.stage(rawURL, StageAssembled)
	p.Metrics.RecordAudio(ctx, assembled.DurationSeconds)

	link, err := p.Uploader.Upload(ctx, outPath, filepath.Base(outPath))
	if err != nil {
		if p.KeepLocal {
			removeQuietly(outPath)
		}
		return Result{}, err
	}
	p.stage(rawURL, StageUploaded)

	var transcriptLink string
	if p.Transcripts {
		transcriptLink = p.publishTranscript(ctx, rec, strings.TrimSuffix(outPath, ".mp3")+".pdf")
	}

	seconds := metadata.RoundSeconds(assembled.DurationSeconds)
	sum := rec.Summarize()
	a := &metadata.Article{
		Title:          sum.Title,
		Source:         sum.Source,
		URL:            rawURL,
		PublishDate:    sum.PublishDate,
		ProcessedDate:  now.Format(metadata.DateLayout),
		DownloadLink:   link,
		Authors:        rec.Authors,
		TextContent:    rec.Text,
		Hashtags:       hashtags,
		VoiceName:      voice.Name,
		AudioLength:    &seconds,
		TranscriptLink: transcriptLink,
	}
	var id string
	if p.Store != nil {
		id, err = p.Store.Save(ctx, a)
		if err != nil {
			return Result{}, fmt.Errorf("save metadata: %w", err)
		}
	}
	p.stage(rawURL, StageMetadataSaved)
	p.stage(rawURL, StageDone)
	log.Info().Str("url", rawURL).Str("link", link).Float64("seconds", seconds).Msg("article narrated")
	return Result{ID: id, URL: rawURL, DownloadLink: link, TranscriptLink: transcriptLink, DurationSeconds: seconds}, nil
}

// publishTranscript renders and uploads the PDF transcript. Failure is
// logged and yields an empty link.
func (p *Pipeline) publishTranscript(ctx context.Context, rec article.Record, path string) string {
	defer removeQuietly(path)
	if err := transcript.RenderFile(path, rec); err != nil {
		log.Warn().Err(err).Msg("transcript render failed")
		return ""
	}
	link, err := p.Uploader.Upload(ctx, path, filepath.Base(path))
	if err != nil {
		log.Warn().Err(err).Msg("transcript upload failed")
		return ""
	}
	return link
}

// Preview extracts rawURL and returns its metadata without synthesizing.
func (p *Pipeline) Preview(ctx context.Context, rawURL string) (article.Summary, error) {
	if !article.ValidURL(rawURL) {
		return article.Summary{}, fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}
	rec := p.Extractor.Extract(ctx, rawURL)
	if rec.Empty() {
		return article.Summary{}, ErrExtractFailed
	}
	return rec.Summarize(), nil
}

func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", path).Msg("could not remove file")
	}
}
