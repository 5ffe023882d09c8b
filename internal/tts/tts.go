// Package tts turns narration chunks into MP3 segments on local disk through
// a remote speech Provider, retrying transient failures and caching results.
package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/speakloud/internal/cache"
	"github.com/hyperifyio/speakloud/internal/chunk"
	"github.com/hyperifyio/speakloud/internal/observe"
	"github.com/hyperifyio/speakloud/internal/retry"
)

// Gender selects a voice family when no explicit voice name is given.
type Gender string

const (
	Male    Gender = "MALE"
	Female  Gender = "FEMALE"
	Neutral Gender = "NEUTRAL"
)

// ParseGender accepts any case; unknown values become Neutral.
func ParseGender(s string) Gender {
	switch Gender(strings.ToUpper(strings.TrimSpace(s))) {
	case Male:
		return Male
	case Female:
		return Female
	}
	return Neutral
}

// Voice describes how a chunk should sound. Name is provider specific and
// may be empty.
type Voice struct {
	LanguageCode string
	Gender       Gender
	Name         string
}

// DefaultVoice is en-US with a neutral voice.
func DefaultVoice() Voice {
	return Voice{LanguageCode: "en-US", Gender: Neutral}
}

// WithName returns v with Name replaced when name is not blank.
func (v Voice) WithName(name string) Voice {
	if strings.TrimSpace(name) != "" {
		v.Name = strings.TrimSpace(name)
	}
	return v
}

func (v Voice) String() string {
	return fmt.Sprintf("%s/%s/%s", v.LanguageCode, v.Gender, v.Name)
}

// Provider is a remote speech service returning MP3 bytes for text.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error)
}

// ErrEmptyAudio is returned when a provider answers without audio.
var ErrEmptyAudio = errors.New("provider returned no audio")

// ConversionError aborts a run: one chunk could not be synthesized.
type ConversionError struct {
	Chunk    int
	Attempts int
	Err      error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("TTS conversion failed for chunk %d after %d attempts: %v", e.Chunk, e.Attempts, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Segment is one synthesized chunk stored in a temporary file owned by the
// caller until Release.
type Segment struct {
	Index int
	Path  string
}

// Release deletes the segment's file. Releasing twice is harmless.
func (s Segment) Release() error {
	if s.Path == "" {
		return nil
	}
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ReleaseAll deletes every segment file, logging failures.
func ReleaseAll(segs []Segment) {
	for _, s := range segs {
		if err := s.Release(); err != nil {
			log.Warn().Err(err).Str("path", s.Path).Msg("could not remove audio segment")
		}
	}
}

// Synthesizer calls a Provider once per chunk with retry and caching.
type Synthesizer struct {
	Provider Provider
	Retry    retry.Policy
	// Cache, when set, skips the provider for text already synthesized with
	// the same provider and voice.
	Cache *cache.AudioCache
	// TempDir holds segment files. Empty means os.TempDir.
	TempDir string
	Metrics *observe.Metrics
}

// Synthesize produces the segment for c or a *ConversionError.
func (s *Synthesizer) Synthesize(ctx context.Context, c chunk.Chunk, voice Voice) (Segment, error) {
	if s.Provider == nil {
		return Segment{}, errors.New("synthesizer has no provider")
	}
	name := s.Provider.Name()
	key := cache.AudioKey(name, voice.String(), c.Text)

	var audio []byte
	if s.Cache != nil {
		if b, ok, _ := s.Cache.Get(ctx, key); ok {
			log.Debug().Int("chunk", c.Index).Msg("audio cache hit")
			audio = b
		}
	}
	if audio == nil {
		start := time.Now()
		attempts := 0
		b, err := retry.Value(ctx, s.Retry, fmt.Sprintf("synthesize chunk %d", c.Index), func(ctx context.Context, attempt int) ([]byte, error) {
			attempts = attempt + 1
			b, err := s.Provider.Synthesize(ctx, c.Text, voice)
			if err == nil && len(b) == 0 {
				err = ErrEmptyAudio
			}
			return b, err
		})
		s.Metrics.RecordSynthesis(ctx, name, time.Since(start), attempts-1)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Segment{}, ctxErr
			}
			return Segment{}, &ConversionError{Chunk: c.Index, Attempts: attempts, Err: err}
		}
		audio = b
		if s.Cache != nil {
			if err := s.Cache.Put(ctx, key, audio); err != nil {
				log.Debug().Err(err).Msg("audio cache save failed")
			}
		}
	}

	f, err := os.CreateTemp(s.TempDir, fmt.Sprintf("speakloud-chunk-%04d-*.mp3", c.Index))
	if err != nil {
		return Segment{}, fmt.Errorf("create segment file: %w", err)
	}
	seg := Segment{Index: c.Index, Path: f.Name()}
	if _, err := f.Write(audio); err != nil {
		f.Close()
		_ = seg.Release()
		return Segment{}, fmt.Errorf("write segment: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = seg.Release()
		return Segment{}, fmt.Errorf("close segment: %w", err)
	}
	log.Info().Int("chunk", c.Index).Int("bytes", len(audio)).Msg("synthesized chunk")
	return seg, nil
}

// SynthesizeAll synthesizes chunks strictly in order. On any failure every
// segment already produced is released before the error is returned.
func (s *Synthesizer) SynthesizeAll(ctx context.Context, chunks []chunk.Chunk, voice Voice) ([]Segment, error) {
	segs := make([]Segment, 0, len(chunks))
	for _, c := range chunks {
		log.Debug().Int("chunk", c.Index).Int("of", len(chunks)).Msg("synthesizing")
		seg, err := s.Synthesize(ctx, c, voice)
		if err != nil {
			ReleaseAll(segs)
			return nil, err
		}
		segs = append(segs, seg)
	}
	return segs, nil
}
