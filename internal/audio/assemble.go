package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/speakloud/internal/tts"
)

// Assembled is the finished narration file.
type Assembled struct {
	Path            string
	DurationSeconds float64
}

// Assembler joins segments in chunk order and normalizes the result.
type Assembler struct {
	Normalizer Normalizer
	// TempDir holds the intermediate concatenation. Empty means os.TempDir.
	TempDir string
}

// Assemble writes the narration to outPath. Every segment file is removed
// before Assemble returns, whether it succeeds or not.
func (a *Assembler) Assemble(ctx context.Context, segments []tts.Segment, outPath string) (Assembled, error) {
	defer tts.ReleaseAll(segments)
	if len(segments) == 0 {
		return Assembled{}, errors.New("no audio segments")
	}
	ordered := append([]tts.Segment(nil), segments...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })
	paths := make([]string, len(ordered))
	for i, s := range ordered {
		paths[i] = s.Path
	}

	tmp, err := os.CreateTemp(a.TempDir, "speakloud-concat-*.mp3")
	if err != nil {
		return Assembled{}, fmt.Errorf("create concat file: %w", err)
	}
	concatPath := tmp.Name()
	tmp.Close()
	defer os.Remove(concatPath)

	raw, err := ConcatFiles(concatPath, paths)
	if err != nil {
		return Assembled{}, fmt.Errorf("concatenate: %w", err)
	}

	norm := a.Normalizer
	if norm == nil {
		norm = PassthroughNormalizer{}
	}
	if err := norm.Normalize(ctx, concatPath, outPath); err != nil {
		_ = os.Remove(outPath)
		return Assembled{}, err
	}
	dur, err := DurationFile(outPath)
	if err != nil {
		log.Warn().Err(err).Str("path", outPath).Msg("could not measure normalized audio; using segment total")
		dur = raw
	}
	log.Info().Int("segments", len(ordered)).Float64("seconds", dur).Str("path", outPath).Msg("assembled audio")
	return Assembled{Path: outPath, DurationSeconds: dur}, nil
}
