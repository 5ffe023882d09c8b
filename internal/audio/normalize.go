package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// Normalizer evens out loudness across a whole file and writes an MP3.
type Normalizer interface {
	Normalize(ctx context.Context, in, out string) error
}

// FFmpegNormalizer runs ffmpeg's EBU R128 loudnorm filter over the complete
// stream and re-encodes it with libmp3lame.
type FFmpegNormalizer struct {
	// Path to the ffmpeg binary. Empty means "ffmpeg" from PATH.
	Path string
	// IntegratedLUFS is the loudness target. Zero means -16.
	IntegratedLUFS float64
	// TruePeak in dBTP. Zero means -1.5.
	TruePeak float64
	// Bitrate of the output, e.g. "128k". Empty means 128k.
	Bitrate string
}

// Args returns the ffmpeg command line for in and out.
func (n FFmpegNormalizer) Args(in, out string) []string {
	lufs, tp, br := n.IntegratedLUFS, n.TruePeak, n.Bitrate
	if lufs == 0 {
		lufs = -16
	}
	if tp == 0 {
		tp = -1.5
	}
	if br == "" {
		br = "128k"
	}
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", in,
		"-af", fmt.Sprintf("loudnorm=I=%g:TP=%g:LRA=11", lufs, tp),
		"-ar", "44100",
		"-codec:a", "libmp3lame", "-b:a", br,
		"-f", "mp3", out,
	}
}

func (n FFmpegNormalizer) Normalize(ctx context.Context, in, out string) error {
	bin := n.Path
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin, n.Args(in, out)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg loudnorm: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	log.Debug().Str("out", out).Msg("normalized loudness")
	return nil
}

// Available reports whether the ffmpeg binary can be found.
func (n FFmpegNormalizer) Available() bool {
	bin := n.Path
	if bin == "" {
		bin = "ffmpeg"
	}
	_, err := exec.LookPath(bin)
	return err == nil
}

// PassthroughNormalizer copies the input unchanged.
type PassthroughNormalizer struct{}

func (PassthroughNormalizer) Normalize(_ context.Context, in, out string) error {
	src, err := os.Open(in)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.Create(out)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
