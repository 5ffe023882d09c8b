package audio

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Concat writes the audio frames of each segment to w in the given order and
// returns the combined duration in seconds.
func Concat(w io.Writer, segments ...[]byte) (float64, error) {
	var total float64
	for i, seg := range segments {
		frames, err := Frames(seg)
		if err != nil {
			return 0, fmt.Errorf("segment %d: %w", i+1, err)
		}
		for _, f := range frames {
			if _, err := w.Write(seg[f.Offset : f.Offset+f.Length]); err != nil {
				return 0, err
			}
			total += f.Seconds()
		}
	}
	return total, nil
}

// ConcatFiles concatenates the MP3 files at paths into out.
func ConcatFiles(out string, paths []string) (float64, error) {
	f, err := os.Create(out)
	if err != nil {
		return 0, err
	}
	bw := bufio.NewWriter(f)
	var total float64
	for i, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			f.Close()
			return 0, fmt.Errorf("read segment %d: %w", i+1, err)
		}
		d, err := Concat(bw, b)
		if err != nil {
			f.Close()
			return 0, fmt.Errorf("segment %d: %w", i+1, err)
		}
		total += d
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return 0, err
	}
	return total, f.Close()
}
