// Package audio scans, concatenates and normalizes MP3 streams.
//
// Segments returned by speech services are complete MP3 files, each with its
// own ID3 tag and often a Xing/Info header frame. Concatenating them byte for
// byte would leave those headers in the middle of the stream and confuse
// players about the total length, so Concat copies only the audio frames.
package audio

import (
	"bytes"
	"errors"
	"os"
)

// ErrNoFrames is returned for data that contains no MPEG audio frames.
var ErrNoFrames = errors.New("no MPEG audio frames")

// Frame locates one MPEG audio frame inside a buffer.
type Frame struct {
	Offset     int
	Length     int
	SampleRate int
	Samples    int
}

// Seconds is the playback time of the frame.
func (f Frame) Seconds() float64 {
	return float64(f.Samples) / float64(f.SampleRate)
}

const (
	mpeg25 = 0
	mpeg2  = 2
	mpeg1  = 3

	layer3 = 1
	layer2 = 2
	layer1 = 3
)

// kbps tables indexed by [table][bitrate index].
var bitrates = [5][16]int{
	{0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448, -1}, // MPEG1 L1
	{0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, -1},    // MPEG1 L2
	{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, -1},     // MPEG1 L3
	{0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, -1},    // MPEG2/2.5 L1
	{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, -1},         // MPEG2/2.5 L2, L3
}

var sampleRates = map[int][3]int{
	mpeg1:  {44100, 48000, 32000},
	mpeg2:  {22050, 24000, 16000},
	mpeg25: {11025, 12000, 8000},
}

// header is a decoded 4-byte frame header.
type header struct {
	version    int
	layer      int
	sampleRate int
	samples    int
	length     int
	mono       bool
}

func parseHeader(b []byte) (header, bool) {
	if len(b) < 4 || b[0] != 0xFF || b[1]&0xE0 != 0xE0 {
		return header{}, false
	}
	h := header{
		version: int(b[1]>>3) & 0x3,
		layer:   int(b[1]>>1) & 0x3,
	}
	if h.version == 1 || h.layer == 0 {
		return header{}, false
	}
	brIdx := int(b[2] >> 4)
	srIdx := int(b[2]>>2) & 0x3
	padding := int(b[2]>>1) & 0x1
	if brIdx == 0 || brIdx == 15 || srIdx == 3 {
		return header{}, false
	}
	h.sampleRate = sampleRates[h.version][srIdx]
	h.mono = b[3]>>6 == 0x3

	var table int
	switch {
	case h.version == mpeg1 && h.layer == layer1:
		table = 0
	case h.version == mpeg1 && h.layer == layer2:
		table = 1
	case h.version == mpeg1:
		table = 2
	case h.layer == layer1:
		table = 3
	default:
		table = 4
	}
	bitrate := bitrates[table][brIdx] * 1000

	switch {
	case h.layer == layer1:
		h.samples = 384
		h.length = (12*bitrate/h.sampleRate + padding) * 4
	case h.layer == layer3 && h.version != mpeg1:
		h.samples = 576
		h.length = 72*bitrate/h.sampleRate + padding
	default:
		h.samples = 1152
		h.length = 144*bitrate/h.sampleRate + padding
	}
	if h.length < 4 {
		return header{}, false
	}
	return h, true
}

// sideInfoSize is the Layer III side information length that precedes a
// Xing/Info tag.
func (h header) sideInfoSize() int {
	switch {
	case h.version == mpeg1 && h.mono:
		return 17
	case h.version == mpeg1:
		return 32
	case h.mono:
		return 9
	default:
		return 17
	}
}

// isInfoFrame reports frames that carry encoder metadata instead of audio.
func isInfoFrame(h header, frame []byte) bool {
	if h.layer == layer3 {
		off := 4 + h.sideInfoSize()
		if len(frame) >= off+4 {
			tag := frame[off : off+4]
			if bytes.Equal(tag, []byte("Xing")) || bytes.Equal(tag, []byte("Info")) {
				return true
			}
		}
	}
	return len(frame) >= 40 && bytes.Equal(frame[36:40], []byte("VBRI"))
}

// id3v2Size returns the total size of an ID3v2 tag starting at b, or 0.
func id3v2Size(b []byte) int {
	if len(b) < 10 || string(b[:3]) != "ID3" {
		return 0
	}
	size := int(b[6]&0x7f)<<21 | int(b[7]&0x7f)<<14 | int(b[8]&0x7f)<<7 | int(b[9]&0x7f)
	total := 10 + size
	if b[5]&0x10 != 0 {
		total += 10
	}
	return total
}

// Frames returns the audio frames of data in order, skipping ID3v2 tags,
// Xing/Info/VBRI header frames, junk between frames and a truncated tail.
func Frames(data []byte) ([]Frame, error) {
	var frames []Frame
	pos := 0
	for pos+4 <= len(data) {
		if n := id3v2Size(data[pos:]); n > 0 {
			pos += n
			continue
		}
		h, ok := parseHeader(data[pos:])
		if !ok || pos+h.length > len(data) {
			pos++
			continue
		}
		// A lone 0xFFE pattern inside junk is not a frame unless another
		// header or the end of data follows it.
		next := pos + h.length
		if next+4 <= len(data) && id3v2Size(data[next:]) == 0 {
			if _, ok := parseHeader(data[next:]); !ok && string(data[next:next+3]) != "TAG" {
				pos++
				continue
			}
		}
		if !isInfoFrame(h, data[pos:next]) {
			frames = append(frames, Frame{Offset: pos, Length: h.length, SampleRate: h.sampleRate, Samples: h.samples})
		}
		pos = next
	}
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	return frames, nil
}

// Duration returns the playback length of data in seconds.
func Duration(data []byte) (float64, error) {
	frames, err := Frames(data)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, f := range frames {
		total += f.Seconds()
	}
	return total, nil
}

// DurationFile is Duration for a file on disk.
func DurationFile(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return Duration(b)
}
