// Command tts-stub serves an OpenAI-compatible /v1/audio/speech endpoint that
// answers with silent MP3 frames, for local runs and integration tests.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	frameLen = 417
	// Roughly fifteen characters of speech per second at 38.28 frames/s.
	charsPerFrame = 0.4
)

type speechRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
	Voice string `json:"voice"`
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "tts-1"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}

	log.Info().Str("addr", addr).Str("model", model).Msg("tts-stub listening")
	if err := http.ListenAndServe(addr, newMux(model)); err != nil {
		log.Fatal().Err(err).Msg("serve")
	}
}

func newMux(model string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/audio/speech", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		defer r.Body.Close()
		var req speechRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Input) == "" {
			http.Error(w, "input is required", http.StatusBadRequest)
			return
		}
		n := framesFor(req.Input)
		log.Debug().Str("voice", req.Voice).Int("chars", utf8.RuneCountInString(req.Input)).Int("frames", n).Msg("speech")
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(silence(n))
	})
	return mux
}

// framesFor scales the clip length with the input so durations look real.
func framesFor(input string) int {
	n := int(float64(utf8.RuneCountInString(input)) * charsPerFrame)
	if n < 1 {
		n = 1
	}
	return n
}

// silence returns n MPEG-1 Layer III frames at 128 kbit/s, 44.1 kHz.
func silence(n int) []byte {
	b := make([]byte, n*frameLen)
	for i := 0; i < n; i++ {
		copy(b[i*frameLen:], []byte{0xFF, 0xFB, 0x90, 0x00})
	}
	return b
}
