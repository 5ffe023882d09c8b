package openaitts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/speakloud/internal/tts"
)

func TestVoiceFor(t *testing.T) {
	if VoiceFor(tts.Voice{Name: "Shimmer"}) != openai.VoiceShimmer {
		t.Fatal("named voice should win")
	}
	if VoiceFor(tts.Voice{Gender: tts.Male}) != openai.VoiceOnyx {
		t.Fatal("male default")
	}
	if VoiceFor(tts.DefaultVoice()) != openai.VoiceAlloy {
		t.Fatal("neutral default")
	}
}

func TestSynthesize_AgainstStubServer(t *testing.T) {
	var got struct {
		Model  string `json:"model"`
		Input  string `json:"input"`
		Voice  string `json:"voice"`
		Format string `json:"response_format"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte{0xff, 0xfb, 0x90, 0x64})
	}))
	defer srv.Close()

	p := New("test-key", srv.URL+"/v1", "")
	b, err := p.Synthesize(context.Background(), "Hello there.", tts.Voice{Name: "nova"})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(b) != 4 {
		t.Fatalf("unexpected audio %v", b)
	}
	if got.Model != DefaultModel || got.Input != "Hello there." || got.Voice != "nova" || got.Format != "mp3" {
		t.Fatalf("unexpected request %+v", got)
	}
}
