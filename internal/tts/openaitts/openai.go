// Package openaitts synthesizes speech through an OpenAI-compatible
// /v1/audio/speech endpoint.
package openaitts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/speakloud/internal/tts"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "tts-1"

// MaxInput is the longest input, in characters, the speech endpoint accepts.
const MaxInput = 4096

var voices = map[string]openai.SpeechVoice{
	"alloy":   openai.VoiceAlloy,
	"echo":    openai.VoiceEcho,
	"fable":   openai.VoiceFable,
	"onyx":    openai.VoiceOnyx,
	"nova":    openai.VoiceNova,
	"shimmer": openai.VoiceShimmer,
}

// Provider wraps a go-openai client.
type Provider struct {
	Model string
	speak func(ctx context.Context, req openai.CreateSpeechRequest) (io.ReadCloser, error)
}

// New builds a provider for apiKey. baseURL overrides the API root, for
// example a local stub ending in /v1.
func New(apiKey, baseURL, model string) *Provider {
	return NewWithClient(apiKey, baseURL, model, nil)
}

// NewWithClient is New with an explicit HTTP client; nil keeps the default.
func NewWithClient(apiKey, baseURL, model string, hc *http.Client) *Provider {
	cfg := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if hc != nil {
		cfg.HTTPClient = hc
	}
	client := openai.NewClientWithConfig(cfg)
	if model == "" {
		model = DefaultModel
	}
	return &Provider{
		Model: model,
		speak: func(ctx context.Context, req openai.CreateSpeechRequest) (io.ReadCloser, error) {
			return client.CreateSpeech(ctx, req)
		},
	}
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) ([]byte, error) {
	rc, err := p.speak(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(p.Model),
		Input:          text,
		Voice:          VoiceFor(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read speech: %w", err)
	}
	return b, nil
}

// VoiceFor maps a voice to one of the service's named voices. A known Name
// wins; otherwise gender picks a default.
func VoiceFor(v tts.Voice) openai.SpeechVoice {
	if sv, ok := voices[strings.ToLower(strings.TrimSpace(v.Name))]; ok {
		return sv
	}
	switch v.Gender {
	case tts.Male:
		return openai.VoiceOnyx
	case tts.Female:
		return openai.VoiceNova
	}
	return openai.VoiceAlloy
}
