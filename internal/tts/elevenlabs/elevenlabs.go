// Package elevenlabs synthesizes speech over the ElevenLabs stream-input
// WebSocket, collecting the streamed MP3 frames into one buffer per chunk.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/coder/websocket"

	"github.com/hyperifyio/speakloud/internal/tts"
)

const (
	defaultEndpoint  = "wss://api.elevenlabs.io/v1/text-to-speech"
	defaultModel     = "eleven_multilingual_v2"
	defaultOutputFmt = "mp3_44100_128"
	// DefaultVoiceID is used when the voice carries no name.
	DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"

	readLimit = 16 << 20
)

// Option configures a Provider.
type Option func(*Provider)

// WithModel sets the model ID.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithEndpoint replaces the WebSocket base URL, mainly for tests.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) { p.endpoint = endpoint }
}

// Provider implements tts.Provider.
type Provider struct {
	apiKey   string
	model    string
	endpoint string
}

// New returns a provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{apiKey: apiKey, model: defaultModel, endpoint: defaultEndpoint}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

func (p *Provider) Name() string { return "elevenlabs" }

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type boiMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
}

type textMessage struct {
	Text                 string `json:"text"`
	TryTriggerGeneration bool   `json:"try_trigger_generation,omitempty"`
}

type audioResponse struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (p *Provider) streamURL(voiceID string) string {
	q := url.Values{}
	q.Set("model_id", p.model)
	q.Set("output_format", defaultOutputFmt)
	return fmt.Sprintf("%s/%s/stream-input?%s", p.endpoint, url.PathEscape(voiceID), q.Encode())
}

// Synthesize sends text as a single input and reads audio until the server
// marks the stream final or closes it normally.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) ([]byte, error) {
	voiceID := voice.Name
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}
	h := http.Header{}
	h.Set("xi-api-key", p.apiKey)
	conn, _, err := websocket.Dial(ctx, p.streamURL(voiceID), &websocket.DialOptions{HTTPHeader: h})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimit)

	msgs := []any{
		boiMessage{Text: " ", VoiceSettings: &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}, XiAPIKey: p.apiKey},
		textMessage{Text: text + " ", TryTriggerGeneration: true},
		textMessage{Text: ""},
	}
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return nil, err
		}
		if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
			return nil, fmt.Errorf("elevenlabs: send: %w", err)
		}
	}

	var audio bytes.Buffer
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				break
			}
			return nil, fmt.Errorf("elevenlabs: read: %w", err)
		}
		var resp audioResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}
		if resp.Error != "" {
			return nil, fmt.Errorf("elevenlabs: %s: %s", resp.Error, resp.Message)
		}
		if resp.Audio != "" {
			b, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err != nil {
				return nil, fmt.Errorf("elevenlabs: decode audio: %w", err)
			}
			audio.Write(b)
		}
		if resp.IsFinal {
			break
		}
	}
	conn.Close(websocket.StatusNormalClosure, "done")
	return audio.Bytes(), nil
}
