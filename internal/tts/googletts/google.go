// Package googletts synthesizes speech with Google Cloud Text-to-Speech.
package googletts

import (
	"context"
	"fmt"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"

	"github.com/hyperifyio/speakloud/internal/tts"
)

type synthesizeFunc func(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error)

// Provider calls the SynthesizeSpeech RPC with MP3 output.
type Provider struct {
	synthesize synthesizeFunc
	close      func() error
}

// New dials the service using application default credentials.
func New(ctx context.Context) (*Provider, error) {
	c, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("texttospeech client: %w", err)
	}
	return &Provider{
		synthesize: func(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error) {
			return c.SynthesizeSpeech(ctx, req)
		},
		close: c.Close,
	}, nil
}

func (p *Provider) Name() string { return "google" }

// Close releases the underlying connection.
func (p *Provider) Close() error {
	if p.close == nil {
		return nil
	}
	return p.close()
}

func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) ([]byte, error) {
	resp, err := p.synthesize(ctx, Request(text, voice))
	if err != nil {
		return nil, err
	}
	return resp.GetAudioContent(), nil
}

// Request builds the RPC request for text in voice.
func Request(text string, voice tts.Voice) *texttospeechpb.SynthesizeSpeechRequest {
	lang := voice.LanguageCode
	if lang == "" {
		lang = "en-US"
	}
	return &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: lang,
			Name:         voice.Name,
			SsmlGender:   gender(voice.Gender),
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
		},
	}
}

func gender(g tts.Gender) texttospeechpb.SsmlVoiceGender {
	switch g {
	case tts.Male:
		return texttospeechpb.SsmlVoiceGender_MALE
	case tts.Female:
		return texttospeechpb.SsmlVoiceGender_FEMALE
	}
	return texttospeechpb.SsmlVoiceGender_NEUTRAL
}
