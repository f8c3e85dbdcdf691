package voice

import (
	"context"
	"fmt"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/googleapis/gax-go/v2"

	"github.com/careline-ai/careline/pkg/logging"
)

type synthesizeAPI interface {
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error)
}

// TTSConfig selects the voice for synthesized replies.
type TTSConfig struct {
	LanguageCode string
	VoiceName    string
}

// GoogleSynthesizer implements Synthesizer on the Google Cloud
// Text-to-Speech API, producing MP3 audio.
type GoogleSynthesizer struct {
	api    synthesizeAPI
	cfg    TTSConfig
	logger *logging.Logger
}

// NewGoogleSynthesizer wraps a texttospeech client. The *texttospeech.Client
// from texttospeech.NewClient satisfies the api parameter.
func NewGoogleSynthesizer(api synthesizeAPI, cfg TTSConfig, logger *logging.Logger) *GoogleSynthesizer {
	if api == nil {
		panic("voice: texttospeech client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	return &GoogleSynthesizer{api: api, cfg: cfg, logger: logger}
}

func (s *GoogleSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrSynthesis)
	}

	voice := &texttospeechpb.VoiceSelectionParams{
		LanguageCode: s.cfg.LanguageCode,
	}
	if s.cfg.VoiceName != "" {
		voice.Name = s.cfg.VoiceName
	}

	resp, err := s.api.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: voice,
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
		},
	})
	if err != nil {
		s.logger.Error("speech synthesis failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	if len(resp.GetAudioContent()) == 0 {
		return nil, fmt.Errorf("%w: empty audio returned", ErrSynthesis)
	}
	return resp.GetAudioContent(), nil
}

// NewTextToSpeechClient dials the Google Text-to-Speech API, for wiring
// from main.
func NewTextToSpeechClient(ctx context.Context) (*texttospeech.Client, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("voice: create texttospeech client: %w", err)
	}
	return client, nil
}

var _ Synthesizer = (*GoogleSynthesizer)(nil)
