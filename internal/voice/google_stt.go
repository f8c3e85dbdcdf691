package voice

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"

	"github.com/careline-ai/careline/pkg/logging"
)

type recognizeAPI interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
}

// STTConfig describes the audio callers upload. The handler requires mono
// 16 kHz LINEAR16 WAV payloads, matching the defaults here.
type STTConfig struct {
	LanguageCode    string
	SampleRateHertz int32
}

// GoogleTranscriber implements Transcriber on the Google Cloud
// Speech-to-Text API.
type GoogleTranscriber struct {
	api    recognizeAPI
	cfg    STTConfig
	logger *logging.Logger
}

// NewGoogleTranscriber wraps a speech client. The *speech.Client from
// speech.NewClient satisfies the api parameter.
func NewGoogleTranscriber(api recognizeAPI, cfg STTConfig, logger *logging.Logger) *GoogleTranscriber {
	if api == nil {
		panic("voice: speech client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	if cfg.SampleRateHertz <= 0 {
		cfg.SampleRateHertz = 16000
	}
	return &GoogleTranscriber{api: api, cfg: cfg, logger: logger}
}

func (t *GoogleTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: empty audio", ErrTranscription)
	}

	resp, err := t.api.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:          speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:   t.cfg.SampleRateHertz,
			LanguageCode:      t.cfg.LanguageCode,
			AudioChannelCount: 1,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		t.logger.Error("speech recognition failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}

	var transcript strings.Builder
	for _, result := range resp.GetResults() {
		for _, alt := range result.GetAlternatives() {
			transcript.WriteString(alt.GetTranscript())
			transcript.WriteString(" ")
		}
	}

	text := strings.TrimSpace(transcript.String())
	if text == "" {
		return "", fmt.Errorf("%w: no speech recognized", ErrTranscription)
	}
	return text, nil
}

// NewSpeechClient dials the Google Speech API, for wiring from main.
func NewSpeechClient(ctx context.Context) (*speech.Client, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("voice: create speech client: %w", err)
	}
	return client, nil
}

var _ Transcriber = (*GoogleTranscriber)(nil)
