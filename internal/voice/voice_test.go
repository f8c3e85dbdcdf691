package voice

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/googleapis/gax-go/v2"

	"github.com/careline-ai/careline/pkg/logging"
)

type fakeRecognizer struct {
	resp *speechpb.RecognizeResponse
	err  error
}

func (f *fakeRecognizer) Recognize(_ context.Context, _ *speechpb.RecognizeRequest, _ ...gax.CallOption) (*speechpb.RecognizeResponse, error) {
	return f.resp, f.err
}

type fakeSynthesizer struct {
	resp *texttospeechpb.SynthesizeSpeechResponse
	err  error
}

func (f *fakeSynthesizer) SynthesizeSpeech(_ context.Context, _ *texttospeechpb.SynthesizeSpeechRequest, _ ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error) {
	return f.resp, f.err
}

func TestTranscribeJoinsAlternatives(t *testing.T) {
	tr := NewGoogleTranscriber(&fakeRecognizer{
		resp: &speechpb.RecognizeResponse{
			Results: []*speechpb.SpeechRecognitionResult{
				{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "book me an"}}},
				{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "appointment"}}},
			},
		},
	}, STTConfig{}, logging.New("error"))

	got, err := tr.Transcribe(context.Background(), []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "book me an appointment" {
		t.Fatalf("transcript = %q", got)
	}
}

func TestTranscribeErrors(t *testing.T) {
	tr := NewGoogleTranscriber(&fakeRecognizer{err: errors.New("quota")}, STTConfig{}, logging.New("error"))

	if _, err := tr.Transcribe(context.Background(), []byte{1}); !errors.Is(err, ErrTranscription) {
		t.Fatalf("expected ErrTranscription, got %v", err)
	}
	if _, err := tr.Transcribe(context.Background(), nil); !errors.Is(err, ErrTranscription) {
		t.Fatalf("expected ErrTranscription for empty audio, got %v", err)
	}

	empty := NewGoogleTranscriber(&fakeRecognizer{resp: &speechpb.RecognizeResponse{}}, STTConfig{}, logging.New("error"))
	if _, err := empty.Transcribe(context.Background(), []byte{1}); !errors.Is(err, ErrTranscription) {
		t.Fatalf("expected ErrTranscription for silence, got %v", err)
	}
}

func TestSynthesizeReturnsAudio(t *testing.T) {
	syn := NewGoogleSynthesizer(&fakeSynthesizer{
		resp: &texttospeechpb.SynthesizeSpeechResponse{AudioContent: []byte("mp3-bytes")},
	}, TTSConfig{}, logging.New("error"))

	audio, err := syn.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "mp3-bytes" {
		t.Fatalf("audio = %q", audio)
	}
}

func TestSynthesizeErrors(t *testing.T) {
	syn := NewGoogleSynthesizer(&fakeSynthesizer{err: errors.New("quota")}, TTSConfig{}, logging.New("error"))

	if _, err := syn.Synthesize(context.Background(), "hello"); !errors.Is(err, ErrSynthesis) {
		t.Fatalf("expected ErrSynthesis, got %v", err)
	}
	if _, err := syn.Synthesize(context.Background(), ""); !errors.Is(err, ErrSynthesis) {
		t.Fatalf("expected ErrSynthesis for empty text, got %v", err)
	}
}

func TestDisabledStub(t *testing.T) {
	var d Disabled
	if _, err := d.Transcribe(context.Background(), []byte{1}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	if _, err := d.Synthesize(context.Background(), "hi"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}
