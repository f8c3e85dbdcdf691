// Package voice adds speech-to-text and text-to-speech on top of the text
// conversation flow. Both directions are optional; a deployment without
// Google credentials runs text-only.
package voice

import (
	"context"
	"errors"
)

var (
	// ErrTranscription is returned when audio could not be turned into text.
	ErrTranscription = errors.New("voice: transcription failed")
	// ErrSynthesis is returned when a reply could not be rendered as audio.
	ErrSynthesis = errors.New("voice: synthesis failed")
	// ErrDisabled is returned when the voice channel is not configured.
	ErrDisabled = errors.New("voice: not configured")
)

// Transcriber turns one audio utterance into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Synthesizer renders one reply as audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Disabled satisfies both interfaces for deployments without voice support.
type Disabled struct{}

func (Disabled) Transcribe(context.Context, []byte) (string, error) {
	return "", ErrDisabled
}

func (Disabled) Synthesize(context.Context, string) ([]byte, error) {
	return nil, ErrDisabled
}

var (
	_ Transcriber = Disabled{}
	_ Synthesizer = Disabled{}
)
