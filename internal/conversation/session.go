package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Channel identifies how the patient is talking to the assistant.
const (
	ChannelText  = "text"
	ChannelVoice = "voice"
)

// Session is one patient conversation: identity hints plus the transcript
// the model reasons over.
type Session struct {
	ID           string        `json:"id"`
	PatientPhone string        `json:"patient_phone,omitempty"`
	Channel      string        `json:"channel"`
	Messages     []ChatMessage `json:"messages"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// NewSession creates an empty session.
func NewSession(patientPhone, channel string) *Session {
	if channel == "" {
		channel = ChannelText
	}
	now := time.Now().UTC()
	return &Session{
		ID:           uuid.NewString(),
		PatientPhone: patientPhone,
		Channel:      channel,
		Messages:     []ChatMessage{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Append adds messages to the transcript and bumps the update time.
func (s *Session) Append(msgs ...ChatMessage) {
	s.Messages = append(s.Messages, msgs...)
	s.UpdatedAt = time.Now().UTC()
}

// Truncate drops the oldest messages beyond max, taking care to never leave
// a dangling tool result at the head: the providers reject transcripts where
// a result precedes its request.
func (s *Session) Truncate(max int) {
	if max <= 0 || len(s.Messages) <= max {
		return
	}
	cut := len(s.Messages) - max
	for cut < len(s.Messages) && s.Messages[cut].Role == ChatRoleTool {
		cut++
	}
	s.Messages = s.Messages[cut:]
}
