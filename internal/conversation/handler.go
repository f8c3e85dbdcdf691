package conversation

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/careline-ai/careline/internal/voice"
	"github.com/careline-ai/careline/pkg/logging"
)

const maxVoicePayload = 5 << 20 // 5 MiB of audio

// Handler exposes the conversation service over HTTP.
type Handler struct {
	service     Service
	transcriber voice.Transcriber
	synthesizer voice.Synthesizer
	logger      *logging.Logger
}

// NewHandler creates the conversation handler. Voice dependencies may be
// voice.Disabled{} for text-only deployments.
func NewHandler(service Service, transcriber voice.Transcriber, synthesizer voice.Synthesizer, logger *logging.Logger) *Handler {
	if service == nil {
		panic("conversation: service cannot be nil")
	}
	if transcriber == nil {
		transcriber = voice.Disabled{}
	}
	if synthesizer == nil {
		synthesizer = voice.Disabled{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service:     service,
		transcriber: transcriber,
		synthesizer: synthesizer,
		logger:      logger,
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnknownSession):
		http.Error(w, "unknown conversation", http.StatusNotFound)
	case errors.Is(err, ErrSessionBusy):
		http.Error(w, "a message is already being processed for this conversation", http.StatusConflict)
	case errors.Is(err, ErrServiceUnavailable), errors.Is(err, ErrOrchestratorClosed):
		h.logger.Error("conversation unavailable", "error", err)
		http.Error(w, "assistant is temporarily unavailable", http.StatusServiceUnavailable)
	default:
		h.logger.Error("conversation request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// Start handles POST /conversations.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	resp, err := h.service.StartConversation(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

// Message handles POST /conversations/{conversationID}/messages.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	resp, err := h.service.ProcessMessage(r.Context(), MessageRequest{
		ConversationID: chi.URLParam(r, "conversationID"),
		Text:           body.Text,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// VoiceResponse is the JSON reply for a voice turn. Audio is base64 via the
// standard []byte JSON encoding, present only when synthesis succeeded.
type VoiceResponse struct {
	*Response
	Transcript string `json:"transcript"`
	Audio      []byte `json:"audio,omitempty"`
}

// Voice handles POST /conversations/{conversationID}/voice. The body is raw
// mono 16 kHz LINEAR16 WAV audio. The turn itself runs on the transcript;
// synthesis failures degrade to a text-only reply.
func (h *Handler) Voice(w http.ResponseWriter, r *http.Request) {
	audio, err := io.ReadAll(io.LimitReader(r.Body, maxVoicePayload))
	if err != nil {
		http.Error(w, "failed to read audio", http.StatusBadRequest)
		return
	}

	transcript, err := h.transcriber.Transcribe(r.Context(), audio)
	if err != nil {
		if errors.Is(err, voice.ErrDisabled) {
			http.Error(w, "voice is not enabled", http.StatusNotImplemented)
			return
		}
		h.logger.Warn("transcription failed", "error", err)
		http.Error(w, "could not understand the audio", http.StatusUnprocessableEntity)
		return
	}

	resp, err := h.service.ProcessMessage(r.Context(), MessageRequest{
		ConversationID: chi.URLParam(r, "conversationID"),
		Text:           transcript,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	out := VoiceResponse{Response: resp, Transcript: transcript}
	if speech, err := h.synthesizer.Synthesize(r.Context(), resp.Reply); err != nil {
		if !errors.Is(err, voice.ErrDisabled) {
			h.logger.Warn("synthesis failed, replying text-only", "error", err)
		}
	} else {
		out.Audio = speech
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// End handles DELETE /conversations/{conversationID}.
func (h *Handler) End(w http.ResponseWriter, r *http.Request) {
	if err := h.service.EndConversation(r.Context(), chi.URLParam(r, "conversationID")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
