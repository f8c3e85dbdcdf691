package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careline-ai/careline/pkg/logging"
)

// Handler handles HTTP requests for appointments and availability.
type Handler struct {
	engine *Engine
	logger *logging.Logger
}

// NewHandler creates a new scheduling handler.
func NewHandler(engine *Engine, logger *logging.Logger) *Handler {
	if engine == nil {
		panic("scheduling: engine required")
	}
	return &Handler{engine: engine, logger: logger}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrSlotUnavailable), errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, ErrStorageTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("scheduling request failed", "error", err)
		http.Error(w, "internal error", status)
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// ListSlotsResponse is the response for listing available slots.
type ListSlotsResponse struct {
	ProviderID uuid.UUID `json:"provider_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Slots      []Slot    `json:"slots"`
	Count      int       `json:"count"`
}

// ListSlots handles GET /providers/{providerID}/slots?from=YYYY-MM-DD&to=YYYY-MM-DD.
func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	providerID, err := uuid.Parse(chi.URLParam(r, "providerID"))
	if err != nil {
		http.Error(w, "invalid provider id", http.StatusBadRequest)
		return
	}

	from, err := ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		http.Error(w, "invalid from date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	to := from
	if s := r.URL.Query().Get("to"); s != "" {
		if to, err = ParseDate(s); err != nil {
			http.Error(w, "invalid to date, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}

	slots, err := h.engine.ListSlots(r.Context(), providerID, from, to)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ListSlotsResponse{
		ProviderID: providerID,
		From:       FormatDate(from),
		To:         FormatDate(to),
		Slots:      slots,
		Count:      len(slots),
	})
}

type bookPayload struct {
	PatientID  uuid.UUID `json:"patient_id"`
	ProviderID uuid.UUID `json:"provider_id"`
	Date       string    `json:"date"`
	Start      string    `json:"start"`
	Reason     string    `json:"reason"`
	Notes      string    `json:"notes"`
}

// Book handles POST /appointments.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	var p bookPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	date, err := ParseDate(p.Date)
	if err != nil {
		http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	start, err := ParseTimeOfDay(p.Start)
	if err != nil {
		http.Error(w, "invalid start, want HH:MM", http.StatusBadRequest)
		return
	}

	appt, err := h.engine.Book(r.Context(), BookRequest{
		PatientID:  p.PatientID,
		ProviderID: p.ProviderID,
		Date:       date,
		Start:      start,
		Reason:     p.Reason,
		Notes:      p.Notes,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.Info("appointment booked", "id", appt.ID, "provider_id", appt.ProviderID)
	writeJSON(w, http.StatusCreated, appt)
}

// Get handles GET /appointments/{appointmentID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return
	}

	appt, err := h.engine.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// ListForPatient handles GET /patients/{patientID}/appointments?include_past=true.
func (h *Handler) ListForPatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(chi.URLParam(r, "patientID"))
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}
	includePast := r.URL.Query().Get("include_past") == "true"

	appts, err := h.engine.ListForPatient(r.Context(), patientID, includePast)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"appointments": appts,
		"count":        len(appts),
	})
}

// Confirm handles POST /appointments/{appointmentID}/confirm.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.Confirm)
}

// Complete handles POST /appointments/{appointmentID}/complete.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.MarkCompleted)
}

// NoShow handles POST /appointments/{appointmentID}/no-show.
func (h *Handler) NoShow(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.MarkNoShow)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id uuid.UUID) (*Appointment, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return
	}

	appt, err := op(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.Info("appointment status changed", "id", appt.ID, "status", appt.Status)
	writeJSON(w, http.StatusOK, appt)
}

type cancelPayload struct {
	CancelledBy string `json:"cancelled_by"`
	Reason      string `json:"reason"`
}

// Cancel handles POST /appointments/{appointmentID}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return
	}

	var p cancelPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if p.CancelledBy == "" {
		p.CancelledBy = "patient"
	}

	appt, err := h.engine.Cancel(r.Context(), id, p.CancelledBy, p.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.Info("appointment cancelled", "id", appt.ID, "cancelled_by", p.CancelledBy)
	writeJSON(w, http.StatusOK, appt)
}

type reschedulePayload struct {
	Date  string `json:"date"`
	Start string `json:"start"`
}

// Reschedule handles POST /appointments/{appointmentID}/reschedule. The
// response carries the replacement appointment under a new id.
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return
	}

	var p reschedulePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	date, err := ParseDate(p.Date)
	if err != nil {
		http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	start, err := ParseTimeOfDay(p.Start)
	if err != nil {
		http.Error(w, "invalid start, want HH:MM", http.StatusBadRequest)
		return
	}

	appt, err := h.engine.Reschedule(r.Context(), id, date, start)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.Info("appointment rescheduled", "old_id", id, "new_id", appt.ID)
	writeJSON(w, http.StatusCreated, appt)
}
