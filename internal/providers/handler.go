package providers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careline-ai/careline/pkg/logging"
)

// Handler handles HTTP requests for the provider directory.
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

// NewHandler creates a new providers handler.
func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// ListProvidersResponse is the response for searching providers.
type ListProvidersResponse struct {
	Providers []Provider `json:"providers"`
	Count     int        `json:"count"`
}

// Search handles GET /providers?specialty=cardiology&available=true.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	filter := SearchFilter{
		Specialty:     r.URL.Query().Get("specialty"),
		AvailableOnly: r.URL.Query().Get("available") == "true",
	}

	list, err := h.repo.Search(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to search providers", "error", err)
		http.Error(w, "failed to search providers", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ListProvidersResponse{Providers: list, Count: len(list)})
}

// Get handles GET /providers/{providerID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "providerID"))
	if err != nil {
		http.Error(w, "invalid provider id", http.StatusBadRequest)
		return
	}

	details, err := h.repo.GetDetails(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "provider not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load provider", "error", err, "provider_id", id)
		http.Error(w, "failed to load provider", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(details)
}

// Specialties handles GET /providers/specialties.
func (h *Handler) Specialties(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.Specialties(r.Context())
	if err != nil {
		h.logger.Error("failed to list specialties", "error", err)
		http.Error(w, "failed to list specialties", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"specialties": list})
}
