// Package router assembles the HTTP surface: provider directory, patient
// records, the booking engine, and the conversational assistant.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/careline-ai/careline/internal/conversation"
	httpmiddleware "github.com/careline-ai/careline/internal/http/middleware"
	"github.com/careline-ai/careline/internal/patients"
	"github.com/careline-ai/careline/internal/providers"
	"github.com/careline-ai/careline/internal/scheduling"
	"github.com/careline-ai/careline/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger              *logging.Logger
	ProvidersHandler    *providers.Handler
	PatientsHandler     *patients.Handler
	SchedulingHandler   *scheduling.Handler
	ConversationHandler *conversation.Handler
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if h := cfg.ProvidersHandler; h != nil {
		r.Route("/providers", func(r chi.Router) {
			r.Get("/", h.Search)
			r.Get("/specialties", h.Specialties)
			r.Get("/{providerID}", h.Get)
			if s := cfg.SchedulingHandler; s != nil {
				r.Get("/{providerID}/slots", s.ListSlots)
			}
		})
	}

	if h := cfg.PatientsHandler; h != nil {
		r.Route("/patients", func(r chi.Router) {
			r.Post("/", h.Register)
			r.Get("/lookup", h.Lookup)
			r.Get("/{patientID}", h.Get)
			if s := cfg.SchedulingHandler; s != nil {
				r.Get("/{patientID}/appointments", s.ListForPatient)
			}
		})
	}

	if h := cfg.SchedulingHandler; h != nil {
		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", h.Book)
			r.Get("/{appointmentID}", h.Get)
			r.Post("/{appointmentID}/confirm", h.Confirm)
			r.Post("/{appointmentID}/cancel", h.Cancel)
			r.Post("/{appointmentID}/reschedule", h.Reschedule)
			r.Post("/{appointmentID}/complete", h.Complete)
			r.Post("/{appointmentID}/no-show", h.NoShow)
		})
	}

	if h := cfg.ConversationHandler; h != nil {
		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", h.Start)
			r.Post("/{conversationID}/messages", h.Message)
			r.Post("/{conversationID}/voice", h.Voice)
			r.Delete("/{conversationID}", h.End)
		})
	}

	return r
}
