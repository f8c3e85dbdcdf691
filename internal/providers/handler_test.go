package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careline-ai/careline/pkg/logging"
)

type stubRepo struct {
	providers   []Provider
	details     *Details
	specialties []string
	lastFilter  SearchFilter
}

func (s *stubRepo) Search(_ context.Context, f SearchFilter) ([]Provider, error) {
	s.lastFilter = f
	return s.providers, nil
}

func (s *stubRepo) Get(_ context.Context, id uuid.UUID) (*Provider, error) {
	if s.details == nil {
		return nil, ErrNotFound
	}
	return &s.details.Provider, nil
}

func (s *stubRepo) GetDetails(_ context.Context, id uuid.UUID) (*Details, error) {
	if s.details == nil {
		return nil, ErrNotFound
	}
	return s.details, nil
}

func (s *stubRepo) Specialties(_ context.Context) ([]string, error) {
	return s.specialties, nil
}

func testRouter(repo Repository) http.Handler {
	h := NewHandler(repo, logging.New("error"))
	r := chi.NewRouter()
	r.Get("/providers", h.Search)
	r.Get("/providers/specialties", h.Specialties)
	r.Get("/providers/{providerID}", h.Get)
	return r
}

func TestSearchPassesFilter(t *testing.T) {
	repo := &stubRepo{providers: []Provider{{FullName: "Dr. Asha Rao"}}}
	srv := testRouter(repo)

	req := httptest.NewRequest(http.MethodGet, "/providers?specialty=cardiology&available=true", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if repo.lastFilter.Specialty != "cardiology" || !repo.lastFilter.AvailableOnly {
		t.Fatalf("filter not passed through: %+v", repo.lastFilter)
	}

	var resp ListProvidersResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("expected count 1, got %d", resp.Count)
	}
}

func TestGetUnknownProviderReturns404(t *testing.T) {
	srv := testRouter(&stubRepo{})

	req := httptest.NewRequest(http.MethodGet, "/providers/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetInvalidIDReturns400(t *testing.T) {
	srv := testRouter(&stubRepo{})

	req := httptest.NewRequest(http.MethodGet, "/providers/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
