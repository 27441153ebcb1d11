package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"bonaparks/internal/domain"
	"bonaparks/internal/middleware"
)

type surfaceResponse struct {
	ID       string               `json:"id"`
	Locale   string               `json:"locale"`
	Messages []domain.ChatMessage `json:"messages"`
}

// CreateSurface attaches a new chat panel / studio view.
func (a *App) CreateSurface(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())
	s, err := a.Surfaces.Create(r.Context(), locale)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, surfaceResponse{ID: s.ID, Locale: s.Locale, Messages: s.Concierge.Messages()})
}

// DeleteSurface tears a surface down, stopping any running video poll.
func (a *App) DeleteSurface(w http.ResponseWriter, r *http.Request) {
	if err := a.Surfaces.Close(chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type tasksResponse struct {
	Tasks  []domain.GenerationTask `json:"tasks"`
	Active *domain.GenerationTask  `json:"active"`
}

func (a *App) ListTasks(w http.ResponseWriter, r *http.Request) {
	s, ok := a.surface(w, r)
	if !ok {
		return
	}
	resp := tasksResponse{Tasks: s.Studio.Tasks()}
	if current, busy := s.Studio.Current(); busy {
		resp.Active = &current
	}
	a.json(w, http.StatusOK, resp)
}

// CancelTask supersedes the surface's active task.
func (a *App) CancelTask(w http.ResponseWriter, r *http.Request) {
	s, ok := a.surface(w, r)
	if !ok {
		return
	}
	if !s.Studio.Cancel() {
		a.error(w, http.StatusConflict, "no_active_task", "no task is running")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
