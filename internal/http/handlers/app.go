package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bonaparks/internal/bookings"
	"bonaparks/internal/concierge"
	"bonaparks/internal/domain"
	"bonaparks/internal/infra"
	"bonaparks/internal/profile"
	"bonaparks/internal/storage"
	"bonaparks/internal/surface"
)

// maxBodyBytes bounds JSON request bodies; logos are the largest payload.
const maxBodyBytes = 4 << 20

// App carries the dependencies shared by every handler.
type App struct {
	Surfaces *surface.Registry
	Profiles *profile.Service
	Bookings *bookings.Service
	Media    *storage.FileStore
	Logger   *infra.Logger
	// Heartbeat is the keep-alive interval of event streams.
	Heartbeat time.Duration
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorBody{Error: errorDetail{Code: errCode, Message: message}})
}

// fail maps domain sentinels onto HTTP status codes.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidPrompt),
		errors.Is(err, domain.ErrInvalidAspectRatio),
		errors.Is(err, domain.ErrInvalidImage),
		errors.Is(err, concierge.ErrEmptyMessage),
		errors.Is(err, bookings.ErrInvalidBooking):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrTaskActive):
		a.error(w, http.StatusConflict, "task_active", err.Error())
	case errors.Is(err, domain.ErrNoActiveVideo),
		errors.Is(err, bookings.ErrAlreadyRedeemed):
		a.error(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrSurfaceClosed):
		a.error(w, http.StatusConflict, "surface_closed", err.Error())
	default:
		a.log().Error().Err(err).Str("path", r.URL.Path).Msg("handler failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	return true
}

// surface resolves the {id} route parameter, answering 404 when unknown.
func (a *App) surface(w http.ResponseWriter, r *http.Request) (*surface.Surface, bool) {
	s, err := a.Surfaces.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "surface not found")
		return nil, false
	}
	return s, true
}

func (a *App) log() *infra.Logger {
	if a.Logger == nil {
		discard := infra.DiscardLogger()
		return &discard
	}
	return a.Logger
}
