package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bonaparks/internal/storage"
)

// ServeMedia serves materialized files with range support so videos can seek.
func (a *App) ServeMedia(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	f, ctype, err := a.Media.Open(key)
	if errors.Is(err, storage.ErrNotFound) {
		a.error(w, http.StatusNotFound, "not_found", "media not found")
		return
	}
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid media key")
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeContent(w, r, key, time.Time{}, f)
}
