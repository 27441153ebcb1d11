package handlers

import (
	"errors"
	"net/http"

	"bonaparks/internal/domain"
	"bonaparks/internal/middleware"
	"bonaparks/internal/providers/genai"
	"bonaparks/internal/studio"
)

type imageRequest struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
	OverlayText string `json:"overlay_text"`
	// Logo is an inline data URI; UseSavedLogo pulls the profile logo instead.
	Logo         string `json:"logo"`
	UseSavedLogo bool   `json:"use_saved_logo"`
}

// SubmitImage runs an image task to completion and returns the task.
func (a *App) SubmitImage(w http.ResponseWriter, r *http.Request) {
	s, ok := a.surface(w, r)
	if !ok {
		return
	}
	var req imageRequest
	if !a.decode(w, r, &req) {
		return
	}
	ratio, err := domain.ParseAspectRatio(req.AspectRatio, domain.AspectSquare)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	var logo *domain.Image
	switch {
	case req.Logo != "":
		img, err := domain.ParseDataURI(req.Logo)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		logo = &img
	case req.UseSavedLogo:
		img, err := a.Profiles.Logo(r.Context(), middleware.OwnerFromContext(r.Context()))
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			a.fail(w, r, err)
			return
		}
		if err == nil {
			logo = &img
		}
	}

	task, err := s.Studio.SubmitImage(r.Context(), studio.ImageRequest{
		Prompt:      req.Prompt,
		AspectRatio: ratio,
		OverlayText: req.OverlayText,
		Logo:        logo,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, task)
}

type videoRequest struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
}

// SubmitVideo starts a video task; progress arrives on the events stream.
func (a *App) SubmitVideo(w http.ResponseWriter, r *http.Request) {
	s, ok := a.surface(w, r)
	if !ok {
		return
	}
	var req videoRequest
	if !a.decode(w, r, &req) {
		return
	}
	ratio, err := domain.ParseAspectRatio(req.AspectRatio, domain.AspectWide)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	task, err := s.Studio.SubmitVideo(r.Context(), req.Prompt, ratio)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, task)
}

type videoEditRequest struct {
	Prompt     string `json:"prompt"`
	MusicTrack string `json:"music_track"`
	EditRegion string `json:"edit_region"`
}

func (a *App) EditVideo(w http.ResponseWriter, r *http.Request) {
	s, ok := a.surface(w, r)
	if !ok {
		return
	}
	var req videoEditRequest
	if !a.decode(w, r, &req) {
		return
	}
	task, err := s.Studio.EditVideo(r.Context(), req.Prompt, genai.VideoEditOptions{
		MusicTrack: req.MusicTrack,
		EditRegion: req.EditRegion,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, task)
}
