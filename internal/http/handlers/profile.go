package handlers

import (
	"net/http"

	"bonaparks/internal/middleware"
)

type logoRequest struct {
	Logo string `json:"logo"`
}

type logoResponse struct {
	Logo     string `json:"logo"`
	MIMEType string `json:"mime_type"`
	Bytes    int    `json:"bytes"`
}

func (a *App) GetLogo(w http.ResponseWriter, r *http.Request) {
	img, err := a.Profiles.Logo(r.Context(), middleware.OwnerFromContext(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, logoResponse{Logo: img.DataURI(), MIMEType: img.MIMEType, Bytes: len(img.Data)})
}

func (a *App) PutLogo(w http.ResponseWriter, r *http.Request) {
	var req logoRequest
	if !a.decode(w, r, &req) {
		return
	}
	img, err := a.Profiles.SetLogo(r.Context(), middleware.OwnerFromContext(r.Context()), req.Logo)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, logoResponse{Logo: img.DataURI(), MIMEType: img.MIMEType, Bytes: len(img.Data)})
}

func (a *App) DeleteLogo(w http.ResponseWriter, r *http.Request) {
	if err := a.Profiles.RemoveLogo(r.Context(), middleware.OwnerFromContext(r.Context())); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
