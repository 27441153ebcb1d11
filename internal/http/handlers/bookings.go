package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"bonaparks/internal/bookings"
	"bonaparks/internal/domain"
	"bonaparks/internal/middleware"
)

type bookingRequest struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	ImageURL    string             `json:"imageUrl"`
	Type        domain.BookingType `json:"type"`
}

func (a *App) ListBookings(w http.ResponseWriter, r *http.Request) {
	list, err := a.Bookings.List(r.Context(), middleware.OwnerFromContext(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"bookings": list})
}

func (a *App) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if !a.decode(w, r, &req) {
		return
	}
	b, err := a.Bookings.Create(r.Context(), middleware.OwnerFromContext(r.Context()), bookings.NewBooking{
		Title:       req.Title,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Type:        req.Type,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, b)
}

func (a *App) RedeemBooking(w http.ResponseWriter, r *http.Request) {
	b, err := a.Bookings.Redeem(r.Context(), middleware.OwnerFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, b)
}
