package domain

import "time"

// BookingStatus enumerates booking lifecycle states.
type BookingStatus string

const (
	BookingActive   BookingStatus = "Active"
	BookingRedeemed BookingStatus = "Redeemed"
	BookingPending  BookingStatus = "Pending"
)

// BookingType classifies the venue a booking grants access to.
type BookingType string

const (
	BookingNightclub  BookingType = "Nightclub"
	BookingExhibition BookingType = "Exhibition"
)

// Booking is an access pass stored for a guest.
type Booking struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Status      BookingStatus `json:"status"`
	Type        BookingType   `json:"type"`
	Description string        `json:"description"`
	ImageURL    string        `json:"imageUrl"`
	BookingDate time.Time     `json:"bookingDate"`
	LastUpdate  time.Time     `json:"lastUpdate"`
}
