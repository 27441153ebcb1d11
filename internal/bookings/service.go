// Package bookings keeps each guest's access passes as a JSON list in the
// key-value store.
package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bonaparks/internal/domain"
	"bonaparks/internal/storage"
)

var (
	// ErrAlreadyRedeemed is returned when redeeming a pass twice.
	ErrAlreadyRedeemed = errors.New("bookings: already redeemed")
	ErrInvalidBooking  = errors.New("bookings: invalid booking")
)

// NewBooking carries the fields a guest supplies when booking.
type NewBooking struct {
	Title       string
	Description string
	ImageURL    string
	Type        domain.BookingType
}

// Service manages booking lists.
type Service struct {
	kv    storage.KV
	now   func() time.Time
	newID func() string

	// mu serializes read-modify-write cycles within this process.
	mu sync.Mutex
}

// NewService wraps kv.
func NewService(kv storage.KV) *Service {
	return &Service{kv: kv, now: time.Now, newID: uuid.NewString}
}

func listKey(owner string) string {
	return "bookings:" + owner
}

// List returns the owner's bookings, seeding the demo passes on first access.
func (s *Service) List(ctx context.Context, owner string) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx, owner)
}

// Create appends an Active booking.
func (s *Service) Create(ctx context.Context, owner string, in NewBooking) (domain.Booking, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Booking{}, fmt.Errorf("%w: title is required", ErrInvalidBooking)
	}
	kind := in.Type
	if kind == "" {
		kind = domain.BookingNightclub
	}
	if kind != domain.BookingNightclub && kind != domain.BookingExhibition {
		return domain.Booking{}, fmt.Errorf("%w: unknown booking type %q", ErrInvalidBooking, kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.loadLocked(ctx, owner)
	if err != nil {
		return domain.Booking{}, err
	}
	now := s.now().UTC()
	b := domain.Booking{
		ID:          s.newID(),
		Title:       title,
		Status:      domain.BookingActive,
		Type:        kind,
		Description: strings.TrimSpace(in.Description),
		ImageURL:    strings.TrimSpace(in.ImageURL),
		BookingDate: now,
		LastUpdate:  now,
	}
	list = append(list, b)
	if err := s.saveLocked(ctx, owner, list); err != nil {
		return domain.Booking{}, err
	}
	return b, nil
}

// Redeem marks a booking Redeemed.
func (s *Service) Redeem(ctx context.Context, owner, id string) (domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.loadLocked(ctx, owner)
	if err != nil {
		return domain.Booking{}, err
	}
	for i := range list {
		if list[i].ID != id {
			continue
		}
		if list[i].Status == domain.BookingRedeemed {
			return list[i], ErrAlreadyRedeemed
		}
		list[i].Status = domain.BookingRedeemed
		list[i].LastUpdate = s.now().UTC()
		if err := s.saveLocked(ctx, owner, list); err != nil {
			return domain.Booking{}, err
		}
		return list[i], nil
	}
	return domain.Booking{}, domain.ErrNotFound
}

func (s *Service) loadLocked(ctx context.Context, owner string) ([]domain.Booking, error) {
	raw, err := s.kv.Get(ctx, listKey(owner))
	if errors.Is(err, storage.ErrNotFound) {
		seed := s.defaults()
		if err := s.saveLocked(ctx, owner, seed); err != nil {
			return nil, err
		}
		return seed, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: load: %w", err)
	}
	var list []domain.Booking
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("bookings: decode: %w", err)
	}
	return list, nil
}

func (s *Service) saveLocked(ctx context.Context, owner string, list []domain.Booking) error {
	if list == nil {
		list = []domain.Booking{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("bookings: encode: %w", err)
	}
	if err := s.kv.Set(ctx, listKey(owner), string(raw)); err != nil {
		return fmt.Errorf("bookings: save: %w", err)
	}
	return nil
}

func (s *Service) defaults() []domain.Booking {
	now := s.now().UTC()
	tenDaysAgo := now.Add(-10 * 24 * time.Hour)
	return []domain.Booking{
		{
			ID:          "proj-1",
			Title:       "Access Pass: The Onyx Lounge",
			Status:      domain.BookingActive,
			Type:        domain.BookingNightclub,
			Description: "VIP entry for the grand opening event.",
			ImageURL:    "https://images.pexels.com/photos/2114365/pexels-photo-2114365.jpeg?auto=compress&cs=tinysrgb&w=1260&h=750&dpr=1",
			BookingDate: now,
			LastUpdate:  now,
		},
		{
			ID:          "proj-2",
			Title:       "Ticket: Starlight Disco",
			Status:      domain.BookingRedeemed,
			Type:        domain.BookingNightclub,
			Description: "General admission for the retro-funk night.",
			ImageURL:    "https://images.pexels.com/photos/1105666/pexels-photo-1105666.jpeg?auto=compress&cs=tinysrgb&w=1260&h=750&dpr=1",
			BookingDate: tenDaysAgo,
			LastUpdate:  tenDaysAgo,
		},
	}
}
