// Package profile stores per-owner profile blobs such as the brand logo used
// by the studio.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bonaparks/internal/domain"
	"bonaparks/internal/storage"
)

// DefaultMaxLogoBytes caps decoded logo uploads.
const DefaultMaxLogoBytes = 2 << 20

var allowedLogoTypes = map[string]bool{
	"image/png":     true,
	"image/jpeg":    true,
	"image/webp":    true,
	"image/gif":     true,
	"image/svg+xml": true,
}

// Service reads and writes profile data through a key-value store.
type Service struct {
	kv           storage.KV
	maxLogoBytes int
}

// NewService wraps kv. maxLogoBytes <= 0 selects DefaultMaxLogoBytes.
func NewService(kv storage.KV, maxLogoBytes int) *Service {
	if maxLogoBytes <= 0 {
		maxLogoBytes = DefaultMaxLogoBytes
	}
	return &Service{kv: kv, maxLogoBytes: maxLogoBytes}
}

func logoKey(owner string) string {
	return "profile:" + owner + ":user-logo"
}

// SetLogo validates and stores a data-URI logo.
func (s *Service) SetLogo(ctx context.Context, owner, dataURI string) (domain.Image, error) {
	img, err := domain.ParseDataURI(dataURI)
	if err != nil {
		return domain.Image{}, err
	}
	if !allowedLogoTypes[strings.ToLower(img.MIMEType)] {
		return domain.Image{}, fmt.Errorf("%w: unsupported logo type %q", domain.ErrInvalidImage, img.MIMEType)
	}
	if len(img.Data) > s.maxLogoBytes {
		return domain.Image{}, fmt.Errorf("%w: logo exceeds %d bytes", domain.ErrInvalidImage, s.maxLogoBytes)
	}
	if err := s.kv.Set(ctx, logoKey(owner), img.DataURI()); err != nil {
		return domain.Image{}, fmt.Errorf("profile: save logo: %w", err)
	}
	return img, nil
}

// Logo returns the stored logo or domain.ErrNotFound.
func (s *Service) Logo(ctx context.Context, owner string) (domain.Image, error) {
	raw, err := s.kv.Get(ctx, logoKey(owner))
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Image{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Image{}, fmt.Errorf("profile: load logo: %w", err)
	}
	return domain.ParseDataURI(raw)
}

// RemoveLogo deletes the stored logo. Removing a missing logo is not an error.
func (s *Service) RemoveLogo(ctx context.Context, owner string) error {
	if err := s.kv.Delete(ctx, logoKey(owner)); err != nil {
		return fmt.Errorf("profile: remove logo: %w", err)
	}
	return nil
}
