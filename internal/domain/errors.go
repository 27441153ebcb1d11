package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidPrompt      = errors.New("invalid prompt")
	ErrInvalidAspectRatio = errors.New("invalid aspect ratio")
	ErrInvalidImage       = errors.New("invalid image")
	ErrTaskActive         = errors.New("a generation task is already active")
	ErrSurfaceClosed      = errors.New("surface closed")
	ErrNoActiveVideo      = errors.New("no completed video to edit")
	ErrProviderFailure    = errors.New("provider failure")
)
