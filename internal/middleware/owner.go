package middleware

import (
	"context"
	"net/http"
	"strings"
)

// OwnerHeader names the guest identity a request acts for. Authentication
// happens upstream; this service only scopes stored data by it.
const OwnerHeader = "X-Owner-ID"

// DefaultOwner is used when no owner header is sent.
const DefaultOwner = "guest"

type ownerContextKey struct{}

// Owner stores the request's owner in the context.
func Owner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := sanitizeOwner(r.Header.Get(OwnerHeader))
		ctx := context.WithValue(r.Context(), ownerContextKey{}, owner)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OwnerFromContext returns the owner set by Owner, or DefaultOwner.
func OwnerFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ownerContextKey{}).(string); ok && v != "" {
		return v
	}
	return DefaultOwner
}

// sanitizeOwner keeps owners usable inside storage keys.
func sanitizeOwner(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultOwner
	}
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.', r == '@':
			b.WriteRune(r)
		}
		if b.Len() >= 64 {
			break
		}
	}
	if b.Len() == 0 {
		return DefaultOwner
	}
	return b.String()
}
