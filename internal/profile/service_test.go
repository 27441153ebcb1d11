package profile

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"bonaparks/internal/domain"
	"bonaparks/internal/storage"
)

func dataURI(mime string, n int) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString([]byte(strings.Repeat("x", n)))
}

func TestSetLogoValidation(t *testing.T) {
	svc := NewService(storage.NewMemoryKV(), 16)
	tests := []struct {
		name string
		uri  string
		ok   bool
	}{
		{name: "png", uri: dataURI("image/png", 8), ok: true},
		{name: "at limit", uri: dataURI("image/jpeg", 16), ok: true},
		{name: "too large", uri: dataURI("image/png", 17)},
		{name: "not an image", uri: dataURI("application/pdf", 4)},
		{name: "not a data uri", uri: "https://example.com/logo.png"},
		{name: "bad base64", uri: "data:image/png;base64,@@@"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SetLogo(context.Background(), "guest", tc.uri)
			if tc.ok && err != nil {
				t.Fatalf("SetLogo returned error: %v", err)
			}
			if !tc.ok && !errors.Is(err, domain.ErrInvalidImage) {
				t.Fatalf("SetLogo error = %v, want ErrInvalidImage", err)
			}
		})
	}
}

func TestLogoLifecycle(t *testing.T) {
	kv := storage.NewMemoryKV()
	svc := NewService(kv, 0)
	ctx := context.Background()

	if _, err := svc.Logo(ctx, "ana"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Logo error = %v, want ErrNotFound", err)
	}
	uri := dataURI("image/png", 4)
	if _, err := svc.SetLogo(ctx, "ana", uri); err != nil {
		t.Fatalf("SetLogo returned error: %v", err)
	}
	if raw, _ := kv.Get(ctx, "profile:ana:user-logo"); raw != uri {
		t.Fatalf("stored value = %q, want %q", raw, uri)
	}
	img, err := svc.Logo(ctx, "ana")
	if err != nil || img.MIMEType != "image/png" || string(img.Data) != "xxxx" {
		t.Fatalf("Logo = %#v, %v", img, err)
	}
	if _, err := svc.Logo(ctx, "other"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatal("logos must be scoped per owner")
	}
	if err := svc.RemoveLogo(ctx, "ana"); err != nil {
		t.Fatalf("RemoveLogo returned error: %v", err)
	}
	if _, err := svc.Logo(ctx, "ana"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Logo after remove error = %v, want ErrNotFound", err)
	}
}
