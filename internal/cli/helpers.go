package cli

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"bonaparks/internal/domain"
)

// newLineScanner creates a line scanner from a reader.
func newLineScanner(r io.Reader) *bufio.Scanner {
	return bufio.NewScanner(r)
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/svg+xml":
		return ".svg"
	case "video/mp4":
		return ".mp4"
	}
	return ".jpg"
}

// readImageFile loads a local image and sniffs its MIME type.
func readImageFile(path string) (domain.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Image{}, err
	}
	mimeType := http.DetectContentType(data)
	if strings.HasSuffix(strings.ToLower(path), ".svg") {
		mimeType = "image/svg+xml"
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return domain.Image{}, fmt.Errorf("%s is not an image (%s)", path, mimeType)
	}
	return domain.Image{MIMEType: mimeType, Data: data}, nil
}

// saveDataURI writes a data-URI payload to stem plus an extension derived
// from its MIME type and returns the path written.
func saveDataURI(stem, uri string) (string, error) {
	img, err := domain.ParseDataURI(uri)
	if err != nil {
		return "", err
	}
	path := stem
	if !strings.Contains(stem[strings.LastIndexAny(stem, `/\`)+1:], ".") {
		path += extensionFor(img.MIMEType)
	}
	if err := os.WriteFile(path, img.Data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
