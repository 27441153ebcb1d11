package domain

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Image is a binary image payload together with its MIME type.
type Image struct {
	MIMEType string
	Data     []byte
}

// DataURI renders the image as a base64 data URI.
func (i Image) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", i.MIMEType, base64.StdEncoding.EncodeToString(i.Data))
}

// Empty reports whether the payload carries no bytes.
func (i Image) Empty() bool {
	return len(i.Data) == 0
}

// ParseDataURI decodes a base64 "data:<mime>;base64,<payload>" URI.
func ParseDataURI(uri string) (Image, error) {
	uri = strings.TrimSpace(uri)
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return Image{}, fmt.Errorf("%w: missing data: prefix", ErrInvalidImage)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return Image{}, fmt.Errorf("%w: missing payload", ErrInvalidImage)
	}
	mime, ok := strings.CutSuffix(header, ";base64")
	if !ok || mime == "" {
		return Image{}, fmt.Errorf("%w: unsupported encoding", ErrInvalidImage)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("%w: decode payload: %v", ErrInvalidImage, err)
	}
	if len(data) == 0 {
		return Image{}, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}
	return Image{MIMEType: mime, Data: data}, nil
}
