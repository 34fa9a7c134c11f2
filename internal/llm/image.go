package llm

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/Saksham338101/menu-scanner1/internal/extract"
)

// ErrEmptyImage is returned when a base64 payload decodes to nothing.
var ErrEmptyImage = extract.ErrEmptyImage

// CleanBase64 strips a data-URL prefix and any whitespace from a base64
// image payload.
func CleanBase64(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	return strings.Join(strings.Fields(s), "")
}

// DecodeImage turns a base64 or data-URL payload into an Image. The MIME type
// comes from the data-URL header when present and is sniffed otherwise.
func DecodeImage(payload string) (extract.Image, error) {
	mime := ""
	if trimmed := strings.TrimSpace(payload); strings.HasPrefix(trimmed, "data:") {
		if end := strings.IndexAny(trimmed, ";,"); end > len("data:") {
			mime = trimmed[len("data:"):end]
		}
	}

	data, err := base64.StdEncoding.DecodeString(CleanBase64(payload))
	if err != nil {
		return extract.Image{}, fmt.Errorf("decode image: %w", err)
	}
	if len(data) == 0 {
		return extract.Image{}, ErrEmptyImage
	}
	if mime == "" {
		mime = DetectMIME(data)
	}
	return extract.Image{Data: data, MIMEType: mime}, nil
}

// DetectMIME sniffs an image MIME type, defaulting to JPEG.
func DetectMIME(data []byte) string {
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "image/jpeg"
	}
	return mime
}

// DataURL renders img as a base64 data URL.
func DataURL(img extract.Image) string {
	mime := img.MIMEType
	if mime == "" {
		mime = DetectMIME(img.Data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
