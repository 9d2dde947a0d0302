package encode

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// ImageDataURL builds a data: URI for inline base64 image payloads,
// e.g. data:image/png;base64,<data>.
func ImageDataURL(format, data string) string {
	return fmt.Sprintf("data:image/%s;base64,%s", format, data)
}

// AudioDataURL builds the untyped data: URI shape the multimodal provider
// expects for input_audio blocks. The format travels separately.
func AudioDataURL(data string) string {
	return "data:;base64," + data
}

// VideoDataURL builds the untyped data: URI shape used for video_url blocks.
func VideoDataURL(data string) string {
	return "data:;base64," + data
}

// DecodeBase64String decodes a standard base64 payload.
func DecodeBase64String(value string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(value)
}

// EncodeBase64String encodes raw bytes as standard base64.
func EncodeBase64String(value []byte) string {
	return base64.StdEncoding.EncodeToString(value)
}

// ImageInfo describes a probed inline image.
type ImageInfo struct {
	Format string
	Width  int
	Height int
}

// ProbeImage decodes the base64 payload just far enough to report the
// actual format and dimensions (png/jpeg/gif/webp). Used for diagnostics
// only; callers must treat failure as non-fatal since the upstream API is
// authoritative about what it accepts.
func ProbeImage(data string) (*ImageInfo, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image config: %w", err)
	}
	return &ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}
