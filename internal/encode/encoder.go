// Package encode turns sink output and coverage masks into image files:
// snapshots of what the cache holds at some instant.
package encode

import (
	"fmt"
	"image"
)

// Encoder encodes an image into snapshot bytes.
type Encoder interface {
	// Encode encodes an image to bytes in the snapshot format.
	Encode(img image.Image) ([]byte, error)

	// Format returns the format name (e.g. "jpeg", "png", "webp").
	Format() string

	// FileExtension returns the appropriate file extension.
	FileExtension() string
}

// NewEncoder creates an encoder for the given format and quality.
func NewEncoder(format string, quality int) (Encoder, error) {
	switch format {
	case "jpeg", "jpg":
		return &JPEGEncoder{Quality: quality}, nil
	case "png":
		return &PNGEncoder{}, nil
	case "webp":
		return &WebPEncoder{Quality: quality}, nil
	default:
		return nil, fmt.Errorf("unsupported snapshot format: %q (supported: jpeg, png, webp)", format)
	}
}
