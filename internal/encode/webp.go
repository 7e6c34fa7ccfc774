package encode

import (
	"bytes"
	"fmt"
	"image"

	"github.com/gen2brain/webp"
)

// WebPEncoder encodes snapshots as WebP.
type WebPEncoder struct {
	Quality int // 1-100, default 85
}

func (e *WebPEncoder) Encode(img image.Image) ([]byte, error) {
	if img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		return nil, fmt.Errorf("webp: empty image")
	}
	quality := e.Quality
	if quality <= 0 {
		quality = 85
	}
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, webp.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *WebPEncoder) Format() string        { return "webp" }
func (e *WebPEncoder) FileExtension() string { return ".webp" }
