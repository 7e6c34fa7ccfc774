package raster

import (
	"fmt"
	"image"
)

// RGBA converts the region to an *image.RGBA anchored at the origin.
// Supported layouts: 1-band uint8 (replicated to gray), 3-band uint8 and
// 4-band uint8.
func (r *Region) RGBA() (*image.RGBA, error) {
	if r.desc.Format != Uint8 {
		return nil, fmt.Errorf("raster: cannot convert %s region to RGBA", r.desc.Format)
	}
	w, h := r.Valid.Width, r.Valid.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	bands := r.desc.Bands

	for y := 0; y < h; y++ {
		src := r.Row(r.Valid.Top+y, r.Valid.Left, w)
		dst := img.Pix[y*img.Stride : y*img.Stride+w*4]
		switch bands {
		case 1:
			for x := 0; x < w; x++ {
				v := src[x]
				dst[x*4+0] = v
				dst[x*4+1] = v
				dst[x*4+2] = v
				dst[x*4+3] = 0xff
			}
		case 3:
			for x := 0; x < w; x++ {
				dst[x*4+0] = src[x*3+0]
				dst[x*4+1] = src[x*3+1]
				dst[x*4+2] = src[x*3+2]
				dst[x*4+3] = 0xff
			}
		case 4:
			copy(dst, src)
		default:
			return nil, fmt.Errorf("raster: cannot convert %d-band region to RGBA", bands)
		}
	}
	return img, nil
}

// Gray converts a 1-band uint8 region to an *image.Gray anchored at the
// origin. Used for coverage-mask snapshots.
func (r *Region) Gray() (*image.Gray, error) {
	if r.desc.Format != Uint8 || r.desc.Bands != 1 {
		return nil, fmt.Errorf("raster: cannot convert %d-band %s region to Gray",
			r.desc.Bands, r.desc.Format)
	}
	w, h := r.Valid.Width, r.Valid.Height
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+w], r.Row(r.Valid.Top+y, r.Valid.Left, w))
	}
	return img, nil
}
