package raster

import (
	"fmt"
	"sync/atomic"
)

// Region is a rectangular window of pixels with the layout of desc.
// The buffer is owned exclusively by the region; concurrent writers are
// expected to coordinate through whatever owns the region.
type Region struct {
	desc  Descriptor
	Valid Rect
	Pix   []byte

	// invalid marks the pixels as stale: the upstream producer has
	// changed since they were computed. Set externally, consulted by
	// the cache, cleared on the next Buffer.
	invalid atomic.Bool
}

// NewRegion creates an empty region with the pixel layout of desc.
// Call Buffer before using it.
func NewRegion(desc Descriptor) *Region {
	return &Region{desc: desc}
}

// Descriptor returns the pixel layout the region was created with.
func (r *Region) Descriptor() Descriptor { return r.desc }

// PixelSize returns the number of bytes one pixel occupies.
func (r *Region) PixelSize() int { return r.desc.PixelSize() }

// Invalidate marks the region's pixels as stale.
func (r *Region) Invalidate() { r.invalid.Store(true) }

// Invalid reports whether the region's pixels have been marked stale.
func (r *Region) Invalid() bool { return r.invalid.Load() }

// Buffer sizes the region to cover area and zeroes the pixels. The
// existing slab is reused in place when the byte size is unchanged, so a
// writer racing against a rebind can only scribble on this region's own
// pixels, never on memory another region has adopted. The invalid flag
// is cleared.
func (r *Region) Buffer(area Rect) error {
	if area.Width < 0 || area.Height < 0 {
		return fmt.Errorf("raster: bad region area %+v", area)
	}
	n := area.Width * area.Height * r.desc.PixelSize()
	if len(r.Pix) == n {
		clear(r.Pix)
	} else {
		r.Pix = getSlab(n)
	}
	r.Valid = area
	r.invalid.Store(false)
	return nil
}

// Release returns the pixel slab to the shared pool. The region must not
// be used again afterwards.
func (r *Region) Release() {
	putSlab(r.Pix)
	r.Pix = nil
	r.Valid = Rect{}
}

// Offset returns the byte offset of pixel (x, y), which must lie inside
// Valid.
func (r *Region) Offset(x, y int) int {
	return ((y-r.Valid.Top)*r.Valid.Width + (x - r.Valid.Left)) * r.desc.PixelSize()
}

// Row returns the bytes of the pixels [x, x+width) on row y.
func (r *Region) Row(y, x, width int) []byte {
	off := r.Offset(x, y)
	return r.Pix[off : off+width*r.desc.PixelSize()]
}

// Paint fills every byte of the pixels in area ∩ Valid with value.
func (r *Region) Paint(area Rect, value byte) {
	ov := area.Intersect(r.Valid)
	if ov.IsEmpty() {
		return
	}
	for y := ov.Top; y < ov.Bottom(); y++ {
		row := r.Row(y, ov.Left, ov.Width)
		for i := range row {
			row[i] = value
		}
	}
}

// CopyFrom copies the pixels of area ∩ Valid ∩ src.Valid from src, which
// must share the region's pixel layout.
func (r *Region) CopyFrom(src *Region, area Rect) {
	ov := area.Intersect(r.Valid).Intersect(src.Valid)
	if ov.IsEmpty() {
		return
	}
	for y := ov.Top; y < ov.Bottom(); y++ {
		copy(r.Row(y, ov.Left, ov.Width), src.Row(y, ov.Left, ov.Width))
	}
}
