// Package source provides procedural pixel producers: deterministic ones
// for tests and expensive ones for exercising the asynchronous sink.
package source

import (
	"fmt"

	"github.com/pspoerri/screensink/internal/raster"
)

// Ramp is a cheap deterministic producer: every sample is a fixed
// function of its coordinates and band, so tests can verify copied
// pixels without keeping a reference image around.
type Ramp struct {
	Desc raster.Descriptor
}

// NewRamp returns a width x height ramp with the given band count.
func NewRamp(width, height, bands int) *Ramp {
	return &Ramp{Desc: raster.Descriptor{
		Width:  width,
		Height: height,
		Bands:  bands,
		Format: raster.Uint8,
	}}
}

// Value returns the sample the ramp produces at (x, y, band).
func (r *Ramp) Value(x, y, band int) byte {
	return byte((x*7 + y*13 + band*29) % 251)
}

func (r *Ramp) Descriptor() raster.Descriptor { return r.Desc }

func (r *Ramp) Generate(reg *raster.Region, area raster.Rect) error {
	if reg.PixelSize() != r.Desc.PixelSize() {
		return fmt.Errorf("source: ramp pixel layout mismatch")
	}
	bands := r.Desc.Bands
	for y := area.Top; y < area.Bottom(); y++ {
		row := reg.Row(y, area.Left, area.Width)
		for x := 0; x < area.Width; x++ {
			for b := 0; b < bands; b++ {
				row[x*bands+b] = r.Value(area.Left+x, y, b)
			}
		}
	}
	return nil
}
