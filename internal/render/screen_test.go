package render

import (
	"errors"
	"testing"

	"github.com/pspoerri/screensink/internal/raster"
	"github.com/pspoerri/screensink/internal/source"
)

func TestSinkScreenRejectsBadParameters(t *testing.T) {
	ramp := source.NewRamp(8, 8, 1)
	tests := []struct {
		name     string
		in       raster.Generator
		out      *raster.Surface
		tw, th   int
		maxTiles int
	}{
		{"zero tile width", ramp, raster.NewSurface(), 0, 4, 4},
		{"negative tile height", ramp, raster.NewSurface(), 4, -1, 4},
		{"max tiles below -1", ramp, raster.NewSurface(), 4, 4, -2},
		{"nil producer", nil, raster.NewSurface(), 4, 4, 4},
		{"nil output", ramp, nil, 4, 4, 4},
	}
	for _, tt := range tests {
		err := SinkScreen(tt.in, tt.out, nil, tt.tw, tt.th, tt.maxTiles, 0, nil, nil)
		if err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestSinkScreenCopiesDescriptor(t *testing.T) {
	ramp := source.NewRamp(16, 12, 3)
	out := raster.NewSurface()
	mask := raster.NewSurface()

	if err := SinkScreen(ramp, out, mask, 4, 4, 4, 0, nil, nil); err != nil {
		t.Fatalf("SinkScreen: %v", err)
	}
	defer out.Close()
	defer mask.Close()

	if out.Descriptor() != ramp.Descriptor() {
		t.Errorf("out descriptor = %+v, want %+v", out.Descriptor(), ramp.Descriptor())
	}
	if out.Hint() != raster.DemandSmallTile {
		t.Error("out surface missing small-tile demand hint")
	}

	md := mask.Descriptor()
	if md.Width != 16 || md.Height != 12 {
		t.Errorf("mask geometry = %dx%d, want 16x12", md.Width, md.Height)
	}
	if md.Bands != 1 || md.Format != raster.Uint8 {
		t.Errorf("mask layout = %d-band %s, want 1-band uint8", md.Bands, md.Format)
	}
}

// Synchronous end to end: a 4x4 producer behind 2x2 tiles, no notify.
// Everything paints on the request path and the mask reports full
// coverage.
func TestSinkScreenSynchronousSmallImage(t *testing.T) {
	ramp := source.NewRamp(4, 4, 1)
	out := raster.NewSurface()
	mask := raster.NewSurface()

	if err := SinkScreen(ramp, out, mask, 2, 2, 4, 0, nil, nil); err != nil {
		t.Fatalf("SinkScreen: %v", err)
	}
	defer out.Close()
	defer mask.Close()

	full := raster.Rect{Width: 4, Height: 4}
	reg, err := out.Fetch(full)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	defer reg.Release()

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if got := reg.Pix[reg.Offset(x, y)]; got != ramp.Value(x, y, 0) {
				t.Fatalf("pixel (%d,%d) = %d, want %d", x, y, got, ramp.Value(x, y, 0))
			}
		}
	}

	m, err := mask.Fetch(full)
	if err != nil {
		t.Fatalf("mask Fetch: %v", err)
	}
	defer m.Release()
	for i, b := range m.Pix {
		if b != 255 {
			t.Fatalf("mask byte %d = %d, want 255", i, b)
		}
	}

	// Same request again: identical pixels, straight from cache.
	reg2, err := out.Fetch(full)
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	defer reg2.Release()
	for i := range reg.Pix {
		if reg.Pix[i] != reg2.Pix[i] {
			t.Fatal("second fetch returned different pixels")
		}
	}
}

func TestSinkScreenSynchronousPropagatesProducerError(t *testing.T) {
	out := raster.NewSurface()
	if err := SinkScreen(&failing{}, out, nil, 2, 2, 4, 0, nil, nil); err != nil {
		t.Fatalf("SinkScreen: %v", err)
	}
	defer out.Close()

	if _, err := out.Fetch(raster.Rect{Width: 2, Height: 2}); err == nil {
		t.Error("expected the producer error from a synchronous fetch")
	}
}

// failing is a producer whose Generate always errors.
type failing struct{}

var errProducer = errors.New("producer failed")

func (f *failing) Descriptor() raster.Descriptor {
	return raster.Descriptor{Width: 8, Height: 8, Bands: 1, Format: raster.Uint8}
}

func (f *failing) Generate(reg *raster.Region, area raster.Rect) error {
	return errProducer
}

func TestAutoMaxTilesBounded(t *testing.T) {
	desc := raster.Descriptor{Width: 4096, Height: 4096, Bands: 3, Format: raster.Uint8}
	n := AutoMaxTiles(desc, 128, 128, DefaultMemoryFraction)
	if n < 4 {
		t.Errorf("AutoMaxTiles = %d, want >= 4", n)
	}
	if n == -1 {
		t.Error("automatic capacity must be bounded")
	}
}
