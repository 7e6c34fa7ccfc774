package source

import (
	"math"

	"github.com/pspoerri/screensink/internal/raster"
)

// Mandelbrot renders the Mandelbrot set as a 3-band uint8 image. Escape
// time iteration makes it genuinely expensive per pixel, which is what an
// asynchronous screen sink is for.
type Mandelbrot struct {
	Desc    raster.Descriptor
	CenterX float64
	CenterY float64
	Scale   float64 // complex-plane units per pixel
	MaxIter int
}

// NewMandelbrot frames the full set in a width x height image.
func NewMandelbrot(width, height, maxIter int) *Mandelbrot {
	return &Mandelbrot{
		Desc: raster.Descriptor{
			Width:  width,
			Height: height,
			Bands:  3,
			Format: raster.Uint8,
		},
		CenterX: -0.6,
		CenterY: 0,
		Scale:   3.0 / float64(width),
		MaxIter: maxIter,
	}
}

func (m *Mandelbrot) Descriptor() raster.Descriptor { return m.Desc }

func (m *Mandelbrot) Generate(reg *raster.Region, area raster.Rect) error {
	halfW := float64(m.Desc.Width) / 2
	halfH := float64(m.Desc.Height) / 2

	for y := area.Top; y < area.Bottom(); y++ {
		row := reg.Row(y, area.Left, area.Width)
		ci := m.CenterY + (float64(y)-halfH)*m.Scale
		for x := 0; x < area.Width; x++ {
			cr := m.CenterX + (float64(area.Left+x)-halfW)*m.Scale
			r, g, b := m.shade(cr, ci)
			row[x*3+0] = r
			row[x*3+1] = g
			row[x*3+2] = b
		}
	}
	return nil
}

// shade runs the escape-time iteration for one point and maps the result
// to a smooth color.
func (m *Mandelbrot) shade(cr, ci float64) (byte, byte, byte) {
	var zr, zi float64
	n := 0
	for ; n < m.MaxIter; n++ {
		zr, zi = zr*zr-zi*zi+cr, 2*zr*zi+ci
		if zr*zr+zi*zi > 4 {
			break
		}
	}
	if n == m.MaxIter {
		return 0, 0, 0
	}

	// Smoothed iteration count for banding-free gradients.
	mu := float64(n) + 1 - math.Log2(math.Log(math.Sqrt(zr*zr+zi*zi)))
	t := mu / float64(m.MaxIter)
	r := byte(255 * math.Min(1, 3*t))
	g := byte(255 * math.Min(1, math.Max(0, 3*t-1)))
	b := byte(255 * math.Min(1, math.Max(0, 3*t-2)))
	return r, g, b
}
