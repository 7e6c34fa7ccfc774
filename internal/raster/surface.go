package raster

import (
	"fmt"
	"sync"
)

// DemandHint describes the access pattern a surface is optimized for.
type DemandHint int

const (
	// DemandAny places no constraint on request shapes.
	DemandAny DemandHint = iota
	// DemandSmallTile marks the surface as best driven with small,
	// grid-aligned requests.
	DemandSmallTile
)

// FillFunc computes the pixels of reg.Valid into reg.
type FillFunc func(reg *Region) error

// Surface is a demand-driven image: it has a descriptor but no pixels of
// its own. Fetching a region runs the fill callback, which typically
// reads a cache or computes pixels on the spot.
type Surface struct {
	mu      sync.Mutex
	desc    Descriptor
	hint    DemandHint
	fill    FillFunc
	onClose []func()
	closed  bool
}

// NewSurface creates a surface with no descriptor or fill callback; both
// are assigned by whatever builds the pipeline stage behind it.
func NewSurface() *Surface { return &Surface{} }

// Descriptor returns the surface geometry.
func (s *Surface) Descriptor() Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.desc
}

// SetDescriptor assigns the surface geometry.
func (s *Surface) SetDescriptor(d Descriptor) {
	s.mu.Lock()
	s.desc = d
	s.mu.Unlock()
}

// Hint returns the demand hint.
func (s *Surface) Hint() DemandHint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hint
}

// SetHint assigns the demand hint.
func (s *Surface) SetHint(h DemandHint) {
	s.mu.Lock()
	s.hint = h
	s.mu.Unlock()
}

// SetFill assigns the pixel generator.
func (s *Surface) SetFill(f FillFunc) {
	s.mu.Lock()
	s.fill = f
	s.mu.Unlock()
}

// OnClose registers a callback to run when the surface is closed.
func (s *Surface) OnClose(f func()) {
	s.mu.Lock()
	s.onClose = append(s.onClose, f)
	s.mu.Unlock()
}

// Close runs the close callbacks. Closing twice is a no-op.
func (s *Surface) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cbs := s.onClose
	s.onClose = nil
	s.mu.Unlock()

	for _, f := range cbs {
		f()
	}
}

// Fetch computes the pixels of area, clipped to the surface bounds, into
// a fresh region. The caller owns the region and should Release it when
// done. A zero-area fetch returns an empty region without running the
// fill callback.
func (s *Surface) Fetch(area Rect) (*Region, error) {
	s.mu.Lock()
	desc := s.desc
	fill := s.fill
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return nil, fmt.Errorf("raster: fetch from closed surface")
	}
	if fill == nil {
		return nil, fmt.Errorf("raster: surface has no fill callback")
	}

	reg := NewRegion(desc)
	if err := reg.Buffer(area.Intersect(desc.Bounds())); err != nil {
		return nil, err
	}
	if reg.Valid.IsEmpty() {
		return reg, nil
	}
	if err := fill(reg); err != nil {
		reg.Release()
		return nil, err
	}
	return reg, nil
}

// Generate computes the pixels of area into reg, so a surface can serve
// as the producer of a downstream pipeline stage.
func (s *Surface) Generate(reg *Region, area Rect) error {
	s.mu.Lock()
	fill := s.fill
	s.mu.Unlock()
	if fill == nil {
		return fmt.Errorf("raster: surface has no fill callback")
	}
	if err := reg.Buffer(area); err != nil {
		return err
	}
	return fill(reg)
}
