package render

import "github.com/pspoerri/screensink/internal/raster"

// copyTile copies the overlap of the tile and out. A tile without valid
// pixels (unpainted, or invalidated upstream) fills the overlap with
// zeros instead, and the consumer checks the mask or waits for a notify.
func copyTile(t *tile, out *raster.Region) {
	ov := t.area.Intersect(out.Valid)
	if ov.IsEmpty() {
		return
	}

	if t.painted && !t.region.Invalid() {
		for y := ov.Top; y < ov.Bottom(); y++ {
			copy(out.Row(y, ov.Left, ov.Width), t.region.Row(y, ov.Left, ov.Width))
		}
	} else {
		out.Paint(ov, 0)
	}
}

// fillRegion serves a consumer request against out: every grid-aligned
// tile overlapping the request is obtained from the cache (possibly
// scheduling its computation) and copied. This is the out surface's fill
// callback and returns immediately with whatever is painted so far.
func (s *sink) fillRegion(out *raster.Region) error {
	r := out.Valid
	if r.IsEmpty() {
		return nil
	}

	// Top left of the tile grid covering the request.
	xs := (r.Left / s.tileWidth) * s.tileWidth
	ys := (r.Top / s.tileHeight) * s.tileHeight

	s.mu.Lock()
	for y := ys; y < r.Bottom(); y += s.tileHeight {
		for x := xs; x < r.Right(); x += s.tileWidth {
			area := raster.Rect{Left: x, Top: y, Width: s.tileWidth, Height: s.tileHeight}

			t, err := s.request(area)
			if err != nil {
				s.mu.Unlock()
				return err
			}
			if t != nil {
				copyTile(t, out)
			} else {
				out.Paint(area, 0)
			}
		}
	}
	queued := s.async() && len(s.dirty) > 0
	s.mu.Unlock()

	// Scheduler after the sink lock is released; put is idempotent
	// while the sink stays queued.
	if queued {
		globalScheduler().put(s)
	}
	return nil
}

// fillMask serves the coverage mask: 255 where the corresponding tile is
// painted and valid, 0 everywhere else. Looking at the mask never
// schedules computation.
func (s *sink) fillMask(out *raster.Region) error {
	r := out.Valid
	if r.IsEmpty() {
		return nil
	}

	xs := (r.Left / s.tileWidth) * s.tileWidth
	ys := (r.Top / s.tileHeight) * s.tileHeight

	s.mu.Lock()
	for y := ys; y < r.Bottom(); y += s.tileHeight {
		for x := xs; x < r.Right(); x += s.tileWidth {
			area := raster.Rect{Left: x, Top: y, Width: s.tileWidth, Height: s.tileHeight}

			t := s.lookup(area)
			var v byte
			if t != nil && t.painted && !t.region.Invalid() {
				v = 255
			}
			out.Paint(area, v)
		}
	}
	s.mu.Unlock()

	return nil
}
