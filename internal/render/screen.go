package render

import (
	"fmt"

	"github.com/pspoerri/screensink/internal/raster"
)

// SinkScreen wires out (and optionally mask) to a tile-cached view of in.
//
// Fetches on out return immediately with whatever the cache holds for the
// requested rectangle; uncached tiles are queued for the background
// painter and come back as zeros for now. Every time a tile finishes,
// notify runs from the painting goroutine with the tile's rectangle, and
// the consumer re-fetches. The cache holds at most maxTiles tiles of
// tileWidth by tileHeight pixels; -1 means unbounded. Larger priority
// values are painted sooner when several sinks compete for the painter.
//
// mask, when non-nil, becomes a one-band uint8 coverage image over the
// same geometry: 255 where pixels are computed and current, 0 elsewhere.
// The mask is pull-only; re-fetch it after a notify to see new coverage.
//
// With notify == nil the sink is synchronous: fetches on out block while
// missing tiles are computed on the calling goroutine, and producer
// errors surface from the fetch.
func SinkScreen(in raster.Generator, out, mask *raster.Surface,
	tileWidth, tileHeight, maxTiles, priority int,
	notify Notify, ctx any) error {

	if in == nil || out == nil {
		return fmt.Errorf("render: nil image")
	}
	if tileWidth <= 0 || tileHeight <= 0 || maxTiles < -1 {
		return fmt.Errorf("render: bad parameters: tile %dx%d, max tiles %d",
			tileWidth, tileHeight, maxTiles)
	}

	desc := in.Descriptor()
	if err := desc.Validate(); err != nil {
		return err
	}

	// Make sure the background worker is up before any tile can be
	// queued.
	sc := globalScheduler()

	out.SetDescriptor(desc)
	out.SetHint(raster.DemandSmallTile)
	if mask != nil {
		mdesc := desc
		mdesc.Bands = 1
		mdesc.Format = raster.Uint8
		mask.SetDescriptor(mdesc)
		mask.SetHint(raster.DemandSmallTile)
	}

	s := newSink(in, out, mask, tileWidth, tileHeight, maxTiles, priority, notify, ctx)

	// Both surfaces hold a reference; the sink dies when the last one
	// closes. The reschedule nudge makes the worker drop its own ref
	// promptly if it is holding the sink.
	out.SetFill(s.fillRegion)
	out.OnClose(func() {
		s.unref()
		sc.reschedule.Store(true)
	})

	if mask != nil {
		s.ref()
		mask.SetFill(s.fillMask)
		mask.OnClose(func() {
			s.unref()
			sc.reschedule.Store(true)
		})
	}

	return nil
}
