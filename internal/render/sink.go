package render

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/pspoerri/screensink/internal/raster"
)

// Notify is called from a painting goroutine every time a tile of out
// gains freshly computed pixels. The callee must be safe to call from any
// goroutine; a UI consumer typically marshals the event to its main loop.
type Notify func(out *raster.Surface, area raster.Rect, ctx any)

// sink is the per-consumer state of one asynchronous screen pipeline: a
// tile cache over the producer, the surfaces it feeds, and the dirty work
// queue the background painter drains.
//
// The sink is shared between consumer goroutines and the painter, so it
// carries its own reference count; the close hooks on out and mask are
// weak observers that only drop a reference.
type sink struct {
	refs atomic.Int32

	in   raster.Generator
	out  *raster.Surface
	mask *raster.Surface

	tileWidth  int
	tileHeight int
	maxTiles   int // -1 = unbounded
	priority   int // larger numbers painted sooner
	notify     Notify
	notifyCtx  any

	// mu guards everything below.
	mu    sync.Mutex
	all   []*tile           // every tile we own, for bulk free
	tiles map[tileKey]*tile // lookup by grid position
	dirty []*tile           // tiles needing paint, most recently queued first
	ticks int               // bumped on every touch, the LRU clock
}

func newSink(in raster.Generator, out, mask *raster.Surface,
	tileWidth, tileHeight, maxTiles, priority int,
	notify Notify, ctx any) *sink {

	s := &sink{
		in:         in,
		out:        out,
		mask:       mask,
		tileWidth:  tileWidth,
		tileHeight: tileHeight,
		maxTiles:   maxTiles,
		priority:   priority,
		notify:     notify,
		notifyCtx:  ctx,
		tiles:      make(map[tileKey]*tile),
	}
	s.refs.Store(1)
	return s
}

// async reports whether tiles are painted by the background worker. With
// no notify callback the consumer could never learn about finished tiles,
// so painting happens synchronously on the request path instead.
func (s *sink) async() bool { return s.notify != nil }

func (s *sink) ref() {
	s.refs.Add(1)
}

// refAlive takes a reference only if the sink still has one, so a dying
// sink cannot be resurrected by the worker.
func (s *sink) refAlive() bool {
	for {
		n := s.refs.Load()
		if n == 0 {
			return false
		}
		if s.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// unref drops one reference and frees the sink on the last one.
func (s *sink) unref() {
	if s.refs.Add(-1) == 0 {
		s.free()
	}
}

// free releases every tile. Runs once, after the last unref, so no lock
// is needed for the tile structures; the scheduler entry is removed under
// the scheduler's own lock.
func (s *sink) free() {
	globalScheduler().remove(s)

	for _, t := range s.all {
		t.region.Release()
	}
	s.all = nil
	s.tiles = nil
	s.dirty = nil
}

// newTile creates a fresh, unpositioned tile owned by the sink.
func (s *sink) newTile() (*tile, error) {
	t := &tile{
		sink:   s,
		region: raster.NewRegion(s.in.Descriptor()),
		ticks:  s.ticks,
	}
	s.all = append(s.all, t)
	return t, nil
}

// lookup returns the tile at exactly this grid position, or nil.
func (s *sink) lookup(area raster.Rect) *tile {
	return s.tiles[tileKey{left: area.Left, top: area.Top}]
}

// dirtyIndex returns the position of t in the dirty list, or -1.
func (s *sink) dirtyIndex(t *tile) int {
	for i, d := range s.dirty {
		if d == t {
			return i
		}
	}
	return -1
}

// dirtyPromote moves t to the front of the dirty list, inserting it if
// absent. The front is what the painter takes next.
func (s *sink) dirtyPromote(t *tile) {
	if i := s.dirtyIndex(t); i >= 0 {
		copy(s.dirty[1:i+1], s.dirty[:i])
		s.dirty[0] = t
		return
	}
	s.dirty = append(s.dirty, nil)
	copy(s.dirty[1:], s.dirty)
	s.dirty[0] = t
}

// touch stamps the tile with the current clock. A dirty tile also jumps
// to the front of the dirty list, so recently demanded tiles are painted
// earliest while the replacement scan still finds the stalest entries.
func (s *sink) touch(t *tile) {
	t.ticks = s.ticks
	s.ticks++

	if !t.painted && s.dirtyIndex(t) >= 0 {
		s.dirtyPromote(t)
	}
}

// queue rebinds t to area and marks it for painting. In asynchronous
// mode the tile goes to the front of the dirty list; the caller notifies
// the scheduler once it has released the sink lock. In synchronous mode
// the pixels are computed on the spot and errors are the caller's.
func (s *sink) queue(t *tile, area raster.Rect) error {
	t.painted = false
	t.area = area
	if err := t.region.Buffer(area); err != nil {
		// Logged and returned in both modes: the consumer's fetch
		// fails, and the tile is left unpainted and out of the map.
		logger.WithFields(logrus.Fields{
			"left": area.Left,
			"top":  area.Top,
		}).WithError(err).Error("tile rebuffer failed")
		return fmt.Errorf("render: rebuffer tile at (%d,%d): %w", area.Left, area.Top, err)
	}
	s.tiles[t.key()] = t

	if s.async() {
		s.dirtyPromote(t)
		return nil
	}

	// No notify callback: paint now, so the consumer never observes an
	// unpainted tile.
	if err := s.in.Generate(t.region, t.area); err != nil {
		return fmt.Errorf("render: compute tile at (%d,%d): %w", area.Left, area.Top, err)
	}
	t.painted = true
	return nil
}

// reclaimPainted returns the least recently touched painted tile, or nil.
// The linear scan is fine: the map is bounded by maxTiles.
func (s *sink) reclaimPainted() *tile {
	var best *tile
	for _, t := range s.tiles {
		if t.painted && (best == nil || t.ticks < best.ticks) {
			best = t
		}
	}
	return best
}

// reclaimDirty steals the least recently queued dirty tile, or nil.
func (s *sink) reclaimDirty() *tile {
	if len(s.dirty) == 0 {
		return nil
	}
	t := s.dirty[len(s.dirty)-1]
	s.dirty = s.dirty[:len(s.dirty)-1]
	return t
}

// request obtains the tile for area, creating, requeueing or reusing one
// as needed, and touches it. Returns nil when the cache is full and every
// tile is in flight; the caller paints zeros then. Called with s.mu held.
func (s *sink) request(area raster.Rect) (*tile, error) {
	t := s.lookup(area)
	switch {
	case t != nil:
		// Already have a tile here; requeue it if the pixels are
		// missing or stale.
		if !t.painted || t.region.Invalid() {
			if err := s.queue(t, area); err != nil {
				return nil, err
			}
		}

	case s.maxTiles == -1 || len(s.all) < s.maxTiles:
		var err error
		if t, err = s.newTile(); err != nil {
			return nil, err
		}
		if err := s.queue(t, area); err != nil {
			return nil, err
		}

	default:
		// Cache is full: reuse an old painted tile, else steal the
		// stalest dirty one.
		if t = s.reclaimPainted(); t == nil {
			if t = s.reclaimDirty(); t == nil {
				return nil, nil
			}
		}
		logger.WithFields(logrus.Fields{
			"from": fmt.Sprintf("(%d,%d)", t.area.Left, t.area.Top),
			"to":   fmt.Sprintf("(%d,%d)", area.Left, area.Top),
		}).Debug("reusing tile")

		delete(s.tiles, t.key())
		if err := s.queue(t, area); err != nil {
			return nil, err
		}
	}

	s.touch(t)
	return t, nil
}

// hasDirty reports whether any tiles are waiting to be painted.
func (s *sink) hasDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirty) > 0
}
