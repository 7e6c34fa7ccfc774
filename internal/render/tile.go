// Package render is an asynchronous screen sink: a tile cache over an
// expensive pixel producer, painted by a shared background worker, so an
// interactive consumer's requests return immediately with whatever is
// already computed.
package render

import "github.com/pspoerri/screensink/internal/raster"

// tileKey identifies a tile slot on the sink's grid. Tile geometry is
// fixed per sink, so the top-left corner alone is the identity.
type tileKey struct {
	left, top int
}

// tile is one cell of the cache: a grid-aligned rectangle of the producer
// image and a pixel buffer for it.
type tile struct {
	sink *sink // non-owning back-reference; tiles never outlive their sink

	area    raster.Rect    // place here (unclipped)
	painted bool           // pixels are valid for area (not dirty)
	region  *raster.Region // the pixels

	ticks int // time of last use, for LRU reuse
}

func (t *tile) key() tileKey {
	return tileKey{left: t.area.Left, top: t.area.Top}
}
