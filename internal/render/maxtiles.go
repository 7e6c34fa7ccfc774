package render

import (
	"runtime"

	"github.com/pspoerri/screensink/internal/raster"
)

// DefaultMemoryFraction is the fraction of total RAM the tile cache may
// use when its capacity is sized automatically.
const DefaultMemoryFraction = 0.25

// fallbackMaxTiles is used when system RAM cannot be detected.
const fallbackMaxTiles = 1024

// AutoMaxTiles returns a tile cache capacity sized to a fraction of
// system RAM, leaving headroom for the Go runtime and the consumer's own
// allocations. The result is suitable for the maxTiles parameter of
// SinkScreen; it is never -1, so an automatic cache is always bounded.
func AutoMaxTiles(desc raster.Descriptor, tileWidth, tileHeight int, fraction float64) int {
	if fraction <= 0 || fraction > 1 {
		fraction = DefaultMemoryFraction
	}
	tileBytes := int64(tileWidth) * int64(tileHeight) * int64(desc.PixelSize())
	if tileBytes <= 0 {
		return fallbackMaxTiles
	}

	totalRAM, err := totalSystemRAM()
	if err != nil {
		logger.WithError(err).Debug("cannot detect system RAM; using fallback tile capacity")
		return fallbackMaxTiles
	}

	// Subtract the runtime's current footprint so the budget reflects
	// memory actually left for tiles.
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	budget := int64(float64(totalRAM)*fraction) - int64(m.Sys)
	n := int(budget / tileBytes)
	if n < 4 {
		n = 4
	}
	return n
}
