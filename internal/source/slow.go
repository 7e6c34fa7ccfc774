package source

import (
	"time"

	"github.com/pspoerri/screensink/internal/raster"
)

// Slow wraps a producer with artificial latency, and optionally a gate
// channel that every Generate call must receive from before computing.
// Tests use the gate to hold tiles in the dirty state at will.
type Slow struct {
	Base  raster.Generator
	Delay time.Duration
	Gate  <-chan struct{} // nil = no gating
}

func (s *Slow) Descriptor() raster.Descriptor { return s.Base.Descriptor() }

func (s *Slow) Generate(reg *raster.Region, area raster.Rect) error {
	if s.Gate != nil {
		<-s.Gate
	}
	if s.Delay > 0 {
		time.Sleep(s.Delay)
	}
	return s.Base.Generate(reg, area)
}
