package render

import (
	"math/rand"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/pspoerri/screensink/internal/raster"
	"github.com/pspoerri/screensink/internal/source"
)

// waitRect receives one notification or fails the test.
func waitRect(t *testing.T, ch <-chan raster.Rect) raster.Rect {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a paint notification")
		return raster.Rect{}
	}
}

// Asynchronous end to end: the first fetch returns zeros and schedules
// the tile; the notify names the painted rectangle; the second fetch
// serves real pixels.
func TestSinkScreenAsyncSingleTile(t *testing.T) {
	gate := make(chan struct{})
	ramp := source.NewRamp(8, 8, 1)
	slow := &source.Slow{Base: ramp, Gate: gate}

	out := raster.NewSurface()
	mask := raster.NewSurface()
	notifyCh := make(chan raster.Rect, 16)
	notify := func(_ *raster.Surface, a raster.Rect, _ any) { notifyCh <- a }

	if err := SinkScreen(slow, out, mask, 4, 4, 4, 0, notify, nil); err != nil {
		t.Fatalf("SinkScreen: %v", err)
	}
	defer out.Close()
	defer mask.Close()

	req := raster.Rect{Width: 4, Height: 4}

	// The painter is gated, so the first fetch must come back zeros.
	reg, err := out.Fetch(req)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	for i, b := range reg.Pix {
		if b != 0 {
			t.Fatalf("unpainted fetch byte %d = %d, want 0", i, b)
		}
	}
	reg.Release()

	m, err := mask.Fetch(req)
	if err != nil {
		t.Fatalf("mask Fetch: %v", err)
	}
	for _, b := range m.Pix {
		if b != 0 {
			t.Fatal("mask reported coverage before the paint")
		}
	}
	m.Release()

	close(gate)

	if got := waitRect(t, notifyCh); got != req {
		t.Errorf("notify area = %+v, want %+v", got, req)
	}
	select {
	case extra := <-notifyCh:
		t.Errorf("unexpected second notify for %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}

	reg2, err := out.Fetch(req)
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	defer reg2.Release()
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if got := reg2.Pix[reg2.Offset(x, y)]; got != ramp.Value(x, y, 0) {
				t.Fatalf("pixel (%d,%d) = %d, want %d", x, y, got, ramp.Value(x, y, 0))
			}
		}
	}

	m2, err := mask.Fetch(req)
	if err != nil {
		t.Fatalf("second mask Fetch: %v", err)
	}
	defer m2.Release()
	for _, b := range m2.Pix {
		if b != 255 {
			t.Fatal("mask missing coverage after the paint")
		}
	}
}

// Invalidating a painted tile zero-fills requests until the repaint
// lands, then pixels come back.
func TestInvalidationRepaintsInBackground(t *testing.T) {
	ramp := source.NewRamp(8, 8, 1)
	notifyCh := make(chan raster.Rect, 16)
	notify := func(_ *raster.Surface, a raster.Rect, _ any) { notifyCh <- a }

	s := newSink(ramp, raster.NewSurface(), nil, 4, 4, 4, 0, notify, nil)
	t.Cleanup(s.unref)

	req := raster.Rect{Width: 4, Height: 4}

	reg := fetchInto(t, s, req)
	reg.Release()
	waitRect(t, notifyCh)

	reg = fetchInto(t, s, req)
	if reg.Pix[reg.Offset(1, 1)] != ramp.Value(1, 1, 0) {
		t.Fatal("tile not painted after notify")
	}
	reg.Release()

	s.mu.Lock()
	tl := s.lookup(req)
	s.mu.Unlock()
	tl.region.Invalidate()

	// The requeueing fetch itself still sees stale-free zeros.
	reg = fetchInto(t, s, req)
	for i, b := range reg.Pix {
		if b != 0 {
			t.Fatalf("byte %d = %d after invalidation, want 0", i, b)
		}
	}
	reg.Release()

	waitRect(t, notifyCh)

	reg = fetchInto(t, s, req)
	defer reg.Release()
	if reg.Pix[reg.Offset(1, 1)] != ramp.Value(1, 1, 0) {
		t.Error("tile not repainted after invalidation")
	}
}

// A higher priority sink steals the painter from an in-flight pass
// within one tile.
func TestPriorityPreemption(t *testing.T) {
	SetConcurrency(1)
	t.Cleanup(func() { SetConcurrency(runtime.NumCPU()) })

	var mu sync.Mutex
	var order []string
	record := func(tag string) Notify {
		return func(_ *raster.Surface, _ raster.Rect, _ any) {
			mu.Lock()
			order = append(order, tag)
			mu.Unlock()
		}
	}

	slowA := &source.Slow{Base: source.NewRamp(96, 16, 1), Delay: 20 * time.Millisecond}
	sA := newSink(slowA, raster.NewSurface(), nil, 16, 16, -1, 0, record("A"), nil)
	t.Cleanup(sA.unref)

	sB := newSink(source.NewRamp(16, 16, 1), raster.NewSurface(), nil, 16, 16, -1, 10, record("B"), nil)
	t.Cleanup(sB.unref)

	// Six slow tiles for A; the worker starts on them.
	reg := fetchInto(t, sA, raster.Rect{Width: 96, Height: 16})
	reg.Release()
	time.Sleep(30 * time.Millisecond)

	// One fast tile for B at higher priority.
	reg = fetchInto(t, sB, raster.Rect{Width: 16, Height: 16})
	reg.Release()

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := len(order)
		mu.Unlock()
		if n == 7 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("only %d/7 paints finished", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	bAt := -1
	for i, tag := range order {
		if tag == "B" {
			bAt = i
		}
	}
	if bAt < 0 || bAt == len(order)-1 {
		t.Errorf("high priority tile painted last: order %v", order)
	}
}

// Closing the output surface while the worker holds the sink frees the
// sink once the worker lets go.
func TestCloseDuringPaintFreesSink(t *testing.T) {
	gate := make(chan struct{})
	slow := &source.Slow{Base: source.NewRamp(8, 8, 1), Gate: gate}

	out := raster.NewSurface()
	out.SetDescriptor(slow.Descriptor())
	notify := func(_ *raster.Surface, _ raster.Rect, _ any) {}

	s := newSink(slow, out, nil, 4, 4, -1, 0, notify, nil)
	out.SetFill(s.fillRegion)
	out.OnClose(func() {
		s.unref()
		globalScheduler().reschedule.Store(true)
	})

	reg, err := out.Fetch(raster.Rect{Width: 8, Height: 8})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	reg.Release()

	// Give the worker time to take the sink, then drop the consumer's
	// only reference while tiles are still in flight.
	time.Sleep(20 * time.Millisecond)
	out.Close()
	close(gate)

	deadline := time.Now().Add(5 * time.Second)
	for s.refs.Load() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("sink still holds %d refs", s.refs.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if s.tiles != nil {
		t.Error("freed sink still holds its tile map")
	}
}

// Random unaligned fetches against a small cache, with the painter
// racing: the structural invariants must hold whenever the lock is
// taken.
func TestInvariantsUnderRandomWorkload(t *testing.T) {
	ramp := source.NewRamp(64, 64, 1)
	notify := func(_ *raster.Surface, _ raster.Rect, _ any) {}
	s := newSink(ramp, raster.NewSurface(), nil, 8, 8, 8, 0, notify, nil)
	t.Cleanup(s.unref)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 300; i++ {
		r := raster.Rect{
			Left:   rng.Intn(56),
			Top:    rng.Intn(56),
			Width:  1 + rng.Intn(16),
			Height: 1 + rng.Intn(16),
		}
		reg := fetchInto(t, s, r)
		reg.Release()

		if i%10 != 0 {
			continue
		}
		s.mu.Lock()
		if len(s.all) > 8 {
			t.Fatalf("capacity exceeded: %d tiles", len(s.all))
		}
		if len(s.tiles) > len(s.all) {
			t.Fatalf("map holds %d tiles but only %d exist", len(s.tiles), len(s.all))
		}
		for _, tl := range s.tiles {
			if tl.area.Left%8 != 0 || tl.area.Top%8 != 0 {
				t.Fatalf("tile at (%d,%d) off the grid", tl.area.Left, tl.area.Top)
			}
		}
		for _, tl := range s.dirty {
			if tl.painted {
				t.Fatal("painted tile on the dirty list")
			}
		}
		s.mu.Unlock()
	}
}
