package render

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// maxQueuedSinks bounds the semaphore channel. Elements are zero-sized,
// so the capacity costs nothing; it only needs to exceed any plausible
// number of simultaneously live sinks.
const maxQueuedSinks = 1 << 20

// concurrency is the number of painters one paint pass runs.
var concurrency atomic.Int32

func init() {
	concurrency.Store(int32(runtime.NumCPU()))
}

// SetConcurrency sets the number of parallel painters used for one sink's
// paint pass. Values below 1 are clamped to 1.
func SetConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	concurrency.Store(int32(n))
}

// scheduler is the process-wide paint scheduler: the set of sinks with
// dirty tiles, ordered by priority, and the single background worker that
// drains them one at a time.
type scheduler struct {
	mu    sync.Mutex
	sinks []*sink       // sinks with work, descending priority
	sem   chan struct{} // one ticket per queued sink

	// reschedule asks the worker to abandon its current pass at the
	// next tile boundary and pick again: the priority landscape has
	// changed, or a sink wants to die.
	reschedule atomic.Bool
}

var (
	sched     *scheduler
	schedOnce sync.Once
)

// globalScheduler returns the singleton, starting its worker on first
// use.
func globalScheduler() *scheduler {
	schedOnce.Do(func() {
		sched = &scheduler{sem: make(chan struct{}, maxQueuedSinks)}
		go sched.run()
	})
	return sched
}

// queuedIndex returns the position of s in the queue, or -1. Called with
// sc.mu held.
func (sc *scheduler) queuedIndex(s *sink) int {
	for i, q := range sc.sinks {
		if q == s {
			return i
		}
	}
	return -1
}

// put queues a sink for painting if it has dirty tiles and is not queued
// already, and jogs the worker into rescheduling. Idempotent while the
// sink stays queued.
func (sc *scheduler) put(s *sink) {
	if !s.hasDirty() {
		return
	}

	sc.mu.Lock()
	if sc.queuedIndex(s) < 0 {
		// Append then stable sort: equal priorities serve first-queued
		// first.
		sc.sinks = append(sc.sinks, s)
		sort.SliceStable(sc.sinks, func(i, j int) bool {
			return sc.sinks[i].priority > sc.sinks[j].priority
		})
		sc.reschedule.Store(true)

		select {
		case sc.sem <- struct{}{}:
		default:
			// Queue bound exceeded; the sink is listed, the worker
			// will still reach it via a later ticket.
		}
	}
	sc.mu.Unlock()
}

// get blocks until a queued sink is available and pops the highest
// priority one, referenced so it cannot die while the worker paints it.
// Returns nil when the ticket's sink was freed between the semaphore and
// the lock.
func (sc *scheduler) get() *sink {
	<-sc.sem

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if len(sc.sinks) == 0 {
		return nil
	}
	s := sc.sinks[0]
	sc.sinks = sc.sinks[1:]
	if !s.refAlive() {
		// Lost the race with the sink's last unref.
		return nil
	}
	return s
}

// remove unlists a dying sink and strips its semaphore ticket.
func (sc *scheduler) remove(s *sink) {
	sc.mu.Lock()
	if i := sc.queuedIndex(s); i >= 0 {
		sc.sinks = append(sc.sinks[:i], sc.sinks[i+1:]...)
		select {
		case <-sc.sem:
		default:
		}
	}
	sc.mu.Unlock()
}

// run is the background worker: wait for a sink with work, paint until
// its dirty list drains or a reschedule trips, requeue it if work
// remains, drop the ref.
func (sc *scheduler) run() {
	for {
		s := sc.get()
		if s == nil {
			continue
		}

		sc.reschedule.Store(false)
		s.paintPass(sc)

		// Back on the queue if tiles are still waiting.
		sc.put(s)

		s.unref()
	}
}

// nextDirty hands the painter its next tile: the front of the dirty
// list. Returns nil to stop the pass, either because the list is empty
// or a reschedule was requested.
func (s *sink) nextDirty(sc *scheduler) *tile {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sc.reschedule.Load() || len(s.dirty) == 0 {
		return nil
	}
	t := s.dirty[0]
	s.dirty = s.dirty[1:]
	return t
}

// paintTile computes the tile's pixels and tells the consumer. The
// producer runs without the sink lock; an eviction can rebind the tile
// underneath us, but the write stays confined to this tile's own buffer.
// A tile rebound or requeued meanwhile is left unpainted, so the stale
// pixels are never served and its queued paint runs later.
func (s *sink) paintTile(t *tile) error {
	s.mu.Lock()
	area := t.area
	painted := t.painted
	s.mu.Unlock()
	if painted {
		return nil
	}

	if err := s.in.Generate(t.region, area); err != nil {
		return err
	}

	s.mu.Lock()
	ok := t.area == area && s.dirtyIndex(t) < 0
	if ok {
		t.painted = true
	}
	s.mu.Unlock()

	if ok && s.notify != nil {
		s.notify(s.out, area, s.notifyCtx)
	}
	return nil
}

// paintPass drains the sink's dirty list with a pool of painters. Errors
// from the producer stop only the painter that saw them; the failed tile
// stays unpainted and is requeued on the next consumer demand.
func (s *sink) paintPass(sc *scheduler) {
	var g errgroup.Group
	for range int(concurrency.Load()) {
		g.Go(func() error {
			for {
				t := s.nextDirty(sc)
				if t == nil {
					return nil
				}
				if err := s.paintTile(t); err != nil {
					return err
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		logger.WithFields(logrus.Fields{
			"priority": s.priority,
		}).WithError(err).Warn("background paint failed; tile left for re-request")
	}
}
