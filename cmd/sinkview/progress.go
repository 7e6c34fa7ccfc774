package main

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// progressBar shows paint progress in place on stderr. Increment may be
// called from any goroutine, so the counter is atomic; drawing happens on
// a single refresh goroutine.
type progressBar struct {
	label   string
	total   int64
	painted atomic.Int64
	start   time.Time
	done    chan struct{}
	stopped chan struct{}
}

func newProgressBar(label string, total int64) *progressBar {
	pb := &progressBar{
		label:   label,
		total:   total,
		start:   time.Now(),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go pb.refresh()
	return pb
}

// Increment records one painted tile. Safe for concurrent use.
func (pb *progressBar) Increment() {
	pb.painted.Add(1)
}

// Finish stops the refresh loop and leaves a final line on the terminal.
func (pb *progressBar) Finish() {
	close(pb.done)
	<-pb.stopped
	pb.draw()
	fmt.Fprintln(os.Stderr)
}

func (pb *progressBar) refresh() {
	defer close(pb.stopped)
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-pb.done:
			return
		case <-tick.C:
			pb.draw()
		}
	}
}

func (pb *progressBar) draw() {
	n := pb.painted.Load()
	frac := 0.0
	if pb.total > 0 {
		frac = min(1, float64(n)/float64(pb.total))
	}

	const width = 24
	filled := int(frac * width)
	bar := strings.Repeat("=", filled)
	if filled < width {
		bar += ">" + strings.Repeat(" ", width-filled-1)
	}

	eta := "?"
	if n > 0 && n < pb.total {
		perTile := time.Since(pb.start) / time.Duration(n)
		eta = (perTile * time.Duration(pb.total-n)).Truncate(time.Second).String()
	} else if n >= pb.total {
		eta = "0s"
	}

	fmt.Fprintf(os.Stderr, "\r%s [%s] %d/%d tiles  eta %s\033[K",
		pb.label, bar, n, pb.total, eta)
}
