// sinkview renders a procedural image through the asynchronous screen
// sink and writes snapshots of the result: the painted pixels, optionally
// the coverage mask and a scaled preview. It doubles as a workout for the
// tile cache under a real parallel paint load.
package main

import (
	"flag"
	"fmt"
	"image"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	xdraw "golang.org/x/image/draw"

	"github.com/pspoerri/screensink/internal/encode"
	"github.com/pspoerri/screensink/internal/raster"
	"github.com/pspoerri/screensink/internal/render"
	"github.com/pspoerri/screensink/internal/source"
)

// Set via -ldflags at build time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	var (
		sourceName  string
		size        int
		tileSize    int
		maxTiles    int
		priority    int
		format      string
		quality     int
		output      string
		maskOutput  string
		preview     string
		concurrency int
		iterations  int
		syncMode    bool
		timeout     time.Duration
		verbose     bool
		showVersion bool
	)

	flag.StringVar(&sourceName, "source", "mandelbrot", "Pixel source: mandelbrot, ramp")
	flag.IntVar(&size, "size", 2048, "Image width and height in pixels")
	flag.IntVar(&tileSize, "tile-size", 128, "Tile width and height in pixels")
	flag.IntVar(&maxTiles, "max-tiles", 0, "Tile cache capacity (0 = auto from RAM, -1 = unbounded)")
	flag.IntVar(&priority, "priority", 0, "Paint priority (larger = sooner)")
	flag.StringVar(&format, "format", "webp", "Snapshot encoding: webp, png, jpeg")
	flag.IntVar(&quality, "quality", 85, "JPEG/WebP quality 1-100")
	flag.StringVar(&output, "o", "", "Snapshot output file (default: sink.<ext>)")
	flag.StringVar(&maskOutput, "mask-out", "", "Write the coverage mask as a PNG to this file")
	flag.StringVar(&preview, "preview", "", "Write a scaled-down PNG preview to this file")
	flag.IntVar(&concurrency, "concurrency", runtime.NumCPU(), "Number of parallel painters")
	flag.IntVar(&iterations, "iterations", 256, "Mandelbrot iteration limit")
	flag.BoolVar(&syncMode, "sync", false, "Paint synchronously on the request path (no background worker)")
	flag.DurationVar(&timeout, "timeout", 60*time.Second, "Give up waiting for background paints after this long")
	flag.BoolVar(&verbose, "verbose", false, "Verbose output")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sinkview [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Render a procedural image through the asynchronous screen sink.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("sinkview %s (commit %s, built %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	log := logrus.StandardLogger()
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	render.SetConcurrency(concurrency)

	var in raster.Generator
	switch sourceName {
	case "mandelbrot":
		in = source.NewMandelbrot(size, size, iterations)
	case "ramp":
		in = source.NewRamp(size, size, 3)
	default:
		log.Fatalf("unknown source %q (supported: mandelbrot, ramp)", sourceName)
	}

	enc, err := encode.NewEncoder(format, quality)
	if err != nil {
		log.Fatal(err)
	}
	if output == "" {
		output = "sink" + enc.FileExtension()
	}

	if maxTiles == 0 {
		maxTiles = render.AutoMaxTiles(in.Descriptor(), tileSize, tileSize, render.DefaultMemoryFraction)
		log.Debugf("auto tile capacity: %d tiles", maxTiles)
	}

	cols := (size + tileSize - 1) / tileSize
	total := int64(cols * cols)
	if maxTiles != -1 && int64(maxTiles) < total {
		log.Warnf("cache capacity %d below the %d tiles on screen; eviction will churn", maxTiles, total)
	}

	out := raster.NewSurface()
	mask := raster.NewSurface()

	painted := make(chan raster.Rect, 4096)
	var notify render.Notify
	if !syncMode {
		notify = func(_ *raster.Surface, area raster.Rect, _ any) {
			painted <- area
		}
	}

	if err := render.SinkScreen(in, out, mask,
		tileSize, tileSize, maxTiles, priority, notify, nil); err != nil {
		log.Fatal(err)
	}
	defer out.Close()
	defer mask.Close()

	full := in.Descriptor().Bounds()
	start := time.Now()

	if syncMode {
		log.Debug("painting synchronously")
	} else {
		// The first fetch returns zeros and queues every tile for the
		// background painter; the notify callback counts completions.
		reg, err := out.Fetch(full)
		if err != nil {
			log.Fatal(err)
		}
		reg.Release()

		pb := newProgressBar("Paint", total)
		deadline := time.After(timeout)
		var done int64
	wait:
		for done < total {
			select {
			case <-painted:
				done++
				pb.Increment()
			case <-deadline:
				log.Warnf("timed out with %d/%d tiles painted", done, total)
				break wait
			}
		}
		pb.Finish()
	}

	// Fetch the finished pixels out of the cache.
	reg, err := out.Fetch(full)
	if err != nil {
		log.Fatal(err)
	}
	img, err := reg.RGBA()
	if err != nil {
		log.Fatal(err)
	}
	reg.Release()

	data, err := enc.Encode(img)
	if err != nil {
		log.Fatal(err)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		log.Fatal(err)
	}
	log.Infof("wrote %s (%d bytes) in %s", output, len(data), time.Since(start).Truncate(time.Millisecond))

	if maskOutput != "" {
		if err := writeMask(mask, full, maskOutput); err != nil {
			log.Fatal(err)
		}
		log.Infof("wrote %s", maskOutput)
	}

	if preview != "" {
		if err := writePreview(img, preview); err != nil {
			log.Fatal(err)
		}
		log.Infof("wrote %s", preview)
	}
}

// writeMask snapshots the coverage mask as a grayscale PNG.
func writeMask(mask *raster.Surface, area raster.Rect, path string) error {
	reg, err := mask.Fetch(area)
	if err != nil {
		return err
	}
	defer reg.Release()

	img, err := reg.Gray()
	if err != nil {
		return err
	}
	data, err := (&encode.PNGEncoder{}).Encode(img)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// writePreview scales the snapshot down to at most 512 pixels on the long
// edge and writes it as a PNG.
func writePreview(img *image.RGBA, path string) error {
	b := img.Bounds()
	long := max(b.Dx(), b.Dy())
	scale := 1.0
	if long > 512 {
		scale = 512 / float64(long)
	}
	w := int(float64(b.Dx()) * scale)
	h := int(float64(b.Dy()) * scale)

	small := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(small, small.Bounds(), img, b, xdraw.Src, nil)

	data, err := (&encode.PNGEncoder{}).Encode(small)
	if err != nil {
		return err
	}
	if !strings.HasSuffix(path, ".png") {
		path += ".png"
	}
	return os.WriteFile(path, data, 0o644)
}
