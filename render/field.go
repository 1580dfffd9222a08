package render

import (
	"image"
	"runtime"
	"sync"

	mandel "github.com/marben/histomandel"
)

// Field is the outcome of the first pass: one record per pixel in
// row-major order plus the merged per-iteration histogram.
type Field struct {
	Viewport      mandel.Viewport
	MaxIterations int
	Records       []Record
	// Hist has MaxIterations buckets; a point lands in bucket Iterations-1.
	Hist Histogram
}

// At returns the record of pixel (px, py).
func (f *Field) At(px, py int) Record {
	return f.Records[py*f.Viewport.Width+px]
}

// Escaped reports whether rec left the escape circle before the cap.
func (f *Field) Escaped(rec Record) bool {
	return rec.Iterations < f.MaxIterations
}

// Evaluate runs the evaluator over every pixel of vp, which must be valid.
// The frame is split into row bands evaluated concurrently, each with its
// own histogram; the partial histograms are summed once every band is done.
// shards <= 0 uses one band per CPU.
func Evaluate(vp mandel.Viewport, ev *Evaluator, shards int) *Field {
	if shards <= 0 {
		shards = runtime.GOMAXPROCS(0)
	}
	f := &Field{
		Viewport:      vp,
		MaxIterations: ev.maxIter,
		Records:       make([]Record, vp.Pixels()),
		Hist:          NewHistogram(ev.maxIter),
	}

	bands := rowBands(vp.Width, vp.Height, shards)
	if len(bands) == 1 {
		ev.evaluateBand(vp, bands[0], f.Records, f.Hist)
		return f
	}

	partial := make([]Histogram, len(bands))
	var wg sync.WaitGroup
	for i, band := range bands {
		partial[i] = NewHistogram(ev.maxIter)
		wg.Go(func() {
			ev.evaluateBand(vp, band, f.Records, partial[i])
		})
	}
	wg.Wait()

	for _, h := range partial {
		f.Hist.Merge(h)
	}
	return f
}

func (e *Evaluator) evaluateBand(vp mandel.Viewport, band image.Rectangle, records []Record, hist Histogram) {
	dx, dy := vp.Step()
	for py := band.Min.Y; py < band.Max.Y; py++ {
		y := vp.Ymin + float64(py)*dy
		row := py * vp.Width
		for px := band.Min.X; px < band.Max.X; px++ {
			rec := e.Escape(complex(vp.Xmin+float64(px)*dx, y))
			records[row+px] = rec
			hist.Add(rec.Iterations - 1)
		}
	}
}
