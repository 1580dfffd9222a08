package main

import (
	"bufio"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/marben/histomandel/render"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

type encodeFunc func(io.Writer, image.Image) error

// encoderFor picks an image encoder from the file extension.
func encoderFor(filename string) (encodeFunc, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".png":
		return png.Encode, nil
	case ".bmp":
		return bmp.Encode, nil
	case ".tif", ".tiff":
		return func(w io.Writer, m image.Image) error {
			return tiff.Encode(w, m, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
		}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q (use .png, .bmp or .tiff)", ext)
	}
}

func saveImage(filename string, img image.Image) error {
	encode, err := encoderFor(filename)
	if err != nil {
		return err
	}
	return writeFile(filename, func(w io.Writer) error { return encode(w, img) })
}

func writeFile(filename string, write func(io.Writer) error) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		f.Close()
		return fmt.Errorf("write %q: %w", filename, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %q: %w", filename, err)
	}
	return f.Close()
}

// downscale resamples src to w×h with a Catmull-Rom filter.
func downscale(src *image.RGBA, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

func saveHistogramChart(filename string, f *render.Field) error {
	return writeFile(filename, func(w io.Writer) error { return writeHistogramChart(w, f) })
}

// writeHistogramChart plots, per escape iteration, the share of escaped
// points and the cumulative frequency that drives the coloring.
func writeHistogramChart(w io.Writer, f *render.Field) error {
	if len(f.Hist) < 2 {
		return fmt.Errorf("histogram chart needs at least 2 iterations, have %d", len(f.Hist))
	}
	cum := f.Hist.Cumulative()
	total := f.Hist.Total()

	xs := make([]float64, len(f.Hist))
	share := make([]float64, len(f.Hist))
	for i, n := range f.Hist {
		xs[i] = float64(i + 1)
		if total > 0 {
			share[i] = float64(n) / float64(total)
		}
	}

	ch := chart.Chart{
		Title:      fmt.Sprintf("Escape iterations (%dx%d, N=%d)", f.Viewport.Width, f.Viewport.Height, f.MaxIterations),
		Width:      1024,
		Height:     512,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis:      chart.XAxis{Name: "iteration"},
		YAxis:      chart.YAxis{Name: "frequency", Range: &chart.ContinuousRange{Min: 0, Max: 1}},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "cumulative",
				XValues: xs,
				YValues: cum,
				Style:   chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 2},
			},
			chart.ContinuousSeries{
				Name:    "share",
				XValues: xs,
				YValues: share,
				Style:   chart.Style{StrokeColor: drawing.ColorRed, StrokeWidth: 1},
			},
		},
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch.Render(chart.PNG, w)
}
