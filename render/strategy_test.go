package render

import (
	"image/color"
	"testing"

	mandel "github.com/marben/histomandel"
)

func rgb(r, g, b uint8) color.RGBA { return color.RGBA{r, g, b, 255} }

// colorizeAll runs s over f and returns every pixel in record order.
func colorizeAll(t *testing.T, f *Field, s ColorStrategy) []color.RGBA {
	t.Helper()
	pix := make([]byte, 4*len(f.Records))
	if err := Colorize(f, s, pix); err != nil {
		t.Fatal(err)
	}
	got := make([]color.RGBA, len(f.Records))
	for i := range got {
		got[i] = color.RGBA{pix[4*i], pix[4*i+1], pix[4*i+2], pix[4*i+3]}
	}
	return got
}

func TestSmoothHistogramColors(t *testing.T) {
	// Cumulative frequencies [1/8, 5/8, 6/8, 7/8, 1] run through the hue
	// curve give hues 240, 195, 120, 345 and 300:
	//   blue (0,0,255), (0,191,255), green (0,255,0), (255,0,63), magenta (255,0,255).
	// A point with smooth value s blends bucket colors floor(s) and floor(s)+1 by frac(s).
	f := &Field{
		Viewport:      mandel.Viewport{Width: 4, Height: 2},
		MaxIterations: 5,
		Records: []Record{
			{Iterations: 1, Smooth: 1.5},
			{Iterations: 2, Smooth: 2.25},
			{Iterations: 2, Smooth: 2},
			{Iterations: 2, Smooth: 2.75},
			{Iterations: 2, Smooth: 2.5},
			{Iterations: 3, Smooth: 3.5},
			{Iterations: 4, Smooth: 4.5},
			{Iterations: 5, Smooth: 5},
		},
		Hist: Histogram{1, 4, 1, 1, 1},
	}
	want := []color.RGBA{
		rgb(0, 223, 127),  // (0,191,255) to green, 1/2
		rgb(63, 191, 15),  // green to (255,0,63), 1/4
		rgb(0, 255, 0),    // green
		rgb(191, 63, 47),  // green to (255,0,63), 3/4
		rgb(127, 127, 31), // green to (255,0,63), 1/2
		rgb(255, 0, 159),  // (255,0,63) to magenta, 1/2
		rgb(255, 0, 255),  // last bucket blends with itself
		rgb(0, 0, 0),      // in set
	}
	got := colorizeAll(t, f, SmoothHistogram{})
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d (smooth %v) = %v, want %v", i, f.Records[i].Smooth, got[i], want[i])
		}
	}
}

func TestPaletteHistogramColors(t *testing.T) {
	pal := Palette{rgb(10, 0, 0), rgb(0, 20, 0), rgb(0, 0, 30), rgb(40, 40, 40)}
	// P = 4 entries over N = 8 iterations: bucket floor(smooth/2), in-set points in bucket 4.
	f := &Field{
		Viewport:      mandel.Viewport{Width: 8, Height: 1},
		MaxIterations: 8,
		Records: []Record{
			{Iterations: 1, Smooth: 1},   // bucket 0, frac 1/2
			{Iterations: 3, Smooth: 3},   // bucket 1, frac 1/2
			{Iterations: 3, Smooth: 3.5}, // bucket 1, frac 3/4
			{Iterations: 5, Smooth: 5},   // bucket 2, frac 1/2
			{Iterations: 7, Smooth: 7.5}, // bucket 3, frac 3/4
			{Iterations: 8, Smooth: 8},
			{Iterations: 8, Smooth: 8},
			{Iterations: 2, Smooth: 2}, // bucket 1, frac 0
		},
		Hist: Histogram{1, 1, 2, 0, 1, 0, 1, 2},
	}
	// Bucket counts [1, 3, 1, 1, 2] give cumulative frequencies
	// [1/8, 4/8, 5/8, 6/8, 1] and palette entries floor(cum*4): 0, 2, 2, 3.
	want := []color.RGBA{
		rgb(5, 0, 15),   // entry 0 to entry 2, 1/2
		rgb(0, 0, 30),   // entry 2 to entry 2
		rgb(0, 0, 30),   // entry 2 to entry 2
		rgb(20, 20, 35), // entry 2 to entry 3, 1/2
		rgb(40, 40, 40), // last bucket blends with itself
		rgb(0, 0, 0),
		rgb(0, 0, 0),
		rgb(0, 0, 30), // entry 2
	}
	got := colorizeAll(t, f, PaletteHistogram{Palette: pal})
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d (smooth %v) = %v, want %v", i, f.Records[i].Smooth, got[i], want[i])
		}
	}
}
