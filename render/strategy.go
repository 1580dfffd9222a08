package render

import (
	"fmt"
	"image/color"
	"math"

	mandel "github.com/marben/histomandel"
)

// ColorStrategy is the second pass: it reads a completed Field and writes
// one opaque RGBA pixel per record into pix, which holds 4*len(f.Records) bytes.
type ColorStrategy interface {
	Name() string
	Colorize(f *Field, pix []byte)
}

const (
	StrategySmooth  = "smooth"
	StrategyHue     = "hue"
	StrategyPalette = "palette"
)

var (
	_ ColorStrategy = SmoothHistogram{}
	_ ColorStrategy = DirectHue{}
	_ ColorStrategy = PaletteHistogram{}
)

// StrategyByName returns the strategy registered under name; "" selects SmoothHistogram.
func StrategyByName(name string) (ColorStrategy, error) {
	switch name {
	case "", StrategySmooth:
		return SmoothHistogram{}, nil
	case StrategyHue:
		return DirectHue{}, nil
	case StrategyPalette:
		return PaletteHistogram{Palette: DefaultPalette}, nil
	}
	return nil, fmt.Errorf("%w: unknown color strategy %q", mandel.ErrInvalidParams, name)
}

// StrategyNames lists the known strategy names, default first.
func StrategyNames() []string {
	return []string{StrategySmooth, StrategyHue, StrategyPalette}
}

// SmoothHistogram equalizes the per-iteration histogram and runs the
// cumulative frequency through the six-piece hue curve. The integer part of
// a point's smooth value picks two neighbouring buckets whose colors are
// blended by the fractional part.
type SmoothHistogram struct {
	InSet color.RGBA
}

func (SmoothHistogram) Name() string { return StrategySmooth }

func (s SmoothHistogram) Colorize(f *Field, pix []byte) {
	cum := f.Hist.Cumulative()
	colors := make([]color.RGBA, len(cum))
	for i, c := range cum {
		colors[i] = curveColor(c)
	}
	last := len(colors) - 1

	for i, rec := range f.Records {
		col := s.InSet
		if f.Escaped(rec) {
			whole, frac := math.Modf(rec.Smooth)
			idx := min(int(whole), last)
			col = Lerp(colors[idx], colors[min(idx+1, last)], frac)
		}
		putPixel(pix, i, col)
	}
}

// DirectHue maps each escaped point's cumulative frequency straight to a
// hue: floor(freq * 360). No interpolation.
type DirectHue struct {
	InSet color.RGBA
}

func (DirectHue) Name() string { return StrategyHue }

func (s DirectHue) Colorize(f *Field, pix []byte) {
	cum := f.Hist.Cumulative()
	for i, rec := range f.Records {
		col := s.InSet
		if f.Escaped(rec) {
			col = HSVToRGB(math.Floor(cum[rec.Iterations-1]*360), 1, 1)
		}
		putPixel(pix, i, col)
	}
}

// PaletteHistogram buckets escaped points by floor(Smooth/N * P) into a
// histogram of P+1 buckets, the last one holding the non-escaping points.
// A bucket's cumulative frequency selects a palette entry and neighbouring
// entries are blended by the fractional bucket position.
type PaletteHistogram struct {
	// Palette defaults to DefaultPalette when empty.
	Palette Palette
	InSet   color.RGBA
}

func (PaletteHistogram) Name() string { return StrategyPalette }

func (s PaletteHistogram) Colorize(f *Field, pix []byte) {
	pal := s.Palette
	if len(pal) == 0 {
		pal = DefaultPalette
	}
	size := len(pal)
	scale := float64(size) / float64(f.MaxIterations)

	hist := NewHistogram(size + 1)
	for _, rec := range f.Records {
		if f.Escaped(rec) {
			hist.Add(min(int(rec.Smooth*scale), size-1))
		} else {
			hist.Add(size)
		}
	}
	cum := hist.Cumulative()
	entry := func(bucket int) color.RGBA {
		return pal[min(int(cum[bucket]*float64(size)), size-1)]
	}

	for i, rec := range f.Records {
		col := s.InSet
		if f.Escaped(rec) {
			whole, frac := math.Modf(rec.Smooth * scale)
			b := min(int(whole), size-1)
			col = Lerp(entry(b), entry(min(b+1, size-1)), frac)
		}
		putPixel(pix, i, col)
	}
	Logger().Debug("palette histogram", "buckets", len(hist), "inSet", hist[size])
}
