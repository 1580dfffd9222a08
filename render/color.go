package render

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Palette is an ordered, read-only list of opaque colors.
type Palette []color.RGBA

// DefaultPalette has one fully saturated entry per hue degree.
var DefaultPalette = NewPalette(360)

// NewPalette samples the hue circle linearly at size points with full
// saturation and value.
func NewPalette(size int) Palette {
	p := make(Palette, size)
	for i := range p {
		p[i] = HSVToRGB(float64(i*360/size), 1, 1)
	}
	return p
}

// HSVToRGB converts h in degrees and s, v in [0, 1] to an opaque color.
// Hue is wrapped into [0, 360); each 60° sector is half-open and channels
// are floored after scaling to 255.
func HSVToRGB(h, s, v float64) color.RGBA {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	c := colorful.Hsv(h, s, v)
	return color.RGBA{R: channel(c.R), G: channel(c.G), B: channel(c.B), A: 255}
}

func channel(x float64) uint8 {
	return uint8(math.Floor(math.Min(math.Max(x, 0), 1) * 255))
}

// Lerp blends two colors channel by channel as floor(x1 + alpha*(x2-x1)),
// with alpha clamped to [0, 1]. Equal inputs come back unchanged for any alpha.
func Lerp(x1, x2 color.RGBA, alpha float64) color.RGBA {
	alpha = math.Min(math.Max(alpha, 0), 1)
	mix := func(a, b uint8) uint8 {
		fa := float64(a)
		return uint8(math.Floor(fa + alpha*(float64(b)-fa)))
	}
	return color.RGBA{R: mix(x1.R, x2.R), G: mix(x1.G, x2.G), B: mix(x1.B, x2.B), A: 255}
}

// hueCurve maps a cumulative frequency in [0, 1] onto a hue walk
// 240 -> 180 -> 120 -> 60 -> 0/360 -> 300 in six linear pieces.
func hueCurve(c float64) float64 {
	round := func(x float64) float64 { return math.Floor(x + 0.5) }
	switch {
	case 2*c < 1:
		return 240
	case 3*c < 2:
		return round(420 - 360*c)
	case 4*c < 3:
		return round(660 - 720*c)
	case 5*c < 4:
		return round(1020 - 1200*c)
	case 6*c < 5:
		return round(1500 - 1800*c)
	default:
		return round(660 - 360*c)
	}
}

func curveColor(c float64) color.RGBA {
	return HSVToRGB(hueCurve(c), 1, 1)
}

func putPixel(pix []byte, i int, c color.RGBA) {
	o := 4 * i
	pix[o+0] = c.R
	pix[o+1] = c.G
	pix[o+2] = c.B
	pix[o+3] = 255
}
