package mandel

import (
	"fmt"
	"math"
)

// MaxPixels bounds the number of sample points a single viewport may hold.
const MaxPixels = 1 << 28

// Region within the complex plane
type Region struct {
	Xmin float64 `json:"xmin"`
	Xmax float64 `json:"xmax"`
	Ymin float64 `json:"ymin"`
	Ymax float64 `json:"ymax"`
}

func (r Region) Dx() float64 { return r.Xmax - r.Xmin }
func (r Region) Dy() float64 { return r.Ymax - r.Ymin }

// Center returns the midpoint of the region.
func (r Region) Center() complex128 {
	return complex((r.Xmin+r.Xmax)/2, (r.Ymin+r.Ymax)/2)
}

// Fit returns a w×h viewport covering r with square pixels.
// The shorter axis of r is widened around its center.
func (r Region) Fit(w, h int) Viewport {
	out := r
	if w > 0 && h > 0 && r.Dx() > 0 && r.Dy() > 0 {
		pixAspect := float64(w) / float64(h)
		regAspect := r.Dx() / r.Dy()
		c := r.Center()
		switch {
		case regAspect < pixAspect:
			half := r.Dy() * pixAspect / 2
			out.Xmin, out.Xmax = real(c)-half, real(c)+half
		case regAspect > pixAspect:
			half := r.Dx() / pixAspect / 2
			out.Ymin, out.Ymax = imag(c)-half, imag(c)+half
		}
	}
	return Viewport{Width: w, Height: h, Region: out}
}

// Viewport is a region of the complex plane sampled at Width×Height points.
// Pixel (px, py) samples Xmin + px*Dx/Width + i*(Ymin + py*Dy/Height).
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	Region
}

// Validate reports a precondition violation for viewports the kernel cannot sample.
func (vp Viewport) Validate() error {
	if vp.Width < 1 || vp.Height < 1 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidViewport, vp.Width, vp.Height)
	}
	if vp.Width > MaxPixels/vp.Height {
		return fmt.Errorf("%w: %dx%d exceeds %d points", ErrInvalidViewport, vp.Width, vp.Height, MaxPixels)
	}
	for _, v := range [...]float64{vp.Xmin, vp.Xmax, vp.Ymin, vp.Ymax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite bounds %+v", ErrInvalidViewport, vp.Region)
		}
	}
	if !(vp.Xmin < vp.Xmax) || !(vp.Ymin < vp.Ymax) {
		return fmt.Errorf("%w: empty region %+v", ErrInvalidViewport, vp.Region)
	}
	return nil
}

// Pixels returns the number of sample points.
func (vp Viewport) Pixels() int { return vp.Width * vp.Height }

// Step returns the distance between neighbouring samples on each axis.
func (vp Viewport) Step() (dx, dy float64) {
	return vp.Dx() / float64(vp.Width), vp.Dy() / float64(vp.Height)
}

// Point maps a pixel coordinate to its sample point.
func (vp Viewport) Point(px, py float64) complex128 {
	dx, dy := vp.Step()
	return complex(vp.Xmin+px*dx, vp.Ymin+py*dy)
}

// Pan moves the region so that content shifts by (dxPix, dyPix) pixels on screen.
func (vp Viewport) Pan(dxPix, dyPix float64) Viewport {
	dx, dy := vp.Step()
	ox, oy := dxPix*dx, dyPix*dy
	vp.Xmin -= ox
	vp.Xmax -= ox
	vp.Ymin -= oy
	vp.Ymax -= oy
	return vp
}

// ZoomAt scales the region by 1/factor keeping the point under pixel (px, py) fixed.
// factor > 1 zooms in.
func (vp Viewport) ZoomAt(px, py, factor float64) Viewport {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return vp
	}
	anchor := vp.Point(px, py)
	ax, ay := real(anchor), imag(anchor)
	vp.Xmin = ax - (ax-vp.Xmin)/factor
	vp.Xmax = ax + (vp.Xmax-ax)/factor
	vp.Ymin = ay - (ay-vp.Ymin)/factor
	vp.Ymax = ay + (vp.Ymax-ay)/factor
	return vp
}

// Resize changes the pixel size keeping the center and the per-pixel scale.
func (vp Viewport) Resize(w, h int) Viewport {
	if w < 1 || h < 1 {
		return vp
	}
	dx, dy := vp.Step()
	c := vp.Center()
	halfW, halfH := dx*float64(w)/2, dy*float64(h)/2
	return Viewport{
		Width:  w,
		Height: h,
		Region: Region{
			Xmin: real(c) - halfW,
			Xmax: real(c) + halfW,
			Ymin: imag(c) - halfH,
			Ymax: imag(c) + halfH,
		},
	}
}
