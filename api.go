package mandel

import (
	"errors"
	"fmt"
	"image"
	"math"
)

//go:generate go run github.com/marben/irpc/cmd/irpc $GOFILE

var (
	ErrInvalidViewport = errors.New("invalid viewport")
	ErrInvalidParams   = errors.New("invalid render parameters")
	ErrBufferSize      = errors.New("pixel buffer size mismatch")
)

// Renderer turns a request into a fully colored frame.
type Renderer interface {
	Render(req Request) (*image.RGBA, error)
}

// Params are the numeric knobs of a render.
type Params struct {
	MaxIterations int     `json:"maxIterations"`
	EscapeRadius  float64 `json:"escapeRadius"`
	// Strategy names the color strategy; empty selects the default.
	Strategy string `json:"strategy,omitempty"`
}

var DefaultParams = Params{
	MaxIterations: 350,
	EscapeRadius:  256,
}

// WithDefaults fills the zero fields of p from def.
func (p Params) WithDefaults(def Params) Params {
	if p.MaxIterations == 0 {
		p.MaxIterations = def.MaxIterations
	}
	if p.EscapeRadius == 0 {
		p.EscapeRadius = def.EscapeRadius
	}
	if p.Strategy == "" {
		p.Strategy = def.Strategy
	}
	return p
}

func (p Params) Validate() error {
	if p.MaxIterations < 1 {
		return fmt.Errorf("%w: maxIterations %d < 1", ErrInvalidParams, p.MaxIterations)
	}
	if math.IsNaN(p.EscapeRadius) || p.EscapeRadius <= 0 || math.IsInf(p.EscapeRadius*p.EscapeRadius, 0) {
		return fmt.Errorf("%w: escapeRadius %v", ErrInvalidParams, p.EscapeRadius)
	}
	return nil
}

// Request is one unit of render work.
type Request struct {
	Viewport Viewport `json:"viewport"`
	Params
}

func (r Request) Validate() error {
	if err := r.Viewport.Validate(); err != nil {
		return err
	}
	return r.Params.Validate()
}
