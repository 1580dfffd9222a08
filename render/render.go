package render

import (
	"fmt"
	"image"
	"time"

	mandel "github.com/marben/histomandel"
)

// Render fills pix with the colored escape image of vp using one shard per CPU.
// pix must hold exactly 4*vp.Width*vp.Height bytes.
func Render(vp mandel.Viewport, p mandel.Params, pix []byte) error {
	return RenderShards(vp, p, pix, 0)
}

// RenderShards runs the two passes in order: Evaluate over the whole
// viewport (merging every shard's histogram), then the color strategy over
// the finished field. Preconditions are checked before any pixel is written.
func RenderShards(vp mandel.Viewport, p mandel.Params, pix []byte, shards int) error {
	if err := vp.Validate(); err != nil {
		return err
	}
	if err := checkBuffer(vp, pix); err != nil {
		return err
	}
	strategy, err := StrategyByName(p.Strategy)
	if err != nil {
		return err
	}
	ev, err := NewEvaluator(p.MaxIterations, p.EscapeRadius)
	if err != nil {
		return err
	}

	start := time.Now()
	field := Evaluate(vp, ev, shards)
	evaluated := time.Since(start)

	strategy.Colorize(field, pix)

	Logger().Debug("rendered",
		"width", vp.Width, "height", vp.Height,
		"maxIterations", p.MaxIterations, "strategy", strategy.Name(),
		"evaluate", evaluated, "total", time.Since(start))
	return nil
}

// Colorize applies s to a completed field.
func Colorize(f *Field, s ColorStrategy, pix []byte) error {
	if err := checkBuffer(f.Viewport, pix); err != nil {
		return err
	}
	s.Colorize(f, pix)
	return nil
}

// NewFrame allocates an image sized for vp.
func NewFrame(vp mandel.Viewport) (*image.RGBA, error) {
	if err := vp.Validate(); err != nil {
		return nil, err
	}
	return image.NewRGBA(image.Rect(0, 0, vp.Width, vp.Height)), nil
}

func checkBuffer(vp mandel.Viewport, pix []byte) error {
	if want := 4 * vp.Pixels(); len(pix) != want {
		return fmt.Errorf("%w: have %d bytes, want %d", mandel.ErrBufferSize, len(pix), want)
	}
	return nil
}

// RendererImpl renders requests in the calling goroutine.
type RendererImpl struct {
	// Shards is the number of concurrent row bands; <= 0 means one per CPU.
	Shards int
	// OnRender, if set, is called before each render starts.
	OnRender func(req mandel.Request)
}

var _ mandel.Renderer = RendererImpl{}

func (imp RendererImpl) Render(req mandel.Request) (*image.RGBA, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if imp.OnRender != nil {
		imp.OnRender(req)
	}

	img, err := NewFrame(req.Viewport)
	if err != nil {
		return nil, err
	}
	if err := RenderShards(req.Viewport, req.Params, img.Pix, imp.Shards); err != nil {
		return nil, fmt.Errorf("render %dx%d: %w", req.Viewport.Width, req.Viewport.Height, err)
	}
	return img, nil
}
