package main

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	mandel "github.com/marben/histomandel"
	"github.com/marben/histomandel/internal/navigate"
	"github.com/marben/histomandel/internal/worker"
	"github.com/marben/histomandel/render"
)

const (
	// mouseID keeps the mouse apart from touch IDs in the navigator
	mouseID = math.MinInt32

	minIterations = 16
	maxIterations = 1 << 16
)

// Game implements the ebiten.Game interface. Renders run on a worker; while
// one is in flight further view changes only mark the game dirty and the
// next render starts from the latest viewport once the current one is done.
type Game struct {
	nav    *navigate.Navigator
	poller navigate.Poller
	worker *worker.Worker
	params mandel.Params

	job   *worker.Job
	dirty bool

	frame     *ebiten.Image
	lastTook  time.Duration
	lastError error

	layoutW, layoutH int
	touchIDs         []ebiten.TouchID
}

func NewGame(home mandel.Region, w, h int, params mandel.Params, r mandel.Renderer) *Game {
	return &Game{
		nav:     navigate.New(home, w, h),
		worker:  worker.New("viewer", r),
		params:  params,
		dirty:   true,
		layoutW: w,
		layoutH: h,
	}
}

// Update handles input, collects finished renders and starts new ones.
func (g *Game) Update() error {
	for _, ev := range g.inputEvents() {
		if g.nav.Handle(ev) {
			g.dirty = true
		}
	}
	g.handleKeys()
	g.collect()

	if g.dirty && g.job == nil {
		job, err := g.worker.Submit(mandel.Request{Viewport: g.nav.CurrentViewport(), Params: g.params})
		if err == nil {
			g.job, g.dirty = job, false
		}
	}
	return nil
}

func (g *Game) inputEvents() []navigate.Event {
	var pressed []navigate.Pointer
	if ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		x, y := ebiten.CursorPosition()
		pressed = append(pressed, navigate.Pointer{ID: mouseID, X: float64(x), Y: float64(y)})
	}
	g.touchIDs = ebiten.AppendTouchIDs(g.touchIDs[:0])
	for _, id := range g.touchIDs {
		x, y := ebiten.TouchPosition(id)
		pressed = append(pressed, navigate.Pointer{ID: int(id), X: float64(x), Y: float64(y)})
	}
	events := g.poller.Diff(pressed)

	vp := g.nav.CurrentViewport()
	if g.layoutW != vp.Width || g.layoutH != vp.Height {
		events = append(events, navigate.Resize{Width: g.layoutW, Height: g.layoutH})
	}
	// ebiten reports scrolling up as positive
	if _, dy := ebiten.Wheel(); dy != 0 {
		x, y := ebiten.CursorPosition()
		events = append(events, navigate.Wheel{X: float64(x), Y: float64(y), DeltaY: -dy})
	}

	cx, cy := float64(vp.Width)/2, float64(vp.Height)/2
	if inpututil.IsKeyJustPressed(ebiten.KeyEqual) || inpututil.IsKeyJustPressed(ebiten.KeyNumpadAdd) {
		events = append(events, navigate.Wheel{X: cx, Y: cy, DeltaY: -1})
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyMinus) || inpututil.IsKeyJustPressed(ebiten.KeyNumpadSubtract) {
		events = append(events, navigate.Wheel{X: cx, Y: cy, DeltaY: 1})
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		events = append(events, navigate.Reset{})
	}
	return events
}

// handleKeys changes the render parameters.
func (g *Game) handleKeys() {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyUp):
		g.params.MaxIterations = min(g.params.MaxIterations*2, maxIterations)
	case inpututil.IsKeyJustPressed(ebiten.KeyDown):
		g.params.MaxIterations = max(g.params.MaxIterations/2, minIterations)
	case inpututil.IsKeyJustPressed(ebiten.KeyS):
		g.params.Strategy = nextStrategy(g.params.Strategy)
	default:
		return
	}
	g.dirty = true
}

func nextStrategy(cur string) string {
	names := render.StrategyNames()
	i := max(slices.Index(names, cur), 0)
	return names[(i+1)%len(names)]
}

// collect takes over the result of a finished job without blocking.
func (g *Game) collect() {
	if g.job == nil {
		return
	}
	select {
	case <-g.job.Done():
	default:
		return
	}
	img, took, err := g.job.Result()
	g.job, g.lastTook, g.lastError = nil, took, err
	if err != nil {
		return
	}

	b := img.Bounds()
	if g.frame == nil || g.frame.Bounds().Dx() != b.Dx() || g.frame.Bounds().Dy() != b.Dy() {
		if g.frame != nil {
			g.frame.Deallocate()
		}
		g.frame = ebiten.NewImage(b.Dx(), b.Dy())
	}
	g.frame.WritePixels(img.Pix)
}

// Draw renders the latest frame and a status line.
func (g *Game) Draw(screen *ebiten.Image) {
	if g.frame != nil {
		screen.DrawImage(g.frame, &ebiten.DrawImageOptions{})
	}
	ebitenutil.DebugPrint(screen, g.status())
}

func (g *Game) status() string {
	vp := g.nav.CurrentViewport()
	c := vp.Center()
	state := g.nav.State().String()
	if g.job != nil {
		state += ", rendering"
	}
	s := fmt.Sprintf("FPS: %0.1f\nCenter: (%0.10f, %0.10f)\nWidth: %0.3e\nMax Iter: %d\nStrategy: %s\nRender: %s\nState: %s",
		ebiten.ActualFPS(), real(c), imag(c), vp.Dx(), g.params.MaxIterations, g.params.Strategy,
		g.lastTook.Round(time.Millisecond), state)
	if g.lastError != nil {
		s += "\nError: " + g.lastError.Error()
	}
	return s
}

// Layout follows the window size; the resulting resize is applied in Update.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.layoutW, g.layoutH = max(outsideWidth, 1), max(outsideHeight, 1)
	return g.layoutW, g.layoutH
}
