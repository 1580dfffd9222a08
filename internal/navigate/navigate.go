// Package navigate turns discrete pointer, wheel and resize events into
// viewport changes.
//
// The Navigator is a small state machine:
//
//	Idle    --down-->   Panning
//	Panning --move-->   Panning  (drag the region)
//	Panning --down-->   Zooming  (second pointer: pinch)
//	Zooming --move-->   Zooming  (zoom by distance ratio about the midpoint)
//	Zooming --up-->     Panning
//	Panning --up-->     Idle
//
// Wheel, Resize and Reset events are accepted in every state.
package navigate

import (
	"fmt"
	"math"

	mandel "github.com/marben/histomandel"
)

// DefaultZoomStep is the zoom factor of one wheel notch.
const DefaultZoomStep = 1.1

type State int

const (
	Idle State = iota
	Panning
	Zooming
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Panning:
		return "panning"
	case Zooming:
		return "zooming"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Event is one of PointerDown, PointerMove, PointerUp, Wheel, Resize or Reset.
type Event interface{ event() }

// Pointer coordinates are in pixels relative to the top-left corner of the canvas.
type (
	PointerDown struct {
		ID   int
		X, Y float64
	}
	PointerMove struct {
		ID   int
		X, Y float64
	}
	// PointerUp also stands for cancel and leave.
	PointerUp struct {
		ID int
	}
	// Wheel zooms in for negative DeltaY and out for positive DeltaY.
	Wheel struct {
		X, Y   float64
		DeltaY float64
	}
	Resize struct {
		Width, Height int
	}
	// Reset returns to the home region, fitted to the current size.
	Reset struct{}
)

func (PointerDown) event() {}
func (PointerMove) event() {}
func (PointerUp) event()   {}
func (Wheel) event()       {}
func (Resize) event()      {}
func (Reset) event()       {}

// ViewportSource is the part of a Navigator a render loop needs.
type ViewportSource interface {
	CurrentViewport() mandel.Viewport
}

type point struct{ x, y float64 }

type Navigator struct {
	// ZoomStep is the factor applied per wheel notch; values <= 1 use DefaultZoomStep.
	ZoomStep float64
	// OnViewportChanged, if set, is called after every event that changed the viewport.
	OnViewportChanged func(mandel.Viewport)

	home     mandel.Region
	vp       mandel.Viewport
	state    State
	pointers map[int]point
	order    []int
}

var _ ViewportSource = (*Navigator)(nil)

// New starts in Idle showing home fitted to w×h pixels.
func New(home mandel.Region, w, h int) *Navigator {
	return &Navigator{
		home:     home,
		vp:       home.Fit(w, h),
		pointers: make(map[int]point, 2),
	}
}

func (n *Navigator) CurrentViewport() mandel.Viewport { return n.vp }

func (n *Navigator) State() State { return n.state }

// Handle applies ev and reports whether the viewport changed.
func (n *Navigator) Handle(ev Event) bool {
	before := n.vp
	switch e := ev.(type) {
	case PointerDown:
		n.pointerDown(e)
	case PointerMove:
		n.pointerMove(e)
	case PointerUp:
		n.pointerUp(e)
	case Wheel:
		if e.DeltaY != 0 {
			step := n.ZoomStep
			if step <= 1 {
				step = DefaultZoomStep
			}
			if e.DeltaY > 0 {
				step = 1 / step
			}
			n.vp = n.vp.ZoomAt(e.X, e.Y, step)
		}
	case Resize:
		n.vp = n.vp.Resize(e.Width, e.Height)
	case Reset:
		n.vp = n.home.Fit(n.vp.Width, n.vp.Height)
	}

	changed := n.vp != before
	if changed && n.OnViewportChanged != nil {
		n.OnViewportChanged(n.vp)
	}
	return changed
}

func (n *Navigator) pointerDown(e PointerDown) {
	if _, ok := n.pointers[e.ID]; ok || len(n.pointers) >= 2 {
		return
	}
	n.pointers[e.ID] = point{e.X, e.Y}
	n.order = append(n.order, e.ID)
	if len(n.pointers) == 1 {
		n.state = Panning
	} else {
		n.state = Zooming
	}
}

func (n *Navigator) pointerMove(e PointerMove) {
	prev, ok := n.pointers[e.ID]
	if !ok {
		return
	}
	cur := point{e.X, e.Y}

	switch n.state {
	case Panning:
		n.vp = n.vp.Pan(cur.x-prev.x, cur.y-prev.y)
		n.pointers[e.ID] = cur
	case Zooming:
		other := n.pointers[n.partner(e.ID)]
		oldMid, oldDist := midpoint(prev, other), distance(prev, other)
		newMid, newDist := midpoint(cur, other), distance(cur, other)
		n.pointers[e.ID] = cur

		n.vp = n.vp.Pan(newMid.x-oldMid.x, newMid.y-oldMid.y)
		if oldDist > 0 && newDist > 0 {
			n.vp = n.vp.ZoomAt(newMid.x, newMid.y, newDist/oldDist)
		}
	}
}

func (n *Navigator) pointerUp(e PointerUp) {
	if _, ok := n.pointers[e.ID]; !ok {
		return
	}
	delete(n.pointers, e.ID)
	for i, id := range n.order {
		if id == e.ID {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
	switch len(n.pointers) {
	case 0:
		n.state = Idle
	case 1:
		n.state = Panning
	}
}

func (n *Navigator) partner(id int) int {
	for _, other := range n.order {
		if other != id {
			return other
		}
	}
	return id
}

func midpoint(a, b point) point { return point{(a.x + b.x) / 2, (a.y + b.y) / 2} }

func distance(a, b point) float64 { return math.Hypot(a.x-b.x, a.y-b.y) }
