package navigate

import (
	"math"
	"testing"

	mandel "github.com/marben/histomandel"
)

var square = mandel.Region{Xmin: 0, Xmax: 1, Ymin: 0, Ymax: 1}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestPanLifecycle(t *testing.T) {
	n := New(square, 100, 100)
	var notified []mandel.Viewport
	n.OnViewportChanged = func(vp mandel.Viewport) { notified = append(notified, vp) }

	if n.State() != Idle {
		t.Fatalf("initial state = %v", n.State())
	}
	if n.Handle(PointerDown{ID: 1, X: 50, Y: 50}) {
		t.Fatal("pointer down changed the viewport")
	}
	if n.State() != Panning {
		t.Fatalf("state after down = %v, want panning", n.State())
	}
	if !n.Handle(PointerMove{ID: 1, X: 60, Y: 40}) {
		t.Fatal("drag did not change the viewport")
	}
	vp := n.CurrentViewport()
	if !near(vp.Xmin, -0.1) || !near(vp.Ymin, 0.1) || !near(vp.Dx(), 1) {
		t.Fatalf("panned region = %+v", vp.Region)
	}
	if n.Handle(PointerMove{ID: 9, X: 0, Y: 0}) {
		t.Fatal("move of an untracked pointer changed the viewport")
	}
	n.Handle(PointerUp{ID: 1})
	if n.State() != Idle {
		t.Fatalf("state after up = %v, want idle", n.State())
	}
	if len(notified) != 1 || notified[0] != vp {
		t.Fatalf("OnViewportChanged calls = %d", len(notified))
	}
}

func TestPinchZoom(t *testing.T) {
	n := New(square, 100, 100)
	n.Handle(PointerDown{ID: 1, X: 40, Y: 50})
	n.Handle(PointerDown{ID: 2, X: 60, Y: 50})
	if n.State() != Zooming {
		t.Fatalf("state with two pointers = %v, want zooming", n.State())
	}
	// A third finger is ignored.
	n.Handle(PointerDown{ID: 3, X: 10, Y: 10})

	anchor := n.CurrentViewport().Point(50, 50)
	// Spread symmetrically: distance 20 -> 40, midpoint fixed at (50, 50).
	n.Handle(PointerMove{ID: 1, X: 30, Y: 50})
	n.Handle(PointerMove{ID: 2, X: 70, Y: 50})

	vp := n.CurrentViewport()
	if !near(vp.Dx(), 0.5) || !near(vp.Dy(), 0.5) {
		t.Fatalf("pinched size = %v x %v, want 0.5 x 0.5", vp.Dx(), vp.Dy())
	}
	if got := vp.Point(50, 50); !near(real(got), real(anchor)) || !near(imag(got), imag(anchor)) {
		t.Fatalf("pinch midpoint moved from %v to %v", anchor, got)
	}

	n.Handle(PointerUp{ID: 2})
	if n.State() != Panning {
		t.Fatalf("state after lifting one finger = %v, want panning", n.State())
	}
	n.Handle(PointerUp{ID: 1})
	if n.State() != Idle {
		t.Fatalf("state after lifting both = %v, want idle", n.State())
	}
}

func TestWheel(t *testing.T) {
	n := New(square, 100, 100)
	anchor := n.CurrentViewport().Point(25, 75)

	if !n.Handle(Wheel{X: 25, Y: 75, DeltaY: -3}) {
		t.Fatal("wheel did not zoom")
	}
	vp := n.CurrentViewport()
	if !near(vp.Dx(), 1/DefaultZoomStep) {
		t.Fatalf("zoomed width = %v", vp.Dx())
	}
	if got := vp.Point(25, 75); !near(real(got), real(anchor)) || !near(imag(got), imag(anchor)) {
		t.Fatalf("cursor point moved from %v to %v", anchor, got)
	}

	n.Handle(Wheel{X: 25, Y: 75, DeltaY: 1})
	if !near(n.CurrentViewport().Dx(), 1) {
		t.Fatalf("zoom out width = %v, want 1", n.CurrentViewport().Dx())
	}
	if n.Handle(Wheel{X: 1, Y: 1}) {
		t.Fatal("zero delta changed the viewport")
	}

	n.ZoomStep = 2
	n.Handle(PointerDown{ID: 1, X: 0, Y: 0})
	n.Handle(Wheel{X: 50, Y: 50, DeltaY: -1})
	if !near(n.CurrentViewport().Dx(), 0.5) {
		t.Fatalf("custom step width = %v, want 0.5", n.CurrentViewport().Dx())
	}
	if n.State() != Panning {
		t.Fatalf("wheel changed state to %v", n.State())
	}
}

func TestResizeAndReset(t *testing.T) {
	n := New(square, 100, 100)
	n.Handle(Wheel{X: 0, Y: 0, DeltaY: -1})
	if !n.Handle(Resize{Width: 200, Height: 100}) {
		t.Fatal("resize did not change the viewport")
	}
	vp := n.CurrentViewport()
	if vp.Width != 200 || vp.Height != 100 {
		t.Fatalf("resized to %dx%d", vp.Width, vp.Height)
	}
	if n.Handle(Resize{Width: 0, Height: 10}) {
		t.Fatal("invalid resize changed the viewport")
	}

	n.Handle(Reset{})
	vp = n.CurrentViewport()
	if vp != square.Fit(200, 100) {
		t.Fatalf("reset viewport = %+v", vp)
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{Idle: "idle", Panning: "panning", Zooming: "zooming", State(7): "State(7)"} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", int(s), s.String(), want)
		}
	}
}
