package worker

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	mandel "github.com/marben/histomandel"
	"github.com/marben/histomandel/render"
)

// gatedRenderer blocks every render until release is closed.
type gatedRenderer struct {
	started chan mandel.Request
	release chan struct{}
	panics  bool
}

func newGated() *gatedRenderer {
	return &gatedRenderer{started: make(chan mandel.Request, 4), release: make(chan struct{})}
}

func (g *gatedRenderer) Render(req mandel.Request) (*image.RGBA, error) {
	g.started <- req
	<-g.release
	if g.panics {
		panic("boom")
	}
	return image.NewRGBA(image.Rect(0, 0, req.Viewport.Width, req.Viewport.Height)), nil
}

var testReq = mandel.Request{
	Viewport: mandel.Viewport{Width: 8, Height: 6, Region: mandel.FullSet},
	Params:   mandel.Params{MaxIterations: 40, EscapeRadius: 4},
}

func waitDone(t *testing.T, job *Job) {
	t.Helper()
	select {
	case <-job.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish")
	}
}

func TestWorkerRejectsWhileInFlight(t *testing.T) {
	g := newGated()
	w := New("test", g)

	job, err := w.Submit(testReq)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-g.started
	if !w.InFlight() {
		t.Fatal("InFlight() = false while rendering")
	}
	if _, err := w.Submit(testReq); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Submit = %v, want ErrBusy", err)
	}

	close(g.release)
	waitDone(t, job)
	img, _, err := job.Result()
	if err != nil || img.Bounds().Dx() != 8 {
		t.Fatalf("Result = %v, %v", img.Bounds(), err)
	}
	if w.InFlight() {
		t.Fatal("InFlight() = true after completion")
	}

	next, err := w.Submit(testReq)
	if err != nil {
		t.Fatalf("Submit after completion: %v", err)
	}
	waitDone(t, next)

	if s := w.Stats(); s.Submitted != 2 || s.Rejected != 1 || s.Failed != 0 {
		t.Fatalf("Stats = %+v", s)
	}
}

func TestJobWaitContext(t *testing.T) {
	g := newGated()
	w := New("test", g)
	job, err := w.Submit(testReq)
	if err != nil {
		t.Fatal(err)
	}
	<-g.started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := job.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait = %v, want deadline exceeded", err)
	}
	// The render is not cancelled by the expired wait.
	if !w.InFlight() {
		t.Fatal("render stopped when the waiter gave up")
	}

	close(g.release)
	img, err := job.Wait(context.Background())
	if err != nil || img == nil {
		t.Fatalf("Wait after release = %v, %v", img, err)
	}
}

func TestWorkerRecoversPanic(t *testing.T) {
	g := newGated()
	g.panics = true
	close(g.release)
	w := New("test", g)

	_, err := w.Render(context.Background(), testReq)
	if err == nil {
		t.Fatal("expected error from panicking renderer")
	}
	if w.InFlight() {
		t.Fatal("worker stuck in flight after panic")
	}
	if s := w.Stats(); s.Failed != 1 {
		t.Fatalf("Stats = %+v", s)
	}
}

func TestWorkerWithKernel(t *testing.T) {
	w := New("kernel", render.RendererImpl{Shards: 2})
	img, err := w.Render(context.Background(), testReq)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := make([]byte, 4*testReq.Viewport.Pixels())
	if err := render.Render(testReq.Viewport, testReq.Params, want); err != nil {
		t.Fatal(err)
	}
	if string(img.Pix) != string(want) {
		t.Fatal("worker output differs from direct render")
	}

	bad := testReq
	bad.MaxIterations = 0
	if _, err := w.Render(context.Background(), bad); !errors.Is(err, mandel.ErrInvalidParams) {
		t.Fatalf("Render(bad) = %v, want ErrInvalidParams", err)
	}
}
