package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	mandel "github.com/marben/histomandel"
	"github.com/marben/histomandel/internal/wire"
	"github.com/marben/histomandel/render"
)

// gatedRenderer reports each started render and then blocks until release is closed.
type gatedRenderer struct {
	started chan struct{}
	release chan struct{}
}

func newGated() *gatedRenderer {
	return &gatedRenderer{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (g *gatedRenderer) Render(req mandel.Request) (*image.RGBA, error) {
	g.started <- struct{}{}
	<-g.release
	return render.RendererImpl{Shards: 1}.Render(req)
}

func newTestServer(t *testing.T, r mandel.Renderer) *httptest.Server {
	t.Helper()
	store := NewConfigStore(DefaultConfig())
	if r == nil {
		r = newConfiguredRenderer(store)
	}
	ts := httptest.NewServer(newServer(store, r).routes())
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ctx context.Context, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.CloseNow() })
	return c
}

func send(t *testing.T, ctx context.Context, c *websocket.Conn, req mandel.Request) {
	t.Helper()
	msg, err := wire.EncodeRequest(req)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Write(ctx, websocket.MessageText, msg); err != nil {
		t.Fatal(err)
	}
}

func TestWebsocketRender(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ts := newTestServer(t, nil)
	c := dial(t, ctx, ts)

	req := mandel.Request{Viewport: mandel.SeahorseValley.Fit(24, 16)}
	send(t, ctx, c, req)

	typ, msg, err := c.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if typ != websocket.MessageBinary {
		t.Fatalf("got %v message: %s", typ, msg)
	}
	frame, err := wire.DecodeFrame(msg)
	if err != nil {
		t.Fatal(err)
	}

	want := make([]byte, 4*req.Viewport.Pixels())
	if err := render.Render(req.Viewport, mandel.DefaultParams, want); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(frame.Image.Pix, want) {
		t.Fatal("frame differs from a local render with the default parameters")
	}
}

func TestWebsocketInvalidRequest(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ts := newTestServer(t, nil)
	c := dial(t, ctx, ts)

	tests := []struct {
		typ websocket.MessageType
		msg string
	}{
		{websocket.MessageText, `{"viewport": {"Width": 0, "Height": 10}}`},
		{websocket.MessageText, `not json`},
		{websocket.MessageBinary, `{}`},
	}
	for _, tt := range tests {
		if err := c.Write(ctx, tt.typ, []byte(tt.msg)); err != nil {
			t.Fatal(err)
		}
		typ, reply, err := c.Read(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if typ != websocket.MessageText {
			t.Fatalf("%q: got %v reply", tt.msg, typ)
		}
		e, err := wire.DecodeError(reply)
		if err != nil {
			t.Fatal(err)
		}
		if e.Error == "" || e.Busy {
			t.Fatalf("%q: got %+v", tt.msg, e)
		}
	}
}

func TestWebsocketBusy(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	g := newGated()
	ts := newTestServer(t, g)
	c := dial(t, ctx, ts)

	req := mandel.Request{Viewport: mandel.FullSet.Fit(8, 8)}
	send(t, ctx, c, req)
	select {
	case <-g.started:
	case <-ctx.Done():
		t.Fatal("render did not start")
	}

	send(t, ctx, c, req)
	typ, msg, err := c.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if typ != websocket.MessageText {
		t.Fatalf("want busy error, got %v message", typ)
	}
	e, err := wire.DecodeError(msg)
	if err != nil {
		t.Fatal(err)
	}
	if !e.Busy {
		t.Fatalf("got %+v, want busy", e)
	}

	close(g.release)
	typ, msg, err = c.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if typ != websocket.MessageBinary {
		t.Fatalf("want frame, got %s", msg)
	}

	// the session accepts work again once the frame is out
	send(t, ctx, c, req)
	if typ, _, err := c.Read(ctx); err != nil || typ != websocket.MessageBinary {
		t.Fatalf("second render: %v %v", typ, err)
	}
}

func TestRenderPNG(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/render.png?width=12&height=9&region=elephant&iter=200&strategy=palette")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %s", resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type %q", ct)
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 12 || b.Dy() != 9 {
		t.Fatalf("bounds %v", b)
	}
}

func TestRenderPNGBadRequest(t *testing.T) {
	ts := newTestServer(t, nil)
	for _, q := range []string{
		"width=abc",
		"region=nowhere",
		"xmin=-2&xmax=1",
		"xmin=1&xmax=-2&ymin=-1&ymax=1",
		"iter=1000000",
		"width=5000&height=5000",
		"strategy=plasma",
	} {
		resp, err := http.Get(ts.URL + "/render.png?" + q)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status %s, want 400", q, resp.Status)
		}
	}
}

func TestRenderPNGBusy(t *testing.T) {
	g := newGated()
	ts := newTestServer(t, g)

	first := make(chan *http.Response, 1)
	go func() {
		resp, err := http.Get(ts.URL + "/render.png?width=8&height=8")
		if err != nil {
			first <- nil
			return
		}
		first <- resp
	}()
	select {
	case <-g.started:
	case <-time.After(5 * time.Second):
		t.Fatal("render did not start")
	}

	resp, err := http.Get(ts.URL + "/render.png?width=8&height=8")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable || resp.Header.Get("Retry-After") == "" {
		t.Fatalf("status %s, want 503 with Retry-After", resp.Status)
	}

	var stats statsReply
	sresp, err := http.Get(ts.URL + "/stats")
	if err != nil {
		t.Fatal(err)
	}
	err = json.NewDecoder(sresp.Body).Decode(&stats)
	sresp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if !stats.InFlight || stats.Submitted != 1 || stats.Rejected != 1 {
		t.Fatalf("stats %+v", stats)
	}

	close(g.release)
	resp = <-first
	if resp == nil {
		t.Fatal("first request failed")
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first request status %s", resp.Status)
	}
}

func TestParseRenderQuery(t *testing.T) {
	req, err := parseRenderQuery(map[string][]string{
		"width": {"30"}, "height": {"20"},
		"xmin": {"-1"}, "xmax": {"1"}, "ymin": {"-0.5"}, "ymax": {"0.5"},
		"radius": {"4"},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := mandel.Request{
		Viewport: mandel.Viewport{Width: 30, Height: 20, Region: mandel.Region{Xmin: -1, Xmax: 1, Ymin: -0.5, Ymax: 0.5}},
		Params:   mandel.Params{EscapeRadius: 4},
	}
	if req != want {
		t.Fatalf("got %+v, want %+v", req, want)
	}

	req, err = parseRenderQuery(nil)
	if err != nil {
		t.Fatal(err)
	}
	if req.Viewport != mandel.FullSet.Fit(800, 600) {
		t.Fatalf("default viewport %+v", req.Viewport)
	}

	if _, err := parseRenderQuery(map[string][]string{"radius": {"x"}}); !errors.Is(err, mandel.ErrInvalidParams) {
		t.Fatalf("got %v", err)
	}
}

func TestServerWideRenderLimit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cfg := DefaultConfig()
	cfg.MaxRenders = 1
	store := NewConfigStore(cfg)
	r := newConfiguredRenderer(store)
	ts := httptest.NewServer(newServer(store, r).routes())
	t.Cleanup(ts.Close)

	// another client holds the only render slot
	if err := r.acquire(cfg.MaxRenders); err != nil {
		t.Fatal(err)
	}

	c := dial(t, ctx, ts)
	send(t, ctx, c, mandel.Request{Viewport: mandel.FullSet.Fit(8, 8)})
	typ, msg, err := c.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if typ != websocket.MessageText {
		t.Fatalf("want busy error, got %v message", typ)
	}
	e, err := wire.DecodeError(msg)
	if err != nil {
		t.Fatal(err)
	}
	if !e.Busy {
		t.Fatalf("got %+v, want busy", e)
	}

	resp, err := http.Get(ts.URL + "/render.png?width=8&height=8")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status %s, want 503", resp.Status)
	}

	r.release()
	send(t, ctx, c, mandel.Request{Viewport: mandel.FullSet.Fit(8, 8)})
	if typ, _, err := c.Read(ctx); err != nil || typ != websocket.MessageBinary {
		t.Fatalf("render after release: %v %v", typ, err)
	}
}

// brokenWriter fails every body write.
type brokenWriter struct {
	header http.Header
}

func (w *brokenWriter) Header() http.Header       { return w.header }
func (w *brokenWriter) WriteHeader(int)           {}
func (w *brokenWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

// lockedBuffer collects log output written from any goroutine.
type lockedBuffer struct {
	m   sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.m.Lock()
	defer b.m.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.m.Lock()
	defer b.m.Unlock()
	return b.buf.String()
}

func TestStatsWriteErrorLogged(t *testing.T) {
	var logs lockedBuffer
	log.SetOutput(&logs)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	store := NewConfigStore(DefaultConfig())
	srv := newServer(store, newConfiguredRenderer(store))
	w := &brokenWriter{header: http.Header{}}
	srv.handleStats(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

	if got := logs.String(); !strings.Contains(got, "connection reset") {
		t.Fatalf("write failure not logged, log: %q", got)
	}
}
