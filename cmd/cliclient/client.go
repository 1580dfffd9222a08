package main

import (
	"context"
	"fmt"
	"image"
	"io"
	"net"
	"strings"
	"time"

	"github.com/coder/websocket"
	mandel "github.com/marben/histomandel"
	"github.com/marben/histomandel/internal/wire"
	"github.com/marben/histomandel/render"
	"github.com/marben/irpc"
)

// fetchRemote asks the server at url to render req and returns the frame.
func fetchRemote(ctx context.Context, url string, req mandel.Request) (wire.Frame, error) {
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return wire.Frame{}, fmt.Errorf("websocket.Dial %s: %w", url, err)
	}
	defer c.CloseNow()
	// compressed pixels plus header never exceed the raw size by more than this
	c.SetReadLimit(int64(4*req.Viewport.Pixels()) + 1<<20)

	msg, err := wire.EncodeRequest(req)
	if err != nil {
		return wire.Frame{}, err
	}
	if err := c.Write(ctx, websocket.MessageText, msg); err != nil {
		return wire.Frame{}, fmt.Errorf("send request: %w", err)
	}

	typ, reply, err := c.Read(ctx)
	if err != nil {
		return wire.Frame{}, fmt.Errorf("read reply: %w", err)
	}
	if typ == websocket.MessageText {
		e, err := wire.DecodeError(reply)
		if err != nil {
			return wire.Frame{}, err
		}
		return wire.Frame{}, fmt.Errorf("server: %s", e.Error)
	}

	frame, err := wire.DecodeFrame(reply)
	if err != nil {
		return wire.Frame{}, err
	}
	if b := frame.Image.Bounds(); b.Dx() != req.Viewport.Width || b.Dy() != req.Viewport.Height {
		return wire.Frame{}, fmt.Errorf("%w: got %dx%d, asked for %dx%d", wire.ErrBadFrame, b.Dx(), b.Dy(), req.Viewport.Width, req.Viewport.Height)
	}
	c.Close(websocket.StatusNormalClosure, "")
	return frame, nil
}

// dialRPC connects to the server's irpc service, over tcp for host:port
// addresses and over websocket for ws:// and wss:// URLs.
func dialRPC(ctx context.Context, addr string) (io.ReadWriteCloser, error) {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		c, _, err := websocket.Dial(ctx, addr, nil)
		if err != nil {
			return nil, fmt.Errorf("websocket.Dial %s: %w", addr, err)
		}
		// responses carry whole frames
		c.SetReadLimit(-1)
		return websocket.NetConn(context.Background(), c, websocket.MessageBinary), nil
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("net.Dial %s: %w", addr, err)
	}
	return conn, nil
}

// fetchRPC renders req through the server's mandel.Renderer irpc service.
// The returned duration is the full round trip.
func fetchRPC(ctx context.Context, addr string, req mandel.Request) (*image.RGBA, time.Duration, error) {
	conn, err := dialRPC(ctx, addr)
	if err != nil {
		return nil, 0, err
	}
	ep := irpc.NewEndpoint(conn)
	defer ep.Close()

	client, err := mandel.NewRendererIrpcClient(ep)
	if err != nil {
		return nil, 0, err
	}

	type result struct {
		img *image.RGBA
		err error
	}
	start := time.Now()
	done := make(chan result, 1)
	go func() {
		img, err := client.Render(req)
		done <- result{img, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, 0, fmt.Errorf("server: %w", r.err)
		}
		if b := r.img.Bounds(); b.Dx() != req.Viewport.Width || b.Dy() != req.Viewport.Height {
			return nil, 0, fmt.Errorf("%w: got %dx%d, asked for %dx%d", wire.ErrBadFrame, b.Dx(), b.Dy(), req.Viewport.Width, req.Viewport.Height)
		}
		return r.img, time.Since(start), nil
	case <-ctx.Done():
		// closing the endpoint fails the pending call
		return nil, 0, context.Cause(ctx)
	}
}

// renderLocal runs both passes in process and keeps the field for statistics.
func renderLocal(req mandel.Request, shards int) (*image.RGBA, *render.Field, error) {
	strategy, err := render.StrategyByName(req.Strategy)
	if err != nil {
		return nil, nil, err
	}
	ev, err := render.NewEvaluator(req.MaxIterations, req.EscapeRadius)
	if err != nil {
		return nil, nil, err
	}
	img, err := render.NewFrame(req.Viewport)
	if err != nil {
		return nil, nil, err
	}
	field := render.Evaluate(req.Viewport, ev, shards)
	if err := render.Colorize(field, strategy, img.Pix); err != nil {
		return nil, nil, err
	}
	return img, field, nil
}

type summary struct {
	escaped        int
	inSet          int
	meanIterations float64
}

func summarize(f *render.Field) summary {
	var s summary
	total := 0
	for _, rec := range f.Records {
		if f.Escaped(rec) {
			s.escaped++
			total += rec.Iterations
		} else {
			s.inSet++
		}
	}
	if s.escaped > 0 {
		s.meanIterations = float64(total) / float64(s.escaped)
	}
	return s
}
