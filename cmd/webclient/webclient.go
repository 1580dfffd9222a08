//go:build js && wasm

// webclient is a WASM web client for the Mandelbrot render server.
// It shows the current viewport on a canvas, lets the user drag, pinch and
// wheel-zoom it, and asks the server for a new frame after each change.
package main

import (
	"context"
	"fmt"
	"log"
	"syscall/js"
	"time"

	"github.com/coder/websocket"
	mandel "github.com/marben/histomandel"
	"github.com/marben/histomandel/internal/navigate"
	"github.com/marben/histomandel/internal/wire"
)

const canvasID = "myCanvas"

func main() {
	logScreenf("starting web client")

	loc := js.Global().Get("window").Get("location")
	proto := "ws"
	if loc.Get("protocol").String() == "https:" {
		proto = "wss"
	}
	websocketUrl := proto + "://" + loc.Get("host").String() + "/ws"

	ctx := context.Background()
	logScreenf("connecting to %s", websocketUrl)
	conn, _, err := websocket.Dial(ctx, websocketUrl, nil)
	if err != nil {
		logFatalf("websocket.Dial: %v", err)
	}
	conn.SetReadLimit(4*mandel.MaxPixels + 1<<20)
	logScreenf("connected")

	w, h := windowSize()
	initImage(w, h, "#3a3a6e")
	nav := navigate.New(mandel.SeahorseValley, w, h)

	// DOM callbacks only queue events; the loop below owns the navigator
	events := make(chan navigate.Event, 1024)
	bindEvents(events)

	replies := make(chan reply)
	go readLoop(ctx, conn, replies)

	if err := renderLoop(ctx, conn, nav, events, replies); err != nil {
		logFatalf("renderLoop: %v", err)
	}
}

type reply struct {
	frame wire.Frame
	err   error
	// fatal ends the session
	fatal bool
}

// readLoop forwards every server message to replies.
func readLoop(ctx context.Context, conn *websocket.Conn, replies chan<- reply) {
	for {
		typ, msg, err := conn.Read(ctx)
		if err != nil {
			replies <- reply{err: err, fatal: true}
			return
		}
		if typ == websocket.MessageText {
			e, err := wire.DecodeError(msg)
			if err == nil {
				err = fmt.Errorf("server: %s", e.Error)
			}
			replies <- reply{err: err}
			continue
		}
		f, err := wire.DecodeFrame(msg)
		replies <- reply{frame: f, err: err}
	}
}

// renderLoop feeds events to the navigator and keeps at most one request in
// flight. Changes made while a frame renders are coalesced into the next request.
func renderLoop(ctx context.Context, conn *websocket.Conn, nav *navigate.Navigator, events <-chan navigate.Event, replies <-chan reply) error {
	dirty, inFlight := true, false
	var sent time.Time
	for {
		if dirty && !inFlight {
			req := mandel.Request{Viewport: nav.CurrentViewport()}
			msg, err := wire.EncodeRequest(req)
			if err != nil {
				return err
			}
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return fmt.Errorf("send request: %w", err)
			}
			dirty, inFlight, sent = false, true, time.Now()
			hudSetState("rendering")
		}

		select {
		case ev := <-events:
			if nav.Handle(ev) {
				dirty = true
			}
			if r, ok := ev.(navigate.Resize); ok {
				resizeCanvas(r.Width, r.Height)
			}
		case r := <-replies:
			if r.fatal {
				return r.err
			}
			inFlight = false
			hudSetState(nav.State().String())
			if r.err != nil {
				logScreenf("render failed: %v", r.err)
				continue
			}
			displayImage(r.frame.Image)
			hudSetTimes(r.frame.Elapsed, time.Since(sent))
		}
	}
}

// logScreenf appends a formatted message to the log element in the DOM.
func logScreenf(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)

	doc := js.Global().Get("document")
	logElem := doc.Call("getElementById", "log")
	logElem.Set("textContent", logElem.Get("textContent").String()+msg+"\n")
}

// logFatalf logs a fatal error to the log window and terminates the program.
func logFatalf(format string, a ...any) {
	logScreenf("FATAL: "+format, a...)
	log.Fatalf(format, a...)
}

func hudSetState(state string) {
	js.Global().Get("document").Call("getElementById", "state").Set("textContent", state)
}

// hudSetTimes shows the server render time and the full round trip.
func hudSetTimes(render, roundTrip time.Duration) {
	doc := js.Global().Get("document")
	doc.Call("getElementById", "renderTime").Set("textContent", render.Round(time.Millisecond).String())
	doc.Call("getElementById", "roundTrip").Set("textContent", roundTrip.Round(time.Millisecond).String())
}
