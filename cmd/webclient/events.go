//go:build js && wasm

package main

import (
	"syscall/js"

	"github.com/marben/histomandel/internal/navigate"
)

// bindEvents translates DOM input into navigator events on out. Sends never
// block the browser's event loop; events that find out full are dropped.
// The js.Func values live for the whole program and are never released.
func bindEvents(out chan<- navigate.Event) {
	c := canvas()
	on := func(target js.Value, name string, opts map[string]any, fn func(e js.Value)) {
		f := js.FuncOf(func(this js.Value, args []js.Value) any {
			fn(args[0])
			return nil
		})
		if opts != nil {
			target.Call("addEventListener", name, f, opts)
		} else {
			target.Call("addEventListener", name, f)
		}
	}
	emit := func(ev navigate.Event) {
		if !navigate.Offer(out, ev) {
			logScreenf("input queue full, dropped %T", ev)
		}
	}
	pos := func(e js.Value) (int, float64, float64) {
		return e.Get("pointerId").Int(), e.Get("offsetX").Float(), e.Get("offsetY").Float()
	}

	// touch gestures are ours, not the browser's
	c.Get("style").Set("touchAction", "none")

	on(c, "pointerdown", nil, func(e js.Value) {
		c.Call("setPointerCapture", e.Get("pointerId"))
		id, x, y := pos(e)
		emit(navigate.PointerDown{ID: id, X: x, Y: y})
	})
	on(c, "pointermove", nil, func(e js.Value) {
		id, x, y := pos(e)
		emit(navigate.PointerMove{ID: id, X: x, Y: y})
	})
	for _, name := range []string{"pointerup", "pointercancel"} {
		on(c, name, nil, func(e js.Value) {
			emit(navigate.PointerUp{ID: e.Get("pointerId").Int()})
		})
	}
	on(c, "wheel", map[string]any{"passive": false}, func(e js.Value) {
		e.Call("preventDefault")
		emit(navigate.Wheel{X: e.Get("offsetX").Float(), Y: e.Get("offsetY").Float(), DeltaY: e.Get("deltaY").Float()})
	})

	win := js.Global().Get("window")
	on(win, "resize", nil, func(js.Value) {
		w, h := windowSize()
		emit(navigate.Resize{Width: w, Height: h})
	})
	on(win, "keydown", nil, func(e js.Value) {
		if e.Get("key").String() == "r" {
			emit(navigate.Reset{})
		}
	})
}
