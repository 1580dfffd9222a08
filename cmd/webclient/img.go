//go:build js && wasm

package main

import (
	"image"
	"syscall/js"
)

func canvas() js.Value {
	return js.Global().Get("document").Call("getElementById", canvasID)
}

// displayImage puts the frame on the canvas. A frame rendered for an older
// canvas size is still drawn at the origin.
func displayImage(img *image.RGBA) {
	ctx := canvas().Call("getContext", "2d")

	jsData := js.Global().Get("Uint8ClampedArray").New(len(img.Pix))
	js.CopyBytesToJS(jsData, img.Pix)

	imageData := js.Global().Get("ImageData").New(jsData, img.Rect.Dx(), img.Rect.Dy())
	ctx.Call("putImageData", imageData, 0, 0)
}

func initImage(width, height int, color string) {
	c := canvas()
	c.Set("width", width)
	c.Set("height", height)

	ctx := c.Call("getContext", "2d")
	ctx.Set("fillStyle", color)
	ctx.Call("fillRect", 0, 0, width, height)
}

// resizeCanvas changes the drawing buffer size. Browsers clear the canvas on
// resize, so the old frame is redrawn until the new one arrives.
func resizeCanvas(width, height int) {
	c := canvas()
	ctx := c.Call("getContext", "2d")
	old := ctx.Call("getImageData", 0, 0, c.Get("width"), c.Get("height"))
	c.Set("width", width)
	c.Set("height", height)
	ctx.Call("putImageData", old, 0, 0)
}

func windowSize() (int, int) {
	win := js.Global().Get("window")
	return max(win.Get("innerWidth").Int(), 1), max(win.Get("innerHeight").Int(), 1)
}
