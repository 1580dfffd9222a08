package render

import "image"

// splitRectNoClip splits r into tiles of size tileW × tileH.
// Tiles at the right and bottom edges are smaller if r is not divisible.
func splitRectNoClip(r image.Rectangle, tileW, tileH int) []image.Rectangle {
	if tileW <= 0 || tileH <= 0 {
		panic("tile dimensions must be positive")
	}

	w := r.Dx()
	h := r.Dy()

	var tiles []image.Rectangle

	for oy := 0; oy < h; oy += tileH {
		th := min(tileH, h-oy)
		for ox := 0; ox < w; ox += tileW {
			tw := min(tileW, w-ox)
			tiles = append(tiles, image.Rect(r.Min.X+ox, r.Min.Y+oy, r.Min.X+ox+tw, r.Min.Y+oy+th))
		}
	}

	return tiles
}

// rowBands cuts a w×h frame into at most n full-width bands.
func rowBands(w, h, n int) []image.Rectangle {
	n = max(1, min(n, h))
	return splitRectNoClip(image.Rect(0, 0, w, h), w, (h+n-1)/n)
}
