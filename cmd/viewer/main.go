// Command viewer is an interactive desktop Mandelbrot explorer. Drag to pan,
// scroll or pinch to zoom, R to reset, S to switch the color strategy and
// the arrow keys to change the iteration cap.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	mandel "github.com/marben/histomandel"
	"github.com/marben/histomandel/render"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("run: %+v", err)
	}
}

func run() error {
	region := flag.String("region", "full", "landmark region to start at ("+strings.Join(mandel.RegionNames(), ", ")+")")
	width := flag.Int("w", 800, "window width")
	height := flag.Int("h", 600, "window height")
	iter := flag.Int("iter", mandel.DefaultParams.MaxIterations, "initial iteration cap")
	radius := flag.Float64("radius", mandel.DefaultParams.EscapeRadius, "escape radius")
	strategy := flag.String("strategy", render.StrategySmooth, "initial color strategy ("+strings.Join(render.StrategyNames(), ", ")+")")
	shards := flag.Int("shards", 0, "row bands rendered concurrently; 0 means one per CPU")
	verbose := flag.Bool("v", false, "debug logging from the renderer")
	flag.Parse()

	if *verbose {
		render.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	home, err := mandel.RegionByName(*region)
	if err != nil {
		return err
	}
	params := mandel.Params{MaxIterations: *iter, EscapeRadius: *radius, Strategy: *strategy}
	if err := params.Validate(); err != nil {
		return err
	}
	if _, err := render.StrategyByName(params.Strategy); err != nil {
		return err
	}

	game := NewGame(home, *width, *height, params, render.RendererImpl{Shards: *shards})

	ebiten.SetWindowSize(*width, *height)
	ebiten.SetWindowTitle("Mandelbrot Set")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	if err := ebiten.RunGame(game); err != nil {
		return fmt.Errorf("ebiten.RunGame: %w", err)
	}
	return nil
}
