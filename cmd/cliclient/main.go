// Command cliclient renders a Mandelbrot image, either locally or on a
// render server, and saves it to a file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	mandel "github.com/marben/histomandel"
	"github.com/marben/histomandel/render"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("run: %+v", err)
	}
}

type options struct {
	server      string
	rpc         string
	region      string
	width       int
	height      int
	params      mandel.Params
	output      string
	supersample int
	histogram   string
	shards      int
	timeout     time.Duration
	verbose     bool
	list        bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("cliclient", flag.ContinueOnError)
	fs.StringVar(&o.server, "server", "", "websocket URL of a render server, e.g. ws://localhost:8080/ws; empty renders locally")
	fs.StringVar(&o.rpc, "rpc", "", "irpc address of a render server, host:port for tcp (e.g. localhost:8081) or a websocket URL (e.g. ws://localhost:8080/rpc)")
	fs.StringVar(&o.region, "region", "seahorse", "landmark region to render ("+strings.Join(mandel.RegionNames(), ", ")+")")
	fs.IntVar(&o.width, "w", 1920, "image width")
	fs.IntVar(&o.height, "h", 1080, "image height")
	fs.IntVar(&o.params.MaxIterations, "iter", mandel.DefaultParams.MaxIterations, "iteration cap")
	fs.Float64Var(&o.params.EscapeRadius, "radius", mandel.DefaultParams.EscapeRadius, "escape radius")
	fs.StringVar(&o.params.Strategy, "strategy", render.StrategySmooth, "color strategy ("+strings.Join(render.StrategyNames(), ", ")+")")
	fs.StringVar(&o.output, "o", "mandel.png", "output file; the extension picks png, bmp or tiff")
	fs.IntVar(&o.supersample, "supersample", 1, "render k×k samples per output pixel and downscale")
	fs.StringVar(&o.histogram, "hist", "", "also write a PNG chart of the iteration histogram to this file (local rendering only)")
	fs.IntVar(&o.shards, "shards", 0, "row bands rendered concurrently; 0 means one per CPU")
	fs.DurationVar(&o.timeout, "timeout", time.Minute, "server round trip timeout")
	fs.BoolVar(&o.verbose, "v", false, "debug logging from the renderer")
	fs.BoolVar(&o.list, "list", false, "list regions and color strategies and exit")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	if o.supersample < 1 || o.supersample > 8 {
		return o, fmt.Errorf("supersample %d out of range [1, 8]", o.supersample)
	}
	if o.server != "" && o.rpc != "" {
		return o, errors.New("-server and -rpc are exclusive")
	}
	if o.histogram != "" && (o.server != "" || o.rpc != "") {
		return o, errors.New("-hist needs the iteration data and only works when rendering locally")
	}
	if _, err := encoderFor(o.output); err != nil {
		return o, err
	}
	return o, nil
}

// request builds the render request. Supersampling multiplies the sample grid
// but keeps the region, so the downscaled image covers the same area.
func (o options) request() (mandel.Request, error) {
	region, err := mandel.RegionByName(o.region)
	if err != nil {
		return mandel.Request{}, err
	}
	req := mandel.Request{
		Viewport: region.Fit(o.width*o.supersample, o.height*o.supersample),
		Params:   o.params.WithDefaults(mandel.DefaultParams),
	}
	if err := req.Validate(); err != nil {
		return mandel.Request{}, err
	}
	if _, err := render.StrategyByName(req.Strategy); err != nil {
		return mandel.Request{}, err
	}
	return req, nil
}

func run(args []string) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}
	p := message.NewPrinter(language.English)
	if o.list {
		p.Printf("regions:    %s\n", strings.Join(mandel.RegionNames(), ", "))
		p.Printf("strategies: %s\n", strings.Join(render.StrategyNames(), ", "))
		return nil
	}
	if o.verbose {
		render.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	req, err := o.request()
	if err != nil {
		return err
	}

	var (
		img     *image.RGBA
		field   *render.Field
		elapsed time.Duration
	)
	switch {
	case o.server != "":
		log.Printf("requesting %dx%d render from %s", req.Viewport.Width, req.Viewport.Height, o.server)
		ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
		defer cancel()
		frame, err := fetchRemote(ctx, o.server, req)
		if err != nil {
			return err
		}
		img, elapsed = frame.Image, frame.Elapsed
	case o.rpc != "":
		log.Printf("calling Render(%dx%d) on %s", req.Viewport.Width, req.Viewport.Height, o.rpc)
		ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
		defer cancel()
		img, elapsed, err = fetchRPC(ctx, o.rpc, req)
		if err != nil {
			return err
		}
	default:
		start := time.Now()
		img, field, err = renderLocal(req, o.shards)
		if err != nil {
			return err
		}
		elapsed = time.Since(start)
	}

	if o.supersample > 1 {
		img = downscale(img, o.width, o.height)
	}
	if err := saveImage(o.output, img); err != nil {
		return err
	}
	if field != nil && o.histogram != "" {
		if err := saveHistogramChart(o.histogram, field); err != nil {
			return err
		}
		log.Printf("histogram chart saved to %q", o.histogram)
	}

	p.Printf("%d×%d image, %d samples, rendered in %v\n", o.width, o.height, req.Viewport.Pixels(), elapsed.Round(time.Millisecond))
	if field != nil {
		s := summarize(field)
		p.Printf("escaped %d, in set %d, mean escape iteration %.1f\n", s.escaped, s.inSet, s.meanIterations)
	}
	log.Printf("saved to %q", o.output)
	return nil
}
