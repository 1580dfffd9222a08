package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/coder/websocket"
	mandel "github.com/marben/histomandel"
	"github.com/marben/histomandel/internal/wire"
	"github.com/marben/histomandel/internal/worker"
	"github.com/marben/histomandel/render"
)

// requests are small JSON documents
const maxRequestSize = 1 << 16

// configuredRenderer renders with the shard count of the live config. It is
// shared by every endpoint and refuses with worker.ErrBusy once max_renders
// renders are running.
type configuredRenderer struct {
	store *ConfigStore

	m      sync.Mutex
	active int
}

func newConfiguredRenderer(store *ConfigStore) *configuredRenderer {
	return &configuredRenderer{store: store}
}

func (r *configuredRenderer) Render(req mandel.Request) (*image.RGBA, error) {
	cfg := r.store.Get()
	if err := r.acquire(cfg.MaxRenders); err != nil {
		return nil, err
	}
	defer r.release()
	return render.RendererImpl{Shards: cfg.Shards}.Render(req)
}

func (r *configuredRenderer) acquire(limit int) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.active >= limit {
		return fmt.Errorf("%w: server is running %d renders", worker.ErrBusy, r.active)
	}
	r.active++
	return nil
}

func (r *configuredRenderer) release() {
	r.m.Lock()
	r.active--
	r.m.Unlock()
}

type server struct {
	store    *ConfigStore
	renderer mandel.Renderer
	// shared serves the stateless HTTP endpoint; websocket sessions get their own worker.
	shared *worker.Worker
	// rpc takes the websockets of irpc clients; nil leaves /rpc unrouted.
	rpc http.Handler
}

func newServer(store *ConfigStore, r mandel.Renderer) *server {
	return &server{
		store:    store,
		renderer: r,
		shared:   worker.New("http", r),
	}
}

// routes serves the static web client from the configured folder, the
// websocket endpoint, the PNG endpoint and, when set, the irpc websocket.
func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebsocket)
	mux.HandleFunc("GET /render.png", s.handlePNG)
	mux.HandleFunc("GET /stats", s.handleStats)
	if s.rpc != nil {
		mux.Handle("/rpc", s.rpc)
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.FileServer(http.Dir(s.store.Get().StaticDir)).ServeHTTP(w, r)
	})
	return mux
}

func (s *server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // TODO: restrict to the configured host once the server has one
	})
	if err != nil {
		log.Println(err)
		return
	}
	defer c.CloseNow()
	c.SetReadLimit(maxRequestSize)

	log.Printf("got connection from: %s", r.RemoteAddr)
	err = s.serveSession(r.Context(), c, r.RemoteAddr)
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		log.Printf("%s disconnected", r.RemoteAddr)
	default:
		log.Printf("session %s: %v", r.RemoteAddr, err)
	}
}

// serveSession answers render requests on c until the connection fails.
// Each session owns one worker, so a client that sends a request while its
// previous frame is still rendering gets a busy error back instead of a queue.
func (s *server) serveSession(ctx context.Context, c *websocket.Conn, name string) error {
	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wk := worker.New(name, s.renderer)
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			if err := writeError(ctx, c, errors.New("requests must be text messages"), false); err != nil {
				return err
			}
			continue
		}

		req, err := wire.DecodeRequest(msg)
		if err == nil {
			req, err = s.store.Get().admit(req)
		}
		if err != nil {
			if err := writeError(ctx, c, err, false); err != nil {
				return err
			}
			continue
		}

		job, err := wk.Submit(req)
		if errors.Is(err, worker.ErrBusy) {
			if err := writeError(ctx, c, err, true); err != nil {
				return err
			}
			continue
		}
		wg.Go(func() { deliver(ctx, c, job) })
	}
}

// deliver sends the outcome of job once it finishes.
func deliver(ctx context.Context, c *websocket.Conn, job *worker.Job) {
	img, err := job.Wait(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		if err := writeError(ctx, c, err, errors.Is(err, worker.ErrBusy)); err != nil {
			log.Printf("write error reply: %v", err)
		}
		return
	}
	_, elapsed, _ := job.Result()
	msg, err := wire.EncodeFrame(wire.Frame{Image: img, Elapsed: elapsed})
	if err != nil {
		log.Printf("encode frame: %v", err)
		return
	}
	if err := c.Write(ctx, websocket.MessageBinary, msg); err != nil {
		log.Printf("write frame: %v", err)
	}
}

func writeError(ctx context.Context, c *websocket.Conn, err error, busy bool) error {
	return c.Write(ctx, websocket.MessageText, wire.EncodeError(err, busy))
}

func (s *server) handlePNG(w http.ResponseWriter, r *http.Request) {
	cfg := s.store.Get()
	req, err := parseRenderQuery(r.URL.Query())
	if err == nil {
		req, err = cfg.admit(req)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	img, err := s.shared.Render(r.Context(), req)
	switch {
	case errors.Is(err, worker.ErrBusy):
		w.Header().Set("Retry-After", "1")
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		log.Printf("png.Encode: %v", err)
	}
}

type statsReply struct {
	InFlight  bool `json:"inFlight"`
	Submitted int  `json:"submitted"`
	Rejected  int  `json:"rejected"`
	Failed    int  `json:"failed"`
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.shared.Stats()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(statsReply{
		InFlight:  s.shared.InFlight(),
		Submitted: st.Submitted,
		Rejected:  st.Rejected,
		Failed:    st.Failed,
	}); err != nil {
		log.Printf("json.Encode stats: %v", err)
	}
}

// parseRenderQuery builds a request from URL parameters. The plane rectangle
// comes from either all four of xmin, xmax, ymin, ymax or a region name
// (default "full") fitted to the image size. Missing numeric parameters stay
// zero so the config defaults apply.
func parseRenderQuery(q url.Values) (mandel.Request, error) {
	var req mandel.Request
	var err error
	intParam := func(key string, def int) int {
		v := q.Get(key)
		if v == "" || err != nil {
			return def
		}
		n, perr := strconv.Atoi(v)
		if perr != nil {
			err = fmt.Errorf("%w: %s: %v", mandel.ErrInvalidParams, key, perr)
		}
		return n
	}
	floatParam := func(key string) float64 {
		v := q.Get(key)
		if v == "" || err != nil {
			return 0
		}
		f, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			err = fmt.Errorf("%w: %s: %v", mandel.ErrInvalidParams, key, perr)
		}
		return f
	}

	w, h := intParam("width", 800), intParam("height", 600)
	req.MaxIterations = intParam("iter", 0)
	req.EscapeRadius = floatParam("radius")
	req.Strategy = q.Get("strategy")

	bounds := []string{"xmin", "xmax", "ymin", "ymax"}
	given := 0
	for _, k := range bounds {
		if q.Has(k) {
			given++
		}
	}
	switch given {
	case 0:
		name := q.Get("region")
		if name == "" {
			name = "full"
		}
		region, rerr := mandel.RegionByName(name)
		if rerr != nil {
			return req, fmt.Errorf("%w: %v", mandel.ErrInvalidViewport, rerr)
		}
		req.Viewport = region.Fit(w, h)
	case len(bounds):
		req.Viewport = mandel.Viewport{
			Width:  w,
			Height: h,
			Region: mandel.Region{
				Xmin: floatParam("xmin"),
				Xmax: floatParam("xmax"),
				Ymin: floatParam("ymin"),
				Ymax: floatParam("ymax"),
			},
		}
	default:
		return req, fmt.Errorf("%w: xmin, xmax, ymin and ymax must be given together", mandel.ErrInvalidViewport)
	}
	return req, err
}
