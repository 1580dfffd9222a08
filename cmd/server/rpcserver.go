package main

import (
	"context"
	"image"
	"log"
	"net"
	"net/http"

	"github.com/coder/websocket"
	mandel "github.com/marben/histomandel"
	"github.com/marben/irpc"
)

// admittingRenderer applies the live config to every request before rendering it.
// The irpc service is backed by it, so remote callers get the same defaults and limits
// as the websocket and PNG endpoints.
type admittingRenderer struct {
	store    *ConfigStore
	renderer mandel.Renderer
}

func (r admittingRenderer) Render(req mandel.Request) (*image.RGBA, error) {
	req, err := r.store.Get().admit(req)
	if err != nil {
		return nil, err
	}
	return r.renderer.Render(req)
}

var _ mandel.Renderer = admittingRenderer{}

// newRPCServer provides mandel.Renderer over irpc. The same server can serve
// any number of listeners, in our case tcp and websocket.
func newRPCServer(store *ConfigStore, r mandel.Renderer) *irpc.Server {
	rendererIrpcService := mandel.NewRendererIrpcService(admittingRenderer{store: store, renderer: r})
	return irpc.NewServer(
		irpc.WithOnConnect(func(ep *irpc.Endpoint) {
			log.Printf("irpc: got connection from: %s", ep.RemoteAddr())
		}),
		irpc.WithServices(rendererIrpcService),
	)
}

// WebsocketListener implements net.Listener
// it hands every websocket accepted by ServeHTTP to the irpc server as a binary net.Conn
type WebsocketListener struct {
	ch     chan *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	addr   wsAddr
}

func NewWSListener(ctx context.Context, addr string) *WebsocketListener {
	ctx, cancel := context.WithCancel(ctx)
	return &WebsocketListener{
		ch:     make(chan *websocket.Conn),
		ctx:    ctx,
		cancel: cancel,
		addr:   wsAddr{addr: addr},
	}
}

// ServeHTTP upgrades the request and waits for Accept to take the connection.
func (l *WebsocketListener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // TODO: restrict to the configured host once the server has one
	})
	if err != nil {
		log.Println(err)
		return
	}
	c.SetReadLimit(maxRequestSize)

	select {
	case l.ch <- c:
	case <-l.ctx.Done():
		c.Close(websocket.StatusGoingAway, "server shutting down")
	case <-r.Context().Done():
		c.CloseNow()
	}
}

func (l *WebsocketListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.ch:
		return websocket.NetConn(l.ctx, c, websocket.MessageBinary), nil
	case <-l.ctx.Done():
		return nil, net.ErrClosed
	}
}

func (l *WebsocketListener) Addr() net.Addr {
	return l.addr
}

func (l *WebsocketListener) Close() error {
	l.cancel()
	return nil
}

// wsAddr implements net.Addr
type wsAddr struct {
	addr string
}

func (a wsAddr) Network() string {
	return "ws"
}

func (a wsAddr) String() string {
	return a.addr
}
