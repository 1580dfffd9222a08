package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/marben/histomandel/render"
	"github.com/marben/irpc"
)

// main is the entry point for the Mandelbrot render server.
// It serves the web client's static files, a websocket render endpoint, a PNG endpoint
// and the irpc Renderer service over tcp and websocket.
func main() {
	if err := run(); err != nil {
		log.Fatalf("run: %+v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a JSON config file, reloaded on change")
	verbose := flag.Bool("v", false, "log every render")
	flag.Parse()

	if *verbose {
		render.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		return err
	}
	store := NewConfigStore(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *configPath != "" {
		go func() {
			if err := WatchConfigFile(ctx, *configPath, store, nil); err != nil {
				log.Printf("config watcher stopped: %v", err)
			}
		}()
	}

	renderer := newConfiguredRenderer(store)
	srv := newServer(store, renderer)

	// irpcServer provides mandel.Renderer over network, backed by the same
	// renderer as the web endpoints so all clients share the render limit
	irpcServer := newRPCServer(store, renderer)
	websocketListener := NewWSListener(ctx, fmt.Sprintf("%s/rpc", cfg.Addr))
	srv.rpc = websocketListener

	// irpcServer can serve multiple listeners. In this case both tcp and websocket
	go func() {
		if err := irpcServer.Serve(websocketListener); err != nil && !errors.Is(err, irpc.ErrServerClosed) {
			log.Printf("irpcServer.Serve ws: %v", err)
		}
	}()
	if cfg.RPCAddr != "" {
		tcpListener, err := net.Listen("tcp", cfg.RPCAddr)
		if err != nil {
			return fmt.Errorf("net.Listen: %w", err)
		}
		log.Printf("irpc listening on tcp %s", cfg.RPCAddr)
		go func() {
			if err := irpcServer.Serve(tcpListener); err != nil && !errors.Is(err, irpc.ErrServerClosed) {
				log.Printf("irpcServer.Serve tcp: %v", err)
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("httpServer.Shutdown: %v", err)
		}
		if err := irpcServer.Close(); err != nil {
			log.Printf("irpcServer.Close: %v", err)
		}
	}()

	log.Printf("listening on http://localhost%s", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("httpServer: %w", err)
	}
	log.Printf("server stopped")
	return nil
}
