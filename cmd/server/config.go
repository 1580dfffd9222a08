package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/fsnotify/fsnotify"
	mandel "github.com/marben/histomandel"
	"github.com/marben/histomandel/render"
)

// Config is the server configuration file, JSON encoded.
type Config struct {
	Addr string `json:"addr"`
	// RPCAddr is the tcp address of the irpc render service; empty disables it.
	// The service is also reachable as a websocket on /rpc of Addr.
	RPCAddr   string `json:"rpc_addr"`
	StaticDir string `json:"static_dir"`
	// Defaults fill the parameters a client leaves out.
	Defaults mandel.Params `json:"defaults"`
	// Shards is the number of row bands per render; <= 0 means one per CPU.
	Shards int `json:"shards"`
	// MaxPixels and MaxIterations cap what a single request may ask for.
	MaxPixels     int `json:"max_pixels"`
	MaxIterations int `json:"max_iterations"`
	// MaxRenders caps the renders running at once across all clients.
	MaxRenders int `json:"max_renders"`
}

func DefaultConfig() Config {
	return Config{
		Addr:          ":8080",
		RPCAddr:       ":8081",
		StaticDir:     "./static",
		Defaults:      mandel.DefaultParams,
		MaxPixels:     4096 * 4096,
		MaxIterations: 100_000,
		MaxRenders:    runtime.NumCPU(),
	}
}

// LoadConfig reads filename over the defaults. An empty filename yields the defaults.
func LoadConfig(filename string) (Config, error) {
	cfg := DefaultConfig()
	if filename == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %q: %w", filename, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config %q: %w", filename, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if err := c.Defaults.Validate(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	if _, err := render.StrategyByName(c.Defaults.Strategy); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	if c.MaxPixels < 1 || c.MaxIterations < 1 || c.MaxRenders < 1 {
		return fmt.Errorf("limits must be positive: max_pixels %d, max_iterations %d, max_renders %d", c.MaxPixels, c.MaxIterations, c.MaxRenders)
	}
	return nil
}

// admit applies the defaults and the server limits to a client request.
func (c Config) admit(req mandel.Request) (mandel.Request, error) {
	req.Params = req.Params.WithDefaults(c.Defaults)
	if err := req.Validate(); err != nil {
		return req, err
	}
	if _, err := render.StrategyByName(req.Strategy); err != nil {
		return req, err
	}
	if req.Viewport.Pixels() > c.MaxPixels {
		return req, fmt.Errorf("%w: %d points exceed the server limit of %d", mandel.ErrInvalidViewport, req.Viewport.Pixels(), c.MaxPixels)
	}
	if req.MaxIterations > c.MaxIterations {
		return req, fmt.Errorf("%w: maxIterations %d exceeds the server limit of %d", mandel.ErrInvalidParams, req.MaxIterations, c.MaxIterations)
	}
	return req, nil
}

// ConfigStore holds the live configuration.
type ConfigStore struct {
	cfg Config
	mu  sync.RWMutex
}

func NewConfigStore(cfg Config) *ConfigStore {
	return &ConfigStore{cfg: cfg}
}

func (s *ConfigStore) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *ConfigStore) Update(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// WatchConfigFile reloads filename into store whenever it is written or
// replaced, until ctx ends. The directory is watched so editors that save
// by renaming are picked up too. A config that fails to load is logged and ignored.
func WatchConfigFile(ctx context.Context, filename string, store *ConfigStore, reloaded func(Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(filename)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %q: %w", filepath.Dir(abs), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			cfg, err := LoadConfig(abs)
			if err != nil {
				log.Printf("config reload failed: %v", err)
				continue
			}
			old := store.Get()
			store.Update(cfg)
			if cfg.Addr != old.Addr || cfg.RPCAddr != old.RPCAddr {
				log.Printf("config: listen address changes (%q, %q) apply after restart", cfg.Addr, cfg.RPCAddr)
			}
			log.Printf("config reloaded from %q", abs)
			if reloaded != nil {
				reloaded(cfg)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("config watcher error: %v", err)
		}
	}
}
