package model

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/igolaizola/musicgen/pkg/model/mock"
	"github.com/igolaizola/musicgen/pkg/model/remote"
	"github.com/igolaizola/musicgen/pkg/model/script"
	"github.com/igolaizola/musicgen/pkg/music"
)

// Engine is a loaded text-to-audio model.
type Engine interface {
	Infer(ctx context.Context, prompt string, maxLength int) (*music.Audio, error)
}

// Loader constructs an engine. It is called at most once per successful load.
type Loader func(ctx context.Context, opts Options) (Engine, error)

type Options struct {
	Name   string
	Device string
	DType  string
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = music.DefaultModel
	}
	if o.Device == "" {
		o.Device = "cpu"
	}
	if o.DType == "" {
		o.DType = "float32"
	}
	return o
}

// Provider lazily loads an engine and keeps it for the process lifetime.
type Provider struct {
	loader Loader
	opts   Options
	debug  bool

	lck    chan struct{}
	loaded atomic.Bool
	engine Engine
}

func NewProvider(loader Loader, opts Options, debug bool) *Provider {
	return &Provider{
		loader: loader,
		opts:   opts.withDefaults(),
		debug:  debug,
		lck:    make(chan struct{}, 1),
	}
}

// Get returns the cached engine, loading it on first use.
// A failed load is not cached.
func (p *Provider) Get(ctx context.Context) (Engine, error) {
	if p.loaded.Load() {
		return p.engine, nil
	}
	// Waiters give up when their context ends while another load runs.
	select {
	case p.lck <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("model: couldn't wait for %s: %w", p.opts.Name, ctx.Err())
	}
	defer func() { <-p.lck }()
	if p.loaded.Load() {
		return p.engine, nil
	}

	start := time.Now()
	log.Printf("model: loading %s (device %s, dtype %s)\n", p.opts.Name, p.opts.Device, p.opts.DType)
	engine, err := p.loader(ctx, p.opts)
	if err != nil {
		return nil, fmt.Errorf("model: %w: couldn't load %s: %w", music.ErrModelLoad, p.opts.Name, err)
	}
	if engine == nil {
		return nil, fmt.Errorf("model: %w: loader returned no engine for %s", music.ErrModelLoad, p.opts.Name)
	}
	if p.debug {
		log.Printf("model: loaded %s in %s\n", p.opts.Name, time.Since(start))
	}
	p.engine = engine
	p.loaded.Store(true)
	return engine, nil
}

func (p *Provider) Loaded() bool {
	return p.loaded.Load()
}

func (p *Provider) Options() Options {
	return p.opts
}

type Config struct {
	Debug   bool
	Type    string
	Conn    string
	Token   string
	Proxy   string
	Timeout time.Duration

	Name   string
	Device string
	DType  string
}

// New returns a provider for the backend selected by cfg.Type:
// "remote" (conn is the server URL), "script" (conn is the command line)
// or "mock" (conn is an optional sample rate).
func New(cfg *Config) (*Provider, error) {
	opts := Options{
		Name:   cfg.Name,
		Device: cfg.Device,
		DType:  cfg.DType,
	}
	var loader Loader
	switch cfg.Type {
	case "remote":
		if cfg.Conn == "" {
			return nil, fmt.Errorf("model: remote endpoint is empty")
		}
		httpClient, err := newHTTPClient(cfg.Timeout, cfg.Proxy)
		if err != nil {
			return nil, err
		}
		loader = func(ctx context.Context, opts Options) (Engine, error) {
			c := remote.New(&remote.Config{
				Endpoint: cfg.Conn,
				Token:    cfg.Token,
				Debug:    cfg.Debug,
				Client:   httpClient,
			})
			if err := c.Load(ctx, opts.Name, opts.Device, opts.DType); err != nil {
				return nil, err
			}
			return c, nil
		}
	case "script":
		loader = func(ctx context.Context, opts Options) (Engine, error) {
			c, err := script.New(&script.Config{
				Command: cfg.Conn,
				Model:   opts.Name,
				Device:  opts.Device,
				DType:   opts.DType,
				Debug:   cfg.Debug,
			})
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	case "mock":
		loader = func(ctx context.Context, opts Options) (Engine, error) {
			m, err := mock.New(cfg.Conn)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	default:
		return nil, fmt.Errorf("model: unknown model type %q", cfg.Type)
	}
	return NewProvider(loader, opts, cfg.Debug), nil
}

func newHTTPClient(timeout time.Duration, proxy string) (*http.Client, error) {
	if timeout == 0 {
		timeout = 30 * time.Minute
	}
	httpClient := &http.Client{
		Timeout: timeout,
	}
	if proxy != "" {
		u, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("model: invalid proxy URL: %w", err)
		}
		httpClient.Transport = &http.Transport{
			Proxy: http.ProxyURL(u),
		}
	}
	return httpClient, nil
}
