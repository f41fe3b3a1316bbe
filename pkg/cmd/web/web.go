package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	iofs "io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/igolaizola/musicgen"
	"github.com/igolaizola/musicgen/pkg/library"
	"github.com/igolaizola/musicgen/pkg/model"
	"github.com/igolaizola/musicgen/pkg/music"
	"github.com/igolaizola/musicgen/pkg/storage"
	"github.com/igolaizola/musicgen/pkg/wav"
)

// maxRequestSize bounds generate request bodies.
const maxRequestSize = 1 << 20

type Config struct {
	Debug  bool
	DBType string
	DBConn string
	FSType string
	FSConn string
	Proxy  string

	Model model.Config

	Addr        string
	Timeout     time.Duration
	Credentials map[string]string
	Volumes     map[string]string
}

//go:embed static/*
var staticContent embed.FS

// Serve starts the music generation web service.
func Serve(ctx context.Context, cfg *Config) error {
	log.Println("web: server started")
	defer log.Println("web: server ended")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lib, err := library.Open(ctx, &library.Config{
		Debug:  cfg.Debug,
		DBType: cfg.DBType,
		DBConn: cfg.DBConn,
		FSType: cfg.FSType,
		FSConn: cfg.FSConn,
		Proxy:  cfg.Proxy,
		Model:  cfg.Model.Name,
	})
	if err != nil {
		return fmt.Errorf("web: %w", err)
	}
	defer func() {
		if err := lib.Close(); err != nil {
			log.Printf("web: %v\n", err)
		}
	}()

	mcfg := cfg.Model
	mcfg.Debug = cfg.Debug
	provider, err := model.New(&mcfg)
	if err != nil {
		return fmt.Errorf("web: couldn't create model provider: %w", err)
	}

	mux, err := newRouter(&service{
		generator: musicgen.New(provider, cfg.Debug),
		library:   lib,
		timeout:   cfg.Timeout,
		debug:     cfg.Debug,
		sem:       make(chan struct{}, 1),
	}, cfg)
	if err != nil {
		return err
	}

	// Create server
	split := strings.Split(cfg.Addr, ":")
	if len(split) != 2 {
		return fmt.Errorf("web: invalid address: %s", cfg.Addr)
	}
	host := split[0]
	port, err := strconv.Atoi(split[1])
	if err != nil {
		return fmt.Errorf("web: invalid port: %s", split[1])
	}
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: mux,
	}
	go func() {
		note := fmt.Sprintf("http://%s:%d", host, port)
		if host == "" {
			note = fmt.Sprintf("all interfaces http://localhost:%d", port)
		}
		log.Printf("Starting server on %s", note)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v\n", err)
			cancel()
		}
	}()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("web: couldn't shutdown server: %v\n", err)
	}
	return nil
}

type service struct {
	generator *musicgen.Generator
	library   *library.Library
	timeout   time.Duration
	debug     bool

	// sem holds one token, only one generation runs at a time
	sem chan struct{}
}

func newRouter(s *service, cfg *Config) (http.Handler, error) {
	// Create static content
	staticFS, err := iofs.Sub(staticContent, "static")
	if err != nil {
		return nil, fmt.Errorf("web: couldn't load static content: %w", err)
	}

	// Create router
	mux := chi.NewRouter()

	// Add middleware
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)

	// Add BasicAuth middleware
	if len(cfg.Credentials) > 0 {
		mux.Use(middleware.BasicAuth("private", cfg.Credentials))
	}

	// Create subrouter for api endpoints
	r := mux.Group(func(r chi.Router) {
		if cfg.Debug {
			r.Use(middleware.Logger)
		}
	})

	// Handler to serve the static files
	mux.Get("/*", http.StripPrefix("/", http.FileServer(http.FS(staticFS))).ServeHTTP)

	// Handler to serve static files defined via volumes
	for local, path := range cfg.Volumes {
		path = strings.Trim(path, "/")
		path = fmt.Sprintf("/%s/", path)
		mux.Get(path+"*", http.StripPrefix(path, http.FileServer(http.Dir(local))).ServeHTTP)
	}

	r.Get("/api/styles", s.styles)
	r.Post("/api/generate", s.generate)
	r.Get("/api/generations", s.generations)
	r.Delete("/api/generations/{id}", s.deleteGeneration)
	r.Get("/api/generations/{id}/audio", s.download(music.MIMEType, s.library.WAV))
	r.Get("/api/generations/{id}/wave", s.download("image/jpeg", s.library.Wave))
	return mux, nil
}

type Styles struct {
	Styles          []music.Style `json:"styles"`
	MinDuration     int           `json:"min_duration"`
	MaxDuration     int           `json:"max_duration"`
	DefaultDuration int           `json:"default_duration"`
	History         bool          `json:"history"`
}

func (s *service) styles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, &Styles{
		Styles:          music.Styles(),
		MinDuration:     music.MinDuration,
		MaxDuration:     music.MaxDuration,
		DefaultDuration: music.DefaultDuration,
		History:         s.library.Enabled(),
	})
}

type GenerateRequest struct {
	Style       string   `json:"style"`
	Description string   `json:"description"`
	Duration    *float64 `json:"duration"`
}

func (s *service) generate(w http.ResponseWriter, r *http.Request) {
	var in GenerateRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, fmt.Sprintf("couldn't decode request: %v", err), http.StatusBadRequest)
		return
	}
	style, err := music.ParseStyle(in.Style)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req := music.Request{
		Style:       style,
		Description: in.Description,
		Duration:    music.DefaultDuration,
	}
	if in.Duration != nil {
		req.Duration = *in.Duration
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	// Wait for our turn
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		http.Error(w, "generator busy", http.StatusServiceUnavailable)
		return
	}
	start := time.Now()
	audio, err := s.generator.GenerateRequest(ctx, req)
	elapsed := time.Since(start)
	<-s.sem

	if err != nil {
		log.Printf("web: couldn't generate %s: %v\n", req, err)
		if _, rerr := s.library.Record(context.WithoutCancel(ctx), &library.Entry{Request: req, Elapsed: elapsed, Err: err}); rerr != nil {
			log.Printf("web: %v\n", rerr)
		}
		status := http.StatusInternalServerError
		if errors.Is(err, music.ErrValidation) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	data, err := wav.Encode(audio)
	if err != nil {
		log.Printf("web: %v\n", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	id, err := s.library.Record(context.WithoutCancel(ctx), &library.Entry{Request: req, Audio: audio, WAV: data, Elapsed: elapsed})
	if err != nil {
		// The audio is still valid, history is best effort
		log.Printf("web: %v\n", err)
	}
	if s.debug {
		log.Printf("web: generated %s in %s (%s)\n", req, elapsed.Round(time.Millisecond), id)
	}

	w.Header().Set("Content-Type", music.MIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", music.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if id != "" {
		w.Header().Set("X-Generation-Id", id)
	}
	if _, err := w.Write(data); err != nil {
		log.Printf("web: couldn't write audio: %v\n", err)
	}
}

type Generation struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Style       string    `json:"style"`
	Description string    `json:"description"`
	Prompt      string    `json:"prompt"`
	Duration    float64   `json:"duration"`
	Seconds     float32   `json:"seconds"`
	Elapsed     float32   `json:"elapsed"`
	Failed      bool      `json:"failed"`
	Error       string    `json:"error,omitempty"`
	AudioURL    string    `json:"audio_url,omitempty"`
	WaveURL     string    `json:"wave_url,omitempty"`
}

func (s *service) generations(w http.ResponseWriter, r *http.Request) {
	// Obtain page from query params
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		page = 1
	}
	size, err := strconv.Atoi(r.URL.Query().Get("size"))
	if err != nil || size <= 0 {
		size = 20
	}
	var filters []storage.Filter
	if v := r.URL.Query().Get("style"); v != "" {
		style, err := music.ParseStyle(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		filters = append(filters, storage.Where("style = ?", string(style)))
	}

	gens, err := s.library.List(r.Context(), page, size, filters...)
	if errors.Is(err, library.ErrDisabled) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		log.Println("couldn't list generations:", err)
		http.Error(w, fmt.Sprintf("couldn't list generations: %v", err), http.StatusInternalServerError)
		return
	}
	out := []*Generation{}
	for _, g := range gens {
		v := &Generation{
			ID:          g.ID,
			CreatedAt:   g.CreatedAt,
			Style:       g.Style,
			Description: g.Description,
			Prompt:      g.Prompt,
			Duration:    g.Duration,
			Seconds:     g.Seconds,
			Elapsed:     g.Elapsed,
			Failed:      g.Failed,
			Error:       g.Error,
		}
		if g.Stored {
			v.AudioURL = fmt.Sprintf("/api/generations/%s/audio", g.ID)
			v.WaveURL = fmt.Sprintf("/api/generations/%s/wave", g.ID)
		}
		out = append(out, v)
	}
	writeJSON(w, out)
}

func (s *service) deleteGeneration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.library.Delete(r.Context(), id)
	switch {
	case errors.Is(err, library.ErrDisabled), errors.Is(err, storage.ErrNotFound):
		http.Error(w, fmt.Sprintf("couldn't get %s: %v", id, err), http.StatusNotFound)
		return
	case err != nil:
		log.Println("couldn't delete generation:", err)
		http.Error(w, fmt.Sprintf("couldn't delete %s: %v", id, err), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *service) download(contentType string, get func(context.Context, string) ([]byte, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		b, err := get(r.Context(), id)
		switch {
		case errors.Is(err, library.ErrDisabled), errors.Is(err, storage.ErrNotFound):
			http.Error(w, fmt.Sprintf("couldn't get %s: %v", id, err), http.StatusNotFound)
			return
		case err != nil:
			log.Println("couldn't download:", err)
			http.Error(w, fmt.Sprintf("couldn't get %s: %v", id, err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(b)))
		_, _ = w.Write(b)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println("couldn't encode response:", err)
		http.Error(w, fmt.Sprintf("couldn't encode response: %v", err), http.StatusInternalServerError)
	}
}
