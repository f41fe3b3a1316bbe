package library

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/igolaizola/musicgen/pkg/filestore"
	"github.com/igolaizola/musicgen/pkg/music"
	"github.com/igolaizola/musicgen/pkg/sound"
	"github.com/igolaizola/musicgen/pkg/storage"
	"github.com/oklog/ulid/v2"
)

var ErrDisabled = errors.New("library: history is disabled")

// Library keeps track of generations. Both the database and the file store
// are optional; when neither is set recording is a no-op.
type Library struct {
	store *storage.Store
	fs    *filestore.Store
	model string
	debug bool
}

func New(store *storage.Store, fs *filestore.Store, model string, debug bool) *Library {
	return &Library{
		store: store,
		fs:    fs,
		model: model,
		debug: debug,
	}
}

type Config struct {
	Debug  bool
	DBType string
	DBConn string
	FSType string
	FSConn string
	Proxy  string
	Model  string
}

// Open builds a library from optional database and file store settings.
func Open(ctx context.Context, cfg *Config) (*Library, error) {
	var store *storage.Store
	if cfg.DBType != "" {
		var err error
		store, err = storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
		if err != nil {
			return nil, fmt.Errorf("library: couldn't create orm store: %w", err)
		}
		if err := store.Start(ctx); err != nil {
			return nil, fmt.Errorf("library: couldn't start orm store: %w", err)
		}
	}
	var fs *filestore.Store
	if cfg.FSType != "" {
		var err error
		fs, err = filestore.New(cfg.FSType, cfg.FSConn, cfg.Proxy, cfg.Debug, store)
		if err != nil {
			if store != nil {
				_ = store.Close()
			}
			return nil, fmt.Errorf("library: couldn't create file storage: %w", err)
		}
	}
	name := cfg.Model
	if name == "" {
		name = music.DefaultModel
	}
	return New(store, fs, name, cfg.Debug), nil
}

// Close releases the database, if any.
func (l *Library) Close() error {
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}

// Enabled reports whether generations are persisted anywhere.
func (l *Library) Enabled() bool {
	return l.store != nil || l.fs != nil
}

// Entry is the outcome of a single generation.
type Entry struct {
	Request music.Request
	Audio   *music.Audio
	WAV     []byte
	Elapsed time.Duration
	Err     error
}

// Record stores the entry and returns its id. The id is returned even when
// nothing is persisted.
func (l *Library) Record(ctx context.Context, e *Entry) (string, error) {
	id := ulid.Make().String()
	if !l.Enabled() {
		return id, nil
	}

	gen := &storage.Generation{
		ID:          id,
		Style:       string(e.Request.Style),
		Description: e.Request.Description,
		Prompt:      e.Request.Prompt(),
		Duration:    e.Request.Duration,
		MaxLength:   e.Request.Length(),
		Model:       l.model,
		Elapsed:     float32(e.Elapsed.Seconds()),
	}

	if e.Err != nil {
		gen.Failed = true
		gen.Error = e.Err.Error()
		return id, l.save(ctx, gen)
	}

	gen.SampleRate = e.Audio.SampleRate
	gen.Channels = e.Audio.Channels()
	analyzer, err := sound.NewAnalyzer(e.Audio)
	if err != nil {
		return "", fmt.Errorf("library: couldn't analyze %s: %w", id, err)
	}
	gen.Seconds = float32(analyzer.Duration().Seconds())
	gen.Peak = float32(analyzer.Peak())
	gen.FadeOut = analyzer.HasFadeOut()

	if l.fs != nil {
		if err := l.upload(ctx, id, e.WAV, analyzer); err != nil {
			gen.Error = err.Error()
			log.Printf("library: %v\n", err)
		} else {
			gen.Stored = true
		}
	}
	if err := l.save(ctx, gen); err != nil {
		return "", err
	}
	if l.debug {
		log.Printf("library: recorded %s (%s, %.1fs, peak %.2f)\n", id, gen.Style, gen.Seconds, gen.Peak)
	}
	return id, nil
}

func (l *Library) save(ctx context.Context, gen *storage.Generation) error {
	if l.store == nil {
		return nil
	}
	if err := l.store.SetGeneration(ctx, gen); err != nil {
		return fmt.Errorf("library: couldn't save %s: %w", gen.ID, err)
	}
	return nil
}

func (l *Library) upload(ctx context.Context, id string, data []byte, analyzer *sound.Analyzer) error {
	dir, err := os.MkdirTemp("", "musicgen-")
	if err != nil {
		return fmt.Errorf("library: couldn't create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	wavPath := filepath.Join(dir, filestore.WAV(id))
	if err := os.WriteFile(wavPath, data, 0644); err != nil {
		return fmt.Errorf("library: couldn't write wav: %w", err)
	}
	if err := l.fs.SetWAV(ctx, wavPath, id); err != nil {
		return fmt.Errorf("library: couldn't upload wav %s: %w", id, err)
	}

	plot, err := analyzer.PlotWave(id)
	if err != nil {
		return fmt.Errorf("library: couldn't plot wave %s: %w", id, err)
	}
	jpgPath := filepath.Join(dir, filestore.JPG(id))
	if err := os.WriteFile(jpgPath, plot, 0644); err != nil {
		return fmt.Errorf("library: couldn't write jpg: %w", err)
	}
	if err := l.fs.SetJPG(ctx, jpgPath, id); err != nil {
		return fmt.Errorf("library: couldn't upload jpg %s: %w", id, err)
	}
	return nil
}

// List returns the most recent generations first.
func (l *Library) List(ctx context.Context, page, size int, filters ...storage.Filter) ([]*storage.Generation, error) {
	if l.store == nil {
		return nil, ErrDisabled
	}
	return l.store.ListGenerations(ctx, page, size, "created_at desc", filters...)
}

func (l *Library) Get(ctx context.Context, id string) (*storage.Generation, error) {
	if l.store == nil {
		return nil, ErrDisabled
	}
	return l.store.GetGeneration(ctx, id)
}

// Delete removes a generation and its stored files.
func (l *Library) Delete(ctx context.Context, id string) error {
	if l.store == nil {
		return ErrDisabled
	}
	gen, err := l.store.GetGeneration(ctx, id)
	if err != nil {
		return err
	}
	if gen.Stored && l.fs != nil {
		if err := l.fs.Delete(ctx, id); err != nil {
			return fmt.Errorf("library: couldn't delete files of %s: %w", id, err)
		}
	}
	return l.store.DeleteGeneration(ctx, id)
}

// WAV returns the stored audio of a generation.
func (l *Library) WAV(ctx context.Context, id string) ([]byte, error) {
	return l.fetch(ctx, id, filestore.WAV(id), l.fs.GetWAV)
}

// Wave returns the stored waveform plot of a generation.
func (l *Library) Wave(ctx context.Context, id string) ([]byte, error) {
	return l.fetch(ctx, id, filestore.JPG(id), l.fs.GetJPG)
}

func (l *Library) fetch(ctx context.Context, id, name string, get func(context.Context, string, string) error) ([]byte, error) {
	if l.fs == nil {
		return nil, ErrDisabled
	}
	if _, err := ulid.ParseStrict(id); err != nil {
		return nil, storage.ErrNotFound
	}
	if l.store != nil {
		gen, err := l.store.GetGeneration(ctx, id)
		if err != nil {
			return nil, err
		}
		if !gen.Stored {
			return nil, storage.ErrNotFound
		}
	}
	dir, err := os.MkdirTemp("", "musicgen-")
	if err != nil {
		return nil, fmt.Errorf("library: couldn't create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, name)
	if err := get(ctx, path, id); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("library: couldn't download %s: %w", name, err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("library: couldn't read %s: %w", name, err)
	}
	return b, nil
}
