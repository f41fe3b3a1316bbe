package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/igolaizola/musicgen/pkg/music"
	"github.com/igolaizola/musicgen/pkg/storage"
)

type Config struct {
	Debug  bool
	DBType string
	DBConn string

	Style  string
	Failed bool
	Page   int
	Size   int
	Output string
}

type entry struct {
	ID          string  `json:"id" csv:"id"`
	CreatedAt   string  `json:"created_at" csv:"created_at"`
	Style       string  `json:"style" csv:"style"`
	Description string  `json:"description" csv:"description"`
	Prompt      string  `json:"prompt" csv:"prompt"`
	Duration    float64 `json:"duration" csv:"duration"`
	MaxLength   int     `json:"max_length" csv:"max_length"`
	Model       string  `json:"model" csv:"model"`
	SampleRate  int     `json:"sample_rate" csv:"sample_rate"`
	Channels    int     `json:"channels" csv:"channels"`
	Seconds     float32 `json:"seconds" csv:"seconds"`
	Peak        float32 `json:"peak" csv:"peak"`
	FadeOut     bool    `json:"fade_out" csv:"fade_out"`
	Elapsed     float32 `json:"elapsed" csv:"elapsed"`
	Stored      bool    `json:"stored" csv:"stored"`
	Error       string  `json:"error" csv:"error"`
}

// Run exports the generation history as CSV (default) or JSON, to the output
// file or to stdout.
func Run(ctx context.Context, cfg *Config) error {
	return run(ctx, cfg, os.Stdout)
}

func run(ctx context.Context, cfg *Config, stdout io.Writer) error {
	store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("history: couldn't create orm store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("history: couldn't start orm store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("history: %v\n", err)
		}
	}()

	var filters []storage.Filter
	if cfg.Failed {
		filters = append(filters, storage.Where("failed = ?", true))
	}
	if cfg.Style != "" {
		style, err := music.ParseStyle(cfg.Style)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		filters = append(filters, storage.Where("style = ?", string(style)))
	}
	size := cfg.Size
	if size <= 0 {
		size = 100
	}
	gens, err := store.ListGenerations(ctx, cfg.Page, size, "created_at desc", filters...)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}

	es := []*entry{}
	for _, g := range gens {
		es = append(es, &entry{
			ID:          g.ID,
			CreatedAt:   g.CreatedAt.UTC().Format(time.RFC3339),
			Style:       g.Style,
			Description: g.Description,
			Prompt:      g.Prompt,
			Duration:    g.Duration,
			MaxLength:   g.MaxLength,
			Model:       g.Model,
			SampleRate:  g.SampleRate,
			Channels:    g.Channels,
			Seconds:     g.Seconds,
			Peak:        g.Peak,
			FadeOut:     g.FadeOut,
			Elapsed:     g.Elapsed,
			Stored:      g.Stored,
			Error:       g.Error,
		})
	}

	var marshal func([]*entry) ([]byte, error)
	switch ext := filepath.Ext(cfg.Output); ext {
	case ".json":
		marshal = func(es []*entry) ([]byte, error) {
			return json.MarshalIndent(es, "", "  ")
		}
	case ".csv", "":
		marshal = func(es []*entry) ([]byte, error) {
			return gocsv.MarshalBytes(es)
		}
	default:
		return fmt.Errorf("history: unsupported output format: %s", ext)
	}
	b, err := marshal(es)
	if err != nil {
		return fmt.Errorf("history: couldn't marshal history: %w", err)
	}

	if cfg.Output == "" {
		if _, err := stdout.Write(b); err != nil {
			return fmt.Errorf("history: couldn't write output: %w", err)
		}
		return nil
	}
	if err := os.WriteFile(cfg.Output, b, 0644); err != nil {
		return fmt.Errorf("history: couldn't write output file: %w", err)
	}
	log.Printf("history: exported %d generations to %s\n", len(es), cfg.Output)
	return nil
}
