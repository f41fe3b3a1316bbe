package generate

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/igolaizola/musicgen"
	"github.com/igolaizola/musicgen/pkg/library"
	"github.com/igolaizola/musicgen/pkg/model"
	"github.com/igolaizola/musicgen/pkg/music"
	"github.com/igolaizola/musicgen/pkg/sound"
	"github.com/igolaizola/musicgen/pkg/wav"
)

type Config struct {
	Debug  bool
	DBType string
	DBConn string
	FSType string
	FSConn string
	Proxy  string

	Model model.Config

	Style       string
	Description string
	Duration    float64
	Output      string
	Wave        string
}

// Run generates a single piece of music and writes it as a WAV file.
func Run(ctx context.Context, cfg *Config) error {
	log.Println("generate: process started")
	defer log.Println("generate: process ended")

	debug := func(format string, args ...interface{}) {
		if !cfg.Debug {
			return
		}
		format += "\n"
		log.Printf(format, args...)
	}

	style, err := music.ParseStyle(cfg.Style)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	req := music.Request{
		Style:       style,
		Description: cfg.Description,
		Duration:    cfg.Duration,
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	output := cfg.Output
	if output == "" {
		output = music.Filename
	}

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
		return fmt.Errorf("generate: %w", err)
	}
	defer func() {
		if err := lib.Close(); err != nil {
			log.Printf("generate: %v\n", err)
		}
	}()

	mcfg := cfg.Model
	mcfg.Debug = cfg.Debug
	provider, err := model.New(&mcfg)
	if err != nil {
		return fmt.Errorf("generate: couldn't create model provider: %w", err)
	}
	generator := musicgen.New(provider, cfg.Debug)

	debug("generate: %s", req)
	start := time.Now()
	audio, err := generator.GenerateRequest(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		if _, rerr := lib.Record(ctx, &library.Entry{Request: req, Elapsed: elapsed, Err: err}); rerr != nil {
			log.Printf("generate: %v\n", rerr)
		}
		return fmt.Errorf("generate: %w", err)
	}
	log.Printf("generate: generated %s of audio in %s\n", audio.Duration(), elapsed.Round(time.Millisecond))

	data, err := wav.Encode(audio)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return fmt.Errorf("generate: couldn't write %s: %w", output, err)
	}
	log.Printf("generate: saved %s (%s)\n", output, music.MIMEType)

	if cfg.Wave != "" {
		analyzer, err := sound.NewAnalyzer(audio)
		if err != nil {
			return fmt.Errorf("generate: %w", err)
		}
		plot, err := analyzer.PlotWave(string(style))
		if err != nil {
			return fmt.Errorf("generate: %w", err)
		}
		if err := os.WriteFile(cfg.Wave, plot, 0644); err != nil {
			return fmt.Errorf("generate: couldn't write %s: %w", cfg.Wave, err)
		}
		debug("generate: saved wave plot %s", cfg.Wave)
	}

	id, err := lib.Record(ctx, &library.Entry{Request: req, Audio: audio, WAV: data, Elapsed: elapsed})
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	if lib.Enabled() {
		log.Printf("generate: recorded generation %s\n", id)
	}
	return nil
}
