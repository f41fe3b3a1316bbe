package analyze

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/igolaizola/musicgen/pkg/music"
	"github.com/igolaizola/musicgen/pkg/sound"
	"github.com/igolaizola/musicgen/pkg/wav"
)

type Config struct {
	Debug  bool
	Input  string
	Output string
}

// Run prints stats of a WAV or MP3 file and writes its RMS and wave plots.
func Run(ctx context.Context, cfg *Config) error {
	return run(cfg, os.Stdout)
}

func run(cfg *Config, stdout io.Writer) error {
	b, err := os.ReadFile(cfg.Input)
	if err != nil {
		return fmt.Errorf("analyze: couldn't read input: %w", err)
	}
	var audio *music.Audio
	switch ext := strings.ToLower(filepath.Ext(cfg.Input)); ext {
	case ".wav":
		audio, err = wav.Decode(b)
	case ".mp3":
		audio, err = sound.DecodeMP3(b)
	default:
		return fmt.Errorf("analyze: unsupported input format: %s", ext)
	}
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	a, err := sound.NewAnalyzer(audio)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	fmt.Fprintf(stdout, "Format: %d Hz, %d channels\n", audio.SampleRate, audio.Channels())
	fmt.Fprintf(stdout, "Duration: %s\n", a.Duration())
	fmt.Fprintf(stdout, "Peak: %.3f\n", a.Peak())
	fmt.Fprintf(stdout, "Fade out: %v\n", a.HasFadeOut())

	if cfg.Output == "" {
		return nil
	}
	if err := os.MkdirAll(cfg.Output, 0755); err != nil {
		return fmt.Errorf("analyze: couldn't create output folder: %w", err)
	}

	name := filepath.Base(cfg.Input)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	out := filepath.Join(cfg.Output, name)

	rms, err := a.PlotRMS()
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	if err := os.WriteFile(out+"-rms.jpg", rms, 0644); err != nil {
		return fmt.Errorf("analyze: couldn't write rms plot: %w", err)
	}
	wave, err := a.PlotWave(name)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	if err := os.WriteFile(out+"-wave.jpg", wave, 0644); err != nil {
		return fmt.Errorf("analyze: couldn't write wave plot: %w", err)
	}
	return nil
}
