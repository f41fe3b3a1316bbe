package musicgen

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/igolaizola/musicgen/pkg/model"
	"github.com/igolaizola/musicgen/pkg/music"
)

// EngineProvider returns a loaded model engine.
type EngineProvider interface {
	Get(ctx context.Context) (model.Engine, error)
}

type Generator struct {
	provider EngineProvider
	debug    bool
}

func New(provider EngineProvider, debug bool) *Generator {
	return &Generator{
		provider: provider,
		debug:    debug,
	}
}

// Generate produces audio for the given style, description and duration in
// seconds. It blocks until the model finishes.
func (g *Generator) Generate(ctx context.Context, style music.Style, description string, duration float64) (*music.Audio, error) {
	return g.GenerateRequest(ctx, music.Request{
		Style:       style,
		Description: description,
		Duration:    duration,
	})
}

func (g *Generator) GenerateRequest(ctx context.Context, req music.Request) (*music.Audio, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	prompt := req.Prompt()
	length := req.Length()

	engine, err := g.provider.Get(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if g.debug {
		log.Printf("musicgen: generating %q (max length %d)\n", prompt, length)
	}
	audio, err := engine.Infer(ctx, prompt, length)
	if err != nil {
		return nil, fmt.Errorf("musicgen: %w: %w", music.ErrInference, err)
	}
	if err := audio.Validate(); err != nil {
		return nil, fmt.Errorf("musicgen: %w: %w", music.ErrInference, err)
	}
	if g.debug {
		log.Printf("musicgen: generated %s of audio at %d Hz in %s\n", audio.Duration(), audio.SampleRate, time.Since(start))
	}
	return audio, nil
}
