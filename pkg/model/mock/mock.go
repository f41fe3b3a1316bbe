package mock

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/igolaizola/musicgen/pkg/music"
)

const defaultSampleRate = 32000

// Engine produces a stereo sine wave instead of running a model.
type Engine struct {
	sampleRate int
}

// New returns a mock engine. conn may hold the sample rate.
func New(conn string) (*Engine, error) {
	rate := defaultSampleRate
	if conn != "" {
		v, err := strconv.Atoi(conn)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("mock: invalid sample rate %q", conn)
		}
		rate = v
	}
	return &Engine{sampleRate: rate}, nil
}

func (e *Engine) Infer(ctx context.Context, prompt string, maxLength int) (*music.Audio, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if maxLength <= 0 {
		return nil, fmt.Errorf("mock: invalid length %d", maxLength)
	}
	frames := maxLength * e.sampleRate / music.TokensPerSecond
	if frames == 0 {
		frames = 1
	}

	// Pitch depends on the prompt so different prompts sound different
	var sum int
	for _, r := range prompt {
		sum += int(r)
	}
	freq := 220.0 + float64(sum%220)

	left := make([]float32, frames)
	right := make([]float32, frames)
	for i := range left {
		t := float64(i) / float64(e.sampleRate)
		left[i] = float32(0.5 * math.Sin(2*math.Pi*freq*t))
		right[i] = float32(0.5 * math.Sin(2*math.Pi*freq*1.5*t))
	}
	return &music.Audio{
		Samples:    [][]float32{left, right},
		SampleRate: e.sampleRate,
	}, nil
}
