// Package wire contains the JSON messages exchanged with inference backends.
package wire

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/igolaizola/musicgen/pkg/music"
	"github.com/igolaizola/musicgen/pkg/sound"
	"github.com/igolaizola/musicgen/pkg/wav"
)

type LoadRequest struct {
	Model  string `json:"model"`
	Device string `json:"device"`
	DType  string `json:"torch_dtype"`
}

type ForwardParams struct {
	MaxNewTokens int `json:"max_new_tokens"`
}

type Request struct {
	Model         string        `json:"model"`
	Device        string        `json:"device,omitempty"`
	DType         string        `json:"torch_dtype,omitempty"`
	Inputs        string        `json:"inputs"`
	ForwardParams ForwardParams `json:"forward_params"`
}

// Result is either a raw waveform shaped [batch][channel][sample] or an
// encoded payload in Data (base64) with its Format.
type Result struct {
	SamplingRate int           `json:"sampling_rate"`
	Audio        [][][]float32 `json:"audio,omitempty"`
	Format       string        `json:"format,omitempty"`
	Data         string        `json:"data,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// Decode returns the first waveform of the result.
func (r *Result) Decode() (*music.Audio, error) {
	if r.Error != "" {
		return nil, fmt.Errorf("wire: backend error: %s", r.Error)
	}
	var audio *music.Audio
	switch {
	case len(r.Audio) > 0:
		audio = &music.Audio{
			Samples:    r.Audio[0],
			SampleRate: r.SamplingRate,
		}
	case r.Data != "":
		b, err := base64.StdEncoding.DecodeString(r.Data)
		if err != nil {
			return nil, fmt.Errorf("wire: couldn't decode base64 data: %w", err)
		}
		switch strings.ToLower(r.Format) {
		case "wav", "":
			audio, err = wav.Decode(b)
		case "mp3":
			audio, err = sound.DecodeMP3(b)
		default:
			return nil, fmt.Errorf("wire: unknown audio format %q", r.Format)
		}
		if err != nil {
			return nil, fmt.Errorf("wire: couldn't decode %s data: %w", r.Format, err)
		}
	default:
		return nil, errors.New("wire: result contains no audio")
	}
	if err := audio.Validate(); err != nil {
		return nil, fmt.Errorf("wire: invalid audio: %w", err)
	}
	return audio, nil
}
