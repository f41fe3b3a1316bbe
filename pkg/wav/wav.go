package wav

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/igolaizola/musicgen/pkg/music"
)

const (
	bitDepth    = 16
	pcmFormat   = 1
	floatFormat = 3
	maxInt16    = 32767
)

// Encode writes the audio as a 16-bit PCM WAV file in memory.
func Encode(a *music.Audio) ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	channels := a.Channels()
	frames := a.Frames()

	// Interleave channel-major samples into frame-major order
	data := make([]int, frames*channels)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			data[i*channels+c] = toInt16(a.Samples[c][i])
		}
	}
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  a.SampleRate,
		},
		Data:           data,
		SourceBitDepth: bitDepth,
	}

	w := &writeSeeker{}
	enc := wav.NewEncoder(w, a.SampleRate, bitDepth, channels, pcmFormat)
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("wav: couldn't write samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("wav: couldn't close encoder: %w", err)
	}
	return w.buf, nil
}

// Decode reads an integer PCM or 32-bit float WAV file into channel-major
// float samples.
func Decode(b []byte) (*music.Audio, error) {
	dec := wav.NewDecoder(bytes.NewReader(b))
	if !dec.IsValidFile() {
		return nil, errors.New("wav: invalid file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav: couldn't read samples: %w", err)
	}
	channels := int(dec.NumChans)
	if channels == 0 {
		return nil, errors.New("wav: no channels")
	}
	depth := int(dec.BitDepth)
	if depth == 0 {
		depth = bitDepth
	}
	var convert func(v int) float32
	switch {
	case dec.WavAudioFormat == floatFormat && depth == 32:
		convert = func(v int) float32 {
			return math.Float32frombits(uint32(v))
		}
	case dec.WavAudioFormat == pcmFormat && depth == 8:
		// 8-bit PCM is unsigned
		convert = func(v int) float32 {
			return float32(v-128) / 128
		}
	case dec.WavAudioFormat == pcmFormat:
		scale := float32(int(1) << (depth - 1))
		convert = func(v int) float32 {
			return float32(v) / scale
		}
	default:
		return nil, fmt.Errorf("wav: unsupported format %d with %d bits", dec.WavAudioFormat, depth)
	}
	frames := len(buf.Data) / channels
	samples := make([][]float32, channels)
	for c := range samples {
		samples[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			samples[c][i] = convert(buf.Data[i*channels+c])
		}
	}
	return &music.Audio{
		Samples:    samples,
		SampleRate: int(dec.SampleRate),
	}, nil
}

func toInt16(v float32) int {
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return int(v * maxInt16)
}

// writeSeeker is an in-memory io.WriteSeeker, needed by the encoder to
// rewrite the header sizes on close.
type writeSeeker struct {
	buf []byte
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	end := w.pos + len(p)
	if end > len(w.buf) {
		if end > cap(w.buf) {
			grown := make([]byte, len(w.buf), 2*end)
			copy(grown, w.buf)
			w.buf = grown
		}
		w.buf = w.buf[:end]
	}
	copy(w.buf[w.pos:], p)
	w.pos = end
	return len(p), nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(w.pos) + offset
	case io.SeekEnd:
		pos = int64(len(w.buf)) + offset
	default:
		return 0, fmt.Errorf("wav: invalid whence %d", whence)
	}
	if pos < 0 {
		return 0, errors.New("wav: negative position")
	}
	w.pos = int(pos)
	return pos, nil
}
