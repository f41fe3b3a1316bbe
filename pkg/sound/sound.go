package sound

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"math"
	"time"

	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/igolaizola/musicgen/pkg/music"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

type Analyzer struct {
	mono     []float64
	peak     float64
	rate     int
	duration time.Duration
}

func NewAnalyzer(a *music.Audio) (*Analyzer, error) {
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("sound: %w", err)
	}

	// Convert to mono
	frames := a.Frames()
	channels := float64(a.Channels())
	mono := make([]float64, frames)
	var peak float64
	for _, ch := range a.Samples {
		for i, v := range ch {
			mono[i] += float64(v) / channels
			if abs := math.Abs(float64(v)); abs > peak {
				peak = abs
			}
		}
	}

	return &Analyzer{
		mono:     mono,
		peak:     peak,
		rate:     a.SampleRate,
		duration: a.Duration(),
	}, nil
}

func (a *Analyzer) Duration() time.Duration {
	return a.duration
}

// Peak returns the maximum absolute sample value across all channels.
func (a *Analyzer) Peak() float64 {
	return a.peak
}

func (a *Analyzer) Resample(windowSize time.Duration) []float64 {
	samples := a.mono
	windowLength := a.windowLength(windowSize)

	var resampled []float64
	for i := 0; i < len(samples); i += windowLength {
		end := i + windowLength
		if end > len(samples) {
			end = len(samples)
		}
		window := samples[i:end]
		var min, max float64
		for _, v := range window {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		resampled = append(resampled, min)
		resampled = append(resampled, max)
	}
	return resampled
}

func (a *Analyzer) RMS(windowSize time.Duration) []float64 {
	samples := a.mono
	windowLength := a.windowLength(windowSize)

	var rms []float64
	for i := 0; i < len(samples); i += windowLength {
		end := i + windowLength
		if end > len(samples) {
			end = len(samples)
		}
		window := samples[i:end]
		rms = append(rms, calculateRMS(window))
	}
	return rms
}

func (a *Analyzer) windowLength(windowSize time.Duration) int {
	n := int(float64(a.rate) * windowSize.Seconds())
	if n < 1 {
		n = 1
	}
	return n
}

func calculateRMS(samples []float64) float64 {
	var squareSum float64
	for _, sample := range samples {
		squareSum += sample * sample
	}
	meanSquare := squareSum / float64(len(samples))
	return math.Sqrt(meanSquare)
}

func (a *Analyzer) PlotRMS() ([]byte, error) {
	window := 50 * time.Millisecond
	rms := a.RMS(window)
	return createPlot("rms", rms, 0, 1, window.Seconds(), 0.01)
}

func (a *Analyzer) PlotWave(name string) ([]byte, error) {
	window := 50 * time.Millisecond
	resampled := a.Resample(window)
	return createPlot(name, resampled, -1, 1, window.Seconds(), 0.00)
}

func createPlot(name string, data []float64, min, max float64, window float64, line float64) ([]byte, error) {
	p := plot.New()

	p.Y.Min = min
	p.Y.Max = max

	d := time.Duration(float64(len(data))*window*0.5) * time.Second
	p.Title.Text = fmt.Sprintf("%s %s", name, d)
	p.X.Label.Text = "time"
	p.Y.Label.Text = "data"

	l, err := plotter.NewLine(makePoints(data, window*0.5))
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't create line plotter: %w", err)
	}
	l.LineStyle.Width = vg.Points(1)
	p.Add(l)

	// Reference line at y = line
	if line > 0 {
		hLine := plotter.NewFunction(func(x float64) float64 { return line })
		hLine.Color = color.RGBA{R: 255, A: 255}
		p.Add(hLine)
	}

	c, err := p.WriterTo(4*vg.Inch, 4*vg.Inch, "jpeg")
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't create plot: %w", err)
	}
	var buf bytes.Buffer
	if _, err := c.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("sound: couldn't write plot: %w", err)
	}
	return buf.Bytes(), nil
}

// makePoints converts samples to plotter.XYs spaced by step seconds.
func makePoints(samples []float64, step float64) plotter.XYs {
	pts := make(plotter.XYs, len(samples))
	for i, v := range samples {
		pts[i].X = float64(i) * step
		pts[i].Y = v
	}
	return pts
}

// DecodeMP3 decodes an MP3 file into stereo float samples.
func DecodeMP3(b []byte) (*music.Audio, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't decode mp3: %w", err)
	}
	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't read mp3 samples: %w", err)
	}

	// go-mp3 always outputs 16-bit little endian stereo
	var stereo [2][]float32
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(pcm[i]) | int16(pcm[i+1])<<8
		stereo[(i/2)%2] = append(stereo[(i/2)%2], float32(sample)/32768.0)
	}
	n := len(stereo[1])
	return &music.Audio{
		Samples:    [][]float32{stereo[0][:n], stereo[1]},
		SampleRate: decoder.SampleRate(),
	}, nil
}
