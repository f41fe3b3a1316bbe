package sound

import (
	"bytes"
	"math"
	"os"
	"testing"
	"time"

	"github.com/igolaizola/musicgen/pkg/music"
)

func sine(rate int, seconds float64, amp func(t float64) float64) *music.Audio {
	n := int(float64(rate) * seconds)
	left := make([]float32, n)
	right := make([]float32, n)
	for i := range left {
		t := float64(i) / float64(rate)
		v := float32(amp(t) * math.Sin(2*math.Pi*440*t))
		left[i] = v
		right[i] = v
	}
	return &music.Audio{Samples: [][]float32{left, right}, SampleRate: rate}
}

func TestFadeOut(t *testing.T) {
	tests := []struct {
		name string
		amp  func(t float64) float64
		want bool
	}{
		{"constant", func(t float64) float64 { return 0.5 }, false},
		{"fade", func(t float64) float64 {
			if t < 3 {
				return 0.5
			}
			return 0.5 * (5 - t) / 2
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAnalyzer(sine(8000, 5, tt.amp))
			if err != nil {
				t.Fatalf("NewAnalyzer() err = %v; want nil", err)
			}
			got := a.HasFadeOut()
			if got != tt.want {
				t.Fatalf("HasFadeOut() = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestAnalyzer(t *testing.T) {
	a, err := NewAnalyzer(sine(8000, 2, func(float64) float64 { return 0.5 }))
	if err != nil {
		t.Fatalf("NewAnalyzer() err = %v; want nil", err)
	}
	if a.Duration() != 2*time.Second {
		t.Fatalf("Duration() = %s; want 2s", a.Duration())
	}
	if math.Abs(a.Peak()-0.5) > 0.01 {
		t.Fatalf("Peak() = %v; want 0.5", a.Peak())
	}
	rms := a.RMS(100 * time.Millisecond)
	if len(rms) != 20 {
		t.Fatalf("len(RMS()) = %d; want 20", len(rms))
	}
	if math.Abs(rms[0]-0.5/math.Sqrt2) > 0.01 {
		t.Fatalf("RMS()[0] = %v; want %v", rms[0], 0.5/math.Sqrt2)
	}
	if got := len(a.Resample(100 * time.Millisecond)); got != 40 {
		t.Fatalf("len(Resample()) = %d; want 40", got)
	}
}

func TestPlotWave(t *testing.T) {
	a, err := NewAnalyzer(sine(8000, 1, func(float64) float64 { return 0.5 }))
	if err != nil {
		t.Fatal(err)
	}
	b, err := a.PlotWave("wave")
	if err != nil {
		t.Fatalf("PlotWave() err = %v; want nil", err)
	}
	if !bytes.HasPrefix(b, []byte{0xff, 0xd8}) {
		t.Fatalf("PlotWave() didn't return a jpeg")
	}
}

func TestNewAnalyzerInvalid(t *testing.T) {
	if _, err := NewAnalyzer(&music.Audio{}); err == nil {
		t.Fatalf("NewAnalyzer() err = nil; want error")
	}
}

func TestDecodeMP3(t *testing.T) {
	b, err := os.ReadFile("testdata/silence.mp3")
	if err != nil {
		t.Fatal(err)
	}
	a, err := DecodeMP3(b)
	if err != nil {
		t.Fatalf("DecodeMP3() err = %v; want nil", err)
	}
	if a.SampleRate != 44100 {
		t.Fatalf("SampleRate = %d; want 44100", a.SampleRate)
	}
	if a.Channels() != 2 {
		t.Fatalf("Channels() = %d; want 2", a.Channels())
	}
	if len(a.Samples[0]) != len(a.Samples[1]) {
		t.Fatalf("channel lengths = %d, %d; want equal", len(a.Samples[0]), len(a.Samples[1]))
	}
	if a.Frames() == 0 {
		t.Fatalf("Frames() = 0; want > 0")
	}
	for _, v := range a.Samples[0] {
		if v != 0 {
			t.Fatalf("sample = %v; want silence", v)
		}
	}
}

func TestDecodeMP3Invalid(t *testing.T) {
	if _, err := DecodeMP3([]byte("not an mp3")); err == nil {
		t.Fatalf("DecodeMP3() err = nil; want error")
	}
}
