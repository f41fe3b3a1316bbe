package music

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	ErrValidation = errors.New("validation error")
	ErrModelLoad  = errors.New("model load error")
	ErrInference  = errors.New("inference error")
)

const (
	MinDuration     = 10
	MaxDuration     = 300
	DefaultDuration = 60

	// TokensPerSecond is an empirical ratio between seconds of audio and
	// model tokens, so the resulting duration is only approximate.
	TokensPerSecond = 25

	DefaultModel = "facebook/musicgen-stereo-small"
	Filename     = "generated_music.wav"
	MIMEType     = "audio/wav"
)

type Style string

const (
	Rap     Style = "Rap"
	Rock    Style = "Rock"
	Jazz    Style = "Jazz"
	Electro Style = "Electro"
	Classic Style = "Classic"
	Blues   Style = "Blues"
	Lofi    Style = "Lo-fi"
	Mumble  Style = "Mumble"
	Reggae  Style = "Reggae"
)

var styles = []Style{Rap, Rock, Jazz, Electro, Classic, Blues, Lofi, Mumble, Reggae}

// Styles returns the supported styles in display order.
func Styles() []Style {
	return append([]Style(nil), styles...)
}

func ParseStyle(s string) (Style, error) {
	v := strings.TrimSpace(s)
	if strings.EqualFold(v, "reggie") {
		return Reggae, nil
	}
	for _, st := range styles {
		if strings.EqualFold(v, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("music: %w: unknown style %q", ErrValidation, s)
}

func (s Style) Valid() bool {
	for _, st := range styles {
		if s == st {
			return true
		}
	}
	return false
}

// Request contains the user input for a generation.
type Request struct {
	Style       Style   `json:"style"`
	Description string  `json:"description"`
	Duration    float64 `json:"duration"`
}

func (r Request) Validate() error {
	if !r.Style.Valid() {
		return fmt.Errorf("music: %w: unknown style %q", ErrValidation, r.Style)
	}
	if math.IsNaN(r.Duration) || r.Duration < MinDuration || r.Duration > MaxDuration {
		return fmt.Errorf("music: %w: duration %v out of range [%d, %d]", ErrValidation, r.Duration, MinDuration, MaxDuration)
	}
	return nil
}

func (r Request) Prompt() string {
	return Prompt(r.Style, r.Description)
}

func (r Request) Length() int {
	return Length(r.Duration)
}

func (r Request) String() string {
	return fmt.Sprintf("{%s, d: %s, s: %v}", r.Style, r.Description, r.Duration)
}

// Prompt builds the text passed verbatim to the model.
func Prompt(style Style, description string) string {
	return fmt.Sprintf("%s music with a %s", style, description)
}

// Length converts a duration in seconds to the model generation length.
func Length(duration float64) int {
	return int(math.Floor(duration * TokensPerSecond))
}

// Audio is a channel-major waveform.
type Audio struct {
	Samples    [][]float32
	SampleRate int
}

func (a *Audio) Channels() int {
	return len(a.Samples)
}

func (a *Audio) Frames() int {
	if len(a.Samples) == 0 {
		return 0
	}
	return len(a.Samples[0])
}

func (a *Audio) Duration() time.Duration {
	if a.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(a.Frames()) / float64(a.SampleRate) * float64(time.Second))
}

// Validate checks the waveform is non-empty, rectangular and has a sample rate.
func (a *Audio) Validate() error {
	if a == nil {
		return errors.New("music: nil audio")
	}
	if a.SampleRate <= 0 {
		return fmt.Errorf("music: invalid sample rate %d", a.SampleRate)
	}
	if len(a.Samples) == 0 {
		return errors.New("music: audio has no channels")
	}
	n := len(a.Samples[0])
	if n == 0 {
		return errors.New("music: audio has no samples")
	}
	for i, ch := range a.Samples {
		if len(ch) != n {
			return fmt.Errorf("music: channel %d has %d samples, want %d", i, len(ch), n)
		}
	}
	return nil
}
