package analyze

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/igolaizola/musicgen/pkg/music"
	"github.com/igolaizola/musicgen/pkg/wav"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	samples := make([]float32, 8000)
	for i := range samples {
		samples[i] = 0.5
	}
	data, err := wav.Encode(&music.Audio{Samples: [][]float32{samples}, SampleRate: 4000})
	if err != nil {
		t.Fatalf("wav.Encode() err = %v; want nil", err)
	}
	input := filepath.Join(dir, "song.wav")
	if err := os.WriteFile(input, data, 0644); err != nil {
		t.Fatalf("WriteFile() err = %v; want nil", err)
	}

	var buf bytes.Buffer
	cfg := &Config{Input: input, Output: filepath.Join(dir, "out")}
	if err := run(cfg, &buf); err != nil {
		t.Fatalf("run() err = %v; want nil", err)
	}
	if !strings.Contains(buf.String(), "Duration: 2s") {
		t.Fatalf("output = %q; want duration 2s", buf.String())
	}
	for _, f := range []string{"song-rms.jpg", "song-wave.jpg"} {
		if _, err := os.Stat(filepath.Join(cfg.Output, f)); err != nil {
			t.Fatalf("%s not written: %v", f, err)
		}
	}

	cfg.Input = filepath.Join(dir, "song.flac")
	if err := run(cfg, &buf); err == nil {
		t.Fatalf("run(flac) err = nil; want error")
	}
}
