package generate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/igolaizola/musicgen/pkg/cmd/migrate"
	"github.com/igolaizola/musicgen/pkg/model"
	"github.com/igolaizola/musicgen/pkg/music"
	"github.com/igolaizola/musicgen/pkg/wav"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		DBType:      "sqlite",
		DBConn:      filepath.Join(dir, "musicgen.db"),
		FSType:      "local",
		FSConn:      filepath.Join(dir, "files"),
		Model:       model.Config{Type: "mock", Conn: "8000"},
		Style:       "jazz",
		Description: "late night mood",
		Duration:    10,
		Output:      filepath.Join(dir, music.Filename),
		Wave:        filepath.Join(dir, "wave.jpg"),
	}
	if err := migrate.Run(context.Background(), &migrate.Config{DBType: cfg.DBType, DBConn: cfg.DBConn}); err != nil {
		t.Fatalf("migrate.Run() err = %v; want nil", err)
	}
	if err := Run(context.Background(), cfg); err != nil {
		t.Fatalf("Run() err = %v; want nil", err)
	}

	b, err := os.ReadFile(cfg.Output)
	if err != nil {
		t.Fatalf("ReadFile() err = %v; want nil", err)
	}
	audio, err := wav.Decode(b)
	if err != nil {
		t.Fatalf("wav.Decode() err = %v; want nil", err)
	}
	if audio.SampleRate != 8000 || audio.Channels() != 2 {
		t.Fatalf("format = %d Hz %d ch; want 8000 Hz 2 ch", audio.SampleRate, audio.Channels())
	}
	if audio.Frames() != 80000 {
		t.Fatalf("Frames() = %d; want 80000", audio.Frames())
	}
	if _, err := os.Stat(cfg.Wave); err != nil {
		t.Fatalf("wave plot not written: %v", err)
	}
	files, err := os.ReadDir(cfg.FSConn)
	if err != nil {
		t.Fatalf("ReadDir() err = %v; want nil", err)
	}
	if len(files) != 2 {
		t.Fatalf("stored %d files; want 2", len(files))
	}
}

func TestRunValidation(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		style    string
		duration float64
	}{
		{"Polka", 60},
		{"Rock", 5},
		{"Rock", 301},
	}
	for _, tt := range tests {
		cfg := &Config{
			Model:    model.Config{Type: "mock"},
			Style:    tt.style,
			Duration: tt.duration,
			Output:   filepath.Join(dir, music.Filename),
		}
		err := Run(context.Background(), cfg)
		if !errors.Is(err, music.ErrValidation) {
			t.Fatalf("Run(%s, %v) err = %v; want %v", tt.style, tt.duration, err, music.ErrValidation)
		}
		if _, err := os.Stat(cfg.Output); !os.IsNotExist(err) {
			t.Fatalf("Run(%s, %v) wrote output", tt.style, tt.duration)
		}
	}
}
