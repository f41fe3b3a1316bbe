package history

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/igolaizola/musicgen/pkg/storage"
)

func seed(t *testing.T) *Config {
	t.Helper()
	ctx := context.Background()
	cfg := &Config{
		DBType: "sqlite",
		DBConn: filepath.Join(t.TempDir(), "musicgen.db"),
	}
	store, err := storage.New(cfg.DBType, cfg.DBConn, false)
	if err != nil {
		t.Fatalf("storage.New() err = %v; want nil", err)
	}
	defer store.Close()
	if err := store.Start(ctx); err != nil {
		t.Fatalf("Start() err = %v; want nil", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() err = %v; want nil", err)
	}
	for _, g := range []*storage.Generation{
		{ID: "01A", Style: "Jazz", Description: "late night mood", Prompt: "Jazz music with a late night mood", Duration: 60, MaxLength: 1500},
		{ID: "01B", Style: "Lo-fi", Description: "rainy day", Prompt: "Lo-fi music with a rainy day", Duration: 30, MaxLength: 750},
		{ID: "01C", Style: "Jazz", Description: "fail", Prompt: "Jazz music with a fail", Duration: 10, MaxLength: 250, Failed: true, Error: "boom"},
	} {
		if err := store.SetGeneration(ctx, g); err != nil {
			t.Fatalf("SetGeneration() err = %v; want nil", err)
		}
	}
	return cfg
}

func TestCSV(t *testing.T) {
	cfg := seed(t)
	var buf bytes.Buffer
	if err := run(context.Background(), cfg, &buf); err != nil {
		t.Fatalf("run() err = %v; want nil", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines; want 4:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "id,created_at,style,description,prompt") {
		t.Fatalf("header = %q", lines[0])
	}
}

func TestFilters(t *testing.T) {
	cfg := seed(t)
	cfg.Style = "lofi"
	var buf bytes.Buffer
	if err := run(context.Background(), cfg, &buf); err != nil {
		t.Fatalf("run() err = %v; want nil", err)
	}
	got := strings.TrimSpace(buf.String())
	if n := strings.Count(got, "\n"); n != 1 || !strings.Contains(got, "Lo-fi music with a rainy day") {
		t.Fatalf("run(style=lofi) = %q", got)
	}

	cfg.Style = ""
	cfg.Failed = true
	buf.Reset()
	if err := run(context.Background(), cfg, &buf); err != nil {
		t.Fatalf("run() err = %v; want nil", err)
	}
	got = strings.TrimSpace(buf.String())
	if n := strings.Count(got, "\n"); n != 1 || !strings.Contains(got, "boom") {
		t.Fatalf("run(failed) = %q", got)
	}
}

func TestJSONFile(t *testing.T) {
	cfg := seed(t)
	cfg.Output = filepath.Join(t.TempDir(), "history.json")
	if err := Run(context.Background(), cfg); err != nil {
		t.Fatalf("Run() err = %v; want nil", err)
	}
	b, err := os.ReadFile(cfg.Output)
	if err != nil {
		t.Fatalf("ReadFile() err = %v; want nil", err)
	}
	var es []*entry
	if err := json.Unmarshal(b, &es); err != nil {
		t.Fatalf("json.Unmarshal() err = %v; want nil", err)
	}
	if len(es) != 3 {
		t.Fatalf("got %d entries; want 3", len(es))
	}

	cfg.Output = "history.xml"
	if err := Run(context.Background(), cfg); err == nil {
		t.Fatalf("Run(xml) err = nil; want error")
	}
}
