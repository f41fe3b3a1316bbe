package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestUploadDownload(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "store"), false)
	if err != nil {
		t.Fatalf("New() err = %v; want nil", err)
	}
	src := filepath.Join(dir, "in.wav")
	if err := os.WriteFile(src, []byte("RIFF"), 0644); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := s.Upload(ctx, src, "01.wav"); err != nil {
		t.Fatalf("Upload() err = %v; want nil", err)
	}
	out := filepath.Join(dir, "out.wav")
	if err := s.Download(ctx, out, "01.wav"); err != nil {
		t.Fatalf("Download() err = %v; want nil", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "RIFF" {
		t.Fatalf("Download() content = %q; want %q", b, "RIFF")
	}
	if err := s.Download(ctx, out, "missing.wav"); err == nil {
		t.Fatalf("Download() err = nil; want error")
	}
}
