package mock

import (
	"context"
	"testing"
)

func TestInfer(t *testing.T) {
	e, err := New("")
	if err != nil {
		t.Fatal(err)
	}
	audio, err := e.Infer(context.Background(), "Jazz music with a late night mood", 250)
	if err != nil {
		t.Fatalf("Infer() err = %v; want nil", err)
	}
	if audio.SampleRate != 32000 {
		t.Fatalf("SampleRate = %d; want 32000", audio.SampleRate)
	}
	if audio.Channels() != 2 || audio.Frames() != 320000 {
		t.Fatalf("shape = %dx%d; want 2x320000", audio.Channels(), audio.Frames())
	}
	if err := audio.Validate(); err != nil {
		t.Fatalf("Validate() err = %v; want nil", err)
	}
}

func TestNew(t *testing.T) {
	e, err := New("16000")
	if err != nil {
		t.Fatalf("New() err = %v; want nil", err)
	}
	if e.sampleRate != 16000 {
		t.Fatalf("sampleRate = %d; want 16000", e.sampleRate)
	}
	for _, conn := range []string{"abc", "0", "-1"} {
		if _, err := New(conn); err == nil {
			t.Fatalf("New(%q) err = nil; want error", conn)
		}
	}
}
