package wav

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/igolaizola/musicgen/pkg/music"
)

func TestEncode(t *testing.T) {
	a := &music.Audio{
		Samples: [][]float32{
			{0, 0.5, -0.5, 1, 2},
			{0, -0.25, 0.25, -1, -2},
		},
		SampleRate: 32000,
	}
	b, err := Encode(a)
	if err != nil {
		t.Fatalf("Encode() err = %v; want nil", err)
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		t.Fatalf("Encode() header = %q; want RIFF/WAVE", b[:12])
	}
	if got := binary.LittleEndian.Uint32(b[4:8]); int(got) != len(b)-8 {
		t.Fatalf("RIFF size = %d; want %d", got, len(b)-8)
	}

	got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode() err = %v; want nil", err)
	}
	if got.SampleRate != 32000 {
		t.Fatalf("SampleRate = %d; want 32000", got.SampleRate)
	}
	if got.Channels() != 2 || got.Frames() != 5 {
		t.Fatalf("shape = %dx%d; want 2x5", got.Channels(), got.Frames())
	}
	want := [][]float32{
		{0, 0.5, -0.5, 1, 1},
		{0, -0.25, 0.25, -1, -1},
	}
	for c := range want {
		for i := range want[c] {
			if math.Abs(float64(got.Samples[c][i]-want[c][i])) > 0.001 {
				t.Fatalf("Samples[%d][%d] = %v; want %v", c, i, got.Samples[c][i], want[c][i])
			}
		}
	}
}

func TestEncodeInvalid(t *testing.T) {
	if _, err := Encode(&music.Audio{SampleRate: 32000}); err == nil {
		t.Fatalf("Encode() err = nil; want error")
	}
}

func TestDecodeInvalid(t *testing.T) {
	if _, err := Decode([]byte("not a wav file at all")); err == nil {
		t.Fatalf("Decode() err = nil; want error")
	}
}

// rawWAV builds a WAV file by hand with the given format tag and payload.
func rawWAV(format, channels, rate, bits int, data []byte) []byte {
	block := channels * bits / 8
	b := make([]byte, 0, 44+len(data))
	b = append(b, "RIFF"...)
	b = binary.LittleEndian.AppendUint32(b, uint32(36+len(data)))
	b = append(b, "WAVE"...)
	b = append(b, "fmt "...)
	b = binary.LittleEndian.AppendUint32(b, 16)
	b = binary.LittleEndian.AppendUint16(b, uint16(format))
	b = binary.LittleEndian.AppendUint16(b, uint16(channels))
	b = binary.LittleEndian.AppendUint32(b, uint32(rate))
	b = binary.LittleEndian.AppendUint32(b, uint32(rate*block))
	b = binary.LittleEndian.AppendUint16(b, uint16(block))
	b = binary.LittleEndian.AppendUint16(b, uint16(bits))
	b = append(b, "data"...)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(data)))
	return append(b, data...)
}

func float32Data(vs ...float32) []byte {
	var b []byte
	for _, v := range vs {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
	}
	return b
}

func TestDecodeFormats(t *testing.T) {
	tests := []struct {
		name string
		wav  []byte
		want [][]float32
	}{
		{
			name: "float32 stereo",
			wav:  rawWAV(3, 2, 32000, 32, float32Data(0.5, -0.5, 0.25, -0.25)),
			want: [][]float32{{0.5, 0.25}, {-0.5, -0.25}},
		},
		{
			name: "float32 mono",
			wav:  rawWAV(3, 1, 32000, 32, float32Data(1, -1, 0.125)),
			want: [][]float32{{1, -1, 0.125}},
		},
		{
			name: "8-bit unsigned",
			wav:  rawWAV(1, 1, 32000, 8, []byte{0x80, 0xC0, 0x40, 0x00}),
			want: [][]float32{{0, 0.5, -0.5, -1}},
		},
		{
			name: "16-bit",
			wav:  rawWAV(1, 1, 32000, 16, []byte{0x00, 0x40, 0x00, 0xC0}),
			want: [][]float32{{0.5, -0.5}},
		},
	}
	for _, tt := range tests {
		got, err := Decode(tt.wav)
		if err != nil {
			t.Fatalf("%s: Decode() err = %v; want nil", tt.name, err)
		}
		if got.SampleRate != 32000 {
			t.Fatalf("%s: SampleRate = %d; want 32000", tt.name, got.SampleRate)
		}
		if got.Channels() != len(tt.want) || got.Frames() != len(tt.want[0]) {
			t.Fatalf("%s: shape = %dx%d; want %dx%d", tt.name, got.Channels(), got.Frames(), len(tt.want), len(tt.want[0]))
		}
		for c := range tt.want {
			for i := range tt.want[c] {
				if math.Abs(float64(got.Samples[c][i]-tt.want[c][i])) > 1e-6 {
					t.Fatalf("%s: Samples[%d][%d] = %v; want %v", tt.name, c, i, got.Samples[c][i], tt.want[c][i])
				}
			}
		}
	}
}

func TestDecodeUnsupportedFormat(t *testing.T) {
	tests := []struct {
		format int
		bits   int
	}{
		{2, 16}, // ADPCM
		{3, 16}, // float needs 32 bits
		{6, 16}, // A-law
	}
	for _, tt := range tests {
		b := rawWAV(tt.format, 1, 32000, tt.bits, make([]byte, 8))
		if _, err := Decode(b); err == nil {
			t.Fatalf("Decode(format %d, %d bits) err = nil; want error", tt.format, tt.bits)
		}
	}
}

func TestWriteSeeker(t *testing.T) {
	w := &writeSeeker{}
	_, _ = w.Write([]byte("abcdef"))
	if _, err := w.Seek(2, 0); err != nil {
		t.Fatal(err)
	}
	_, _ = w.Write([]byte("XY"))
	if string(w.buf) != "abXYef" {
		t.Fatalf("buf = %q; want %q", w.buf, "abXYef")
	}
	if _, err := w.Seek(-1, 0); err == nil {
		t.Fatalf("Seek(-1) err = nil; want error")
	}
}
