package wav

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWriterHeaderLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w, err := NewWriter(f, 48000, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write([]int16{1, -1, 256}); err != nil {
		t.Fatal(err)
	}
	if err := w.Write([]int16{-32768}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != HeaderSize+8 {
		t.Fatalf("file is %d bytes, want %d", len(data), HeaderSize+8)
	}

	type field struct {
		Name  string
		Value any
	}
	le := binary.LittleEndian
	got := []field{
		{"riff", string(data[0:4])},
		{"riffSize", le.Uint32(data[4:8])},
		{"wave", string(data[8:12])},
		{"fmt", string(data[12:16])},
		{"fmtSize", le.Uint32(data[16:20])},
		{"format", le.Uint16(data[20:22])},
		{"channels", le.Uint16(data[22:24])},
		{"sampleRate", le.Uint32(data[24:28])},
		{"byteRate", le.Uint32(data[28:32])},
		{"blockAlign", le.Uint16(data[32:34])},
		{"bitsPerSample", le.Uint16(data[34:36])},
		{"data", string(data[36:40])},
		{"dataSize", le.Uint32(data[40:44])},
	}
	want := []field{
		{"riff", "RIFF"},
		{"riffSize", uint32(44)},
		{"wave", "WAVE"},
		{"fmt", "fmt "},
		{"fmtSize", uint32(16)},
		{"format", uint16(1)},
		{"channels", uint16(2)},
		{"sampleRate", uint32(48000)},
		{"byteRate", uint32(192000)},
		{"blockAlign", uint16(4)},
		{"bitsPerSample", uint16(16)},
		{"data", "data"},
		{"dataSize", uint32(8)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}

	wantPCM := []byte{0x01, 0x00, 0xFF, 0xFF, 0x00, 0x01, 0x00, 0x80}
	if diff := cmp.Diff(wantPCM, data[HeaderSize:]); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}
}

func TestWriterEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w, err := NewWriter(f, 44100, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != HeaderSize {
		t.Fatalf("file is %d bytes, want %d", len(data), HeaderSize)
	}
	if size := binary.LittleEndian.Uint32(data[40:44]); size != 0 {
		t.Errorf("data size %d, want 0", size)
	}
	if rate := binary.LittleEndian.Uint32(data[28:32]); rate != 88200 {
		t.Errorf("byte rate %d, want 88200", rate)
	}
}

func TestNewWriterRejectsFormat(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "bad.wav"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	for _, tc := range []struct{ rate, channels int }{{48000, 0}, {0, 1}, {-1, 2}} {
		if _, err := NewWriter(f, tc.rate, tc.channels); err == nil {
			t.Errorf("NewWriter(%d, %d) accepted", tc.rate, tc.channels)
		}
	}
}
