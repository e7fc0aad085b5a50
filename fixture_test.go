package aquarana

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Each fixture in testdata is a raw Opus packet (.opus) and the int16
// little-endian PCM a fresh libopus decoder produces for it (.pcm).
// TestWriteFixture (libopus build tag) adds the tone fixture.
const (
	fixturePacket = "celt_mono_20ms_tone.opus"
	fixturePCM    = "celt_mono_20ms_tone.pcm"
)

// requiredFixtures must always be present.
var requiredFixtures = []string{
	"celt_mono_20ms_silence",
	"celt_stereo_10ms_silence",
}

func readPCM(t *testing.T, path string) []int16 {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	pcm := make([]int16, len(raw)/2)
	for i := range pcm {
		pcm[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	return pcm
}

func TestDecodeFixtures(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "*.opus"))
	if err != nil {
		t.Fatal(err)
	}
	found := make(map[string]bool)
	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".opus")
		found[name] = true
		t.Run(name, func(t *testing.T) {
			packet, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			want := readPCM(t, strings.TrimSuffix(path, ".opus")+".pcm")
			if len(packet) == 0 {
				t.Fatal("empty packet")
			}

			channels := ParseTOC(packet[0]).Channels()
			d, err := NewDecoder(channels)
			if err != nil {
				t.Fatal(err)
			}
			got := make([]int16, 5760*channels)
			n, err := d.Decode(packet, got)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if n*channels != len(want) {
				t.Fatalf("decoded %d samples, fixture has %d", n*channels, len(want))
			}
			// libopus runs in float32, this decoder in float64; allow one LSB.
			for i := range want {
				if diff := int(got[i]) - int(want[i]); diff < -1 || diff > 1 {
					t.Fatalf("sample %d: got %d, libopus %d", i, got[i], want[i])
				}
			}
		})
	}

	for _, name := range requiredFixtures {
		if !found[name] {
			t.Errorf("fixture testdata/%s.opus is missing", name)
		}
	}
}
