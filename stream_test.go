// stream_test.go contains tests for Ogg stream decoding and the PCM io.Reader.

package aquarana

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mycrl/aquarana/container/ogg"
)

// oggStream wraps packets of 960 samples each in an Ogg Opus stream.
func oggStream(t *testing.T, head *ogg.OpusHead, packets [][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := ogg.NewWriter(&buf, 7, head, &ogg.OpusTags{Vendor: "test"})
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range packets {
		if err := w.WritePacket(p, 960); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// collect drains s and returns the PCM of every packet.
func collect(t *testing.T, s *StreamDecoder) [][]int16 {
	t.Helper()
	var out [][]int16
	for {
		pcm, err := s.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, append([]int16(nil), pcm...))
	}
}

func randomPackets(seed int64, toc byte, n int) [][]byte {
	rng := rand.New(rand.NewSource(seed))
	packets := make([][]byte, n)
	for i := range packets {
		packets[i] = append([]byte{toc}, randomFrame(rng, 60+rng.Intn(100))...)
	}
	return packets
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStreamDecoderPreSkip(t *testing.T) {
	silence := append([]byte{0xFC}, silenceFrame(8)...)
	packets := [][]byte{silence, silence, silence}

	tests := []struct {
		name    string
		preSkip uint16
		opts    []StreamOption
		lengths []int
	}{
		{"default pre-skip", 312, nil, []int{648, 960, 960}},
		{"pre-skip beyond a packet", 1000, nil, []int{0, 920, 960}},
		{"pre-skip disabled", 312, []StreamOption{WithPreSkip(false)}, []int{960, 960, 960}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			head := ogg.DefaultOpusHead(48000, 2)
			head.PreSkip = tc.preSkip
			s, err := NewStreamDecoder(bytes.NewReader(oggStream(t, head, packets)), tc.opts...)
			if err != nil {
				t.Fatal(err)
			}
			if s.Channels() != 2 || s.Tags().Vendor != "test" || s.Head().PreSkip != tc.preSkip {
				t.Fatalf("headers not exposed: channels %d tags %+v", s.Channels(), s.Tags())
			}
			var lengths []int
			for _, pcm := range collect(t, s) {
				lengths = append(lengths, len(pcm)/2)
				for _, v := range pcm {
					if v != 0 {
						t.Fatalf("silence decoded to %d", v)
					}
				}
			}
			if diff := cmp.Diff(tc.lengths, lengths); diff != "" {
				t.Fatalf("packet lengths mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStreamDecoderReplacesBadPacketsWithSilence(t *testing.T) {
	good := randomPackets(2, 0xF8, 2)
	packets := [][]byte{
		good[0],
		append([]byte{0x08}, 1, 2, 3), // SILK 20 ms
		{0xF1, 1, 2, 3},               // code 1 with an odd length, 10 ms TOC
		append([]byte{0xE3, 2}, 1, 2), // two 2.5 ms frames of one byte
		good[1],
	}

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	head := ogg.DefaultOpusHead(48000, 1)
	head.PreSkip = 0
	s, err := NewStreamDecoder(bytes.NewReader(oggStream(t, head, packets)), WithLogger(logger))
	if err != nil {
		t.Fatal(err)
	}
	got := collect(t, s)

	var lengths []int
	for _, pcm := range got {
		lengths = append(lengths, len(pcm))
	}
	// The malformed packet takes the duration of the last decoded one.
	if diff := cmp.Diff([]int{960, 960, 960, 240, 960}, lengths); diff != "" {
		t.Fatalf("packet lengths mismatch (-want +got):\n%s", diff)
	}
	for i := 1; i <= 3; i++ {
		if diff := cmp.Diff(make([]int16, len(got[i])), got[i]); diff != "" {
			t.Errorf("packet %d is not silence:\n%s", i, diff)
		}
	}

	// Decoding continues with the state left by the last good packet.
	ref, _ := NewDecoder(1)
	want := make([]int16, 960)
	for _, p := range good {
		if _, err := ref.Decode(p, want); err != nil {
			t.Fatal(err)
		}
	}
	if diff := cmp.Diff(want, got[4]); diff != "" {
		t.Errorf("packet after the damage differs:\n%s", diff)
	}

	out := logs.String()
	if n := strings.Count(out, "packet replaced by silence"); n != 3 {
		t.Errorf("logged %d replaced packets, want 3:\n%s", n, out)
	}
	for _, attr := range []string{"packet=1", "packet=2", "packet=3", "level=WARN"} {
		if !strings.Contains(out, attr) {
			t.Errorf("log output lacks %q:\n%s", attr, out)
		}
	}
}

func TestStreamDecoderOutputGain(t *testing.T) {
	tests := []struct {
		name  string
		gain  int16
		apply bool
	}{
		{"attenuated", -6 * 256, true},
		{"boosted into the soft clip", 24 * 256, true},
		{"gain ignored", -6 * 256, false},
	}
	packets := randomPackets(3, 0xF8, 5)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			head := ogg.DefaultOpusHead(48000, 1)
			head.PreSkip = 0
			head.OutputGain = tc.gain
			s, err := NewStreamDecoder(bytes.NewReader(oggStream(t, head, packets)),
				WithOutputGain(tc.apply), WithLogger(quietLogger()))
			if err != nil {
				t.Fatal(err)
			}
			got := collect(t, s)

			ref, _ := NewDecoder(1)
			if tc.apply {
				ref.SetGain(tc.gain)
			}
			var want [][]int16
			for _, p := range packets {
				pcm := make([]int16, 960)
				if _, err := ref.Decode(p, pcm); err != nil {
					t.Fatal(err)
				}
				want = append(want, pcm)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("stream output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStreamDecoderChannelMapping(t *testing.T) {
	packets := randomPackets(4, 0xF8, 3)

	mono, err := NewStreamDecoder(bytes.NewReader(oggStream(t, ogg.DefaultOpusHead(48000, 1), packets)))
	if err != nil {
		t.Fatal(err)
	}
	dup := &ogg.OpusHead{
		Version:        1,
		Channels:       2,
		PreSkip:        ogg.DefaultPreSkip,
		SampleRate:     48000,
		MappingFamily:  ogg.MappingFamilyVorbis,
		StreamCount:    1,
		ChannelMapping: []byte{0, 0},
	}
	stereo, err := NewStreamDecoder(bytes.NewReader(oggStream(t, dup, packets)))
	if err != nil {
		t.Fatal(err)
	}

	want := collect(t, mono)
	got := collect(t, stereo)
	if len(got) != len(want) {
		t.Fatalf("got %d packets, want %d", len(got), len(want))
	}
	for i := range want {
		if len(got[i]) != 2*len(want[i]) {
			t.Fatalf("packet %d: %d samples, want %d", i, len(got[i]), 2*len(want[i]))
		}
		for j, v := range want[i] {
			if got[i][2*j] != v || got[i][2*j+1] != v {
				t.Fatalf("packet %d sample %d: got %d/%d, want %d on both channels", i, j, got[i][2*j], got[i][2*j+1], v)
			}
		}
	}
}

func TestNewStreamDecoderRejectsMultistream(t *testing.T) {
	heads := []*ogg.OpusHead{
		{Version: 1, Channels: 2, MappingFamily: 1, StreamCount: 2, ChannelMapping: []byte{0, 1}},
		{Version: 1, Channels: 3, MappingFamily: 1, StreamCount: 2, CoupledCount: 1, ChannelMapping: []byte{0, 1, 2}},
	}
	for _, head := range heads {
		_, err := NewStreamDecoder(bytes.NewReader(oggStream(t, head, nil)))
		if !errors.Is(err, ErrUnsupportedStream) {
			t.Errorf("%d channels in %d streams: error = %v, want ErrUnsupportedStream", head.Channels, head.StreamCount, err)
		}
	}

	if _, err := NewStreamDecoder(strings.NewReader("not ogg")); err == nil {
		t.Errorf("NewStreamDecoder accepted garbage")
	}
}

func TestReaderProducesLittleEndianPCM(t *testing.T) {
	packets := randomPackets(6, 0xFC, 4)
	data := oggStream(t, ogg.DefaultOpusHead(48000, 2), packets)

	s, err := NewStreamDecoder(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	var want []int16
	for _, pcm := range collect(t, s) {
		want = append(want, pcm...)
	}

	s, err = NewStreamDecoder(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	raw, err := io.ReadAll(NewReader(s))
	if err != nil {
		t.Fatal(err)
	}
	got := make([]int16, len(raw)/2)
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Reader output differs from Next:\n%s", diff)
	}
	if len(got) != 2*(4*960-ogg.DefaultPreSkip) {
		t.Errorf("got %d samples, want %d", len(got), 2*(4*960-ogg.DefaultPreSkip))
	}
}
