package audio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// fakeSink consumes the pipe like an oto player, recording what it reads.
type fakeSink struct {
	r      io.Reader
	got    bytes.Buffer
	done   chan struct{}
	closed bool
}

func newFakeSink(r io.Reader) *fakeSink {
	return &fakeSink{r: r, done: make(chan struct{})}
}

func (f *fakeSink) Play() {
	go func() {
		io.Copy(&f.got, f.r)
		close(f.done)
	}()
}

func (f *fakeSink) IsPlaying() bool {
	select {
	case <-f.done:
		return false
	default:
		return true
	}
}

func (f *fakeSink) Close() error {
	f.closed = true
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPlayerWritesLittleEndianPCM(t *testing.T) {
	var fake *fakeSink
	p := newPlayer(func(r io.Reader) sink {
		fake = newFakeSink(r)
		return fake
	}, 2, quietLogger())

	if err := p.Write([]int16{1, -2}); err != nil {
		t.Fatal(err)
	}
	if err := p.Write(nil); err != nil {
		t.Fatal(err)
	}
	if err := p.Write([]int16{0x1234, -32768}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}

	want := []byte{0x01, 0x00, 0xFE, 0xFF, 0x34, 0x12, 0x00, 0x80}
	if diff := cmp.Diff(want, fake.got.Bytes()); diff != "" {
		t.Errorf("played bytes mismatch (-want +got):\n%s", diff)
	}
	if !fake.closed {
		t.Error("Close did not close the player")
	}
	if err := p.Write([]int16{1}); err == nil {
		t.Error("Write after Close succeeded")
	}
}

// stuckSink never finishes playing.
type stuckSink struct{ r io.Reader }

func (s stuckSink) Play()           { go io.Copy(io.Discard, s.r) }
func (s stuckSink) IsPlaying() bool { return true }
func (s stuckSink) Close() error    { return nil }

func TestPlayerDrainHonorsContext(t *testing.T) {
	p := newPlayer(func(r io.Reader) sink { return stuckSink{r} }, 1, quietLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := p.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Drain error = %v, want context.DeadlineExceeded", err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewPlayerRejectsChannels(t *testing.T) {
	for _, ch := range []int{0, 3} {
		if _, err := NewPlayer(ch, quietLogger()); err == nil {
			t.Errorf("NewPlayer(%d) accepted", ch)
		}
	}
}
