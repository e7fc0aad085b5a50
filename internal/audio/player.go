// Package audio plays decoded PCM on the default output device.
package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// SampleRate is the only rate the decoder produces.
const SampleRate = 48000

// pollInterval is how often Drain checks whether playback has finished.
const pollInterval = 10 * time.Millisecond

// sink is the part of *oto.Player the Player drives.
type sink interface {
	Play()
	IsPlaying() bool
	Close() error
}

// oto allows a single context per process.
var (
	otoMu       sync.Mutex
	otoCtx      *oto.Context
	otoChannels int
)

func otoContext(channels int) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()
	if otoCtx != nil {
		if channels != otoChannels {
			return nil, fmt.Errorf("audio: output already open with %d channels", otoChannels)
		}
		return otoCtx, nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("audio: create oto context: %w", err)
	}
	<-ready
	otoCtx, otoChannels = ctx, channels
	return ctx, nil
}

// Player streams interleaved int16 PCM at 48 kHz to the output device.
// Write blocks until the device has taken the samples.
type Player struct {
	sink     sink
	pw       *io.PipeWriter
	channels int
	buf      []byte
	log      *slog.Logger
}

// NewPlayer opens the default output device for mono or stereo playback.
func NewPlayer(channels int, logger *slog.Logger) (*Player, error) {
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("audio: invalid channel count %d", channels)
	}
	ctx, err := otoContext(channels)
	if err != nil {
		return nil, err
	}
	p := newPlayer(func(r io.Reader) sink { return ctx.NewPlayer(r) }, channels, logger)
	p.log.Debug("audio output open", slog.Int("sampleRate", SampleRate), slog.Int("channels", channels))
	return p, nil
}

func newPlayer(open func(io.Reader) sink, channels int, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	pr, pw := io.Pipe()
	p := &Player{
		sink:     open(pr),
		pw:       pw,
		channels: channels,
		log:      logger,
	}
	p.sink.Play()
	return p
}

// Channels returns the channel count the output was opened with.
func (p *Player) Channels() int {
	return p.channels
}

// Write queues interleaved samples for playback.
func (p *Player) Write(samples []int16) error {
	if len(samples) == 0 {
		return nil
	}
	if cap(p.buf) < 2*len(samples) {
		p.buf = make([]byte, 2*len(samples))
	}
	buf := p.buf[:2*len(samples)]
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(s))
	}
	if _, err := p.pw.Write(buf); err != nil {
		return fmt.Errorf("audio: write: %w", err)
	}
	return nil
}

// Drain ends the stream and waits until the queued audio has played or
// ctx is done.
func (p *Player) Drain(ctx context.Context) error {
	p.pw.Close()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for p.sink.IsPlaying() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Close stops playback and releases the player. Audio not yet played is
// dropped; call Drain first to hear it.
func (p *Player) Close() error {
	p.pw.Close()
	if err := p.sink.Close(); err != nil {
		return fmt.Errorf("audio: close player: %w", err)
	}
	p.log.Debug("audio output closed")
	return nil
}
