package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mycrl/aquarana"
	"github.com/mycrl/aquarana/internal/audio"
	"github.com/mycrl/aquarana/internal/wav"
)

// pcmSink is where decoded packets go.
type pcmSink interface {
	Write(samples []int16) error
}

// pump decodes every packet of s into sink and returns the number of
// samples per channel written. It stops early when the command's context
// is cancelled.
func pump(c *cli.Context, s *aquarana.StreamDecoder, sink pcmSink) (int, error) {
	channels := s.Channels()
	total := 0
	for {
		if err := c.Context.Err(); err != nil {
			return total, err
		}
		pcm, err := s.Next()
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		if err := sink.Write(pcm); err != nil {
			return total, err
		}
		total += len(pcm) / channels
	}
}

func duration(samples int) time.Duration {
	return time.Duration(samples) * time.Second / aquarana.SampleRate
}

func (r *runner) decode(c *cli.Context) error {
	in, err := inputPath(c)
	if err != nil {
		return err
	}
	out := c.String("out")
	if out == "" {
		out = strings.TrimSuffix(in, filepath.Ext(in)) + ".wav"
	}

	s, closeIn, err := r.openStream(c, in)
	if err != nil {
		return err
	}
	defer closeIn()

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := wav.NewWriter(f, aquarana.SampleRate, s.Channels())
	if err != nil {
		return err
	}
	samples, err := pump(c, s, w)
	if err != nil {
		return fmt.Errorf("decode %s: %w", in, err)
	}
	if err := w.Close(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	r.log.Info("decoded",
		slog.String("in", in),
		slog.String("out", out),
		slog.Int("channels", s.Channels()),
		slog.Int("samples", samples),
		slog.Duration("duration", duration(samples)))
	return nil
}

func (r *runner) play(c *cli.Context) error {
	in, err := inputPath(c)
	if err != nil {
		return err
	}
	s, closeIn, err := r.openStream(c, in)
	if err != nil {
		return err
	}
	defer closeIn()

	p, err := audio.NewPlayer(s.Channels(), r.log)
	if err != nil {
		return err
	}
	defer p.Close()

	r.log.Info("playing", slog.String("in", in), slog.String("vendor", s.Tags().Vendor))
	samples, err := pump(c, s, p)
	if errors.Is(err, context.Canceled) {
		r.log.Info("playback interrupted", slog.Duration("position", duration(samples)))
		return nil
	}
	if err != nil {
		return fmt.Errorf("play %s: %w", in, err)
	}
	if err := p.Drain(c.Context); err != nil {
		return err
	}
	r.log.Info("played", slog.Duration("duration", duration(samples)))
	return nil
}
