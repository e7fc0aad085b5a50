package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/mycrl/aquarana"
	"github.com/mycrl/aquarana/container/ogg"
)

func (r *runner) inspect(c *cli.Context) error {
	in, err := inputPath(c)
	if err != nil {
		return err
	}
	f, err := os.Open(in)
	if err != nil {
		return err
	}
	defer f.Close()
	return inspectStream(c.App.Writer, f)
}

// packetStats totals the packets of a stream by mode.
type packetStats struct {
	packets int
	invalid int
	samples int
	bytes   int
	modes   map[aquarana.Mode]int
}

// inspectStream prints the OpusHead, the OpusTags and one line per packet.
func inspectStream(w io.Writer, src io.Reader) error {
	or, err := ogg.NewReader(src)
	if err != nil {
		return err
	}
	printHead(w, or.Header)
	printTags(w, or.Tags)

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "packet\tbytes\tconfig\tmode\tbandwidth\tframe\tframes\tchannels\tpadding")
	stats := packetStats{modes: make(map[aquarana.Mode]int)}
	for {
		packet, err := or.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, ogg.ErrUnexpectedEOS) {
			fmt.Fprintf(tw, "%d\ttruncated stream\n", stats.packets)
			break
		}
		if err != nil {
			tw.Flush()
			return err
		}
		printPacket(tw, stats.packets, packet, &stats)
		stats.packets++
		stats.bytes += len(packet)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d packets, %d bytes, %.3f s", stats.packets, stats.bytes, float64(stats.samples)/aquarana.SampleRate)
	for _, mode := range []aquarana.Mode{aquarana.ModeCELT, aquarana.ModeSILK, aquarana.ModeHybrid} {
		if n := stats.modes[mode]; n > 0 {
			fmt.Fprintf(w, ", %d %s", n, mode)
		}
	}
	if stats.invalid > 0 {
		fmt.Fprintf(w, ", %d invalid", stats.invalid)
	}
	fmt.Fprintln(w)
	return nil
}

func printHead(w io.Writer, h *ogg.OpusHead) {
	fmt.Fprintf(w, "OpusHead version %d\n", h.Version)
	fmt.Fprintf(w, "  channels:       %d\n", h.Channels)
	fmt.Fprintf(w, "  pre-skip:       %d\n", h.PreSkip)
	fmt.Fprintf(w, "  input rate:     %d Hz\n", h.SampleRate)
	fmt.Fprintf(w, "  output gain:    %.2f dB\n", float64(h.OutputGain)/256)
	fmt.Fprintf(w, "  mapping family: %d\n", h.MappingFamily)
	if h.MappingFamily != ogg.MappingFamilyRTP {
		fmt.Fprintf(w, "  streams:        %d (%d coupled)\n", h.StreamCount, h.CoupledCount)
		fmt.Fprintf(w, "  mapping:        %v\n", h.ChannelMapping)
	}
}

func printTags(w io.Writer, t *ogg.OpusTags) {
	fmt.Fprintf(w, "OpusTags\n  vendor: %s\n", t.Vendor)
	for _, c := range t.Comments {
		fmt.Fprintf(w, "  %s\n", c)
	}
	fmt.Fprintln(w)
}

func printPacket(w io.Writer, index int, packet []byte, stats *packetStats) {
	info, err := aquarana.ParsePacket(packet)
	if err != nil {
		stats.invalid++
		fmt.Fprintf(w, "%d\t%d\tinvalid: %v\n", index, len(packet), err)
		return
	}
	toc := info.TOC
	stats.modes[toc.Mode]++
	stats.samples += info.Duration()
	fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%s\t%.1fms\t%d\t%d\t%d\n",
		index, len(packet), toc.Config, toc.Mode, toc.Bandwidth,
		float64(toc.FrameSize)/48, info.FrameCount, toc.Channels(), info.Padding)
}
