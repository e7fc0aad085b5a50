// stream.go implements decoding of Ogg Opus streams and an io.Reader over the decoded PCM.

package aquarana

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mycrl/aquarana/container/ogg"
)

// StreamOption configures a StreamDecoder.
type StreamOption func(*streamConfig)

type streamConfig struct {
	logger      *slog.Logger
	applyGain   bool
	trimPreSkip bool
}

// WithLogger sets the logger used to report damaged packets.
// The default is slog.Default().
func WithLogger(l *slog.Logger) StreamOption {
	return func(c *streamConfig) { c.logger = l }
}

// WithOutputGain controls whether the OpusHead output gain is applied.
// It is applied by default.
func WithOutputGain(apply bool) StreamOption {
	return func(c *streamConfig) { c.applyGain = apply }
}

// WithPreSkip controls whether the OpusHead pre-skip samples are dropped
// from the start of the stream. They are dropped by default.
func WithPreSkip(trim bool) StreamOption {
	return func(c *streamConfig) { c.trimPreSkip = trim }
}

// StreamDecoder decodes a single mono or stereo Opus stream from an Ogg container.
//
// A packet that fails to decode is logged and replaced by silence of the
// same duration, so the timeline of the stream is preserved.
type StreamDecoder struct {
	r       *ogg.Reader
	dec     *Decoder
	log     *slog.Logger
	skip    int    // Pre-skip samples per channel still to drop
	mapping []byte // Output channel to decoded channel, nil when identity
	packet  int    // Index of the next audio packet

	pcm []int16 // Decoded packet, decoder channel layout
	out []int16 // Returned PCM, output channel layout
}

// NewStreamDecoder reads the OpusHead and OpusTags headers from r and
// returns a decoder for the audio packets that follow.
//
// It returns ErrUnsupportedStream unless the stream carries exactly one
// Opus stream with one or two output channels.
func NewStreamDecoder(r io.Reader, opts ...StreamOption) (*StreamDecoder, error) {
	cfg := streamConfig{logger: slog.Default(), applyGain: true, trimPreSkip: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	or, err := ogg.NewReader(r)
	if err != nil {
		return nil, err
	}
	head := or.Header
	if head.StreamCount != 1 || head.Channels > 2 {
		return nil, fmt.Errorf("%w: %d channels in %d streams", ErrUnsupportedStream, head.Channels, head.StreamCount)
	}

	dec, err := NewDecoder(1 + int(head.CoupledCount))
	if err != nil {
		return nil, err
	}

	s := &StreamDecoder{
		r:   or,
		dec: dec,
		log: cfg.logger,
	}
	if cfg.applyGain {
		dec.SetGain(head.OutputGain)
	}
	if cfg.trimPreSkip {
		s.skip = int(head.PreSkip)
	}
	if head.MappingFamily != ogg.MappingFamilyRTP && !identityMapping(head.ChannelMapping, dec.Channels()) {
		s.mapping = head.ChannelMapping
	}

	s.log.Debug("opus stream",
		slog.Int("channels", int(head.Channels)),
		slog.Int("preSkip", int(head.PreSkip)),
		slog.Int("outputGain", int(head.OutputGain)),
		slog.String("vendor", or.Tags.Vendor))
	return s, nil
}

func identityMapping(mapping []byte, decoded int) bool {
	if len(mapping) != decoded {
		return false
	}
	for i, m := range mapping {
		if int(m) != i {
			return false
		}
	}
	return true
}

// Head returns the stream's identification header.
func (s *StreamDecoder) Head() *ogg.OpusHead { return s.r.Header }

// Tags returns the stream's comment header.
func (s *StreamDecoder) Tags() *ogg.OpusTags { return s.r.Tags }

// Channels returns the number of output channels.
func (s *StreamDecoder) Channels() int { return int(s.r.Header.Channels) }

// Next decodes the next audio packet and returns its interleaved PCM with
// pre-skip trimmed and output gain applied. The slice is reused by the
// following call and may be empty while pre-skip is being dropped.
// Next returns io.EOF at the end of the stream.
func (s *StreamDecoder) Next() ([]int16, error) {
	packet, err := s.r.ReadPacket()
	if errors.Is(err, ogg.ErrUnexpectedEOS) {
		s.log.Warn("stream truncated", slog.Int("packet", s.packet), slog.Any("err", err))
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	index := s.packet
	s.packet++

	decoded := s.dec.Channels()
	n, err := s.decode(packet)
	if err != nil {
		n = s.silenceDuration(packet)
		s.log.Warn("packet replaced by silence",
			slog.Int("packet", index),
			slog.Int("samples", n),
			slog.Any("err", err))
		s.pcm = grow(s.pcm, n*decoded)
		clear(s.pcm)
	}

	s.render(n)
	return s.out, nil
}

func (s *StreamDecoder) decode(packet []byte) (int, error) {
	info, err := ParsePacket(packet)
	if err != nil {
		return 0, err
	}
	s.pcm = grow(s.pcm, info.Duration()*s.dec.Channels())
	return s.dec.Decode(packet, s.pcm)
}

// silenceDuration is the duration the packet claims, or that of the last
// good packet when its header cannot be trusted.
func (s *StreamDecoder) silenceDuration(packet []byte) int {
	if info, err := ParsePacket(packet); err == nil {
		return info.Duration()
	}
	return s.dec.LastPacketDuration()
}

// render converts the first n decoded samples per channel to the output
// layout, dropping what is left of the pre-skip.
func (s *StreamDecoder) render(n int) {
	start := min(s.skip, n)
	s.skip -= start
	decoded := s.dec.Channels()
	channels := s.Channels()

	s.out = grow(s.out, (n-start)*channels)
	src := s.pcm[start*decoded : n*decoded]

	if s.mapping == nil {
		copy(s.out, src)
		return
	}
	for i := range n - start {
		for ch, m := range s.mapping {
			var v int16
			if int(m) < decoded { // 255 = silence
				v = src[i*decoded+int(m)]
			}
			s.out[i*channels+ch] = v
		}
	}
}

// grow returns buf resized to n elements, reallocating only when needed.
func grow[S any](buf []S, n int) []S {
	if cap(buf) < n {
		return make([]S, n)
	}
	return buf[:n]
}

// Reader adapts a StreamDecoder to io.Reader, producing interleaved
// 16-bit little-endian PCM at 48 kHz.
type Reader struct {
	src     *StreamDecoder
	byteBuf []byte // PCM of the current packet as bytes
	offset  int    // Current read position in byteBuf
	eof     bool   // Source exhausted
}

// NewReader returns a Reader over the PCM of s.
func NewReader(s *StreamDecoder) *Reader {
	return &Reader{src: s}
}

// Read implements io.Reader, decoding packets as needed to fill p.
func (r *Reader) Read(p []byte) (int, error) {
	for r.offset >= len(r.byteBuf) {
		if r.eof {
			return 0, io.EOF
		}
		samples, err := r.src.Next()
		if err == io.EOF {
			r.eof = true
			return 0, io.EOF
		}
		if err != nil {
			return 0, err
		}
		r.byteBuf = grow(r.byteBuf, 2*len(samples))
		for i, v := range samples {
			binary.LittleEndian.PutUint16(r.byteBuf[2*i:], uint16(v))
		}
		r.offset = 0
	}

	n := copy(p, r.byteBuf[r.offset:])
	r.offset += n
	return n, nil
}
