package ogg

import (
	"errors"
	"fmt"
	"io"

	oggpage "github.com/jonas747/ogg"
)

// PacketReader reads the packets of an Ogg bitstream in order,
// reassembling packets that span pages.
type PacketReader struct {
	dec     *oggpage.PacketDecoder
	packets int
}

// NewPacketReader returns a PacketReader over the Ogg pages read from r.
func NewPacketReader(r io.Reader) *PacketReader {
	return &PacketReader{dec: oggpage.NewPacketDecoder(oggpage.NewDecoder(r))}
}

// ReadPacket returns the next packet. It returns io.EOF at a clean end of
// stream and ErrUnexpectedEOS when the stream stops inside a page.
// The returned slice is owned by the caller.
func (pr *PacketReader) ReadPacket() ([]byte, error) {
	packet, _, err := pr.dec.Decode()
	if err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return nil, io.EOF
		case errors.Is(err, io.ErrUnexpectedEOF):
			return nil, ErrUnexpectedEOS
		default:
			return nil, fmt.Errorf("ogg: packet %d: %w", pr.packets, err)
		}
	}
	pr.packets++
	return append([]byte(nil), packet...), nil
}

// Packets returns the number of packets read so far, headers included.
func (pr *PacketReader) Packets() int {
	return pr.packets
}

// Reader reads Opus packets from an Ogg container.
// It parses the two Opus header packets up front and then hands out audio packets.
type Reader struct {
	packets *PacketReader
	Header  *OpusHead // Parsed ID header (set by NewReader)
	Tags    *OpusTags // Parsed comment header (set by NewReader)
}

// NewReader creates a new Reader and parses the Ogg Opus headers.
// It reads the ID header (OpusHead) and comment header (OpusTags) immediately.
// Returns an error if the stream is not a valid Ogg Opus stream.
func NewReader(r io.Reader) (*Reader, error) {
	or := &Reader{packets: NewPacketReader(r)}

	head, err := or.packets.ReadPacket()
	if err != nil {
		return nil, fmt.Errorf("read OpusHead: %w", headerReadErr(err))
	}
	if or.Header, err = ParseOpusHead(head); err != nil {
		return nil, err
	}

	tags, err := or.packets.ReadPacket()
	if err != nil {
		return nil, fmt.Errorf("read OpusTags: %w", headerReadErr(err))
	}
	if or.Tags, err = ParseOpusTags(tags); err != nil {
		return nil, err
	}
	return or, nil
}

// headerReadErr turns a clean EOF during the headers into ErrUnexpectedEOS.
func headerReadErr(err error) error {
	if errors.Is(err, io.EOF) {
		return ErrUnexpectedEOS
	}
	return err
}

// ReadPacket reads the next Opus audio packet from the stream.
// Returns io.EOF when the end of stream is reached.
func (or *Reader) ReadPacket() ([]byte, error) {
	return or.packets.ReadPacket()
}

// PreSkip returns the number of samples to skip at the start.
func (or *Reader) PreSkip() uint16 {
	return or.Header.PreSkip
}

// Channels returns the number of output channels.
func (or *Reader) Channels() uint8 {
	return or.Header.Channels
}

// SampleRate returns the original input sample rate from OpusHead.
func (or *Reader) SampleRate() uint32 {
	return or.Header.SampleRate
}
