package ogg

import (
	"fmt"
	"io"
)

// Writer writes Opus packets to an Ogg container, one packet per page.
// It is the inverse of Reader and is used to build test streams and to
// remux packets.
type Writer struct {
	w          io.Writer
	serial     uint32
	pageSeq    uint32 // Page sequence counter
	granulePos uint64 // Sample position (at 48kHz)
	pending    []byte // Last packet, held back so its page can carry EOS
	hasPending bool
	closed     bool
}

// NewWriter writes the OpusHead (BOS page) and OpusTags pages and returns
// a Writer ready for audio packets.
func NewWriter(w io.Writer, serial uint32, head *OpusHead, tags *OpusTags) (*Writer, error) {
	ow := &Writer{w: w, serial: serial}
	if err := ow.writePage(head.Encode(), PageFlagBOS, 0); err != nil {
		return nil, fmt.Errorf("write OpusHead: %w", err)
	}
	if tags == nil {
		tags = &OpusTags{Vendor: "aquarana"}
	}
	if err := ow.writePage(tags.Encode(), 0, 0); err != nil {
		return nil, fmt.Errorf("write OpusTags: %w", err)
	}
	return ow, nil
}

func (ow *Writer) writePage(payload []byte, headerType byte, granule uint64) error {
	if len(payload) > maxPagePacket {
		return fmt.Errorf("%w: packet of %d bytes does not fit a page", ErrInvalidHeader, len(payload))
	}
	p := &page{
		headerType:   headerType,
		granulePos:   granule,
		serialNumber: ow.serial,
		pageSequence: ow.pageSeq,
		payload:      payload,
	}
	if _, err := ow.w.Write(p.encode()); err != nil {
		return err
	}
	ow.pageSeq++
	return nil
}

// WritePacket queues an Opus packet decoding to samples samples per
// channel at 48kHz. The previous packet is written out.
func (ow *Writer) WritePacket(packet []byte, samples int) error {
	if ow.closed {
		return ErrUnexpectedEOS
	}
	if err := ow.flush(0); err != nil {
		return err
	}
	ow.granulePos += uint64(samples)
	ow.pending = append(ow.pending[:0], packet...)
	ow.hasPending = true
	return nil
}

func (ow *Writer) flush(flags byte) error {
	if !ow.hasPending {
		return nil
	}
	ow.hasPending = false
	return ow.writePage(ow.pending, flags, ow.granulePos)
}

// Close writes the last packet on a page flagged end of stream.
// The writer should not be used after Close.
func (ow *Writer) Close() error {
	if ow.closed {
		return nil
	}
	ow.closed = true
	return ow.flush(PageFlagEOS)
}

// GranulePos returns the granule position of the last queued packet.
func (ow *Writer) GranulePos() uint64 {
	return ow.granulePos
}

// PageCount returns the number of pages written so far.
func (ow *Writer) PageCount() uint32 {
	return ow.pageSeq
}
