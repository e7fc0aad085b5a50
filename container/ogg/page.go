package ogg

import (
	"encoding/binary"
)

// Page header flag constants.
const (
	// PageFlagContinuation indicates this page contains data from a packet
	// that began on a previous page.
	PageFlagContinuation = 0x01

	// PageFlagBOS (Beginning of Stream) indicates this is the first page
	// of a logical bitstream.
	PageFlagBOS = 0x02

	// PageFlagEOS (End of Stream) indicates this is the last page of a
	// logical bitstream.
	PageFlagEOS = 0x04
)

const (
	// pageHeaderSize is the fixed portion of the page header (before segment table).
	pageHeaderSize = 27

	// oggMagic is the capture pattern that identifies an Ogg page.
	oggMagic = "OggS"

	// maxPagePacket is the largest packet one page can carry: 254 full
	// segments and a terminating one.
	maxPagePacket = 255*255 - 1
)

// page is a single Ogg page carrying exactly one complete packet.
type page struct {
	headerType   byte
	granulePos   uint64
	serialNumber uint32
	pageSequence uint32
	payload      []byte
}

// segmentTable creates the lacing values for a packet of the given length.
// A packet whose length is a multiple of 255 ends with a zero-length segment.
func segmentTable(packetLen int) []byte {
	segments := make([]byte, packetLen/255+1)
	for i := 0; i < len(segments)-1; i++ {
		segments[i] = 255
	}
	segments[len(segments)-1] = byte(packetLen % 255)
	return segments
}

// encode serializes the page to bytes with proper CRC.
// The CRC is computed over the entire page with the CRC field zeroed.
func (p *page) encode() []byte {
	segments := segmentTable(len(p.payload))
	headerSize := pageHeaderSize + len(segments)
	data := make([]byte, headerSize+len(p.payload))

	copy(data[0:4], oggMagic)
	data[4] = 0 // Stream structure version
	data[5] = p.headerType
	binary.LittleEndian.PutUint64(data[6:14], p.granulePos)
	binary.LittleEndian.PutUint32(data[14:18], p.serialNumber)
	binary.LittleEndian.PutUint32(data[18:22], p.pageSequence)
	data[26] = byte(len(segments))
	copy(data[27:], segments)
	copy(data[headerSize:], p.payload)

	binary.LittleEndian.PutUint32(data[22:26], oggCRC(data))
	return data
}
