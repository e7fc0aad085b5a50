package ogg

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// Opus header constants per RFC 7845.
const (
	// DefaultPreSkip is the standard Opus encoder lookahead at 48kHz.
	// This is the number of samples to discard at the beginning of decode.
	DefaultPreSkip = 312

	// opusHeadMagic is the magic signature for the OpusHead header.
	opusHeadMagic = "OpusHead"

	// opusTagsMagic is the magic signature for the OpusTags header.
	opusTagsMagic = "OpusTags"

	// opusHeadMinSize is the minimum size of an OpusHead packet (mapping family 0).
	opusHeadMinSize = 19

	// opusTagsMinSize is magic, vendor length and comment count, with an empty vendor.
	opusTagsMinSize = 16

	// opusHeadVersion is the required version number for OpusHead.
	opusHeadVersion = 1
)

// MappingFamily values per RFC 7845.
const (
	// MappingFamilyRTP is for mono/stereo with implicit channel order (RTP).
	MappingFamilyRTP = 0

	// MappingFamilyVorbis is for 1-8 channels with Vorbis channel order.
	MappingFamilyVorbis = 1
)

// OpusHead is the identification header for Opus in Ogg.
// This appears in the first Ogg page (BOS) and describes the stream format.
type OpusHead struct {
	// Version is the format version (must be 1).
	Version uint8

	// Channels is the output channel count (1-255).
	Channels uint8

	// PreSkip is the number of samples to discard at the start (at 48kHz).
	// Typically 312 for standard Opus encoder lookahead.
	PreSkip uint16

	// SampleRate is the original input sample rate (informational only).
	// Opus always operates at 48kHz internally.
	SampleRate uint32

	// OutputGain is the gain to apply in Q7.8 dB format.
	// Positive values amplify, negative values attenuate.
	OutputGain int16

	// MappingFamily specifies the channel mapping:
	//   0: Mono/stereo (implicit order)
	//   1 and above: explicit stream counts and mapping table
	MappingFamily uint8

	// StreamCount is the number of Opus streams in each packet.
	// For mapping family 0 it is implicitly 1.
	StreamCount uint8

	// CoupledCount is the number of coupled (stereo) streams.
	CoupledCount uint8

	// ChannelMapping maps output channels to decoder channels.
	// For mapping family 0, this is implicit (not stored).
	ChannelMapping []byte
}

// Gain returns OutputGain as a linear amplitude factor.
func (h *OpusHead) Gain() float64 {
	return math.Pow(10, float64(h.OutputGain)/(20*256))
}

// Encode serializes the OpusHead to bytes.
// For mapping family 0: 19 bytes.
// Otherwise: 21 + Channels bytes.
func (h *OpusHead) Encode() []byte {
	size := opusHeadMinSize
	if h.MappingFamily != MappingFamilyRTP {
		size = 21 + len(h.ChannelMapping)
	}
	data := make([]byte, size)
	copy(data[0:8], opusHeadMagic)
	data[8] = h.Version
	data[9] = h.Channels
	binary.LittleEndian.PutUint16(data[10:12], h.PreSkip)
	binary.LittleEndian.PutUint32(data[12:16], h.SampleRate)
	binary.LittleEndian.PutUint16(data[16:18], uint16(h.OutputGain))
	data[18] = h.MappingFamily
	if h.MappingFamily != MappingFamilyRTP {
		data[19] = h.StreamCount
		data[20] = h.CoupledCount
		copy(data[21:], h.ChannelMapping)
	}
	return data
}

// ParseOpusHead parses an OpusHead from bytes.
func ParseOpusHead(data []byte) (*OpusHead, error) {
	if len(data) < 8 || string(data[0:8]) != opusHeadMagic {
		return nil, ErrNotOpusHead
	}
	if len(data) < opusHeadMinSize {
		return nil, fmt.Errorf("%w: OpusHead is %d bytes", ErrInvalidHeader, len(data))
	}

	version := data[8]
	if version != opusHeadVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	h := &OpusHead{
		Version:       version,
		Channels:      data[9],
		PreSkip:       binary.LittleEndian.Uint16(data[10:12]),
		SampleRate:    binary.LittleEndian.Uint32(data[12:16]),
		OutputGain:    int16(binary.LittleEndian.Uint16(data[16:18])),
		MappingFamily: data[18],
	}

	if h.Channels == 0 {
		return nil, fmt.Errorf("%w: zero channels", ErrInvalidHeader)
	}

	if h.MappingFamily == MappingFamilyRTP {
		// Mapping family 0: implicit mapping.
		if h.Channels > 2 {
			return nil, fmt.Errorf("%w: %d channels with mapping family 0", ErrInvalidHeader, h.Channels)
		}
		h.StreamCount = 1
		if h.Channels == 2 {
			h.CoupledCount = 1
		}
		return h, nil
	}

	// Need at least 21 + Channels bytes.
	if len(data) < 21+int(h.Channels) {
		return nil, fmt.Errorf("%w: channel mapping table truncated", ErrInvalidHeader)
	}
	h.StreamCount = data[19]
	h.CoupledCount = data[20]
	if h.StreamCount == 0 || h.CoupledCount > h.StreamCount {
		return nil, fmt.Errorf("%w: %d streams, %d coupled", ErrInvalidHeader, h.StreamCount, h.CoupledCount)
	}

	h.ChannelMapping = make([]byte, h.Channels)
	copy(h.ChannelMapping, data[21:21+int(h.Channels)])

	maxStream := int(h.StreamCount) + int(h.CoupledCount)
	for _, m := range h.ChannelMapping {
		if int(m) >= maxStream && m != 255 { // 255 = silence
			return nil, fmt.Errorf("%w: mapping entry %d out of range", ErrInvalidHeader, m)
		}
	}
	return h, nil
}

// OpusTags is the comment header for Opus in Ogg.
// This appears after OpusHead and contains metadata.
type OpusTags struct {
	// Vendor is the encoder name (e.g., "libopus 1.4").
	Vendor string

	// Comments holds the user comments in stream order, each
	// conventionally "KEY=value".
	Comments []string
}

// Get returns the value of the first comment whose key matches key,
// ignoring ASCII case as Vorbis comments do.
func (t *OpusTags) Get(key string) (string, bool) {
	for _, c := range t.Comments {
		k, v, ok := strings.Cut(c, "=")
		if ok && strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// Encode serializes the OpusTags to bytes.
func (t *OpusTags) Encode() []byte {
	size := opusTagsMinSize + len(t.Vendor)
	for _, c := range t.Comments {
		size += 4 + len(c)
	}

	data := make([]byte, size)
	copy(data[0:8], opusTagsMagic)
	offset := 8

	binary.LittleEndian.PutUint32(data[offset:], uint32(len(t.Vendor)))
	offset += 4
	offset += copy(data[offset:], t.Vendor)

	binary.LittleEndian.PutUint32(data[offset:], uint32(len(t.Comments)))
	offset += 4

	for _, c := range t.Comments {
		binary.LittleEndian.PutUint32(data[offset:], uint32(len(c)))
		offset += 4
		offset += copy(data[offset:], c)
	}
	return data
}

// ParseOpusTags parses an OpusTags from bytes. Anything after the last
// comment, such as the optional binary extension of RFC 7845 Section 5.2,
// is ignored.
func ParseOpusTags(data []byte) (*OpusTags, error) {
	if len(data) < 8 || string(data[0:8]) != opusTagsMagic {
		return nil, ErrNotOpusTags
	}
	if len(data) < opusTagsMinSize {
		return nil, fmt.Errorf("%w: OpusTags is %d bytes", ErrInvalidHeader, len(data))
	}

	offset := 8
	vendor, offset, err := readString(data, offset)
	if err != nil {
		return nil, fmt.Errorf("vendor: %w", err)
	}

	if offset+4 > len(data) {
		return nil, fmt.Errorf("%w: comment count truncated", ErrInvalidHeader)
	}
	count := binary.LittleEndian.Uint32(data[offset:])
	offset += 4

	// Every comment takes at least its 4-byte length, which bounds the preallocation.
	if uint64(count)*4 > uint64(len(data)-offset) {
		return nil, fmt.Errorf("%w: %d comments do not fit", ErrInvalidHeader, count)
	}

	t := &OpusTags{Vendor: vendor, Comments: make([]string, 0, count)}
	for i := uint32(0); i < count; i++ {
		var c string
		c, offset, err = readString(data, offset)
		if err != nil {
			return nil, fmt.Errorf("comment %d: %w", i, err)
		}
		t.Comments = append(t.Comments, c)
	}
	return t, nil
}

// readString reads a 32-bit little-endian length followed by that many
// bytes of UTF-8 text.
func readString(data []byte, offset int) (string, int, error) {
	if offset+4 > len(data) {
		return "", offset, ErrInvalidHeader
	}
	n := binary.LittleEndian.Uint32(data[offset:])
	offset += 4
	if uint64(n) > uint64(len(data)-offset) {
		return "", offset, ErrInvalidHeader
	}
	b := data[offset : offset+int(n)]
	if !utf8.Valid(b) {
		return "", offset, ErrNonUTF8
	}
	return string(b), offset + int(n), nil
}

// DefaultOpusHead returns an OpusHead for a mono or stereo mapping family 0 stream.
func DefaultOpusHead(sampleRate uint32, channels uint8) *OpusHead {
	h := &OpusHead{
		Version:       opusHeadVersion,
		Channels:      channels,
		PreSkip:       DefaultPreSkip,
		SampleRate:    sampleRate,
		MappingFamily: MappingFamilyRTP,
		StreamCount:   1,
	}
	if channels == 2 {
		h.CoupledCount = 1
	}
	return h
}
