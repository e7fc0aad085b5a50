// packet.go implements TOC byte parsing and packet frame extraction per RFC 6716 Section 3.

package aquarana

import (
	"github.com/mycrl/aquarana/types"
)

// Mode is an alias for types.Mode representing the Opus coding mode.
type Mode = types.Mode

// Bandwidth is an alias for types.Bandwidth representing the audio bandwidth.
type Bandwidth = types.Bandwidth

// Re-export mode constants for convenience.
const (
	ModeSILK   = types.ModeSILK   // SILK-only mode (configs 0-11)
	ModeHybrid = types.ModeHybrid // Hybrid SILK+CELT (configs 12-15)
	ModeCELT   = types.ModeCELT   // CELT-only mode (configs 16-31)
)

// Re-export bandwidth constants for convenience.
const (
	BandwidthNarrowband    = types.BandwidthNarrowband    // 4kHz audio, 8kHz sample rate
	BandwidthMediumband    = types.BandwidthMediumband    // 6kHz audio, 12kHz sample rate
	BandwidthWideband      = types.BandwidthWideband      // 8kHz audio, 16kHz sample rate
	BandwidthSuperwideband = types.BandwidthSuperwideband // 12kHz audio, 24kHz sample rate
	BandwidthFullband      = types.BandwidthFullband      // 20kHz audio, 48kHz sample rate
)

// Packet limits from RFC 6716 Section 3.2.
const (
	// MaxFrameBytes is the largest frame a packet may carry (R2).
	MaxFrameBytes = 1275

	// MaxFrames is the largest frame count of a code 3 packet.
	MaxFrames = 48

	// MaxPacketSamples is 120 ms at 48 kHz, the longest audio a packet may hold (R5).
	MaxPacketSamples = 5760
)

// TOC represents the parsed Table of Contents byte from an Opus packet.
type TOC struct {
	Config    uint8     // Configuration 0-31
	Mode      Mode      // Derived from config
	Bandwidth Bandwidth // Derived from config
	FrameSize int       // Frame size in samples at 48kHz
	Stereo    bool      // True if stereo
	FrameCode uint8     // Code 0-3
}

// configEntry holds the mode, bandwidth, and frame size for a configuration.
type configEntry struct {
	Mode      Mode
	Bandwidth Bandwidth
	FrameSize int // In samples at 48kHz
}

// configTable maps configuration indices 0-31 to their properties.
// Based on RFC 6716 Section 3.1 Table.
var configTable = [32]configEntry{
	// SILK-only NB: configs 0-3 (10/20/40/60ms)
	{ModeSILK, BandwidthNarrowband, 480},
	{ModeSILK, BandwidthNarrowband, 960},
	{ModeSILK, BandwidthNarrowband, 1920},
	{ModeSILK, BandwidthNarrowband, 2880},
	// SILK-only MB: configs 4-7
	{ModeSILK, BandwidthMediumband, 480},
	{ModeSILK, BandwidthMediumband, 960},
	{ModeSILK, BandwidthMediumband, 1920},
	{ModeSILK, BandwidthMediumband, 2880},
	// SILK-only WB: configs 8-11
	{ModeSILK, BandwidthWideband, 480},
	{ModeSILK, BandwidthWideband, 960},
	{ModeSILK, BandwidthWideband, 1920},
	{ModeSILK, BandwidthWideband, 2880},
	// Hybrid SWB: configs 12-13 (10/20ms)
	{ModeHybrid, BandwidthSuperwideband, 480},
	{ModeHybrid, BandwidthSuperwideband, 960},
	// Hybrid FB: configs 14-15
	{ModeHybrid, BandwidthFullband, 480},
	{ModeHybrid, BandwidthFullband, 960},
	// CELT NB: configs 16-19 (2.5/5/10/20ms)
	{ModeCELT, BandwidthNarrowband, 120},
	{ModeCELT, BandwidthNarrowband, 240},
	{ModeCELT, BandwidthNarrowband, 480},
	{ModeCELT, BandwidthNarrowband, 960},
	// CELT WB: configs 20-23
	{ModeCELT, BandwidthWideband, 120},
	{ModeCELT, BandwidthWideband, 240},
	{ModeCELT, BandwidthWideband, 480},
	{ModeCELT, BandwidthWideband, 960},
	// CELT SWB: configs 24-27
	{ModeCELT, BandwidthSuperwideband, 120},
	{ModeCELT, BandwidthSuperwideband, 240},
	{ModeCELT, BandwidthSuperwideband, 480},
	{ModeCELT, BandwidthSuperwideband, 960},
	// CELT FB: configs 28-31
	{ModeCELT, BandwidthFullband, 120},
	{ModeCELT, BandwidthFullband, 240},
	{ModeCELT, BandwidthFullband, 480},
	{ModeCELT, BandwidthFullband, 960},
}

// GenerateTOC creates a TOC byte from its fields.
//
//	frameCode 0: 1 frame
//	frameCode 1: 2 equal-sized frames
//	frameCode 2: 2 different-sized frames
//	frameCode 3: arbitrary number of frames
func GenerateTOC(config uint8, stereo bool, frameCode uint8) byte {
	toc := (config & 0x1F) << 3
	if stereo {
		toc |= 0x04
	}
	toc |= frameCode & 0x03
	return toc
}

// ConfigFromParams returns the config index for given mode, bandwidth, and frame size.
// Returns -1 if the combination is invalid.
func ConfigFromParams(mode Mode, bandwidth Bandwidth, frameSize int) int {
	for i, entry := range configTable {
		if entry.Mode == mode && entry.Bandwidth == bandwidth && entry.FrameSize == frameSize {
			return i
		}
	}
	return -1
}

// ParseTOC parses a TOC byte and returns the decoded fields.
func ParseTOC(b byte) TOC {
	config := b >> 3          // Top 5 bits
	stereo := (b & 0x04) != 0 // Bit 2
	frameCode := b & 0x03     // Bottom 2 bits

	entry := configTable[config]

	return TOC{
		Config:    config,
		Mode:      entry.Mode,
		Bandwidth: entry.Bandwidth,
		FrameSize: entry.FrameSize,
		Stereo:    stereo,
		FrameCode: frameCode,
	}
}

// Channels returns 2 for a stereo TOC and 1 otherwise.
func (t TOC) Channels() int {
	if t.Stereo {
		return 2
	}
	return 1
}

// PacketInfo contains parsed information about an Opus packet.
type PacketInfo struct {
	TOC        TOC      // Parsed TOC byte
	FrameCount int      // Number of frames (1-48 for code 3)
	FrameSizes []int    // Size in bytes of each frame
	Frames     [][]byte // Frame payloads, sub-slices of the packet
	Padding    int      // Padding bytes (code 3 only)
	TotalSize  int      // Total packet size
}

// Duration returns the number of samples per channel at 48 kHz the packet decodes to.
func (p PacketInfo) Duration() int {
	return p.FrameCount * p.TOC.FrameSize
}

// ParsePacket parses an Opus packet and returns information about its structure.
// It determines the frame boundaries based on the TOC byte's frame code (0-3)
// and enforces the requirements of RFC 6716 Section 3.4.
func ParsePacket(data []byte) (PacketInfo, error) {
	if len(data) < 1 {
		return PacketInfo{}, ErrPacketTooShort
	}

	toc := ParseTOC(data[0])
	info := PacketInfo{
		TOC:       toc,
		TotalSize: len(data),
	}

	offset := 1
	switch toc.FrameCode {
	case 0:
		// Code 0: One frame
		info.FrameCount = 1
		info.FrameSizes = []int{len(data) - 1}

	case 1:
		// Code 1: Two equal-sized frames
		frameDataLen := len(data) - 1
		if frameDataLen%2 != 0 {
			return PacketInfo{}, ErrInvalidPacket
		}
		frameSize := frameDataLen / 2
		info.FrameCount = 2
		info.FrameSizes = []int{frameSize, frameSize}

	case 2:
		// Code 2: Two frames with different sizes
		frame1Len, bytesRead, err := parseFrameLength(data, 1)
		if err != nil {
			return PacketInfo{}, err
		}
		offset += bytesRead
		frame2Len := len(data) - offset - frame1Len
		if frame2Len < 0 {
			return PacketInfo{}, ErrInvalidPacket
		}
		info.FrameCount = 2
		info.FrameSizes = []int{frame1Len, frame2Len}

	case 3:
		// Code 3: Arbitrary number of frames
		if len(data) < 2 {
			return PacketInfo{}, ErrPacketTooShort
		}
		frameCountByte := data[1]
		vbr := (frameCountByte & 0x80) != 0
		hasPadding := (frameCountByte & 0x40) != 0
		m := int(frameCountByte & 0x3F)

		if m == 0 || m > MaxFrames || m*toc.FrameSize > MaxPacketSamples {
			return PacketInfo{}, ErrInvalidFrameCount
		}
		offset = 2

		// A padding length byte of 255 adds 254 bytes and another length byte follows.
		padding := 0
		if hasPadding {
			for {
				if offset >= len(data) {
					return PacketInfo{}, ErrPacketTooShort
				}
				padByte := int(data[offset])
				offset++
				if padByte == 255 {
					padding += 254
					continue
				}
				padding += padByte
				break
			}
		}

		info.FrameCount = m
		info.Padding = padding
		info.FrameSizes = make([]int, m)

		if vbr {
			// VBR: every length but the last is coded, the last frame takes the remainder.
			total := 0
			for i := 0; i < m-1; i++ {
				frameLen, bytesRead, err := parseFrameLength(data, offset)
				if err != nil {
					return PacketInfo{}, err
				}
				info.FrameSizes[i] = frameLen
				total += frameLen
				offset += bytesRead
			}
			last := len(data) - offset - padding - total
			if last < 0 {
				return PacketInfo{}, ErrInvalidPacket
			}
			info.FrameSizes[m-1] = last
		} else {
			// CBR: no lengths are coded, the frames share the remaining bytes equally.
			frameDataLen := len(data) - offset - padding
			if frameDataLen < 0 || frameDataLen%m != 0 {
				return PacketInfo{}, ErrInvalidPacket
			}
			frameLen := frameDataLen / m
			for i := range info.FrameSizes {
				info.FrameSizes[i] = frameLen
			}
		}
	}

	info.Frames = make([][]byte, info.FrameCount)
	for i, size := range info.FrameSizes {
		if size > MaxFrameBytes {
			return PacketInfo{}, ErrInvalidPacket
		}
		info.Frames[i] = data[offset : offset+size : offset+size]
		offset += size
	}

	return info, nil
}

// parseFrameLength parses a frame length from the packet data at the given offset.
// Per RFC 6716 Section 3.2.1, lengths < 252 use one byte, lengths >= 252 use two bytes.
// Returns the length, number of bytes read, and any error.
func parseFrameLength(data []byte, offset int) (int, int, error) {
	if offset >= len(data) {
		return 0, 0, ErrPacketTooShort
	}

	firstByte := int(data[offset])
	if firstByte < 252 {
		return firstByte, 1, nil
	}

	// Two-byte encoding: length = 4*secondByte + firstByte
	if offset+1 >= len(data) {
		return 0, 0, ErrPacketTooShort
	}
	secondByte := int(data[offset+1])
	return 4*secondByte + firstByte, 2, nil
}
