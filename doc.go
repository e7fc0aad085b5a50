// Package aquarana decodes CELT-only Opus audio in pure Go.
//
// Opus (RFC 6716) carries audio in one of three modes selected by the TOC
// byte of each packet: SILK, CELT or Hybrid. This package decodes the CELT
// mode, used by low-delay and music streams, to 48 kHz PCM. SILK and hybrid
// packets are recognized and rejected with ErrUnsupportedMode.
//
// # Packet Structure
//
// Each Opus packet starts with a TOC (Table of Contents) byte:
//   - Bits 7-3: Configuration (0-31)
//   - Bit 2: Stereo flag
//   - Bits 1-0: Frame count code (0-3)
//
// Use ParseTOC to extract these fields, and ParsePacket to determine
// the frame boundaries within a packet.
//
// # Decoding
//
// A Decoder turns packets into interleaved int16 or float32 samples:
//
//	dec, err := aquarana.NewDecoder(2)
//	pcm := make([]int16, aquarana.MaxPacketSamples*2)
//	n, err := dec.Decode(packet, pcm) // n samples per channel
//
// A StreamDecoder reads an Ogg Opus file (RFC 7845), trims the pre-skip,
// applies the output gain and replaces damaged packets with silence.
// NewReader exposes its output as an io.Reader of 16-bit little-endian PCM.
package aquarana
