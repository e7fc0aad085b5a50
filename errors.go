// errors.go defines public error types for the aquarana package.

package aquarana

import "errors"

// Errors returned by packet parsing functions.
var (
	// ErrPacketTooShort indicates the packet ends before its header does.
	ErrPacketTooShort = errors.New("opus: packet too short")

	// ErrInvalidFrameCount indicates a code 3 frame count of zero, above 48,
	// or one that would exceed 120 ms of audio.
	ErrInvalidFrameCount = errors.New("opus: invalid frame count")

	// ErrInvalidPacket indicates frame lengths that do not fit the packet,
	// or a frame longer than 1275 bytes.
	ErrInvalidPacket = errors.New("opus: invalid packet structure")
)

// Errors returned by the decoders.
var (
	// ErrInvalidChannels indicates an unsupported channel count.
	// Valid channel counts are 1 (mono) or 2 (stereo).
	ErrInvalidChannels = errors.New("aquarana: invalid channels (must be 1 or 2)")

	// ErrUnsupportedMode indicates a SILK or hybrid packet. Only CELT-only
	// packets (configs 16-31) are decoded.
	ErrUnsupportedMode = errors.New("aquarana: unsupported mode (only CELT is decoded)")

	// ErrBufferTooSmall indicates the output buffer cannot hold every frame of the packet.
	// The buffer must be at least frameSize * frameCount * channels samples.
	ErrBufferTooSmall = errors.New("aquarana: output buffer too small")

	// ErrUnsupportedStream indicates an Ogg Opus stream that is not a single
	// mono or stereo Opus stream.
	ErrUnsupportedStream = errors.New("aquarana: unsupported stream (need mapping family 0 or a single stream)")
)
