package celt

import "errors"

// Decoding errors. They are returned before any decoder state is touched,
// so a failed call leaves the Decoder exactly as it was.
var (
	// ErrInvalidFrameSize indicates a duration class other than 120, 240,
	// 480 or 960 samples.
	ErrInvalidFrameSize = errors.New("celt: invalid frame size")

	// ErrFrameLength indicates a frame shorter than 2 bytes or longer than
	// 1275 bytes. Shorter frames would require loss concealment.
	ErrFrameLength = errors.New("celt: invalid frame length")

	// ErrChannelMismatch indicates a channel count other than the one the
	// decoder was created for.
	ErrChannelMismatch = errors.New("celt: channel count mismatch")

	// ErrBufferTooSmall indicates the output slice cannot hold
	// frameSize*channels samples.
	ErrBufferTooSmall = errors.New("celt: output buffer too small")
)
