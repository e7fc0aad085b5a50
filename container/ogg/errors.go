package ogg

import "errors"

// Package-level errors for Ogg Opus parsing.
var (
	// ErrInvalidHeader indicates an Opus header (OpusHead or OpusTags) is malformed.
	// This includes a truncated packet, a zero channel count or inconsistent
	// stream counts.
	ErrInvalidHeader = errors.New("ogg: invalid Opus header")

	// ErrNotOpusHead indicates the first packet does not start with "OpusHead".
	ErrNotOpusHead = errors.New("ogg: not an OpusHead packet")

	// ErrNotOpusTags indicates the second packet does not start with "OpusTags".
	ErrNotOpusTags = errors.New("ogg: not an OpusTags packet")

	// ErrUnsupportedVersion indicates an OpusHead version other than 1.
	ErrUnsupportedVersion = errors.New("ogg: unsupported OpusHead version")

	// ErrNonUTF8 indicates a vendor string or comment that is not valid UTF-8.
	ErrNonUTF8 = errors.New("ogg: OpusTags string is not valid UTF-8")

	// ErrUnexpectedEOS indicates the stream ended unexpectedly.
	// This occurs when a page is truncated or data ends mid-packet.
	ErrUnexpectedEOS = errors.New("ogg: unexpected end of stream")
)
