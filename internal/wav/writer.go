// Package wav writes 16-bit PCM RIFF/WAVE files.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// HeaderSize is the size of the canonical PCM WAVE header.
const HeaderSize = 44

// ErrTooLarge is returned when the data would overflow the 32-bit RIFF sizes.
var ErrTooLarge = errors.New("wav: data exceeds 4 GiB")

// Writer writes interleaved int16 samples to a WAVE file. The header is
// written as a placeholder and its sizes are filled in by Close.
type Writer struct {
	w          io.WriteSeeker
	sampleRate int
	channels   int
	dataSize   uint32
	buf        []byte
}

// NewWriter writes a placeholder header to w and returns a Writer for PCM
// at sampleRate with the given channel count.
func NewWriter(w io.WriteSeeker, sampleRate, channels int) (*Writer, error) {
	if channels < 1 || channels > math.MaxUint16/2 {
		return nil, fmt.Errorf("wav: invalid channel count %d", channels)
	}
	if sampleRate < 1 {
		return nil, fmt.Errorf("wav: invalid sample rate %d", sampleRate)
	}
	if _, err := w.Write(make([]byte, HeaderSize)); err != nil {
		return nil, err
	}
	return &Writer{w: w, sampleRate: sampleRate, channels: channels}, nil
}

// Write appends interleaved samples.
func (w *Writer) Write(samples []int16) error {
	if len(samples) == 0 {
		return nil
	}
	if uint64(w.dataSize)+2*uint64(len(samples)) > math.MaxUint32-(HeaderSize-8) {
		return ErrTooLarge
	}

	if cap(w.buf) < 2*len(samples) {
		w.buf = make([]byte, 2*len(samples))
	}
	buf := w.buf[:2*len(samples)]
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(s))
	}

	written, err := w.w.Write(buf)
	w.dataSize += uint32(written)
	return err
}

// DataSize returns the number of PCM bytes written so far.
func (w *Writer) DataSize() uint32 {
	return w.dataSize
}

// Close rewrites the header with the final sizes. It does not close the
// underlying writer.
func (w *Writer) Close() error {
	header := make([]byte, HeaderSize)
	writeHeader(header, w.dataSize, w.sampleRate, w.channels)

	if _, err := w.w.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("wav: seek to header: %w", err)
	}
	if _, err := w.w.Write(header); err != nil {
		return fmt.Errorf("wav: write header: %w", err)
	}
	_, err := w.w.Seek(0, io.SeekEnd)
	return err
}

func writeHeader(dst []byte, dataSize uint32, sampleRate, channels int) {
	copy(dst[0:4], "RIFF")
	binary.LittleEndian.PutUint32(dst[4:8], HeaderSize-8+dataSize)
	copy(dst[8:12], "WAVE")
	copy(dst[12:16], "fmt ")
	binary.LittleEndian.PutUint32(dst[16:20], 16)
	binary.LittleEndian.PutUint16(dst[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(dst[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(dst[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(dst[28:32], uint32(sampleRate*channels*2))
	binary.LittleEndian.PutUint16(dst[32:34], uint16(channels*2))
	binary.LittleEndian.PutUint16(dst[34:36], 16)
	copy(dst[36:40], "data")
	binary.LittleEndian.PutUint32(dst[40:44], dataSize)
}
