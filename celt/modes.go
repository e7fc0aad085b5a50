package celt

import "github.com/mycrl/aquarana/types"

// Fixed parameters of the 48 kHz CELT mode.
const (
	MaxBands         = 21   // Number of coded bands
	Overlap          = 120  // Window overlap in samples
	ShortBlockSize   = 120  // Size of one short MDCT
	MaxLM            = 3    // Largest log2 frame size multiplier
	MaxFrameSize     = 960  // Samples per channel of a 20 ms frame
	MaxFrameBytes    = 1275 // Largest CELT frame accepted
	minFrameBytes    = 2
	decodeBufferSize = 2048
	allocVectors     = 11
	energyFloor      = -28.0
	preemphCoef      = 0.8500061035
)

// ModeConfig contains the frame-size dependent parameters of a CELT frame.
type ModeConfig struct {
	FrameSize   int // Samples at 48kHz: 120, 240, 480, 960
	ShortBlocks int // Number of short MDCTs in a transient frame: 1, 2, 4, 8
	LM          int // Log mode index: 0, 1, 2, 3
}

// ModeForFrameSize returns the mode configuration for the given frame size.
func ModeForFrameSize(frameSize int) (ModeConfig, error) {
	var lm int
	switch frameSize {
	case 120:
		lm = 0
	case 240:
		lm = 1
	case 480:
		lm = 2
	case 960:
		lm = 3
	default:
		return ModeConfig{}, ErrInvalidFrameSize
	}
	return ModeConfig{FrameSize: frameSize, ShortBlocks: 1 << lm, LM: lm}, nil
}

// ValidFrameSize reports whether frameSize is a CELT duration class.
func ValidFrameSize(frameSize int) bool {
	_, err := ModeForFrameSize(frameSize)
	return err == nil
}

// EndBand returns the number of coded bands for an Opus bandwidth.
// Mediumband is coded like wideband in CELT.
func EndBand(bw types.Bandwidth) int {
	switch bw {
	case types.BandwidthNarrowband:
		return 13
	case types.BandwidthMediumband, types.BandwidthWideband:
		return 17
	case types.BandwidthSuperwideband:
		return 19
	default:
		return MaxBands
	}
}

// bandWidth returns the number of MDCT bins of band i at the given LM.
func bandWidth(i, lm int) int {
	return (eBands[i+1] - eBands[i]) << lm
}
