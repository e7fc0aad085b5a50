// Package types defines the Opus mode and bandwidth enums shared by the
// packet layer and the CELT decoder.
// This package exists to break import cycles between packages.
package types

// Mode represents the Opus coding mode selected by the TOC config.
type Mode uint8

const (
	ModeSILK   Mode = iota // SILK-only mode (configs 0-11)
	ModeHybrid             // Hybrid SILK+CELT (configs 12-15)
	ModeCELT               // CELT-only mode (configs 16-31)
)

// String returns the mode name used in logs and by the inspect command.
func (m Mode) String() string {
	switch m {
	case ModeSILK:
		return "silk"
	case ModeHybrid:
		return "hybrid"
	case ModeCELT:
		return "celt"
	default:
		return "unknown"
	}
}

// Bandwidth represents the audio bandwidth.
type Bandwidth uint8

const (
	BandwidthNarrowband    Bandwidth = iota // 4kHz audio, 8kHz sample rate
	BandwidthMediumband                     // 6kHz audio, 12kHz sample rate
	BandwidthWideband                       // 8kHz audio, 16kHz sample rate
	BandwidthSuperwideband                  // 12kHz audio, 24kHz sample rate
	BandwidthFullband                       // 20kHz audio, 48kHz sample rate
)

// String returns the conventional short name (NB, MB, WB, SWB, FB).
func (b Bandwidth) String() string {
	switch b {
	case BandwidthNarrowband:
		return "NB"
	case BandwidthMediumband:
		return "MB"
	case BandwidthWideband:
		return "WB"
	case BandwidthSuperwideband:
		return "SWB"
	case BandwidthFullband:
		return "FB"
	default:
		return "unknown"
	}
}
