// decoder.go implements the public Decoder API for Opus decoding.

package aquarana

import (
	"fmt"

	"github.com/mycrl/aquarana/celt"
)

// SampleRate is the rate of all decoded PCM.
const SampleRate = 48000

// Decoder decodes CELT-only Opus packets into PCM audio samples at 48 kHz.
//
// A Decoder instance maintains internal state and is NOT safe for concurrent use.
// Each goroutine should create its own Decoder instance.
//
// The mode, bandwidth and frame duration are read from the TOC byte of
// every packet. SILK and hybrid packets are recognized and rejected with
// ErrUnsupportedMode.
type Decoder struct {
	celtDecoder   *celt.Decoder
	channels      int
	lastFrameSize int // Duration of the last decoded packet, per channel

	gain        float32    // Linear factor from SetGain
	gainQ78     int16      // Gain as set, in Q7.8 dB
	softClipMem [2]float32 // Soft clip curve carried between int16 packets
	scratch     []float32  // Float output of the int16 path
}

// NewDecoder creates a new Opus decoder.
//
// channels must be 1 (mono) or 2 (stereo).
func NewDecoder(channels int) (*Decoder, error) {
	if channels < 1 || channels > 2 {
		return nil, ErrInvalidChannels
	}
	return &Decoder{
		celtDecoder:   celt.NewDecoder(channels),
		channels:      channels,
		lastFrameSize: 960, // Default 20ms at 48kHz
		gain:          1,
	}, nil
}

// Decode decodes an Opus packet into interleaved int16 PCM samples.
//
// pcm must hold frameSize * frameCount * channels samples, where frameSize
// and frameCount come from the packet's TOC and frame code.
//
// The float output is scaled by the gain, soft-clipped into [-1, 1] and
// then converted, so loud passages are bent rather than hard-clipped.
//
// Returns the number of samples per channel decoded, or an error. When an
// error is returned no frame of the packet has been decoded and the
// decoder state is unchanged.
func (d *Decoder) Decode(packet []byte, pcm []int16) (int, error) {
	info, err := d.check(packet, len(pcm))
	if err != nil {
		return 0, err
	}
	d.scratch = grow(d.scratch, info.Duration()*d.channels)
	n, err := d.decodeFrames(info, d.scratch)
	if err != nil {
		return 0, err
	}
	buf := d.scratch[:n*d.channels]
	softClip(buf, d.channels, d.softClipMem[:d.channels])
	for i, v := range buf {
		pcm[i] = celt.FloatToInt16(v)
	}
	return n, nil
}

// DecodeFloat decodes an Opus packet into interleaved float32 PCM samples
// nominally in [-1, 1], scaled by the gain. Unlike Decode it does not soft
// clip, and it ends any soft clip curve carried by the int16 path.
func (d *Decoder) DecodeFloat(packet []byte, pcm []float32) (int, error) {
	info, err := d.check(packet, len(pcm))
	if err != nil {
		return 0, err
	}
	n, err := d.decodeFrames(info, pcm)
	if err != nil {
		return 0, err
	}
	d.softClipMem = [2]float32{}
	return n, nil
}

// SetGain sets a gain in Q7.8 dB applied to every decoded sample, like
// libopus OPUS_SET_GAIN. The Ogg Opus output gain is meant for it.
func (d *Decoder) SetGain(q78 int16) {
	d.gainQ78 = q78
	d.gain = gainFactor(q78)
}

// Gain returns the gain set with SetGain, in Q7.8 dB.
func (d *Decoder) Gain() int16 {
	return d.gainQ78
}

// check validates packet and the output size.
func (d *Decoder) check(packet []byte, pcmLen int) (PacketInfo, error) {
	info, err := d.inspect(packet)
	if err != nil {
		return PacketInfo{}, err
	}
	if pcmLen < info.Duration()*d.channels {
		return PacketInfo{}, ErrBufferTooSmall
	}
	return info, nil
}

// decodeFrames decodes the frames of a checked packet back to back into
// pcm and applies the gain.
func (d *Decoder) decodeFrames(info PacketInfo, pcm []float32) (int, error) {
	toc := info.TOC
	d.celtDecoder.SetBandwidth(toc.Bandwidth)
	step := toc.FrameSize * d.channels
	for i, frame := range info.Frames {
		if _, err := d.celtDecoder.DecodeFloat(frame, toc.FrameSize, d.channels, pcm[i*step:(i+1)*step]); err != nil {
			return 0, fmt.Errorf("frame %d: %w", i, err)
		}
	}

	total := info.Duration()
	applyGain(pcm[:total*d.channels], d.gain)
	d.lastFrameSize = total
	return total, nil
}

// inspect parses packet and checks everything that would make a frame
// decode fail, so a rejected packet never leaves the decoder half-updated.
func (d *Decoder) inspect(packet []byte) (PacketInfo, error) {
	info, err := ParsePacket(packet)
	if err != nil {
		return PacketInfo{}, err
	}
	toc := info.TOC
	if toc.Mode != ModeCELT {
		return PacketInfo{}, fmt.Errorf("%w: %s", ErrUnsupportedMode, toc.Mode)
	}
	if toc.Channels() != d.channels {
		return PacketInfo{}, celt.ErrChannelMismatch
	}
	for i, size := range info.FrameSizes {
		if size < 2 {
			return PacketInfo{}, fmt.Errorf("frame %d: %w", i, celt.ErrFrameLength)
		}
	}
	return info, nil
}

// Reset clears the decoder state for a new stream.
// Call this when starting to decode a new audio stream. The gain is kept.
func (d *Decoder) Reset() {
	d.celtDecoder.Reset()
	d.lastFrameSize = 960
	d.softClipMem = [2]float32{}
}

// Channels returns the number of audio channels (1 or 2).
func (d *Decoder) Channels() int {
	return d.channels
}

// SampleRate returns the output sample rate, which is always 48000 Hz.
func (d *Decoder) SampleRate() int {
	return SampleRate
}

// LastPacketDuration returns the number of samples per channel of the last
// successfully decoded packet.
func (d *Decoder) LastPacketDuration() int {
	return d.lastFrameSize
}

// FinalRange returns the range coder state after the last decoded frame.
// It matches libopus OPUS_GET_FINAL_RANGE for the same packet.
func (d *Decoder) FinalRange() uint32 {
	return d.celtDecoder.FinalRange()
}
