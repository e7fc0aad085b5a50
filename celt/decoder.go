package celt

import (
	"math"

	"github.com/mycrl/aquarana/rangecoding"
	"github.com/mycrl/aquarana/types"
)

// Decoder decodes CELT frames of one stream.
// It maintains state across frames for proper audio continuity via
// overlap-add synthesis, energy prediction and the post-filter.
//
// A Decoder is not safe for concurrent use. Frames of a stream must be
// decoded in order.
//
// Reference: RFC 6716 Section 4.3, libopus celt/celt_decoder.c
type Decoder struct {
	// Configuration
	channels int // 1 or 2
	endBand  int // Last coded band + 1, set from the Opus bandwidth

	// Range decoder, reinitialized for every frame
	rd rangecoding.Decoder

	// Synthesis history per channel: decodeBufferSize past samples plus
	// the overlap tail of the last IMDCT.
	decodeMem [2][]float64

	// Energy state, two slots of MaxBands per array (see energy.go)
	oldBandE [2 * MaxBands]float64 // Current frame band energies
	oldLogE  [2 * MaxBands]float64 // Previous frame, for anti-collapse
	oldLogE2 [2 * MaxBands]float64 // Two frames ago, for anti-collapse

	// Postfilter state for the cross-fade between frames
	postfilter    postfilterParams
	postfilterOld postfilterParams

	preemphMem [2]float64 // De-emphasis filter state
	rng        uint32     // Folding seed; final range of the last frame

	// Scratch buffers, reused across frames
	x             []float64 // Normalized shapes, channels back to back
	freq          []float64 // Denormalized spectrum of one channel
	out           []float64 // De-emphasized output, interleaved
	collapseMasks [2 * MaxBands]uint8
	tfRes         [MaxBands]int
	offsets       [MaxBands]int
	caps          [MaxBands]int
	alloc         allocation
	bands         bandsScratch
	imdct         imdctScratch
}

// NewDecoder creates a new CELT decoder with the given number of channels.
// Valid channel counts are 1 (mono) or 2 (stereo); anything else panics.
// The decoder starts in the same state as after Reset.
func NewDecoder(channels int) *Decoder {
	if channels < 1 || channels > 2 {
		panic("celt: channels must be 1 or 2")
	}
	d := &Decoder{
		channels: channels,
		x:        make([]float64, 2*MaxFrameSize),
		freq:     make([]float64, MaxFrameSize),
		out:      make([]float64, 2*MaxFrameSize),
	}
	for c := range d.decodeMem {
		d.decodeMem[c] = make([]float64, decodeBufferSize+Overlap)
	}
	d.bands.init()
	d.Reset()
	return d
}

// Reset clears all inter-frame state, as if no frame had been decoded.
func (d *Decoder) Reset() {
	d.endBand = MaxBands
	for c := range d.decodeMem {
		clear(d.decodeMem[c])
	}
	clear(d.oldBandE[:])
	for i := range d.oldLogE {
		d.oldLogE[i] = energyFloor
		d.oldLogE2[i] = energyFloor
	}
	d.postfilter = postfilterParams{}
	d.postfilterOld = postfilterParams{}
	d.preemphMem = [2]float64{}
	d.rng = 0
}

// Channels returns the channel count the decoder was created with.
func (d *Decoder) Channels() int { return d.channels }

// SetEndBand sets the number of coded bands, clamped to [1, MaxBands].
func (d *Decoder) SetEndBand(end int) {
	d.endBand = min(max(end, 1), MaxBands)
}

// SetBandwidth sets the coded bandwidth from an Opus TOC bandwidth.
func (d *Decoder) SetBandwidth(bw types.Bandwidth) {
	d.SetEndBand(EndBand(bw))
}

// EndBand returns the current number of coded bands.
func (d *Decoder) EndBand() int { return d.endBand }

// FinalRange returns the range coder state after the last decoded frame.
// It matches the value libopus reports through OPUS_GET_FINAL_RANGE.
func (d *Decoder) FinalRange() uint32 { return d.rng }

// BandEnergies returns a copy of the current band energies in log2 units,
// MaxBands values per channel.
func (d *Decoder) BandEnergies() []float64 {
	out := make([]float64, d.channels*MaxBands)
	copy(out, d.oldBandE[:len(out)])
	return out
}

// Decode decodes one CELT frame into pcm as interleaved 16-bit samples
// and returns the number of samples per channel (frameSize).
func (d *Decoder) Decode(frame []byte, frameSize, channels int, pcm []int16) (int, error) {
	if err := d.check(frame, frameSize, channels, len(pcm)); err != nil {
		return 0, err
	}
	n := d.decodeFrame(frame, frameSize)
	for i, v := range d.out[:n*d.channels] {
		pcm[i] = FloatToInt16(float32(v))
	}
	return n, nil
}

// DecodeFloat decodes one CELT frame into pcm as interleaved samples
// nominally in [-1, 1] and returns the number of samples per channel.
func (d *Decoder) DecodeFloat(frame []byte, frameSize, channels int, pcm []float32) (int, error) {
	if err := d.check(frame, frameSize, channels, len(pcm)); err != nil {
		return 0, err
	}
	n := d.decodeFrame(frame, frameSize)
	for i, v := range d.out[:n*d.channels] {
		pcm[i] = float32(v)
	}
	return n, nil
}

// check validates a decode call before any state is touched.
func (d *Decoder) check(frame []byte, frameSize, channels, pcmLen int) error {
	if !ValidFrameSize(frameSize) {
		return ErrInvalidFrameSize
	}
	if len(frame) < minFrameBytes || len(frame) > MaxFrameBytes {
		return ErrFrameLength
	}
	if channels != d.channels {
		return ErrChannelMismatch
	}
	if pcmLen < frameSize*channels {
		return ErrBufferTooSmall
	}
	return nil
}

// decodeFrame runs the whole CELT decode of one validated frame and leaves
// frameSize*channels interleaved samples in d.out.
//
// Reference: libopus celt/celt_decoder.c celt_decode_with_ec()
func (d *Decoder) decodeFrame(frame []byte, frameSize int) int {
	mode, _ := ModeForFrameSize(frameSize)
	lm := mode.LM
	n := frameSize
	channels := d.channels
	start, end := 0, d.endBand

	rd := &d.rd
	rd.Init(frame)

	if channels == 1 {
		for i := 0; i < MaxBands; i++ {
			d.oldBandE[i] = max(d.oldBandE[i], d.oldBandE[MaxBands+i])
		}
	}

	totalBits := len(frame) * 8
	tell := rd.Tell()
	silence := false
	if tell >= totalBits {
		silence = true
	} else if tell == 1 {
		silence = rd.DecodeBit(15) != 0
	}
	if silence {
		// Pretend we've read all the remaining bits.
		rd.Exhaust()
		tell = totalBits
	}

	pf := postfilterParams{}
	if start == 0 && tell+16 <= totalBits {
		if rd.DecodeBit(1) != 0 {
			octave := int(rd.DecodeUniform(6))
			pf.period = (16 << octave) + int(rd.DecodeRawBits(uint(4+octave))) - 1
			qg := int(rd.DecodeRawBits(3))
			if rd.Tell()+2 <= totalBits {
				pf.tapset = rd.DecodeICDF(tapsetICDF, 2)
			}
			pf.gain = 0.09375 * float64(qg+1)
		}
		tell = rd.Tell()
	}

	transient := false
	if lm > 0 && tell+3 <= totalBits {
		transient = rd.DecodeBit(3) != 0
		tell = rd.Tell()
	}
	intra := false
	if tell+3 <= totalBits {
		intra = rd.DecodeBit(3) != 0
	}

	unquantCoarseEnergy(rd, start, end, d.oldBandE[:], intra, lm, channels)
	tfDecode(rd, start, end, transient, d.tfRes[:], lm)

	spread := spreadNormal
	if rd.Tell()+4 <= totalBits {
		spread = rd.DecodeICDF(spreadICDF, 5)
	}

	initCaps(d.caps[:], lm, channels)

	// Dynamic allocation: unary-coded boosts per band.
	dynallocLogp := 6
	totalBits <<= bitRes
	tell = rd.TellFrac()
	for i := start; i < end; i++ {
		width := channels * bandWidth(i, lm)
		// Quanta is 6 bits, but no more than 1 bit/sample and no less
		// than 1/8 bit/sample.
		quanta := min(width<<bitRes, max(6<<bitRes, width))
		loopLogp := dynallocLogp
		boost := 0
		for tell+(loopLogp<<bitRes) < totalBits && boost < d.caps[i] {
			flag := rd.DecodeBit(uint(loopLogp))
			tell = rd.TellFrac()
			if flag == 0 {
				break
			}
			boost += quanta
			totalBits -= quanta
			loopLogp = 1
		}
		d.offsets[i] = boost
		// Making dynalloc more likely.
		if boost > 0 {
			dynallocLogp = max(2, dynallocLogp-1)
		}
	}

	allocTrim := 5
	if tell+(6<<bitRes) <= totalBits {
		allocTrim = rd.DecodeICDF(trimICDF, 7)
	}

	bits := (len(frame) * 8 << bitRes) - rd.TellFrac() - 1
	antiCollapseRsv := 0
	if transient && lm >= 2 && bits >= (lm+2)<<bitRes {
		antiCollapseRsv = 1 << bitRes
	}
	bits -= antiCollapseRsv

	a := &d.alloc
	computeAllocation(rd, start, end, d.offsets[:], d.caps[:], allocTrim, bits, channels, lm, a)
	unquantFineEnergy(rd, start, end, d.oldBandE[:], a.fineQuant[:], channels)

	// Make room for the new frame in the synthesis history.
	for c := 0; c < channels; c++ {
		copy(d.decodeMem[c], d.decodeMem[c][n:decodeBufferSize+Overlap/2])
	}

	x := d.x[:channels*n]
	var y []float64
	if channels == 2 {
		y = x[n:]
	}
	quantAllBands(rd, &bandParams{
		start:       start,
		end:         end,
		lm:          lm,
		channels:    channels,
		shortBlocks: transient,
		spread:      spread,
		tfRes:       d.tfRes[:],
		totalBits:   len(frame)*(8<<bitRes) - antiCollapseRsv,
		alloc:       a,
	}, x[:n], y, d.collapseMasks[:], &d.rng, &d.bands)

	antiCollapseOn := false
	if antiCollapseRsv > 0 {
		antiCollapseOn = rd.DecodeRawBits(1) != 0
	}

	unquantEnergyFinalise(rd, start, end, d.oldBandE[:], a.fineQuant[:], a.finePriority[:], len(frame)*8-rd.Tell(), channels)

	if antiCollapseOn {
		antiCollapse(x, d.collapseMasks[:], lm, channels, n, start, end,
			d.oldBandE[:], d.oldLogE[:], d.oldLogE2[:], a.pulses[:], d.rng)
	}

	if silence {
		for i := range d.oldBandE {
			d.oldBandE[i] = energyFloor
		}
	}

	var outSyn [2][]float64
	for c := 0; c < channels; c++ {
		outSyn[c] = d.decodeMem[c][decodeBufferSize-n:]
	}
	d.synthesize(x, outSyn, start, end, lm, transient, silence)

	// Post-filter: old to current over the first short block, then current
	// to new over the rest of the frame.
	for c := 0; c < channels; c++ {
		off := decodeBufferSize - n
		combFilter(d.decodeMem[c], off, ShortBlockSize, d.postfilterOld, d.postfilter, Overlap)
		if lm != 0 {
			combFilter(d.decodeMem[c], off+ShortBlockSize, n-ShortBlockSize, d.postfilter, pf, Overlap)
		}
	}
	d.postfilterOld = d.postfilter
	d.postfilter = pf
	if lm != 0 {
		d.postfilterOld = d.postfilter
	}

	if channels == 1 {
		copy(d.oldBandE[MaxBands:], d.oldBandE[:MaxBands])
	}

	// Energy history for anti-collapse.
	if !transient {
		d.oldLogE2 = d.oldLogE
		d.oldLogE = d.oldBandE
	} else {
		for i := range d.oldLogE {
			d.oldLogE[i] = min(d.oldLogE[i], d.oldBandE[i])
		}
	}
	for c := 0; c < 2; c++ {
		for i := 0; i < MaxBands; i++ {
			if i >= start && i < end {
				continue
			}
			d.oldBandE[c*MaxBands+i] = 0
			d.oldLogE[c*MaxBands+i] = energyFloor
			d.oldLogE2[c*MaxBands+i] = energyFloor
		}
	}
	d.rng = rd.Range()

	d.deemphasis(n)
	return n
}

// deemphasis undoes the encoder pre-emphasis and interleaves the channels
// into d.out, scaled to [-1, 1].
func (d *Decoder) deemphasis(n int) {
	channels := d.channels
	for c := 0; c < channels; c++ {
		src := d.decodeMem[c][decodeBufferSize-n : decodeBufferSize]
		mem := d.preemphMem[c]
		for j, v := range src {
			tmp := v + 1e-30 + mem
			mem = preemphCoef * tmp
			d.out[j*channels+c] = tmp * (1.0 / 32768)
		}
		d.preemphMem[c] = mem
	}
}

// FloatToInt16 converts a sample in [-1, 1] to 16-bit PCM. The product is
// taken in float32, saturated and rounded to nearest even, as libopus
// FLOAT2INT16 does.
func FloatToInt16(v float32) int16 {
	v *= 32768
	v = max(-32768, min(32767, v))
	return int16(math.RoundToEven(float64(v)))
}
