package celt

import "math"

// denormaliseBands scales the unit-norm shapes in x by the decoded band
// energies into freq. Bins below start and from end upward are zero; a
// silent frame is zero everywhere.
//
// Reference: libopus celt/bands.c denormalise_bands()
func denormaliseBands(x, freq []float64, bandLogE []float64, start, end, m int, silence bool) {
	n := m * ShortBlockSize
	bound := m * eBands[end]
	if silence {
		bound = 0
		start, end = 0, 0
	}
	clear(freq[:m*eBands[start]])
	for i := start; i < end; i++ {
		lg := bandLogE[i] + eMeans[i]
		g := math.Exp2(min(32, lg))
		for j := m * eBands[i]; j < m*eBands[i+1]; j++ {
			freq[j] = x[j] * g
		}
	}
	clear(freq[bound:n])
}

// synthesize turns the decoded shapes of every channel into time-domain
// samples in outSyn[c], overlap-adding with what the channel buffer
// already holds.
//
// Reference: libopus celt/celt_decoder.c celt_synthesis()
func (d *Decoder) synthesize(x []float64, outSyn [2][]float64, start, end, lm int, transient, silence bool) {
	m := 1 << lm
	n := ShortBlockSize << lm
	blocks, nb, shift := 1, n, MaxLM-lm
	if transient {
		blocks, nb, shift = m, ShortBlockSize, MaxLM
	}
	freq := d.freq[:n]
	for c := 0; c < d.channels; c++ {
		denormaliseBands(x[c*n:], freq, d.oldBandE[c*MaxBands:], start, end, m, silence)
		for b := 0; b < blocks; b++ {
			imdctBackward(freq[b:], outSyn[c][nb*b:], shift, blocks, &d.imdct)
		}
	}
}
