package celt

import "github.com/mycrl/aquarana/rangecoding"

// tfDecode reads the per-band time/frequency resolution changes and
// resolves them through tfSelectTable into tfRes.
//
// Reference: libopus celt/celt_decoder.c tf_decode()
func tfDecode(rd *rangecoding.Decoder, start, end int, transient bool, tfRes []int, lm int) {
	budget := rd.StorageBits()
	tell := rd.Tell()
	t := b2i(transient)
	logp := 4
	if transient {
		logp = 2
	}
	selectRsv := 0
	if lm > 0 && tell+logp+1 <= budget {
		selectRsv = 1
	}
	budget -= selectRsv

	changed, curr := 0, 0
	for i := start; i < end; i++ {
		if tell+logp <= budget {
			curr ^= rd.DecodeBit(uint(logp))
			tell = rd.Tell()
			changed |= curr
		}
		tfRes[i] = curr
		if transient {
			logp = 4
		} else {
			logp = 5
		}
	}

	tfSelect := 0
	if selectRsv != 0 && tfSelectTable[lm][4*t+changed] != tfSelectTable[lm][4*t+2+changed] {
		tfSelect = rd.DecodeBit(1)
	}
	for i := start; i < end; i++ {
		tfRes[i] = tfSelectTable[lm][4*t+2*tfSelect+tfRes[i]]
	}
}
