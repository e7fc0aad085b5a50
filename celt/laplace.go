package celt

import "github.com/mycrl/aquarana/rangecoding"

// Laplace coding constants. Every value keeps a probability of at least
// laplaceMinP/32768 so that any residual stays codable.
const (
	laplaceLogMinP = 0
	laplaceMinP    = 1 << laplaceLogMinP
	laplaceNMin    = 16
)

// laplaceFreq1 returns the frequency of a residual of magnitude 1, given
// the frequency fs0 of zero and the geometric decay in Q14.
func laplaceFreq1(fs0 uint32, decay int) uint32 {
	ft := 32768 - laplaceMinP*(2*laplaceNMin) - fs0
	return ft * uint32(16384-decay) >> 15
}

// decodeLaplace decodes one integer from a two-sided geometric distribution
// where fs is the probability of zero in Q15.
//
// Reference: libopus celt/laplace.c ec_laplace_decode()
func decodeLaplace(rd *rangecoding.Decoder, fs uint32, decay int) int {
	val := 0
	fm := rd.DecodeBin(15)
	fl := uint32(0)
	if fm >= fs {
		val++
		fl = fs
		fs = laplaceFreq1(fs, decay) + laplaceMinP
		for fs > laplaceMinP && fm >= fl+2*fs {
			fs *= 2
			fl += fs
			fs = uint32((int(fs-2*laplaceMinP) * decay) >> 15)
			fs += laplaceMinP
			val++
		}
		// Everything beyond that has probability laplaceMinP.
		if fs <= laplaceMinP {
			di := (fm - fl) >> (laplaceLogMinP + 1)
			val += int(di)
			fl += 2 * di * laplaceMinP
		}
		if fm < fl+fs {
			val = -val
		} else {
			fl += fs
		}
	}
	rd.Update(fl, min(fl+fs, 32768), 32768)
	return val
}
