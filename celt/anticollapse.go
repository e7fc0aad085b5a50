package celt

import "math"

// antiCollapse refills short blocks that received no pulses in a transient
// frame with noise, at a level bounded by the pulse depth of the band and
// by the energy drop from the two previous frames.
//
// x holds the channels back to back, size coefficients each. logE,
// prev1LogE and prev2LogE use the two-slot band energy layout.
//
// Reference: libopus celt/bands.c anti_collapse()
func antiCollapse(x []float64, collapseMasks []uint8, lm, channels, size, start, end int,
	logE, prev1LogE, prev2LogE []float64, pulses []int, seed uint32) {
	for i := start; i < end; i++ {
		n0 := eBands[i+1] - eBands[i]
		// Depth in 1/8 bits.
		depth := (1 + pulses[i]) / n0 >> lm
		thresh := 0.5 * math.Exp2(-0.125*float64(depth))
		sqrt1 := 1 / math.Sqrt(float64(n0<<lm))

		for c := 0; c < channels; c++ {
			prev1 := prev1LogE[c*MaxBands+i]
			prev2 := prev2LogE[c*MaxBands+i]
			if channels == 1 {
				prev1 = max(prev1, prev1LogE[MaxBands+i])
				prev2 = max(prev2, prev2LogE[MaxBands+i])
			}
			ediff := max(0, logE[c*MaxBands+i]-min(prev1, prev2))
			// Short blocks carry less energy than long ones, hence the
			// factor of 2 or 2*sqrt(2).
			r := 2 * math.Exp2(-ediff)
			if lm == 3 {
				r *= 1.41421356
			}
			r = min(thresh, r) * sqrt1

			bx := x[c*size+(eBands[i]<<lm):]
			renormalize := false
			for k := 0; k < 1<<lm; k++ {
				if collapseMasks[i*channels+c]&(1<<uint(k)) != 0 {
					continue
				}
				for j := 0; j < n0; j++ {
					seed = lcgRand(seed)
					if seed&0x8000 != 0 {
						bx[(j<<lm)+k] = r
					} else {
						bx[(j<<lm)+k] = -r
					}
				}
				renormalize = true
			}
			if renormalize {
				renormaliseVector(bx, n0<<lm, 1.0)
			}
		}
	}
}
