package celt

import "github.com/mycrl/aquarana/rangecoding"

// Allocation constants, in 1/8 bit units unless noted.
const (
	bitRes        = rangecoding.BITRES
	allocSteps    = 6
	fineOffset    = 21
	maxFineBits   = 8
	logMaxPseudo  = 6
	qthetaOffset  = 4
	qthetaOffset2 = 16 // Two-phase stereo offset, N=2
)

// allocation is the per-frame result of the bit allocator.
type allocation struct {
	pulses       [MaxBands]int // PVQ budget per band, 1/8 bits
	fineQuant    [MaxBands]int // Fine energy bits per channel
	finePriority [MaxBands]int // 0 = first in line for leftover bits
	intensity    int           // First band coded with intensity stereo
	dualStereo   bool
	balance      int
	codedBands   int
}

// initCaps returns the maximum useful allocation of each band.
//
// Reference: libopus celt/celt.c init_caps()
func initCaps(caps []int, lm, channels int) {
	for i := 0; i < MaxBands; i++ {
		n := bandWidth(i, lm)
		caps[i] = (int(cacheCaps[MaxBands*(2*lm+channels-1)+i]) + 64) * channels * n >> 2
	}
}

// computeAllocation splits total (1/8 bits) between bands. It reads the
// band-skip flags, and for stereo the intensity and dual-stereo parameters,
// from rd.
//
// Reference: libopus celt/rate.c clt_compute_allocation()
func computeAllocation(rd *rangecoding.Decoder, start, end int, offsets, caps []int, allocTrim int, total, channels, lm int, a *allocation) {
	total = max(total, 0)
	skipStart := start

	// Reserve a bit to signal the end of manually skipped bands.
	skipRsv := 0
	if total >= 1<<bitRes {
		skipRsv = 1 << bitRes
	}
	total -= skipRsv

	intensityRsv, dualStereoRsv := 0, 0
	if channels == 2 {
		intensityRsv = log2FracTable[end-start]
		if intensityRsv > total {
			intensityRsv = 0
		} else {
			total -= intensityRsv
			if total >= 1<<bitRes {
				dualStereoRsv = 1 << bitRes
			}
			total -= dualStereoRsv
		}
	}

	var bits1, bits2, thresh, trimOffset [MaxBands]int
	for j := start; j < end; j++ {
		w := eBands[j+1] - eBands[j]
		// Below this threshold, we're sure not to allocate any PVQ bits.
		thresh[j] = max(channels<<bitRes, (3*w<<lm<<bitRes)>>4)
		// Tilt of the allocation curve.
		trimOffset[j] = channels * w * (allocTrim - 5 - lm) * (end - j - 1) * (1 << (lm + bitRes)) >> 6
		if w<<lm == 1 {
			trimOffset[j] -= channels << bitRes
		}
	}

	lo, hi := 1, allocVectors-1
	for lo <= hi {
		done := false
		psum := 0
		mid := (lo + hi) >> 1
		for j := end - 1; j >= start; j-- {
			w := eBands[j+1] - eBands[j]
			bitsj := channels * w * bandAllocation[mid][j] << lm >> 2
			if bitsj > 0 {
				bitsj = max(0, bitsj+trimOffset[j])
			}
			bitsj += offsets[j]
			if bitsj >= thresh[j] || done {
				done = true
				psum += min(bitsj, caps[j])
			} else if bitsj >= channels<<bitRes {
				psum += channels << bitRes
			}
		}
		if psum > total {
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}
	hi = lo
	lo--

	for j := start; j < end; j++ {
		w := eBands[j+1] - eBands[j]
		bits1j := channels * w * bandAllocation[lo][j] << lm >> 2
		var bits2j int
		if hi >= allocVectors {
			bits2j = caps[j]
		} else {
			bits2j = channels * w * bandAllocation[hi][j] << lm >> 2
		}
		if bits1j > 0 {
			bits1j = max(0, bits1j+trimOffset[j])
		}
		if bits2j > 0 {
			bits2j = max(0, bits2j+trimOffset[j])
		}
		if lo > 0 {
			bits1j += offsets[j]
		}
		bits2j += offsets[j]
		if offsets[j] > 0 {
			skipStart = j
		}
		bits1[j] = bits1j
		bits2[j] = max(0, bits2j-bits1j)
	}

	interpBits2Pulses(rd, start, end, skipStart, bits1[:], bits2[:], thresh[:], caps,
		total, skipRsv, intensityRsv, dualStereoRsv, channels, lm, a)
}

// interpBits2Pulses interpolates between the two bracketing allocation
// vectors, then decides band skipping, stereo parameters and the split
// between fine energy and PVQ bits.
//
// Reference: libopus celt/rate.c interp_bits2pulses()
func interpBits2Pulses(rd *rangecoding.Decoder, start, end, skipStart int, bits1, bits2, thresh, caps []int,
	total, skipRsv, intensityRsv, dualStereoRsv, channels, lm int, a *allocation) {
	allocFloor := channels << bitRes
	stereo := 0
	if channels > 1 {
		stereo = 1
	}
	logM := lm << bitRes
	bits := a.pulses[:]
	ebits := a.fineQuant[:]
	finePriority := a.finePriority[:]

	lo, hi := 0, 1<<allocSteps
	for i := 0; i < allocSteps; i++ {
		mid := (lo + hi) >> 1
		psum := 0
		done := false
		for j := end - 1; j >= start; j-- {
			tmp := bits1[j] + (mid * bits2[j] >> allocSteps)
			if tmp >= thresh[j] || done {
				done = true
				psum += min(tmp, caps[j])
			} else if tmp >= allocFloor {
				psum += allocFloor
			}
		}
		if psum > total {
			hi = mid
		} else {
			lo = mid
		}
	}

	psum := 0
	done := false
	for j := end - 1; j >= start; j-- {
		tmp := bits1[j] + (lo * bits2[j] >> allocSteps)
		if tmp < thresh[j] && !done {
			if tmp >= allocFloor {
				tmp = allocFloor
			} else {
				tmp = 0
			}
		} else {
			done = true
		}
		tmp = min(tmp, caps[j])
		bits[j] = tmp
		psum += tmp
	}

	// Decide which bands to skip, working backwards from the end.
	codedBands := end
	for ; ; codedBands-- {
		j := codedBands - 1
		// Never skip the first band, nor a band boosted by dynalloc.
		if j <= skipStart {
			total += skipRsv
			break
		}
		left := total - psum
		percoeff := left / (eBands[codedBands] - eBands[start])
		left -= (eBands[codedBands] - eBands[start]) * percoeff
		rem := max(left-(eBands[j]-eBands[start]), 0)
		bandW := eBands[codedBands] - eBands[j]
		bandBits := bits[j] + percoeff*bandW + rem
		// Only code a skip decision above the band threshold; below it the
		// band is force-skipped.
		if bandBits >= max(thresh[j], allocFloor+(1<<bitRes)) {
			if rd.DecodeBit(1) != 0 {
				break
			}
			psum += 1 << bitRes
			bandBits -= 1 << bitRes
		}
		psum -= bits[j] + intensityRsv
		if intensityRsv > 0 {
			intensityRsv = log2FracTable[j-start]
		}
		psum += intensityRsv
		if bandBits >= allocFloor {
			psum += allocFloor
			bits[j] = allocFloor
		} else {
			bits[j] = 0
		}
	}

	a.intensity = 0
	if intensityRsv > 0 {
		a.intensity = start + int(rd.DecodeUniform(uint32(codedBands+1-start)))
	}
	if a.intensity <= start {
		total += dualStereoRsv
		dualStereoRsv = 0
	}
	a.dualStereo = false
	if dualStereoRsv > 0 {
		a.dualStereo = rd.DecodeBit(1) != 0
	}

	// Allocate the remaining bits.
	left := total - psum
	percoeff := left / (eBands[codedBands] - eBands[start])
	left -= (eBands[codedBands] - eBands[start]) * percoeff
	for j := start; j < codedBands; j++ {
		bits[j] += percoeff * (eBands[j+1] - eBands[j])
	}
	for j := start; j < codedBands; j++ {
		tmp := min(left, eBands[j+1]-eBands[j])
		bits[j] += tmp
		left -= tmp
	}

	balance := 0
	j := start
	for ; j < codedBands; j++ {
		n0 := eBands[j+1] - eBands[j]
		n := n0 << lm
		bit := bits[j] + balance
		var excess int

		if n > 1 {
			excess = max(bit-caps[j], 0)
			bits[j] = bit - excess

			// Compensate for the extra degree of freedom in stereo.
			den := channels * n
			if channels == 2 && n > 2 && !a.dualStereo && j < a.intensity {
				den++
			}
			nclogn := den * (logN[j] + logM)

			// Offset the fine bits by log2(N)/2 + fineOffset compared to
			// their fair share of total/N.
			offset := (nclogn >> 1) - den*fineOffset
			if n == 2 {
				offset += den << bitRes >> 2
			}
			if bits[j]+offset < den*2<<bitRes {
				offset += nclogn >> 2
			} else if bits[j]+offset < den*3<<bitRes {
				offset += nclogn >> 3
			}

			ebits[j] = max(0, bits[j]+offset+(den<<(bitRes-1)))
			ebits[j] = (ebits[j] / den) >> bitRes

			if channels*ebits[j] > bits[j]>>bitRes {
				ebits[j] = bits[j] >> stereo >> bitRes
			}
			ebits[j] = min(ebits[j], maxFineBits)

			// Rounded down or capped bands are candidates for the final
			// fine energy pass.
			finePriority[j] = b2i(ebits[j]*(den<<bitRes) >= bits[j]+offset)
			bits[j] -= channels * ebits[j] << bitRes
		} else {
			// N=1: everything goes to fine energy except the sign bit.
			excess = max(0, bit-(channels<<bitRes))
			bits[j] = bit - excess
			ebits[j] = 0
			finePriority[j] = 1
		}

		// Fine energy cannot use the rebalancing done during shape
		// decoding, so rebalance here.
		if excess > 0 {
			extraFine := min(excess>>(stereo+bitRes), maxFineBits-ebits[j])
			ebits[j] += extraFine
			extraBits := extraFine * channels << bitRes
			finePriority[j] = b2i(extraBits >= excess-balance)
			excess -= extraBits
		}
		balance = excess
	}
	a.balance = balance

	// Skipped bands spend all their bits on fine energy.
	for ; j < end; j++ {
		ebits[j] = bits[j] >> stereo >> bitRes
		bits[j] = 0
		finePriority[j] = b2i(ebits[j] < 1)
	}
	a.codedBands = codedBands
}

// getPulses maps a pseudo-pulse index to a pulse count.
func getPulses(i int) int {
	if i < 8 {
		return i
	}
	return (8 + (i & 7)) << ((i >> 3) - 1)
}

// pulseCache returns the cache row of band i at the given LM. LM may be -1
// for the halves of a split 2.5 ms band.
func pulseCache(i, lm int) []uint8 {
	return cacheBits[cacheIndex[(lm+1)*MaxBands+i]:]
}

// bits2Pulses returns the pseudo-pulse count whose cost is closest to bits.
//
// Reference: libopus celt/rate.h bits2pulses()
func bits2Pulses(i, lm, bits int) int {
	cache := pulseCache(i, lm)
	lo, hi := 0, int(cache[0])
	bits--
	for k := 0; k < logMaxPseudo; k++ {
		mid := (lo + hi + 1) >> 1
		if int(cache[mid]) >= bits {
			hi = mid
		} else {
			lo = mid
		}
	}
	loBits := -1
	if lo != 0 {
		loBits = int(cache[lo])
	}
	if bits-loBits <= int(cache[hi])-bits {
		return lo
	}
	return hi
}

// pulses2Bits returns the cost in 1/8 bits of a pseudo-pulse count.
func pulses2Bits(i, lm, pulses int) int {
	if pulses == 0 {
		return 0
	}
	return int(pulseCache(i, lm)[pulses]) + 1
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
