package celt

import (
	"math"

	"github.com/mycrl/aquarana/rangecoding"
)

// Spreading (rotation) strengths signalled per frame.
const (
	spreadNone       = 0
	spreadLight      = 1
	spreadNormal     = 2
	spreadAggressive = 3
)

var spreadFactor = [3]int{15, 10, 5}

// pvqScratch holds the per-decoder buffers used while decoding shapes.
type pvqScratch struct {
	iy  []int
	u   []uint32
	tmp []float64
}

func (s *pvqScratch) pulses(n int) []int {
	if cap(s.iy) < n {
		s.iy = make([]int, n)
	}
	return s.iy[:n]
}

func (s *pvqScratch) row(k int) []uint32 {
	if cap(s.u) < k+2 {
		s.u = make([]uint32, k+2)
	}
	return s.u[:k+2]
}

func (s *pvqScratch) buffer(n int) []float64 {
	if cap(s.tmp) < n {
		s.tmp = make([]float64, n)
	}
	return s.tmp[:n]
}

// algUnquant decodes a PVQ shape of n coefficients with k pulses into x,
// scaled to the given gain, undoes the spreading rotation and returns the
// mask of short blocks that received at least one pulse.
//
// Reference: libopus celt/vq.c alg_unquant()
func algUnquant(rd *rangecoding.Decoder, x []float64, n, k, spread, blocks int, gain float64, s *pvqScratch) uint32 {
	iy := s.pulses(n)
	ryy := decodePulses(rd, iy, n, k, s.row(k))

	g := gain / math.Sqrt(ryy)
	for i := 0; i < n; i++ {
		x[i] = g * float64(iy[i])
	}
	expRotation(x, n, -1, blocks, k, spread)
	return extractCollapseMask(iy, n, blocks)
}

// extractCollapseMask sets bit b when short block b of the interleaved
// pulse vector is non-zero.
func extractCollapseMask(iy []int, n, blocks int) uint32 {
	if blocks <= 1 {
		return 1
	}
	n0 := n / blocks
	var mask uint32
	for b := 0; b < blocks; b++ {
		tmp := 0
		for j := 0; j < n0; j++ {
			tmp |= iy[b*n0+j]
		}
		if tmp != 0 {
			mask |= 1 << uint(b)
		}
	}
	return mask
}

func expRotation1(x []float64, length, stride int, c, s float64) {
	for i := 0; i < length-stride; i++ {
		x1 := x[i]
		x2 := x[i+stride]
		x[i+stride] = c*x2 + s*x1
		x[i] = c*x1 - s*x2
	}
	for i := length - 2*stride - 1; i >= 0; i-- {
		x1 := x[i]
		x2 := x[i+stride]
		x[i+stride] = c*x2 + s*x1
		x[i] = c*x1 - s*x2
	}
}

// expRotation applies (dir=1) or removes (dir=-1) the spreading rotation
// that keeps sparse PVQ vectors from sounding tonal.
//
// Reference: libopus celt/vq.c exp_rotation()
func expRotation(x []float64, length, dir, stride, k, spread int) {
	if 2*k >= length || spread == spreadNone {
		return
	}
	factor := spreadFactor[spread-1]

	gain := float64(length) / float64(length+factor*k)
	theta := 0.5 * gain * gain
	c := math.Cos(0.5 * math.Pi * theta)
	s := math.Cos(0.5 * math.Pi * (1 - theta))

	stride2 := 0
	if length >= 8*stride {
		stride2 = 1
		// Equivalent to rounding sqrt(length/stride).
		for (stride2*stride2+stride2)*stride+(stride>>2) < length {
			stride2++
		}
	}

	length /= stride
	for i := 0; i < stride; i++ {
		blk := x[i*length : (i+1)*length]
		if dir < 0 {
			if stride2 != 0 {
				expRotation1(blk, length, stride2, s, c)
			}
			expRotation1(blk, length, 1, c, s)
		} else {
			expRotation1(blk, length, 1, c, -s)
			if stride2 != 0 {
				expRotation1(blk, length, stride2, s, -c)
			}
		}
	}
}

// renormaliseVector scales x[:n] to the given L2 norm.
func renormaliseVector(x []float64, n int, gain float64) {
	e := 1e-15
	for i := 0; i < n; i++ {
		e += x[i] * x[i]
	}
	g := gain / math.Sqrt(e)
	for i := 0; i < n; i++ {
		x[i] *= g
	}
}
