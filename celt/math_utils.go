package celt

import "math/bits"

// Integer helpers that must match libopus bit for bit, since their results
// steer entropy decoding.

// fracMul16 is a Q15 multiply of two values truncated to int16.
func fracMul16(a, b int) int {
	return (16384 + int(int16(a))*int(int16(b))) >> 15
}

// bitexactCos approximates 32768*cos(pi/2 * x/16384) for x in [0, 16384].
//
// Reference: libopus celt/bands.c bitexact_cos()
func bitexactCos(x int) int {
	tmp := (4096 + x*x) >> 13
	x2 := tmp
	x2 = (32767 - x2) + fracMul16(x2, -7651+fracMul16(x2, 8277+fracMul16(-626, x2)))
	return 1 + x2
}

// bitexactLog2Tan returns log2(isin/icos) in Q11.
//
// Reference: libopus celt/bands.c bitexact_log2tan()
func bitexactLog2Tan(isin, icos int) int {
	lc := ecILog(uint32(icos))
	ls := ecILog(uint32(isin))
	icos <<= 15 - lc
	isin <<= 15 - ls
	return (ls-lc)*(1<<11) +
		fracMul16(isin, fracMul16(isin, -2597)+7932) -
		fracMul16(icos, fracMul16(icos, -2597)+7932)
}

// isqrt32 returns floor(sqrt(v)).
//
// Reference: libopus celt/mathops.c isqrt32()
func isqrt32(v uint32) uint32 {
	var g uint32
	bshift := (ecILog(v) - 1) >> 1
	b := uint32(1) << uint(bshift)
	for {
		t := (g<<1 + b) << uint(bshift)
		if t <= v {
			g += b
			v -= t
		}
		b >>= 1
		bshift--
		if bshift < 0 {
			break
		}
	}
	return g
}

func ecILog(x uint32) int {
	return bits.Len32(x)
}

// lcgRand advances the linear congruential generator used for folding
// noise and anti-collapse.
func lcgRand(seed uint32) uint32 {
	return 1664525*seed + 1013904223
}
