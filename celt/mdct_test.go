package celt

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func naiveDFT(x []complex128) []complex128 {
	n := len(x)
	out := make([]complex128, n)
	for k := range out {
		var acc complex128
		for j, v := range x {
			acc += v * cmplx.Exp(complex(0, -2*math.Pi*float64(j*k)/float64(n)))
		}
		out[k] = acc
	}
	return out
}

func TestFFTMatchesDFT(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, n := range []int{1, 2, 3, 5, 8, 12, 60, 120, 240, 480} {
		src := make([]complex128, n)
		for i := range src {
			src[i] = complex(rng.NormFloat64(), rng.NormFloat64())
		}
		dst := make([]complex128, n)
		getFFTState(n).forward(dst, src)
		want := naiveDFT(src)
		for k := range want {
			if d := cmplx.Abs(dst[k] - want[k]); d > 1e-9*float64(n) {
				t.Fatalf("n=%d bin %d: got %v, want %v", n, k, dst[k], want[k])
			}
		}
	}
}

func TestFFTStagePlan(t *testing.T) {
	tests := []struct {
		nfft int
		want []int // (radix, m) pairs
	}{
		{60, []int{5, 12, 3, 4, 4, 1}},
		{120, []int{5, 24, 3, 8, 2, 4, 4, 1}},
		{240, []int{5, 48, 3, 16, 4, 4, 4, 1}},
		{480, []int{5, 96, 3, 32, 4, 8, 2, 4, 4, 1}},
		{8, []int{2, 4, 4, 1}},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprint(tc.nfft), func(t *testing.T) {
			if diff := cmp.Diff(tc.want, getFFTState(tc.nfft).factors); diff != "" {
				t.Errorf("stages mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFFTStateIsCached(t *testing.T) {
	if getFFTState(240) != getFFTState(240) {
		t.Fatal("getFFTState(240) returned different states")
	}
}

func TestFFTRejectsUnsupportedSize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("getFFTState(7) did not panic")
		}
	}()
	getFFTState(7)
}

func TestWindowIsPowerComplementary(t *testing.T) {
	w := celtWindow()
	if len(w) != Overlap {
		t.Fatalf("len(window) = %d, want %d", len(w), Overlap)
	}
	for i := 0; i < Overlap; i++ {
		if s := w[i]*w[i] + w[Overlap-1-i]*w[Overlap-1-i]; math.Abs(s-1) > 1e-12 {
			t.Fatalf("w[%d]^2 + w[%d]^2 = %v, want 1", i, Overlap-1-i, s)
		}
	}
}

// naiveIMDCT returns y[n] = sum_k X[k] cos(2*pi/N*(n+1/2+N/4)*(k+1/2)) for
// n < N, with N = 2*len(coeffs).
func naiveIMDCT(coeffs []float64) []float64 {
	half := len(coeffs)
	n := 2 * half
	y := make([]float64, n)
	for i := range y {
		var acc float64
		for k, v := range coeffs {
			acc += v * math.Cos(2*math.Pi/float64(n)*(float64(i)+0.5+float64(n)/4)*(float64(k)+0.5))
		}
		y[i] = acc
	}
	return y
}

func TestIMDCTMatchesDefinition(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for shift := 0; shift <= MaxLM; shift++ {
		half := mdctSize >> shift >> 1
		coeffs := make([]float64, half)
		for i := range coeffs {
			coeffs[i] = rng.NormFloat64()
		}
		out := make([]float64, half+Overlap)
		var s imdctScratch
		imdctBackward(coeffs, out, shift, 1, &s)

		// Past the windowed overlap, the output is the plain inverse
		// transform offset by the window alignment.
		y := naiveIMDCT(coeffs)
		offset := (half - Overlap) / 2
		for j := Overlap; j < half+Overlap/2; j++ {
			if d := math.Abs(out[j] - y[j+offset]); d > 1e-9 {
				t.Fatalf("shift=%d sample %d: got %v, want %v", shift, j, out[j], y[j+offset])
			}
		}
	}
}

func TestIMDCTStridedInput(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	const blocks = 4
	half := mdctSize >> MaxLM >> 1
	interleaved := make([]float64, blocks*half)
	for i := range interleaved {
		interleaved[i] = rng.NormFloat64()
	}
	for b := 0; b < blocks; b++ {
		plain := make([]float64, half)
		for k := range plain {
			plain[k] = interleaved[b+blocks*k]
		}
		var s imdctScratch
		got := make([]float64, half+Overlap)
		want := make([]float64, half+Overlap)
		imdctBackward(interleaved[b:], got, MaxLM, blocks, &s)
		imdctBackward(plain, want, MaxLM, 1, &s)
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("block %d sample %d: strided %v, plain %v", b, i, got[i], want[i])
			}
		}
	}
}

func TestIMDCTOverlapAddReconstructsSilence(t *testing.T) {
	// Zero coefficients over a zero history must stay exactly zero.
	out := make([]float64, MaxFrameSize+Overlap)
	var s imdctScratch
	imdctBackward(make([]float64, MaxFrameSize), out, 0, 1, &s)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("sample %d = %v, want 0", i, v)
		}
	}
}
