package celt

import (
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/mycrl/aquarana/rangecoding"
)

func norm2(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += v * v
	}
	return s
}

func TestHaar1IsAnInvolution(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for _, tc := range []struct{ n0, stride int }{{2, 1}, {8, 1}, {4, 2}, {16, 4}, {2, 8}} {
		x := make([]float64, tc.n0*tc.stride)
		for i := range x {
			x[i] = rng.NormFloat64()
		}
		want := append([]float64(nil), x...)
		haar1(x, tc.n0, tc.stride)
		haar1(x, tc.n0, tc.stride)
		if diff := cmp.Diff(want, x, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
			t.Errorf("n0=%d stride=%d: haar1 twice is not the identity:\n%s", tc.n0, tc.stride, diff)
		}
	}
}

func TestHadamardInterleaveRoundTrip(t *testing.T) {
	for _, hadamard := range []bool{false, true} {
		for _, stride := range []int{2, 4, 8, 16} {
			n0 := 3
			x := make([]float64, n0*stride)
			for i := range x {
				x[i] = float64(i)
			}
			want := append([]float64(nil), x...)
			tmp := make([]float64, len(x))
			deinterleaveHadamard(x, n0, stride, hadamard, tmp)
			if !hadamard && x[1] != want[stride] {
				t.Errorf("stride=%d: deinterleave put %v at 1, want %v", stride, x[1], want[stride])
			}
			interleaveHadamard(x, n0, stride, hadamard, tmp)
			if diff := cmp.Diff(want, x); diff != "" {
				t.Errorf("hadamard=%v stride=%d: round trip mismatch:\n%s", hadamard, stride, diff)
			}
		}
	}
}

func TestOrderyTableIsPermutation(t *testing.T) {
	for _, stride := range []int{2, 4, 8, 16} {
		seen := make([]bool, stride)
		for _, v := range orderyTable[stride-2 : 2*stride-2] {
			if v < 0 || v >= stride || seen[v] {
				t.Fatalf("stride %d: ordering is not a permutation", stride)
			}
			seen[v] = true
		}
	}
}

func newTestBandCtx(buf []byte) *bandCtx {
	return &bandCtx{
		rd:        rangecoding.NewDecoder(buf),
		band:      10,
		intensity: MaxBands,
		spread:    spreadNormal,
		remaining: 1 << 20,
		seed:      1234,
		scratch:   &pvqScratch{},
	}
}

func TestQuantPartitionWithoutPulses(t *testing.T) {
	const n = 8
	lowband := []float64{1, -2, 3, -4, 5, -6, 7, -8}

	t.Run("collapsed fill gives silence", func(t *testing.T) {
		ctx := newTestBandCtx(make([]byte, 8))
		x := []float64{9, 9, 9, 9, 9, 9, 9, 9}
		cm := ctx.quantPartition(x, n, 0, 1, lowband, 2, 1.0, 0)
		if cm != 0 {
			t.Errorf("collapse mask = %#x, want 0", cm)
		}
		if diff := cmp.Diff(make([]float64, n), x); diff != "" {
			t.Errorf("band not zeroed:\n%s", diff)
		}
	})

	t.Run("fold from lowband", func(t *testing.T) {
		ctx := newTestBandCtx(make([]byte, 8))
		x := make([]float64, n)
		cm := ctx.quantPartition(x, n, 0, 1, lowband, 2, 0.5, 1)
		if cm != 1 {
			t.Errorf("collapse mask = %#x, want 1", cm)
		}
		if e := norm2(x); math.Abs(e-0.25) > 1e-9 {
			t.Errorf("folded energy = %v, want 0.25", e)
		}
		if x[0] <= 0 || x[1] >= 0 {
			t.Errorf("folded band does not follow the lowband signs: %v", x)
		}
	})

	t.Run("noise without lowband", func(t *testing.T) {
		ctx := newTestBandCtx(make([]byte, 8))
		x := make([]float64, n)
		seed := ctx.seed
		cm := ctx.quantPartition(x, n, 0, 2, nil, 2, 1.0, 3)
		if cm != 3 {
			t.Errorf("collapse mask = %#x, want 3", cm)
		}
		if e := norm2(x); math.Abs(e-1) > 1e-9 {
			t.Errorf("noise energy = %v, want 1", e)
		}
		if ctx.seed == seed {
			t.Errorf("noise did not advance the folding seed")
		}
	})
}

func TestQuantBandProducesUnitShapes(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	for _, tc := range []struct {
		name   string
		band   int
		lm     int
		blocks int
		tf     int
		bits   int
	}{
		{"long block", 12, 2, 1, 0, 120},
		{"short blocks recombined", 8, 3, 8, 1, 64},
		{"short blocks fully recombined", 8, 3, 8, 3, 64},
		{"short blocks", 16, 3, 8, 0, 300},
		{"short blocks time divided", 17, 2, 4, -1, 200},
		{"split band", 20, 3, 1, 0, 1500},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := newTestBandCtx(randomFrame(rng, 200))
			ctx.band = tc.band
			ctx.tfChange = tc.tf
			n := bandWidth(tc.band, tc.lm)
			x := make([]float64, n)
			cm := ctx.quantBand(x, n, tc.bits, tc.blocks, nil, tc.lm, nil, 1.0, nil, 1<<uint(tc.blocks)-1)
			if cm >= 1<<uint(tc.blocks) {
				t.Errorf("collapse mask %#x has bits beyond %d blocks", cm, tc.blocks)
			}
			// Split gains come from bitexactCos, which is only accurate to
			// about 1e-4.
			if e := norm2(x); math.Abs(e-1) > 1e-3 {
				t.Errorf("shape energy = %v, want 1", e)
			}
		})
	}
}

func TestQuantBandN1ReadsSigns(t *testing.T) {
	enc := rangecoding.NewEncoder(4)
	enc.EncodeRawBits(1, 1)
	enc.EncodeRawBits(0, 1)
	ctx := newTestBandCtx(enc.Done())

	x := []float64{0}
	y := []float64{0}
	out := []float64{0}
	if cm := ctx.quantBandN1(x, y, 16, out); cm != 1 {
		t.Fatalf("collapse mask = %d, want 1", cm)
	}
	if x[0] != -1 || y[0] != 1 || out[0] != -1 {
		t.Fatalf("x=%v y=%v out=%v, want -1 1 -1", x[0], y[0], out[0])
	}
	if ctx.remaining != 1<<20-16 {
		t.Fatalf("remaining = %d, want two sign bits consumed", ctx.remaining)
	}
}

func TestStereoMergeDegenerateCopiesMid(t *testing.T) {
	x := []float64{0.6, 0.8}
	y := []float64{0.6, 0.8}
	stereoMerge(x, y, 1.0, 2)
	if diff := cmp.Diff(x, y); diff != "" {
		t.Fatalf("right channel should copy the left one:\n%s", diff)
	}
}

func TestStereoMergeNormalizesChannels(t *testing.T) {
	x := []float64{1, 0, 0, 0}
	y := []float64{0, 0.5, 0.5, 0}
	stereoMerge(x, y, 0.8, 4)
	if e := norm2(x); math.Abs(e-1) > 1e-9 {
		t.Errorf("left energy = %v, want 1", e)
	}
	if e := norm2(y); math.Abs(e-1) > 1e-9 {
		t.Errorf("right energy = %v, want 1", e)
	}
}

func TestComputeQN(t *testing.T) {
	tests := []struct {
		name                   string
		n, b, offset, pulseCap int
		stereo                 bool
		want                   int
	}{
		{"no bits", 4, 0, 10, 20, false, 1},
		{"tiny budget", 4, 40, 10, 20, false, 1},
		{"large budget caps at 256", 16, 4000, 20, 40, false, 256},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := computeQN(tc.n, tc.b, tc.offset, tc.pulseCap, tc.stereo)
			if got != tc.want {
				t.Fatalf("computeQN = %d, want %d", got, tc.want)
			}
			if got != 1 && got%2 != 0 {
				t.Fatalf("computeQN = %d is odd", got)
			}
		})
	}
}

func TestExpRotationPreservesEnergy(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	for _, spread := range []int{spreadLight, spreadNormal, spreadAggressive} {
		for _, stride := range []int{1, 2, 4} {
			n := 48
			x := make([]float64, n)
			for i := range x {
				x[i] = rng.NormFloat64()
			}
			want := norm2(x)
			orig := append([]float64(nil), x...)
			expRotation(x, n, -1, stride, 3, spread)
			if math.Abs(norm2(x)-want) > 1e-9 {
				t.Errorf("spread=%d stride=%d: energy %v, want %v", spread, stride, norm2(x), want)
			}
			expRotation(x, n, 1, stride, 3, spread)
			if diff := cmp.Diff(orig, x, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
				t.Errorf("spread=%d stride=%d: forward rotation does not undo the inverse:\n%s", spread, stride, diff)
			}
		}
	}
}

func TestExpRotationSkipsDenseVectors(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	expRotation(x, 4, -1, 1, 2, spreadNormal)
	if diff := cmp.Diff([]float64{1, 2, 3, 4}, x); diff != "" {
		t.Fatalf("dense vector was rotated:\n%s", diff)
	}
}

func TestExtractCollapseMask(t *testing.T) {
	iy := []int{0, 0, 1, 0, 0, 0, 0, -2}
	if got := extractCollapseMask(iy, 8, 4); got != 0b1010 {
		t.Fatalf("mask = %#b, want 0b1010", got)
	}
	if got := extractCollapseMask(iy, 8, 1); got != 1 {
		t.Fatalf("single block mask = %d, want 1", got)
	}
}
