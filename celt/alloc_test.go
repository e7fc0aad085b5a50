package celt

import (
	"math/rand"
	"testing"

	"github.com/mycrl/aquarana/rangecoding"
)

func TestGetPulses(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 0}, {1, 1}, {7, 7}, {8, 8}, {9, 9}, {15, 15},
		{16, 16}, {17, 18}, {24, 32}, {31, 60}, {39, 120},
	}
	for _, tc := range tests {
		if got := getPulses(tc.in); got != tc.want {
			t.Errorf("getPulses(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

// forEachCacheRow calls fn for every (band, LM) pair that has a pulse cache,
// including the LM=-1 rows used by split 2.5 ms bands.
func forEachCacheRow(fn func(band, lm int, cache []uint8)) {
	for lm := -1; lm <= MaxLM; lm++ {
		for i := 0; i < MaxBands; i++ {
			if cacheIndex[(lm+1)*MaxBands+i] < 0 {
				continue
			}
			fn(i, lm, pulseCache(i, lm))
		}
	}
}

func TestBits2PulsesInvertsPulses2Bits(t *testing.T) {
	forEachCacheRow(func(band, lm int, cache []uint8) {
		for q := 0; q <= int(cache[0]); q++ {
			// Pulse counts sharing a cost with a smaller count are never chosen.
			if q >= 2 && cache[q] == cache[q-1] {
				continue
			}
			if got := bits2Pulses(band, lm, pulses2Bits(band, lm, q)); got != q {
				t.Errorf("band %d lm %d: bits2Pulses(pulses2Bits(%d)) = %d", band, lm, q, got)
			}
		}
	})
}

func TestBits2PulsesIsMonotonic(t *testing.T) {
	forEachCacheRow(func(band, lm int, cache []uint8) {
		prev := 0
		for b := 0; b < 2048; b++ {
			q := bits2Pulses(band, lm, b)
			if q < prev || q > int(cache[0]) {
				t.Fatalf("band %d lm %d: bits2Pulses(%d) = %d after %d", band, lm, b, q, prev)
			}
			prev = q
		}
	})
}

func TestInitCaps(t *testing.T) {
	var caps [MaxBands]int
	initCaps(caps[:], 3, 2)
	// Band 0 at LM=3: 8 bins, stereo, cap row 7.
	if want := (int(cacheCaps[MaxBands*7]) + 64) * 2 * 8 >> 2; caps[0] != want {
		t.Fatalf("caps[0] = %d, want %d", caps[0], want)
	}
	for i, c := range caps {
		if c <= 0 {
			t.Fatalf("caps[%d] = %d, want positive", i, c)
		}
	}
}

func TestComputeAllocationStaysWithinBudget(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	for iter := 0; iter < 500; iter++ {
		channels := 1 + rng.Intn(2)
		lm := rng.Intn(MaxLM + 1)
		end := []int{13, 17, 19, 21}[rng.Intn(4)]
		trim := rng.Intn(11)
		total := rng.Intn(MaxFrameBytes * 8 << bitRes)

		var caps, offsets [MaxBands]int
		initCaps(caps[:], lm, channels)
		if rng.Intn(3) == 0 {
			for j := 0; j < end; j++ {
				if rng.Intn(5) == 0 {
					offsets[j] = rng.Intn(caps[j] + 1)
				}
			}
		}

		rd := rangecoding.NewDecoder(randomFrame(rng, 50))
		var a allocation
		computeAllocation(rd, 0, end, offsets[:], caps[:], trim, total, channels, lm, &a)

		used := 0
		for j := 0; j < MaxBands; j++ {
			if a.pulses[j] < 0 {
				t.Fatalf("iter %d: band %d has negative allocation %d", iter, j, a.pulses[j])
			}
			if a.fineQuant[j] < 0 || a.fineQuant[j] > maxFineBits {
				t.Fatalf("iter %d: band %d fine bits %d out of range", iter, j, a.fineQuant[j])
			}
			if a.finePriority[j] != 0 && a.finePriority[j] != 1 {
				t.Fatalf("iter %d: band %d priority %d", iter, j, a.finePriority[j])
			}
			if j >= end && (a.pulses[j] != 0 || a.fineQuant[j] != 0) {
				t.Fatalf("iter %d: band %d beyond end %d got bits", iter, j, end)
			}
			used += a.pulses[j] + channels*a.fineQuant[j]<<bitRes
		}
		if used > total {
			t.Fatalf("iter %d: allocated %d of %d", iter, used, total)
		}
		if a.codedBands <= 0 || a.codedBands > end {
			t.Fatalf("iter %d: codedBands = %d, end %d", iter, a.codedBands, end)
		}
		if channels == 2 && (a.intensity < 0 || a.intensity > a.codedBands) {
			t.Fatalf("iter %d: intensity = %d, codedBands %d", iter, a.intensity, a.codedBands)
		}
	}
}

func TestComputeAllocationZeroBudget(t *testing.T) {
	var caps, offsets [MaxBands]int
	initCaps(caps[:], 3, 1)
	var a allocation
	rd := rangecoding.NewDecoder(make([]byte, 2))
	computeAllocation(rd, 0, MaxBands, offsets[:], caps[:], 5, 0, 1, 3, &a)
	for j := 0; j < MaxBands; j++ {
		if a.pulses[j] != 0 || a.fineQuant[j] != 0 {
			t.Fatalf("band %d: pulses %d fine %d with no budget", j, a.pulses[j], a.fineQuant[j])
		}
	}
}
