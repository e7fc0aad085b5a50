package aquarana

import "math"

// gainFactor converts a gain in Q7.8 dB to a linear factor.
func gainFactor(q78 int16) float32 {
	return float32(math.Pow(10, float64(q78)/(20*256)))
}

// applyGain scales samples in place.
func applyGain(pcm []float32, gain float32) {
	if gain == 1 {
		return
	}
	for i := range pcm {
		pcm[i] *= gain
	}
}

// softClip bends interleaved samples that leave [-1, 1] back inside with a
// smooth x + a*x*x curve, so the int16 conversion never hard-clips. mem
// holds one curve coefficient per channel. A curve still active at the end
// of a buffer is continued into the next one until its zero crossing.
//
// Reference: libopus src/opus.c opus_pcm_soft_clip()
func softClip(x []float32, channels int, mem []float32) {
	if channels < 1 || len(x) < channels || len(mem) < channels {
		return
	}
	n := len(x) / channels
	x = x[:n*channels]

	for i, v := range x {
		x[i] = max(-2, min(2, v))
	}

	for c := 0; c < channels; c++ {
		ch := x[c:]
		at := func(i int) int { return i * channels }

		a := mem[c]
		for i := 0; i < n; i++ {
			v := ch[at(i)]
			if v*a >= 0 {
				break
			}
			ch[at(i)] = v + a*v*v
		}

		curr := 0
		x0 := ch[0]
		for {
			i := curr
			for i < n && abs32(ch[at(i)]) <= 1 {
				i++
			}
			if i == n {
				a = 0
				break
			}

			ref := ch[at(i)]
			peak, maxval := i, abs32(ref)
			start, end := i, i
			for start > 0 && ref*ch[at(start-1)] >= 0 {
				start--
			}
			for end < n && ref*ch[at(end)] >= 0 {
				if v := abs32(ch[at(end)]); v > maxval {
					maxval, peak = v, end
				}
				end++
			}
			// A segment touching the start of the buffer may follow a
			// discontinuity left by the previous curve.
			special := start == 0 && ref*ch[0] >= 0

			a = (maxval - 1) / (maxval * maxval)
			a += a * 2.4e-7
			if ref > 0 {
				a = -a
			}
			for j := start; j < end; j++ {
				v := ch[at(j)]
				ch[at(j)] = v + a*v*v
			}

			if special && peak >= 2 {
				offset := x0 - ch[0]
				delta := offset / float32(peak)
				for j := curr; j < peak; j++ {
					offset -= delta
					ch[at(j)] = max(-1, min(1, ch[at(j)]+offset))
				}
			}

			curr = end
			if curr == n {
				break
			}
		}
		mem[c] = a
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
