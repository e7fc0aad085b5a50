package celt

import (
	"fmt"
	"math"
	"sync"
)

// fftState holds the precomputed plan of a mixed-radix complex FFT whose
// size factors into 2, 3, 4 and 5. The inverse MDCT needs sizes 60, 120,
// 240 and 480.
//
// Reference: libopus celt/kiss_fft.c
type fftState struct {
	nfft     int          // FFT size
	factors  []int        // Pairs (radix, m), m being the stage length / radix
	twiddles []complex128 // exp(-2*pi*i*k/nfft) for k = 0..nfft-1
	bitrev   []int        // Input index to output position
	fstride  []int        // Twiddle stride of each stage
}

// fftCache caches FFT states per size. States are immutable once built.
var (
	fftCache   = make(map[int]*fftState)
	fftCacheMu sync.Mutex
)

// getFFTState returns a cached or newly created FFT state for the given size.
// It panics for sizes with a prime factor above 5.
func getFFTState(nfft int) *fftState {
	fftCacheMu.Lock()
	defer fftCacheMu.Unlock()

	if state, ok := fftCache[nfft]; ok {
		return state
	}
	state := newFFTState(nfft)
	fftCache[nfft] = state
	return state
}

func newFFTState(nfft int) *fftState {
	s := &fftState{nfft: nfft}
	if nfft < 1 || !s.factor() {
		panic(fmt.Sprintf("celt: unsupported FFT size %d", nfft))
	}

	s.twiddles = make([]complex128, nfft)
	for k := range s.twiddles {
		phase := -2 * math.Pi * float64(k) / float64(nfft)
		s.twiddles[k] = complex(math.Cos(phase), math.Sin(phase))
	}

	s.bitrev = make([]int, nfft)
	if len(s.factors) > 0 {
		s.fillBitrev(0, 0, 1, s.factors)
	}

	stages := len(s.factors) / 2
	s.fstride = make([]int, stages+1)
	s.fstride[0] = 1
	for i := 0; i < stages; i++ {
		s.fstride[i+1] = s.fstride[i] * s.factors[2*i]
	}
	return s
}

// factor splits nfft into radix 4 first, then 2, 3 and 5, and orders the
// stages so the last one is a radix 4 with m == 1 whenever possible. A
// single radix 2 is moved next to the radix 4 stages.
//
// Reference: libopus celt/kiss_fft.c kf_factor()
func (s *fftState) factor() bool {
	n := s.nfft
	var radix []int
	for p := 4; n > 1; {
		for n%p != 0 {
			switch p {
			case 4:
				p = 2
			case 2:
				p = 3
			default:
				p += 2
			}
			if p*p > n {
				p = n
			}
		}
		if p > 5 {
			return false
		}
		n /= p
		radix = append(radix, p)
		if p == 2 && len(radix) > 2 {
			radix[len(radix)-1] = 4
			radix[1] = 2
		}
	}

	s.factors = make([]int, 0, 2*len(radix))
	n = s.nfft
	for i := len(radix) - 1; i >= 0; i-- {
		n /= radix[i]
		s.factors = append(s.factors, radix[i], n)
	}
	return true
}

// fillBitrev records where each input sample lands before the first stage.
//
// Reference: libopus celt/kiss_fft.c compute_bitrev_table()
func (s *fftState) fillBitrev(out, f, fstride int, factors []int) {
	p, m := factors[0], factors[1]
	for j := 0; j < p; j++ {
		if m == 1 {
			s.bitrev[f] = out + j
		} else {
			s.fillBitrev(out, f, fstride*p, factors[2:])
			out += m
		}
		f += fstride
	}
}

// forward computes the unscaled forward DFT of src into dst. Both must have
// nfft elements and must not overlap.
//
// Reference: libopus celt/kiss_fft.c opus_fft_impl()
func (s *fftState) forward(dst, src []complex128) {
	dst = dst[:s.nfft]
	for i, v := range src[:s.nfft] {
		dst[s.bitrev[i]] = v
	}

	stages := len(s.factors) / 2
	if stages == 0 {
		return
	}
	m := s.factors[2*stages-1]
	for i := stages - 1; i >= 0; i-- {
		m2 := 1
		if i > 0 {
			m2 = s.factors[2*i-1]
		}
		n := s.fstride[i]
		switch s.factors[2*i] {
		case 2:
			s.bfly2(dst, n, m, n, m2)
		case 3:
			s.bfly3(dst, n, m, n, m2)
		case 4:
			s.bfly4(dst, n, m, n, m2)
		case 5:
			s.bfly5(dst, n, m, n, m2)
		}
		m = m2
	}
}

// The butterflies combine, for each of the n groups starting every mm
// samples, p sub-transforms of length m. fstride steps through twiddles.

func (s *fftState) bfly2(fout []complex128, fstride, m, n, mm int) {
	for i := 0; i < n; i++ {
		f := fout[i*mm:]
		for j := 0; j < m; j++ {
			t := f[j+m] * s.twiddles[j*fstride]
			f[j+m] = f[j] - t
			f[j] += t
		}
	}
}

func (s *fftState) bfly3(fout []complex128, fstride, m, n, mm int) {
	epi3 := imag(s.twiddles[fstride*m])
	for i := 0; i < n; i++ {
		f := fout[i*mm:]
		for k := 0; k < m; k++ {
			s1 := f[k+m] * s.twiddles[k*fstride]
			s2 := f[k+2*m] * s.twiddles[2*k*fstride]
			s3 := s1 + s2
			s0 := (s1 - s2) * complex(epi3, 0)

			mid := f[k] - s3*0.5
			f[k] += s3
			f[k+2*m] = complex(real(mid)+imag(s0), imag(mid)-real(s0))
			f[k+m] = complex(real(mid)-imag(s0), imag(mid)+real(s0))
		}
	}
}

func (s *fftState) bfly4(fout []complex128, fstride, m, n, mm int) {
	if m == 1 {
		// All twiddles are 1.
		for i := 0; i < n; i++ {
			f := fout[4*i : 4*i+4]
			s0 := f[0] - f[2]
			f[0] += f[2]
			s1 := f[1] + f[3]
			f[2] = f[0] - s1
			f[0] += s1
			s1 = f[1] - f[3]
			f[1] = complex(real(s0)+imag(s1), imag(s0)-real(s1))
			f[3] = complex(real(s0)-imag(s1), imag(s0)+real(s1))
		}
		return
	}
	for i := 0; i < n; i++ {
		f := fout[i*mm:]
		for j := 0; j < m; j++ {
			s0 := f[j+m] * s.twiddles[j*fstride]
			s1 := f[j+2*m] * s.twiddles[2*j*fstride]
			s2 := f[j+3*m] * s.twiddles[3*j*fstride]

			s5 := f[j] - s1
			f[j] += s1
			s3 := s0 + s2
			s4 := s0 - s2
			f[j+2*m] = f[j] - s3
			f[j] += s3
			f[j+m] = complex(real(s5)+imag(s4), imag(s5)-real(s4))
			f[j+3*m] = complex(real(s5)-imag(s4), imag(s5)+real(s4))
		}
	}
}

// exp(-2*pi*i/5) and exp(-4*pi*i/5).
const (
	yaR = 0.30901699437494742
	yaI = -0.95105651629515353
	ybR = -0.80901699437494742
	ybI = -0.58778525229247313
)

func (s *fftState) bfly5(fout []complex128, fstride, m, n, mm int) {
	tw := s.twiddles
	for i := 0; i < n; i++ {
		f := fout[i*mm:]
		for u := 0; u < m; u++ {
			s0 := f[u]
			s1 := f[u+m] * tw[u*fstride]
			s2 := f[u+2*m] * tw[2*u*fstride]
			s3 := f[u+3*m] * tw[3*u*fstride]
			s4 := f[u+4*m] * tw[4*u*fstride]

			s7, s10 := s1+s4, s1-s4
			s8, s9 := s2+s3, s2-s3
			f[u] = s0 + s7 + s8

			s5 := complex(
				real(s0)+yaR*real(s7)+ybR*real(s8),
				imag(s0)+yaR*imag(s7)+ybR*imag(s8))
			s6 := complex(
				yaI*imag(s10)+ybI*imag(s9),
				-(yaI*real(s10) + ybI*real(s9)))
			f[u+m] = s5 - s6
			f[u+4*m] = s5 + s6

			s11 := complex(
				real(s0)+ybR*real(s7)+yaR*real(s8),
				imag(s0)+ybR*imag(s7)+yaR*imag(s8))
			s12 := complex(
				yaI*imag(s9)-ybI*imag(s10),
				ybI*real(s10)-yaI*real(s9))
			f[u+2*m] = s11 + s12
			f[u+3*m] = s11 - s12
		}
	}
}
