package celt

import (
	"math"
	"sync"
)

// mdctSize is the largest MDCT of the mode: two 20 ms frames.
const mdctSize = 2 * MaxFrameSize

var (
	mdctTrigMu    sync.Mutex
	mdctTrigCache = map[int][]float64{}
)

// getMDCTTrig returns cos(2*pi*(i+1/8)/n) for i < n/2.
func getMDCTTrig(n int) []float64 {
	mdctTrigMu.Lock()
	defer mdctTrigMu.Unlock()

	if trig, ok := mdctTrigCache[n]; ok {
		return trig
	}
	trig := make([]float64, n/2)
	for i := range trig {
		trig[i] = math.Cos(2 * math.Pi * (float64(i) + 0.125) / float64(n))
	}
	mdctTrigCache[n] = trig
	return trig
}

var (
	windowOnce sync.Once
	window     []float64
)

// celtWindow returns the power-complementary overlap window,
// w[i] = sin(pi/2 * sin^2(pi/2 * (i+1/2)/Overlap)).
func celtWindow() []float64 {
	windowOnce.Do(func() {
		window = make([]float64, Overlap)
		for i := range window {
			s := math.Sin(0.5 * math.Pi * (float64(i) + 0.5) / Overlap)
			window[i] = math.Sin(0.5 * math.Pi * s * s)
		}
	})
	return window
}

// imdctScratch holds the complex buffers of one inverse MDCT.
type imdctScratch struct {
	fftIn  []complex128
	fftOut []complex128
}

func (s *imdctScratch) buffers(n int) ([]complex128, []complex128) {
	if cap(s.fftIn) < n {
		s.fftIn = make([]complex128, n)
		s.fftOut = make([]complex128, n)
	}
	return s.fftIn[:n], s.fftOut[:n]
}

// imdctBackward computes one inverse MDCT of size mdctSize>>shift and
// overlap-adds it into out.
//
// The input is read from in[0], in[stride], ... (N/2 coefficients). The
// time-domain output covers out[Overlap/2 : Overlap/2+N/2]; the first
// Overlap samples are then windowed against out[0:Overlap/2], which must
// hold the raw tail of the previous block.
//
// Reference: libopus celt/mdct.c clt_mdct_backward()
func imdctBackward(in []float64, out []float64, shift, stride int, s *imdctScratch) {
	n := mdctSize >> shift
	n2 := n >> 1
	n4 := n >> 2
	trig := getMDCTTrig(n)
	fft := getFFTState(n4)
	v, spec := s.buffers(n4)

	// Pre-rotate. Real and imaginary parts are swapped so that a forward
	// FFT can stand in for the inverse one.
	for i := 0; i < n4; i++ {
		x1 := in[2*i*stride]
		x2 := in[stride*(n2-1)-2*i*stride]
		yr := x2*trig[i] + x1*trig[n4+i]
		yi := x1*trig[i] - x2*trig[n4+i]
		v[i] = complex(yi, yr)
	}

	fft.forward(spec, v)

	// Post-rotate and de-shuffle. The factor of 2 is folded into the window.
	yp := out[Overlap/2:]
	for k := 0; k < n4; k++ {
		re := imag(spec[k])
		im := real(spec[k])
		yp[2*k] = re*trig[k] + im*trig[n4+k]
		yp[n2-1-2*k] = re*trig[n4+k] - im*trig[k]
	}

	// Mirror on both sides for TDAC.
	w := celtWindow()
	for i := 0; i < Overlap/2; i++ {
		x1 := out[Overlap-1-i]
		x2 := out[i]
		out[i] = w[Overlap-1-i]*x2 - w[i]*x1
		out[Overlap-1-i] = w[i]*x2 + w[Overlap-1-i]*x1
	}
}
