package celt

const combFilterMinPeriod = 15

// combFilterGains holds the three taps of each post-filter tapset.
var combFilterGains = [3][3]float64{
	{0.3066406250, 0.2170410156, 0.1296386719},
	{0.4638671875, 0.2680664062, 0.0000000000},
	{0.7998046875, 0.1000976562, 0.0000000000},
}

// postfilterParams is one setting of the pitch comb filter.
type postfilterParams struct {
	period int
	gain   float64
	tapset int
}

// combFilter runs the pitch post-filter in place over buf[off:off+n]. The
// filter reads up to period+2 samples of history before off, so it is
// recursive: earlier filtered output feeds later samples.
//
// The first overlap samples cross-fade from the old parameters p0 to the
// new ones p1 with the squared window. The cross-fade is skipped when both
// settings are identical.
//
// Reference: libopus celt/celt.c comb_filter()
func combFilter(buf []float64, off, n int, p0, p1 postfilterParams, overlap int) {
	if p0.gain == 0 && p1.gain == 0 {
		return
	}
	t0 := max(p0.period, combFilterMinPeriod)
	t1 := max(p1.period, combFilterMinPeriod)
	g00 := p0.gain * combFilterGains[p0.tapset][0]
	g01 := p0.gain * combFilterGains[p0.tapset][1]
	g02 := p0.gain * combFilterGains[p0.tapset][2]
	g10 := p1.gain * combFilterGains[p1.tapset][0]
	g11 := p1.gain * combFilterGains[p1.tapset][1]
	g12 := p1.gain * combFilterGains[p1.tapset][2]

	x1 := buf[off-t1+1]
	x2 := buf[off-t1]
	x3 := buf[off-t1-1]
	x4 := buf[off-t1-2]

	if p0.gain == p1.gain && t0 == t1 && p0.tapset == p1.tapset {
		overlap = 0
	}
	overlap = min(overlap, n)
	w := celtWindow()
	y := buf[off:]
	i := 0
	for ; i < overlap; i++ {
		x0 := buf[off+i-t1+2]
		f := w[i] * w[i]
		y[i] += (1-f)*g00*buf[off+i-t0] +
			(1-f)*g01*(buf[off+i-t0+1]+buf[off+i-t0-1]) +
			(1-f)*g02*(buf[off+i-t0+2]+buf[off+i-t0-2]) +
			f*g10*x2 +
			f*g11*(x1+x3) +
			f*g12*(x0+x4)
		x4 = x3
		x3 = x2
		x2 = x1
		x1 = x0
	}
	if p1.gain == 0 {
		return
	}

	// Constant filter for the rest.
	for ; i < n; i++ {
		x0 := buf[off+i-t1+2]
		y[i] += g10*x2 + g11*(x1+x3) + g12*(x0+x4)
		x4 = x3
		x3 = x2
		x2 = x1
		x1 = x0
	}
}
