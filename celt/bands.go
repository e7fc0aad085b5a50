package celt

import (
	"math"

	"github.com/mycrl/aquarana/rangecoding"
)

// bandCtx carries the state shared by all recursive shape decoders of one
// band.
type bandCtx struct {
	rd        *rangecoding.Decoder
	band      int
	intensity int
	spread    int
	tfChange  int
	remaining int    // Bits left in the frame, 1/8 bits
	seed      uint32 // Folding noise generator
	scratch   *pvqScratch
}

// splitCtx is the outcome of coding a split angle.
type splitCtx struct {
	inv    bool
	imid   int
	iside  int
	delta  int
	itheta int
	qalloc int
}

const invSqrt2 = 0.70710678

// haar1 applies one level of the Haar transform across stride interleaved
// vectors of n0 samples.
func haar1(x []float64, n0, stride int) {
	n0 >>= 1
	for i := 0; i < stride; i++ {
		for j := 0; j < n0; j++ {
			a := invSqrt2 * x[stride*2*j+i]
			b := invSqrt2 * x[stride*(2*j+1)+i]
			x[stride*2*j+i] = a + b
			x[stride*(2*j+1)+i] = a - b
		}
	}
}

// deinterleaveHadamard reorders x from frequency-major to block-major order.
func deinterleaveHadamard(x []float64, n0, stride int, hadamard bool, tmp []float64) {
	n := n0 * stride
	tmp = tmp[:n]
	if hadamard {
		ordery := orderyTable[stride-2:]
		for i := 0; i < stride; i++ {
			for j := 0; j < n0; j++ {
				tmp[ordery[i]*n0+j] = x[j*stride+i]
			}
		}
	} else {
		for i := 0; i < stride; i++ {
			for j := 0; j < n0; j++ {
				tmp[i*n0+j] = x[j*stride+i]
			}
		}
	}
	copy(x[:n], tmp)
}

// interleaveHadamard is the inverse of deinterleaveHadamard.
func interleaveHadamard(x []float64, n0, stride int, hadamard bool, tmp []float64) {
	n := n0 * stride
	tmp = tmp[:n]
	if hadamard {
		ordery := orderyTable[stride-2:]
		for i := 0; i < stride; i++ {
			for j := 0; j < n0; j++ {
				tmp[j*stride+i] = x[ordery[i]*n0+j]
			}
		}
	} else {
		for i := 0; i < stride; i++ {
			for j := 0; j < n0; j++ {
				tmp[j*stride+i] = x[i*n0+j]
			}
		}
	}
	copy(x[:n], tmp)
}

// computeQN returns the number of quantization steps for a split angle.
func computeQN(n, b, offset, pulseCap int, stereo bool) int {
	n2 := 2*n - 1
	if stereo && n == 2 {
		n2--
	}
	// The upper limit leaves enough bits to code at least one pulse in the
	// side of a stereo split with itheta == 16384.
	qb := (b + n2*offset) / n2
	qb = min(b-pulseCap-(4<<bitRes), qb)
	qb = min(8<<bitRes, qb)

	if qb < (1 << bitRes >> 1) {
		return 1
	}
	qn := exp2Table8[qb&0x7] >> (14 - (qb >> bitRes))
	return (qn + 1) >> 1 << 1
}

// computeTheta decodes the angle splitting a band into two halves (mono
// time/frequency split) or into mid and side (stereo), and derives the
// gains and bit imbalance between them.
//
// Reference: libopus celt/bands.c compute_theta()
func (ctx *bandCtx) computeTheta(sctx *splitCtx, n int, b *int, blocks, blocks0, lm int, stereo bool, fill *uint32) {
	rd := ctx.rd
	i := ctx.band

	pulseCap := logN[i] + lm*(1<<bitRes)
	offset := pulseCap >> 1
	if stereo && n == 2 {
		offset -= qthetaOffset2
	} else {
		offset -= qthetaOffset
	}
	qn := computeQN(n, *b, offset, pulseCap, stereo)
	if stereo && i >= ctx.intensity {
		qn = 1
	}

	itheta := 0
	inv := false
	tell := rd.TellFrac()
	if qn != 1 {
		switch {
		case stereo && n > 2:
			// Step pdf: probability p0 up to itheta=8192, then 1.
			const p0 = 3
			x0 := qn / 2
			ft := uint32(p0*(x0+1) + x0)
			fs := int(rd.Decode(ft))
			var x int
			if fs < (x0+1)*p0 {
				x = fs / p0
			} else {
				x = x0 + 1 + (fs - (x0+1)*p0)
			}
			var fl, fh int
			if x <= x0 {
				fl, fh = p0*x, p0*(x+1)
			} else {
				fl, fh = (x-1-x0)+(x0+1)*p0, (x-x0)+(x0+1)*p0
			}
			rd.Update(uint32(fl), uint32(fh), ft)
			itheta = x
		case blocks0 > 1 || stereo:
			itheta = int(rd.DecodeUniform(uint32(qn + 1)))
		default:
			// Triangular pdf.
			ft := ((qn >> 1) + 1) * ((qn >> 1) + 1)
			fm := int(rd.Decode(uint32(ft)))
			var fl, fs int
			if fm < ((qn>>1)*((qn>>1)+1))>>1 {
				itheta = (int(isqrt32(8*uint32(fm)+1)) - 1) >> 1
				fs = itheta + 1
				fl = itheta * (itheta + 1) >> 1
			} else {
				itheta = (2*(qn+1) - int(isqrt32(8*uint32(ft-fm-1)+1))) >> 1
				fs = qn + 1 - itheta
				fl = ft - ((qn + 1 - itheta) * (qn + 2 - itheta) >> 1)
			}
			rd.Update(uint32(fl), uint32(fl+fs), uint32(ft))
		}
		itheta = itheta * 16384 / qn
	} else if stereo {
		if *b > 2<<bitRes && ctx.remaining > 2<<bitRes {
			inv = rd.DecodeBit(2) != 0
		}
		itheta = 0
	}
	qalloc := rd.TellFrac() - tell
	*b -= qalloc

	var imid, iside, delta int
	switch itheta {
	case 0:
		imid = 32767
		iside = 0
		*fill &= 1<<uint(blocks) - 1
		delta = -16384
	case 16384:
		imid = 0
		iside = 32767
		*fill &= (1<<uint(blocks) - 1) << uint(blocks)
		delta = 16384
	default:
		imid = bitexactCos(itheta)
		iside = bitexactCos(16384 - itheta)
		// Mid/side allocation minimizing the squared error in the band.
		delta = fracMul16((n-1)<<7, bitexactLog2Tan(iside, imid))
	}

	sctx.inv = inv
	sctx.imid = imid
	sctx.iside = iside
	sctx.delta = delta
	sctx.itheta = itheta
	sctx.qalloc = qalloc
}

// quantBandN1 decodes the sign of single-coefficient bands.
func (ctx *bandCtx) quantBandN1(x, y []float64, b int, lowbandOut []float64) uint32 {
	for _, v := range [2][]float64{x, y} {
		if v == nil {
			break
		}
		sign := uint32(0)
		if ctx.remaining >= 1<<bitRes {
			sign = ctx.rd.DecodeRawBits(1)
			ctx.remaining -= 1 << bitRes
			b -= 1 << bitRes
		}
		if sign != 0 {
			v[0] = -1
		} else {
			v[0] = 1
		}
	}
	if lowbandOut != nil {
		lowbandOut[0] = x[0]
	}
	return 1
}

// quantPartition decodes a band shape, recursively splitting it in halves
// while it holds more bits than a single PVQ codebook can use.
//
// Reference: libopus celt/bands.c quant_partition()
func (ctx *bandCtx) quantPartition(x []float64, n, b, blocks int, lowband []float64, lm int, gain float64, fill uint32) uint32 {
	blocks0 := blocks
	i := ctx.band
	cache := pulseCache(i, lm)

	// If we need 1.5 more bits than we can produce, split the band in two.
	if lm != -1 && b > int(cache[cache[0]])+12 && n > 2 {
		var sctx splitCtx
		n >>= 1
		y := x[n:]
		lm--
		if blocks == 1 {
			fill = (fill & 1) | (fill << 1)
		}
		blocks = (blocks + 1) >> 1

		ctx.computeTheta(&sctx, n, &b, blocks, blocks0, lm, false, &fill)
		mid := float64(sctx.imid) / 32768
		side := float64(sctx.iside) / 32768
		delta := sctx.delta
		itheta := sctx.itheta

		// Give more bits to low-energy MDCTs than they would otherwise deserve.
		if blocks0 > 1 && itheta&0x3fff != 0 {
			if itheta > 8192 {
				// Rough approximation for pre-echo masking.
				delta -= delta >> (4 - lm)
			} else {
				// Forward-masking slope of 1.5 dB per 10 ms.
				delta = min(0, delta+(n<<bitRes>>(5-lm)))
			}
		}
		mbits := max(0, min(b, (b-delta)/2))
		sbits := b - mbits
		ctx.remaining -= sctx.qalloc

		var nextLowband2 []float64
		if lowband != nil {
			nextLowband2 = lowband[n:]
		}

		var cm uint32
		rebalance := ctx.remaining
		if mbits >= sbits {
			cm = ctx.quantPartition(x, n, mbits, blocks, lowband, lm, gain*mid, fill)
			rebalance = mbits - (rebalance - ctx.remaining)
			if rebalance > 3<<bitRes && itheta != 0 {
				sbits += rebalance - (3 << bitRes)
			}
			cm |= ctx.quantPartition(y, n, sbits, blocks, nextLowband2, lm, gain*side, fill>>uint(blocks)) << uint(blocks0>>1)
		} else {
			cm = ctx.quantPartition(y, n, sbits, blocks, nextLowband2, lm, gain*side, fill>>uint(blocks)) << uint(blocks0>>1)
			rebalance = sbits - (rebalance - ctx.remaining)
			if rebalance > 3<<bitRes && itheta != 16384 {
				mbits += rebalance - (3 << bitRes)
			}
			cm |= ctx.quantPartition(x, n, mbits, blocks, lowband, lm, gain*mid, fill)
		}
		return cm
	}

	// Basic no-split case.
	q := bits2Pulses(i, lm, b)
	currBits := pulses2Bits(i, lm, q)
	ctx.remaining -= currBits
	// Never bust the budget.
	for ctx.remaining < 0 && q > 0 {
		ctx.remaining += currBits
		q--
		currBits = pulses2Bits(i, lm, q)
		ctx.remaining -= currBits
	}

	if q != 0 {
		return algUnquant(ctx.rd, x, n, getPulses(q), ctx.spread, blocks, gain, ctx.scratch)
	}

	// No pulses: fill the band anyway.
	cmMask := uint32(1)<<uint(blocks) - 1
	fill &= cmMask
	if fill == 0 {
		clear(x[:n])
		return 0
	}
	var cm uint32
	if lowband == nil {
		// Noise.
		for j := 0; j < n; j++ {
			ctx.seed = lcgRand(ctx.seed)
			x[j] = float64(int32(ctx.seed) >> 20)
		}
		cm = cmMask
	} else {
		// Folded spectrum, about 48 dB below the normal folding level.
		for j := 0; j < n; j++ {
			ctx.seed = lcgRand(ctx.seed)
			tmp := 1.0 / 256
			if ctx.seed&0x8000 == 0 {
				tmp = -tmp
			}
			x[j] = lowband[j] + tmp
		}
		cm = fill
	}
	renormaliseVector(x, n, gain)
	return cm
}

// quantBand decodes one mono band (or one channel in dual stereo),
// handling the time/frequency resolution changes around quantPartition.
//
// Reference: libopus celt/bands.c quant_band()
func (ctx *bandCtx) quantBand(x []float64, n, b, blocks int, lowband []float64, lm int, lowbandOut []float64, gain float64, lowbandScratch []float64, fill uint32) uint32 {
	n0 := n
	nb := n
	blocks0 := blocks
	timeDivide := 0
	recombine := 0
	longBlocks := blocks0 == 1
	tfChange := ctx.tfChange
	tmp := ctx.scratch.buffer(n)

	nb /= blocks

	if n == 1 {
		return ctx.quantBandN1(x, nil, b, lowbandOut)
	}

	if tfChange > 0 {
		recombine = tfChange
	}

	// Work on a copy of the fold source so the stored spectrum is kept.
	if lowbandScratch != nil && lowband != nil && (recombine != 0 || (nb&1 == 0 && tfChange < 0) || blocks0 > 1) {
		copy(lowbandScratch[:n], lowband[:n])
		lowband = lowbandScratch
	}

	// Band recombining to increase frequency resolution.
	for k := 0; k < recombine; k++ {
		if lowband != nil {
			haar1(lowband, n>>k, 1<<k)
		}
		fill = uint32(bitInterleaveTable[fill&0xF] | bitInterleaveTable[fill>>4]<<2)
	}
	blocks >>= recombine
	nb <<= recombine

	// Increasing the time resolution.
	for nb&1 == 0 && tfChange < 0 {
		if lowband != nil {
			haar1(lowband, nb, blocks)
		}
		fill |= fill << uint(blocks)
		blocks <<= 1
		nb >>= 1
		timeDivide++
		tfChange++
	}
	blocks0 = blocks
	nb0 := nb

	// Reorganize the samples in time order instead of frequency order.
	if blocks0 > 1 && lowband != nil {
		deinterleaveHadamard(lowband, nb>>recombine, blocks0<<recombine, longBlocks, tmp)
	}

	cm := ctx.quantPartition(x, n, b, blocks, lowband, lm, gain, fill)

	if blocks0 > 1 {
		interleaveHadamard(x, nb>>recombine, blocks0<<recombine, longBlocks, tmp)
	}

	// Undo the time/frequency changes.
	nb = nb0
	blocks = blocks0
	for k := 0; k < timeDivide; k++ {
		blocks >>= 1
		nb <<= 1
		cm |= cm >> uint(blocks)
		haar1(x, nb, blocks)
	}
	for k := 0; k < recombine; k++ {
		cm = uint32(bitDeinterleaveTable[cm])
		haar1(x, n0>>k, 1<<k)
	}
	blocks <<= recombine

	// Scale the output for later folding.
	if lowbandOut != nil {
		scale := math.Sqrt(float64(n0))
		for j := 0; j < n0; j++ {
			lowbandOut[j] = scale * x[j]
		}
	}
	return cm & (1<<uint(blocks) - 1)
}

// quantBandStereo decodes a coupled stereo band as mid and side.
//
// Reference: libopus celt/bands.c quant_band_stereo()
func (ctx *bandCtx) quantBandStereo(x, y []float64, n, b, blocks int, lowband []float64, lm int, lowbandOut, lowbandScratch []float64, fill uint32) uint32 {
	if n == 1 {
		return ctx.quantBandN1(x, y, b, lowbandOut)
	}

	origFill := fill
	var sctx splitCtx
	ctx.computeTheta(&sctx, n, &b, blocks, blocks, lm, true, &fill)
	mid := float64(sctx.imid) / 32768
	side := float64(sctx.iside) / 32768
	itheta := sctx.itheta

	var cm uint32
	if n == 2 {
		// Mid and side are orthogonal, so the side needs a single sign bit.
		mbits := b
		sbits := 0
		if itheta != 0 && itheta != 16384 {
			sbits = 1 << bitRes
		}
		mbits -= sbits
		ctx.remaining -= sctx.qalloc + sbits

		x2, y2 := x, y
		if itheta > 8192 {
			x2, y2 = y, x
		}
		sign := 1.0
		if sbits != 0 && ctx.rd.DecodeRawBits(1) != 0 {
			sign = -1
		}
		// Fold with origFill: with itheta==16384 the low fill bits are cleared.
		cm = ctx.quantBand(x2, n, mbits, blocks, lowband, lm, lowbandOut, 1.0, lowbandScratch, origFill)
		y2[0] = -sign * x2[1]
		y2[1] = sign * x2[0]

		x[0] *= mid
		x[1] *= mid
		y[0] *= side
		y[1] *= side
		t := x[0]
		x[0] = t - y[0]
		y[0] = t + y[0]
		t = x[1]
		x[1] = t - y[1]
		y[1] = t + y[1]
	} else {
		mbits := max(0, min(b, (b-sctx.delta)/2))
		sbits := b - mbits
		ctx.remaining -= sctx.qalloc

		// The mid is left unscaled because it is the fold source of later
		// bands. The high fill bits are always zero, so the side never folds.
		rebalance := ctx.remaining
		if mbits >= sbits {
			cm = ctx.quantBand(x, n, mbits, blocks, lowband, lm, lowbandOut, 1.0, lowbandScratch, fill)
			rebalance = mbits - (rebalance - ctx.remaining)
			if rebalance > 3<<bitRes && itheta != 0 {
				sbits += rebalance - (3 << bitRes)
			}
			cm |= ctx.quantBand(y, n, sbits, blocks, nil, lm, nil, side, nil, fill>>uint(blocks))
		} else {
			cm = ctx.quantBand(y, n, sbits, blocks, nil, lm, nil, side, nil, fill>>uint(blocks))
			rebalance = sbits - (rebalance - ctx.remaining)
			if rebalance > 3<<bitRes && itheta != 16384 {
				mbits += rebalance - (3 << bitRes)
			}
			cm |= ctx.quantBand(x, n, mbits, blocks, lowband, lm, lowbandOut, 1.0, lowbandScratch, fill)
		}
		stereoMerge(x, y, mid, n)
	}

	if sctx.inv {
		for j := 0; j < n; j++ {
			y[j] = -y[j]
		}
	}
	return cm
}

// stereoMerge converts decoded mid/side shapes back to left/right.
func stereoMerge(x, y []float64, mid float64, n int) {
	var xp, side float64
	for j := 0; j < n; j++ {
		xp += y[j] * x[j]
		side += y[j] * y[j]
	}
	// Compensate for the mid normalization.
	xp *= mid
	el := mid*mid + side - 2*xp
	er := mid*mid + side + 2*xp
	if er < 6e-4 || el < 6e-4 {
		copy(y[:n], x[:n])
		return
	}
	lgain := 1 / math.Sqrt(el)
	rgain := 1 / math.Sqrt(er)
	for j := 0; j < n; j++ {
		l := mid * x[j]
		r := y[j]
		x[j] = lgain * (l - r)
		y[j] = rgain * (l + r)
	}
}

// bandsScratch holds the buffers of quantAllBands.
type bandsScratch struct {
	norm           []float64
	lowbandScratch []float64
	pvq            pvqScratch
}

func (s *bandsScratch) init() {
	n := MaxFrameSize // 8*eBands[20] plus room for the last band
	s.norm = make([]float64, 2*n)
	s.lowbandScratch = make([]float64, n)
}

// bandParams are the frame-level inputs of quantAllBands.
type bandParams struct {
	start, end  int
	lm          int
	channels    int
	shortBlocks bool
	spread      int
	tfRes       []int
	totalBits   int // 1/8 bits, minus the anti-collapse reservation
	alloc       *allocation
}

// quantAllBands decodes the normalized shapes of every band into x (and y
// for stereo), recording which short blocks collapsed in collapseMasks.
//
// Reference: libopus celt/bands.c quant_all_bands()
func quantAllBands(rd *rangecoding.Decoder, p *bandParams, x, y []float64, collapseMasks []uint8, seed *uint32, s *bandsScratch) {
	start, end, lm, channels := p.start, p.end, p.lm, p.channels
	a := p.alloc
	m := 1 << lm
	blocks := 1
	if p.shortBlocks {
		blocks = m
	}
	normOffset := m * eBands[start]
	normLen := m*eBands[MaxBands-1] - normOffset
	norm := s.norm[:normLen]
	norm2 := s.norm[normLen : 2*normLen]
	dualStereo := a.dualStereo
	balance := a.balance

	ctx := bandCtx{
		rd:        rd,
		intensity: a.intensity,
		spread:    p.spread,
		seed:      *seed,
		scratch:   &s.pvq,
	}

	lowbandOffset := 0
	updateLowband := true
	for i := start; i < end; i++ {
		ctx.band = i
		last := i == end-1

		bx := x[m*eBands[i]:]
		var by []float64
		if y != nil {
			by = y[m*eBands[i]:]
		}
		n := m*eBands[i+1] - m*eBands[i]
		tell := rd.TellFrac()

		// Compute how many bits we want to allocate to this band.
		if i != start {
			balance -= tell
		}
		remaining := p.totalBits - tell - 1
		ctx.remaining = remaining
		b := 0
		if i <= a.codedBands-1 {
			currBalance := balance / min(3, a.codedBands-i)
			b = max(0, min(16383, min(remaining+1, a.pulses[i]+currBalance)))
		}

		if m*eBands[i]-n >= m*eBands[start] || i == start+1 {
			if updateLowband || lowbandOffset == 0 {
				lowbandOffset = i
			}
		}
		if i == start+1 {
			specialHybridFolding(norm, norm2, start, m, dualStereo)
		}

		ctx.tfChange = p.tfRes[i]
		lowbandScratch := s.lowbandScratch
		if last {
			lowbandScratch = nil
		}

		// Conservative estimate of the collapse masks of the bands we fold from.
		effectiveLowband := -1
		var xcm, ycm uint32
		if lowbandOffset != 0 && (p.spread != spreadAggressive || blocks > 1 || ctx.tfChange < 0) {
			// Never repeat spectral content within one band.
			effectiveLowband = max(0, m*eBands[lowbandOffset]-normOffset-n)
			foldStart := lowbandOffset
			for {
				foldStart--
				if m*eBands[foldStart] <= effectiveLowband+normOffset {
					break
				}
			}
			foldEnd := lowbandOffset - 1
			for {
				foldEnd++
				if foldEnd >= i || m*eBands[foldEnd] >= effectiveLowband+normOffset+n {
					break
				}
			}
			for fi := foldStart; ; {
				xcm |= uint32(collapseMasks[fi*channels])
				ycm |= uint32(collapseMasks[fi*channels+channels-1])
				fi++
				if fi >= foldEnd {
					break
				}
			}
		} else {
			// Folding from the LCG leaves every block (almost always) non-zero.
			xcm = 1<<uint(blocks) - 1
			ycm = xcm
		}

		if dualStereo && i == a.intensity {
			// Switch off dual stereo to do intensity.
			dualStereo = false
			for j := 0; j < m*eBands[i]-normOffset; j++ {
				norm[j] = 0.5 * (norm[j] + norm2[j])
			}
		}

		var lowband, lowband2, lowbandOut, lowbandOut2 []float64
		if effectiveLowband != -1 {
			lowband = norm[effectiveLowband:]
			lowband2 = norm2[effectiveLowband:]
		}
		if !last {
			lowbandOut = norm[m*eBands[i]-normOffset:]
			lowbandOut2 = norm2[m*eBands[i]-normOffset:]
		}

		switch {
		case dualStereo:
			xcm = ctx.quantBand(bx, n, b/2, blocks, lowband, lm, lowbandOut, 1.0, lowbandScratch, xcm)
			ycm = ctx.quantBand(by, n, b/2, blocks, lowband2, lm, lowbandOut2, 1.0, lowbandScratch, ycm)
		case by != nil:
			xcm = ctx.quantBandStereo(bx, by, n, b, blocks, lowband, lm, lowbandOut, lowbandScratch, xcm|ycm)
			ycm = xcm
		default:
			xcm = ctx.quantBand(bx, n, b, blocks, lowband, lm, lowbandOut, 1.0, lowbandScratch, xcm|ycm)
			ycm = xcm
		}
		collapseMasks[i*channels] = uint8(xcm)
		collapseMasks[i*channels+channels-1] = uint8(ycm)
		balance += a.pulses[i] + tell

		// Update the folding position only as long as we have 1 bit/sample depth.
		updateLowband = b > n<<bitRes
	}
	*seed = ctx.seed
}

// specialHybridFolding duplicates enough of the first band's folding data
// to fold the second band. It copies nothing when the first two bands have
// the same width, which is always the case for CELT-only streams.
func specialHybridFolding(norm, norm2 []float64, start, m int, dualStereo bool) {
	n1 := m * (eBands[start+1] - eBands[start])
	n2 := m * (eBands[start+2] - eBands[start+1])
	if n2 <= n1 {
		return
	}
	copy(norm[n1:n2], norm[2*n1-n2:n1])
	if dualStereo {
		copy(norm2[n1:n2], norm2[2*n1-n2:n1])
	}
}
