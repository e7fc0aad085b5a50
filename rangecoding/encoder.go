package rangecoding

// Encoder implements the range encoder per RFC 6716 Section 4.1.
// It mirrors libopus entenc.c and is the exact inverse of Decoder.
//
// The decoder never needs it; it exists so tests can build frames whose
// symbols are known in advance.
type Encoder struct {
	buf        []byte // Output buffer, fixed size
	storage    uint32 // Buffer capacity
	offs       uint32 // Write offset of the range-coded data
	endOffs    uint32 // Bytes written at the end for raw bits
	endWindow  uint32 // Raw-bit window
	nendBits   int    // Bits in endWindow
	nbitsTotal int    // Whole bits accounted for, used by Tell
	rng        uint32 // Range size
	val        uint32 // Low end of the range
	rem        int    // Buffered byte awaiting carry resolution (-1 = none)
	ext        uint32 // Count of pending 0xFF bytes
	err        int    // Error flag
}

// NewEncoder returns an encoder writing into a zeroed buffer of size bytes.
func NewEncoder(size int) *Encoder {
	e := &Encoder{}
	e.Init(make([]byte, size))
	return e
}

// Init initializes the encoder with the given output buffer.
// The whole buffer is the frame: raw bits land at its end.
func (e *Encoder) Init(buf []byte) {
	e.buf = buf
	e.storage = uint32(len(buf))
	e.offs = 0
	e.endOffs = 0
	e.endWindow = 0
	e.nendBits = 0
	e.nbitsTotal = EC_CODE_BITS + 1
	e.rng = EC_CODE_TOP
	e.val = 0
	e.rem = -1
	e.ext = 0
	e.err = 0
}

func (e *Encoder) writeByte(b byte) {
	if e.offs+e.endOffs >= e.storage {
		e.err = -1
		return
	}
	e.buf[e.offs] = b
	e.offs++
}

func (e *Encoder) writeEndByte(b byte) {
	if e.offs+e.endOffs >= e.storage {
		e.err = -1
		return
	}
	e.endOffs++
	e.buf[e.storage-e.endOffs] = b
}

// carryOut buffers one output symbol until it is known whether a carry
// from later symbols must propagate into it.
func (e *Encoder) carryOut(c int) {
	if c != EC_SYM_MAX {
		carry := c >> EC_SYM_BITS
		if e.rem >= 0 {
			e.writeByte(byte(e.rem + carry))
		}
		if e.ext > 0 {
			sym := byte((EC_SYM_MAX + carry) & EC_SYM_MAX)
			for ; e.ext > 0; e.ext-- {
				e.writeByte(sym)
			}
		}
		e.rem = c & EC_SYM_MAX
	} else {
		e.ext++
	}
}

func (e *Encoder) normalize() {
	for e.rng <= EC_CODE_BOT {
		e.carryOut(int(e.val >> EC_CODE_SHIFT))
		e.val = (e.val << EC_SYM_BITS) & (EC_CODE_TOP - 1)
		e.rng <<= EC_SYM_BITS
		e.nbitsTotal += EC_SYM_BITS
	}
}

// Encode encodes the symbol occupying [fl, fh) out of ft.
func (e *Encoder) Encode(fl, fh, ft uint32) {
	r := e.rng / ft
	if fl > 0 {
		e.val += e.rng - r*(ft-fl)
		e.rng = r * (fh - fl)
	} else {
		e.rng -= r * (ft - fh)
	}
	e.normalize()
}

// EncodeBin is Encode for a total frequency of 1<<bits.
func (e *Encoder) EncodeBin(fl, fh uint32, bits uint) {
	r := e.rng >> bits
	ft := uint32(1) << bits
	if fl > 0 {
		e.val += e.rng - r*(ft-fl)
		e.rng = r * (fh - fl)
	} else {
		e.rng -= r * (ft - fh)
	}
	e.normalize()
}

// EncodeBit encodes a bit whose probability of being 1 is 1/(1<<logp).
func (e *Encoder) EncodeBit(val int, logp uint) {
	r := e.rng
	s := r >> logp
	r -= s
	if val != 0 {
		e.val += r
		e.rng = s
	} else {
		e.rng = r
	}
	e.normalize()
}

// EncodeICDF encodes symbol s with an inverse cumulative distribution table.
func (e *Encoder) EncodeICDF(s int, icdf []uint8, ftb uint) {
	r := e.rng >> ftb
	if s > 0 {
		e.val += e.rng - r*uint32(icdf[s-1])
		e.rng = r * uint32(icdf[s-1]-icdf[s])
	} else {
		e.rng -= r * uint32(icdf[s])
	}
	e.normalize()
}

// EncodeUniform encodes val uniformly distributed in [0, ft).
func (e *Encoder) EncodeUniform(val, ft uint32) {
	if ft <= 1 {
		return
	}
	ft--
	ftb := ilog(ft)
	if ftb > EC_UINT_BITS {
		ftb -= EC_UINT_BITS
		ft1 := (ft >> uint(ftb)) + 1
		fl := val >> uint(ftb)
		e.Encode(fl, fl+1, ft1)
		e.EncodeRawBits(val&(uint32(1)<<uint(ftb)-1), uint(ftb))
		return
	}
	e.Encode(val, val+1, ft+1)
}

// EncodeRawBits appends bits raw bits to the end of the buffer.
func (e *Encoder) EncodeRawBits(val uint32, bits uint) {
	window := e.endWindow
	used := e.nendBits
	if used+int(bits) > EC_WINDOW_SIZE {
		for used >= EC_SYM_BITS {
			e.writeEndByte(byte(window & EC_SYM_MAX))
			window >>= EC_SYM_BITS
			used -= EC_SYM_BITS
		}
	}
	window |= val << uint(used)
	used += int(bits)
	e.endWindow = window
	e.nendBits = used
	e.nbitsTotal += int(bits)
}

// Tell returns the number of whole bits written so far, rounded up.
func (e *Encoder) Tell() int {
	return e.nbitsTotal - ilog(e.rng)
}

// TellFrac returns the number of bits written in 1/8 bit units.
func (e *Encoder) TellFrac() int {
	nbits := e.nbitsTotal << BITRES
	l := ilog(e.rng)
	r := e.rng >> uint(l-16)
	b := int(r>>12) - 8
	if r > tellFracCorrection[b] {
		b++
	}
	return nbits - (l<<3 + b)
}

// Range returns the current range size.
func (e *Encoder) Range() uint32 {
	return e.rng
}

// Error returns the error flag. Non-zero means the buffer overflowed.
func (e *Encoder) Error() int {
	return e.err
}

// Done flushes the encoder and returns the whole storage-sized buffer,
// range-coded data at the front, raw bits at the back and zeros between.
// This follows libopus ec_enc_done.
func (e *Encoder) Done() []byte {
	l := EC_CODE_BITS - ilog(e.rng)
	msk := uint32(EC_CODE_TOP-1) >> uint(l)
	end := (e.val + msk) &^ msk
	if (end | msk) >= e.val+e.rng {
		l++
		msk >>= 1
		end = (e.val + msk) &^ msk
	}
	for l > 0 {
		e.carryOut(int(end >> EC_CODE_SHIFT))
		end = (end << EC_SYM_BITS) & (EC_CODE_TOP - 1)
		l -= EC_SYM_BITS
	}
	if e.rem >= 0 || e.ext > 0 {
		e.carryOut(0)
	}

	window := e.endWindow
	used := e.nendBits
	for used >= EC_SYM_BITS {
		e.writeEndByte(byte(window & EC_SYM_MAX))
		window >>= EC_SYM_BITS
		used -= EC_SYM_BITS
	}

	if e.err == 0 {
		clear(e.buf[e.offs : e.storage-e.endOffs])
		if used > 0 {
			if e.endOffs >= e.storage {
				e.err = -1
			} else {
				l = -l
				if e.offs+e.endOffs >= e.storage && l < used {
					window &= uint32(1)<<uint(l) - 1
					e.err = -1
				}
				e.buf[e.storage-e.endOffs-1] |= byte(window)
			}
		}
	}
	return e.buf[:e.storage]
}
