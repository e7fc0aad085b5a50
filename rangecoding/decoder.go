package rangecoding

import "math/bits"

// Decoder implements the range decoder per RFC 6716 Section 4.1.
// It follows libopus entdec.c bit for bit.
//
// Symbols are read from the front of the buffer while raw bits are read
// backward from its end. Reading past either end yields zero bytes; the
// decoder never fails, it only raises the error flag on out-of-range
// uniform values.
type Decoder struct {
	buf        []byte // Input buffer
	storage    uint32 // Buffer size in bytes
	offs       uint32 // Read offset of the range-coded data
	endOffs    uint32 // Bytes consumed from the end for raw bits
	endWindow  uint32 // Raw-bit window
	nendBits   int    // Number of valid bits in endWindow
	nbitsTotal int    // Whole bits accounted for, used by Tell
	rng        uint32 // Range size, > EC_CODE_BOT after normalize
	val        uint32 // Difference between the top of the range and the code value
	ext        uint32 // Scale saved by Decode for the matching Update
	rem        int    // Partial byte carried between normalizations
	err        int    // Error flag
}

// NewDecoder returns a decoder initialized over buf.
func NewDecoder(buf []byte) *Decoder {
	d := &Decoder{}
	d.Init(buf)
	return d
}

// Init initializes the decoder with the given byte buffer.
// This follows libopus ec_dec_init exactly.
func (d *Decoder) Init(buf []byte) {
	d.buf = buf
	d.storage = uint32(len(buf))
	d.offs = 0
	d.endOffs = 0
	d.endWindow = 0
	d.nendBits = 0
	d.nbitsTotal = EC_CODE_BITS + 1 -
		((EC_CODE_BITS-EC_CODE_EXTRA)/EC_SYM_BITS)*EC_SYM_BITS
	d.rng = 1 << EC_CODE_EXTRA
	d.rem = int(d.readByte())
	d.val = d.rng - 1 - uint32(d.rem>>(EC_SYM_BITS-EC_CODE_EXTRA))
	d.ext = 0
	d.err = 0
	d.normalize()
}

func (d *Decoder) readByte() byte {
	if d.offs < d.storage {
		b := d.buf[d.offs]
		d.offs++
		return b
	}
	return 0
}

func (d *Decoder) readByteFromEnd() byte {
	if d.endOffs < d.storage {
		d.endOffs++
		return d.buf[d.storage-d.endOffs]
	}
	return 0
}

// normalize keeps rng above EC_CODE_BOT by shifting in more input.
func (d *Decoder) normalize() {
	for d.rng <= EC_CODE_BOT {
		d.nbitsTotal += EC_SYM_BITS
		d.rng <<= EC_SYM_BITS

		sym := d.rem
		d.rem = int(d.readByte())
		sym = (sym<<EC_SYM_BITS | d.rem) >> (EC_SYM_BITS - EC_CODE_EXTRA)

		d.val = ((d.val << EC_SYM_BITS) + uint32(EC_SYM_MAX&^sym)) & (EC_CODE_TOP - 1)
	}
}

// Decode returns the cumulative frequency of the next symbol for a
// distribution with total ft. It must be followed by Update.
// Mirrors libopus ec_decode.
func (d *Decoder) Decode(ft uint32) uint32 {
	d.ext = d.rng / ft
	s := d.val / d.ext
	return ft - min(s+1, ft)
}

// DecodeBin is Decode for a total frequency of 1<<bits.
// Mirrors libopus ec_decode_bin.
func (d *Decoder) DecodeBin(bits uint) uint32 {
	d.ext = d.rng >> bits
	s := d.val / d.ext
	ft := uint32(1) << bits
	return ft - min(s+1, ft)
}

// Update consumes the symbol occupying [fl, fh) out of ft, using the scale
// computed by the preceding Decode or DecodeBin.
// Mirrors libopus ec_dec_update.
func (d *Decoder) Update(fl, fh, ft uint32) {
	s := d.ext * (ft - fh)
	d.val -= s
	if fl > 0 {
		d.rng = d.ext * (fh - fl)
	} else {
		d.rng -= s
	}
	d.normalize()
}

// DecodeBit decodes a single bit whose probability of being 1 is 1/(1<<logp).
// Mirrors libopus ec_dec_bit_logp.
func (d *Decoder) DecodeBit(logp uint) int {
	r := d.rng
	dval := d.val
	s := r >> logp
	ret := 0
	if dval < s {
		ret = 1
		d.rng = s
	} else {
		d.val = dval - s
		d.rng = r - s
	}
	d.normalize()
	return ret
}

// DecodeICDF decodes a symbol using an inverse cumulative distribution table.
// The table decreases to 0 and its implied total is 1<<ftb.
// Mirrors libopus ec_dec_icdf.
func (d *Decoder) DecodeICDF(icdf []uint8, ftb uint) int {
	s := d.rng
	dval := d.val
	r := s >> ftb
	ret := -1
	var t uint32
	for {
		t = s
		ret++
		s = r * uint32(icdf[ret])
		if dval >= s {
			break
		}
	}
	d.val = dval - s
	d.rng = t - s
	d.normalize()
	return ret
}

// DecodeUniform decodes an integer uniformly distributed in [0, ft).
// Values above 8 bits are split into a range-coded head and raw tail bits.
// An out-of-range result is clamped to ft-1 and raises the error flag.
// Mirrors libopus ec_dec_uint.
func (d *Decoder) DecodeUniform(ft uint32) uint32 {
	if ft <= 1 {
		return 0
	}
	ft--
	ftb := ilog(ft)
	if ftb > EC_UINT_BITS {
		ftb -= EC_UINT_BITS
		ft1 := (ft >> uint(ftb)) + 1
		s := d.Decode(ft1)
		d.Update(s, s+1, ft1)
		t := s<<uint(ftb) | d.DecodeRawBits(uint(ftb))
		if t <= ft {
			return t
		}
		d.err = 1
		return ft
	}
	ft++
	s := d.Decode(ft)
	d.Update(s, s+1, ft)
	return s
}

// DecodeRawBits reads bits raw bits packed backward from the end of the buffer.
// Bytes beyond the buffer read as zero.
// Mirrors libopus ec_dec_bits.
func (d *Decoder) DecodeRawBits(bits uint) uint32 {
	window := d.endWindow
	available := d.nendBits
	if uint(available) < bits {
		for {
			window |= uint32(d.readByteFromEnd()) << uint(available)
			available += EC_SYM_BITS
			if available > EC_WINDOW_SIZE-EC_SYM_BITS {
				break
			}
		}
	}
	ret := window & (uint32(1)<<bits - 1)
	window >>= bits
	available -= int(bits)
	d.endWindow = window
	d.nendBits = available
	d.nbitsTotal += int(bits)
	return ret
}

// Tell returns the number of whole bits consumed so far, rounded up.
func (d *Decoder) Tell() int {
	return d.nbitsTotal - ilog(d.rng)
}

// TellFrac returns the number of bits consumed in 1/8 bit units.
func (d *Decoder) TellFrac() int {
	nbits := d.nbitsTotal << BITRES
	l := ilog(d.rng)
	r := d.rng >> uint(l-16)
	b := int(r>>12) - 8
	if r > tellFracCorrection[b] {
		b++
	}
	return nbits - (l<<3 + b)
}

// Exhaust accounts every remaining bit of the buffer as consumed, so that
// later budget checks see no space left. Used for silence frames.
func (d *Decoder) Exhaust() {
	d.nbitsTotal += int(d.storage)*8 - d.Tell()
}

// StorageBits returns the size of the input buffer in bits.
func (d *Decoder) StorageBits() int {
	return int(d.storage) * 8
}

// Range returns the current range size. After a frame decode it is the
// value libopus reports as the final range.
func (d *Decoder) Range() uint32 {
	return d.rng
}

// Error returns the error flag. Non-zero indicates a clamped value.
func (d *Decoder) Error() int {
	return d.err
}

func ilog(x uint32) int {
	return bits.Len32(x)
}
