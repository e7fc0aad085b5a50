package rangecoding

import "testing"

func TestDecoderInit(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{name: "empty buffer", buf: []byte{}},
		{name: "single byte", buf: []byte{0x00}},
		{name: "single byte 0xFF", buf: []byte{0xFF}},
		{name: "multiple bytes", buf: []byte{0x12, 0x34, 0x56, 0x78}},
		{name: "all ones", buf: []byte{0xFF, 0xFF, 0xFF, 0xFF}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDecoder(tc.buf)
			if d.rng <= EC_CODE_BOT {
				t.Errorf("rng = 0x%X, want > 0x%X", d.rng, EC_CODE_BOT)
			}
			if d.Error() != 0 {
				t.Errorf("error flag = %d, want 0", d.Error())
			}
			// libopus starts every frame having accounted exactly one bit.
			if got := d.Tell(); got != 1 {
				t.Errorf("Tell() = %d, want 1", got)
			}
		})
	}
}

func TestDecodeRawBitsFromEnd(t *testing.T) {
	buf := []byte{0x00, 0x00, 0x3C, 0xA5}

	d := NewDecoder(buf)
	if got := d.DecodeRawBits(4); got != 0x5 {
		t.Fatalf("first nibble = %#x, want 0x5", got)
	}
	if got := d.DecodeRawBits(4); got != 0xA {
		t.Fatalf("second nibble = %#x, want 0xa", got)
	}
	if got := d.DecodeRawBits(8); got != 0x3C {
		t.Fatalf("second byte = %#x, want 0x3c", got)
	}
	if got := d.Tell(); got != 17 {
		t.Fatalf("Tell() = %d, want 17", got)
	}
}

func TestDecodeRawBitsPastEndReadsZero(t *testing.T) {
	d := NewDecoder([]byte{0xFF})
	if got := d.DecodeRawBits(8); got != 0xFF {
		t.Fatalf("DecodeRawBits(8) = %#x, want 0xff", got)
	}
	for i := 0; i < 8; i++ {
		if got := d.DecodeRawBits(16); got != 0 {
			t.Fatalf("read %d past end = %#x, want 0", i, got)
		}
	}
	if d.Error() != 0 {
		t.Fatalf("exhaustion must not raise the error flag")
	}
}

func TestDecodeExhaustedBufferIsDeterministic(t *testing.T) {
	run := func() []int {
		d := NewDecoder(nil)
		var out []int
		for i := 0; i < 64; i++ {
			out = append(out, d.DecodeBit(1+uint(i%15)))
			out = append(out, int(d.DecodeUniform(37)))
			out = append(out, d.DecodeICDF([]uint8{25, 23, 2, 0}, 5))
		}
		return out
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("symbol %d differs between runs: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestExhaust(t *testing.T) {
	d := NewDecoder(make([]byte, 10))
	d.Exhaust()
	if got, want := d.Tell(), d.StorageBits(); got != want {
		t.Fatalf("Tell() after Exhaust = %d, want %d", got, want)
	}
}

func TestTellFracTracksTell(t *testing.T) {
	d := NewDecoder([]byte{0x5A, 0x13, 0x99, 0x01, 0xFE, 0x77, 0x00, 0x42})
	for i := 0; i < 20; i++ {
		d.DecodeBit(2)
		tell := d.Tell()
		frac := d.TellFrac()
		if frac > tell*8 || frac <= (tell-1)*8 {
			t.Fatalf("step %d: TellFrac()=%d not within Tell()=%d", i, frac, tell)
		}
	}
}
