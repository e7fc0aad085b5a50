package celt

import "github.com/mycrl/aquarana/rangecoding"

// CWRS (combinatorial radix-based with signs) indexing of PVQ codevectors.
//
// V(N,K) counts the integer vectors of dimension N whose absolute values sum
// to K. U(N,K) = (V(N,K-1) + V(N,K)) / 2 satisfies a simple row recurrence,
// so a single row of K+2 values is enough to decode any index. The row is
// rebuilt for every band instead of reading a static table.
//
// Reference: RFC 6716 Section 4.3.4.1, libopus celt/cwrs.c (SMALL_FOOTPRINT)

// unext advances a U row from N-1 to N. ui0 is the new first entry.
func unext(u []uint32, n int, ui0 uint32) {
	j := 1
	for {
		ui1 := u[j] + u[j-1] + ui0
		u[j-1] = ui0
		ui0 = ui1
		j++
		if j >= n {
			break
		}
	}
	u[j-1] = ui0
}

// uprev steps a U row from N back to N-1.
func uprev(u []uint32, n int, ui0 uint32) {
	j := 1
	for {
		ui1 := u[j] - u[j-1] - ui0
		u[j-1] = ui0
		ui0 = ui1
		j++
		if j >= n {
			break
		}
	}
	u[j-1] = ui0
}

// ncwrsURow fills u[0:k+2] with U(n,0..k+1) and returns V(n,k).
// It requires n >= 2 and k >= 1.
func ncwrsURow(n, k int, u []uint32) uint32 {
	length := k + 2
	u[0] = 0
	u[1] = 1
	for i := 2; i < length; i++ {
		u[i] = uint32(i<<1 - 1)
	}
	for i := 2; i < n; i++ {
		unext(u[1:], k+1, 1)
	}
	return u[k] + u[k+1]
}

// cwrsi converts index i into the codevector y of n dimensions and k
// pulses, consuming the row u built by ncwrsURow. It returns the squared
// norm of y.
func cwrsi(n, k int, i uint32, y []int, u []uint32) float64 {
	var yy float64
	for j := 0; j < n; j++ {
		p := u[k+1]
		s := 0
		if i >= p {
			s = -1
			i -= p
		}
		yj := k
		p = u[k]
		for p > i {
			k--
			p = u[k]
		}
		i -= p
		yj -= k
		v := (yj + s) ^ s
		y[j] = v
		yy += float64(v * v)
		uprev(u, k+2, 0)
	}
	return yy
}

// decodePulses reads one PVQ codevector of n dimensions and k pulses into
// y and returns its squared norm. u is scratch of at least k+2 entries.
//
// Reference: libopus celt/cwrs.c decode_pulses()
func decodePulses(rd *rangecoding.Decoder, y []int, n, k int, u []uint32) float64 {
	total := ncwrsURow(n, k, u)
	return cwrsi(n, k, rd.DecodeUniform(total), y, u)
}
