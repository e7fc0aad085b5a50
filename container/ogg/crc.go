package ogg

// Ogg pages carry a CRC-32 with polynomial 0x04C11DB7, no reflection, zero
// initial value and no final xor. hash/crc32 only implements the reflected
// form, so the table is built here.
var crcTable = func() (t [256]uint32) {
	const poly = uint32(0x04C11DB7)
	for i := range t {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}()

// oggCRC computes the page checksum of data.
func oggCRC(data []byte) uint32 {
	var crc uint32
	for _, b := range data {
		crc = crc<<8 ^ crcTable[byte(crc>>24)^b]
	}
	return crc
}
