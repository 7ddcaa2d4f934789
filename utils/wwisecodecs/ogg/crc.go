package ogg

// Ogg uses the non-reflected CRC-32 with polynomial 0x04c11db7 and a zero
// initial value, which hash/crc32 does not provide.
var crcTable = func() [256]uint32 {
	var t [256]uint32
	for i := range t {
		r := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if r&0x80000000 != 0 {
				r = r<<1 ^ 0x04c11db7
			} else {
				r <<= 1
			}
		}
		t[i] = r
	}
	return t
}()

func crcChecksum(data []byte) uint32 {
	var sum uint32
	for _, b := range data {
		sum = sum<<8 ^ crcTable[byte(sum>>24)^b]
	}
	return sum
}
