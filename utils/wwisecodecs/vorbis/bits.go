package vorbis

import (
	"math/bits"

	"haruki-wwise-audio/utils/wwisecodecs/bitstream"
)

// BitWriter receives rebuilt Vorbis bits. Both *ogg.Writer and a growable
// *bitstream.BitStream satisfy it.
type BitWriter interface {
	Write(count int, value uint32) error
}

// ilog returns the number of bits needed to represent v, as defined by the
// Vorbis I format.
func ilog(v uint32) int {
	return bits.Len32(v)
}

// bitCopier moves bits from a source stream to a writer and keeps the first
// error, so callers check once per section instead of once per field.
type bitCopier struct {
	r   *bitstream.BitStream
	w   BitWriter
	err error
}

func (c *bitCopier) read(n int) uint32 {
	if c.err != nil {
		return 0
	}
	v, err := c.r.Read(n)
	if err != nil {
		c.err = err
		return 0
	}
	return v
}

func (c *bitCopier) write(n int, v uint32) {
	if c.err != nil {
		return
	}
	c.err = c.w.Write(n, v)
}

func (c *bitCopier) copy(n int) uint32 {
	v := c.read(n)
	c.write(n, v)
	return v
}

// widen reads n bits and writes them as m bits.
func (c *bitCopier) widen(n, m int) uint32 {
	v := c.read(n)
	c.write(m, v)
	return v
}

// field copies an n-bit field of a standard setup, or writes value in its
// place when the compact form omits it.
func (c *bitCopier) field(std bool, n int, value uint32) uint32 {
	if std {
		return c.copy(n)
	}
	c.write(n, value)
	return value
}

func (c *bitCopier) writeString(s string) {
	c.write(32, uint32(len(s)))
	for i := 0; i < len(s); i++ {
		c.write(8, uint32(s[i]))
	}
}
