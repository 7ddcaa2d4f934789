// Package bitstream implements random-access bit-granular I/O over a byte
// slice. Bits are packed least-significant first within each byte, the
// order used by Vorbis and by the Wwise packet formats.
package bitstream

import (
	"errors"
	"fmt"
	"io"
)

// ErrOutOfRange is returned when a read, write or seek leaves the stream.
var ErrOutOfRange = errors.New("bitstream: out of range")

// MaxBits is the largest count accepted by Read and Write.
const MaxBits = 32

type BitStream struct {
	data   []byte
	pos    int64 // bit position
	length int64 // bit length
	grow   bool
}

// New returns a fixed-size stream over data. The slice is shared, writes modify it.
func New(data []byte) *BitStream {
	return &BitStream{data: data, length: int64(len(data)) * 8}
}

// NewBits returns a fixed-size stream limited to the first bits of data.
func NewBits(data []byte, bits int64) (*BitStream, error) {
	if bits < 0 || bits > int64(len(data))*8 {
		return nil, fmt.Errorf("%w: %d bits over %d bytes", ErrOutOfRange, bits, len(data))
	}
	return &BitStream{data: data, length: bits}, nil
}

// NewWriter returns an empty stream that grows on write.
func NewWriter(capacity int) *BitStream {
	return &BitStream{data: make([]byte, 0, capacity), grow: true}
}

// Len returns the stream length in bits.
func (bs *BitStream) Len() int64 {
	return bs.length
}

// Position returns the cursor in bits.
func (bs *BitStream) Position() int64 {
	return bs.pos
}

// Remaining returns the number of bits between the cursor and the end.
func (bs *BitStream) Remaining() int64 {
	return bs.length - bs.pos
}

// Bytes returns the backing bytes up to the last (possibly partial) byte.
func (bs *BitStream) Bytes() []byte {
	return bs.data[:(bs.length+7)/8]
}

// Reset truncates a growable stream back to zero length.
func (bs *BitStream) Reset() {
	bs.pos = 0
	if bs.grow {
		bs.data = bs.data[:0]
		bs.length = 0
	}
}

// Seek moves the cursor by offset bits relative to whence.
func (bs *BitStream) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = bs.pos
	case io.SeekEnd:
		base = bs.length
	default:
		return bs.pos, fmt.Errorf("bitstream: invalid whence %d", whence)
	}
	next := base + offset
	if next < 0 || next > bs.length {
		return bs.pos, fmt.Errorf("%w: seek to bit %d of %d", ErrOutOfRange, next, bs.length)
	}
	bs.pos = next
	return next, nil
}

// Read consumes count bits and returns them as an unsigned value.
func (bs *BitStream) Read(count int) (uint32, error) {
	if count < 0 || count > MaxBits {
		return 0, fmt.Errorf("bitstream: invalid bit count %d", count)
	}
	if bs.pos+int64(count) > bs.length {
		return 0, fmt.Errorf("%w: read %d bits at %d of %d", ErrOutOfRange, count, bs.pos, bs.length)
	}
	var value uint32
	for i := 0; i < count; {
		idx := bs.pos >> 3
		shift := int(bs.pos & 7)
		n := min(8-shift, count-i)
		chunk := (uint32(bs.data[idx]) >> shift) & (1<<n - 1)
		value |= chunk << i
		i += n
		bs.pos += int64(n)
	}
	return value, nil
}

// ReadBool reads a single bit.
func (bs *BitStream) ReadBool() (bool, error) {
	v, err := bs.Read(1)
	return v == 1, err
}

// Peek reads count bits without moving the cursor.
func (bs *BitStream) Peek(count int) (uint32, error) {
	pos := bs.pos
	v, err := bs.Read(count)
	bs.pos = pos
	return v, err
}

// Write stores the low count bits of value at the cursor. Bits of the
// touched bytes outside the written range are preserved.
func (bs *BitStream) Write(count int, value uint32) error {
	if count < 0 || count > MaxBits {
		return fmt.Errorf("bitstream: invalid bit count %d", count)
	}
	end := bs.pos + int64(count)
	if end > bs.length {
		if !bs.grow {
			return fmt.Errorf("%w: write %d bits at %d of %d", ErrOutOfRange, count, bs.pos, bs.length)
		}
		bs.extend(end)
	}
	for i := 0; i < count; {
		idx := bs.pos >> 3
		shift := int(bs.pos & 7)
		n := min(8-shift, count-i)
		mask := byte((1<<n - 1) << shift)
		b := byte((value>>i)&(1<<n-1)) << shift
		bs.data[idx] = bs.data[idx]&^mask | b
		i += n
		bs.pos += int64(n)
	}
	return nil
}

// WriteBool writes a single bit.
func (bs *BitStream) WriteBool(v bool) error {
	if v {
		return bs.Write(1, 1)
	}
	return bs.Write(1, 0)
}

// Copy reads count bits from src and writes them to bs.
func (bs *BitStream) Copy(src *BitStream, count int) (uint32, error) {
	v, err := src.Read(count)
	if err != nil {
		return 0, err
	}
	return v, bs.Write(count, v)
}

// WriteBytes writes whole bytes, eight bits each.
func (bs *BitStream) WriteBytes(p []byte) error {
	for _, b := range p {
		if err := bs.Write(8, uint32(b)); err != nil {
			return err
		}
	}
	return nil
}

// Flush pads with zero bits up to the next byte boundary.
func (bs *BitStream) Flush() error {
	if pad := int((8 - bs.pos&7) & 7); pad > 0 {
		return bs.Write(pad, 0)
	}
	return nil
}

func (bs *BitStream) extend(bits int64) {
	need := int((bits + 7) / 8)
	for len(bs.data) < need {
		bs.data = append(bs.data, 0)
	}
	bs.length = bits
}
