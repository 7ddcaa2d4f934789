package utils

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"golang.org/x/text/encoding/unicode"
)

// BinaryStream reads fixed-width little- or big-endian values from a seekable source.
type BinaryStream struct {
	BaseStream io.ReadSeeker
	Endian     binary.ByteOrder
	buf        [8]byte
}

func NewBinaryStream(baseStream io.ReadSeeker, endian string) *BinaryStream {
	bs := &BinaryStream{
		BaseStream: baseStream,
	}
	if endian == "big" {
		bs.Endian = binary.BigEndian
	} else {
		bs.Endian = binary.LittleEndian
	}
	return bs
}

func (bs *BinaryStream) Position() int64 {
	pos, _ := bs.BaseStream.Seek(0, io.SeekCurrent)
	return pos
}

func (bs *BinaryStream) SetPosition(pos int64) error {
	if _, err := bs.BaseStream.Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to %d: %w", pos, err)
	}
	return nil
}

// Length returns the size of the underlying stream, restoring the cursor.
func (bs *BinaryStream) Length() int64 {
	back := bs.Position()
	end, _ := bs.BaseStream.Seek(0, io.SeekEnd)
	_, _ = bs.BaseStream.Seek(back, io.SeekStart)
	return end
}

func (bs *BinaryStream) fill(n int) ([]byte, error) {
	b := bs.buf[:n]
	_, err := io.ReadFull(bs.BaseStream, b)
	return b, err
}

func (bs *BinaryStream) ReadByte() (byte, error) {
	b, err := bs.fill(1)
	return b[0], err
}

func (bs *BinaryStream) ReadBytes(length int) ([]byte, error) {
	buf := make([]byte, length)
	_, err := io.ReadFull(bs.BaseStream, buf)
	return buf, err
}

// ReadFourCC reads a four character chunk signature.
func (bs *BinaryStream) ReadFourCC() (string, error) {
	b, err := bs.fill(4)
	return string(b), err
}

func (bs *BinaryStream) ReadUInt16() (uint16, error) {
	b, err := bs.fill(2)
	return bs.Endian.Uint16(b), err
}

func (bs *BinaryStream) ReadInt32() (int32, error) {
	b, err := bs.fill(4)
	return int32(bs.Endian.Uint32(b)), err
}

func (bs *BinaryStream) ReadUInt32() (uint32, error) {
	b, err := bs.fill(4)
	return bs.Endian.Uint32(b), err
}

func (bs *BinaryStream) ReadUInt64() (uint64, error) {
	b, err := bs.fill(8)
	return bs.Endian.Uint64(b), err
}

func (bs *BinaryStream) ReadFloat32() (float32, error) {
	v, err := bs.ReadUInt32()
	return math.Float32frombits(v), err
}

// ReadUTF16StringToNull reads a null-terminated UTF-16 string in the stream's byte order.
func (bs *BinaryStream) ReadUTF16StringToNull() (string, error) {
	var raw []byte
	for {
		b, err := bs.fill(2)
		if err != nil {
			return "", err
		}
		if b[0] == 0 && b[1] == 0 {
			break
		}
		raw = append(raw, b[0], b[1])
	}
	order := unicode.LittleEndian
	if bs.Endian == binary.BigEndian {
		order = unicode.BigEndian
	}
	out, err := unicode.UTF16(order, unicode.IgnoreBOM).NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("failed to decode UTF-16 string: %w", err)
	}
	return string(out), nil
}
