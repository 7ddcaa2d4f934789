// Package ogg writes Ogg bitstream pages. Packet contents are assembled
// bit by bit, least-significant bit first, then framed into pages on flush.
package ogg

import (
	"encoding/binary"
	"fmt"
	"io"

	"haruki-wwise-audio/utils/wwisecodecs/bitstream"
)

// Page header type flags.
const (
	FlagContinued byte = 0x01
	FlagFirst     byte = 0x02
	FlagLast      byte = 0x04
)

const (
	maxSegments    = 255
	maxSegmentSize = 255
	headerSize     = 27

	// DefaultSerial is the stream serial number used by NewWriter.
	DefaultSerial uint32 = 1
)

type Writer struct {
	w        io.Writer
	packet   *bitstream.BitStream
	pending  [][]byte
	serial   uint32
	sequence uint32
	first    bool
	last     bool
	granule  int64
	written  int64
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:      w,
		packet: bitstream.NewWriter(256),
		serial: DefaultSerial,
		first:  true,
	}
}

// Granule is the position stamped on the next page that ends a packet.
func (ow *Writer) Granule() int64 {
	return ow.granule
}

// AddGranule advances the granule position.
func (ow *Writer) AddGranule(delta int64) {
	ow.granule += delta
}

// SetLast marks the next flushed page as the end of the stream.
func (ow *Writer) SetLast(last bool) {
	ow.last = last
}

// Pages returns the number of pages written.
func (ow *Writer) Pages() uint32 {
	return ow.sequence
}

// BytesWritten returns the number of bytes written to the underlying writer.
func (ow *Writer) BytesWritten() int64 {
	return ow.written
}

// Write appends the low count bits of value to the current packet.
func (ow *Writer) Write(count int, value uint32) error {
	return ow.packet.Write(count, value)
}

// WriteBytes appends whole bytes to the current packet.
func (ow *Writer) WriteBytes(p []byte) error {
	return ow.packet.WriteBytes(p)
}

// FlushPacket closes the current packet, zero padding its last byte.
func (ow *Writer) FlushPacket() error {
	if err := ow.packet.Flush(); err != nil {
		return err
	}
	p := make([]byte, len(ow.packet.Bytes()))
	copy(p, ow.packet.Bytes())
	ow.pending = append(ow.pending, p)
	ow.packet.Reset()
	return nil
}

type segment struct {
	data []byte
	end  bool // last segment of a packet
}

// FlushPage writes every closed packet as one or more pages. A packet that
// needs more than 255 lacing values continues on the next page.
func (ow *Writer) FlushPage() error {
	if len(ow.pending) == 0 {
		return nil
	}
	var segs []segment
	for _, p := range ow.pending {
		for len(p) >= maxSegmentSize {
			segs = append(segs, segment{data: p[:maxSegmentSize]})
			p = p[maxSegmentSize:]
		}
		segs = append(segs, segment{data: p, end: true})
	}
	ow.pending = ow.pending[:0]

	continued := false
	for len(segs) > 0 {
		n := min(len(segs), maxSegments)
		page := segs[:n]
		segs = segs[n:]

		var flags byte
		if continued {
			flags |= FlagContinued
		}
		if ow.first {
			flags |= FlagFirst
			ow.first = false
		}
		if ow.last && len(segs) == 0 {
			flags |= FlagLast
		}
		granule := int64(-1)
		if hasPacketEnd(page) {
			granule = ow.granule
		}
		if err := ow.writePage(flags, granule, page); err != nil {
			return err
		}
		continued = !page[n-1].end
	}
	return nil
}

func hasPacketEnd(segs []segment) bool {
	for _, s := range segs {
		if s.end {
			return true
		}
	}
	return false
}

func (ow *Writer) writePage(flags byte, granule int64, segs []segment) error {
	size := headerSize + len(segs)
	for _, s := range segs {
		size += len(s.data)
	}
	buf := make([]byte, headerSize+len(segs), size)
	copy(buf[0:4], "OggS")
	buf[4] = 0
	buf[5] = flags
	binary.LittleEndian.PutUint64(buf[6:14], uint64(granule))
	binary.LittleEndian.PutUint32(buf[14:18], ow.serial)
	binary.LittleEndian.PutUint32(buf[18:22], ow.sequence)
	buf[26] = byte(len(segs))
	for i, s := range segs {
		buf[headerSize+i] = byte(len(s.data))
		buf = append(buf, s.data...)
	}
	binary.LittleEndian.PutUint32(buf[22:26], crcChecksum(buf))

	n, err := ow.w.Write(buf)
	ow.written += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write ogg page %d: %w", ow.sequence, err)
	}
	ow.sequence++
	return nil
}

// Close flushes any pending packet data and pages.
func (ow *Writer) Close() error {
	if ow.packet.Len() > 0 {
		if err := ow.FlushPacket(); err != nil {
			return err
		}
	}
	return ow.FlushPage()
}
