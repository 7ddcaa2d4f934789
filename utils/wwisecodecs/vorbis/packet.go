package vorbis

import (
	"encoding/binary"
	"fmt"
)

// packet is a Wwise Vorbis packet: a 16-bit little-endian size followed by the payload.
type packet struct {
	offset int64 // payload start
	size   int64
}

const packetHeaderSize = 2

func readPacket(data []byte, at int64) (packet, error) {
	if at < 0 || at+packetHeaderSize > int64(len(data)) {
		return packet{}, fmt.Errorf("%w: packet header at %d past end %d", ErrInvalidStream, at, len(data))
	}
	size := int64(binary.LittleEndian.Uint16(data[at:]))
	return packet{offset: at + packetHeaderSize, size: size}, nil
}

func (p packet) next() int64 {
	return p.offset + p.size
}

// SeekEntry is one decoded seek table point.
type SeekEntry struct {
	FrameOffset uint32
	FileOffset  uint32
}

// parseSeekTable decodes the delta-encoded seek table at the start of the data chunk.
func parseSeekTable(data []byte, start int64, tableSize uint32) ([]SeekEntry, error) {
	if start+int64(tableSize) > int64(len(data)) {
		return nil, fmt.Errorf("%w: seek table of %d bytes past end", ErrInvalidStream, tableSize)
	}
	entries := make([]SeekEntry, tableSize/4)
	var frame, file uint32
	for i := range entries {
		at := start + int64(i)*4
		frame += uint32(binary.LittleEndian.Uint16(data[at:]))
		file += uint32(binary.LittleEndian.Uint16(data[at+2:]))
		entries[i] = SeekEntry{FrameOffset: frame, FileOffset: file}
	}
	return entries, nil
}
