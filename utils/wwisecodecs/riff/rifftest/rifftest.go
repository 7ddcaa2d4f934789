// Package rifftest builds synthetic Wwise RIFF/WAVE files for tests.
package rifftest

import (
	"bytes"
	"encoding/binary"
)

// RawChunk is a sub-chunk written verbatim.
type RawChunk struct {
	Signature string
	Payload   []byte
}

// FMT returns a fmt chunk payload. ext is appended after a cbSize field when non-nil.
func FMT(format, channels uint16, sampleRate, avgBytes uint32, blockAlign, bits uint16, ext []byte) RawChunk {
	var b bytes.Buffer
	_ = binary.Write(&b, binary.LittleEndian, format)
	_ = binary.Write(&b, binary.LittleEndian, channels)
	_ = binary.Write(&b, binary.LittleEndian, sampleRate)
	_ = binary.Write(&b, binary.LittleEndian, avgBytes)
	_ = binary.Write(&b, binary.LittleEndian, blockAlign)
	_ = binary.Write(&b, binary.LittleEndian, bits)
	if ext != nil {
		_ = binary.Write(&b, binary.LittleEndian, uint16(len(ext)))
		b.Write(ext)
	}
	return RawChunk{Signature: "fmt ", Payload: b.Bytes()}
}

// VorbInfo is the side-info block of a Wwise Vorbis stream.
type VorbInfo struct {
	TotalPCMFrames   uint32
	SeekTableSize    uint32
	VorbisDataOffset uint32
	BlockSizes       [2]byte
}

// Bytes encodes v as the 0x2A byte vorb block.
func (v VorbInfo) Bytes() []byte {
	b := make([]byte, 0x2A)
	binary.LittleEndian.PutUint32(b[0x00:], v.TotalPCMFrames)
	binary.LittleEndian.PutUint32(b[0x10:], v.SeekTableSize)
	binary.LittleEndian.PutUint32(b[0x14:], v.VorbisDataOffset)
	b[0x28] = v.BlockSizes[0]
	b[0x29] = v.BlockSizes[1]
	return b
}

// VorbisFMT returns a fmt chunk whose 0x30 byte extension embeds the vorb block.
func VorbisFMT(channels uint16, sampleRate, avgBytes uint32, v VorbInfo) RawChunk {
	ext := make([]byte, 6, 0x30)
	ext = append(ext, v.Bytes()...)
	return FMT(0xFFFF, channels, sampleRate, avgBytes, 0, 0, ext)
}

// Data returns a data chunk.
func Data(payload []byte) RawChunk {
	return RawChunk{Signature: "data", Payload: payload}
}

// Build assembles a RIFF/WAVE file from chunks, padding odd lengths.
func Build(chunks ...RawChunk) []byte {
	var body bytes.Buffer
	body.WriteString("WAVE")
	for _, c := range chunks {
		body.WriteString(c.Signature)
		_ = binary.Write(&body, binary.LittleEndian, uint32(len(c.Payload)))
		body.Write(c.Payload)
		if len(c.Payload)%2 == 1 {
			body.WriteByte(0)
		}
	}
	var out bytes.Buffer
	out.WriteString("RIFF")
	_ = binary.Write(&out, binary.LittleEndian, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes()
}
