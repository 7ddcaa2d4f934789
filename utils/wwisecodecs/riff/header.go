// Package riff parses the RIFF/WAVE wrapper Wwise puts around every media
// file and exposes its sub-chunks by kind.
package riff

import (
	"bytes"
	"errors"
	"fmt"

	"haruki-wwise-audio/utils"
	harukiLogger "haruki-wwise-audio/utils/logger"
)

var logger = harukiLogger.NewLogger("RIFFParser", "INFO", nil)

// ErrStructural reports a malformed RIFF wrapper.
var ErrStructural = errors.New("riff: malformed header")

const (
	Signature     = "RIFF"
	WaveSignature = "WAVE"
)

// vorbExtensionLength marks a fmt chunk that embeds the vorb block.
const vorbExtensionLength = 0x30

type Header struct {
	Size   uint32
	chunks map[ChunkKind]Chunk
}

// Chunk returns the chunk of the given kind.
func (h *Header) Chunk(kind ChunkKind) (Chunk, bool) {
	c, ok := h.chunks[kind]
	return c, ok
}

func (h *Header) FMT() (*FMT, bool) {
	c, ok := h.chunks[KindFMT].(*FMT)
	return c, ok
}

func (h *Header) VORB() (*VORB, bool) {
	c, ok := h.chunks[KindVORB].(*VORB)
	return c, ok
}

func (h *Header) AKD() (*AKD, bool) {
	c, ok := h.chunks[KindAKD].(*AKD)
	return c, ok
}

func (h *Header) DATA() (*DATA, bool) {
	c, ok := h.chunks[KindDATA].(*DATA)
	return c, ok
}

// Kinds returns the kinds present, in enumeration order.
func (h *Header) Kinds() []ChunkKind {
	var out []ChunkKind
	for k := KindFMT; k <= KindDATA; k++ {
		if _, ok := h.chunks[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Parse reads the RIFF wrapper at the start of data. Offsets in the
// returned chunk headers are relative to data.
func Parse(data []byte) (*Header, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("%w: %d bytes is too short", ErrStructural, len(data))
	}
	bs := utils.NewBinaryStream(bytes.NewReader(data), "little")
	sig, _ := bs.ReadFourCC()
	if sig != Signature {
		return nil, fmt.Errorf("%w: expected %s got %q", ErrStructural, Signature, sig)
	}
	size, _ := bs.ReadUInt32()
	wave, _ := bs.ReadFourCC()
	if wave != WaveSignature {
		return nil, fmt.Errorf("%w: expected %s got %q", ErrStructural, WaveSignature, wave)
	}

	h := &Header{Size: size, chunks: make(map[ChunkKind]Chunk)}
	total := int64(len(data))
	limit := min(int64(size)+8, total)

	for pos := int64(12); pos+8 <= limit; {
		if err := bs.SetPosition(pos); err != nil {
			return nil, err
		}
		csig, _ := bs.ReadFourCC()
		clen, _ := bs.ReadUInt32()
		ch := ChunkHeader{Signature: csig, Length: clen, Offset: pos + 8}

		kind := KindOf(csig)
		if ch.End() > total && kind != KindDATA {
			logger.Warnf("chunk %q at %d overruns the stream (%d > %d), stopping", csig, pos, ch.End(), total)
			break
		}
		chunk, err := readChunk(bs, kind, ch)
		if err != nil {
			return nil, fmt.Errorf("failed to read %q chunk: %w", csig, err)
		}
		if chunk != nil {
			if _, dup := h.chunks[kind]; dup {
				logger.Debugf("duplicate %q chunk at %d ignored", csig, pos)
			} else {
				h.chunks[kind] = chunk
			}
		} else {
			logger.Debugf("skipping unknown chunk %q (%d bytes)", csig, clen)
		}
		pos = ch.End() + int64(clen&1)
	}

	if err := h.deriveVORB(bs); err != nil {
		return nil, err
	}

	if d, ok := h.DATA(); ok && d.Header.End() > total {
		logger.Warnf("truncated audio stream, expected %d bytes got %d, resizing", d.Header.Length, total-d.Header.Offset)
		d.Header.Length = uint32(max(total-d.Header.Offset, 0))
	}
	if _, ok := h.FMT(); !ok {
		return nil, fmt.Errorf("%w: missing fmt chunk", ErrStructural)
	}
	return h, nil
}

func readChunk(bs *utils.BinaryStream, kind ChunkKind, ch ChunkHeader) (Chunk, error) {
	switch kind {
	case KindFMT:
		c := &FMT{Header: ch}
		return c, c.read(bs)
	case KindVORB:
		c := &VORB{Header: ch}
		return c, c.read(bs)
	case KindAKD:
		c := &AKD{Header: ch}
		return c, c.read(bs)
	case KindJUNK:
		return &JUNK{Header: ch}, nil
	case KindDATA:
		return &DATA{Header: ch}, nil
	default:
		return nil, nil
	}
}

// deriveVORB builds the vorb chunk from the tail of an extended fmt chunk
// when no explicit vorb chunk exists.
func (h *Header) deriveVORB(bs *utils.BinaryStream) error {
	f, ok := h.FMT()
	if !ok || f.ExtensionLength != vorbExtensionLength {
		return nil
	}
	if _, ok := h.VORB(); ok {
		return nil
	}
	ch := ChunkHeader{
		Signature: "vorb",
		Length:    VorbSize,
		Offset:    f.Header.End() - VorbSize,
	}
	if ch.Offset < f.Header.Offset {
		return fmt.Errorf("%w: fmt chunk too short for embedded vorb", ErrStructural)
	}
	if err := bs.SetPosition(ch.Offset); err != nil {
		return err
	}
	v := &VORB{Header: ch}
	if err := v.read(bs); err != nil {
		return fmt.Errorf("failed to read embedded vorb: %w", err)
	}
	h.chunks[KindVORB] = v
	return nil
}
