// Package vorbis rebuilds standard Ogg Vorbis streams from Wwise Vorbis
// media. Wwise strips the identification, comment and setup headers down
// to a compact form and replaces inline codebooks with indices into an
// external packed codebook library.
package vorbis

import (
	"errors"
	"fmt"
	"io"

	"haruki-wwise-audio/utils/wwisecodecs/bitstream"
	"haruki-wwise-audio/utils/wwisecodecs/ogg"
	"haruki-wwise-audio/utils/wwisecodecs/riff"
)

// ErrInvalidStream reports a malformed or truncated Wwise Vorbis stream.
var ErrInvalidStream = errors.New("vorbis: invalid stream")

// Vendor is written into the comment header.
const Vendor = "Converted from Audiokinetic Wwise by ww2ogg 0.24"

const (
	headerIdentification = 1
	headerComment        = 3
	headerSetup          = 5
)

// SetupLayout says where the setup packet keeps its codebooks and whether
// the rest of it uses the compact Wwise form or the standard one.
type SetupLayout int

const (
	// SetupPacked stores 10-bit indices into an external codebook library.
	SetupPacked SetupLayout = iota
	// SetupInline stores compact codebooks in the packet itself.
	SetupInline
	// SetupFull stores a standard Vorbis setup body.
	SetupFull
)

var setupLayoutNames = [...]string{"packed", "inline", "full"}

func (l SetupLayout) String() string {
	if l < 0 || int(l) >= len(setupLayoutNames) {
		return fmt.Sprintf("SetupLayout(%d)", int(l))
	}
	return setupLayoutNames[l]
}

func ParseSetupLayout(s string) (SetupLayout, error) {
	for i, name := range setupLayoutNames {
		if s == name {
			return SetupLayout(i), nil
		}
	}
	return SetupPacked, fmt.Errorf("unknown setup layout %q", s)
}

// ConvertStats describes the last stream written by Stream.Convert.
type ConvertStats struct {
	Granule int64 // final granule position
	Pages   uint32
	Bytes   int64
}

// Stream is a parsed Wwise Vorbis media file ready for conversion.
type Stream struct {
	Layout SetupLayout
	stats  ConvertStats

	data   []byte
	format *riff.FMT
	vorb   *riff.VORB
	start  int64 // data chunk payload
	end    int64
}

// NewStream validates the chunks Convert depends on.
func NewStream(data []byte, h *riff.Header) (*Stream, error) {
	f, ok := h.FMT()
	if !ok {
		return nil, fmt.Errorf("%w: missing fmt chunk", ErrInvalidStream)
	}
	v, ok := h.VORB()
	if !ok {
		return nil, fmt.Errorf("%w: missing vorb chunk", ErrInvalidStream)
	}
	d, ok := h.DATA()
	if !ok {
		return nil, fmt.Errorf("%w: missing data chunk", ErrInvalidStream)
	}
	if f.Channels == 0 {
		return nil, fmt.Errorf("%w: zero channels", ErrInvalidStream)
	}
	for _, b := range v.BlockSizes {
		if b < 6 || b > 13 {
			return nil, fmt.Errorf("%w: block size exponent %d", ErrInvalidStream, b)
		}
	}
	if v.SeekTableSize > v.VorbisDataOffset {
		return nil, fmt.Errorf("%w: seek table size %d exceeds data offset %d", ErrInvalidStream, v.SeekTableSize, v.VorbisDataOffset)
	}
	return &Stream{data: data, format: f, vorb: v, start: d.Header.Offset, end: d.Header.End()}, nil
}

// SeekTable decodes the seek table.
func (s *Stream) SeekTable() ([]SeekEntry, error) {
	return parseSeekTable(s.data[:s.end], s.start, s.vorb.SeekTableSize)
}

// Convert writes a complete Ogg Vorbis stream to w. lib is only read for a
// packed setup. Nothing partial is useful on error, so callers should
// buffer the output.
func (s *Stream) Convert(lib *Library, w io.Writer) error {
	if _, err := s.SeekTable(); err != nil {
		return err
	}
	ow := ogg.NewWriter(w)
	if err := s.writeIdentification(ow); err != nil {
		return fmt.Errorf("failed to write identification header: %w", err)
	}
	if err := s.writeComment(ow); err != nil {
		return fmt.Errorf("failed to write comment header: %w", err)
	}
	info, err := s.writeSetup(ow, lib)
	if err != nil {
		return fmt.Errorf("failed to rebuild setup header: %w", err)
	}
	if err := s.writeAudio(ow, info); err != nil {
		return fmt.Errorf("failed to rewrite audio packets: %w", err)
	}
	s.stats = ConvertStats{Granule: ow.Granule(), Pages: ow.Pages(), Bytes: ow.BytesWritten()}
	return nil
}

func (s *Stream) Stats() ConvertStats {
	return s.stats
}

// Convert is a shorthand for NewStream followed by Stream.Convert on a
// packed setup.
func Convert(data []byte, h *riff.Header, lib *Library, w io.Writer) error {
	s, err := NewStream(data, h)
	if err != nil {
		return err
	}
	return s.Convert(lib, w)
}

func writeHeaderType(c *bitCopier, kind uint32) {
	c.write(8, kind)
	for _, b := range []byte("vorbis") {
		c.write(8, uint32(b))
	}
}

func (s *Stream) writeIdentification(ow *ogg.Writer) error {
	c := &bitCopier{w: ow}
	writeHeaderType(c, headerIdentification)
	c.write(32, 0) // version
	c.write(8, uint32(s.format.Channels))
	c.write(32, s.format.SampleRate)
	c.write(32, 0) // bitrate maximum
	c.write(32, s.format.AvgBytesPerSecond*8)
	c.write(32, 0) // bitrate minimum
	c.write(4, uint32(s.vorb.BlockSizes[0]))
	c.write(4, uint32(s.vorb.BlockSizes[1]))
	c.write(1, 1) // framing
	if c.err != nil {
		return c.err
	}
	if err := ow.FlushPacket(); err != nil {
		return err
	}
	return ow.FlushPage()
}

// writeComment writes the vendor string and no user comments; loop points are not exported.
func (s *Stream) writeComment(ow *ogg.Writer) error {
	c := &bitCopier{w: ow}
	writeHeaderType(c, headerComment)
	c.writeString(Vendor)
	c.write(32, 0)
	c.write(1, 1) // framing
	if c.err != nil {
		return c.err
	}
	return ow.FlushPacket()
}

func (s *Stream) writeSetup(ow *ogg.Writer, lib *Library) (setupInfo, error) {
	setup, err := readPacket(s.data[:s.end], s.start+int64(s.vorb.SeekTableSize))
	if err != nil {
		return setupInfo{}, err
	}
	if setup.next() > s.end {
		return setupInfo{}, fmt.Errorf("%w: setup packet of %d bytes past data end", ErrInvalidStream, setup.size)
	}
	r := bitstream.New(s.data[setup.offset:setup.next()])
	c := &bitCopier{r: r, w: ow}
	writeHeaderType(c, headerSetup)

	info, err := rebuildSetup(c, s.Layout, lib, uint32(s.format.Channels))
	if err != nil {
		return info, err
	}
	if err := ow.FlushPacket(); err != nil {
		return info, err
	}
	if err := ow.FlushPage(); err != nil {
		return info, err
	}

	consumed := (r.Position() + 7) &^ 7
	if consumed != setup.size*8 {
		return info, fmt.Errorf("%w: setup packet is %d bits, consumed %d", ErrInvalidStream, setup.size*8, r.Position())
	}
	if s.start+int64(s.vorb.VorbisDataOffset) != setup.next() {
		return info, fmt.Errorf("%w: audio does not start after the setup packet", ErrInvalidStream)
	}
	return info, nil
}

func (s *Stream) writeAudio(ow *ogg.Writer, info setupInfo) error {
	data := s.data[:s.end]
	needMod := len(info.modeBlockFlags) > 1 && info.modeBits > 0

	var prevBlockSize int64
	prevBlockFlag := false
	for pos := s.start + int64(s.vorb.VorbisDataOffset); pos < s.end; {
		p, err := readPacket(data, pos)
		if err != nil {
			return err
		}
		if p.next() > s.end {
			return fmt.Errorf("%w: audio packet at %d truncated", ErrInvalidStream, pos)
		}

		blockIndex := 0
		payload := data[p.offset:p.next()]
		if needMod {
			if len(payload) == 0 {
				return fmt.Errorf("%w: empty audio packet at %d", ErrInvalidStream, pos)
			}
			flag, err := s.rewriteModeByte(ow, info, payload[0], p, prevBlockFlag)
			if err != nil {
				return err
			}
			if flag {
				blockIndex = 1
			}
			prevBlockFlag = flag
			payload = payload[1:]
		}
		if err := ow.WriteBytes(payload); err != nil {
			return err
		}

		blockSize := int64(1) << s.vorb.BlockSizes[blockIndex]
		if prevBlockSize != 0 {
			ow.AddGranule((prevBlockSize + blockSize) / 4)
		}
		prevBlockSize = blockSize

		pos = p.next()
		ow.SetLast(pos == s.end)
		if err := ow.FlushPacket(); err != nil {
			return err
		}
		if err := ow.FlushPage(); err != nil {
			return err
		}
	}
	return nil
}

// rewriteModeByte expands the first byte of a Wwise audio packet, which
// omits the packet type bit and the window flags of long blocks.
func (s *Stream) rewriteModeByte(ow *ogg.Writer, info setupInfo, first byte, p packet, prevFlag bool) (bool, error) {
	r := bitstream.New([]byte{first})
	c := &bitCopier{r: r, w: ow}
	c.write(1, 0) // audio packet type
	mode := c.copy(info.modeBits)
	if c.err == nil && int(mode) >= len(info.modeBlockFlags) {
		return false, fmt.Errorf("%w: packet mode %d out of range %d", ErrInvalidStream, mode, len(info.modeBlockFlags))
	}
	if c.err != nil {
		return false, c.err
	}
	flag := info.modeBlockFlags[mode]
	if flag {
		next := false
		if p.next()+packetHeaderSize <= s.end {
			np, err := readPacket(s.data, p.next())
			if err == nil && np.size > 0 && np.offset < s.end {
				nextMode := uint32(s.data[np.offset]) & (1<<info.modeBits - 1)
				if int(nextMode) < len(info.modeBlockFlags) {
					next = info.modeBlockFlags[nextMode]
				}
			}
		}
		c.write(1, boolBit(prevFlag))
		c.write(1, boolBit(next))
	}
	c.copy(8 - info.modeBits)
	return flag, c.err
}

func boolBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
