package vorbis

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	jvorbis "github.com/jfreymuth/vorbis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"haruki-wwise-audio/utils/wwisecodecs/bitstream"
	"haruki-wwise-audio/utils/wwisecodecs/riff"
	"haruki-wwise-audio/utils/wwisecodecs/riff/rifftest"
)

type bitBuilder struct {
	t  *testing.T
	bs *bitstream.BitStream
}

func newBits(t *testing.T) *bitBuilder {
	return &bitBuilder{t: t, bs: bitstream.NewWriter(64)}
}

func (b *bitBuilder) put(n int, v uint32) *bitBuilder {
	require.NoError(b.t, b.bs.Write(n, v))
	return b
}

func (b *bitBuilder) bits() int64 {
	return b.bs.Len()
}

func (b *bitBuilder) bytes() []byte {
	require.NoError(b.t, b.bs.Flush())
	return append([]byte(nil), b.bs.Bytes()...)
}

// packedSingleEntryCodebook is a 1-dimension, 1-entry, unordered, non-sparse codebook.
func packedSingleEntryCodebook(t *testing.T) []byte {
	return newBits(t).
		put(4, 1).  // dimensions
		put(14, 1). // entries
		put(1, 0).  // ordered
		put(3, 1).  // codeword length width
		put(1, 0).  // sparse
		put(1, 1).  // length of entry 0
		put(1, 0).  // lookup type
		bytes()
}

func libraryImage(books ...[]byte) []byte {
	var payload bytes.Buffer
	offsets := make([]uint32, 0, len(books))
	for _, b := range books {
		offsets = append(offsets, uint32(payload.Len()))
		payload.Write(b)
	}
	out := append([]byte(nil), payload.Bytes()...)
	for _, o := range offsets {
		out = binary.LittleEndian.AppendUint32(out, o)
	}
	return binary.LittleEndian.AppendUint32(out, uint32(payload.Len()))
}

func testLibrary(t *testing.T) *Library {
	lib, err := NewLibrary(libraryImage(packedSingleEntryCodebook(t)))
	require.NoError(t, err)
	require.Equal(t, 1, lib.Count())
	return lib
}

// wwiseSetup builds a packed setup packet with one codebook, floor, residue
// and mapping. modes lists the block flag of each mode.
func wwiseSetup(t *testing.T, modes ...bool) ([]byte, int64) {
	return buildSetup(t, func(b *bitBuilder) {
		b.put(10, 0) // codebook id
	}, modes...)
}

// inlineSetup is wwiseSetup with the codebook stored in the packet.
func inlineSetup(t *testing.T, modes ...bool) ([]byte, int64) {
	return buildSetup(t, func(b *bitBuilder) {
		b.put(4, 1).put(14, 1).put(1, 0).put(3, 1).put(1, 0).put(1, 1).put(1, 0)
	}, modes...)
}

func buildSetup(t *testing.T, codebook func(*bitBuilder), modes ...bool) ([]byte, int64) {
	b := newBits(t)
	b.put(8, 0) // codebook count - 1
	codebook(b)

	b.put(6, 0) // floor count - 1
	b.put(5, 1) // partitions
	b.put(4, 0) // partition class
	b.put(3, 0) // class dimensions - 1
	b.put(2, 0) // subclasses
	b.put(8, 0) // subclass book + 1
	b.put(2, 0) // multiplier - 1
	b.put(4, 4) // range bits
	b.put(4, 5) // X

	b.put(6, 0) // residue count - 1
	b.put(2, 0) // residue type
	b.put(24, 0).put(24, 0).put(24, 0)
	b.put(6, 0) // classifications - 1
	b.put(8, 0) // classbook
	b.put(3, 0).put(1, 0)

	b.put(6, 0) // mapping count - 1
	b.put(1, 0) // submaps flag
	b.put(1, 0) // square polar flag
	b.put(2, 0) // reserved
	b.put(8, 0).put(8, 0).put(8, 0)

	b.put(6, uint32(len(modes)-1))
	for _, m := range modes {
		b.put(1, boolBit(m))
		b.put(8, 0) // mapping
	}
	n := b.bits()
	return b.bytes(), n
}

func u16Packet(payload []byte) []byte {
	out := binary.LittleEndian.AppendUint16(nil, uint16(len(payload)))
	return append(out, payload...)
}

func wwiseVorbisFile(t *testing.T, setup []byte, audio ...[]byte) []byte {
	seek := []byte{0x10, 0x00, 0x20, 0x00}
	var data bytes.Buffer
	data.Write(seek)
	data.Write(u16Packet(setup))
	for _, a := range audio {
		data.Write(u16Packet(a))
	}
	info := rifftest.VorbInfo{
		TotalPCMFrames:   4096,
		SeekTableSize:    uint32(len(seek)),
		VorbisDataOffset: uint32(len(seek) + 2 + len(setup)),
		BlockSizes:       [2]byte{8, 11},
	}
	return rifftest.Build(
		rifftest.VorbisFMT(2, 44100, 16000, info),
		rifftest.Data(data.Bytes()),
	)
}

type oggPage struct {
	flags   byte
	granule int64
	packets [][]byte
}

func readPages(t *testing.T, data []byte) []oggPage {
	t.Helper()
	var pages []oggPage
	for len(data) > 0 {
		require.Equal(t, "OggS", string(data[:4]))
		n := int(data[26])
		lacing := data[27 : 27+n]
		body := data[27+n:]
		p := oggPage{flags: data[5], granule: int64(binary.LittleEndian.Uint64(data[6:14]))}
		var cur []byte
		used := 0
		for _, l := range lacing {
			cur = append(cur, body[used:used+int(l)]...)
			used += int(l)
			if l < 255 {
				p.packets = append(p.packets, cur)
				cur = nil
			}
		}
		pages = append(pages, p)
		data = body[used:]
	}
	return pages
}

func TestQuantCount(t *testing.T) {
	vals, err := QuantCount(100, 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), vals)
	assert.LessOrEqual(t, vals*vals, uint32(100))
	assert.Greater(t, (vals+1)*(vals+1), uint32(100))

	vals, err = QuantCount(81, 4)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), vals)

	vals, err = QuantCount(1, 15)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), vals)

	vals, err = QuantCount(2, 64)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), vals)

	vals, err = QuantCount(1<<24-1, 0xFFFF)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), vals)

	vals, err = QuantCount(1<<24-1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(1<<24-1), vals)

	_, err = QuantCount(10, 0)
	assert.ErrorIs(t, err, ErrCodebook)
}

func TestLibraryBounds(t *testing.T) {
	lib := testLibrary(t)
	cb, err := lib.Codebook(0)
	require.NoError(t, err)
	assert.Len(t, cb, 4)

	_, err = lib.Codebook(1)
	assert.ErrorIs(t, err, ErrCodebook)
	_, err = lib.Codebook(-1)
	assert.ErrorIs(t, err, ErrCodebook)

	_, err = NewLibrary([]byte{1, 2})
	assert.ErrorIs(t, err, ErrCodebook)
	_, err = NewLibrary([]byte{0, 0, 0, 0, 0xFF, 0, 0, 0})
	assert.ErrorIs(t, err, ErrCodebook)
}

func TestRebuildAndCopyCodebook(t *testing.T) {
	lib := testLibrary(t)
	out := bitstream.NewWriter(16)
	require.NoError(t, lib.Rebuild(0, out))
	assert.Equal(t, int64(24+16+24+1+1+5+4), out.Len())

	r := bitstream.New(out.Bytes())
	sync, _ := r.Read(24)
	dims, _ := r.Read(16)
	entries, _ := r.Read(24)
	ordered, _ := r.Read(1)
	sparse, _ := r.Read(1)
	length, _ := r.Read(5)
	lookup, _ := r.Read(4)
	assert.Equal(t, uint32(codebookSync), sync)
	assert.Equal(t, uint32(1), dims)
	assert.Equal(t, uint32(1), entries)
	assert.Zero(t, ordered)
	assert.Zero(t, sparse)
	assert.Equal(t, uint32(1), length)
	assert.Zero(t, lookup)

	copied := bitstream.NewWriter(16)
	full, err := bitstream.NewBits(out.Bytes(), out.Len())
	require.NoError(t, err)
	require.NoError(t, CopyCodebook(full, copied))
	assert.Equal(t, out.Bytes(), copied.Bytes())
}

func TestRebuildOrderedCodebookWithLookup(t *testing.T) {
	b := newBits(t)
	b.put(4, 2)  // dimensions
	b.put(14, 5) // entries
	b.put(1, 1)  // ordered
	b.put(5, 3)  // initial length
	b.put(3, 2)  // ilog(5) bits: 2 entries
	b.put(2, 3)  // ilog(3) bits: 3 entries
	b.put(1, 1)  // lookup type 1
	b.put(32, 0x11223344)
	b.put(32, 0x55667788)
	b.put(4, 2) // value bits - 1
	b.put(1, 0) // sequence
	b.put(3, 1).put(3, 2)
	packed := b.bytes()

	out := bitstream.NewWriter(32)
	require.NoError(t, RebuildCodebook(bitstream.New(packed), out))

	r := bitstream.New(out.Bytes())
	_, _ = r.Seek(24+16+24, io.SeekStart)
	ordered, _ := r.Read(1)
	initial, _ := r.Read(5)
	first, _ := r.Read(3)
	second, _ := r.Read(2)
	lookup, _ := r.Read(4)
	assert.Equal(t, uint32(1), ordered)
	assert.Equal(t, uint32(3), initial)
	assert.Equal(t, uint32(2), first)
	assert.Equal(t, uint32(3), second)
	assert.Equal(t, uint32(1), lookup)
}

func TestRebuildCodebookRejectsBadWidth(t *testing.T) {
	packed := newBits(t).put(4, 1).put(14, 1).put(1, 0).put(3, 6).put(1, 0).bytes()
	err := RebuildCodebook(bitstream.New(packed), bitstream.NewWriter(8))
	assert.ErrorIs(t, err, ErrCodebook)
}

func TestSetupConsumesDeclaredSize(t *testing.T) {
	setup, bits := wwiseSetup(t, false)
	assert.Equal(t, int64(len(setup)*8), (bits+7)&^7)

	c := &bitCopier{r: bitstream.New(setup), w: bitstream.NewWriter(64)}
	info, err := rebuildSetup(c, SetupPacked, testLibrary(t), 2)
	require.NoError(t, err)
	assert.Equal(t, bits, c.r.Position())
	assert.Equal(t, []bool{false}, info.modeBlockFlags)
	assert.Zero(t, info.modeBits)
}

func TestConvertSingleMode(t *testing.T) {
	setup, _ := wwiseSetup(t, false)
	file := wwiseVorbisFile(t, setup, []byte{0xAA, 0xBB, 0xCC}, []byte{0x01, 0x02, 0x03})
	h, err := riff.Parse(file)
	require.NoError(t, err)

	s, err := NewStream(file, h)
	require.NoError(t, err)
	seek, err := s.SeekTable()
	require.NoError(t, err)
	assert.Equal(t, []SeekEntry{{FrameOffset: 0x10, FileOffset: 0x20}}, seek)

	var out bytes.Buffer
	require.NoError(t, s.Convert(testLibrary(t), &out))
	assert.Equal(t, ConvertStats{Granule: (256 + 256) / 4, Pages: 4, Bytes: int64(out.Len())}, s.Stats())

	pages := readPages(t, out.Bytes())
	require.Len(t, pages, 4)
	assert.Equal(t, byte(0x02), pages[0].flags)
	require.Len(t, pages[0].packets, 1)
	require.Len(t, pages[1].packets, 2, "comment and setup share a page")

	assert.Equal(t, [][]byte{{0xAA, 0xBB, 0xCC}}, pages[2].packets)
	assert.Equal(t, int64(0), pages[2].granule)
	assert.Zero(t, pages[2].flags&0x04)

	assert.Equal(t, [][]byte{{0x01, 0x02, 0x03}}, pages[3].packets)
	assert.Equal(t, int64((256+256)/4), pages[3].granule)
	assert.Equal(t, byte(0x04), pages[3].flags&0x04)

	var d jvorbis.Decoder
	require.NoError(t, d.ReadHeader(pages[0].packets[0]))
	require.NoError(t, d.ReadHeader(pages[1].packets[0]))
	assert.Equal(t, 2, d.Channels())
	assert.Equal(t, 44100, d.SampleRate())

	comment := pages[1].packets[0]
	assert.Equal(t, byte(headerComment), comment[0])
	assert.Contains(t, string(comment), Vendor)
}

func TestConvertRewritesModeBits(t *testing.T) {
	setup, bits := wwiseSetup(t, false, true)
	require.Equal(t, int64(len(setup)*8), (bits+7)&^7)
	file := wwiseVorbisFile(t, setup, []byte{0x03}, []byte{0x02})
	h, err := riff.Parse(file)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, Convert(file, h, testLibrary(t), &out))
	pages := readPages(t, out.Bytes())
	require.Len(t, pages, 4)

	// long block: type 0, mode 1, prev 0, next 0 (next packet is short), then the remaining 7 bits
	assert.Equal(t, [][]byte{{0x12, 0x00}}, pages[2].packets)
	assert.Equal(t, int64(0), pages[2].granule)
	// short block: type 0, mode 0, then the remaining 7 bits
	assert.Equal(t, [][]byte{{0x04, 0x00}}, pages[3].packets)
	assert.Equal(t, int64((2048+256)/4), pages[3].granule)
}

func TestConvertErrors(t *testing.T) {
	setup, _ := wwiseSetup(t, false)

	t.Run("setup size mismatch", func(t *testing.T) {
		padded := append(append([]byte(nil), setup...), 0x00)
		file := wwiseVorbisFile(t, padded, []byte{0x01})
		h, err := riff.Parse(file)
		require.NoError(t, err)
		var out bytes.Buffer
		assert.ErrorIs(t, Convert(file, h, testLibrary(t), &out), ErrInvalidStream)
	})

	t.Run("missing library", func(t *testing.T) {
		file := wwiseVorbisFile(t, setup, []byte{0x01})
		h, err := riff.Parse(file)
		require.NoError(t, err)
		var out bytes.Buffer
		assert.ErrorIs(t, Convert(file, h, nil, &out), ErrCodebook)
	})

	t.Run("seek table larger than data offset", func(t *testing.T) {
		info := rifftest.VorbInfo{SeekTableSize: 64, VorbisDataOffset: 8, BlockSizes: [2]byte{8, 11}}
		file := rifftest.Build(rifftest.VorbisFMT(1, 22050, 8000, info), rifftest.Data(make([]byte, 80)))
		h, err := riff.Parse(file)
		require.NoError(t, err)
		_, err = NewStream(file, h)
		assert.ErrorIs(t, err, ErrInvalidStream)
	})

	t.Run("truncated audio packet", func(t *testing.T) {
		file := wwiseVorbisFile(t, setup, []byte{0x01, 0x02})
		// grow the last packet's declared size past the data chunk
		file[len(file)-4] = 0x09
		h, err := riff.Parse(file)
		require.NoError(t, err)
		var out bytes.Buffer
		assert.ErrorIs(t, Convert(file, h, testLibrary(t), &out), ErrInvalidStream)
	})
}

func convertPages(t *testing.T, setup []byte, layout SetupLayout, lib *Library) []oggPage {
	t.Helper()
	file := wwiseVorbisFile(t, setup, []byte{0x03}, []byte{0x02})
	h, err := riff.Parse(file)
	require.NoError(t, err)
	s, err := NewStream(file, h)
	require.NoError(t, err)
	s.Layout = layout
	var out bytes.Buffer
	require.NoError(t, s.Convert(lib, &out))
	pages := readPages(t, out.Bytes())
	require.Len(t, pages, 4)
	require.Len(t, pages[1].packets, 2)
	return pages
}

func TestConvertSetupLayouts(t *testing.T) {
	packedSetup, _ := wwiseSetup(t, false, true)
	packed := convertPages(t, packedSetup, SetupPacked, testLibrary(t))

	t.Run("inline", func(t *testing.T) {
		setup, bits := inlineSetup(t, false, true)
		require.Equal(t, int64(len(setup)*8), (bits+7)&^7)
		inline := convertPages(t, setup, SetupInline, nil)
		assert.Equal(t, packed, inline)
	})

	t.Run("full", func(t *testing.T) {
		// a standard setup body is the rebuilt packet without its type and magic
		body := packed[1].packets[1][7:]
		full := convertPages(t, body, SetupFull, nil)
		assert.Equal(t, packed, full)
	})

	t.Run("full rejects floor type 0", func(t *testing.T) {
		body := append([]byte(nil), packed[1].packets[1][7:]...)
		cb := bitstream.NewWriter(16)
		require.NoError(t, testLibrary(t).Rebuild(0, cb))
		// codebook count byte, codebook, then 6 + 16 bits of time domain and 6 bits of floor count
		typeBit := 8 + cb.Len() + 6 + 16 + 6
		body[typeBit/8] &^= 1 << (typeBit % 8)
		file := wwiseVorbisFile(t, body, []byte{0x03}, []byte{0x02})
		h, err := riff.Parse(file)
		require.NoError(t, err)
		s, err := NewStream(file, h)
		require.NoError(t, err)
		s.Layout = SetupFull
		var out bytes.Buffer
		assert.ErrorIs(t, s.Convert(nil, &out), ErrInvalidStream)
	})
}

func TestParseSetupLayout(t *testing.T) {
	for _, l := range []SetupLayout{SetupPacked, SetupInline, SetupFull} {
		got, err := ParseSetupLayout(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, got)
	}
	_, err := ParseSetupLayout("compressed")
	assert.Error(t, err)
}
