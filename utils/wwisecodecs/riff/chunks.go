package riff

import (
	"fmt"

	"haruki-wwise-audio/utils"
)

// ChunkKind identifies a WAVE sub-chunk.
type ChunkKind int

const (
	KindUnknown ChunkKind = iota
	KindFMT
	KindVORB
	KindAKD
	KindJUNK
	KindDATA
)

var kindSignatures = map[string]ChunkKind{
	"fmt ": KindFMT,
	"vorb": KindVORB,
	"akd ": KindAKD,
	"JUNK": KindJUNK,
	"data": KindDATA,
}

// KindOf maps a four character signature to its kind.
func KindOf(signature string) ChunkKind {
	if k, ok := kindSignatures[signature]; ok {
		return k
	}
	return KindUnknown
}

func (k ChunkKind) String() string {
	switch k {
	case KindFMT:
		return "fmt "
	case KindVORB:
		return "vorb"
	case KindAKD:
		return "akd "
	case KindJUNK:
		return "JUNK"
	case KindDATA:
		return "data"
	default:
		return "unknown"
	}
}

// ChunkHeader locates a chunk payload within the RIFF buffer.
type ChunkHeader struct {
	Signature string
	Length    uint32
	Offset    int64 // payload offset
}

func (h ChunkHeader) End() int64 {
	return h.Offset + int64(h.Length)
}

type Chunk interface {
	Kind() ChunkKind
	Info() ChunkHeader
}

// Wave format tags.
const (
	FormatPCM        uint16 = 0x0001
	FormatExtensible uint16 = 0xFFFE
	FormatPTADPCM    uint16 = 0x8311
	FormatVorbis     uint16 = 0xFFFF
)

type FMT struct {
	Header            ChunkHeader
	Format            uint16
	Channels          uint16
	SampleRate        uint32
	AvgBytesPerSecond uint32
	BlockAlign        uint16
	BitsPerSample     uint16
	ExtensionLength   uint16
	ValidBits         uint16
	ChannelMask       uint32
}

func (c *FMT) Kind() ChunkKind { return KindFMT }
func (c *FMT) Info() ChunkHeader { return c.Header }

func (c *FMT) read(bs *utils.BinaryStream) error {
	if c.Header.Length < 16 {
		return fmt.Errorf("%w: fmt chunk too short (%d bytes)", ErrStructural, c.Header.Length)
	}
	var err error
	if c.Format, err = bs.ReadUInt16(); err != nil {
		return err
	}
	if c.Channels, err = bs.ReadUInt16(); err != nil {
		return err
	}
	if c.SampleRate, err = bs.ReadUInt32(); err != nil {
		return err
	}
	if c.AvgBytesPerSecond, err = bs.ReadUInt32(); err != nil {
		return err
	}
	if c.BlockAlign, err = bs.ReadUInt16(); err != nil {
		return err
	}
	if c.BitsPerSample, err = bs.ReadUInt16(); err != nil {
		return err
	}
	if c.Header.Length < 18 {
		return nil
	}
	if c.ExtensionLength, err = bs.ReadUInt16(); err != nil {
		return err
	}
	if c.ExtensionLength >= 2 && c.Header.Length >= 20 {
		if c.ValidBits, err = bs.ReadUInt16(); err != nil {
			return err
		}
	}
	if c.ExtensionLength >= 6 && c.Header.Length >= 24 {
		if c.ChannelMask, err = bs.ReadUInt32(); err != nil {
			return err
		}
	}
	return nil
}

// VorbSize is the length of the Wwise Vorbis side-info block.
const VorbSize = 0x2A

type VORB struct {
	Header                ChunkHeader
	TotalPCMFrames        uint32
	LoopStartPacketOffset uint32
	LoopEndPacketOffset   uint32
	LoopBeginExtra        uint16
	LoopEndExtra          uint16
	SeekTableSize         uint32
	VorbisDataOffset      uint32
	MaxPacketSize         uint16
	LastGranuleExtra      uint16
	DecodeAllocSize       uint32
	DecodeX64AllocSize    uint32
	HashCodebook          uint32
	BlockSizes            [2]byte
}

func (c *VORB) Kind() ChunkKind { return KindVORB }
func (c *VORB) Info() ChunkHeader { return c.Header }

func (c *VORB) read(bs *utils.BinaryStream) error {
	if c.Header.Length < VorbSize {
		return fmt.Errorf("%w: vorb chunk too short (%d bytes)", ErrStructural, c.Header.Length)
	}
	u32 := []*uint32{&c.TotalPCMFrames, &c.LoopStartPacketOffset, &c.LoopEndPacketOffset}
	for _, p := range u32 {
		v, err := bs.ReadUInt32()
		if err != nil {
			return err
		}
		*p = v
	}
	var err error
	if c.LoopBeginExtra, err = bs.ReadUInt16(); err != nil {
		return err
	}
	if c.LoopEndExtra, err = bs.ReadUInt16(); err != nil {
		return err
	}
	if c.SeekTableSize, err = bs.ReadUInt32(); err != nil {
		return err
	}
	if c.VorbisDataOffset, err = bs.ReadUInt32(); err != nil {
		return err
	}
	if c.MaxPacketSize, err = bs.ReadUInt16(); err != nil {
		return err
	}
	if c.LastGranuleExtra, err = bs.ReadUInt16(); err != nil {
		return err
	}
	for _, p := range []*uint32{&c.DecodeAllocSize, &c.DecodeX64AllocSize, &c.HashCodebook} {
		v, err := bs.ReadUInt32()
		if err != nil {
			return err
		}
		*p = v
	}
	b, err := bs.ReadBytes(2)
	if err != nil {
		return err
	}
	c.BlockSizes = [2]byte{b[0], b[1]}
	return nil
}

type EnvelopePoint struct {
	Position    uint32
	Attenuation uint16
}

// AKD carries loudness metadata and a volume envelope.
type AKD struct {
	Header                    ChunkHeader
	LoudnessNormalizationGain float32
	DownmixNormalizationGain  float32
	EnvelopePeak              float32
	EnvelopePoints            []EnvelopePoint
}

func (c *AKD) Kind() ChunkKind { return KindAKD }
func (c *AKD) Info() ChunkHeader { return c.Header }

// akdFixedSize covers the gains, the point count and the peak.
const akdFixedSize = 16

func (c *AKD) read(bs *utils.BinaryStream) error {
	if c.Header.Length < akdFixedSize {
		return fmt.Errorf("%w: akd chunk too short (%d bytes)", ErrStructural, c.Header.Length)
	}
	var err error
	if c.LoudnessNormalizationGain, err = bs.ReadFloat32(); err != nil {
		return err
	}
	if c.DownmixNormalizationGain, err = bs.ReadFloat32(); err != nil {
		return err
	}
	count, err := bs.ReadUInt32()
	if err != nil {
		return err
	}
	if c.EnvelopePeak, err = bs.ReadFloat32(); err != nil {
		return err
	}
	if int64(count)*6 > int64(c.Header.Length)-akdFixedSize {
		return fmt.Errorf("%w: %d envelope points do not fit in akd chunk", ErrStructural, count)
	}
	c.EnvelopePoints = make([]EnvelopePoint, count)
	for i := range c.EnvelopePoints {
		if c.EnvelopePoints[i].Position, err = bs.ReadUInt32(); err != nil {
			return err
		}
		if c.EnvelopePoints[i].Attenuation, err = bs.ReadUInt16(); err != nil {
			return err
		}
	}
	return nil
}

// JUNK is padding; only its extent is kept.
type JUNK struct {
	Header ChunkHeader
}

func (c *JUNK) Kind() ChunkKind { return KindJUNK }
func (c *JUNK) Info() ChunkHeader { return c.Header }

// DATA locates the encoded audio payload.
type DATA struct {
	Header ChunkHeader
}

func (c *DATA) Kind() ChunkKind { return KindDATA }
func (c *DATA) Info() ChunkHeader { return c.Header }
