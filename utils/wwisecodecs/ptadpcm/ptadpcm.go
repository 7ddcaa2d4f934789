// Package ptadpcm decodes Platinum 4-bit ADPCM media to 16-bit PCM WAVE.
package ptadpcm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"haruki-wwise-audio/utils/wwisecodecs/riff"
)

// ErrInvalidFormat reports a fmt chunk that does not describe PTADPCM.
var ErrInvalidFormat = errors.New("ptadpcm: invalid format")

var sampleSteps = [16]int32{-28, -20, -14, -10, -7, -5, -3, -1, 1, 3, 5, 7, 10, 14, 20, 28}
var indexSteps = [16]int32{2, 2, 1, 1, 0, 0, 0, -1, -1, 0, 0, 0, 1, 1, 2, 2}

const (
	maxIndex        = 12
	frameHeaderSize = 5
	HeaderSize      = 44
)

// SamplesPerFrame returns the samples one channel block of interleave bytes decodes to.
func SamplesPerFrame(interleave int) int {
	return 2 + (interleave-frameHeaderSize)*2
}

// Layout describes how a PTADPCM data chunk is framed.
type Layout struct {
	Channels        int
	SampleRate      uint32
	Interleave      int // bytes per channel per frame
	SamplesPerFrame int
	Frames          int
}

// Samples returns the number of samples per channel.
func (l Layout) Samples() int {
	return l.Frames * l.SamplesPerFrame
}

// NewLayout validates the fmt chunk and frames dataLength bytes.
func NewLayout(f *riff.FMT, dataLength uint32) (Layout, error) {
	ch := int(f.Channels)
	if ch <= 0 || f.BitsPerSample != 4 {
		return Layout{}, fmt.Errorf("%w: %d channels, %d bits", ErrInvalidFormat, ch, f.BitsPerSample)
	}
	if int(f.BlockAlign) != 0x24*ch && int(f.BlockAlign) != 0x104*ch {
		return Layout{}, fmt.Errorf("%w: block size %#x for %d channels", ErrInvalidFormat, f.BlockAlign, ch)
	}
	interleave := int(f.BlockAlign) / ch
	if interleave < frameHeaderSize+1 {
		return Layout{}, fmt.Errorf("%w: interleave %d", ErrInvalidFormat, interleave)
	}
	return Layout{
		Channels:        ch,
		SampleRate:      f.SampleRate,
		Interleave:      interleave,
		SamplesPerFrame: SamplesPerFrame(interleave),
		Frames:          int(dataLength) / (ch * interleave),
	}, nil
}

// DecodeBlock decodes one channel block into out, which must hold
// SamplesPerFrame(len(block)) samples.
func DecodeBlock(block []byte, out []int16) {
	hist2 := int32(int16(binary.LittleEndian.Uint16(block[0:])))
	hist1 := int32(int16(binary.LittleEndian.Uint16(block[2:])))
	index := min(int32(block[4]), maxIndex)

	out[0] = int16(hist2)
	out[1] = int16(hist1)
	for k := 2; k < len(out); k++ {
		b := block[frameHeaderSize+(k-2)/2]
		nibble := (b >> ((k % 2) * 4)) & 0xF

		step := (sampleSteps[nibble] << index) / 2
		index += indexSteps[nibble]
		sample := min(max(step+2*hist1-hist2, math.MinInt16), math.MaxInt16)
		index = min(max(index, 0), maxIndex-1)

		out[k] = int16(sample)
		hist2 = hist1
		hist1 = sample
	}
}

var framePool = sync.Pool{
	New: func() any { return new([]int16) },
}

// Decode converts the data chunk described by h to a PCM WAVE file written to w.
func Decode(data []byte, h *riff.Header, w io.Writer) error {
	f, ok := h.FMT()
	if !ok {
		return fmt.Errorf("%w: missing fmt chunk", ErrInvalidFormat)
	}
	d, ok := h.DATA()
	if !ok {
		return fmt.Errorf("%w: missing data chunk", ErrInvalidFormat)
	}
	layout, err := NewLayout(f, d.Header.Length)
	if err != nil {
		return err
	}
	payload := data[d.Header.Offset:d.Header.End()]

	if _, err := w.Write(WAVHeader(layout.Channels, layout.SampleRate, layout.Samples())); err != nil {
		return fmt.Errorf("failed to write WAV header: %w", err)
	}

	bufp := framePool.Get().(*[]int16)
	defer framePool.Put(bufp)
	need := layout.Channels * layout.SamplesPerFrame
	if cap(*bufp) < need {
		*bufp = make([]int16, need)
	}
	frame := (*bufp)[:need]
	pcm := make([]byte, need*2)

	frameBytes := layout.Channels * layout.Interleave
	for i := 0; i < layout.Frames; i++ {
		base := payload[i*frameBytes:]
		for ch := 0; ch < layout.Channels; ch++ {
			block := base[ch*layout.Interleave : (ch+1)*layout.Interleave]
			DecodeBlock(block, frame[ch*layout.SamplesPerFrame:(ch+1)*layout.SamplesPerFrame])
		}
		for s := 0; s < layout.SamplesPerFrame; s++ {
			for ch := 0; ch < layout.Channels; ch++ {
				binary.LittleEndian.PutUint16(pcm[(s*layout.Channels+ch)*2:], uint16(frame[ch*layout.SamplesPerFrame+s]))
			}
		}
		if _, err := w.Write(pcm); err != nil {
			return fmt.Errorf("failed to write PCM frame %d: %w", i, err)
		}
	}
	return nil
}

// WAVHeader returns the 44-byte canonical header of a 16-bit PCM WAVE file.
func WAVHeader(channels int, sampleRate uint32, samples int) []byte {
	totalPCMBytes := samples * channels * 2
	header := make([]byte, HeaderSize)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+totalPCMBytes))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], riff.FormatPCM)
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], sampleRate)
	binary.LittleEndian.PutUint32(header[28:32], sampleRate*uint32(channels)*2) // byte rate
	binary.LittleEndian.PutUint16(header[32:34], uint16(channels*2))           // block align
	binary.LittleEndian.PutUint16(header[34:36], 16)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(totalPCMBytes))
	return header
}
