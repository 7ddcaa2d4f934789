// Package wem classifies Wwise media files by codec and converts them to
// standard containers.
package wem

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"

	harukiLogger "haruki-wwise-audio/utils/logger"
	"haruki-wwise-audio/utils/wwisecodecs/ptadpcm"
	"haruki-wwise-audio/utils/wwisecodecs/riff"
	"haruki-wwise-audio/utils/wwisecodecs/vorbis"
)

// ErrVerify reports converted output that does not decode.
var ErrVerify = errors.New("wem: converted output failed verification")

// DefaultExtension is used for media that is left untouched.
const DefaultExtension = ".wem"

type Codec int

const (
	CodecUnknown Codec = iota
	CodecPCM
	CodecVorbis
	CodecPTADPCM
)

// CodecOf maps a fmt format tag to a codec.
func CodecOf(format uint16) Codec {
	switch format {
	case riff.FormatPCM, riff.FormatExtensible:
		return CodecPCM
	case riff.FormatVorbis:
		return CodecVorbis
	case riff.FormatPTADPCM:
		return CodecPTADPCM
	default:
		return CodecUnknown
	}
}

func (c Codec) String() string {
	switch c {
	case CodecPCM:
		return "PCM"
	case CodecVorbis:
		return "Vorbis"
	case CodecPTADPCM:
		return "PTADPCM"
	default:
		return "Unknown"
	}
}

// Extension returns the file extension of converted output.
func (c Codec) Extension() string {
	switch c {
	case CodecVorbis:
		return ".ogg"
	case CodecPCM, CodecPTADPCM:
		return ".wav"
	default:
		return DefaultExtension
	}
}

// Media is a parsed media file. It owns its backing buffer.
type Media struct {
	Data   []byte
	Header *riff.Header
	Codec  Codec
	Format uint16
}

// Parse parses the RIFF header of data and classifies its codec.
func Parse(data []byte) (*Media, error) {
	h, err := riff.Parse(data)
	if err != nil {
		return nil, err
	}
	f, _ := h.FMT()
	return &Media{Data: data, Header: h, Codec: CodecOf(f.Format), Format: f.Format}, nil
}

// Converter turns media into standard audio files.
type Converter struct {
	library   *vorbis.Library
	layout    vorbis.SetupLayout
	verifyOgg bool
	logger    *harukiLogger.Logger
}

type Option func(*Converter)

// WithVerifyOgg decodes Vorbis output headers after conversion.
func WithVerifyOgg(verify bool) Option {
	return func(c *Converter) { c.verifyOgg = verify }
}

// WithSetupLayout sets how Vorbis setup packets store their codebooks.
func WithSetupLayout(l vorbis.SetupLayout) Option {
	return func(c *Converter) { c.layout = l }
}

func WithLogger(l *harukiLogger.Logger) Option {
	return func(c *Converter) { c.logger = l }
}

// NewConverter returns a converter. lib may be nil, in which case Vorbis
// media with a packed setup fails to convert.
func NewConverter(lib *vorbis.Library, opts ...Option) *Converter {
	c := &Converter{library: lib, logger: harukiLogger.NewLogger("WemConverter", "INFO", nil)}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Convert writes the converted form of m to w. Output is assembled in
// memory first so w never receives a partial file.
func (c *Converter) Convert(m *Media, w io.Writer) error {
	var buf bytes.Buffer
	switch m.Codec {
	case CodecVorbis:
		s, err := vorbis.NewStream(m.Data, m.Header)
		if err != nil {
			return err
		}
		s.Layout = c.layout
		if err := s.Convert(c.library, &buf); err != nil {
			return err
		}
		stats := s.Stats()
		c.logger.Debugf("Rebuilt %d samples into %d Ogg pages (%d bytes)", stats.Granule, stats.Pages, stats.Bytes)
		if c.verifyOgg {
			f, _ := m.Header.FMT()
			if err := VerifyOgg(buf.Bytes(), int(f.Channels), int(f.SampleRate)); err != nil {
				return err
			}
		}
	case CodecPTADPCM:
		if err := ptadpcm.Decode(m.Data, m.Header, &buf); err != nil {
			return err
		}
	default:
		buf.Write(m.Data)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write %s output: %w", m.Codec, err)
	}
	c.logger.Debugf("converted %s media, %d -> %d bytes", m.Codec, len(m.Data), buf.Len())
	return nil
}

// VerifyOgg opens data as Ogg Vorbis and checks its stream parameters.
func VerifyOgg(data []byte, channels, sampleRate int) error {
	r, err := oggvorbis.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerify, err)
	}
	if r.Channels() != channels || r.SampleRate() != sampleRate {
		return fmt.Errorf("%w: got %d channels at %d Hz, want %d at %d Hz", ErrVerify, r.Channels(), r.SampleRate(), channels, sampleRate)
	}
	return nil
}
