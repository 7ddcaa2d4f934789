package bnk

import (
	"errors"
	"fmt"

	"haruki-wwise-audio/utils"
	harukiLogger "haruki-wwise-audio/utils/logger"
)

var (
	ErrStructural  = errors.New("bnk: structural error")
	ErrUnsupported = errors.New("bnk: unsupported chunk")
)

var logger = harukiLogger.NewLogger("BankReader", "INFO", nil)

type Kind int

const (
	KindUnknown Kind = iota
	KindAKPK
	KindBKHD
	KindDIDX
	KindDATA
	KindHIRC
	KindSTID
	KindSTMG
	KindINIT
	KindENVS
	KindPLAT
)

var kindBySignature = map[string]Kind{
	"AKPK": KindAKPK,
	"BKHD": KindBKHD,
	"DIDX": KindDIDX,
	"DATA": KindDATA,
	"HIRC": KindHIRC,
	"STID": KindSTID,
	"STMG": KindSTMG,
	"INIT": KindINIT,
	"ENVS": KindENVS,
	"PLAT": KindPLAT,
}

func KindOf(signature string) Kind {
	if k, ok := kindBySignature[signature]; ok {
		return k
	}
	return KindUnknown
}

func (k Kind) String() string {
	for sig, v := range kindBySignature {
		if v == k {
			return sig
		}
	}
	return "Unknown"
}

const chunkHeaderSize = 8

// Header locates a chunk payload inside its source file.
type Header struct {
	Signature string
	Length    uint32
	Offset    int64
}

func (h Header) End() int64 {
	return h.Offset + int64(h.Length)
}

type Chunk interface {
	Kind() Kind
	Info() Header
}

// Raw is a chunk kept opaque: only its location is recorded.
type Raw struct {
	Header
}

func (r *Raw) Kind() Kind   { return KindOf(r.Signature) }
func (r *Raw) Info() Header { return r.Header }

func readHeader(bs *utils.BinaryStream) (Header, error) {
	sig, err := bs.ReadFourCC()
	if err != nil {
		return Header{}, fmt.Errorf("failed to read chunk signature: %w", err)
	}
	length, err := bs.ReadUInt32()
	if err != nil {
		return Header{}, fmt.Errorf("failed to read %s chunk length: %w", sig, err)
	}
	return Header{Signature: sig, Length: length, Offset: bs.Position()}, nil
}

// readChunk reads the chunk at the cursor. The cursor always ends at the
// chunk end, or at limit when the chunk overruns its container.
func (r *Reader) readChunk(limit int64, bank *Bank) (Chunk, error) {
	h, err := readHeader(r.bs)
	if err != nil {
		_ = r.bs.SetPosition(limit)
		return nil, fmt.Errorf("%w: %v", ErrStructural, err)
	}
	if h.End() > limit {
		_ = r.bs.SetPosition(limit)
		return nil, fmt.Errorf("%w: %s chunk at %d ends at %d past container end %d", ErrStructural, h.Signature, h.Offset, h.End(), limit)
	}
	defer func() { _ = r.bs.SetPosition(h.End()) }()

	var chunk Chunk
	switch KindOf(h.Signature) {
	case KindAKPK:
		chunk, err = r.readAKPK(h)
	case KindBKHD:
		chunk, err = r.readBKHD(h)
	case KindDIDX:
		chunk, err = r.readDIDX(h)
	case KindDATA:
		chunk = &DATA{Header: h, BaseOffset: h.Offset}
	case KindHIRC:
		chunk, err = r.readHIRC(h, bank)
	case KindSTID:
		chunk, err = r.readSTID(h)
	case KindSTMG, KindINIT, KindENVS, KindPLAT:
		chunk = &Raw{Header: h}
	default:
		logger.Debugf("Skipping unknown chunk %q at %d", h.Signature, h.Offset)
		chunk = &Raw{Header: h}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s chunk at %d: %v", ErrStructural, h.Signature, h.Offset, err)
	}
	return chunk, nil
}
