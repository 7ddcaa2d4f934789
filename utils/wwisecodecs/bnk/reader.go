package bnk

import (
	"fmt"
	"io"
	"os"

	"haruki-wwise-audio/utils"
	"haruki-wwise-audio/utils/wwisecodecs/hashid"
)

// Reader walks the chunks of one archive file. IDs it meets are registered
// in the session registries.
type Reader struct {
	bs      *utils.BinaryStream
	source  string
	session *hashid.Session
}

func NewReader(rs io.ReadSeeker, source string, session *hashid.Session) *Reader {
	return &Reader{
		bs:      utils.NewBinaryStream(rs, "little"),
		source:  source,
		session: session,
	}
}

// Archive is a loaded package or standalone bank.
type Archive struct {
	Source  string
	Root    Chunk
	Package *AKPK
	Bank    *Bank
	Entries []Entry
}

// Read detects the archive by its first chunk and parses it.
func (r *Reader) Read() (*Archive, error) {
	length := r.bs.Length()
	if length < chunkHeaderSize {
		return nil, fmt.Errorf("%w: %s is too short (%d bytes)", ErrStructural, r.source, length)
	}
	sig, err := r.bs.ReadFourCC()
	if err != nil {
		return nil, fmt.Errorf("failed to read signature of %s: %w", r.source, err)
	}
	if err := r.bs.SetPosition(0); err != nil {
		return nil, err
	}

	a := &Archive{Source: r.source}
	switch KindOf(sig) {
	case KindAKPK:
		chunk, err := r.readChunk(length, nil)
		if err != nil {
			return nil, err
		}
		pkg := chunk.(*AKPK)
		loaded := r.loadBanks(pkg)
		logger.Debugf("Loaded %d out of %d banks from %s", loaded, len(pkg.Banks), r.source)
		a.Root = pkg
		a.Package = pkg
		a.Entries = pkg.Entries()
	case KindBKHD:
		b := &Bank{}
		b.names = r.session.IDs32()
		b.source = r.source
		b.size = length
		if err := r.parseBank(b, 0, length); err != nil {
			return nil, err
		}
		a.Root, _ = b.BKHD()
		a.Bank = b
		a.Entries = b.Entries()
	default:
		return nil, fmt.Errorf("%w: %s starts with %q", ErrUnsupported, r.source, sig)
	}
	return a, nil
}

// LoadFile opens path and reads it as a package or bank.
func LoadFile(path string, session *hashid.Session) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	return NewReader(f, path, session).Read()
}
