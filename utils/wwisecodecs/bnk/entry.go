package bnk

import (
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"haruki-wwise-audio/utils"
	"haruki-wwise-audio/utils/wwisecodecs/hashid"
	"haruki-wwise-audio/utils/wwisecodecs/wem"
)

type EntryType int

const (
	TypeBank EntryType = iota
	TypeSound
	TypeEmbeddedSound
	TypeExternal
)

var entryTypeNames = [...]string{"bank", "sound", "embedded", "external"}

func (t EntryType) String() string {
	if int(t) < len(entryTypeNames) {
		return entryTypeNames[t]
	}
	return fmt.Sprintf("EntryType(%d)", int(t))
}

// ParseEntryType maps a configured kind name to its entry type.
func ParseEntryType(s string) (EntryType, error) {
	for i, name := range entryTypeNames {
		if strings.EqualFold(s, name) {
			return EntryType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown entry type %q", s)
}

// Folder is a package language folder. The zero value means no folder.
type Folder struct {
	ID   uint32
	Name string
}

func (f Folder) String() string {
	if f.Name == "" {
		return noneFolder
	}
	return f.Name
}

const noneFolder = "None"

// Entry is one addressable asset of an archive.
type Entry interface {
	Type() EntryType
	ID() uint64
	Name() string
	Folder() Folder
	// Location is the logical output path. With convert set the extension
	// follows the decoded codec.
	Location(convert bool) string
	ByteRange() (source string, offset, size int64, ok bool)
	Open() (io.ReadCloser, error)
	WriteTo(w io.Writer) (int64, error)
	entry()
}

// AudioEntry is an entry whose bytes are a Wwise media file.
type AudioEntry interface {
	Entry
	Media() (*wem.Media, error)
	Release()
}

type base struct {
	id          uint64
	names       *hashid.Registry
	offset      int64
	size        int64
	source      string
	folderIndex uint32
	folder      Folder
}

// readBase reads the package table fields shared by every entry kind.
func readBase(bs *utils.BinaryStream, b *base) error {
	multiplier, err := bs.ReadUInt32()
	if err != nil {
		return err
	}
	size, err := bs.ReadInt32()
	if err != nil {
		return err
	}
	startBlock, err := bs.ReadUInt32()
	if err != nil {
		return err
	}
	folderIndex, err := bs.ReadUInt32()
	if err != nil {
		return err
	}
	b.size = int64(size)
	b.offset = int64(startBlock) * int64(multiplier)
	b.folderIndex = folderIndex
	return nil
}

func (b *base) entry() {}

func (b *base) ID() uint64     { return b.id }
func (b *base) Folder() Folder { return b.folder }
func (b *base) Name() string   { return b.names.Name(b.id) }

func (b *base) resolved() bool {
	_, ok := b.names.Lookup(b.id)
	return ok
}

func (b *base) baseLocation() string {
	return path.Join(b.folder.String(), b.Name())
}

func (b *base) ByteRange() (string, int64, int64, bool) {
	if b.size <= 0 || b.source == "" || !utils.FileExists(b.source) {
		return b.source, b.offset, b.size, false
	}
	return b.source, b.offset, b.size, true
}

func (b *base) Open() (io.ReadCloser, error) {
	source, offset, size, ok := b.ByteRange()
	if !ok {
		return nil, fmt.Errorf("%w: entry %d has no readable range (%s %d+%d)", ErrStructural, b.id, source, offset, size)
	}
	sr, closer, err := utils.OpenSection(source, offset, size)
	if err != nil {
		return nil, err
	}
	return struct {
		io.Reader
		io.Closer
	}{sr, closer}, nil
}

func (b *base) WriteTo(w io.Writer) (int64, error) {
	rc, err := b.Open()
	if err != nil {
		return 0, err
	}
	defer func(rc io.ReadCloser) {
		_ = rc.Close()
	}(rc)
	return io.Copy(w, rc)
}

func (b *base) read() ([]byte, error) {
	source, offset, size, ok := b.ByteRange()
	if !ok {
		return nil, fmt.Errorf("%w: entry %d has no readable range (%s %d+%d)", ErrStructural, b.id, source, offset, size)
	}
	return utils.ReadSection(source, offset, size)
}

// codecCell caches the parsed media of an audio entry until released.
type codecCell struct {
	mu    sync.Mutex
	media *wem.Media
}

func (c *codecCell) get(read func() ([]byte, error)) (*wem.Media, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.media != nil {
		return c.media, nil
	}
	data, err := read()
	if err != nil {
		return nil, err
	}
	m, err := wem.Parse(data)
	if err != nil {
		return nil, err
	}
	c.media = m
	return m, nil
}

func (c *codecCell) release() {
	c.mu.Lock()
	c.media = nil
	c.mu.Unlock()
}

type audio struct {
	base
	cell codecCell
}

func (a *audio) Media() (*wem.Media, error) {
	return a.cell.get(a.read)
}

func (a *audio) Release() {
	a.cell.release()
}

func (a *audio) extension(convert bool) string {
	if !convert {
		return wem.DefaultExtension
	}
	m, err := a.Media()
	if err != nil {
		logger.Debugf("Unable to detect codec of %d: %v", a.id, err)
		return wem.DefaultExtension
	}
	return m.Codec.Extension()
}

// Sound is a media file streamed from a package sound table.
type Sound struct {
	audio
}

func (s *Sound) Type() EntryType { return TypeSound }

func (s *Sound) Location(convert bool) string {
	return s.baseLocation() + s.extension(convert)
}

// External is a media file addressed by the 64-bit hash of its path.
type External struct {
	audio
}

func (e *External) Type() EntryType { return TypeExternal }

func (e *External) Location(convert bool) string {
	ext := e.extension(convert)
	if e.resolved() {
		name := e.Name()
		return strings.TrimSuffix(name, path.Ext(name)) + ext
	}
	return e.baseLocation() + ext
}

// EmbeddedSound is a media file stored in the DATA chunk of a bank.
type EmbeddedSound struct {
	audio
	bank *Bank
}

func (e *EmbeddedSound) Type() EntryType { return TypeEmbeddedSound }

func (e *EmbeddedSound) Bank() *Bank { return e.bank }

// setBank attaches the sound to its bank. The first bank with a DATA chunk wins.
func (e *EmbeddedSound) setBank(b *Bank) {
	if e.bank != nil || b == nil {
		return
	}
	data, ok := b.DATA()
	if !ok {
		return
	}
	e.bank = b
	e.folder = b.folder
	e.source = b.source
	e.offset += data.BaseOffset
}

func (e *EmbeddedSound) Location(convert bool) string {
	bankName := noneFolder
	if e.bank != nil {
		bankName = e.bank.Name()
	}
	return path.Join(e.folder.String(), bankName, e.Name()) + e.extension(convert)
}
