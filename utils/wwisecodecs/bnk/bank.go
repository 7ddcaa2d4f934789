package bnk

import (
	"fmt"
	"sort"

	"github.com/iancoleman/orderedmap"
)

// BKHD is the bank header.
type BKHD struct {
	Header
	Version    uint32
	ID         uint32
	LanguageID uint32
	Alignment  uint16
}

func (c *BKHD) Kind() Kind   { return KindBKHD }
func (c *BKHD) Info() Header { return c.Header }

func (r *Reader) readBKHD(h Header) (*BKHD, error) {
	c := &BKHD{Header: h}
	var err error
	if c.Version, err = r.bs.ReadUInt32(); err != nil {
		return nil, err
	}
	if c.ID, err = r.bs.ReadUInt32(); err != nil {
		return nil, err
	}
	if c.LanguageID, err = r.bs.ReadUInt32(); err != nil {
		return nil, err
	}
	if h.Length >= 14 {
		if c.Alignment, err = r.bs.ReadUInt16(); err != nil {
			return nil, err
		}
	}
	r.session.IDs32().Register(uint64(c.ID))
	return c, nil
}

// STID is the bank string table. Every name it carries is offered to the
// 32-bit registry.
type STID struct {
	Header
	StringType uint32
	BankIDs    []uint32
}

func (c *STID) Kind() Kind   { return KindSTID }
func (c *STID) Info() Header { return c.Header }

func (r *Reader) readSTID(h Header) (*STID, error) {
	c := &STID{Header: h}
	var err error
	if c.StringType, err = r.bs.ReadUInt32(); err != nil {
		return nil, err
	}
	count, err := r.bs.ReadInt32()
	if err != nil {
		return nil, err
	}
	for i := int32(0); i < count; i++ {
		id, err := r.bs.ReadUInt32()
		if err != nil {
			return nil, err
		}
		n, err := r.bs.ReadByte()
		if err != nil {
			return nil, err
		}
		name, err := r.bs.ReadBytes(int(n))
		if err != nil {
			return nil, err
		}
		c.BankIDs = append(c.BankIDs, id)
		r.session.IDs32().TryMatch(string(name))
	}
	return c, nil
}

// DIDX indexes the media stored in the DATA chunk.
type DIDX struct {
	Header
	Sounds []*EmbeddedSound
}

func (c *DIDX) Kind() Kind   { return KindDIDX }
func (c *DIDX) Info() Header { return c.Header }

const didxEntrySize = 12

func (r *Reader) readDIDX(h Header) (*DIDX, error) {
	c := &DIDX{Header: h}
	names := r.session.IDs32()
	for i := uint32(0); i < h.Length/didxEntrySize; i++ {
		id, err := r.bs.ReadUInt32()
		if err != nil {
			return nil, err
		}
		offset, err := r.bs.ReadUInt32()
		if err != nil {
			return nil, err
		}
		size, err := r.bs.ReadInt32()
		if err != nil {
			return nil, err
		}
		names.Register(uint64(id))
		s := &EmbeddedSound{}
		s.id = uint64(id)
		s.names = names
		s.offset = int64(offset)
		s.size = int64(size)
		c.Sounds = append(c.Sounds, s)
	}
	return c, nil
}

// DATA holds the embedded media. BaseOffset is the absolute payload start.
type DATA struct {
	Header
	BaseOffset int64
}

func (c *DATA) Kind() Kind   { return KindDATA }
func (c *DATA) Info() Header { return c.Header }

// Bank is a sound bank, either standalone or stored in a package.
type Bank struct {
	base
	chunks map[Kind]Chunk
	order  []Kind
	pkg    *AKPK
}

func (b *Bank) Type() EntryType { return TypeBank }

func (b *Bank) Location(bool) string {
	return b.baseLocation() + ".bnk"
}

// Source is the file the bank was read from.
func (b *Bank) Source() string { return b.source }

// Package returns the package holding the bank, or nil for a standalone bank.
func (b *Bank) Package() *AKPK { return b.pkg }

func (b *Bank) Chunk(kind Kind) (Chunk, bool) {
	c, ok := b.chunks[kind]
	return c, ok
}

// Chunks returns the parsed chunks in file order.
func (b *Bank) Chunks() []Chunk {
	out := make([]Chunk, 0, len(b.order))
	for _, k := range b.order {
		out = append(out, b.chunks[k])
	}
	return out
}

func (b *Bank) BKHD() (*BKHD, bool) {
	c, ok := b.chunks[KindBKHD].(*BKHD)
	return c, ok
}

func (b *Bank) DATA() (*DATA, bool) {
	c, ok := b.chunks[KindDATA].(*DATA)
	return c, ok
}

func (b *Bank) DIDX() (*DIDX, bool) {
	c, ok := b.chunks[KindDIDX].(*DIDX)
	return c, ok
}

func (b *Bank) HIRC() (*HIRC, bool) {
	c, ok := b.chunks[KindHIRC].(*HIRC)
	return c, ok
}

func (b *Bank) STID() (*STID, bool) {
	c, ok := b.chunks[KindSTID].(*STID)
	return c, ok
}

// Sounds returns the embedded sounds indexed by the bank's DIDX.
func (b *Bank) Sounds() []*EmbeddedSound {
	didx, ok := b.DIDX()
	if !ok {
		return nil
	}
	for _, s := range didx.Sounds {
		s.setBank(b)
	}
	return didx.Sounds
}

// Entries yields the bank itself followed by its embedded sounds.
func (b *Bank) Entries() []Entry {
	sounds := b.Sounds()
	out := make([]Entry, 0, len(sounds)+1)
	out = append(out, b)
	for _, s := range sounds {
		out = append(out, s)
	}
	return out
}

func (b *Bank) addChunk(c Chunk) {
	if b.chunks == nil {
		b.chunks = make(map[Kind]Chunk)
	}
	if _, dup := b.chunks[c.Kind()]; dup {
		if c.Kind() == KindUnknown {
			return
		}
		logger.Warnf("Bank %s has a duplicate %s chunk, keeping the first", b.Name(), c.Kind())
		return
	}
	b.chunks[c.Kind()] = c
	b.order = append(b.order, c.Kind())
}

// parseBank reads every chunk in [start, end) into b.
func (r *Reader) parseBank(b *Bank, start, end int64) error {
	if err := r.bs.SetPosition(start); err != nil {
		return err
	}
	for r.bs.Position()+chunkHeaderSize <= end {
		c, err := r.readChunk(end, b)
		if err != nil {
			logger.Warnf("Error while parsing bank %s: %v", r.source, err)
			continue
		}
		if bkhd, ok := c.(*BKHD); ok && b.id == 0 {
			b.id = uint64(bkhd.ID)
		}
		b.addChunk(c)
	}
	if _, ok := b.BKHD(); !ok {
		return fmt.Errorf("%w: bank at %d in %s has no BKHD chunk", ErrStructural, start, r.source)
	}
	b.Sounds()
	return nil
}

// Describe returns the bank contents with keys in a stable order.
func (b *Bank) Describe() *orderedmap.OrderedMap {
	om := orderedmap.New()
	om.SetEscapeHTML(false)
	om.Set("ID", b.id)
	om.Set("Name", b.Name())
	om.Set("Folder", b.folder.String())
	om.Set("Offset", b.offset)
	om.Set("Size", b.size)
	if bkhd, ok := b.BKHD(); ok {
		om.Set("Version", bkhd.Version)
		om.Set("LanguageID", bkhd.LanguageID)
	}
	kinds := make([]string, 0, len(b.order))
	for _, k := range b.order {
		kinds = append(kinds, k.String())
	}
	om.Set("Chunks", kinds)
	sounds := b.Sounds()
	names := make([]string, 0, len(sounds))
	for _, s := range sounds {
		names = append(names, s.Name())
	}
	sort.Strings(names)
	om.Set("Sounds", names)
	if hirc, ok := b.HIRC(); ok {
		om.Set("Objects", len(hirc.Objects))
		om.Set("Events", len(hirc.Events()))
	}
	return om
}
