package bnk

import (
	"fmt"

	"github.com/iancoleman/orderedmap"
)

// AKPK is a file package: language folders plus bank, sound and external tables.
type AKPK struct {
	Header
	Source    string
	Version   uint32
	Folders   []Folder
	Banks     []*Bank
	Sounds    []*Sound
	Externals []*External
}

func (c *AKPK) Kind() Kind   { return KindAKPK }
func (c *AKPK) Info() Header { return c.Header }

// Folder returns the folder with the given ID, or the zero folder.
func (c *AKPK) Folder(id uint32) Folder {
	for _, f := range c.Folders {
		if f.ID == id {
			return f
		}
	}
	return Folder{}
}

// Contains reports whether b was read from this package's bank table.
func (c *AKPK) Contains(b *Bank) bool {
	return b != nil && b.pkg == c
}

// Entries returns every bank with its embedded sounds, then the streamed
// sounds and the externals.
func (c *AKPK) Entries() []Entry {
	var out []Entry
	for _, b := range c.Banks {
		out = append(out, b.Entries()...)
	}
	for _, s := range c.Sounds {
		out = append(out, s)
	}
	for _, e := range c.Externals {
		out = append(out, e)
	}
	return out
}

func (c *AKPK) Describe() *orderedmap.OrderedMap {
	om := orderedmap.New()
	om.SetEscapeHTML(false)
	om.Set("Version", c.Version)
	folders := orderedmap.New()
	for _, f := range c.Folders {
		folders.Set(fmt.Sprint(f.ID), f.Name)
	}
	om.Set("Folders", folders)
	banks := make([]*orderedmap.OrderedMap, 0, len(c.Banks))
	for _, b := range c.Banks {
		banks = append(banks, b.Describe())
	}
	om.Set("Banks", banks)
	om.Set("Sounds", describeAudio(c.Sounds))
	om.Set("Externals", describeAudio(c.Externals))
	return om
}

func describeAudio[T Entry](entries []T) []*orderedmap.OrderedMap {
	out := make([]*orderedmap.OrderedMap, 0, len(entries))
	for _, e := range entries {
		_, offset, size, _ := e.ByteRange()
		om := orderedmap.New()
		om.SetEscapeHTML(false)
		om.Set("ID", e.ID())
		om.Set("Name", e.Name())
		om.Set("Folder", e.Folder().String())
		om.Set("Offset", offset)
		om.Set("Size", size)
		om.Set("Location", e.Location(false))
		out = append(out, om)
	}
	return out
}

func (r *Reader) readAKPK(h Header) (*AKPK, error) {
	c := &AKPK{Header: h, Source: r.source}
	var err error
	if c.Version, err = r.bs.ReadUInt32(); err != nil {
		return nil, err
	}
	folderSize, err := r.bs.ReadUInt32()
	if err != nil {
		return nil, err
	}
	bankSize, err := r.bs.ReadUInt32()
	if err != nil {
		return nil, err
	}
	soundSize, err := r.bs.ReadUInt32()
	if err != nil {
		return nil, err
	}
	var externalSize uint32
	fixed := int64(16) + int64(folderSize) + int64(bankSize) + int64(soundSize)
	if int64(h.Length) >= fixed+4 {
		if externalSize, err = r.bs.ReadUInt32(); err != nil {
			return nil, err
		}
	}

	if err := r.readTable(h, folderSize, c.readFolders(r)); err != nil {
		return nil, fmt.Errorf("failed to read folder map: %w", err)
	}

	ids32 := r.session.IDs32()
	if err := r.readTable(h, bankSize, r.rows(func() error {
		b := &Bank{pkg: c}
		b.names = ids32
		b.source = r.source
		id, err := r.bs.ReadUInt32()
		if err != nil {
			return err
		}
		b.id = uint64(id)
		if err := readBase(r.bs, &b.base); err != nil {
			return err
		}
		b.folder = c.Folder(b.folderIndex)
		ids32.Register(b.id)
		c.Banks = append(c.Banks, b)
		return nil
	})); err != nil {
		return nil, fmt.Errorf("failed to read bank table: %w", err)
	}

	if err := r.readTable(h, soundSize, r.rows(func() error {
		s := &Sound{}
		s.names = ids32
		s.source = r.source
		id, err := r.bs.ReadUInt32()
		if err != nil {
			return err
		}
		s.id = uint64(id)
		if err := readBase(r.bs, &s.base); err != nil {
			return err
		}
		s.folder = c.Folder(s.folderIndex)
		ids32.Register(s.id)
		c.Sounds = append(c.Sounds, s)
		return nil
	})); err != nil {
		return nil, fmt.Errorf("failed to read sound table: %w", err)
	}

	ids64 := r.session.IDs64()
	if err := r.readTable(h, externalSize, r.rows(func() error {
		e := &External{}
		e.names = ids64
		e.source = r.source
		id, err := r.bs.ReadUInt64()
		if err != nil {
			return err
		}
		e.id = id
		if err := readBase(r.bs, &e.base); err != nil {
			return err
		}
		e.folder = c.Folder(e.folderIndex)
		ids64.Register(e.id)
		c.Externals = append(c.Externals, e)
		return nil
	})); err != nil {
		return nil, fmt.Errorf("failed to read external table: %w", err)
	}
	return c, nil
}

// readFolders returns a table reader that consumes the whole folder map.
// Folder names are UTF-16 strings at offsets relative to the map start.
func (c *AKPK) readFolders(r *Reader) func(start, end int64, count uint32) error {
	return func(start, _ int64, count uint32) error {
		type ref struct{ offset, id uint32 }
		refs := make([]ref, 0, count)
		for i := uint32(0); i < count; i++ {
			offset, err := r.bs.ReadUInt32()
			if err != nil {
				return err
			}
			id, err := r.bs.ReadUInt32()
			if err != nil {
				return err
			}
			refs = append(refs, ref{offset, id})
		}
		for _, f := range refs {
			if err := r.bs.SetPosition(start + int64(f.offset)); err != nil {
				return err
			}
			name, err := r.bs.ReadUTF16StringToNull()
			if err != nil {
				return fmt.Errorf("failed to read folder %d name: %w", f.id, err)
			}
			c.Folders = append(c.Folders, Folder{ID: f.id, Name: name})
		}
		return nil
	}
}

// readTable hands a counted table of size bytes at the cursor to read.
// The cursor ends at the table end.
func (r *Reader) readTable(h Header, size uint32, read func(start, end int64, count uint32) error) error {
	if size == 0 {
		return nil
	}
	start := r.bs.Position()
	end := start + int64(size)
	if end > h.End() {
		return fmt.Errorf("%w: table at %d with size %d overruns header end %d", ErrStructural, start, size, h.End())
	}
	defer func() { _ = r.bs.SetPosition(end) }()
	count, err := r.bs.ReadUInt32()
	if err != nil {
		return err
	}
	return read(start, end, count)
}

// rows adapts a per-row reader to readTable.
func (r *Reader) rows(row func() error) func(start, end int64, count uint32) error {
	return func(_, end int64, count uint32) error {
		for i := uint32(0); i < count; i++ {
			if r.bs.Position() >= end {
				return fmt.Errorf("%w: row %d of %d past table end", ErrStructural, i, count)
			}
			if err := row(); err != nil {
				return err
			}
		}
		return nil
	}
}

// loadBanks parses every bank stored in the package.
func (r *Reader) loadBanks(c *AKPK) int {
	length := r.bs.Length()
	loaded := 0
	for _, b := range c.Banks {
		if b.size <= 0 || b.offset+b.size > length {
			logger.Warnf("Bank %s has an invalid range %d+%d in %s, skipping...", b.Name(), b.offset, b.size, r.source)
			continue
		}
		if err := r.parseBank(b, b.offset, b.offset+b.size); err != nil {
			logger.Warnf("Unable to parse bank %s: %v", b.Name(), err)
			continue
		}
		loaded++
	}
	return loaded
}
