// Package bnktest builds synthetic sound banks and file packages for tests.
package bnktest

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"
)

func le(b *bytes.Buffer, v any) {
	_ = binary.Write(b, binary.LittleEndian, v)
}

// Chunk frames payload with a signature and length.
func Chunk(signature string, payload []byte) []byte {
	var b bytes.Buffer
	b.WriteString(signature)
	le(&b, uint32(len(payload)))
	b.Write(payload)
	return b.Bytes()
}

func BKHD(version, id, language uint32, alignment uint16) []byte {
	var b bytes.Buffer
	le(&b, version)
	le(&b, id)
	le(&b, language)
	le(&b, alignment)
	return Chunk("BKHD", b.Bytes())
}

type Name struct {
	ID   uint32
	Name string
}

func STID(names ...Name) []byte {
	var b bytes.Buffer
	le(&b, uint32(1))
	le(&b, int32(len(names)))
	for _, n := range names {
		le(&b, n.ID)
		b.WriteByte(byte(len(n.Name)))
		b.WriteString(n.Name)
	}
	return Chunk("STID", b.Bytes())
}

type Media struct {
	ID     uint32
	Offset uint32
	Size   int32
}

func DIDX(media ...Media) []byte {
	var b bytes.Buffer
	for _, m := range media {
		le(&b, m.ID)
		le(&b, m.Offset)
		le(&b, m.Size)
	}
	return Chunk("DIDX", b.Bytes())
}

func DATA(payload []byte) []byte {
	return Chunk("DATA", payload)
}

type Object struct {
	Type    uint8
	ID      uint32
	Payload []byte
}

func HIRC(objects ...Object) []byte {
	var b bytes.Buffer
	le(&b, uint32(len(objects)))
	for _, o := range objects {
		b.WriteByte(o.Type)
		le(&b, uint32(4+len(o.Payload)))
		le(&b, o.ID)
		b.Write(o.Payload)
	}
	return Chunk("HIRC", b.Bytes())
}

// Bank concatenates chunks into a bank file.
func Bank(chunks ...[]byte) []byte {
	return bytes.Join(chunks, nil)
}

type Folder struct {
	ID   uint32
	Name string
}

// File is a package table row together with the bytes it points at.
type File struct {
	ID     uint64
	Folder uint32
	Data   []byte
}

// Package describes a file package. Bytes lays the tables out first and the
// file data after them, with a block size of 1.
type Package struct {
	Folders   []Folder
	Banks     []File
	Sounds    []File
	Externals []File
}

func (p Package) folderMap() []byte {
	var names bytes.Buffer
	offsets := make([]uint32, len(p.Folders))
	base := uint32(4 + 8*len(p.Folders))
	for i, f := range p.Folders {
		offsets[i] = base + uint32(names.Len())
		for _, u := range utf16.Encode([]rune(f.Name)) {
			le(&names, u)
		}
		le(&names, uint16(0))
	}
	var b bytes.Buffer
	le(&b, uint32(len(p.Folders)))
	for i, f := range p.Folders {
		le(&b, offsets[i])
		le(&b, f.ID)
	}
	b.Write(names.Bytes())
	for b.Len()%4 != 0 {
		b.WriteByte(0)
	}
	return b.Bytes()
}

func table(files []File, wide bool, start *uint32) []byte {
	var b bytes.Buffer
	le(&b, uint32(len(files)))
	for _, f := range files {
		if wide {
			le(&b, f.ID)
		} else {
			le(&b, uint32(f.ID))
		}
		le(&b, uint32(1))
		le(&b, int32(len(f.Data)))
		le(&b, *start)
		le(&b, f.Folder)
		*start += uint32(len(f.Data))
	}
	return b.Bytes()
}

func (p Package) Bytes() []byte {
	folders := p.folderMap()
	rowSize := func(n int, wide bool) int {
		if wide {
			return 4 + 24*n
		}
		return 4 + 20*n
	}
	headerSize := 20 + len(folders) + rowSize(len(p.Banks), false) + rowSize(len(p.Sounds), false) + rowSize(len(p.Externals), true)
	start := uint32(8 + headerSize)
	banks := table(p.Banks, false, &start)
	sounds := table(p.Sounds, false, &start)
	externals := table(p.Externals, true, &start)

	var b bytes.Buffer
	b.WriteString("AKPK")
	le(&b, uint32(headerSize))
	le(&b, uint32(1))
	le(&b, uint32(len(folders)))
	le(&b, uint32(len(banks)))
	le(&b, uint32(len(sounds)))
	le(&b, uint32(len(externals)))
	b.Write(folders)
	b.Write(banks)
	b.Write(sounds)
	b.Write(externals)
	for _, group := range [][]File{p.Banks, p.Sounds, p.Externals} {
		for _, f := range group {
			b.Write(f.Data)
		}
	}
	return b.Bytes()
}
