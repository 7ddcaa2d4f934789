package bnk

import "fmt"

type HIRCType uint8

const (
	HIRCState        HIRCType = 1
	HIRCSound        HIRCType = 2
	HIRCAction       HIRCType = 3
	HIRCEvent        HIRCType = 4
	HIRCRandomSeq    HIRCType = 5
	HIRCSwitch       HIRCType = 6
	HIRCActorMixer   HIRCType = 7
	HIRCBus          HIRCType = 8
	HIRCLayer        HIRCType = 9
	HIRCMusicSegment HIRCType = 10
	HIRCMusicTrack   HIRCType = 11
	HIRCMusicSwitch  HIRCType = 12
	HIRCMusicRandSeq HIRCType = 13
)

// HIRCObject is one hierarchy object. Payload holds the bytes after the ID.
type HIRCObject struct {
	Type    HIRCType
	ID      uint32
	Offset  int64
	Payload []byte
}

// HIRC is the object hierarchy of a bank.
type HIRC struct {
	Header
	Bank    *Bank
	Objects []HIRCObject
	index   map[uint32]int
}

func (c *HIRC) Kind() Kind   { return KindHIRC }
func (c *HIRC) Info() Header { return c.Header }

// Object returns the object with the given ID.
func (c *HIRC) Object(id uint32) (HIRCObject, bool) {
	i, ok := c.index[id]
	if !ok {
		return HIRCObject{}, false
	}
	return c.Objects[i], true
}

// Events returns the event objects in file order.
func (c *HIRC) Events() []HIRCObject {
	var out []HIRCObject
	for _, o := range c.Objects {
		if o.Type == HIRCEvent {
			out = append(out, o)
		}
	}
	return out
}

const hircObjectHeaderSize = 5

func (r *Reader) readHIRC(h Header, bank *Bank) (*HIRC, error) {
	c := &HIRC{Header: h, Bank: bank, index: make(map[uint32]int)}
	count, err := r.bs.ReadUInt32()
	if err != nil {
		return nil, err
	}
	names := r.session.IDs32()
	for i := uint32(0); i < count; i++ {
		if r.bs.Position()+hircObjectHeaderSize > h.End() {
			return nil, fmt.Errorf("object %d of %d starts past chunk end", i, count)
		}
		t, err := r.bs.ReadByte()
		if err != nil {
			return nil, err
		}
		length, err := r.bs.ReadUInt32()
		if err != nil {
			return nil, err
		}
		start := r.bs.Position()
		if length < 4 || start+int64(length) > h.End() {
			return nil, fmt.Errorf("object %d at %d with length %d overruns chunk end %d", i, start, length, h.End())
		}
		id, err := r.bs.ReadUInt32()
		if err != nil {
			return nil, err
		}
		payload, err := r.bs.ReadBytes(int(length) - 4)
		if err != nil {
			return nil, err
		}
		o := HIRCObject{Type: HIRCType(t), ID: id, Offset: start, Payload: payload}
		if o.Type == HIRCEvent {
			names.Register(uint64(id))
		}
		if _, dup := c.index[id]; !dup {
			c.index[id] = len(c.Objects)
		}
		c.Objects = append(c.Objects, o)
	}
	return c, nil
}
