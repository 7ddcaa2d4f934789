package vorbis

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"

	"haruki-wwise-audio/utils/wwisecodecs/bitstream"
)

// ErrCodebook reports an unusable codebook or codebook library.
var ErrCodebook = errors.New("vorbis: invalid codebook")

const codebookSync = 0x564342 // "BCV"

// Library is a packed codebook library: payloads followed by an int32
// offset table whose final entry is the payload size.
type Library struct {
	data    []byte
	offsets []int32
}

// NewLibrary parses a packed codebook library image.
func NewLibrary(raw []byte) (*Library, error) {
	if len(raw) < 4 {
		return nil, fmt.Errorf("%w: library is %d bytes", ErrCodebook, len(raw))
	}
	size := int64(int32(binary.LittleEndian.Uint32(raw[len(raw)-4:])))
	if size < 0 || size > int64(len(raw))-4 || (int64(len(raw))-size)%4 != 0 {
		return nil, fmt.Errorf("%w: bad offset table position %d in %d bytes", ErrCodebook, size, len(raw))
	}
	table := raw[size:]
	offsets := make([]int32, len(table)/4)
	for i := range offsets {
		offsets[i] = int32(binary.LittleEndian.Uint32(table[i*4:]))
		if offsets[i] < 0 || int64(offsets[i]) > size || (i > 0 && offsets[i] < offsets[i-1]) {
			return nil, fmt.Errorf("%w: offset %d of entry %d out of order", ErrCodebook, offsets[i], i)
		}
	}
	return &Library{data: raw[:size], offsets: offsets}, nil
}

// ReadLibrary loads a library file.
func ReadLibrary(path string) (*Library, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read codebook library: %w", err)
	}
	lib, err := NewLibrary(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse codebook library %s: %w", path, err)
	}
	return lib, nil
}

var (
	libraryGroup singleflight.Group
	libraries    sync.Map
)

// LoadLibrary returns the library at path, reading it at most once per process.
func LoadLibrary(path string) (*Library, error) {
	if v, ok := libraries.Load(path); ok {
		return v.(*Library), nil
	}
	v, err, _ := libraryGroup.Do(path, func() (any, error) {
		if v, ok := libraries.Load(path); ok {
			return v, nil
		}
		lib, err := ReadLibrary(path)
		if err != nil {
			return nil, err
		}
		libraries.Store(path, lib)
		return lib, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Library), nil
}

// Count returns the number of addressable codebooks.
func (l *Library) Count() int {
	return max(len(l.offsets)-1, 0)
}

// Codebook returns the packed payload of codebook i.
func (l *Library) Codebook(i int) ([]byte, error) {
	if i < 0 || i >= l.Count() {
		return nil, fmt.Errorf("%w: codebook %d out of range %d", ErrCodebook, i, l.Count())
	}
	return l.data[l.offsets[i]:l.offsets[i+1]], nil
}

// Rebuild expands packed codebook i into the standard Vorbis layout.
func (l *Library) Rebuild(i int, w BitWriter) error {
	cb, err := l.Codebook(i)
	if err != nil {
		return err
	}
	r := bitstream.New(cb)
	if err := RebuildCodebook(r, w); err != nil {
		return fmt.Errorf("failed to rebuild codebook %d: %w", i, err)
	}
	if r.Remaining() > 8 {
		return fmt.Errorf("%w: codebook %d has %d unread bits", ErrCodebook, i, r.Remaining())
	}
	return nil
}

// RebuildCodebook converts one packed codebook read from r.
func RebuildCodebook(r *bitstream.BitStream, w BitWriter) error {
	c := &bitCopier{r: r, w: w}
	dimensions := c.read(4)
	entries := c.read(14)

	c.write(24, codebookSync)
	c.write(16, dimensions)
	c.write(24, entries)

	if c.copy(1) != 0 {
		if err := copyOrderedLengths(c, entries); err != nil {
			return err
		}
	} else {
		width := c.read(3)
		sparse := c.read(1)
		if c.err != nil {
			return c.err
		}
		if width == 0 || width > 5 {
			return fmt.Errorf("%w: codeword length width %d", ErrCodebook, width)
		}
		c.write(1, sparse)
		for e := uint32(0); e < entries; e++ {
			present := uint32(1)
			if sparse != 0 {
				present = c.copy(1)
			}
			if present != 0 {
				c.widen(int(width), 5)
			}
		}
	}

	lookup := c.widen(1, 4)
	if lookup == 1 {
		if err := copyLookup(c, entries, dimensions); err != nil {
			return err
		}
	}
	return c.err
}

// CopyCodebook copies a codebook already in the standard Vorbis layout.
func CopyCodebook(r *bitstream.BitStream, w BitWriter) error {
	c := &bitCopier{r: r, w: w}
	pattern := c.read(24)
	if c.err == nil && pattern != codebookSync {
		return fmt.Errorf("%w: sync pattern %#x", ErrCodebook, pattern)
	}
	c.write(24, pattern)
	dimensions := c.copy(16)
	entries := c.copy(24)

	if c.copy(1) != 0 {
		if err := copyOrderedLengths(c, entries); err != nil {
			return err
		}
	} else {
		sparse := c.copy(1)
		for e := uint32(0); e < entries && c.err == nil; e++ {
			present := uint32(1)
			if sparse != 0 {
				present = c.copy(1)
			}
			if present != 0 {
				c.copy(5)
			}
		}
	}

	lookup := c.copy(4)
	switch {
	case c.err != nil:
	case lookup == 1:
		if err := copyLookup(c, entries, dimensions); err != nil {
			return err
		}
	case lookup != 0:
		return fmt.Errorf("%w: lookup type %d", ErrCodebook, lookup)
	}
	return c.err
}

func copyOrderedLengths(c *bitCopier, entries uint32) error {
	c.copy(5)
	current := uint32(0)
	for current < entries && c.err == nil {
		current += c.copy(ilog(entries - current))
	}
	if c.err == nil && current > entries {
		return fmt.Errorf("%w: ordered lengths cover %d of %d entries", ErrCodebook, current, entries)
	}
	return c.err
}

func copyLookup(c *bitCopier, entries, dimensions uint32) error {
	c.copy(32) // minimum
	c.copy(32) // delta
	valueBits := int(c.copy(4)) + 1
	c.copy(1) // sequence
	if c.err != nil {
		return c.err
	}
	quantVals, err := QuantCount(entries, dimensions)
	if err != nil {
		return err
	}
	for i := uint32(0); i < quantVals && c.err == nil; i++ {
		c.copy(valueBits)
	}
	return c.err
}

// QuantCount returns the number of lookup values of a type 1 codebook: the
// largest vals with vals^dimensions <= entries.
func QuantCount(entries, dimensions uint32) (uint32, error) {
	if dimensions == 0 {
		return 0, fmt.Errorf("%w: zero dimensions", ErrCodebook)
	}
	if entries == 0 {
		return 0, nil
	}
	limit := uint64(entries)
	b := uint64(ilog(entries))
	vals := uint64(entries) >> ((b - 1) * uint64(dimensions-1) / uint64(dimensions))
	// powers saturate at limit+1, so the search is monotone and stays in [1, entries]
	for i, n := uint32(0), entries+1; i < n; i++ {
		acc := saturatingPow(vals, dimensions, limit)
		next := saturatingPow(vals+1, dimensions, limit)
		switch {
		case acc <= limit && next > limit:
			return uint32(vals), nil
		case acc > limit:
			vals--
		default:
			vals++
		}
	}
	return 0, fmt.Errorf("%w: no lookup size for %d entries in %d dimensions", ErrCodebook, entries, dimensions)
}

// saturatingPow returns base^exp, or limit+1 once the product exceeds limit.
func saturatingPow(base uint64, exp uint32, limit uint64) uint64 {
	if base <= 1 {
		return base
	}
	acc := uint64(1)
	for i := uint32(0); i < exp; i++ {
		if acc > limit/base {
			return limit + 1
		}
		acc *= base
	}
	return acc
}
