// Package hashid resolves the one-way FNV content hashes Wwise uses as
// identifiers for banks, events, media and external sources.
package hashid

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Width is the hash width in bits.
type Width int

const (
	Width32 Width = 32
	Width64 Width = 64
)

// Hash32 returns the FNV-1 32-bit hash of the lower-cased name.
func Hash32(name string) uint32 {
	h := fnv.New32()
	_, _ = h.Write([]byte(strings.ToLower(name)))
	return h.Sum32()
}

// Hash64 returns the FNV-1 64-bit hash of the lower-cased name.
func Hash64(name string) uint64 {
	h := fnv.New64()
	_, _ = h.Write([]byte(strings.ToLower(name)))
	return h.Sum64()
}

// Registry maps hash values of one width to the strings they were computed from.
// A value is registered once it has been seen in an archive; TryMatch only
// resolves registered values.
type Registry struct {
	width Width
	mu    sync.RWMutex
	names map[uint64]string
	seen  map[uint64]struct{}
}

func newRegistry(width Width) *Registry {
	return &Registry{
		width: width,
		names: make(map[uint64]string),
		seen:  make(map[uint64]struct{}),
	}
}

func (r *Registry) Width() Width {
	return r.width
}

func (r *Registry) hash(name string) uint64 {
	if r.width == Width32 {
		return uint64(Hash32(name))
	}
	return Hash64(name)
}

// Register records that value was encountered.
func (r *Registry) Register(value uint64) {
	r.mu.Lock()
	r.seen[value] = struct{}{}
	r.mu.Unlock()
}

// Registered reports whether value was encountered.
func (r *Registry) Registered(value uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.seen[value]
	return ok
}

// TryMatch hashes name and, if the value is registered and has no string
// yet, stores name for it. It returns true only when a new mapping was made.
func (r *Registry) TryMatch(name string) bool {
	if name == "" {
		return false
	}
	value := r.hash(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[value]; !ok {
		return false
	}
	if _, ok := r.names[value]; ok {
		return false
	}
	r.names[value] = name
	return true
}

// Set stores name for value unconditionally and registers value.
func (r *Registry) Set(value uint64, name string) {
	r.mu.Lock()
	r.seen[value] = struct{}{}
	r.names[value] = name
	r.mu.Unlock()
}

// Lookup returns the resolved string for value.
func (r *Registry) Lookup(value uint64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.names[value]
	return s, ok
}

// Name returns the resolved string for value, or its decimal form.
func (r *Registry) Name(value uint64) string {
	if s, ok := r.Lookup(value); ok {
		return s
	}
	return strconv.FormatUint(value, 10)
}

// Count returns the number of registered values.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.seen)
}

// Matched returns the number of registered values that have a string.
func (r *Registry) Matched() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for v := range r.names {
		if _, ok := r.seen[v]; ok {
			n++
		}
	}
	return n
}

// Unmatched returns the sorted registered values without a string.
func (r *Registry) Unmatched() []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []uint64
	for v := range r.seen {
		if _, ok := r.names[v]; !ok {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) Clear() {
	r.mu.Lock()
	r.names = make(map[uint64]string)
	r.seen = make(map[uint64]struct{})
	r.mu.Unlock()
}

func (r *Registry) snapshot() map[uint64]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[uint64]string, len(r.names))
	for k, v := range r.names {
		out[k] = v
	}
	return out
}

// Session owns one registry per width for the lifetime of a load session.
type Session struct {
	r32 *Registry
	r64 *Registry
}

func NewSession() *Session {
	return &Session{r32: newRegistry(Width32), r64: newRegistry(Width64)}
}

// Registry returns the registry for width. Any width other than 32 or 64 panics.
func (s *Session) Registry(width Width) *Registry {
	switch width {
	case Width32:
		return s.r32
	case Width64:
		return s.r64
	default:
		panic(fmt.Sprintf("hashid: unsupported width %d", width))
	}
}

func (s *Session) IDs32() *Registry {
	return s.r32
}

func (s *Session) IDs64() *Registry {
	return s.r64
}

// TryMatch tries name against both registries.
func (s *Session) TryMatch(name string) bool {
	m32 := s.r32.TryMatch(name)
	m64 := s.r64.TryMatch(name)
	return m32 || m64
}

func (s *Session) Clear() {
	s.r32.Clear()
	s.r64.Clear()
}
