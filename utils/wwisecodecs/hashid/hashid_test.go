package hashid

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashKnownValues(t *testing.T) {
	// FNV-1 offset basis for the empty string
	assert.Equal(t, uint32(0x811c9dc5), Hash32(""))
	assert.Equal(t, uint64(0xcbf29ce484222325), Hash64(""))
	assert.Equal(t, Hash32("Play_Music"), Hash32("play_music"))
	assert.Equal(t, Hash64("BGM_01.wem"), Hash64("bgm_01.wem"))
}

func TestTryMatchOnceAndIdempotent(t *testing.T) {
	s := NewSession()
	r := s.IDs32()
	id := uint64(Hash32("Play_Title"))
	r.Register(id)

	assert.True(t, r.TryMatch("Play_Title"))
	assert.False(t, r.TryMatch("Play_Title"))
	assert.False(t, r.TryMatch("play_title"))

	name, ok := r.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, "Play_Title", name)
	assert.Equal(t, 1, r.Count())
	assert.Equal(t, 1, r.Matched())
}

func TestTryMatchIgnoresUnregistered(t *testing.T) {
	r := NewSession().IDs32()
	assert.False(t, r.TryMatch("nothing"))
	assert.False(t, r.TryMatch(""))
	assert.Equal(t, "42", r.Name(42))
}

func TestClear(t *testing.T) {
	s := NewSession()
	s.IDs32().Register(uint64(Hash32("a")))
	s.IDs64().Register(Hash64("b"))
	require.True(t, s.TryMatch("a"))
	require.True(t, s.TryMatch("b"))

	s.Clear()
	assert.Equal(t, 0, s.IDs32().Count())
	assert.Equal(t, 0, s.IDs64().Count())
	_, ok := s.IDs32().Lookup(uint64(Hash32("a")))
	assert.False(t, ok)
}

func TestRegistryWidthPanics(t *testing.T) {
	s := NewSession()
	assert.Same(t, s.IDs32(), s.Registry(Width32))
	assert.Same(t, s.IDs64(), s.Registry(Width64))
	assert.Panics(t, func() { s.Registry(Width(16)) })
}

func TestConcurrentMatch(t *testing.T) {
	r := NewSession().IDs32()
	names := []string{"alpha", "beta", "gamma", "delta"}
	for _, n := range names {
		r.Register(uint64(Hash32(n)))
	}
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if r.TryMatch(name) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(names[i%len(names)])
	}
	wg.Wait()
	assert.Equal(t, len(names), wins)
	assert.Empty(t, r.Unmatched())
}

func TestSnapshotSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.msgpack")

	src := NewSession()
	src.IDs32().Register(uint64(Hash32("Bank_Init")))
	src.IDs64().Register(Hash64("voice_001"))
	require.True(t, src.TryMatch("Bank_Init"))
	require.True(t, src.TryMatch("voice_001"))
	require.NoError(t, src.Save(path))

	dst := NewSession()
	dst.IDs32().Register(uint64(Hash32("Bank_Init")))
	n, err := dst.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "Bank_Init", dst.IDs32().Name(uint64(Hash32("Bank_Init"))))

	n, err = dst.Load(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Zero(t, n)
}
