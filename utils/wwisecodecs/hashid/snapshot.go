package hashid

import (
	"fmt"
	"os"

	"github.com/shamaton/msgpack/v2"
)

type snapshot struct {
	Names32 map[uint64]string `msgpack:"names32"`
	Names64 map[uint64]string `msgpack:"names64"`
}

// MarshalNames encodes every resolved name of both registries.
func (s *Session) MarshalNames() ([]byte, error) {
	data, err := msgpack.Marshal(snapshot{
		Names32: s.r32.snapshot(),
		Names64: s.r64.snapshot(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode name snapshot: %w", err)
	}
	return data, nil
}

// UnmarshalNames resolves registered values from an encoded snapshot.
// Values not registered in this session are ignored. It returns the number
// of new mappings.
func (s *Session) UnmarshalNames(data []byte) (int, error) {
	var snap snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return 0, fmt.Errorf("failed to decode name snapshot: %w", err)
	}
	n := 0
	for _, name := range snap.Names32 {
		if s.r32.TryMatch(name) {
			n++
		}
	}
	for _, name := range snap.Names64 {
		if s.r64.TryMatch(name) {
			n++
		}
	}
	return n, nil
}

// Save writes the name snapshot to path.
func (s *Session) Save(path string) error {
	data, err := s.MarshalNames()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write name snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot written by Save. A missing file is not an error.
func (s *Session) Load(path string) (int, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read name snapshot: %w", err)
	}
	return s.UnmarshalNames(data)
}
