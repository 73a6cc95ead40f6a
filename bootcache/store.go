package bootcache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/moffa90/go-dualboot/image"
)

// Store loads and saves the boot cache across warm resets.
type Store interface {
	// Load returns the retained cache. Lost or unreadable contents are
	// returned as a zero Cache, which classifies as a cold boot.
	Load() (Cache, error)

	// Save retains c for the next boot pass.
	Save(c Cache) error
}

// MemStore keeps the cache in memory. The zero value is a power-on cache.
type MemStore struct {
	c Cache
}

var _ Store = (*MemStore)(nil)

// Load implements Store.
func (m *MemStore) Load() (Cache, error) {
	return m.c, nil
}

// Save implements Store.
func (m *MemStore) Save(c Cache) error {
	m.c = c
	return nil
}

// PowerCycle discards the retained cache.
func (m *MemStore) PowerCycle() {
	m.c = Cache{}
}

// EncodedSize is the size of an encoded Cache.
//
//	[START_COUNT(4)][REASON(1)][SLOT(1)][RESERVED(2)][RESET_KEY(4)]
const EncodedSize = 12

// Encode serializes c little-endian.
func Encode(c Cache) []byte {
	buf := make([]byte, EncodedSize)
	binary.LittleEndian.PutUint32(buf[0:4], c.StartCount)
	buf[4] = byte(c.LastReason)
	buf[5] = byte(c.LastLoadedSlot)
	binary.LittleEndian.PutUint32(buf[8:12], c.ResetKey)
	return buf
}

// Decode parses an encoded cache.
func Decode(buf []byte) (Cache, error) {
	if len(buf) != EncodedSize {
		return Cache{}, fmt.Errorf("boot cache is %d bytes, want %d", len(buf), EncodedSize)
	}
	return Cache{
		StartCount:     binary.LittleEndian.Uint32(buf[0:4]),
		LastReason:     Reason(buf[4]),
		LastLoadedSlot: image.Slot(buf[5]),
		ResetKey:       binary.LittleEndian.Uint32(buf[8:12]),
	}, nil
}

// FileStore retains the cache in a file standing in for retained RAM.
// Removing the file is a power cycle.
type FileStore struct {
	Path string
}

var _ Store = (*FileStore)(nil)

// Load implements Store. A missing or malformed file is a power-on cache.
func (f *FileStore) Load() (Cache, error) {
	buf, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return Cache{}, nil
	}
	if err != nil {
		return Cache{}, err
	}
	c, err := Decode(buf)
	if err != nil {
		return Cache{}, nil
	}
	return c, nil
}

// Save implements Store.
func (f *FileStore) Save(c Cache) error {
	return os.WriteFile(f.Path, Encode(c), 0o644)
}

// PowerCycle removes the retained file.
func (f *FileStore) PowerCycle() error {
	err := os.Remove(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
