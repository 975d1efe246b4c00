package digest

import (
	"encoding/binary"
	"encoding/hex"
	"hash"
	"io"
)

// Entry tags keep a file and a directory with the same name and digest
// from folding to the same state.
const (
	tagFile byte = 'f'
	tagDir  byte = 'd'
	tagSelf byte = 's'
)

// Accumulator folds the entries of one directory into a directory digest.
// Entries must be added in a deterministic order. An Accumulator is not safe
// for concurrent use and must not be used after Sum or Release.
type Accumulator struct {
	cache *Cache
	h     hash.Hash
	size  int64
}

// NewAccumulator starts a directory digest.
func (c *Cache) NewAccumulator() *Accumulator {
	return &Accumulator{cache: c, h: c.Get()}
}

// AddFile folds a file entry.
func (a *Accumulator) AddFile(name, digest string, size int64) {
	a.add(tagFile, name, digest)
	a.size += size
}

// AddDir folds an already digested subdirectory.
func (a *Accumulator) AddDir(name, digest string, size int64) {
	a.add(tagDir, name, digest)
	a.size += size
}

// Size returns the aggregate byte size folded so far.
func (a *Accumulator) Size() int64 {
	return a.size
}

// Sum finalizes the digest for the directory at relPath and releases the
// underlying engine.
func (a *Accumulator) Sum(relPath string) string {
	a.h.Write([]byte{tagSelf})
	_, _ = io.WriteString(a.h, relPath)

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(a.size))
	_, _ = a.h.Write(buf[:])

	sum := hex.EncodeToString(a.h.Sum(nil))
	a.Release()
	return sum
}

// Release returns the engine without producing a digest. It is safe to call
// more than once.
func (a *Accumulator) Release() {
	if a.h != nil {
		a.cache.Put(a.h)
		a.h = nil
	}
}

func (a *Accumulator) add(tag byte, name, digest string) {
	a.h.Write([]byte{tag})
	_, _ = io.WriteString(a.h, name)
	a.h.Write([]byte{0})
	_, _ = io.WriteString(a.h, digest)
	a.h.Write([]byte{0})
}
