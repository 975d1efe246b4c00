// Package digest computes the file and directory digests that change
// detection compares between runs.
//
// Digests are lowercase hex strings. A file digest covers the file's size and
// modification time and, in MetadataAndContent mode, a hash of its bytes. A
// directory digest folds the names and digests of its files and immediate
// subdirectories together with its relative path and aggregate size.
package digest

import (
	"crypto/md5" //nolint:gosec // change detection, not security
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Supported digest algorithms.
const (
	AlgorithmXXHash = "xxhash"
	AlgorithmSHA256 = "sha256"
	AlgorithmMD5    = "md5"

	// DefaultAlgorithm is used when no algorithm is configured.
	DefaultAlgorithm = AlgorithmXXHash
)

const bufferSize = 32 * 1024

// ErrUnknownAlgorithm is returned for an unsupported algorithm name.
var ErrUnknownAlgorithm = errors.New("unknown digest algorithm")

// ErrUnknownMode is returned by ParseMode for an unsupported mode name.
var ErrUnknownMode = errors.New("unknown digest mode")

// Mode selects what a file digest covers.
type Mode int

const (
	// MetadataOnly hashes size and modification time.
	MetadataOnly Mode = iota
	// MetadataAndContent additionally hashes the file's bytes.
	MetadataAndContent
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case MetadataOnly:
		return "metadata"
	case MetadataAndContent:
		return "content"
	default:
		return "unknown"
	}
}

// ParseMode parses "metadata" or "content".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "metadata":
		return MetadataOnly, nil
	case "content":
		return MetadataAndContent, nil
	default:
		return MetadataOnly, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// ContentMemo remembers content hashes between runs so unchanged files
// need not be re-read. Implementations must be safe for concurrent use.
type ContentMemo interface {
	// Lookup returns a remembered content hash for path if its size and
	// modification time still match.
	Lookup(path string, size, mtime int64) (string, bool)

	// Record remembers the content hash computed for path.
	Record(path string, size, mtime int64, digest string)
}

// Cache hands out reusable hash engines for one algorithm. An engine
// obtained with Get belongs to the caller until it is returned with Put.
type Cache struct {
	algorithm string
	pool      sync.Pool
}

// NewCache returns a Cache for the named algorithm.
func NewCache(algorithm string) (*Cache, error) {
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}

	newHash, err := constructor(algorithm)
	if err != nil {
		return nil, err
	}

	c := &Cache{algorithm: algorithm}
	c.pool.New = func() any { return newHash() }
	return c, nil
}

func constructor(algorithm string) (func() hash.Hash, error) {
	switch algorithm {
	case AlgorithmXXHash:
		return func() hash.Hash { return xxhash.New() }, nil
	case AlgorithmSHA256:
		return sha256.New, nil
	case AlgorithmMD5:
		return md5.New, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, algorithm)
	}
}

// Algorithm returns the algorithm name engines are created for.
func (c *Cache) Algorithm() string {
	return c.algorithm
}

// Get returns a reset engine.
func (c *Cache) Get() hash.Hash {
	h, _ := c.pool.Get().(hash.Hash)
	h.Reset()
	return h
}

// Put returns an engine to the cache.
func (c *Cache) Put(h hash.Hash) {
	if h != nil {
		c.pool.Put(h)
	}
}

// String returns the digest of s.
func (c *Cache) String(s string) string {
	h := c.Get()
	defer c.Put(h)

	_, _ = io.WriteString(h, s)
	return hex.EncodeToString(h.Sum(nil))
}

// File returns the digest of the regular file at path described by info.
// memo may be nil.
func (c *Cache) File(path string, info fs.FileInfo, mode Mode, memo ContentMemo) (string, error) {
	h := c.Get()
	defer c.Put(h)

	writeMetadata(h, info)

	if mode == MetadataAndContent {
		content, err := c.content(path, info, memo)
		if err != nil {
			return "", err
		}
		_, _ = io.WriteString(h, content)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// content returns the content hash of path, consulting memo first.
func (c *Cache) content(path string, info fs.FileInfo, memo ContentMemo) (string, error) {
	size := info.Size()
	mtime := info.ModTime().UnixNano()

	if memo != nil {
		if d, ok := memo.Lookup(path, size, mtime); ok {
			return d, nil
		}
	}

	d, err := c.Content(path)
	if err != nil {
		return "", err
	}

	if memo != nil {
		memo.Record(path, size, mtime, d)
	}
	return d, nil
}

// Content returns the hash of the bytes of the file at path, streamed
// through a fixed buffer.
func (c *Cache) Content(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	h := c.Get()
	defer c.Put(h)

	buf := make([]byte, bufferSize)
	if _, err := io.CopyBuffer(h, file, buf); err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// writeMetadata feeds size and modification time into h.
func writeMetadata(h hash.Hash, info fs.FileInfo) {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(info.Size()))
	binary.BigEndian.PutUint64(buf[8:], uint64(info.ModTime().UnixNano()))
	_, _ = h.Write(buf[:])
}
