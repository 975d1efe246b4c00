package cache

import (
	"errors"
	"path/filepath"
	"sync"

	"github.com/jamesainslie/changescan/pkg/changescan/digest"
	"github.com/jamesainslie/changescan/pkg/changescan/logging"
)

// Memo remembers content digests of the files under one root. Lookups read
// the store directly; records are buffered and written by Flush, so a run
// that fails leaves the memo as it was.
type Memo struct {
	store     *Store
	root      string
	algorithm string

	mu      sync.Mutex
	pending map[string]MemoEntry
}

var _ digest.ContentMemo = (*Memo)(nil)

func (m *Memo) rel(path string) string {
	rel, err := filepath.Rel(m.root, path)
	if err != nil {
		return path
	}
	return rel
}

// Lookup returns the remembered digest of path when size and mtime match.
func (m *Memo) Lookup(path string, size, mtime int64) (string, bool) {
	var entry MemoEntry
	err := m.store.Get(MemoKey(m.root, m.algorithm, m.rel(path)), &entry)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logging.Get("cache").Warn("memo lookup failed", "path", path, "error", err)
		}
		return "", false
	}
	if entry.Size != size || entry.Mtime != mtime || entry.Digest == "" {
		return "", false
	}
	return entry.Digest, true
}

// Record buffers the digest of path until Flush.
func (m *Memo) Record(path string, size, mtime int64, digest string) {
	m.mu.Lock()
	m.pending[m.rel(path)] = MemoEntry{Size: size, Mtime: mtime, Digest: digest}
	m.mu.Unlock()
}

// Pending returns the number of buffered records.
func (m *Memo) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Flush writes buffered records in one batch.
func (m *Memo) Flush() error {
	m.mu.Lock()
	pending := m.pending
	m.pending = make(map[string]MemoEntry)
	m.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	values := make(map[string]any, len(pending))
	for rel, entry := range pending {
		entry := entry
		values[string(MemoKey(m.root, m.algorithm, rel))] = &entry
	}
	if err := m.store.PutBatch(values); err != nil {
		return err
	}
	logging.Get("cache").Debug("memo flushed", "root", m.root, "entries", len(values))
	return nil
}

// Discard drops buffered records.
func (m *Memo) Discard() {
	m.mu.Lock()
	m.pending = make(map[string]MemoEntry)
	m.mu.Unlock()
}
