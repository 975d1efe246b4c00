// Package cache persists data that outlives a single detection run in a
// Badger database: remembered file content digests and the run history.
package cache

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/adrg/xdg"
)

// Cache provides the memo and history operations on top of a Store.
type Cache struct {
	store *Store
}

// DefaultPath returns $XDG_CACHE_HOME/changescan/db.
func DefaultPath() string {
	return filepath.Join(xdg.CacheHome, "changescan", "db")
}

// Open opens or creates a cache in dir.
func Open(dir string) (*Cache, error) {
	store, err := OpenStore(dir)
	if err != nil {
		return nil, fmt.Errorf("opening cache at %s: %w", dir, err)
	}
	return &Cache{store: store}, nil
}

// OpenMemory opens a cache that is discarded on Close.
func OpenMemory() (*Cache, error) {
	store, err := OpenMemoryStore()
	if err != nil {
		return nil, err
	}
	return &Cache{store: store}, nil
}

// Close closes the cache.
func (c *Cache) Close() error {
	return c.store.Close()
}

// Memo returns the content memo of root for digests computed with
// algorithm. Records stay pending until Flush.
func (c *Cache) Memo(root, algorithm string) *Memo {
	return &Memo{
		store:     c.store,
		root:      root,
		algorithm: algorithm,
		pending:   make(map[string]MemoEntry),
	}
}

// RecordRun appends rec to the history of its root.
func (c *Cache) RecordRun(rec RunRecord) error {
	if rec.Root == "" {
		return errors.New("run record has no root")
	}
	return c.store.Put(HistoryKey(rec.Root, rec.Started), &rec)
}

// Runs returns up to limit run records for root, newest first. An empty
// root returns runs of every root; a non-positive limit returns all.
func (c *Cache) Runs(root string, limit int) ([]RunRecord, error) {
	// Keys of different roots interleave, so every root is read before
	// the limit applies.
	all := root == ""

	var runs []RunRecord
	err := c.store.Scan(HistoryPrefix(root), true, func(_, value []byte) (bool, error) {
		var rec RunRecord
		if err := decode(value, &rec); err != nil {
			return false, fmt.Errorf("decoding run record: %w", err)
		}
		runs = append(runs, rec)
		return all || limit <= 0 || len(runs) < limit, nil
	})
	if err != nil {
		return nil, err
	}

	if all {
		sort.SliceStable(runs, func(i, j int) bool { return runs[i].Started.After(runs[j].Started) })
		if limit > 0 && len(runs) > limit {
			runs = runs[:limit]
		}
	}
	return runs, nil
}

// Clear removes memo entries and history of root and returns how many
// entries were removed.
func (c *Cache) Clear(root string) (int, error) {
	memo, err := c.store.DeletePrefix(MemoPrefix(root))
	if err != nil {
		return 0, err
	}
	hist, err := c.store.DeletePrefix(HistoryPrefix(root))
	return memo + hist, err
}

// ClearAll removes everything.
func (c *Cache) ClearAll() (int, error) {
	return c.Clear("")
}
