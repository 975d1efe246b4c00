package cache

import (
	"fmt"
	"os"
	"path/filepath"
)

// PruneResult reports what Prune examined and removed.
type PruneResult struct {
	Checked int
	Stale   int
	Missing int
}

// Removed returns the number of deleted entries.
func (r PruneResult) Removed() int {
	return r.Stale + r.Missing
}

// Prune checks every memo entry of root against the filesystem and removes
// entries whose file is gone or whose size or mtime no longer match. An
// empty root prunes every root.
func (c *Cache) Prune(root string) (PruneResult, error) {
	var (
		result PruneResult
		doomed [][]byte
	)

	err := c.store.Scan(MemoPrefix(root), false, func(key, value []byte) (bool, error) {
		entryRoot, _, rel, ok := ParseMemoKey(key)
		if !ok {
			return true, nil
		}
		var entry MemoEntry
		if err := decode(value, &entry); err != nil {
			return false, fmt.Errorf("decoding memo entry: %w", err)
		}
		result.Checked++

		info, err := os.Stat(filepath.Join(entryRoot, rel))
		switch {
		case os.IsNotExist(err):
			result.Missing++
			doomed = append(doomed, key)
		case err != nil:
			return false, fmt.Errorf("stat %s: %w", rel, err)
		case info.Size() != entry.Size || info.ModTime().UnixNano() != entry.Mtime:
			result.Stale++
			doomed = append(doomed, key)
		}
		return true, nil
	})
	if err != nil {
		return PruneResult{}, err
	}

	if len(doomed) > 0 {
		if err := c.store.Delete(doomed...); err != nil {
			return PruneResult{}, err
		}
	}
	return result, nil
}
