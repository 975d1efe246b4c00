package detector

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jamesainslie/changescan/pkg/changescan/digest"
	"github.com/jamesainslie/changescan/pkg/changescan/lister"
	"github.com/jamesainslie/changescan/pkg/changescan/statefile"
)

// calculator digests single directories. One value is shared by every
// worker of a run; it holds no per-directory state.
type calculator struct {
	cache   *digest.Cache
	mode    digest.Mode
	memo    digest.ContentMemo
	exclude []string
	factory statefile.IOFactory
	outDir  string
}

// run digests dir, folding in the already digested children, and writes
// the directory's file state. Failures are returned in the result, never
// raised.
func (c *calculator) run(dir *DirectoryState, children []*DirectoryState) dirResult {
	if err := c.digest(dir, children); err != nil {
		return dirResult{state: dir, err: fmt.Errorf("digesting %s: %w", dir.Path, err)}
	}
	return dirResult{state: dir}
}

func (c *calculator) digest(dir *DirectoryState, children []*DirectoryState) (err error) {
	entries, err := os.ReadDir(dir.Path)
	if err != nil {
		return err
	}

	w, err := statefile.Create(c.factory, filepath.Join(c.outDir, statefile.DirStateName(dir.PathDigest)))
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, w.Close())
	}()

	acc := c.cache.NewAccumulator()
	defer acc.Release()

	dir.Files = make(map[string]string)

	// ReadDir returns entries sorted by filename.
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir.Path, entry.Name())
		if lister.Excluded(path, c.exclude) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}
		d, err := c.cache.File(path, info, c.mode, c.memo)
		if err != nil {
			return err
		}

		if err := w.Write(statefile.Item{Key: entry.Name(), Digest: d}); err != nil {
			return err
		}
		dir.Files[entry.Name()] = d
		acc.AddFile(entry.Name(), d, info.Size())
	}

	for _, child := range children {
		if child.Digest == "" {
			return fmt.Errorf("child %s has no digest", child.RelPath)
		}
		acc.AddDir(filepath.Base(child.RelPath), child.Digest, child.Size)
	}

	dir.Size = acc.Size()
	dir.Digest = acc.Sum(dir.RelPath)
	return nil
}
