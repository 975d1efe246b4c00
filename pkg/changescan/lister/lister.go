// Package lister records the directories of a tree, one list file per depth
// level, so later phases can process the tree level by level without
// walking it again.
package lister

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/jamesainslie/changescan/pkg/changescan/logging"
	"github.com/jamesainslie/changescan/pkg/changescan/statefile"
)

// Options configures a listing.
type Options struct {
	// Exclude contains patterns for directories to leave out, matched the
	// same way as Excluded.
	Exclude []string

	// Workers bounds traversal parallelism. Zero lets fastwalk decide.
	Workers int

	// Factory opens list files. Nil means statefile.OSFactory.
	Factory statefile.IOFactory
}

// Level returns the depth of a root-relative path; the root "." is 0.
func Level(relPath string) int {
	if relPath == "." || relPath == "" {
		return 0
	}
	return strings.Count(relPath, string(filepath.Separator)) + 1
}

// List walks root once and writes, for every depth level, the absolute
// paths of the directories at that level to outDir/dirs.<level>.list.
// Within a level, paths appear in depth-first order with siblings sorted by
// relative path. It returns the deepest level written.
//
// On error, list files already written are left for the caller to remove.
func List(ctx context.Context, root, outDir string, opts Options) (int, error) {
	factory := opts.Factory
	if factory == nil {
		factory = statefile.OSFactory{}
	}

	levels, err := collect(ctx, root, opts)
	if err != nil {
		return -1, err
	}

	return write(factory, root, outDir, levels)
}

// collect walks root and buckets relative directory paths by level.
func collect(ctx context.Context, root string, opts Options) ([][]string, error) {
	var (
		mu     sync.Mutex
		levels [][]string
	)

	conf := fastwalk.Config{
		Follow:     false,
		NumWorkers: opts.Workers,
	}

	err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel != "." && Excluded(path, opts.Exclude) {
			return fastwalk.SkipDir
		}

		level := Level(rel)
		mu.Lock()
		for len(levels) <= level {
			levels = append(levels, nil)
		}
		levels[level] = append(levels[level], rel)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", root, err)
	}

	if len(levels) == 0 || len(levels[0]) == 0 {
		if len(levels) == 0 {
			levels = append(levels, nil)
		}
		levels[0] = []string{"."}
	}

	for _, bucket := range levels {
		sort.Slice(bucket, func(i, j int) bool {
			return depthFirstLess(bucket[i], bucket[j])
		})
	}
	return levels, nil
}

// write emits one list file per level, opening each writer on first use.
func write(factory statefile.IOFactory, root, outDir string, levels [][]string) (deepest int, err error) {
	writers := make(map[int]*statefile.Writer)
	defer func() {
		for _, w := range writers {
			err = errors.Join(err, w.Close())
		}
	}()

	log := logging.Get("lister")
	deepest = -1

	for level, bucket := range levels {
		for _, rel := range bucket {
			w, ok := writers[level]
			if !ok {
				w, err = statefile.Create(factory, filepath.Join(outDir, statefile.LevelListName(level)))
				if err != nil {
					return -1, err
				}
				writers[level] = w
			}
			if err := w.WriteLine(filepath.Join(root, rel)); err != nil {
				return -1, err
			}
		}
		if len(bucket) > 0 {
			deepest = level
			log.Debug("listed level", "level", level, "dirs", len(bucket))
		}
	}

	return deepest, nil
}

// depthFirstLess orders relative paths component by component, which is the
// order a depth-first walk with sorted siblings visits them in.
func depthFirstLess(a, b string) bool {
	as := strings.Split(a, string(filepath.Separator))
	bs := strings.Split(b, string(filepath.Separator))
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] != bs[i] {
			return as[i] < bs[i]
		}
	}
	return len(as) < len(bs)
}

// Excluded reports whether path matches any pattern. A pattern matches when
// it equals path or is a directory prefix of it, or when it globs the base
// name or the full path.
func Excluded(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if matchesExclusionPattern(path, pattern) {
			return true
		}
	}
	return false
}

func matchesExclusionPattern(path, pattern string) bool {
	if pattern == "" {
		return false
	}

	if path == pattern || strings.HasPrefix(path, pattern+string(filepath.Separator)) {
		return true
	}

	if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
		return true
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	return false
}

// RemoveLists deletes every level list file in dir, ignoring failures.
func RemoveLists(dir string, deepest int) {
	for level := 0; level <= deepest; level++ {
		_ = os.Remove(filepath.Join(dir, statefile.LevelListName(level)))
	}
}
