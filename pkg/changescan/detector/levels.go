package detector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/changescan/pkg/changescan/statefile"
)

// levelStats accumulates totals over the digest phase.
type levelStats struct {
	dirs  int
	files int
	bytes int64
}

// digestLevels digests every listed directory, deepest level first. Each
// level is a barrier: all of its directories finish before the next,
// shallower level starts, since parents fold in their children's digests.
func (r *run) digestLevels(ctx context.Context, deepest int) (levelStats, error) {
	var (
		stats    levelStats
		previous childIndex
	)

	for level := deepest; level >= 0; level-- {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		states, err := r.digestLevel(level, previous)
		if err != nil {
			return stats, err
		}
		if states == nil {
			previous = nil
			continue
		}

		for _, s := range states {
			stats.dirs++
			stats.files += len(s.Files)
		}
		if level == 0 && len(states) == 1 {
			stats.bytes = states[0].Size
		}
		previous = indexByParent(states)
		r.log.Debug("level digested", "level", level, "dirs", len(states))
	}

	return stats, nil
}

// digestLevel processes one level and writes its level state file. It
// returns nil states when the level has no list file. The list file is
// removed on every path.
func (r *run) digestLevel(level int, previous childIndex) ([]*DirectoryState, error) {
	listPath := filepath.Join(r.newDir, statefile.LevelListName(level))
	defer func() { _ = os.Remove(listPath) }()

	paths, err := statefile.ReadLines(r.opts.IOFactory, listPath)
	if err != nil {
		return nil, fmt.Errorf("reading level %d list: %w", level, err)
	}
	if len(paths) == 0 {
		return nil, nil
	}

	states := make([]*DirectoryState, len(paths))
	for i, path := range paths {
		if states[i], err = newDirectoryState(r.opts.Dir, path, r.cache); err != nil {
			return nil, err
		}
	}

	// Each task owns one slot of results.
	results := make([]dirResult, len(states))
	var g errgroup.Group
	g.SetLimit(r.opts.Workers)
	for i, s := range states {
		g.Go(func() error {
			results[i] = r.calc.run(s, previous[s.RelPath])
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return less(results[i].state, results[j].state) })

	var failures []error
	for _, res := range results {
		if res.err != nil {
			failures = append(failures, res.err)
		}
	}
	if len(failures) > 0 {
		return nil, fmt.Errorf("level %d: %d of %d directories failed: %w",
			level, len(failures), len(results), errors.Join(failures...))
	}

	items := make([]statefile.Item, len(results))
	for i, res := range results {
		items[i] = statefile.Item{Key: res.state.RelPath, Digest: res.state.Digest}
		states[i] = res.state
	}
	if err := statefile.WriteAll(r.opts.IOFactory, filepath.Join(r.newDir, statefile.LevelStateName(level)), items); err != nil {
		return nil, fmt.Errorf("writing level %d state: %w", level, err)
	}
	return states, nil
}
