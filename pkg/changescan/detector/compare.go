package detector

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/changescan/pkg/changescan/dispatch"
	"github.com/jamesainslie/changescan/pkg/changescan/statefile"
)

// comparison diffs the old and new state of a run. Level state files are
// compared on the calling goroutine, root level first. Every created or
// changed directory, and every deleted one when deep deletes are on,
// queues a file-level comparison on the pool.
type comparison struct {
	run        *run
	ctx        context.Context
	dispatcher *dispatch.Dispatcher
	pool       errgroup.Group

	mu       sync.Mutex
	failures []error
}

func (r *run) newComparison(ctx context.Context, d *dispatch.Dispatcher) *comparison {
	c := &comparison{run: r, ctx: ctx, dispatcher: d}
	c.pool.SetLimit(r.opts.Workers)
	return c
}

// compareLevels runs the level comparisons the strategy asks for and
// returns once they have been issued. Call wait for the file-level work.
func (c *comparison) compareLevels() error {
	oldDeepest, err := statefile.ScanLevels(c.run.opts.IOFactory, c.run.oldDir)
	if err != nil {
		return fmt.Errorf("scanning old state: %w", err)
	}
	newDeepest, err := statefile.ScanLevels(c.run.opts.IOFactory, c.run.newDir)
	if err != nil {
		return fmt.Errorf("scanning new state: %w", err)
	}

	last := c.run.opts.Strategy.levels(max(oldDeepest, newDeepest))
	for level := 0; level <= last; level++ {
		name := statefile.LevelStateName(level)
		changed, err := statefile.CompareFiles(c.run.opts.IOFactory,
			filepath.Join(c.run.oldDir, name), filepath.Join(c.run.newDir, name), levelHandler{c})
		if err != nil {
			return fmt.Errorf("comparing level %d: %w", level, err)
		}
		c.run.log.Debug("level compared", "level", level, "changed", changed)
	}
	return nil
}

// wait blocks until every file-level comparison has finished and returns
// their collected failures.
func (c *comparison) wait() []error {
	_ = c.pool.Wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures
}

// compareFiles queues the file-level comparison of the directory relPath.
func (c *comparison) compareFiles(relPath string) {
	c.pool.Go(func() error {
		name := statefile.DirStateName(c.run.cache.String(relPath))
		_, err := statefile.CompareFiles(c.run.opts.IOFactory,
			filepath.Join(c.run.oldDir, name), filepath.Join(c.run.newDir, name),
			fileHandler{c: c, dir: filepath.Join(c.run.opts.Dir, relPath)})
		if err != nil {
			c.mu.Lock()
			c.failures = append(c.failures, fmt.Errorf("comparing files of %s: %w", relPath, err))
			c.mu.Unlock()
		}
		return nil
	})
}

func (c *comparison) send(path string, isDir bool, oldItem, newItem *statefile.Item) error {
	ev, err := dispatch.NewEvent(path, isDir, oldItem, newItem)
	if err != nil {
		return err
	}
	return c.dispatcher.Send(c.ctx, ev)
}

// levelHandler turns level state differences into directory events.
type levelHandler struct {
	c *comparison
}

func (h levelHandler) path(item statefile.Item) string {
	return filepath.Join(h.c.run.opts.Dir, item.Key)
}

func (h levelHandler) Created(item statefile.Item) error {
	if err := h.c.send(h.path(item), true, nil, &item); err != nil {
		return err
	}
	h.c.compareFiles(item.Key)
	return nil
}

func (h levelHandler) Changed(oldItem, newItem statefile.Item) error {
	if err := h.c.send(h.path(newItem), true, &oldItem, &newItem); err != nil {
		return err
	}
	h.c.compareFiles(newItem.Key)
	return nil
}

func (h levelHandler) Deleted(item statefile.Item) error {
	if err := h.c.send(h.path(item), true, &item, nil); err != nil {
		return err
	}
	if h.c.run.opts.DeepDeletes {
		h.c.compareFiles(item.Key)
	}
	return nil
}

// fileHandler turns one directory's file state differences into file
// events.
type fileHandler struct {
	c   *comparison
	dir string
}

func (h fileHandler) Created(item statefile.Item) error {
	return h.c.send(filepath.Join(h.dir, item.Key), false, nil, &item)
}

func (h fileHandler) Changed(oldItem, newItem statefile.Item) error {
	return h.c.send(filepath.Join(h.dir, newItem.Key), false, &oldItem, &newItem)
}

func (h fileHandler) Deleted(item statefile.Item) error {
	return h.c.send(filepath.Join(h.dir, item.Key), false, &item, nil)
}
