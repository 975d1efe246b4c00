// Package detector finds the files and directories under a tree that were
// created, changed or deleted since the previous run.
//
// A run lists the tree level by level, digests every directory bottom-up
// on a worker pool, compares the new per-level state against the state
// kept from the previous run top-down, and forwards each difference to a
// dispatch.ChangeProcessor. When everything succeeds the new state
// replaces the old one; otherwise the old state is left untouched and the
// next run reports the same changes again.
//
// State for one scanned directory lives under
//
//	<StateDir>/<digest of Dir relative to ProjectDir>/{old,new}/
//
// holding dirs.<level>.state files (one entry per directory of a level)
// and dir.<path digest>.state files (one entry per file of a directory).
package detector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/changescan/pkg/changescan/cache"
	"github.com/jamesainslie/changescan/pkg/changescan/digest"
	"github.com/jamesainslie/changescan/pkg/changescan/dispatch"
	"github.com/jamesainslie/changescan/pkg/changescan/lister"
	"github.com/jamesainslie/changescan/pkg/changescan/lock"
	"github.com/jamesainslie/changescan/pkg/changescan/logging"
)

// State subdirectory names.
const (
	OldStateDir = "old"
	NewStateDir = "new"
)

// Run phases reported to a TimingCollector and used as RunError.Op.
const (
	PhaseLock     = "lock"
	PhasePrepare  = "prepare"
	PhaseList     = "list"
	PhaseDigest   = "digest"
	PhaseCompare  = "compare"
	PhaseDispatch = "dispatch"
	PhasePromote  = "promote"
	PhaseTotal    = "total"
)

// RunError is the error returned by Detect. Op names the phase that
// failed.
type RunError struct {
	Op  string
	Err error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("change detection failed during %s: %v", e.Op, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Result summarises a successful run.
type Result struct {
	RunID    string
	Root     string
	Started  time.Time
	Duration time.Duration

	// Changed reports whether any event was dispatched.
	Changed  bool
	Created  int
	Modified int
	Deleted  int

	// Levels is the number of tree levels digested in this run.
	Levels int
	Dirs   int
	Files  int
	Bytes  int64
}

// Changes returns the number of dispatched events.
func (r *Result) Changes() int {
	return r.Created + r.Modified + r.Deleted
}

// Detector runs change detection for one directory. A Detector may be
// reused for consecutive runs; concurrent runs against the same state are
// rejected with lock.ErrLocked.
type Detector struct {
	opts      Options
	cache     *digest.Cache
	statePath string
}

// New validates opts and returns a Detector.
func New(opts Options) (*Detector, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	c, err := digest.NewCache(opts.Algorithm)
	if err != nil {
		return nil, err
	}
	path, err := statePath(opts, c)
	if err != nil {
		return nil, err
	}
	return &Detector{opts: opts, cache: c, statePath: path}, nil
}

// Options returns the validated options.
func (d *Detector) Options() Options {
	return d.opts
}

// StatePath returns the directory holding this detector's old and new
// state.
func (d *Detector) StatePath() string {
	return d.statePath
}

// StatePath returns the state directory that a Detector built from opts
// would use.
func StatePath(opts Options) (string, error) {
	if err := opts.Validate(); err != nil {
		return "", err
	}
	c, err := digest.NewCache(opts.Algorithm)
	if err != nil {
		return "", err
	}
	return statePath(opts, c)
}

func statePath(opts Options, c *digest.Cache) (string, error) {
	rel, err := filepath.Rel(opts.ProjectDir, opts.Dir)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidOption, err)
	}
	return filepath.Join(opts.StateDir, c.String(rel)), nil
}

// Clear removes all state kept for the directory described by opts, so the
// next run reports every file as created.
func Clear(opts Options) error {
	path, err := StatePath(opts)
	if err != nil {
		return err
	}
	l, err := lock.Acquire(path)
	if err != nil {
		return err
	}
	defer func() { _ = l.Release() }()

	for _, name := range []string{OldStateDir, NewStateDir} {
		if err := os.RemoveAll(filepath.Join(path, name)); err != nil {
			return fmt.Errorf("removing %s state: %w", name, err)
		}
	}
	return nil
}

// run carries the state of one Detect call.
type run struct {
	id     string
	opts   Options
	cache  *digest.Cache
	calc   *calculator
	oldDir string
	newDir string
	log    *logging.Logger
}

// Detect performs one run, reporting each change to processor.
func (d *Detector) Detect(ctx context.Context, processor dispatch.ChangeProcessor) (*Result, error) {
	r := &run{
		id:     uuid.NewString(),
		opts:   d.opts,
		cache:  d.cache,
		oldDir: filepath.Join(d.statePath, OldStateDir),
		newDir: filepath.Join(d.statePath, NewStateDir),
	}
	r.log = logging.Get("detector").With("run", r.id)
	r.calc = &calculator{
		cache:   d.cache,
		mode:    d.opts.Mode,
		exclude: d.opts.exclusions(),
		factory: d.opts.IOFactory,
		outDir:  r.newDir,
	}
	if d.opts.Memo != nil && d.opts.Mode == digest.MetadataAndContent {
		r.calc.memo = d.opts.Memo
	}

	result, err := r.execute(ctx, processor)
	if err != nil {
		if d.opts.Memo != nil {
			d.opts.Memo.Discard()
		}
		r.log.Error("run failed", "error", err)
		return nil, err
	}

	if d.opts.Memo != nil {
		if err := d.opts.Memo.Flush(); err != nil {
			r.log.Warn("content memo not saved", "error", err)
		}
	}
	if d.opts.History != nil {
		if err := d.opts.History.RecordRun(r.record(result)); err != nil {
			r.log.Warn("run history not saved", "error", err)
		}
	}
	return result, nil
}

func (r *run) execute(ctx context.Context, processor dispatch.ChangeProcessor) (*Result, error) {
	started := time.Now()
	result := &Result{RunID: r.id, Root: r.opts.Dir, Started: started}

	l, err := lock.Acquire(filepath.Dir(r.newDir))
	if err != nil {
		return nil, &RunError{Op: PhaseLock, Err: err}
	}
	defer func() { _ = l.Release() }()

	r.log.Info("run started", "root", r.opts.Dir, "mode", r.opts.Mode, "strategy", r.opts.Strategy)

	if err := r.phase(PhasePrepare, func() error {
		if err := os.RemoveAll(r.newDir); err != nil {
			return err
		}
		return os.MkdirAll(r.newDir, 0o755)
	}); err != nil {
		return nil, err
	}

	var deepest int
	if err := r.phase(PhaseList, func() error {
		deepest, err = lister.List(ctx, r.opts.Dir, r.newDir, lister.Options{
			Exclude: r.calc.exclude,
			Workers: r.opts.Workers,
			Factory: r.opts.IOFactory,
		})
		if err != nil {
			// Discard partial list files.
			_ = os.RemoveAll(r.newDir)
		}
		return err
	}); err != nil {
		return nil, err
	}
	result.Levels = deepest + 1

	var stats levelStats
	if err := r.phase(PhaseDigest, func() error {
		stats, err = r.digestLevels(ctx, deepest)
		if err != nil {
			lister.RemoveLists(r.newDir, deepest)
		}
		return err
	}); err != nil {
		return nil, err
	}
	result.Dirs, result.Files, result.Bytes = stats.dirs, stats.files, stats.bytes

	dispatcher := dispatch.New(processor, r.opts.QueueSize, r.opts.PollTimeout)
	dispatcher.Start()
	cmp := r.newComparison(ctx, dispatcher)

	levelErr := r.phase(PhaseCompare, cmp.compareLevels)
	failures := cmp.wait()
	dispatchErr := dispatcher.Wait()

	if levelErr != nil {
		return nil, levelErr
	}
	if dispatchErr != nil {
		return nil, &RunError{Op: PhaseDispatch, Err: dispatchErr}
	}
	if len(failures) > 0 {
		return nil, &RunError{Op: PhaseCompare, Err: errors.Join(failures...)}
	}

	if err := r.phase(PhasePromote, r.promote); err != nil {
		return nil, err
	}

	stat := dispatcher.Stats()
	result.Created, result.Modified, result.Deleted = stat.Created, stat.Changed, stat.Deleted
	result.Changed = stat.Total() > 0
	result.Duration = time.Since(started)
	r.time(PhaseTotal, result.Duration)

	r.log.Info("run finished",
		"changes", result.Changes(),
		"dirs", result.Dirs,
		"files", result.Files,
		"duration", result.Duration)
	return result, nil
}

// phase runs fn, reports its duration and wraps its error in a RunError.
func (r *run) phase(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	r.time(name, time.Since(start))
	if err != nil {
		return &RunError{Op: name, Err: err}
	}
	return nil
}

func (r *run) time(phase string, d time.Duration) {
	if r.opts.Timings != nil {
		r.opts.Timings.Record(phase, d)
	}
}

// promote replaces the old state with the new one. If removing the old
// state succeeds but the rename fails, no state survives and the next run
// reports everything as created.
func (r *run) promote() error {
	if err := os.RemoveAll(r.oldDir); err != nil {
		return fmt.Errorf("removing old state: %w", err)
	}
	if err := os.Rename(r.newDir, r.oldDir); err != nil {
		return fmt.Errorf("promoting new state: %w", err)
	}
	return nil
}

func (r *run) record(res *Result) cache.RunRecord {
	return cache.RunRecord{
		RunID:    res.RunID,
		Root:     res.Root,
		Mode:     r.opts.Mode.String(),
		Strategy: r.opts.Strategy.String(),
		Started:  res.Started,
		Duration: res.Duration,
		Created:  res.Created,
		Changed:  res.Modified,
		Deleted:  res.Deleted,
		Dirs:     res.Dirs,
		Files:    res.Files,
		Bytes:    res.Bytes,
	}
}
