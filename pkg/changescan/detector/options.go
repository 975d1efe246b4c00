package detector

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jamesainslie/changescan/pkg/changescan/cache"
	"github.com/jamesainslie/changescan/pkg/changescan/digest"
	"github.com/jamesainslie/changescan/pkg/changescan/statefile"
)

// Defaults applied by DefaultOptions and, for unset fields, by Validate.
const (
	DefaultQueueSize   = 50
	DefaultPollTimeout = 100 * time.Millisecond
	DefaultWorkers     = 4
	DefaultStateDir    = ".changescan"
)

var (
	// ErrInvalidOption reports an option outside its allowed range.
	ErrInvalidOption = errors.New("invalid option")

	// ErrNotDirectory reports a configured path that is missing or not a
	// directory.
	ErrNotDirectory = errors.New("not a directory")
)

// Strategy selects how deep the comparison phase goes.
type Strategy int

const (
	// AllLevels compares every level, root first.
	AllLevels Strategy = iota

	// TopLevelOnly compares level 0 and stops. It answers whether anything
	// under the root changed.
	TopLevelOnly
)

func (s Strategy) String() string {
	switch s {
	case AllLevels:
		return "all"
	case TopLevelOnly:
		return "top"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy accepts "all" and "top" (and their long forms). The empty
// string means AllLevels.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(s) {
	case "", "all", "all-levels":
		return AllLevels, nil
	case "top", "top-level", "top-level-only":
		return TopLevelOnly, nil
	default:
		return AllLevels, fmt.Errorf("%w: unknown strategy %q", ErrInvalidOption, s)
	}
}

// levels returns the deepest level to compare given the deepest level
// present in either the old or the new state.
func (s Strategy) levels(deepest int) int {
	if s == TopLevelOnly && deepest > 0 {
		return 0
	}
	return deepest
}

// TimingCollector receives the duration of each run phase.
type TimingCollector interface {
	Record(phase string, d time.Duration)
}

// Memo is a content digest memo whose records are committed only when a
// run succeeds.
type Memo interface {
	digest.ContentMemo
	Flush() error
	Discard()
}

// HistoryRecorder stores a summary of each successful run.
type HistoryRecorder interface {
	RecordRun(rec cache.RunRecord) error
}

// Options configures a Detector.
type Options struct {
	// ProjectDir anchors the state layout: state for Dir lives under a
	// digest of Dir relative to ProjectDir. Empty means Dir.
	ProjectDir string

	// Dir is the tree to scan.
	Dir string

	// StateDir holds per-root old and new state. Relative paths resolve
	// against ProjectDir. Empty means ProjectDir/.changescan.
	StateDir string

	// QueueSize bounds the number of undelivered change events.
	QueueSize int

	// PollTimeout is how often a producer blocked on a full queue
	// re-checks for cancellation.
	PollTimeout time.Duration

	Mode      digest.Mode
	Strategy  Strategy
	Algorithm string

	// Workers is the size of the digest and comparison pools.
	Workers int

	// Exclude holds patterns for paths to skip. The state directory is
	// always excluded when it lies inside Dir.
	Exclude []string

	// DeepDeletes also compares the files of deleted directories so each
	// file is reported deleted, not only the directory.
	DeepDeletes bool

	// Memo is optional and only consulted in content mode.
	Memo Memo

	// IOFactory opens state files. Nil means statefile.OSFactory.
	IOFactory statefile.IOFactory

	// Timings is optional.
	Timings TimingCollector

	// History is optional.
	History HistoryRecorder
}

// DefaultOptions returns options for scanning dir with default settings.
func DefaultOptions(dir string) Options {
	return Options{
		Dir:         dir,
		QueueSize:   DefaultQueueSize,
		PollTimeout: DefaultPollTimeout,
		Mode:        digest.MetadataOnly,
		Strategy:    AllLevels,
		Algorithm:   digest.DefaultAlgorithm,
		Workers:     DefaultWorkers,
	}
}

// Validate checks the options, resolves paths to absolute form and fills
// unset defaults. Queue size and poll timeout must be set explicitly.
func (o *Options) Validate() error {
	if o.Dir == "" {
		return fmt.Errorf("%w: directory to scan is required", ErrInvalidOption)
	}
	dir, err := absDir(o.Dir)
	if err != nil {
		return err
	}
	o.Dir = dir

	if o.ProjectDir == "" {
		o.ProjectDir = o.Dir
	} else if o.ProjectDir, err = absDir(o.ProjectDir); err != nil {
		return err
	}

	switch {
	case o.StateDir == "":
		o.StateDir = filepath.Join(o.ProjectDir, DefaultStateDir)
	case !filepath.IsAbs(o.StateDir):
		o.StateDir = filepath.Join(o.ProjectDir, o.StateDir)
	default:
		o.StateDir = filepath.Clean(o.StateDir)
	}

	if o.StateDir == o.Dir {
		return fmt.Errorf("%w: state directory must not be the scanned directory", ErrInvalidOption)
	}

	if o.QueueSize < 1 {
		return fmt.Errorf("%w: queue size must be at least 1, got %d", ErrInvalidOption, o.QueueSize)
	}
	if o.PollTimeout <= 0 {
		return fmt.Errorf("%w: poll timeout must be positive, got %s", ErrInvalidOption, o.PollTimeout)
	}
	if o.Workers < 1 {
		o.Workers = DefaultWorkers
	}
	if o.Algorithm == "" {
		o.Algorithm = digest.DefaultAlgorithm
	}
	if _, err := digest.NewCache(o.Algorithm); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOption, err)
	}
	if o.Mode != digest.MetadataOnly && o.Mode != digest.MetadataAndContent {
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidOption, int(o.Mode))
	}
	if o.Strategy != AllLevels && o.Strategy != TopLevelOnly {
		return fmt.Errorf("%w: unknown strategy %s", ErrInvalidOption, o.Strategy)
	}
	if o.IOFactory == nil {
		o.IOFactory = statefile.OSFactory{}
	}
	return nil
}

func absDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrNotDirectory, abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotDirectory, abs)
	}
	return abs, nil
}

// exclusions returns the configured patterns plus the state directory when
// it lies inside the scanned tree.
func (o *Options) exclusions() []string {
	patterns := append([]string(nil), o.Exclude...)
	if rel, err := filepath.Rel(o.Dir, o.StateDir); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
		patterns = append(patterns, o.StateDir)
	}
	return patterns
}
