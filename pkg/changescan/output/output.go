// Package output renders change reports and run history as plain text,
// JSON, YAML or styled terminal output.
//
// Formatters are looked up by name:
//
//	f, err := output.Get("json")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := f.Format(&buf, report); err != nil {
//	    return err
//	}
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/changescan/pkg/changescan/cache"
	"github.com/jamesainslie/changescan/pkg/changescan/detector"
	"github.com/jamesainslie/changescan/pkg/changescan/dispatch"
)

// Change is one reported difference.
type Change struct {
	Kind      string `json:"kind" yaml:"kind"`
	Path      string `json:"path" yaml:"path"`
	IsDir     bool   `json:"is_dir" yaml:"is_dir"`
	OldDigest string `json:"old_digest,omitempty" yaml:"old_digest,omitempty"`
	NewDigest string `json:"new_digest,omitempty" yaml:"new_digest,omitempty"`
}

// Stats summarises a run for display.
type Stats struct {
	Created  int           `json:"created" yaml:"created"`
	Changed  int           `json:"changed" yaml:"changed"`
	Deleted  int           `json:"deleted" yaml:"deleted"`
	Levels   int           `json:"levels" yaml:"levels"`
	Dirs     int           `json:"dirs" yaml:"dirs"`
	Files    int           `json:"files" yaml:"files"`
	Bytes    int64         `json:"bytes" yaml:"bytes"`
	Duration time.Duration `json:"-" yaml:"-"`
}

// Report is everything a formatter needs to describe one run.
type Report struct {
	RunID   string    `json:"run_id" yaml:"run_id"`
	Root    string    `json:"root" yaml:"root"`
	Started time.Time `json:"started" yaml:"started"`
	Changes []Change  `json:"changes" yaml:"changes"`
	Stats   Stats     `json:"stats" yaml:"stats"`
}

// NewReport builds a report from a run result and the events its
// processor recorded. Changes are sorted by path.
func NewReport(res *detector.Result, events []dispatch.StateChangeEvent) *Report {
	r := &Report{
		RunID:   res.RunID,
		Root:    res.Root,
		Started: res.Started,
		Changes: make([]Change, 0, len(events)),
		Stats: Stats{
			Created:  res.Created,
			Changed:  res.Modified,
			Deleted:  res.Deleted,
			Levels:   res.Levels,
			Dirs:     res.Dirs,
			Files:    res.Files,
			Bytes:    res.Bytes,
			Duration: res.Duration,
		},
	}
	for _, ev := range events {
		r.Changes = append(r.Changes, changeOf(ev))
	}
	sort.SliceStable(r.Changes, func(i, j int) bool { return r.Changes[i].Path < r.Changes[j].Path })
	return r
}

func changeOf(ev dispatch.StateChangeEvent) Change {
	c := Change{Kind: ev.Kind().String(), Path: ev.Path, IsDir: ev.IsDir}
	if ev.Old != nil {
		c.OldDigest = ev.Old.Digest
	}
	if ev.New != nil {
		c.NewDigest = ev.New.Digest
	}
	return c
}

// Total returns the number of changes.
func (s Stats) Total() int {
	return s.Created + s.Changed + s.Deleted
}

// Formatter renders reports and run history.
type Formatter interface {
	Format(w *bytes.Buffer, r *Report) error
	FormatHistory(w *bytes.Buffer, runs []cache.RunRecord) error
}

// LineFormatter is a Formatter whose report is one self-contained line per
// change. Such reports can be written while a run is still in progress.
type LineFormatter interface {
	Formatter
	FormatChange(w *bytes.Buffer, c Change) error
}

// FormatterFactory creates a Formatter.
type FormatterFactory func() Formatter

// Registry maps names to formatter factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]FormatterFactory)}
}

// Register adds or replaces a formatter.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns the sorted registered names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in formatters.
var DefaultRegistry = NewRegistry()

func Register(name string, factory FormatterFactory) { DefaultRegistry.Register(name, factory) }
func Get(name string) (Formatter, error)             { return DefaultRegistry.Get(name) }
func Available() []string                             { return DefaultRegistry.Available() }

// kindSymbol is the one-character marker used by the text formatters.
func kindSymbol(kind string) string {
	switch kind {
	case "created":
		return "+"
	case "deleted":
		return "-"
	default:
		return "~"
	}
}

// displayPath marks directories with a trailing slash.
func displayPath(c Change) string {
	if c.IsDir {
		return c.Path + "/"
	}
	return c.Path
}
