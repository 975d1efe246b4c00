// Package dispatch forwards change events from comparison workers to a
// ChangeProcessor through a bounded queue drained by a single consumer.
package dispatch

import (
	"errors"
	"sort"
	"sync"

	"github.com/jamesainslie/changescan/pkg/changescan/statefile"
)

// Kind classifies a StateChangeEvent.
type Kind int

const (
	KindCreated Kind = iota
	KindChanged
	KindDeleted
)

func (k Kind) String() string {
	switch k {
	case KindCreated:
		return "created"
	case KindChanged:
		return "changed"
	case KindDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// ErrEmptyEvent is returned by NewEvent when neither side of a change is set.
var ErrEmptyEvent = errors.New("event has neither old nor new item")

// StateChangeEvent describes one difference between the previous and the
// current state of a path. Old is nil for creations and New is nil for
// deletions.
type StateChangeEvent struct {
	Path  string
	IsDir bool
	Old   *statefile.Item
	New   *statefile.Item
}

// NewEvent builds an event for path. At least one of oldItem and newItem
// must be non-nil.
func NewEvent(path string, isDir bool, oldItem, newItem *statefile.Item) (StateChangeEvent, error) {
	if oldItem == nil && newItem == nil {
		return StateChangeEvent{}, ErrEmptyEvent
	}
	return StateChangeEvent{Path: path, IsDir: isDir, Old: oldItem, New: newItem}, nil
}

// Kind reports whether the event is a creation, a change or a deletion.
func (e StateChangeEvent) Kind() Kind {
	switch {
	case e.Old == nil:
		return KindCreated
	case e.New == nil:
		return KindDeleted
	default:
		return KindChanged
	}
}

// ChangeProcessor receives change notifications. Calls come from a single
// goroutine, but notifications for different directories may interleave.
type ChangeProcessor interface {
	Created(path string) error
	Changed(path string) error
	Deleted(path string) error
}

// EventProcessor is implemented by processors that want the whole event,
// including digests and whether the path is a directory. The dispatcher
// calls Process instead of the per-kind methods when it is available.
type EventProcessor interface {
	ChangeProcessor
	Process(ev StateChangeEvent) error
}

// Recorder is a ChangeProcessor that keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []StateChangeEvent
}

var _ EventProcessor = (*Recorder)(nil)

func (r *Recorder) Process(ev StateChangeEvent) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Created(path string) error {
	return r.Process(StateChangeEvent{Path: path, New: &statefile.Item{Key: path}})
}

func (r *Recorder) Changed(path string) error {
	return r.Process(StateChangeEvent{Path: path, Old: &statefile.Item{Key: path}, New: &statefile.Item{Key: path}})
}

func (r *Recorder) Deleted(path string) error {
	return r.Process(StateChangeEvent{Path: path, Old: &statefile.Item{Key: path}})
}

// Events returns the recorded events sorted by path, then kind.
func (r *Recorder) Events() []StateChangeEvent {
	r.mu.Lock()
	out := make([]StateChangeEvent, len(r.events))
	copy(out, r.events)
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Kind() < out[j].Kind()
	})
	return out
}

// Paths returns the sorted paths of recorded events of the given kind.
func (r *Recorder) Paths(kind Kind) []string {
	var out []string
	for _, ev := range r.Events() {
		if ev.Kind() == kind {
			out = append(out, ev.Path)
		}
	}
	return out
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Reset discards recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
