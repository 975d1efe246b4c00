package output

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/jamesainslie/changescan/pkg/changescan/dispatch"
	"github.com/jamesainslie/changescan/pkg/changescan/statefile"
)

// Stream is a change processor that writes each change as soon as it is
// dispatched, so memory use does not grow with the number of changes.
// Lines appear in dispatch order, not sorted.
type Stream struct {
	mu  sync.Mutex
	w   io.Writer
	f   LineFormatter
	buf bytes.Buffer
	n   int
}

// NewStream returns a Stream writing to w with f.
func NewStream(w io.Writer, f LineFormatter) *Stream {
	return &Stream{w: w, f: f}
}

var _ dispatch.EventProcessor = (*Stream)(nil)

func (s *Stream) Process(ev dispatch.StateChangeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf.Reset()
	if err := s.f.FormatChange(&s.buf, changeOf(ev)); err != nil {
		return err
	}
	if _, err := s.buf.WriteTo(s.w); err != nil {
		return fmt.Errorf("writing change: %w", err)
	}
	s.n++
	return nil
}

func (s *Stream) Created(path string) error {
	return s.Process(dispatch.StateChangeEvent{Path: path, New: &statefile.Item{Key: path}})
}

func (s *Stream) Changed(path string) error {
	return s.Process(dispatch.StateChangeEvent{Path: path, Old: &statefile.Item{Key: path}, New: &statefile.Item{Key: path}})
}

func (s *Stream) Deleted(path string) error {
	return s.Process(dispatch.StateChangeEvent{Path: path, Old: &statefile.Item{Key: path}})
}

// Written returns the number of changes written so far.
func (s *Stream) Written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}
