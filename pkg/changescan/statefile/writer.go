package statefile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// Writer appends items to a state file.
type Writer struct {
	path string
	wc   io.WriteCloser
	buf  *bufio.Writer
}

// Create opens a new state file at path.
func Create(factory IOFactory, path string) (*Writer, error) {
	wc, err := factory.CreateWriter(path)
	if err != nil {
		return nil, fmt.Errorf("creating state file %s: %w", path, err)
	}
	return &Writer{path: path, wc: wc, buf: bufio.NewWriter(wc)}, nil
}

// Write appends one item.
func (w *Writer) Write(item Item) error {
	if _, err := NewItem(item.Key, item.Digest); err != nil {
		return err
	}
	if err := w.writeLine(encodeLine(item.Key)); err != nil {
		return err
	}
	return w.writeLine(item.Digest)
}

// WriteLine appends one list entry. It is used for level list files.
func (w *Writer) WriteLine(line string) error {
	return w.writeLine(encodeLine(line))
}

func (w *Writer) writeLine(line string) error {
	if _, err := w.buf.WriteString(line); err != nil {
		return fmt.Errorf("writing %s: %w", w.path, err)
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return fmt.Errorf("writing %s: %w", w.path, err)
	}
	return nil
}

// Close flushes and closes the file. It is safe to call more than once.
func (w *Writer) Close() error {
	if w.wc == nil {
		return nil
	}
	flushErr := w.buf.Flush()
	closeErr := w.wc.Close()
	w.wc = nil
	if err := errors.Join(flushErr, closeErr); err != nil {
		return fmt.Errorf("closing %s: %w", w.path, err)
	}
	return nil
}

// WriteAll writes items to a new state file at path.
func WriteAll(factory IOFactory, path string, items []Item) (err error) {
	w, err := Create(factory, path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := w.Close(); err == nil {
			err = closeErr
		}
	}()

	for _, item := range items {
		if err := w.Write(item); err != nil {
			return err
		}
	}
	return nil
}
