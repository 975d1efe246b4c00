package statefile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// maxLineSize bounds a single key or digest line.
const maxLineSize = 1024 * 1024

// ItemSource yields items in key order. Next reports false once exhausted.
type ItemSource interface {
	Next() (Item, bool, error)
}

// Reader streams items from a state file. A missing file reads as empty.
type Reader struct {
	path    string
	rc      io.ReadCloser
	scanner *bufio.Scanner
}

// Open opens the state file at path.
func Open(factory IOFactory, path string) (*Reader, error) {
	rc, err := factory.OpenReader(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Reader{path: path}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening state file %s: %w", path, err)
	}

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{path: path, rc: rc, scanner: scanner}, nil
}

// Next returns the next item.
func (r *Reader) Next() (Item, bool, error) {
	line, ok, err := r.nextLine()
	if err != nil || !ok {
		return Item{}, false, err
	}
	key, err := decodeLine(line)
	if err != nil {
		return Item{}, false, fmt.Errorf("%s: %w", r.path, err)
	}

	digest, ok, err := r.nextLine()
	if err != nil {
		return Item{}, false, err
	}
	if !ok {
		return Item{}, false, fmt.Errorf("%w: %s: missing digest for %q", ErrMalformed, r.path, key)
	}

	item, err := NewItem(key, digest)
	if err != nil {
		return Item{}, false, fmt.Errorf("%w: %s: %w", ErrMalformed, r.path, err)
	}
	return item, true, nil
}

// NextLine returns the next list entry. It is used for level list files.
func (r *Reader) NextLine() (string, bool, error) {
	line, ok, err := r.nextLine()
	if err != nil || !ok {
		return "", false, err
	}
	s, err := decodeLine(line)
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", r.path, err)
	}
	return s, true, nil
}

func (r *Reader) nextLine() (string, bool, error) {
	if r.scanner == nil {
		return "", false, nil
	}
	if r.scanner.Scan() {
		return r.scanner.Text(), true, nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", false, fmt.Errorf("reading %s: %w", r.path, err)
	}
	return "", false, nil
}

// Close closes the underlying file. It is safe to call more than once.
func (r *Reader) Close() error {
	if r.rc == nil {
		return nil
	}
	err := r.rc.Close()
	r.rc = nil
	r.scanner = nil
	return err
}

// ReadAll reads every item of the state file at path.
func ReadAll(factory IOFactory, path string) ([]Item, error) {
	r, err := Open(factory, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var items []Item
	for {
		item, ok, err := r.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return items, nil
		}
		items = append(items, item)
	}
}

// ReadLines reads every line of the list file at path.
func ReadLines(factory IOFactory, path string) ([]string, error) {
	r, err := Open(factory, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var lines []string
	for {
		line, ok, err := r.NextLine()
		if err != nil {
			return nil, err
		}
		if !ok {
			return lines, nil
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
}

var _ ItemSource = (*Reader)(nil)
