// Package statefile reads, writes and compares the sorted key/digest files
// that hold the persisted state of a scan.
//
// A state file is line oriented: a key line followed by its digest line,
// repeated. Items are written in ascending key order; the comparator relies
// on that order and does not check it.
//
// Keys and list lines that contain a line break, or that begin with a
// double quote, are stored as Go quoted strings so every name the
// filesystem allows reads back unchanged.
package statefile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidItem is returned when an item has an empty key or digest.
	ErrInvalidItem = errors.New("invalid state item")

	// ErrMalformed is returned when a state file cannot be parsed.
	ErrMalformed = errors.New("malformed state file")
)

// Item is one key/digest record.
type Item struct {
	Key    string
	Digest string
}

// NewItem validates and returns an item.
func NewItem(key, digest string) (Item, error) {
	if key == "" {
		return Item{}, fmt.Errorf("%w: empty key", ErrInvalidItem)
	}
	if digest == "" {
		return Item{}, fmt.Errorf("%w: empty digest for %q", ErrInvalidItem, key)
	}
	if strings.ContainsAny(digest, "\r\n") {
		return Item{}, fmt.Errorf("%w: digest for %q contains a line break", ErrInvalidItem, key)
	}
	return Item{Key: key, Digest: digest}, nil
}

// encodeLine returns s as it is stored on one line.
func encodeLine(s string) string {
	if strings.ContainsAny(s, "\r\n") || strings.HasPrefix(s, `"`) {
		return strconv.Quote(s)
	}
	return s
}

// decodeLine reverses encodeLine.
func decodeLine(line string) (string, error) {
	if !strings.HasPrefix(line, `"`) {
		return line, nil
	}
	s, err := strconv.Unquote(line)
	if err != nil {
		return "", fmt.Errorf("%w: bad quoted line %s", ErrMalformed, line)
	}
	return s, nil
}
