package cache

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"time"
)

// Version is bumped whenever the encoding of stored values changes.
const Version = 1

// KeySeparator separates key components.
const KeySeparator = '\x00'

// Key namespaces.
const (
	nsMemo    = "memo"
	nsHistory = "hist"
)

// MemoEntry is the remembered content digest of one file, valid while the
// file's size and modification time are unchanged.
type MemoEntry struct {
	Size   int64
	Mtime  int64 // UnixNano
	Digest string
}

// RunRecord summarises one successful detection run.
type RunRecord struct {
	RunID    string
	Root     string
	Mode     string
	Strategy string
	Started  time.Time
	Duration time.Duration
	Created  int
	Changed  int
	Deleted  int
	Dirs     int
	Files    int
	Bytes    int64
}

// Changes returns the number of change events the run produced.
func (r RunRecord) Changes() int {
	return r.Created + r.Changed + r.Deleted
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func join(parts ...string) []byte {
	var buf bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			buf.WriteByte(KeySeparator)
		}
		buf.WriteString(p)
	}
	return buf.Bytes()
}

// MemoKey returns the key for a file's memo entry.
// Format: memo\x00<root>\x00<algorithm>\x00<relPath>
func MemoKey(root, algorithm, relPath string) []byte {
	return join(nsMemo, root, algorithm, relPath)
}

// MemoPrefix returns the prefix shared by every memo key of root. An empty
// root matches all roots.
func MemoPrefix(root string) []byte {
	if root == "" {
		return join(nsMemo, "")
	}
	return join(nsMemo, root, "")
}

// HistoryKey returns the key of a run record. Records of one root sort by
// start time because the timestamp is stored big-endian.
func HistoryKey(root string, started time.Time) []byte {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(started.UnixNano()))
	return append(HistoryPrefix(root), ts[:]...)
}

// HistoryPrefix returns the prefix of every run record of root. An empty
// root matches all roots.
func HistoryPrefix(root string) []byte {
	if root == "" {
		return join(nsHistory, "")
	}
	return join(nsHistory, root, "")
}

// ParseMemoKey splits a memo key into its components.
func ParseMemoKey(key []byte) (root, algorithm, relPath string, ok bool) {
	parts := bytes.SplitN(key, []byte{KeySeparator}, 4)
	if len(parts) != 4 || string(parts[0]) != nsMemo {
		return "", "", "", false
	}
	return string(parts[1]), string(parts[2]), string(parts[3]), true
}
