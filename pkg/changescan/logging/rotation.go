package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// RotationConfig controls when the log file is rotated and how many
// rotated files are kept.
type RotationConfig struct {
	// MaxSize in bytes. Zero uses 10MB.
	MaxSize int64

	// MaxBackups is the number of rotated files kept. Zero keeps all.
	MaxBackups int

	// MaxAge in days after which rotated files are removed. Zero disables.
	MaxAge int
}

const defaultMaxSize = 10 * 1024 * 1024

// DefaultRotationConfig returns the rotation used when none is configured.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		MaxSize:    defaultMaxSize,
		MaxBackups: 3,
		MaxAge:     14,
	}
}

// RotatingWriter is an io.WriteCloser over a log file that renames the
// file aside once it grows past MaxSize. Writes hold an advisory lock so
// concurrent changescan processes sharing a log do not interleave records.
type RotatingWriter struct {
	mu   sync.Mutex
	path string
	cfg  RotationConfig
	file *os.File
	size int64
}

// NewRotatingWriter opens path for appending, creating parent directories.
func NewRotatingWriter(path string, cfg RotationConfig) (*RotatingWriter, error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = defaultMaxSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	w := &RotatingWriter{path: path, cfg: cfg}
	if err := w.open(); err != nil {
		return nil, err
	}
	w.prune()
	return w, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}

	if w.size > 0 && w.size+int64(len(p)) > w.cfg.MaxSize {
		if err := w.rotate(); err != nil {
			return 0, fmt.Errorf("rotating log file: %w", err)
		}
	}

	fd := int(w.file.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		return 0, fmt.Errorf("locking log file: %w", err)
	}
	defer func() { _ = unix.Flock(fd, unix.LOCK_UN) }()

	n, err := w.file.Write(p)
	w.size += int64(n)
	if err != nil {
		return n, fmt.Errorf("writing log file: %w", err)
	}
	return n, nil
}

// Close syncs and closes the file. It is safe to call more than once.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	syncErr := w.file.Sync()
	closeErr := w.file.Close()
	w.file = nil
	if syncErr != nil {
		return fmt.Errorf("syncing log file: %w", syncErr)
	}
	return closeErr
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	w.file = f
	w.size = info.Size()
	return nil
}

func (w *RotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing current file: %w", err)
	}
	w.file = nil

	if err := os.Rename(w.path, w.backupName(time.Now())); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("renaming log file: %w", err)
	}
	if err := w.open(); err != nil {
		return err
	}
	w.prune()
	return nil
}

// backupName inserts a timestamp before the extension:
// changescan.log becomes changescan.20060102T150405.000.log.
func (w *RotatingWriter) backupName(t time.Time) string {
	ext := filepath.Ext(w.path)
	base := strings.TrimSuffix(w.path, ext)
	return fmt.Sprintf("%s.%s%s", base, t.Format("20060102T150405.000"), ext)
}

// backups lists rotated files, newest first.
func (w *RotatingWriter) backups() []string {
	dir := filepath.Dir(w.path)
	name := filepath.Base(w.path)
	ext := filepath.Ext(name)
	prefix := strings.TrimSuffix(name, ext) + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var out []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || n == name || !strings.HasPrefix(n, prefix) || !strings.HasSuffix(n, ext) {
			continue
		}
		out = append(out, filepath.Join(dir, n))
	}
	// Timestamps sort lexically.
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

func (w *RotatingWriter) prune() {
	cutoff := time.Now().Add(-time.Duration(w.cfg.MaxAge) * 24 * time.Hour)
	for i, path := range w.backups() {
		if w.cfg.MaxBackups > 0 && i >= w.cfg.MaxBackups {
			_ = os.Remove(path)
			continue
		}
		if w.cfg.MaxAge > 0 {
			if info, err := os.Stat(path); err == nil && info.ModTime().Before(cutoff) {
				_ = os.Remove(path)
			}
		}
	}
}
