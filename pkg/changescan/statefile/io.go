package statefile

import (
	"io"
	"os"
	"path/filepath"
)

// IOFactory opens the underlying streams for state and list files and
// lists the state directory. Tests substitute it to inject failures.
type IOFactory interface {
	// OpenReader opens path for reading. A missing file must be reported
	// with an error matching os.ErrNotExist.
	OpenReader(path string) (io.ReadCloser, error)

	// CreateWriter creates or truncates path for writing.
	CreateWriter(path string) (io.WriteCloser, error)

	// ReadDirNames returns the names of the regular files in dir. A
	// missing dir must be reported with an error matching os.ErrNotExist.
	ReadDirNames(dir string) ([]string, error)
}

// OSFactory is the IOFactory backed by the local filesystem.
type OSFactory struct{}

// OpenReader implements IOFactory.
func (OSFactory) OpenReader(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// CreateWriter implements IOFactory. Parent directories are created as needed.
func (OSFactory) CreateWriter(path string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.Create(path)
}

// ReadDirNames implements IOFactory.
func (OSFactory) ReadDirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

var _ IOFactory = OSFactory{}
