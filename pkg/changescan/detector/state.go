package detector

import (
	"path/filepath"
	"sort"

	"github.com/jamesainslie/changescan/pkg/changescan/digest"
	"github.com/jamesainslie/changescan/pkg/changescan/lister"
)

// DirectoryState is one directory's snapshot for the current run. It is
// written only by the calculator that owns it and is read-only once its
// level has been collected.
type DirectoryState struct {
	Path       string
	RelPath    string
	PathDigest string
	Level      int

	// Files maps each regular file directly inside the directory to its
	// digest.
	Files map[string]string

	Digest string
	Size   int64
}

// newDirectoryState describes the directory at path under root.
func newDirectoryState(root, path string, c *digest.Cache) (*DirectoryState, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return nil, err
	}
	return &DirectoryState{
		Path:       path,
		RelPath:    rel,
		PathDigest: c.String(rel),
		Level:      lister.Level(rel),
	}, nil
}

// less orders states by level, deepest first, then by relative path.
func less(a, b *DirectoryState) bool {
	if a.Level != b.Level {
		return a.Level > b.Level
	}
	return a.RelPath < b.RelPath
}

// dirResult is the outcome of digesting one directory. When err is set the
// state's digest and size are meaningless.
type dirResult struct {
	state *DirectoryState
	err   error
}

// childIndex groups the states of one level by parent relative path, each
// group sorted by relative path. It is built once per level and only read
// afterwards.
type childIndex map[string][]*DirectoryState

func indexByParent(states []*DirectoryState) childIndex {
	idx := make(childIndex)
	for _, s := range states {
		parent := filepath.Dir(s.RelPath)
		idx[parent] = append(idx[parent], s)
	}
	for _, group := range idx {
		sort.Slice(group, func(i, j int) bool { return group[i].RelPath < group[j].RelPath })
	}
	return idx
}
