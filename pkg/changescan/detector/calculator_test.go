package detector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/changescan/pkg/changescan/digest"
	"github.com/jamesainslie/changescan/pkg/changescan/statefile"
)

func newCalculator(t *testing.T, out string) *calculator {
	t.Helper()
	c, err := digest.NewCache(digest.DefaultAlgorithm)
	require.NoError(t, err)
	return &calculator{cache: c, factory: statefile.OSFactory{}, outDir: out}
}

func TestCalculator_WritesSortedFileState(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	writeFile(t, root, "zeta.txt", "z")
	writeFile(t, root, "alpha.txt", "aa")
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(root, "alpha.txt"), filepath.Join(root, "link")))

	calc := newCalculator(t, out)
	state, err := newDirectoryState(root, root, calc.cache)
	require.NoError(t, err)
	assert.Equal(t, ".", state.RelPath)
	assert.Equal(t, 0, state.Level)

	res := calc.run(state, nil)
	require.NoError(t, res.err)

	assert.Equal(t, int64(3), state.Size)
	assert.NotEmpty(t, state.Digest)
	assert.Len(t, state.Files, 2, "directories and symlinks are not files")

	items, err := statefile.ReadAll(statefile.OSFactory{}, filepath.Join(out, statefile.DirStateName(state.PathDigest)))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "alpha.txt", items[0].Key)
	assert.Equal(t, "zeta.txt", items[1].Key)
	assert.Equal(t, state.Files["alpha.txt"], items[0].Digest)
}

func TestCalculator_FoldsChildren(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "d"), 0o755))

	calc := newCalculator(t, t.TempDir())
	digestWith := func(children ...*DirectoryState) *DirectoryState {
		s, err := newDirectoryState(root, filepath.Join(root, "d"), calc.cache)
		require.NoError(t, err)
		require.NoError(t, calc.run(s, children).err)
		return s
	}

	child := &DirectoryState{RelPath: filepath.Join("d", "c"), Digest: "abc", Size: 10}
	plain := digestWith()
	withChild := digestWith(child)
	changedChild := digestWith(&DirectoryState{RelPath: child.RelPath, Digest: "abd", Size: 10})

	assert.NotEqual(t, plain.Digest, withChild.Digest)
	assert.NotEqual(t, withChild.Digest, changedChild.Digest)
	assert.Equal(t, int64(10), withChild.Size)
}

func TestCalculator_FailureIsReturnedNotRaised(t *testing.T) {
	root := t.TempDir()
	calc := newCalculator(t, t.TempDir())

	state, err := newDirectoryState(root, filepath.Join(root, "missing"), calc.cache)
	require.NoError(t, err)

	res := calc.run(state, nil)
	require.Error(t, res.err)
	assert.Same(t, state, res.state)
	assert.Empty(t, state.Digest)

	undigested := &DirectoryState{RelPath: filepath.Join("missing", "child")}
	require.NoError(t, os.Mkdir(state.Path, 0o755))
	res = calc.run(state, []*DirectoryState{undigested})
	assert.Error(t, res.err)
}

func TestLessAndIndex(t *testing.T) {
	a := &DirectoryState{RelPath: "a", Level: 1}
	ab := &DirectoryState{RelPath: filepath.Join("a", "b"), Level: 2}
	b := &DirectoryState{RelPath: "b", Level: 1}

	assert.True(t, less(ab, a), "deeper levels sort first")
	assert.True(t, less(a, b))
	assert.False(t, less(b, a))

	idx := indexByParent([]*DirectoryState{b, a})
	assert.Equal(t, []*DirectoryState{a, b}, idx["."])
	assert.Nil(t, idx["a"])
}
