package lister

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jamesainslie/changescan/pkg/changescan/statefile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkdirs(t *testing.T, root string, dirs ...string) {
	t.Helper()
	for _, d := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}
}

func TestLevel(t *testing.T) {
	assert.Equal(t, 0, Level("."))
	assert.Equal(t, 1, Level("a"))
	assert.Equal(t, 3, Level(filepath.Join("a", "b", "c")))
}

func TestList_WritesOneFilePerLevel(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	mkdirs(t, root, "b/z", "a/y", "a/x/deep", "c")
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "file.txt"), []byte("x"), 0o644))

	deepest, err := List(context.Background(), root, out, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, deepest)

	read := func(level int) []string {
		lines, err := statefile.ReadLines(statefile.OSFactory{}, filepath.Join(out, statefile.LevelListName(level)))
		require.NoError(t, err)
		return lines
	}

	assert.Equal(t, []string{root}, read(0))
	assert.Equal(t, []string{
		filepath.Join(root, "a"),
		filepath.Join(root, "b"),
		filepath.Join(root, "c"),
	}, read(1))
	assert.Equal(t, []string{
		filepath.Join(root, "a", "x"),
		filepath.Join(root, "a", "y"),
		filepath.Join(root, "b", "z"),
	}, read(2))
	assert.Equal(t, []string{filepath.Join(root, "a", "x", "deep")}, read(3))

	_, err = os.Stat(filepath.Join(out, statefile.LevelListName(4)))
	assert.True(t, os.IsNotExist(err))
}

func TestList_DepthFirstSiblingOrder(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	// "a-b" sorts before "a/..." bytewise but "a" is visited before "a-b".
	mkdirs(t, root, "a/c", "a-b/d")

	_, err := List(context.Background(), root, out, Options{})
	require.NoError(t, err)

	lines, err := statefile.ReadLines(statefile.OSFactory{}, filepath.Join(out, statefile.LevelListName(2)))
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a", "c"),
		filepath.Join(root, "a-b", "d"),
	}, lines)
}

func TestList_EmptyRoot(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()

	deepest, err := List(context.Background(), root, out, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, deepest)
}

func TestList_Exclusions(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	mkdirs(t, root, "src/pkg", "node_modules/lib", ".git/objects")

	deepest, err := List(context.Background(), root, out, Options{Exclude: []string{"node_modules", ".git"}})
	require.NoError(t, err)
	assert.Equal(t, 2, deepest)

	lines, err := statefile.ReadLines(statefile.OSFactory{}, filepath.Join(out, statefile.LevelListName(1)))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "src")}, lines)
}

func TestList_NonExistentRoot(t *testing.T) {
	_, err := List(context.Background(), "/nonexistent/directory", t.TempDir(), Options{})
	assert.Error(t, err)
}

func TestList_Cancelled(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "a", "b")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := List(ctx, root, t.TempDir(), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExcluded(t *testing.T) {
	tests := []struct {
		path    string
		pattern string
		want    bool
	}{
		{"/proc/1", "/proc", true},
		{"/process", "/proc", false},
		{"/src/node_modules", "node_modules", true},
		{"/src/app.tmp", "*.tmp", true},
		{"/src/app.go", "*.tmp", false},
		{"/src/app.go", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path+"_"+tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, Excluded(tt.path, []string{tt.pattern}))
		})
	}
}

func TestRemoveLists(t *testing.T) {
	out := t.TempDir()
	for level := 0; level < 3; level++ {
		require.NoError(t, os.WriteFile(filepath.Join(out, statefile.LevelListName(level)), nil, 0o644))
	}

	RemoveLists(out, 2)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestList_NamesWithLineBreaks(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	mkdirs(t, root, "odd\ndir/inner", "cr\r")

	deepest, err := List(context.Background(), root, out, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, deepest)

	lines, err := statefile.ReadLines(statefile.OSFactory{}, filepath.Join(out, statefile.LevelListName(1)))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "cr\r"), filepath.Join(root, "odd\ndir")}, lines)

	lines, err = statefile.ReadLines(statefile.OSFactory{}, filepath.Join(out, statefile.LevelListName(2)))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "odd\ndir", "inner")}, lines)
}
