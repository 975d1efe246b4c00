package digest

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, content string, mtime time.Time) os.FileInfo {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info
}

func TestNewCache_Algorithms(t *testing.T) {
	for _, alg := range []string{AlgorithmXXHash, AlgorithmSHA256, AlgorithmMD5, ""} {
		c, err := NewCache(alg)
		require.NoError(t, err, alg)
		assert.NotEmpty(t, c.String("x"))
	}

	_, err := NewCache("crc7")
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("content")
	require.NoError(t, err)
	assert.Equal(t, MetadataAndContent, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, MetadataOnly, m)

	_, err = ParseMode("bogus")
	assert.Error(t, err)
	assert.Equal(t, "content", MetadataAndContent.String())
}

func TestContent_MatchesXXHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.txt")
	require.NoError(t, os.WriteFile(path, []byte("Hello, World!"), 0o644))

	c, err := NewCache(AlgorithmXXHash)
	require.NoError(t, err)

	got, err := c.Content(path)
	require.NoError(t, err)

	h := xxhash.New()
	_, _ = h.Write([]byte("Hello, World!"))
	assert.Equal(t, hex.EncodeToString(h.Sum(nil)), got)
}

func TestContent_NonExistent(t *testing.T) {
	c, err := NewCache("")
	require.NoError(t, err)

	_, err = c.Content("/nonexistent/file.txt")
	assert.Error(t, err)
}

func TestFile_Stability(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	path := filepath.Join(dir, "a.txt")
	info := writeFile(t, path, "abc", mtime)

	c, err := NewCache("")
	require.NoError(t, err)

	for _, mode := range []Mode{MetadataOnly, MetadataAndContent} {
		d1, err := c.File(path, info, mode, nil)
		require.NoError(t, err)
		d2, err := c.File(path, info, mode, nil)
		require.NoError(t, err)
		assert.Equal(t, d1, d2, mode.String())
	}
}

func TestFile_ContentModeSeesSameSizeEdits(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	path := filepath.Join(dir, "a.txt")

	c, err := NewCache("")
	require.NoError(t, err)

	info := writeFile(t, path, "abc", mtime)
	metaBefore, err := c.File(path, info, MetadataOnly, nil)
	require.NoError(t, err)
	contentBefore, err := c.File(path, info, MetadataAndContent, nil)
	require.NoError(t, err)

	info = writeFile(t, path, "xyz", mtime)
	metaAfter, err := c.File(path, info, MetadataOnly, nil)
	require.NoError(t, err)
	contentAfter, err := c.File(path, info, MetadataAndContent, nil)
	require.NoError(t, err)

	assert.Equal(t, metaBefore, metaAfter, "metadata mode ignores same-size same-mtime edits")
	assert.NotEqual(t, contentBefore, contentAfter)
}

type mapMemo struct {
	mu      sync.Mutex
	entries map[string]string
	lookups int
	records int
}

func (m *mapMemo) Lookup(path string, _, _ int64) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	d, ok := m.entries[path]
	return d, ok
}

func (m *mapMemo) Record(path string, _, _ int64, digest string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records++
	m.entries[path] = digest
}

func TestFile_UsesMemo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	info := writeFile(t, path, "abc", time.Now())

	c, err := NewCache("")
	require.NoError(t, err)
	memo := &mapMemo{entries: map[string]string{}}

	first, err := c.File(path, info, MetadataAndContent, memo)
	require.NoError(t, err)
	assert.Equal(t, 1, memo.records)

	second, err := c.File(path, info, MetadataAndContent, memo)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, memo.records, "memo hit must not record again")
	assert.Equal(t, 2, memo.lookups)
}

func TestAccumulator(t *testing.T) {
	c, err := NewCache("")
	require.NoError(t, err)

	build := func(fileName, subName string) (string, int64) {
		a := c.NewAccumulator()
		a.AddFile(fileName, "d1", 10)
		a.AddDir(subName, "d2", 5)
		size := a.Size()
		return a.Sum("root"), size
	}

	d1, size := build("x.txt", "sub")
	d2, _ := build("x.txt", "sub")
	renamed, _ := build("y.txt", "sub")

	assert.Equal(t, int64(15), size)
	assert.Equal(t, d1, d2)
	assert.NotEqual(t, d1, renamed, "renaming a file changes the directory digest")

	a := c.NewAccumulator()
	a.AddDir("x.txt", "d1", 10)
	a.AddDir("sub", "d2", 5)
	assert.NotEqual(t, d1, a.Sum("root"), "file and directory entries fold differently")
}

func TestAccumulator_EmptyDirectoriesDifferByPath(t *testing.T) {
	c, err := NewCache("")
	require.NoError(t, err)

	a := c.NewAccumulator()
	b := c.NewAccumulator()
	assert.NotEqual(t, a.Sum("a"), b.Sum("b"))

	r := c.NewAccumulator()
	r.Release()
	r.Release()
}
