package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestKeys(t *testing.T) {
	key := MemoKey("/srv", "xxhash", filepath.Join("a", "b.txt"))
	root, alg, rel, ok := ParseMemoKey(key)
	require.True(t, ok)
	assert.Equal(t, "/srv", root)
	assert.Equal(t, "xxhash", alg)
	assert.Equal(t, filepath.Join("a", "b.txt"), rel)

	_, _, _, ok = ParseMemoKey([]byte("hist\x00/srv"))
	assert.False(t, ok)

	assert.True(t, len(MemoPrefix("/srv")) < len(key))
	assert.NotEqual(t, MemoPrefix("/srv"), MemoPrefix("/srv2")[:len(MemoPrefix("/srv"))],
		"a root must not be a prefix of a sibling root")

	early := HistoryKey("/srv", time.Unix(100, 0))
	late := HistoryKey("/srv", time.Unix(200, 0))
	assert.Less(t, string(early), string(late))
}

func TestStore_OnDisk(t *testing.T) {
	dir := t.TempDir()

	store, err := OpenStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Put([]byte("k"), &MemoEntry{Size: 1, Mtime: 2, Digest: "d"}))
	require.NoError(t, store.Close())

	store, err = OpenStore(dir)
	require.NoError(t, err)
	defer store.Close()

	var got MemoEntry
	require.NoError(t, store.Get([]byte("k"), &got))
	assert.Equal(t, MemoEntry{Size: 1, Mtime: 2, Digest: "d"}, got)

	assert.ErrorIs(t, store.Get([]byte("missing"), &got), ErrNotFound)
}

func TestMemo_LookupAfterFlush(t *testing.T) {
	c := openTestCache(t)
	memo := c.Memo("/srv", "xxhash")

	path := filepath.Join("/srv", "a", "file.bin")
	memo.Record(path, 10, 99, "abc")
	assert.Equal(t, 1, memo.Pending())

	_, ok := memo.Lookup(path, 10, 99)
	assert.False(t, ok, "records are not visible before Flush")

	require.NoError(t, memo.Flush())
	assert.Zero(t, memo.Pending())

	got, ok := memo.Lookup(path, 10, 99)
	require.True(t, ok)
	assert.Equal(t, "abc", got)

	_, ok = memo.Lookup(path, 11, 99)
	assert.False(t, ok, "size mismatch")
	_, ok = memo.Lookup(path, 10, 100)
	assert.False(t, ok, "mtime mismatch")

	other := c.Memo("/srv", "sha256")
	_, ok = other.Lookup(path, 10, 99)
	assert.False(t, ok, "memo is per algorithm")
}

func TestMemo_Discard(t *testing.T) {
	c := openTestCache(t)
	memo := c.Memo("/srv", "xxhash")

	memo.Record("/srv/x", 1, 1, "d")
	memo.Discard()
	require.NoError(t, memo.Flush())

	_, ok := memo.Lookup("/srv/x", 1, 1)
	assert.False(t, ok)
}

func TestRuns_NewestFirst(t *testing.T) {
	c := openTestCache(t)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, c.RecordRun(RunRecord{
			RunID:   string(rune('a' + i)),
			Root:    "/srv",
			Started: base.Add(time.Duration(i) * time.Minute),
			Created: i,
		}))
	}
	require.NoError(t, c.RecordRun(RunRecord{RunID: "other", Root: "/opt", Started: base}))

	runs, err := c.Runs("/srv", 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{runs[0].RunID, runs[1].RunID, runs[2].RunID})
	assert.Equal(t, 2, runs[0].Changes())

	runs, err = c.Runs("/srv", 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "c", runs[0].RunID)

	all, err := c.Runs("", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "c", all[0].RunID)
	assert.ElementsMatch(t, []string{"a", "other"}, []string{all[2].RunID, all[3].RunID})

	newest, err := c.Runs("", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, []string{newest[0].RunID, newest[1].RunID})

	assert.Error(t, c.RecordRun(RunRecord{RunID: "x"}))
}

func TestClear(t *testing.T) {
	c := openTestCache(t)

	for _, root := range []string{"/srv", "/opt"} {
		memo := c.Memo(root, "xxhash")
		memo.Record(filepath.Join(root, "f"), 1, 1, "d")
		require.NoError(t, memo.Flush())
		require.NoError(t, c.RecordRun(RunRecord{Root: root, Started: time.Now()}))
	}

	n, err := c.Clear("/srv")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	runs, err := c.Runs("/opt", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	n, err = c.ClearAll()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPrune(t *testing.T) {
	c := openTestCache(t)
	root := t.TempDir()

	keep := filepath.Join(root, "keep.txt")
	stale := filepath.Join(root, "stale.txt")
	require.NoError(t, os.WriteFile(keep, []byte("keep"), 0o644))
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0o644))

	keepInfo, err := os.Stat(keep)
	require.NoError(t, err)

	memo := c.Memo(root, "xxhash")
	memo.Record(keep, keepInfo.Size(), keepInfo.ModTime().UnixNano(), "k")
	memo.Record(stale, 1, 1, "s")
	memo.Record(filepath.Join(root, "gone.txt"), 1, 1, "g")
	require.NoError(t, memo.Flush())

	result, err := c.Prune(root)
	require.NoError(t, err)
	assert.Equal(t, PruneResult{Checked: 3, Stale: 1, Missing: 1}, result)
	assert.Equal(t, 2, result.Removed())

	_, ok := memo.Lookup(keep, keepInfo.Size(), keepInfo.ModTime().UnixNano())
	assert.True(t, ok)
	_, ok = memo.Lookup(filepath.Join(root, "gone.txt"), 1, 1)
	assert.False(t, ok)
}
