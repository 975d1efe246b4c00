package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/changescan/pkg/changescan/config"
	"github.com/jamesainslie/changescan/pkg/changescan/lock"
	"github.com/jamesainslie/changescan/pkg/changescan/logging"
	"github.com/jamesainslie/changescan/pkg/changescan/output"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"changes", errChangesFound, exitChanges},
		{"locked", fmt.Errorf("lock: %w", lock.ErrLocked), exitLocked},
		{"other", errors.New("boom"), exitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestTargetDir(t *testing.T) {
	assert.Equal(t, ".", targetDir(nil))
	assert.Equal(t, "/srv", targetDir([]string{"/srv"}))
}

// cliEnv is a scanned tree plus a config file that keeps state, cache and
// logs inside the test's temp directory.
type cliEnv struct {
	root    string
	tree    string
	config  string
	state   string
	cacheDB string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	root := t.TempDir()
	env := &cliEnv{
		root:    root,
		tree:    filepath.Join(root, "tree"),
		config:  filepath.Join(root, "config.yaml"),
		state:   filepath.Join(root, "state"),
		cacheDB: filepath.Join(root, "db"),
	}

	mtime := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for rel, content := range map[string]string{"a/x.txt": "one", "b/y.txt": "two"} {
		path := filepath.Join(env.tree, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}

	cfg := fmt.Sprintf(`state_dir: %s
output: jsonl
cache:
  path: %s
logging:
  path: %s
`, env.state, env.cacheDB, filepath.Join(root, "log", "changescan.log"))
	require.NoError(t, os.WriteFile(env.config, []byte(cfg), 0o644))

	t.Cleanup(func() { _ = logging.Close() })
	return env
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs(append(args, "--config", e.config))
	err := rootCmd.Execute()
	return buf.String(), err
}

func decodeChanges(t *testing.T, out string) map[string]string {
	t.Helper()
	kinds := make(map[string]string)
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		var c output.Change
		require.NoError(t, json.Unmarshal([]byte(line), &c), line)
		kinds[c.Path] = c.Kind
	}
	return kinds
}

// The command tests share cobra and viper globals, so they run as ordered
// steps of one test.
func TestCLI(t *testing.T) {
	env := newCLIEnv(t)

	t.Run("first run reports everything as created", func(t *testing.T) {
		out, err := env.run(t, env.tree)
		require.NoError(t, err)

		kinds := decodeChanges(t, out)
		assert.Equal(t, "created", kinds[filepath.Join(env.tree, "a", "x.txt")])
		assert.Equal(t, "created", kinds[filepath.Join(env.tree, "b")])
	})

	t.Run("unchanged tree reports nothing", func(t *testing.T) {
		out, err := env.run(t, env.tree, "--exit-code")
		require.NoError(t, err)
		assert.Empty(t, strings.TrimSpace(out))
	})

	t.Run("exit code signals changes", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(env.tree, "b", "y.txt"), []byte("two and more"), 0o644))

		out, err := env.run(t, env.tree, "--exit-code")
		require.ErrorIs(t, err, errChangesFound)
		assert.Equal(t, exitChanges, exitCode(err))

		kinds := decodeChanges(t, out)
		assert.Equal(t, "changed", kinds[filepath.Join(env.tree, "b", "y.txt")])
		assert.Equal(t, "changed", kinds[filepath.Join(env.tree, "b")])
		assert.NotContains(t, kinds, filepath.Join(env.tree, "a", "x.txt"))
	})

	t.Run("state path lives under the state dir", func(t *testing.T) {
		out, err := env.run(t, "state", "path", env.tree)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(strings.TrimSpace(out), env.state), out)
	})

	t.Run("history needs the cache", func(t *testing.T) {
		_, err := env.run(t, "history", env.tree)
		assert.ErrorIs(t, err, errCacheDisabled)
	})

	t.Run("state clear makes the next run start over", func(t *testing.T) {
		_, err := env.run(t, "state", "clear", env.tree)
		require.NoError(t, err)

		out, err := env.run(t, env.tree, "--cache")
		require.ErrorIs(t, err, errChangesFound)
		assert.Equal(t, "created", decodeChanges(t, out)[filepath.Join(env.tree, "a", "x.txt")])
	})

	t.Run("history lists recorded runs", func(t *testing.T) {
		out, err := env.run(t, "history", env.tree)
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 1)
		var run map[string]any
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &run))
		assert.Equal(t, env.tree, run["root"])
	})

	t.Run("cache path", func(t *testing.T) {
		out, err := env.run(t, "cache", "path")
		require.NoError(t, err)
		assert.Equal(t, env.cacheDB, strings.TrimSpace(out))
	})

	t.Run("cache clear", func(t *testing.T) {
		_, err := env.run(t, "cache", "clear")
		require.NoError(t, err)

		out, err := env.run(t, "history", env.tree)
		require.NoError(t, err)
		assert.Empty(t, strings.TrimSpace(out))
	})

	t.Run("whole-report formats are written after the run", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(env.tree, "a", "x.txt"), []byte("one and more"), 0o644))

		out, err := env.run(t, env.tree, "-o", "json")
		require.ErrorIs(t, err, errChangesFound)

		var report output.Report
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		paths := make([]string, len(report.Changes))
		for i, c := range report.Changes {
			paths[i] = c.Path
		}
		assert.Equal(t, []string{env.tree, filepath.Join(env.tree, "a"), filepath.Join(env.tree, "a", "x.txt")}, paths)
		assert.Equal(t, 3, report.Stats.Changed)
	})
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfgFile = path
	t.Cleanup(func() { cfgFile = "" })

	require.NoError(t, runConfigInit(configInitCmd, nil))
	_, err := os.Stat(path)
	require.NoError(t, err)

	written, err := config.WriteDefault(path)
	require.NoError(t, err)
	assert.False(t, written)
}
