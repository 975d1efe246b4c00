package detector

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/changescan/pkg/changescan/digest"
	"github.com/jamesainslie/changescan/pkg/changescan/statefile"
)

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"", AllLevels, false},
		{"all", AllLevels, false},
		{"TOP", TopLevelOnly, false},
		{"top-level-only", TopLevelOnly, false},
		{"sideways", AllLevels, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStrategy(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidOption)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "all", AllLevels.String())
	assert.Equal(t, "top", TopLevelOnly.String())
	assert.Equal(t, "Strategy(7)", Strategy(7).String())
}

func TestStrategyLevels(t *testing.T) {
	assert.Equal(t, 3, AllLevels.levels(3))
	assert.Equal(t, 0, TopLevelOnly.levels(3))
	assert.Equal(t, -1, TopLevelOnly.levels(-1))
}

func TestOptionsValidate(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr error
	}{
		{"defaults", func(*Options) {}, nil},
		{"missing dir", func(o *Options) { o.Dir = "" }, ErrInvalidOption},
		{"nonexistent dir", func(o *Options) { o.Dir = filepath.Join(dir, "nope") }, ErrNotDirectory},
		{"dir is a file", func(o *Options) { o.Dir = file }, ErrNotDirectory},
		{"project is a file", func(o *Options) { o.ProjectDir = file }, ErrNotDirectory},
		{"zero queue", func(o *Options) { o.QueueSize = 0 }, ErrInvalidOption},
		{"negative timeout", func(o *Options) { o.PollTimeout = -time.Second }, ErrInvalidOption},
		{"unknown algorithm", func(o *Options) { o.Algorithm = "crc7" }, ErrInvalidOption},
		{"unknown mode", func(o *Options) { o.Mode = digest.Mode(9) }, ErrInvalidOption},
		{"unknown strategy", func(o *Options) { o.Strategy = Strategy(9) }, ErrInvalidOption},
		{"state dir is scanned dir", func(o *Options) { o.StateDir = o.Dir }, ErrInvalidOption},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions(dir)
			opts.StateDir = filepath.Join(t.TempDir(), "state")
			tt.mutate(&opts)

			err := opts.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOptionsValidate_FillsDefaults(t *testing.T) {
	dir := t.TempDir()
	opts := Options{Dir: dir, QueueSize: 1, PollTimeout: time.Millisecond}

	require.NoError(t, opts.Validate())
	assert.Equal(t, dir, opts.ProjectDir)
	assert.Equal(t, filepath.Join(dir, DefaultStateDir), opts.StateDir)
	assert.Equal(t, DefaultWorkers, opts.Workers)
	assert.Equal(t, digest.DefaultAlgorithm, opts.Algorithm)
	assert.Equal(t, statefile.OSFactory{}, opts.IOFactory)
	assert.Contains(t, opts.exclusions(), opts.StateDir)
}

func TestOptionsExclusions_StateOutsideTree(t *testing.T) {
	opts := DefaultOptions(t.TempDir())
	opts.StateDir = t.TempDir()
	opts.Exclude = []string{"*.tmp"}
	require.NoError(t, opts.Validate())

	assert.Equal(t, []string{"*.tmp"}, opts.exclusions())
}
