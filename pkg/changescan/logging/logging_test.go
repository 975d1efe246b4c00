package logging_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jamesainslie/changescan/pkg/changescan/logging"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    logging.Level
		wantErr bool
	}{
		{"debug", logging.LevelDebug, false},
		{"INFO", logging.LevelInfo, false},
		{"warning", logging.LevelWarn, false},
		{"error", logging.LevelError, false},
		{"verbose", logging.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := logging.ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, logging.ErrInvalidLevel) {
				t.Errorf("error = %v, want ErrInvalidLevel", err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	if got := logging.LevelWarn.String(); got != "warn" {
		t.Errorf("String() = %q, want warn", got)
	}
	if got := logging.Level(42).String(); got != "unknown" {
		t.Errorf("String() = %q, want unknown", got)
	}
}

// Tests below share global state and must not run in parallel.

func TestInit_Errors(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(func() { _ = logging.Close() })

	cases := []logging.Config{
		{Level: "loud", Path: filepath.Join(dir, "a.log")},
		{Level: "info", Path: filepath.Join(dir, "b.log"), Components: map[string]string{"lister": "nope"}},
		{Level: "info", Path: filepath.Join(dir, "c.log"), ConsoleLevel: "nope"},
	}
	for _, cfg := range cases {
		if err := logging.Init(cfg); err == nil {
			t.Errorf("Init(%+v) expected error", cfg)
		}
	}
}

func TestGet_SilentBeforeInit(t *testing.T) {
	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	// Must not panic or write anywhere.
	logging.Get("silent").Info("nobody hears this", "k", "v")
}

func TestGet_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "changescan.log")
	if err := logging.Init(logging.Config{
		Level:      "info",
		Path:       path,
		Components: map[string]string{"detector": "debug"},
	}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	logging.Get("detector").Debug("level done", "level", 2)
	logging.Get("lister").Debug("hidden")
	logging.Get("lister").With("root", "/srv").Warn("slow walk")

	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	content := string(data)

	for _, want := range []string{"detector", "level done", "slow walk", "root=/srv"} {
		if !strings.Contains(content, want) {
			t.Errorf("log missing %q:\n%s", want, content)
		}
	}
	if strings.Contains(content, "hidden") {
		t.Errorf("debug record from info component was written:\n%s", content)
	}
}

func TestGet_SameInstance(t *testing.T) {
	if logging.Get("dispatch") != logging.Get("dispatch") {
		t.Error("Get() returned different loggers for the same component")
	}
}

func TestGet_Concurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concurrent.log")
	if err := logging.Init(logging.Config{Level: "info", Path: path}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = logging.Close() })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				logging.Get("worker").Info("tick", "worker", i, "n", j)
			}
		}(i)
	}
	wg.Wait()
}

func TestDefaultLogPath(t *testing.T) {
	path := logging.DefaultLogPath()
	if filepath.Base(path) != "changescan.log" {
		t.Errorf("DefaultLogPath() = %q", path)
	}
	if filepath.Base(filepath.Dir(path)) != "changescan" {
		t.Errorf("DefaultLogPath() = %q, want changescan directory", path)
	}
}
