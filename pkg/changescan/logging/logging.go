// Package logging provides component loggers for changescan. Loggers are
// silent until Init is called, so library packages can log freely without
// forcing output on embedders.
//
//	if err := logging.Init(logging.Config{Level: "debug"}); err != nil {
//	    return err
//	}
//	defer logging.Close()
//
//	logging.Get("detector").Info("run started", "root", root)
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// Level is a logging severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

func (l Level) charm() log.Level {
	switch l {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// ErrInvalidLevel is returned for an unrecognised level name.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses a level name. Matching is case-insensitive.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
	}
}

// Config configures the logging system.
type Config struct {
	// Level is the default file level.
	Level string

	// Path is the log file. Empty uses DefaultLogPath.
	Path string

	Rotation RotationConfig

	// Components overrides Level per component name.
	Components map[string]string

	// ConsoleLevel mirrors records at or above this level to stderr.
	// Empty disables console output.
	ConsoleLevel string
}

// Logger is a component logger writing to the log file and, when enabled,
// to the console.
type Logger struct {
	file    *log.Logger
	console *log.Logger
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.emit(LevelDebug, msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.emit(LevelInfo, msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.emit(LevelWarn, msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.emit(LevelError, msg, args) }

func (l *Logger) emit(level Level, msg string, args []interface{}) {
	write(l.file, level, msg, args)
	if l.console != nil {
		write(l.console, level, msg, args)
	}
}

func write(logger *log.Logger, level Level, msg string, args []interface{}) {
	switch level {
	case LevelDebug:
		logger.Debug(msg, args...)
	case LevelInfo:
		logger.Info(msg, args...)
	case LevelWarn:
		logger.Warn(msg, args...)
	case LevelError:
		logger.Error(msg, args...)
	}
}

// With returns a logger that adds the given key/value pairs to every record.
func (l *Logger) With(args ...interface{}) *Logger {
	out := &Logger{file: l.file.With(args...)}
	if l.console != nil {
		out.console = l.console.With(args...)
	}
	return out
}

type registry struct {
	mu          sync.RWMutex
	initialized bool
	writer      *RotatingWriter
	level       Level
	components  map[string]Level
	console     bool
	consoleLvl  Level
	loggers     map[string]*Logger
}

var global = &registry{
	loggers:    make(map[string]*Logger),
	components: make(map[string]Level),
}

// Init configures logging. Calling it again replaces the previous
// configuration, and loggers handed out earlier are rebuilt on next Get.
func Init(cfg Config) error {
	global.mu.Lock()
	defer global.mu.Unlock()

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}

	components := make(map[string]Level, len(cfg.Components))
	for comp, name := range cfg.Components {
		lvl, err := ParseLevel(name)
		if err != nil {
			return fmt.Errorf("parsing level for component %s: %w", comp, err)
		}
		components[comp] = lvl
	}

	console := false
	var consoleLvl Level
	if cfg.ConsoleLevel != "" {
		consoleLvl, err = ParseLevel(cfg.ConsoleLevel)
		if err != nil {
			return fmt.Errorf("parsing console level: %w", err)
		}
		console = true
	}

	path := cfg.Path
	if path == "" {
		path = DefaultLogPath()
	}
	writer, err := NewRotatingWriter(path, cfg.Rotation)
	if err != nil {
		return fmt.Errorf("creating log writer: %w", err)
	}

	if global.writer != nil {
		_ = global.writer.Close()
	}

	global.writer = writer
	global.level = level
	global.components = components
	global.console = console
	global.consoleLvl = consoleLvl
	global.initialized = true
	global.loggers = make(map[string]*Logger)

	return nil
}

// Get returns the logger for component, creating it on first use.
func Get(component string) *Logger {
	global.mu.RLock()
	logger, ok := global.loggers[component]
	global.mu.RUnlock()
	if ok {
		return logger
	}

	global.mu.Lock()
	defer global.mu.Unlock()

	if logger, ok := global.loggers[component]; ok {
		return logger
	}
	logger = global.build(component)
	global.loggers[component] = logger
	return logger
}

// build must be called with mu held.
func (r *registry) build(component string) *Logger {
	level := r.level
	if lvl, ok := r.components[component]; ok {
		level = lvl
	}

	if !r.initialized {
		return &Logger{file: log.NewWithOptions(io.Discard, log.Options{Prefix: component})}
	}

	logger := &Logger{
		file: log.NewWithOptions(r.writer, log.Options{
			Level:           level.charm(),
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          component,
		}),
	}
	if r.console {
		logger.console = log.NewWithOptions(os.Stderr, log.Options{
			Level:           r.consoleLvl.charm(),
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
			Prefix:          component,
		})
	}
	return logger
}

// Close flushes the log file and returns every logger to silence.
func Close() error {
	global.mu.Lock()
	defer global.mu.Unlock()

	if !global.initialized {
		return nil
	}

	var err error
	if global.writer != nil {
		err = global.writer.Close()
		global.writer = nil
	}
	global.initialized = false
	global.loggers = make(map[string]*Logger)
	global.components = make(map[string]Level)

	if err != nil {
		return fmt.Errorf("closing log writer: %w", err)
	}
	return nil
}

// DefaultLogPath returns $XDG_STATE_HOME/changescan/changescan.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "changescan", "changescan.log")
}
