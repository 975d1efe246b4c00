package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/jamesainslie/changescan/pkg/changescan/cache"
	"github.com/jamesainslie/changescan/pkg/changescan/detector"
	"github.com/jamesainslie/changescan/pkg/changescan/digest"
	"github.com/jamesainslie/changescan/pkg/changescan/logging"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level        string            `mapstructure:"level"`
	Path         string            `mapstructure:"path"`
	ConsoleLevel string            `mapstructure:"console_level"`
	Rotation     RotationConfig    `mapstructure:"rotation"`
	Components   map[string]string `mapstructure:"components"`
}

// CacheConfig configures the content memo and run history database.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	History int    `mapstructure:"history"`
}

// Config is the application configuration.
type Config struct {
	ProjectDir  string        `mapstructure:"project_dir"`
	StateDir    string        `mapstructure:"state_dir"`
	QueueSize   int           `mapstructure:"queue_size"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
	Mode        string        `mapstructure:"mode"`
	Strategy    string        `mapstructure:"strategy"`
	Algorithm   string        `mapstructure:"algorithm"`
	Workers     int           `mapstructure:"workers"`
	Exclude     []string      `mapstructure:"exclude"`
	DeepDeletes bool          `mapstructure:"deep_deletes"`
	Output      string        `mapstructure:"output"`
	Cache       CacheConfig   `mapstructure:"cache"`
	Logging     LoggingConfig `mapstructure:"logging"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("project_dir", "")
	v.SetDefault("state_dir", "")
	v.SetDefault("queue_size", DefaultQueueSize)
	v.SetDefault("poll_timeout", DefaultPollTimeout)
	v.SetDefault("mode", DefaultMode)
	v.SetDefault("strategy", DefaultStrategy)
	v.SetDefault("algorithm", DefaultAlgorithm)
	v.SetDefault("workers", DefaultWorkers)
	v.SetDefault("exclude", DefaultExclusions)
	v.SetDefault("deep_deletes", false)
	v.SetDefault("output", DefaultOutput)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.path", "") // empty means cache.DefaultPath
	v.SetDefault("cache.history", DefaultHistory)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.path", "") // empty means logging.DefaultLogPath
	v.SetDefault("logging.console_level", "")
	v.SetDefault("logging.rotation.max_size", DefaultLogMaxSize)
	v.SetDefault("logging.rotation.max_backups", DefaultLogMaxBackups)
	v.SetDefault("logging.rotation.max_age", DefaultLogMaxAge)
	v.SetDefault("logging.components", map[string]string{})
}

// Configure prepares v to read the config file and environment. An empty
// file searches the default locations.
func Configure(v *viper.Viper, file string) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(ConfigDir())
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)
}

// Load reads configuration from the default locations and environment.
func Load() (*Config, error) {
	v := viper.New()
	Configure(v, "")
	return LoadFrom(v)
}

// LoadFrom reads the config file configured on v, tolerating its absence,
// and decodes the merged settings.
func LoadFrom(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, p := range []*string{&cfg.ProjectDir, &cfg.StateDir, &cfg.Cache.Path, &cfg.Logging.Path} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}

	return &cfg, nil
}

// DetectorOptions builds detector options for scanning dir. Optional
// collaborators such as the memo are left for the caller to attach.
func (c *Config) DetectorOptions(dir string) (detector.Options, error) {
	mode, err := digest.ParseMode(c.Mode)
	if err != nil {
		return detector.Options{}, err
	}
	strategy, err := detector.ParseStrategy(c.Strategy)
	if err != nil {
		return detector.Options{}, err
	}

	return detector.Options{
		ProjectDir:  c.ProjectDir,
		Dir:         dir,
		StateDir:    c.StateDir,
		QueueSize:   c.QueueSize,
		PollTimeout: c.PollTimeout,
		Mode:        mode,
		Strategy:    strategy,
		Algorithm:   c.Algorithm,
		Workers:     c.Workers,
		Exclude:     c.Exclude,
		DeepDeletes: c.DeepDeletes,
	}, nil
}

// LoggingConfig converts the logging section for logging.Init.
func (c *Config) LoggingConfig() (logging.Config, error) {
	rotation := logging.RotationConfig{
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
	}
	if c.Logging.Rotation.MaxSize != "" {
		size, err := humanize.ParseBytes(c.Logging.Rotation.MaxSize)
		if err != nil {
			return logging.Config{}, fmt.Errorf("invalid logging.rotation.max_size %q: %w", c.Logging.Rotation.MaxSize, err)
		}
		rotation.MaxSize = int64(size)
	}

	return logging.Config{
		Level:        c.Logging.Level,
		Path:         c.Logging.Path,
		Rotation:     rotation,
		Components:   c.Logging.Components,
		ConsoleLevel: c.Logging.ConsoleLevel,
	}, nil
}

// CachePath returns the configured cache location or the default.
func (c *Config) CachePath() string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	return cache.DefaultPath()
}

// ConfigDir returns $XDG_CONFIG_HOME/changescan.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "changescan")
}

// ConfigFile returns the default config file path.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

// WriteDefault writes a commented default config to path unless a file is
// already there. It reports whether a file was written.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(`# changescan configuration

# Project root; state for a scanned directory is keyed by its path
# relative to this. Empty means the scanned directory itself.
project_dir: ""

# Where old/new state is kept. Relative paths resolve against project_dir.
# Empty means <project_dir>/.changescan.
state_dir: ""

# Change event queue
queue_size: %d
poll_timeout: %s

# File digests: metadata (size and mtime) or content (metadata plus bytes)
mode: %s
# Comparison depth: all or top
strategy: %s
# Digest algorithm: xxhash, sha256 or md5
algorithm: %s
workers: %d

# Also report every file of a deleted directory
deep_deletes: false

exclude:
  - .git
  - .changescan

# Report format: plain, json, yaml or pretty
output: %s

# Content digest memo and run history
cache:
  enabled: false
  path: ""       # empty means $XDG_CACHE_HOME/changescan/db
  history: %d

logging:
  level: %s
  path: ""       # empty means $XDG_STATE_HOME/changescan/changescan.log
  console_level: ""
  rotation:
    max_size: %s
    max_backups: %d
    max_age: %d  # days
  components: {}
`, DefaultQueueSize, DefaultPollTimeout, DefaultMode, DefaultStrategy, DefaultAlgorithm, DefaultWorkers,
		DefaultOutput, DefaultHistory, DefaultLogLevel, DefaultLogMaxSize, DefaultLogMaxBackups, DefaultLogMaxAge)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("failed to write default config: %w", err)
	}
	return true, nil
}
