// Package config loads changescan configuration from file, environment
// and command-line flags.
package config

import "time"

// Default configuration values.
const (
	DefaultQueueSize   = 50
	DefaultPollTimeout = 100 * time.Millisecond
	DefaultWorkers     = 4
	DefaultMode        = "metadata"
	DefaultStrategy    = "all"
	DefaultAlgorithm   = "xxhash"
	DefaultOutput      = "plain"
	DefaultHistory     = 20

	DefaultLogLevel      = "info"
	DefaultLogMaxSize    = "10MB"
	DefaultLogMaxBackups = 3
	DefaultLogMaxAge     = 14

	// EnvPrefix prefixes environment overrides, e.g. CHANGESCAN_QUEUE_SIZE.
	EnvPrefix = "CHANGESCAN"
)

// DefaultExclusions are skipped in every scan.
var DefaultExclusions = []string{
	".git",
	".changescan",
}
