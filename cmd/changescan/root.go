package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/changescan/pkg/changescan/config"
	"github.com/jamesainslie/changescan/pkg/changescan/logging"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "changescan [dir]",
		Short: "Report what changed in a directory tree since the last run",
		Long: `Changescan digests a directory tree level by level, compares the result
with the state saved by the previous run and reports every created,
changed and deleted file and directory.

The first run of a directory reports everything as created. State is kept
under <project_dir>/.changescan unless state_dir says otherwise.

Examples:
  changescan                       # Scan the current directory
  changescan ./assets -o json      # JSON report
  changescan --mode content .      # Hash file contents, not just metadata
  changescan --strategy top .      # Only compare the top level in depth
  changescan history .             # Show previous runs (needs the cache)
  changescan state clear .         # Forget saved state`,
		Args:          cobra.MaximumNArgs(1),
		RunE:          runDetect,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ~/.config/changescan/config.yaml)")
	flags.String("project-dir", "", "project root the state key is relative to")
	flags.String("state-dir", "", "state directory (default: <project-dir>/.changescan)")
	flags.StringP("output", "o", "", "output format: plain, json, jsonl, yaml, pretty")
	flags.String("mode", "", "digest mode: metadata or content")
	flags.String("strategy", "", "comparison strategy: all or top")
	flags.String("algorithm", "", "digest algorithm: xxhash, sha256 or md5")
	flags.IntP("workers", "w", 0, "directories digested concurrently per level")
	flags.Int("queue-size", 0, "event queue capacity")
	flags.StringSliceP("exclude", "e", nil, "exclude patterns (can be specified multiple times)")
	flags.Bool("deep-deletes", false, "also report the contents of deleted directories")
	flags.Bool("cache", false, "use the content memo and record run history")
	flags.BoolP("quiet", "q", false, "minimal output")
	flags.BoolP("verbose", "v", false, "debug output")

	bindings := map[string]string{
		"project_dir":   "project-dir",
		"state_dir":     "state-dir",
		"output":        "output",
		"mode":          "mode",
		"strategy":      "strategy",
		"algorithm":     "algorithm",
		"workers":       "workers",
		"queue_size":    "queue-size",
		"exclude":       "exclude",
		"deep_deletes":  "deep-deletes",
		"cache.enabled": "cache",
		"quiet":         "quiet",
		"verbose":       "verbose",
	}
	for key, flag := range bindings {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}

// initConfig prepares the global viper instance with the config file,
// environment and defaults.
func initConfig() {
	config.Configure(viper.GetViper(), cfgFile)
}

// loadConfig decodes the merged configuration and starts logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logCfg, err := cfg.LoggingConfig()
	if err != nil {
		return nil, err
	}
	if getVerbose() {
		logCfg.ConsoleLevel = "debug"
	}
	if err := logging.Init(logCfg); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	printVerbose("Config file: %s", viper.ConfigFileUsed())
	return cfg, nil
}

func closeLogging() {
	_ = logging.Close()
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errChangesFound) {
		printError("%v", err)
	}
	return err
}

func getVerbose() bool {
	return viper.GetBool("verbose")
}

func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
