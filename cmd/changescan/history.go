package main

import (
	"bytes"
	"errors"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/changescan/pkg/changescan/output"
)

var errCacheDisabled = errors.New("the cache is disabled; enable cache.enabled or pass --cache")

var historyCmd = &cobra.Command{
	Use:   "history [dir]",
	Short: "Show previous runs",
	Long: `Show recorded detection runs, newest first.

Runs are only recorded while the cache is enabled. Without a directory
every recorded root is listed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 0, "maximum number of runs to show (default: cache.history)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Cache.Enabled {
		return errCacheDisabled
	}

	formatter, err := output.Get(cfg.Output)
	if err != nil {
		return err
	}

	root := ""
	if len(args) > 0 {
		if root, err = filepath.Abs(args[0]); err != nil {
			return err
		}
	}
	limit := historyLimit
	if limit <= 0 {
		limit = cfg.Cache.History
	}

	c, closeCache, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	runs, err := c.Runs(root, limit)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := formatter.FormatHistory(&buf, runs); err != nil {
		return err
	}
	_, err = buf.WriteTo(cmd.OutOrStdout())
	return err
}
