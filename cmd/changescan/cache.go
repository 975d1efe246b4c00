package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the content memo and run history",
	Long: `Commands for the changescan cache.

The cache remembers content digests of unchanged files for --mode content
and keeps the run history. It lives in the XDG cache directory
(typically ~/.cache/changescan/db) unless cache.path says otherwise.`,
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show cache location",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), cfg.CachePath())
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [dir]",
	Short: "Remove cached data for one directory, or everything",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.Cache.Enabled = true
		c, closeCache, err := openCache(cfg)
		if err != nil {
			return err
		}
		defer closeCache()

		var n int
		if len(args) == 0 {
			n, err = c.ClearAll()
		} else {
			var root string
			if root, err = filepath.Abs(args[0]); err != nil {
				return err
			}
			n, err = c.Clear(root)
		}
		if err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		printInfo("Removed %d cache entries.", n)
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune [dir]",
	Short: "Drop memo entries for files that changed or no longer exist",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.Cache.Enabled = true
		c, closeCache, err := openCache(cfg)
		if err != nil {
			return err
		}
		defer closeCache()

		root := ""
		if len(args) > 0 {
			if root, err = filepath.Abs(args[0]); err != nil {
				return err
			}
		}
		res, err := c.Prune(root)
		if err != nil {
			return fmt.Errorf("failed to prune cache: %w", err)
		}
		printInfo("Checked %d entries, removed %d (%d stale, %d missing).",
			res.Checked, res.Removed(), res.Stale, res.Missing)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cachePathCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}
