package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/changescan/pkg/changescan/detector"
	"github.com/jamesainslie/changescan/pkg/changescan/lock"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or reset saved state",
	Long: `Commands for the per-directory state changescan compares against.

State for a directory lives in <state_dir>/<key>/{old,new}, where key is the
digest of the directory's path relative to project_dir.`,
}

var statePathCmd = &cobra.Command{
	Use:   "path [dir]",
	Short: "Show where state for a directory is kept",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		opts, err := detectorOptions(cfg, targetDir(args))
		if err != nil {
			return err
		}
		path, err := detector.StatePath(opts)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		if pid, ok := lock.Holder(path); ok {
			printVerbose("Locked by pid %d", pid)
		}
		return nil
	},
}

var stateClearCmd = &cobra.Command{
	Use:   "clear [dir]",
	Short: "Forget saved state so the next run reports everything as created",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		opts, err := detectorOptions(cfg, targetDir(args))
		if err != nil {
			return err
		}
		if err := detector.Clear(opts); err != nil {
			return fmt.Errorf("failed to clear state: %w", err)
		}
		printInfo("State cleared for %s", opts.Dir)
		return nil
	},
}

func init() {
	stateCmd.AddCommand(statePathCmd)
	stateCmd.AddCommand(stateClearCmd)
	rootCmd.AddCommand(stateCmd)
}
