package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/changescan/pkg/changescan/cache"
	"github.com/jamesainslie/changescan/pkg/changescan/config"
	"github.com/jamesainslie/changescan/pkg/changescan/detector"
	"github.com/jamesainslie/changescan/pkg/changescan/dispatch"
	"github.com/jamesainslie/changescan/pkg/changescan/lock"
	"github.com/jamesainslie/changescan/pkg/changescan/output"
)

// errChangesFound is returned with --exit-code when the run reported
// changes. It is not printed.
var errChangesFound = errors.New("changes found")

// Exit statuses.
const (
	exitOK      = 0
	exitError   = 1
	exitChanges = 2
	exitLocked  = 3
)

func init() {
	rootCmd.Flags().Bool("exit-code", false, "exit with status 2 when changes were found")
	_ = viper.BindPFlag("exit_code", rootCmd.Flags().Lookup("exit-code"))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errChangesFound):
		return exitChanges
	case errors.Is(err, lock.ErrLocked):
		return exitLocked
	default:
		return exitError
	}
}

// phaseTimer prints phase durations in verbose mode.
type phaseTimer struct{}

func (phaseTimer) Record(phase string, d time.Duration) {
	printVerbose("phase %-8s %s", phase, d.Round(time.Microsecond))
}

// targetDir returns the directory argument or the working directory.
func targetDir(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

// detectorOptions resolves validated options for dir from cfg.
func detectorOptions(cfg *config.Config, dir string) (detector.Options, error) {
	opts, err := cfg.DetectorOptions(dir)
	if err != nil {
		return detector.Options{}, err
	}
	if err := opts.Validate(); err != nil {
		return detector.Options{}, err
	}
	return opts, nil
}

// openCache opens the cache when it is enabled. The returned close
// function is never nil.
func openCache(cfg *config.Config) (*cache.Cache, func(), error) {
	if !cfg.Cache.Enabled {
		return nil, func() {}, nil
	}
	c, err := cache.Open(cfg.CachePath())
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to open cache: %w", err)
	}
	return c, func() {
		if err := c.Close(); err != nil {
			printVerbose("closing cache: %v", err)
		}
	}, nil
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	formatter, err := output.Get(cfg.Output)
	if err != nil {
		return err
	}

	opts, err := detectorOptions(cfg, targetDir(args))
	if err != nil {
		return err
	}

	c, closeCache, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer closeCache()
	if c != nil {
		opts.Memo = c.Memo(opts.Dir, opts.Algorithm)
		opts.History = c
	}
	if getVerbose() {
		opts.Timings = phaseTimer{}
	}

	d, err := detector.New(opts)
	if err != nil {
		return err
	}
	printVerbose("State path: %s", d.StatePath())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Line formats are written as events arrive; the others need the
	// whole, sorted report.
	lines, streaming := formatter.(output.LineFormatter)
	var processor dispatch.ChangeProcessor
	rec := &dispatch.Recorder{}
	if streaming {
		processor = output.NewStream(cmd.OutOrStdout(), lines)
	} else {
		processor = rec
	}

	res, err := d.Detect(ctx, processor)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("interrupted: %w", err)
		}
		return err
	}

	if !streaming {
		var buf bytes.Buffer
		if err := formatter.Format(&buf, output.NewReport(res, rec.Events())); err != nil {
			return fmt.Errorf("failed to format report: %w", err)
		}
		if _, err := buf.WriteTo(cmd.OutOrStdout()); err != nil {
			return err
		}
	}

	if res.Changed && viper.GetBool("exit_code") {
		return errChangesFound
	}
	return nil
}
