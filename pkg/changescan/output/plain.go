package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/jamesainslie/changescan/pkg/changescan/cache"
)

// PlainFormatter writes one change per line, "<symbol> <path>", for
// scripting. Directories end in a slash.
type PlainFormatter struct{}

func (f *PlainFormatter) Format(w *bytes.Buffer, r *Report) error {
	for _, c := range r.Changes {
		if err := f.FormatChange(w, c); err != nil {
			return err
		}
	}
	return nil
}

func (f *PlainFormatter) FormatChange(w *bytes.Buffer, c Change) error {
	fmt.Fprintf(w, "%s %s\n", kindSymbol(c.Kind), displayPath(c))
	return nil
}

func (f *PlainFormatter) FormatHistory(w *bytes.Buffer, runs []cache.RunRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tCREATED\tCHANGED\tDELETED\tDURATION\tROOT")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%s\n",
			run.Started.Format(time.RFC3339), run.Created, run.Changed, run.Deleted,
			run.Duration.Round(time.Millisecond), run.Root)
	}
	return tw.Flush()
}

func init() {
	Register("plain", func() Formatter { return &PlainFormatter{} })
}

var _ LineFormatter = (*PlainFormatter)(nil)
