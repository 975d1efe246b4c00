package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/changescan/pkg/changescan/cache"
)

// PrettyFormatter renders styled output for a terminal.
type PrettyFormatter struct{}

func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Report) error {
	w.WriteString(f.header(r))
	w.WriteString("\n")
	w.WriteString(f.table(r))
	w.WriteString(f.footer(r))
	w.WriteString("\n")
	return nil
}

func (f *PrettyFormatter) header(r *Report) string {
	lines := []string{
		LabelStyle.Render("Root:") + " " + ValueStyle.Render(r.Root),
		strings.Join([]string{
			LabelStyle.Render("Scanned:") + " " + ValueStyle.Render(fmt.Sprintf("%s dirs, %s files, %s",
				humanize.Comma(int64(r.Stats.Dirs)),
				humanize.Comma(int64(r.Stats.Files)),
				humanize.IBytes(uint64(r.Stats.Bytes)))),
			LabelStyle.Render("in") + " " + ValueStyle.Render(formatDuration(r.Stats.Duration)),
		}, " "),
	}
	return HeaderBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) table(r *Report) string {
	if len(r.Changes) == 0 {
		return MutedStyle.Render("  No changes") + "\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("  %s%s\n", TableHeaderStyle.Render(padRight("KIND", 8)), TableHeaderStyle.Render("PATH")))
	for _, c := range r.Changes {
		kind := kindStyle(c.Kind).Render(padRight(c.Kind, 8))
		sb.WriteString(fmt.Sprintf("  %s  %s\n", kind, PathStyle.Render(displayPath(c))))
	}
	return sb.String()
}

func (f *PrettyFormatter) footer(r *Report) string {
	parts := []string{
		CreatedStyle.Render(fmt.Sprintf("+%d", r.Stats.Created)),
		ChangedStyle.Render(fmt.Sprintf("~%d", r.Stats.Changed)),
		DeletedStyle.Render(fmt.Sprintf("-%d", r.Stats.Deleted)),
		MutedStyle.Render("Use -o plain for unformatted output"),
	}
	return FooterBox.Render(strings.Join(parts, "  "))
}

func (f *PrettyFormatter) FormatHistory(w *bytes.Buffer, runs []cache.RunRecord) error {
	if len(runs) == 0 {
		w.WriteString(MutedStyle.Render("No recorded runs"))
		w.WriteString("\n")
		return nil
	}
	for _, run := range runs {
		fmt.Fprintf(w, "%s  %s %s %s  %s  %s\n",
			ValueStyle.Render(padRight(humanize.Time(run.Started), 16)),
			CreatedStyle.Render(padLeft(fmt.Sprintf("+%d", run.Created), 6)),
			ChangedStyle.Render(padLeft(fmt.Sprintf("~%d", run.Changed), 6)),
			DeletedStyle.Render(padLeft(fmt.Sprintf("-%d", run.Deleted), 6)),
			SizeStyle.Render(padLeft(formatDuration(run.Duration), 8)),
			PathStyle.Render(run.Root))
	}
	return nil
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatDuration formats d for people, e.g. "350ms", "2.5s", "3m 4s".
func formatDuration(d time.Duration) string {
	sec := d.Seconds()
	if sec < 1 {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

func init() {
	Register("pretty", func() Formatter { return &PrettyFormatter{} })
}

var _ Formatter = (*PrettyFormatter)(nil)
