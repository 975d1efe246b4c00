package output

import (
	"bytes"
	"encoding/json"

	"github.com/jamesainslie/changescan/pkg/changescan/cache"
)

type jsonReport struct {
	*Report
	Duration string `json:"duration"`
}

type jsonRun struct {
	RunID    string `json:"run_id"`
	Root     string `json:"root"`
	Mode     string `json:"mode"`
	Strategy string `json:"strategy"`
	Started  string `json:"started"`
	Duration string `json:"duration"`
	Created  int    `json:"created"`
	Changed  int    `json:"changed"`
	Deleted  int    `json:"deleted"`
	Dirs     int    `json:"dirs"`
	Files    int    `json:"files"`
	Bytes    int64  `json:"bytes"`
}

func toJSONRuns(runs []cache.RunRecord) []jsonRun {
	out := make([]jsonRun, len(runs))
	for i, r := range runs {
		out[i] = jsonRun{
			RunID:    r.RunID,
			Root:     r.Root,
			Mode:     r.Mode,
			Strategy: r.Strategy,
			Started:  r.Started.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			Duration: r.Duration.String(),
			Created:  r.Created,
			Changed:  r.Changed,
			Deleted:  r.Deleted,
			Dirs:     r.Dirs,
			Files:    r.Files,
			Bytes:    r.Bytes,
		}
	}
	return out
}

// JSONFormatter writes one indented JSON document.
type JSONFormatter struct{}

func (f *JSONFormatter) Format(w *bytes.Buffer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonReport{Report: r, Duration: r.Stats.Duration.String()})
}

func (f *JSONFormatter) FormatHistory(w *bytes.Buffer, runs []cache.RunRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(toJSONRuns(runs))
}

// JSONLFormatter writes one compact JSON object per change or run, for
// streaming into tools such as jq.
type JSONLFormatter struct{}

func (f *JSONLFormatter) Format(w *bytes.Buffer, r *Report) error {
	for _, c := range r.Changes {
		if err := f.FormatChange(w, c); err != nil {
			return err
		}
	}
	return nil
}

func (f *JSONLFormatter) FormatChange(w *bytes.Buffer, c Change) error {
	return json.NewEncoder(w).Encode(c)
}

func (f *JSONLFormatter) FormatHistory(w *bytes.Buffer, runs []cache.RunRecord) error {
	enc := json.NewEncoder(w)
	for _, run := range toJSONRuns(runs) {
		if err := enc.Encode(run); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	Register("json", func() Formatter { return &JSONFormatter{} })
	Register("jsonl", func() Formatter { return &JSONLFormatter{} })
}

var (
	_ Formatter = (*JSONFormatter)(nil)
	_ LineFormatter = (*JSONLFormatter)(nil)
)
