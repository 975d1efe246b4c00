package output

import (
	"bytes"

	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/changescan/pkg/changescan/cache"
)

type yamlReport struct {
	RunID    string   `yaml:"run_id"`
	Root     string   `yaml:"root"`
	Started  string   `yaml:"started"`
	Duration string   `yaml:"duration"`
	Stats    Stats    `yaml:"stats"`
	Changes  []Change `yaml:"changes"`
}

type yamlRun struct {
	RunID    string `yaml:"run_id"`
	Root     string `yaml:"root"`
	Started  string `yaml:"started"`
	Duration string `yaml:"duration"`
	Created  int    `yaml:"created"`
	Changed  int    `yaml:"changed"`
	Deleted  int    `yaml:"deleted"`
}

// YAMLFormatter writes a YAML document.
type YAMLFormatter struct{}

func (f *YAMLFormatter) Format(w *bytes.Buffer, r *Report) error {
	return f.encode(w, yamlReport{
		RunID:    r.RunID,
		Root:     r.Root,
		Started:  r.Started.Format("2006-01-02T15:04:05Z07:00"),
		Duration: r.Stats.Duration.String(),
		Stats:    r.Stats,
		Changes:  r.Changes,
	})
}

func (f *YAMLFormatter) FormatHistory(w *bytes.Buffer, runs []cache.RunRecord) error {
	out := make([]yamlRun, len(runs))
	for i, r := range runs {
		out[i] = yamlRun{
			RunID:    r.RunID,
			Root:     r.Root,
			Started:  r.Started.Format("2006-01-02T15:04:05Z07:00"),
			Duration: r.Duration.String(),
			Created:  r.Created,
			Changed:  r.Changed,
			Deleted:  r.Deleted,
		}
	}
	return f.encode(w, out)
}

func (f *YAMLFormatter) encode(w *bytes.Buffer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func init() {
	Register("yaml", func() Formatter { return &YAMLFormatter{} })
}

var _ Formatter = (*YAMLFormatter)(nil)
