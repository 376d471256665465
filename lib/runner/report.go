package runner

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// maxFailures caps the number of failed keys listed in a report
const maxFailures = 100

// Counts are the per key results of a run
type Counts struct {
	Processed  uint64 `yaml:"processed"`
	Copied     uint64 `yaml:"copied"`
	Skipped    uint64 `yaml:"skipped"`
	Failed     uint64 `yaml:"failed"`
	Verified   uint64 `yaml:"verified"`
	Mismatched uint64 `yaml:"mismatched"`
}

// Latency summarizes the time needed to process a single key
type Latency struct {
	Mean time.Duration `yaml:"mean"`
	P50  time.Duration `yaml:"p50"`
	P99  time.Duration `yaml:"p99"`
	Max  time.Duration `yaml:"max"`
}

// Failure is a key that could not be copied or did not verify
type Failure struct {
	Key    string `yaml:"key"`
	Reason string `yaml:"reason"`
}

// Report is the summary of a finished (or aborted) run
type Report struct {
	RunID       string        `yaml:"run_id"`
	Mode        string        `yaml:"mode"`
	Source      string        `yaml:"source"`
	Destination string        `yaml:"destination"`
	Strategy    string        `yaml:"strategy"`
	Started     time.Time     `yaml:"started"`
	Duration    time.Duration `yaml:"duration"`
	KeysPerSec  float64       `yaml:"keys_per_second"`
	Keys        Counts        `yaml:"keys"`
	Latency     Latency       `yaml:"latency"`
	Failures    []Failure     `yaml:"failures,omitempty"`
	Truncated   bool          `yaml:"failures_truncated,omitempty"`
	Error       string        `yaml:"error,omitempty"`
}

// Succeeded reports whether every processed key was copied (or skipped) and,
// if verified, matched
func (r *Report) Succeeded() bool {
	return r.Error == "" && r.Keys.Failed == 0 && r.Keys.Mismatched == 0
}

// WriteYAML writes the report as a YAML document
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}

// Summary returns a one line description of the report
func (r *Report) Summary() string {
	return fmt.Sprintf("%s %s -> %s (%s): %d keys in %s, %d copied, %d skipped, %d failed, %d verified, %d mismatched",
		r.Mode, r.Source, r.Destination, r.Strategy,
		r.Keys.Processed, r.Duration.Round(time.Millisecond),
		r.Keys.Copied, r.Keys.Skipped, r.Keys.Failed, r.Keys.Verified, r.Keys.Mismatched)
}
