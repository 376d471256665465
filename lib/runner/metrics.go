package runner

import (
	"fmt"
	"io"
	"time"

	"github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
)

// Result labels of the kvcopy_keys_total counter
const (
	resultCopied     = "copied"
	resultSkipped    = "skipped"
	resultFailed     = "failed"
	resultVerified   = "verified"
	resultMismatched = "mismatched"
)

// runMetrics holds the metrics of a single run. Every run uses its own set so
// concurrent runs in one process do not mix their numbers.
type runMetrics struct {
	set *metrics.Set

	processed  *metrics.Counter
	copied     *metrics.Counter
	skipped    *metrics.Counter
	failed     *metrics.Counter
	verified   *metrics.Counter
	mismatched *metrics.Counter
	duration   *metrics.Histogram

	// latency keeps a decaying sample for the percentiles of the report
	latency gometrics.Timer
}

func keysTotal(result string) string {
	return fmt.Sprintf(`kvcopy_keys_total{result=%q}`, result)
}

func newRunMetrics() *runMetrics {
	set := metrics.NewSet()
	return &runMetrics{
		set:        set,
		processed:  set.NewCounter("kvcopy_keys_processed_total"),
		copied:     set.NewCounter(keysTotal(resultCopied)),
		skipped:    set.NewCounter(keysTotal(resultSkipped)),
		failed:     set.NewCounter(keysTotal(resultFailed)),
		verified:   set.NewCounter(keysTotal(resultVerified)),
		mismatched: set.NewCounter(keysTotal(resultMismatched)),
		duration:   set.NewHistogram("kvcopy_key_duration_seconds"),
		latency:    gometrics.NewTimer(),
	}
}

// observe records the processing time of one key
func (m *runMetrics) observe(start time.Time) {
	m.processed.Inc()
	m.duration.UpdateDuration(start)
	m.latency.UpdateSince(start)
}

func (m *runMetrics) counts() Counts {
	return Counts{
		Processed:  m.processed.Get(),
		Copied:     m.copied.Get(),
		Skipped:    m.skipped.Get(),
		Failed:     m.failed.Get(),
		Verified:   m.verified.Get(),
		Mismatched: m.mismatched.Get(),
	}
}

func (m *runMetrics) latencySummary() Latency {
	if m.latency.Count() == 0 {
		return Latency{}
	}
	ps := m.latency.Percentiles([]float64{0.5, 0.99})
	return Latency{
		Mean: time.Duration(m.latency.Mean()),
		P50:  time.Duration(ps[0]),
		P99:  time.Duration(ps[1]),
		Max:  time.Duration(m.latency.Max()),
	}
}

func (m *runMetrics) writePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
}

func (m *runMetrics) stop() {
	m.latency.Stop()
}
