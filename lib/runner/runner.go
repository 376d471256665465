package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ValentinKolb/kvcopy/lib/endpoint"
	"github.com/ValentinKolb/kvcopy/lib/strategy"
	"github.com/ValentinKolb/kvcopy/lib/ui"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var Logger = logger.GetLogger("runner")

// Runner copies (or verifies) many keys in parallel using one strategy per worker
type Runner struct {
	cfg Config
	src endpoint.Opener
	dst endpoint.Opener
	rep ui.Reporter

	id      string
	metrics *runMetrics

	mu        sync.Mutex
	failures  []Failure
	truncated bool
}

// worker owns one endpoint pair and the strategy working on it
type worker struct {
	src   endpoint.Endpoint
	dst   endpoint.Endpoint
	strat strategy.Strategy
}

func (w *worker) close() {
	if w.src != nil {
		_ = w.src.Close()
	}
	if w.dst != nil {
		_ = w.dst.Close()
	}
}

// New creates a runner. src and dst are called once per worker (and once more
// for scanning the source), rep receives progress, warnings and the strategy
// traces. If rep is nil the runner's package logger is used.
func New(cfg Config, src, dst endpoint.Opener, rep ui.Reporter) *Runner {
	if rep == nil {
		rep = Logger
	}
	return &Runner{
		cfg:     cfg,
		src:     src,
		dst:     dst,
		rep:     rep,
		id:      uuid.NewString(),
		metrics: newRunMetrics(),
	}
}

// ID returns the unique id of the run
func (r *Runner) ID() string {
	return r.id
}

// WriteMetrics writes the metrics of the run in the Prometheus text format
func (r *Runner) WriteMetrics(w io.Writer) {
	r.metrics.writePrometheus(w)
}

// Run processes all keys and returns the report. Errors of single keys are
// counted and listed in the report, they do not abort the run. The run is
// aborted if an endpoint cannot be opened, the strategy cannot be selected,
// the source scan fails or ctx is cancelled; a partial report is returned
// together with the error in the last two cases.
//
// With Config.FailOnMismatch the returned error wraps strategy.ErrVerificationFailed
// if any key failed to copy or verify.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}
	defer r.metrics.stop()

	workers, err := r.openWorkers(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, w := range workers {
			w.close()
		}
	}()

	report := &Report{
		RunID:       r.id,
		Mode:        r.cfg.Mode(),
		Source:      workers[0].src.Name(),
		Destination: workers[0].dst.Name(),
		Strategy:    workers[0].strat.String(),
		Started:     time.Now(),
	}
	r.rep.Infof("run %s: %s %s -> %s using %s strategy with %d workers",
		r.id, report.Mode, report.Source, report.Destination, report.Strategy, len(workers))

	progress := ui.StartProgress(r.cfg.ProgressInterval, r.rep, func() string {
		return r.status(report.Started)
	})

	keys := make(chan string, 2*len(workers))
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(keys)
		return r.produce(gCtx, keys)
	})
	for _, w := range workers {
		w := w
		g.Go(func() error {
			return r.consume(gCtx, w, keys)
		})
	}
	runErr := g.Wait()
	progress.Stop()

	r.fillReport(report)
	if runErr != nil {
		report.Error = runErr.Error()
		return report, runErr
	}

	r.rep.Infof("run %s finished: %s", r.id, report.Summary())
	if r.cfg.FailOnMismatch && !report.Succeeded() {
		return report, fmt.Errorf("%w: %d keys failed, %d keys mismatched",
			strategy.ErrVerificationFailed, report.Keys.Failed, report.Keys.Mismatched)
	}
	return report, nil
}

// --------------------------------------------------------------------------
// Setup
// --------------------------------------------------------------------------

// openWorkers opens one endpoint pair per worker. The strategy kind is
// resolved once on the first pair and used for all workers.
func (r *Runner) openWorkers(ctx context.Context) (workers []*worker, err error) {
	defer func() {
		if err != nil {
			for _, w := range workers {
				w.close()
			}
			workers = nil
		}
	}()

	var kind strategy.Kind
	for i := 0; i < r.cfg.Workers; i++ {
		w := &worker{}
		workers = append(workers, w)

		if w.src, err = r.src(ctx); err != nil {
			return workers, fmt.Errorf("open source: %w", err)
		}
		if w.dst, err = r.dst(ctx); err != nil {
			return workers, fmt.Errorf("open destination: %w", err)
		}

		if i == 0 {
			if kind, err = strategy.Resolve(ctx, w.src, w.dst, r.cfg.Strategy); err != nil {
				return workers, err
			}
			Logger.Debugf("strategy %q resolved to %s", r.cfg.Strategy.Strategy, kind)
		}
		if w.strat, err = strategy.New(kind, w.src, w.dst, r.rep, r.cfg.Strategy); err != nil {
			return workers, err
		}
	}
	return workers, nil
}

// --------------------------------------------------------------------------
// Producer and Consumers
// --------------------------------------------------------------------------

// produce feeds the keys to process into keys, honoring the rate limit
func (r *Runner) produce(ctx context.Context, keys chan<- string) error {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if r.cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.cfg.Rate), 1)
	}

	send := func(key string) error {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		select {
		case keys <- key:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if len(r.cfg.Keys) > 0 {
		for _, key := range r.cfg.Keys {
			if err := send(key); err != nil {
				return err
			}
		}
		return nil
	}

	// scan with a dedicated connection, the workers' connections are busy
	scanner, err := r.src(ctx)
	if err != nil {
		return fmt.Errorf("open source for scanning: %w", err)
	}
	defer scanner.Close()

	if !scanner.SupportsFeature(endpoint.FeatureScan) {
		return fmt.Errorf("%s does not support scanning, specify the keys explicitly", scanner.Name())
	}
	if err := scanner.Scan(ctx, r.cfg.Pattern, send); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("scan %s: %w", scanner.Name(), err)
	}
	return nil
}

// consume processes keys until the channel is closed or ctx is done
func (r *Runner) consume(ctx context.Context, w *worker, keys <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case key, ok := <-keys:
			if !ok {
				return nil
			}
			if err := r.process(ctx, w, key); err != nil {
				return err
			}
		}
	}
}

// process copies and/or verifies a single key. Only an error of ctx is returned.
func (r *Runner) process(ctx context.Context, w *worker, key string) error {
	start := time.Now()
	defer r.metrics.observe(start)

	keyCtx := ctx
	if r.cfg.KeyTimeout > 0 {
		var cancel context.CancelFunc
		keyCtx, cancel = context.WithTimeout(ctx, r.cfg.KeyTimeout)
		defer cancel()
	}

	if !r.cfg.VerifyOnly {
		copied, err := w.strat.Copy(keyCtx, key)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.metrics.failed.Inc()
			r.rep.Warningf("copy of %q failed: %v", key, err)
			r.addFailure(key, err.Error())
			return nil
		}
		if !copied {
			r.metrics.skipped.Inc()
			return nil
		}
		r.metrics.copied.Inc()
	}

	if !r.cfg.verifies() {
		return nil
	}
	if w.strat.Verify(keyCtx, key) {
		r.metrics.verified.Inc()
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	r.metrics.mismatched.Inc()
	r.rep.Warningf("verification of %q failed", key)
	r.addFailure(key, "verification failed")
	return nil
}

// --------------------------------------------------------------------------
// Reporting
// --------------------------------------------------------------------------

func (r *Runner) addFailure(key, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.failures) >= maxFailures {
		r.truncated = true
		return
	}
	r.failures = append(r.failures, Failure{Key: key, Reason: reason})
}

func (r *Runner) status(started time.Time) string {
	c := r.metrics.counts()
	elapsed := time.Since(started)
	var perSec float64
	if elapsed > 0 {
		perSec = float64(c.Processed) / elapsed.Seconds()
	}
	return fmt.Sprintf("%d keys processed (%d copied, %d skipped, %d failed, %d mismatched), %.0f keys/sec",
		c.Processed, c.Copied, c.Skipped, c.Failed, c.Mismatched, perSec)
}

func (r *Runner) fillReport(report *Report) {
	report.Duration = time.Since(report.Started)
	report.Keys = r.metrics.counts()
	report.Latency = r.metrics.latencySummary()
	if secs := report.Duration.Seconds(); secs > 0 {
		report.KeysPerSec = float64(report.Keys.Processed) / secs
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	report.Failures = append([]Failure(nil), r.failures...)
	report.Truncated = r.truncated
}

// IsAborted reports whether err means the run was cancelled rather than failed
func IsAborted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
