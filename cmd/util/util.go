package util

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ValentinKolb/kvcopy/lib/endpoint"
	"github.com/ValentinKolb/kvcopy/lib/endpoint/badgerstore"
	"github.com/ValentinKolb/kvcopy/lib/endpoint/codec"
	"github.com/ValentinKolb/kvcopy/lib/endpoint/memstore"
	"github.com/ValentinKolb/kvcopy/lib/endpoint/redisstore"
	"github.com/ValentinKolb/kvcopy/lib/runner"
	"github.com/ValentinKolb/kvcopy/lib/strategy"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Logger = logger.GetLogger("cli")

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads .env files and binds environment variables (KVCOPY_<FLAG>)
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("kvcopy")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// --------------------------------------------------------------------------
// Run flags
// --------------------------------------------------------------------------

// SetupRunFlags adds the flags shared by the copy and verify commands
func SetupRunFlags(cmd *cobra.Command) {
	key := "strategy"
	cmd.PersistentFlags().String(key, string(strategy.DefaultName), WrapString("The copy strategy (classic, new, auto). 'new' moves opaque dumps and requires compatible endpoints, 'classic' replays typed writes, 'auto' picks 'new' if possible"))

	key = "workers"
	cmd.PersistentFlags().Int(key, runner.DefaultWorkers, WrapString("Number of parallel workers, every worker uses its own connections"))

	key = "rate"
	cmd.PersistentFlags().Float64(key, 0, WrapString("Maximum number of keys per second (0 = unlimited)"))

	key = "pattern"
	cmd.PersistentFlags().String(key, runner.DefaultPattern, WrapString("Glob pattern selecting the keys of the source"))

	key = "key"
	cmd.PersistentFlags().StringSlice(key, nil, WrapString("Process only this key (can be repeated, overrides --pattern)"))

	key = "fail-on-mismatch"
	cmd.PersistentFlags().Bool(key, false, WrapString("Exit with an error if any key failed to copy or verify"))

	key = "key-timeout"
	cmd.PersistentFlags().Duration(key, 0, WrapString("Timeout for processing a single key (0 = none)"))

	key = "progress-interval"
	cmd.PersistentFlags().Duration(key, runner.DefaultProgressInterval, WrapString("Time between progress messages (0 = disabled)"))

	key = "report"
	cmd.PersistentFlags().String(key, "", WrapString("Write the run report as YAML to this file ('-' for stdout)"))

	key = "metrics-file"
	cmd.PersistentFlags().String(key, "", WrapString("Write the run metrics in the Prometheus text format to this file"))
}

// GetRunnerConfig reads the run configuration from viper
func GetRunnerConfig() (runner.Config, error) {
	cfg := runner.DefaultConfig()
	cfg.Workers = viper.GetInt("workers")
	cfg.Rate = viper.GetFloat64("rate")
	cfg.Pattern = viper.GetString("pattern")
	cfg.FailOnMismatch = viper.GetBool("fail-on-mismatch")
	cfg.KeyTimeout = viper.GetDuration("key-timeout")
	cfg.ProgressInterval = viper.GetDuration("progress-interval")

	for _, k := range viper.GetStringSlice("key") {
		if k = strings.TrimSpace(k); k != "" {
			cfg.Keys = append(cfg.Keys, k)
		}
	}

	opts := map[string]string{strategy.OptionStrategy: viper.GetString("strategy")}
	if viper.IsSet("replace") {
		opts[strategy.ParamReplace] = fmt.Sprintf("%t", viper.GetBool("replace"))
	}
	var err error
	if cfg.Strategy, err = strategy.OptionsFromMap(opts); err != nil {
		return runner.Config{}, err
	}

	return cfg, cfg.Validate()
}

// --------------------------------------------------------------------------
// Endpoints
// --------------------------------------------------------------------------

// GetCodec creates the record codec based on configuration
func GetCodec() (codec.ICodec, error) {
	return codec.ByName(viper.GetString("codec"))
}

// OpenEndpoint parses an endpoint url and returns an opener for it together
// with a function releasing the resources shared by all opened endpoints.
//
//	redis://[user:pass@]host:port/db   one connection per opened endpoint
//	rediss://...                       same with TLS
//	badger:///path/to/dir              embedded database, opened once and shared
//	mem://[/path/to/snapshot]          in memory, optionally loaded from and saved to a snapshot file
func OpenEndpoint(rawURL string) (endpoint.Opener, func() error, error) {
	noop := func() error { return nil }

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid endpoint url %q: %w", rawURL, err)
	}

	switch u.Scheme {
	case "redis", "rediss":
		opts := redisstore.Options{
			URL:     rawURL,
			Timeout: viper.GetDuration("timeout"),
		}
		return func(ctx context.Context) (endpoint.Endpoint, error) {
			return redisstore.Open(ctx, opts)
		}, noop, nil

	case "badger":
		dir := filepath.Join(u.Host, u.Path)
		if dir == "" || dir == "." {
			return nil, nil, fmt.Errorf("invalid endpoint url %q: missing database directory", rawURL)
		}
		c, err := GetCodec()
		if err != nil {
			return nil, nil, err
		}
		opts := badgerstore.DefaultOptions(dir)
		opts.Codec = c
		ep, err := badgerstore.Open(opts)
		if err != nil {
			return nil, nil, err
		}
		return endpoint.SharedOpener(ep), ep.Close, nil

	case "mem":
		c, err := GetCodec()
		if err != nil {
			return nil, nil, err
		}
		opts := memstore.DefaultOptions()
		opts.Codec = c
		opts.SnapshotPath = filepath.Join(u.Host, u.Path)
		if opts.SnapshotPath == "." {
			opts.SnapshotPath = ""
		}
		ep, err := memstore.NewMemoryStore(opts)
		if err != nil {
			return nil, nil, err
		}
		return endpoint.SharedOpener(ep), ep.Close, nil

	default:
		return nil, nil, fmt.Errorf("invalid endpoint url %q: unknown scheme %q (expected one of: redis, rediss, badger, mem)", rawURL, u.Scheme)
	}
}

// --------------------------------------------------------------------------
// Execution
// --------------------------------------------------------------------------

// Run executes a copy or verify run between the endpoints given as urls and
// writes the report and metrics files if configured
func Run(ctx context.Context, cfg runner.Config, srcURL, dstURL string) error {
	src, closeSrc, err := OpenEndpoint(srcURL)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	defer func() {
		if err := closeSrc(); err != nil {
			Logger.Errorf("closing source: %v", err)
		}
	}()

	dst, closeDst, err := OpenEndpoint(dstURL)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	defer func() {
		if err := closeDst(); err != nil {
			Logger.Errorf("closing destination: %v", err)
		}
	}()

	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(cfg.String())

	r := runner.New(cfg, src, dst, nil)
	report, runErr := r.Run(ctx)

	if report != nil {
		fmt.Println(report.Summary())
		if err := writeOutput(viper.GetString("report"), report.WriteYAML); err != nil {
			Logger.Errorf("writing report: %v", err)
		}
		if err := writeOutput(viper.GetString("metrics-file"), func(w io.Writer) error {
			r.WriteMetrics(w)
			return nil
		}); err != nil {
			Logger.Errorf("writing metrics: %v", err)
		}
	}
	return runErr
}

// writeOutput calls write with the file at path, '-' is stdout and the
// empty path skips writing
func writeOutput(path string, write func(io.Writer) error) error {
	switch path {
	case "":
		return nil
	case "-":
		return write(os.Stdout)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// DefaultTimeout is the default dial, read and write timeout of network endpoints
const DefaultTimeout = 10 * time.Second
