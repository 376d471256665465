package runner

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ValentinKolb/kvcopy/lib/strategy"
)

// ErrInvalidConfig is returned by Validate (and Run) for an unusable configuration
var ErrInvalidConfig = errors.New("invalid runner configuration")

const (
	DefaultWorkers          = 4
	DefaultPattern          = "*"
	DefaultProgressInterval = 5 * time.Second
)

// Config describes one copy or verify run
type Config struct {
	Workers int     // Number of parallel workers, each with its own endpoint pair
	Rate    float64 // Max keys per second over all workers (0 = unlimited)

	Pattern string   // Glob pattern used to scan the source (ignored if Keys is set)
	Keys    []string // Explicit list of keys to copy

	Verify         bool // Verify every key after copying it
	VerifyOnly     bool // Do not copy, only verify
	FailOnMismatch bool // Fail the run if any key failed to copy or verify

	KeyTimeout       time.Duration // Timeout for processing a single key (0 = none)
	ProgressInterval time.Duration // Time between progress lines (0 = disabled)

	Strategy strategy.Options
}

// DefaultConfig returns the default configuration: auto strategy, all keys,
// no verification
func DefaultConfig() Config {
	return Config{
		Workers:          DefaultWorkers,
		Pattern:          DefaultPattern,
		ProgressInterval: DefaultProgressInterval,
		Strategy:         strategy.Options{Strategy: strategy.DefaultName},
	}
}

// Validate checks the configuration and fills in defaults for empty fields
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.Rate < 0 {
		return fmt.Errorf("%w: rate must not be negative, got %v", ErrInvalidConfig, c.Rate)
	}
	if c.KeyTimeout < 0 {
		return fmt.Errorf("%w: key timeout must not be negative", ErrInvalidConfig)
	}
	if c.Pattern == "" {
		c.Pattern = DefaultPattern
	}
	if _, err := strategy.ParseName(string(c.Strategy.Strategy)); err != nil {
		return err
	}
	if _, err := c.Strategy.BoolParam(strategy.ParamReplace, true); err != nil {
		return err
	}
	return nil
}

// Mode returns a short description of what the run does
func (c *Config) Mode() string {
	switch {
	case c.VerifyOnly:
		return "verify"
	case c.Verify:
		return "copy+verify"
	default:
		return "copy"
	}
}

func (c *Config) verifies() bool {
	return c.Verify || c.VerifyOnly
}

func (c *Config) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Run")
	addField("Mode", c.Mode())
	addField("Workers", fmt.Sprintf("%d", c.Workers))
	if c.Rate > 0 {
		addField("Rate Limit", fmt.Sprintf("%g keys/sec", c.Rate))
	} else {
		addField("Rate Limit", "unlimited")
	}
	if c.KeyTimeout > 0 {
		addField("Key Timeout", c.KeyTimeout.String())
	} else {
		addField("Key Timeout", "none")
	}
	if c.ProgressInterval > 0 {
		addField("Progress Interval", c.ProgressInterval.String())
	} else {
		addField("Progress Interval", "disabled")
	}

	addSection("Keys")
	if len(c.Keys) > 0 {
		addField("Explicit Keys", fmt.Sprintf("%d", len(c.Keys)))
	} else {
		addField("Pattern", c.Pattern)
	}

	addSection("Strategy")
	name := string(c.Strategy.Strategy)
	if name == "" {
		name = string(strategy.DefaultName)
	}
	addField("Requested", name)

	// Sort keys for consistent output
	params := make([]string, 0, len(c.Strategy.Params))
	for k := range c.Strategy.Params {
		params = append(params, k)
	}
	sort.Strings(params)
	for _, k := range params {
		addField(k, c.Strategy.Params[k])
	}

	addSection("Verification")
	addField("Verify", fmt.Sprintf("%t", c.verifies()))
	addField("Fail On Mismatch", fmt.Sprintf("%t", c.FailOnMismatch))

	return sb.String()
}
