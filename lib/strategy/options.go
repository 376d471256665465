package strategy

import (
	"fmt"
	"strconv"
	"strings"
)

// Name is the strategy requested by the user
type Name string

const (
	NameClassic Name = "classic" // Always use command replay
	NameNew     Name = "new"     // Require block transfer
	NameAuto    Name = "auto"    // Block transfer if possible, command replay otherwise
)

// DefaultName is used if no strategy is configured
const DefaultName = NameAuto

const (
	// OptionStrategy is the option key holding the strategy name
	OptionStrategy = "strategy"
	// ParamReplace controls whether existing destination keys are overwritten (default true)
	ParamReplace = "replace"
)

// ParseName validates a strategy name. The empty string selects DefaultName.
func ParseName(s string) (Name, error) {
	switch n := Name(strings.ToLower(strings.TrimSpace(s))); n {
	case "":
		return DefaultName, nil
	case NameClassic, NameNew, NameAuto:
		return n, nil
	default:
		return "", fmt.Errorf("%w: unknown strategy %q (expected classic, new or auto)", ErrInvalidConfiguration, s)
	}
}

// Options is the configuration of a strategy. Params are passed through to the
// concrete strategies unchanged.
type Options struct {
	Strategy Name
	Params   map[string]string
}

// OptionsFromMap builds Options from a flat key value map. The "strategy" key
// selects the strategy, all other keys become Params.
func OptionsFromMap(m map[string]string) (Options, error) {
	opts := Options{Params: make(map[string]string, len(m))}
	for k, v := range m {
		if k == OptionStrategy {
			continue
		}
		opts.Params[k] = v
	}
	name, err := ParseName(m[OptionStrategy])
	if err != nil {
		return Options{}, err
	}
	opts.Strategy = name
	return opts, nil
}

// Clone returns a deep copy of the options
func (o Options) Clone() Options {
	c := Options{Strategy: o.Strategy}
	if o.Params != nil {
		c.Params = make(map[string]string, len(o.Params))
		for k, v := range o.Params {
			c.Params[k] = v
		}
	}
	return c
}

// Param returns the raw value of a parameter
func (o Options) Param(key string) (string, bool) {
	v, ok := o.Params[key]
	return v, ok
}

// BoolParam parses a boolean parameter, def is returned if it is not set
func (o Options) BoolParam(key string, def bool) (bool, error) {
	v, ok := o.Param(key)
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: parameter %s=%q is not a boolean", ErrInvalidConfiguration, key, v)
	}
	return b, nil
}
