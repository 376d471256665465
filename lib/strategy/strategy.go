package strategy

import (
	"context"

	"github.com/ValentinKolb/kvcopy/lib/endpoint"
)

// Strategy copies single keys from a source to a destination endpoint.
// A strategy handles one key at a time and keeps no state between keys.
// It is not safe for concurrent use if its endpoints are not.
type Strategy interface {
	// Copy copies key to the destination. It returns false without an error if
	// the key was skipped (vanished from the source or kept at the destination).
	Copy(ctx context.Context, key string) (bool, error)
	// Verify reports whether key is identical at source and destination.
	Verify(ctx context.Context, key string) bool
	// String returns the display name of the strategy.
	String() string
}

// Display names of the strategies
const (
	DisplayClassic = "Classic"
	DisplayNew     = "New"
)

// base holds the state shared by all strategies
type base struct {
	*Verifier
	src  endpoint.Endpoint
	dst  endpoint.Endpoint
	opts Options

	replace bool // overwrite existing destination keys
}

func newBase(src, dst endpoint.Endpoint, ui UI, opts Options) (base, error) {
	opts = opts.Clone()
	replace, err := opts.BoolParam(ParamReplace, true)
	if err != nil {
		return base{}, err
	}
	return base{
		Verifier: NewVerifier(src, dst, ui),
		src:      src,
		dst:      dst,
		opts:     opts,
		replace:  replace,
	}, nil
}

// Options returns a copy of the options the strategy was created with
func (b *base) Options() Options {
	return b.opts.Clone()
}

// keepExisting reports whether Copy must skip key because it exists at the
// destination and replacing is disabled
func (b *base) keepExisting(ctx context.Context, key string) (bool, error) {
	if b.replace {
		return false, nil
	}
	exists, err := b.dst.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if exists {
		b.debugf("SKIP: %q exists at destination", key)
	}
	return exists, nil
}
