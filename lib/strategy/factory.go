package strategy

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/kvcopy/lib/endpoint"
)

// --------------------------------------------------------------------------
// Kinds
// --------------------------------------------------------------------------

// Kind identifies a concrete strategy after the requested Name was resolved
type Kind int

const (
	KindCommandReplay Kind = iota + 1 // CommandReplay ("classic")
	KindBlockTransfer                 // BlockTransfer ("new")
)

func (k Kind) String() string {
	switch k {
	case KindCommandReplay:
		return string(NameClassic)
	case KindBlockTransfer:
		return string(NameNew)
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// constructor creates a strategy, the options are already validated
type constructor func(src, dst endpoint.Endpoint, ui UI, opts Options) (Strategy, error)

var constructors = map[Kind]constructor{
	KindCommandReplay: newCommandReplay,
	KindBlockTransfer: newBlockTransfer,
}

// --------------------------------------------------------------------------
// Compatibility Probe
// --------------------------------------------------------------------------

// dumpFormat returns the dump format of ep if it supports Dump and Restore
func dumpFormat(ctx context.Context, ep endpoint.Endpoint) (endpoint.DumpFormat, bool) {
	if !ep.SupportsFeature(endpoint.FeatureDump | endpoint.FeatureRestore) {
		return endpoint.DumpFormat{}, false
	}
	f, err := ep.DumpFormat(ctx)
	if err != nil || f.Family == "" {
		return endpoint.DumpFormat{}, false
	}
	return f, true
}

// Compatible reports whether keys can be moved from src to dst by block
// transfer: both endpoints support Dump and Restore, share the dump format
// family and dst is at least at the format version of src.
func Compatible(ctx context.Context, src, dst endpoint.Endpoint) bool {
	sf, ok := dumpFormat(ctx, src)
	if !ok {
		return false
	}
	df, ok := dumpFormat(ctx, dst)
	if !ok {
		return false
	}
	return df.CanRestoreFrom(sf)
}

// --------------------------------------------------------------------------
// Factory
// --------------------------------------------------------------------------

// Resolve decides which strategy to use for the requested name.
//
//	classic        -> KindCommandReplay (endpoints are not probed)
//	new            -> KindBlockTransfer, ErrIncompatibleEndpoints if not Compatible
//	auto (default) -> KindBlockTransfer if Compatible, KindCommandReplay otherwise
func Resolve(ctx context.Context, src, dst endpoint.Endpoint, opts Options) (Kind, error) {
	name, err := ParseName(string(opts.Strategy))
	if err != nil {
		return 0, err
	}

	switch name {
	case NameClassic:
		return KindCommandReplay, nil
	case NameNew:
		if !Compatible(ctx, src, dst) {
			return 0, fmt.Errorf("%w: %s -> %s", ErrIncompatibleEndpoints, src.Name(), dst.Name())
		}
		return KindBlockTransfer, nil
	default:
		if Compatible(ctx, src, dst) {
			return KindBlockTransfer, nil
		}
		return KindCommandReplay, nil
	}
}

// New creates the strategy of an already resolved kind. The options are
// copied, later changes by the caller have no effect on the strategy.
func New(kind Kind, src, dst endpoint.Endpoint, ui UI, opts Options) (Strategy, error) {
	ctor, ok := constructors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotImplemented, kind)
	}
	return ctor(src, dst, ui, opts)
}

// Select resolves the requested strategy and creates it.
// No endpoint is touched apart from the compatibility probe.
func Select(ctx context.Context, src, dst endpoint.Endpoint, ui UI, opts Options) (Strategy, error) {
	kind, err := Resolve(ctx, src, dst, opts)
	if err != nil {
		return nil, err
	}
	s, err := New(kind, src, dst, ui, opts)
	if err != nil {
		return nil, err
	}
	// Resolve already rejected unknown names
	name, _ := ParseName(string(opts.Strategy))
	trace(ui, "STRATEGY: requested %q, using %s", name, s)
	return s, nil
}
