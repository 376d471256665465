package strategy

import (
	"context"
	"sort"
	"time"

	"github.com/ValentinKolb/kvcopy/lib/endpoint"
)

// UI receives the debug traces of strategies and the verifier.
// Calls are fire and forget, a panicking UI never affects the result.
// dragonboat's logger.ILogger satisfies this interface.
type UI interface {
	Debugf(format string, args ...interface{})
}

// Verifier checks that a key holds the same value and expiry at the source
// and the destination. It is embedded by every strategy.
type Verifier struct {
	src endpoint.Endpoint
	dst endpoint.Endpoint
	ui  UI
}

// NewVerifier creates a verifier comparing src with dst
func NewVerifier(src, dst endpoint.Endpoint, ui UI) *Verifier {
	return &Verifier{src: src, dst: dst, ui: ui}
}

// trace forwards a message to ui and swallows any panic of ui
func trace(ui UI, format string, args ...interface{}) {
	if ui == nil {
		return
	}
	defer func() { _ = recover() }()
	ui.Debugf(format, args...)
}

func (v *Verifier) debugf(format string, args ...interface{}) {
	trace(v.ui, format, args...)
}

// Verify reports whether key has the same value and expiry at the source and
// the destination. It never panics and never returns an error: failures of
// either endpoint are compared like values, unknown types are not equal.
func (v *Verifier) Verify(ctx context.Context, key string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			v.debugf("BORK: %q verification aborted: %v", key, r)
			ok = false
		}
	}()

	v.debugf("VERIFY: %q", key)

	typ, err := v.src.Type(ctx, key)
	if err != nil {
		v.debugf("BORK: %q type query failed: %v", key, err)
		return false
	}

	switch typ {
	case endpoint.TypeString:
		ok = sameOutcome(ctx, v, key, func(ctx context.Context, ep endpoint.Endpoint) (string, error) {
			return ep.GetString(ctx, key)
		})
	case endpoint.TypeHash:
		ok = sameOutcome(ctx, v, key, func(ctx context.Context, ep endpoint.Endpoint) (map[string]string, error) {
			h, err := ep.GetHashAll(ctx, key)
			if h == nil {
				h = map[string]string{}
			}
			return h, err
		})
	case endpoint.TypeSortedSet:
		ok = sameOutcome(ctx, v, key, func(ctx context.Context, ep endpoint.Endpoint) ([]endpoint.Z, error) {
			zs, err := ep.GetSortedSetRangeWithScores(ctx, key)
			if zs == nil {
				zs = []endpoint.Z{}
			}
			return zs, err
		})
	case endpoint.TypeSet:
		ok = sameOutcome(ctx, v, key, func(ctx context.Context, ep endpoint.Endpoint) ([]string, error) {
			members, err := ep.GetSetMembers(ctx, key)
			if err != nil {
				return nil, err
			}
			// sets have no order
			sorted := append([]string{}, members...)
			sort.Strings(sorted)
			return sorted, nil
		})
	case endpoint.TypeList:
		ok = sameOutcome(ctx, v, key, func(ctx context.Context, ep endpoint.Endpoint) ([]string, error) {
			l, err := ep.GetListRange(ctx, key)
			if l == nil {
				l = []string{}
			}
			return l, err
		})
	default:
		v.debugf("BORK: %q has unknown type %q", key, typ.String())
		return false
	}
	if !ok {
		return false
	}

	return matchOutcome(ctx, v, key, func(ctx context.Context, ep endpoint.Endpoint) (time.Duration, error) {
		return ep.GetExpiry(ctx, key)
	}, equalTTL)
}

// sameOutcome captures op at both endpoints and compares the outcomes
func sameOutcome[T any](ctx context.Context, v *Verifier, key string, op func(context.Context, endpoint.Endpoint) (T, error)) bool {
	return matchOutcome(ctx, v, key, op, Outcome.Equal)
}

func matchOutcome[T any](ctx context.Context, v *Verifier, key string, op func(context.Context, endpoint.Endpoint) (T, error), equal func(a, b Outcome) bool) bool {
	src := Capture(ctx, v.src, op)
	dst := Capture(ctx, v.dst, op)
	if equal(src, dst) {
		return true
	}
	v.debugf("MISMATCH: %q source=%s destination=%s", key, src, dst)
	return false
}

// ttlTolerance is the largest difference between two remaining times to live
// that still compare equal. Both reads happen a few milliseconds apart and
// the copy itself may take a moment.
const ttlTolerance = time.Second

// equalTTL compares two expiry outcomes. Remaining times to live are equal
// if they differ by at most ttlTolerance, negative sentinels (no expiry)
// must be identical.
func equalTTL(a, b Outcome) bool {
	x, okA := a.Value.(time.Duration)
	y, okB := b.Value.(time.Duration)
	if !a.Returned() || !b.Returned() || !okA || !okB {
		return a.Equal(b)
	}
	if x < 0 || y < 0 {
		return x == y
	}
	d := x - y
	if d < 0 {
		d = -d
	}
	return d <= ttlTolerance
}
