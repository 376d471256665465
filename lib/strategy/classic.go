package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/ValentinKolb/kvcopy/lib/endpoint"
	"github.com/ValentinKolb/kvcopy/lib/endpoint/codec"
)

// CommandReplay copies a key by reading its typed value at the source and
// replaying the matching write commands at the destination. It works with any
// pair of endpoints.
type CommandReplay struct {
	base
}

var _ Strategy = (*CommandReplay)(nil)

func newCommandReplay(src, dst endpoint.Endpoint, ui UI, opts Options) (Strategy, error) {
	b, err := newBase(src, dst, ui, opts)
	if err != nil {
		return nil, err
	}
	return &CommandReplay{base: b}, nil
}

func (c *CommandReplay) String() string {
	return DisplayClassic
}

// Copy implements Strategy
func (c *CommandReplay) Copy(ctx context.Context, key string) (bool, error) {
	typ, err := c.src.Type(ctx, key)
	if err != nil {
		return false, fmt.Errorf("type of %q: %w", key, err)
	}
	if typ == endpoint.TypeNone {
		c.debugf("SKIP: %q vanished from source", key)
		return false, nil
	}
	if !typ.Known() {
		return false, fmt.Errorf("%w: %q has type %q", ErrUnsupportedType, key, typ.String())
	}

	rec, err := readRecord(ctx, c.src, key, typ)
	if errors.Is(err, endpoint.ErrNotFound) || (err == nil && rec.Empty()) {
		c.debugf("SKIP: %q vanished from source", key)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %q: %w", key, err)
	}

	ttl, err := c.src.GetExpiry(ctx, key)
	if errors.Is(err, endpoint.ErrNotFound) {
		c.debugf("SKIP: %q vanished from source", key)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("expiry of %q: %w", key, err)
	}

	keep, err := c.keepExisting(ctx, key)
	if err != nil {
		return false, fmt.Errorf("exists %q: %w", key, err)
	}
	if keep {
		return false, nil
	}

	// the collection writers add to existing values
	if err := c.dst.Delete(ctx, key); err != nil {
		return false, fmt.Errorf("delete %q: %w", key, err)
	}
	if err := writeRecord(ctx, c.dst, key, rec); err != nil {
		return false, fmt.Errorf("write %q: %w", key, err)
	}
	if ttl != endpoint.NoExpiry {
		if err := c.dst.Expire(ctx, key, ttl); err != nil {
			return false, fmt.Errorf("expire %q: %w", key, err)
		}
	}
	return true, nil
}

// readRecord reads the full value of key using the reader matching typ
func readRecord(ctx context.Context, ep endpoint.Endpoint, key string, typ endpoint.ValueType) (codec.Record, error) {
	rec := codec.Record{Type: typ}
	var err error
	switch typ {
	case endpoint.TypeString:
		rec.String, err = ep.GetString(ctx, key)
	case endpoint.TypeHash:
		rec.Hash, err = ep.GetHashAll(ctx, key)
	case endpoint.TypeSortedSet:
		rec.ZSet, err = ep.GetSortedSetRangeWithScores(ctx, key)
	case endpoint.TypeSet:
		rec.Set, err = ep.GetSetMembers(ctx, key)
	case endpoint.TypeList:
		rec.List, err = ep.GetListRange(ctx, key)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedType, typ.String())
	}
	return rec, err
}

// writeRecord replays rec at key using the writer matching its type
func writeRecord(ctx context.Context, ep endpoint.Endpoint, key string, rec codec.Record) error {
	switch rec.Type {
	case endpoint.TypeString:
		return ep.SetString(ctx, key, rec.String)
	case endpoint.TypeHash:
		return ep.SetHash(ctx, key, rec.Hash)
	case endpoint.TypeSortedSet:
		return ep.AddSortedSet(ctx, key, rec.ZSet)
	case endpoint.TypeSet:
		return ep.AddSet(ctx, key, rec.Set)
	case endpoint.TypeList:
		return ep.PushList(ctx, key, rec.List)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedType, rec.Type.String())
	}
}
