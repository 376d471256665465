package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/kvcopy/lib/endpoint"
)

// BlockTransfer copies a key as one opaque blob using Dump at the source and
// Restore at the destination. Both endpoints must share a dump format, which
// is checked by Select.
type BlockTransfer struct {
	base
}

var _ Strategy = (*BlockTransfer)(nil)

func newBlockTransfer(src, dst endpoint.Endpoint, ui UI, opts Options) (Strategy, error) {
	b, err := newBase(src, dst, ui, opts)
	if err != nil {
		return nil, err
	}
	return &BlockTransfer{base: b}, nil
}

func (b *BlockTransfer) String() string {
	return DisplayNew
}

// Copy implements Strategy
func (b *BlockTransfer) Copy(ctx context.Context, key string) (bool, error) {
	blob, err := b.src.Dump(ctx, key)
	if errors.Is(err, endpoint.ErrNotFound) {
		b.debugf("SKIP: %q vanished from source", key)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("dump %q: %w", key, err)
	}

	ttl, err := b.src.GetExpiry(ctx, key)
	if errors.Is(err, endpoint.ErrNotFound) {
		b.debugf("SKIP: %q vanished from source", key)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("expiry of %q: %w", key, err)
	}
	switch {
	case ttl == endpoint.NoExpiry:
		ttl = 0
	case ttl <= 0:
		// about to expire, 0 would make it persistent
		ttl = time.Millisecond
	}

	keep, err := b.keepExisting(ctx, key)
	if err != nil {
		return false, fmt.Errorf("exists %q: %w", key, err)
	}
	if keep {
		return false, nil
	}

	if err := b.dst.Restore(ctx, key, ttl, blob, b.replace); err != nil {
		return false, fmt.Errorf("restore %q: %w", key, err)
	}
	return true, nil
}
