package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/ValentinKolb/kvcopy/lib/endpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyIdenticalString(t *testing.T) {
	ctx := context.Background()
	src, dst := newMem(t), newMem(t)
	require.NoError(t, src.SetString(ctx, "foo", "bar"))
	require.NoError(t, dst.SetString(ctx, "foo", "bar"))

	ui := &recorder{}
	assert.True(t, NewVerifier(src, dst, ui).Verify(ctx, "foo"))
	assert.True(t, ui.contains(`VERIFY: "foo"`))
	assert.False(t, ui.contains("MISMATCH"))
}

func TestVerifyHashMismatch(t *testing.T) {
	ctx := context.Background()
	src, dst := newMem(t), newMem(t)
	require.NoError(t, src.SetHash(ctx, "h", map[string]string{"a": "1", "b": "2"}))
	require.NoError(t, dst.SetHash(ctx, "h", map[string]string{"a": "1", "b": "3"}))

	ui := &recorder{}
	assert.False(t, NewVerifier(src, dst, ui).Verify(ctx, "h"))
	assert.True(t, ui.contains(`MISMATCH: "h"`))
}

func TestVerifyUnknownType(t *testing.T) {
	ctx := context.Background()
	src := &fakeType{Endpoint: newMem(t), typ: "stream"}
	dst := &fakeType{Endpoint: newMem(t), typ: "stream"}

	ui := &recorder{}
	assert.False(t, NewVerifier(src, dst, ui).Verify(ctx, "events"))
	assert.True(t, ui.contains(`BORK: "events" has unknown type "stream"`))
	assert.Zero(t, src.reads.Load())
	assert.Zero(t, dst.reads.Load())
}

func TestVerifyMissingDestination(t *testing.T) {
	ctx := context.Background()
	src, dst := newMem(t), newMem(t)
	require.NoError(t, src.SetString(ctx, "foo", "bar"))

	ui := &recorder{}
	assert.False(t, NewVerifier(src, dst, ui).Verify(ctx, "foo"))
	assert.True(t, ui.contains(`source=returned("bar")`))
	assert.True(t, ui.contains("destination=raised("))
}

func TestVerifySetOrder(t *testing.T) {
	ctx := context.Background()
	src, dst := newMem(t), newMem(t)
	require.NoError(t, src.AddSet(ctx, "s", []string{"z", "a", "m"}))
	require.NoError(t, dst.AddSet(ctx, "s", []string{"a", "m", "z"}))

	assert.True(t, NewVerifier(src, dst, nil).Verify(ctx, "s"))

	require.NoError(t, dst.AddSet(ctx, "s", []string{"b"}))
	assert.False(t, NewVerifier(src, dst, nil).Verify(ctx, "s"))
}

func TestVerifyListOrder(t *testing.T) {
	ctx := context.Background()
	src, dst := newMem(t), newMem(t)
	require.NoError(t, src.PushList(ctx, "l", []string{"a", "b"}))
	require.NoError(t, dst.PushList(ctx, "l", []string{"b", "a"}))

	assert.False(t, NewVerifier(src, dst, nil).Verify(ctx, "l"))
}

func TestVerifySortedSet(t *testing.T) {
	ctx := context.Background()
	src, dst := newMem(t), newMem(t)
	require.NoError(t, src.AddSortedSet(ctx, "z", []endpoint.Z{{Member: "a", Score: 1}, {Member: "b", Score: 2}}))
	require.NoError(t, dst.AddSortedSet(ctx, "z", []endpoint.Z{{Member: "b", Score: 2}, {Member: "a", Score: 1}}))
	assert.True(t, NewVerifier(src, dst, nil).Verify(ctx, "z"))

	require.NoError(t, dst.AddSortedSet(ctx, "z", []endpoint.Z{{Member: "a", Score: 1.5}}))
	assert.False(t, NewVerifier(src, dst, nil).Verify(ctx, "z"))
}

func TestVerifyExpiry(t *testing.T) {
	ctx := context.Background()
	src, dst := newMem(t), newMem(t)
	require.NoError(t, src.SetString(ctx, "k", "v"))
	require.NoError(t, src.Expire(ctx, "k", 100*time.Second))
	require.NoError(t, dst.SetString(ctx, "k", "v"))

	ui := &recorder{}
	assert.False(t, NewVerifier(src, dst, ui).Verify(ctx, "k"))
	assert.True(t, ui.contains(`MISMATCH: "k"`))

	require.NoError(t, dst.Expire(ctx, "k", 100*time.Second))
	assert.True(t, NewVerifier(src, dst, nil).Verify(ctx, "k"))
}

func TestVerifyIsTotal(t *testing.T) {
	ctx := context.Background()
	types := []endpoint.ValueType{
		endpoint.TypeString, endpoint.TypeHash, endpoint.TypeSortedSet, endpoint.TypeSet, endpoint.TypeList,
		endpoint.TypeNone, "stream", "", "garbage",
	}

	for _, typ := range types {
		src := &fakeType{Endpoint: newMem(t), typ: typ}
		dst := newMem(t)
		require.NoError(t, dst.SetString(ctx, "k", "v"))

		assert.NotPanics(t, func() {
			NewVerifier(src, dst, panicUI{}).Verify(ctx, "k")
		}, typ.String())
	}
}

func TestVerifyBrokenSource(t *testing.T) {
	ctx := context.Background()
	dst := newMem(t)

	ui := &recorder{}
	assert.False(t, NewVerifier(brokenType{Endpoint: newMem(t)}, dst, ui).Verify(ctx, "k"))
	assert.True(t, ui.contains("type query failed"))

	ui = &recorder{}
	assert.NotPanics(t, func() {
		assert.False(t, NewVerifier(brokenType{Endpoint: newMem(t), panics: true}, dst, ui).Verify(ctx, "k"))
	})
	assert.True(t, ui.contains("verification aborted"))
}

func TestVerifyIgnoresPanickingUI(t *testing.T) {
	ctx := context.Background()
	src, dst := newMem(t), newMem(t)
	require.NoError(t, src.SetString(ctx, "foo", "bar"))
	require.NoError(t, dst.SetString(ctx, "foo", "bar"))

	assert.True(t, NewVerifier(src, dst, panicUI{}).Verify(ctx, "foo"))
}

func TestEqualTTL(t *testing.T) {
	ret := func(d time.Duration) Outcome { return Outcome{Value: d} }
	notFound := Outcome{Err: endpoint.ErrNotFound}

	tests := []struct {
		name string
		a, b Outcome
		want bool
	}{
		{"identical", ret(100 * time.Second), ret(100 * time.Second), true},
		{"across half second boundary", ret(1400 * time.Millisecond), ret(1600 * time.Millisecond), true},
		{"across whole second boundary", ret(99*time.Second + 990*time.Millisecond), ret(100*time.Second + 10*time.Millisecond), true},
		{"exactly one second apart", ret(10 * time.Second), ret(11 * time.Second), true},
		{"more than one second apart", ret(10 * time.Second), ret(11*time.Second + time.Millisecond), false},
		{"no expiry on both", ret(endpoint.NoExpiry), ret(endpoint.NoExpiry), true},
		{"no expiry against short ttl", ret(endpoint.NoExpiry), ret(0), false},
		{"no expiry against long ttl", ret(endpoint.NoExpiry), ret(time.Hour), false},
		{"same error", notFound, notFound, true},
		{"error against value", notFound, ret(time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, equalTTL(tt.a, tt.b))
			assert.Equal(t, tt.want, equalTTL(tt.b, tt.a))
		})
	}
}

func TestVerifyExpiryWithinTolerance(t *testing.T) {
	ctx := context.Background()
	src, dst := newMem(t), newMem(t)
	require.NoError(t, src.SetString(ctx, "k", "v"))
	require.NoError(t, dst.SetString(ctx, "k", "v"))
	require.NoError(t, src.Expire(ctx, "k", 1400*time.Millisecond))
	require.NoError(t, dst.Expire(ctx, "k", 1600*time.Millisecond))

	assert.True(t, NewVerifier(src, dst, nil).Verify(ctx, "k"))

	require.NoError(t, dst.Expire(ctx, "k", 5*time.Second))
	assert.False(t, NewVerifier(src, dst, nil).Verify(ctx, "k"))
}
