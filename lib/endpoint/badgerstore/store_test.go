package badgerstore

import (
	"context"
	"testing"
	"time"

	"github.com/ValentinKolb/kvcopy/lib/endpoint"
	"github.com/ValentinKolb/kvcopy/lib/endpoint/codec"
	"github.com/ValentinKolb/kvcopy/lib/endpoint/memstore"
	eptesting "github.com/ValentinKolb/kvcopy/lib/endpoint/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openInMemory(t *testing.T) endpoint.Endpoint {
	ep, err := Open(&Options{InMemory: true})
	require.NoError(t, err)
	return ep
}

func Test(t *testing.T) {
	eptesting.RunEndpointTests(t, "BadgerStore", openInMemory)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(&Options{})
	assert.Error(t, err)

	_, err = Open(nil)
	assert.Error(t, err)
}

func TestPersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	opts := DefaultOptions(dir)
	opts.SyncWrites = false
	opts.GCInterval = 10 * time.Millisecond

	ep, err := Open(opts)
	require.NoError(t, err)
	assert.Equal(t, "badger "+dir, ep.Name())
	require.NoError(t, eptesting.Seed(ctx, ep, ""))
	require.NoError(t, ep.Expire(ctx, "set", time.Hour))
	require.NoError(t, ep.Close())
	// closing twice is a no-op
	require.NoError(t, ep.Close())

	ep, err = Open(opts)
	require.NoError(t, err)
	defer ep.Close()

	members, err := ep.GetSetMembers(ctx, "set")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"z", "a", "m"}, members)

	ttl, err := ep.GetExpiry(ctx, "set")
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)
}

func TestBlobsAreCompatibleWithMemoryStore(t *testing.T) {
	ctx := context.Background()

	src := openInMemory(t)
	defer src.Close()
	dst, err := memstore.NewMemoryStore(&memstore.Options{Codec: codec.NewBinaryCodec()})
	require.NoError(t, err)
	defer dst.Close()

	sf, err := src.DumpFormat(ctx)
	require.NoError(t, err)
	df, err := dst.DumpFormat(ctx)
	require.NoError(t, err)
	require.True(t, df.CanRestoreFrom(sf))

	require.NoError(t, src.AddSortedSet(ctx, "z", []endpoint.Z{{Member: "m", Score: 1.5}}))
	blob, err := src.Dump(ctx, "z")
	require.NoError(t, err)
	require.NoError(t, dst.Restore(ctx, "z", 0, blob, false))

	got, err := dst.GetSortedSetRangeWithScores(ctx, "z")
	require.NoError(t, err)
	assert.Equal(t, []endpoint.Z{{Member: "m", Score: 1.5}}, got)
}
