package endpoint_test

import (
	"context"
	"testing"

	"github.com/ValentinKolb/kvcopy/lib/endpoint"
	"github.com/ValentinKolb/kvcopy/lib/endpoint/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharedOpener(t *testing.T) {
	ctx := context.Background()
	ep, err := memstore.NewMemoryStore(nil)
	require.NoError(t, err)
	defer ep.Close()

	open := endpoint.SharedOpener(ep)

	a, err := open(ctx)
	require.NoError(t, err)
	b, err := open(ctx)
	require.NoError(t, err)

	require.NoError(t, a.SetString(ctx, "foo", "bar"))
	require.NoError(t, a.Close())

	// closing a handle does not close the shared endpoint
	v, err := b.GetString(ctx, "foo")
	require.NoError(t, err)
	assert.Equal(t, "bar", v)
	assert.Equal(t, ep.Name(), b.Name())
}

func TestDumpFormatCompatibility(t *testing.T) {
	v1 := endpoint.DumpFormat{Family: "redis-rdb", Version: 600}
	v2 := endpoint.DumpFormat{Family: "redis-rdb", Version: 702}
	other := endpoint.DumpFormat{Family: "kvcopy-json", Version: 1}

	assert.True(t, v2.CanRestoreFrom(v1))
	assert.True(t, v1.CanRestoreFrom(v1))
	assert.False(t, v1.CanRestoreFrom(v2))
	assert.False(t, other.CanRestoreFrom(v1))
	assert.False(t, endpoint.DumpFormat{}.CanRestoreFrom(endpoint.DumpFormat{}))
}
