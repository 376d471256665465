package testing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ValentinKolb/kvcopy/lib/endpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// EndpointFactory is a function that creates a new, empty endpoint
type EndpointFactory func(t *testing.T) endpoint.Endpoint

// RunEndpointTests runs the conformance test suite for an endpoint implementation.
func RunEndpointTests(t *testing.T, name string, factory EndpointFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("String", func(t *testing.T) {
			testString(t, factory(t))
		})

		t.Run("Hash", func(t *testing.T) {
			testHash(t, factory(t))
		})

		t.Run("SortedSet", func(t *testing.T) {
			testSortedSet(t, factory(t))
		})

		t.Run("Set", func(t *testing.T) {
			testSet(t, factory(t))
		})

		t.Run("List", func(t *testing.T) {
			testList(t, factory(t))
		})

		t.Run("WrongType", func(t *testing.T) {
			testWrongType(t, factory(t))
		})

		t.Run("Expiry", func(t *testing.T) {
			testExpiry(t, factory(t))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory(t))
		})

		t.Run("DumpRestore", func(t *testing.T) {
			testDumpRestore(t, factory(t))
		})

		t.Run("Scan", func(t *testing.T) {
			testScan(t, factory(t))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// requireFeature skips the test if the endpoint does not support the feature
func requireFeature(t testing.TB, ep endpoint.Endpoint, feature endpoint.Feature) {
	if !ep.SupportsFeature(feature) {
		t.Skipf("%s does not support %s", ep.Name(), feature)
	}
}

// Seed writes one key per supported type: str, hash, zset, set and list
// (prefixed with prefix). It is shared with the strategy tests.
func Seed(ctx context.Context, ep endpoint.Endpoint, prefix string) error {
	if err := ep.SetString(ctx, prefix+"str", "bar"); err != nil {
		return err
	}
	if err := ep.SetHash(ctx, prefix+"hash", map[string]string{"a": "1", "b": "2"}); err != nil {
		return err
	}
	if err := ep.AddSortedSet(ctx, prefix+"zset", []endpoint.Z{{Member: "b", Score: 2}, {Member: "a", Score: 1}, {Member: "c", Score: 1}}); err != nil {
		return err
	}
	if err := ep.AddSet(ctx, prefix+"set", []string{"z", "a", "m"}); err != nil {
		return err
	}
	if err := ep.PushList(ctx, prefix+"list", []string{"x", "y", "x"}); err != nil {
		return err
	}
	return nil
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testString(t *testing.T, ep endpoint.Endpoint) {
	defer ep.Close()
	requireFeature(t, ep, endpoint.FeatureRead|endpoint.FeatureReplay)
	ctx := context.Background()

	require.NoError(t, ep.SetString(ctx, "foo", "bar"))

	v, err := ep.GetString(ctx, "foo")
	require.NoError(t, err)
	assert.Equal(t, "bar", v)

	typ, err := ep.Type(ctx, "foo")
	require.NoError(t, err)
	assert.Equal(t, endpoint.TypeString, typ)

	ok, err := ep.Exists(ctx, "foo")
	require.NoError(t, err)
	assert.True(t, ok)

	// overwrite
	require.NoError(t, ep.SetString(ctx, "foo", "baz"))
	v, err = ep.GetString(ctx, "foo")
	require.NoError(t, err)
	assert.Equal(t, "baz", v)

	// binary safe
	require.NoError(t, ep.SetString(ctx, "bin", "a\x00b"))
	v, err = ep.GetString(ctx, "bin")
	require.NoError(t, err)
	assert.Equal(t, "a\x00b", v)

	// missing key
	_, err = ep.GetString(ctx, "missing")
	assert.ErrorIs(t, err, endpoint.ErrNotFound)

	typ, err = ep.Type(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, endpoint.TypeNone, typ)
	assert.False(t, typ.Known())

	ok, err = ep.Exists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testHash(t *testing.T, ep endpoint.Endpoint) {
	defer ep.Close()
	requireFeature(t, ep, endpoint.FeatureRead|endpoint.FeatureReplay)
	ctx := context.Background()

	require.NoError(t, ep.SetHash(ctx, "h", map[string]string{"a": "1", "b": "2"}))
	require.NoError(t, ep.SetHash(ctx, "h", map[string]string{"b": "3", "c": "4"}))

	got, err := ep.GetHashAll(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "3", "c": "4"}, got)

	typ, err := ep.Type(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, endpoint.TypeHash, typ)

	got, err = ep.GetHashAll(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testSortedSet(t *testing.T, ep endpoint.Endpoint) {
	defer ep.Close()
	requireFeature(t, ep, endpoint.FeatureRead|endpoint.FeatureReplay)
	ctx := context.Background()

	require.NoError(t, ep.AddSortedSet(ctx, "z", []endpoint.Z{{Member: "b", Score: 2}, {Member: "a", Score: 3}, {Member: "c", Score: 1}}))
	got, err := ep.GetSortedSetRangeWithScores(ctx, "z")
	require.NoError(t, err)
	assert.Equal(t, []endpoint.Z{{Member: "c", Score: 1}, {Member: "b", Score: 2}, {Member: "a", Score: 3}}, got)

	// update a score and add a member with an equal score
	require.NoError(t, ep.AddSortedSet(ctx, "z", []endpoint.Z{{Member: "a", Score: 0.5}, {Member: "d", Score: 2}}))
	got, err = ep.GetSortedSetRangeWithScores(ctx, "z")
	require.NoError(t, err)
	assert.Equal(t, []endpoint.Z{
		{Member: "a", Score: 0.5},
		{Member: "c", Score: 1},
		{Member: "b", Score: 2},
		{Member: "d", Score: 2},
	}, got)

	typ, err := ep.Type(ctx, "z")
	require.NoError(t, err)
	assert.Equal(t, endpoint.TypeSortedSet, typ)
}

func testSet(t *testing.T, ep endpoint.Endpoint) {
	defer ep.Close()
	requireFeature(t, ep, endpoint.FeatureRead|endpoint.FeatureReplay)
	ctx := context.Background()

	require.NoError(t, ep.AddSet(ctx, "s", []string{"z", "a", "m"}))
	require.NoError(t, ep.AddSet(ctx, "s", []string{"a", "q"}))

	got, err := ep.GetSetMembers(ctx, "s")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "m", "q", "z"}, got)

	typ, err := ep.Type(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, endpoint.TypeSet, typ)
}

func testList(t *testing.T, ep endpoint.Endpoint) {
	defer ep.Close()
	requireFeature(t, ep, endpoint.FeatureRead|endpoint.FeatureReplay)
	ctx := context.Background()

	require.NoError(t, ep.PushList(ctx, "l", []string{"x", "y"}))
	require.NoError(t, ep.PushList(ctx, "l", []string{"x"}))

	got, err := ep.GetListRange(ctx, "l")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "x"}, got)

	typ, err := ep.Type(ctx, "l")
	require.NoError(t, err)
	assert.Equal(t, endpoint.TypeList, typ)
}

func testWrongType(t *testing.T, ep endpoint.Endpoint) {
	defer ep.Close()
	requireFeature(t, ep, endpoint.FeatureRead|endpoint.FeatureReplay)
	ctx := context.Background()

	require.NoError(t, ep.SetString(ctx, "str", "v"))
	require.NoError(t, ep.PushList(ctx, "list", []string{"a"}))

	_, err := ep.GetHashAll(ctx, "str")
	assert.ErrorIs(t, err, endpoint.ErrWrongType)

	_, err = ep.GetString(ctx, "list")
	assert.ErrorIs(t, err, endpoint.ErrWrongType)

	err = ep.AddSet(ctx, "list", []string{"a"})
	assert.ErrorIs(t, err, endpoint.ErrWrongType)

	// the failed write must not change the value
	got, err := ep.GetListRange(ctx, "list")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got)
}

func testExpiry(t *testing.T, ep endpoint.Endpoint) {
	defer ep.Close()
	requireFeature(t, ep, endpoint.FeatureRead|endpoint.FeatureReplay)
	ctx := context.Background()

	require.NoError(t, ep.SetString(ctx, "k", "v"))

	ttl, err := ep.GetExpiry(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, endpoint.NoExpiry, ttl)

	require.NoError(t, ep.Expire(ctx, "k", 100*time.Second))
	ttl, err = ep.GetExpiry(ctx, "k")
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, 100*time.Second)
	assert.Greater(t, ttl, 90*time.Second)

	// collection writes keep the expiry
	require.NoError(t, ep.SetHash(ctx, "h", map[string]string{"a": "1"}))
	require.NoError(t, ep.Expire(ctx, "h", 100*time.Second))
	require.NoError(t, ep.SetHash(ctx, "h", map[string]string{"b": "2"}))
	ttl, err = ep.GetExpiry(ctx, "h")
	require.NoError(t, err)
	assert.Greater(t, ttl, 90*time.Second)

	// SetString clears the expiry
	require.NoError(t, ep.SetString(ctx, "k", "v2"))
	ttl, err = ep.GetExpiry(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, endpoint.NoExpiry, ttl)

	_, err = ep.GetExpiry(ctx, "missing")
	assert.ErrorIs(t, err, endpoint.ErrNotFound)

	err = ep.Expire(ctx, "missing", time.Second)
	assert.ErrorIs(t, err, endpoint.ErrNotFound)
}

func testDelete(t *testing.T, ep endpoint.Endpoint) {
	defer ep.Close()
	requireFeature(t, ep, endpoint.FeatureRead|endpoint.FeatureReplay)
	ctx := context.Background()

	require.NoError(t, Seed(ctx, ep, "d:"))
	for _, k := range []string{"d:str", "d:hash", "d:zset", "d:set", "d:list"} {
		require.NoError(t, ep.Delete(ctx, k))
		ok, err := ep.Exists(ctx, k)
		require.NoError(t, err)
		assert.False(t, ok, "key %s should be deleted", k)
	}

	// deleting a missing key is not an error
	assert.NoError(t, ep.Delete(ctx, "missing"))
}

func testDumpRestore(t *testing.T, ep endpoint.Endpoint) {
	defer ep.Close()
	requireFeature(t, ep, endpoint.FeatureRead|endpoint.FeatureReplay|endpoint.FeatureDump|endpoint.FeatureRestore)
	ctx := context.Background()

	format, err := ep.DumpFormat(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, format.Family)
	assert.True(t, format.CanRestoreFrom(format))

	require.NoError(t, Seed(ctx, ep, "src:"))

	for _, name := range []string{"str", "hash", "zset", "set", "list"} {
		src, dst := "src:"+name, "dst:"+name

		blob, err := ep.Dump(ctx, src)
		require.NoError(t, err, name)
		require.NoError(t, ep.Restore(ctx, dst, 0, blob, false), name)

		srcType, _ := ep.Type(ctx, src)
		dstType, _ := ep.Type(ctx, dst)
		assert.Equal(t, srcType, dstType, name)

		ttl, err := ep.GetExpiry(ctx, dst)
		require.NoError(t, err)
		assert.Equal(t, endpoint.NoExpiry, ttl, name)

		// existing target without replace fails
		assert.Error(t, ep.Restore(ctx, dst, 0, blob, false), name)

		// replace with a ttl
		require.NoError(t, ep.Restore(ctx, dst, 50*time.Second, blob, true), name)
		ttl, err = ep.GetExpiry(ctx, dst)
		require.NoError(t, err)
		assert.Greater(t, ttl, 40*time.Second, name)
	}

	gotHash, err := ep.GetHashAll(ctx, "dst:hash")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, gotHash)

	gotList, err := ep.GetListRange(ctx, "dst:list")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "x"}, gotList)

	_, err = ep.Dump(ctx, "missing")
	assert.ErrorIs(t, err, endpoint.ErrNotFound)

	assert.Error(t, ep.Restore(ctx, "bad", 0, []byte("garbage"), true))
}

func testScan(t *testing.T, ep endpoint.Endpoint) {
	defer ep.Close()
	requireFeature(t, ep, endpoint.FeatureReplay|endpoint.FeatureScan)
	ctx := context.Background()

	var want []string
	for i := 0; i < 50; i++ {
		k := fmt.Sprintf("user:%d", i)
		want = append(want, k)
		require.NoError(t, ep.SetString(ctx, k, "v"))
	}
	// keys with slashes are matched like any other character
	for _, k := range []string{"user:1/x", "user:a/b/c"} {
		want = append(want, k)
		require.NoError(t, ep.SetString(ctx, k, "v"))
	}
	require.NoError(t, ep.SetString(ctx, "other", "v"))
	require.NoError(t, ep.SetString(ctx, "other/nested", "v"))

	var got []string
	require.NoError(t, ep.Scan(ctx, "user:*", func(key string) error {
		got = append(got, key)
		return nil
	}))
	assert.ElementsMatch(t, want, got)

	var all int
	require.NoError(t, ep.Scan(ctx, "", func(string) error {
		all++
		return nil
	}))
	assert.Equal(t, 54, all)

	var slashed []string
	require.NoError(t, ep.Scan(ctx, "*/*", func(key string) error {
		slashed = append(slashed, key)
		return nil
	}))
	assert.ElementsMatch(t, []string{"user:1/x", "user:a/b/c", "other/nested"}, slashed)

	// errors from the callback stop the scan
	stop := fmt.Errorf("stop")
	err := ep.Scan(ctx, "*", func(string) error { return stop })
	assert.ErrorIs(t, err, stop)
}
