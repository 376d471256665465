package strategy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/kvcopy/lib/endpoint"
	"github.com/ValentinKolb/kvcopy/lib/endpoint/memstore"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// UI fakes
// --------------------------------------------------------------------------

// recorder collects all traces
type recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *recorder) Debugf(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func (r *recorder) contains(substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

// panicUI panics on every trace
type panicUI struct{}

func (panicUI) Debugf(string, ...interface{}) { panic("ui is broken") }

// --------------------------------------------------------------------------
// Endpoint fakes
// --------------------------------------------------------------------------

func newMem(t *testing.T) endpoint.Endpoint {
	ep, err := memstore.NewMemoryStore(nil)
	require.NoError(t, err)
	t.Cleanup(func() { ep.Close() })
	return ep
}

// noDump hides the dump and restore features of an endpoint
type noDump struct {
	endpoint.Endpoint
}

func (noDump) SupportsFeature(f endpoint.Feature) bool {
	return f&(endpoint.FeatureDump|endpoint.FeatureRestore) == 0
}

// withFormat reports a fixed dump format
type withFormat struct {
	endpoint.Endpoint
	format endpoint.DumpFormat
}

func (w withFormat) DumpFormat(context.Context) (endpoint.DumpFormat, error) {
	return w.format, nil
}

// fakeType reports a fixed type for every key and counts value reads
type fakeType struct {
	endpoint.Endpoint
	typ   endpoint.ValueType
	reads atomic.Int32
}

func (f *fakeType) Type(context.Context, string) (endpoint.ValueType, error) {
	return f.typ, nil
}

func (f *fakeType) GetString(ctx context.Context, key string) (string, error) {
	f.reads.Add(1)
	return f.Endpoint.GetString(ctx, key)
}

func (f *fakeType) GetHashAll(ctx context.Context, key string) (map[string]string, error) {
	f.reads.Add(1)
	return f.Endpoint.GetHashAll(ctx, key)
}

func (f *fakeType) GetSortedSetRangeWithScores(ctx context.Context, key string) ([]endpoint.Z, error) {
	f.reads.Add(1)
	return f.Endpoint.GetSortedSetRangeWithScores(ctx, key)
}

func (f *fakeType) GetSetMembers(ctx context.Context, key string) ([]string, error) {
	f.reads.Add(1)
	return f.Endpoint.GetSetMembers(ctx, key)
}

func (f *fakeType) GetListRange(ctx context.Context, key string) ([]string, error) {
	f.reads.Add(1)
	return f.Endpoint.GetListRange(ctx, key)
}

func (f *fakeType) GetExpiry(ctx context.Context, key string) (time.Duration, error) {
	f.reads.Add(1)
	return f.Endpoint.GetExpiry(ctx, key)
}

// brokenType fails or panics on every type query
type brokenType struct {
	endpoint.Endpoint
	panics bool
}

func (b brokenType) Type(context.Context, string) (endpoint.ValueType, error) {
	if b.panics {
		panic("type query exploded")
	}
	return "", fmt.Errorf("connection reset")
}
