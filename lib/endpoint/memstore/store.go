package memstore

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/kvcopy/lib/endpoint"
	"github.com/ValentinKolb/kvcopy/lib/endpoint/codec"
	"github.com/ValentinKolb/kvcopy/lib/util"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("endpoint")

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultGCInterval = 100 * time.Millisecond // Default interval between GC runs
)

// --------------------------------------------------------------------------
// Core structure
// --------------------------------------------------------------------------

// entry stores one record together with its expiration time
type entry struct {
	rec      codec.Record
	expireAt int64 // unix nanoseconds, 0 = no expiration
}

// live reports whether the entry is not yet expired at now
func (e entry) live(now int64) bool {
	return e.expireAt == 0 || now < e.expireAt
}

// shard is a partition of the store with its own expiration queue
type shard struct {
	data   *xsync.MapOf[string, entry]
	mu     sync.Mutex // protects expiry
	expiry *util.MapHeap[string]
}

func newShard() *shard {
	return &shard{
		data:   xsync.NewMapOf[string, entry](),
		expiry: util.NewMapHeap[string](),
	}
}

// storeImpl implements endpoint.Endpoint in memory
type storeImpl struct {
	seed   uint64
	shards []*shard
	codec  codec.ICodec
	clock  func() time.Time
	opts   Options

	// garbage collection
	gcInterval  time.Duration
	gcIsRunning atomic.Bool
	stopCh      chan struct{}
	gcDone      sync.WaitGroup
}

// Options configures the memory endpoint
type Options struct {
	NumShards    int              // Number of shards (0 = runtime.NumCPU())
	GCInterval   time.Duration    // Time between GC runs (0 = use default: 100ms)
	Codec        codec.ICodec     // Codec used for Dump/Restore and snapshots (nil = binary)
	Clock        func() time.Time // Time source (nil = time.Now)
	SnapshotPath string           // Optional file loaded on creation and written on Close
}

// DefaultOptions returns the default memory endpoint options
func DefaultOptions() *Options {
	return &Options{
		NumShards:  runtime.NumCPU(),
		GCInterval: defaultGCInterval,
		Codec:      codec.NewBinaryCodec(),
		Clock:      time.Now,
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMemoryStore creates a new in-memory endpoint with the specified options (optional).
// The returned endpoint is safe for concurrent use.
func NewMemoryStore(opts *Options) (endpoint.Endpoint, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	if o.NumShards <= 0 {
		o.NumShards = runtime.NumCPU()
	}
	if o.GCInterval <= 0 {
		o.GCInterval = defaultGCInterval
	}
	if o.Codec == nil {
		o.Codec = codec.NewBinaryCodec()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}

	shards := make([]*shard, o.NumShards)
	for i := range shards {
		shards[i] = newShard()
	}

	s := &storeImpl{
		seed:       util.GenerateSeed(),
		shards:     shards,
		codec:      o.Codec,
		clock:      o.Clock,
		opts:       o,
		gcInterval: o.GCInterval,
		stopCh:     make(chan struct{}),
	}

	if o.SnapshotPath != "" {
		if err := s.loadFile(o.SnapshotPath); err != nil {
			return nil, err
		}
	}

	s.startGC()
	return s, nil
}

// getShard returns the shard responsible for key
func (s *storeImpl) getShard(key string) *shard {
	// Shift right by 7 bits to use higher-quality bits for distribution
	h := util.HashString(key, s.seed) >> 7
	return s.shards[h%uint64(len(s.shards))]
}

func (s *storeImpl) now() int64 {
	return s.clock().UnixNano()
}

// load returns the live entry for key
func (s *storeImpl) load(key string) (entry, bool) {
	e, ok := s.getShard(key).data.Load(key)
	if !ok || !e.live(s.now()) {
		return entry{}, false
	}
	return e, true
}

// loadTyped returns the live record for key if it has the expected type.
// A missing key returns ok=false and no error.
func (s *storeImpl) loadTyped(key string, t endpoint.ValueType) (codec.Record, bool, error) {
	e, ok := s.load(key)
	if !ok {
		return codec.Record{}, false, nil
	}
	if e.rec.Type != t {
		return codec.Record{}, false, endpoint.ErrWrongType
	}
	return e.rec, true, nil
}

// compute is the shared implementation of all write operations.
// fn receives the current live entry (loaded=false if absent or expired) and
// returns the new entry. Returning del=true removes the key.
// The expiry queue of the shard is updated after the write.
func (s *storeImpl) compute(key string, fn func(old entry, loaded bool) (e entry, del bool, err error)) error {
	sh := s.getShard(key)
	now := s.now()

	var (
		fnErr    error
		expireAt int64
		removed  bool
	)
	sh.data.Compute(key, func(stored entry, exists bool) (entry, bool) {
		old := stored
		loaded := exists && stored.live(now)
		if !loaded {
			old = entry{}
		}

		e, del, err := fn(old, loaded)
		if err != nil {
			fnErr = err
			// keep the stored entry untouched, delete only if it did not exist
			return stored, !exists
		}
		if del || (e.rec.Type.Known() && e.rec.Empty()) {
			removed = true
			return entry{}, true
		}
		expireAt = e.expireAt
		return e, false
	})
	if fnErr != nil {
		return fnErr
	}

	// update expiration queue
	sh.mu.Lock()
	if removed || expireAt == 0 {
		sh.expiry.RemoveByKey(key)
	} else {
		sh.expiry.AddItem(key, expireAt)
	}
	sh.mu.Unlock()

	return nil
}

// --------------------------------------------------------------------------
// Interface Methods - Reads (docu see endpoint/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Type(_ context.Context, key string) (endpoint.ValueType, error) {
	e, ok := s.load(key)
	if !ok {
		return endpoint.TypeNone, nil
	}
	return e.rec.Type, nil
}

func (s *storeImpl) GetString(_ context.Context, key string) (string, error) {
	rec, ok, err := s.loadTyped(key, endpoint.TypeString)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", endpoint.ErrNotFound
	}
	return rec.String, nil
}

func (s *storeImpl) GetHashAll(_ context.Context, key string) (map[string]string, error) {
	rec, _, err := s.loadTyped(key, endpoint.TypeHash)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rec.Hash))
	for f, v := range rec.Hash {
		out[f] = v
	}
	return out, nil
}

func (s *storeImpl) GetSortedSetRangeWithScores(_ context.Context, key string) ([]endpoint.Z, error) {
	rec, _, err := s.loadTyped(key, endpoint.TypeSortedSet)
	if err != nil {
		return nil, err
	}
	return append([]endpoint.Z{}, rec.ZSet...), nil
}

func (s *storeImpl) GetSetMembers(_ context.Context, key string) ([]string, error) {
	rec, _, err := s.loadTyped(key, endpoint.TypeSet)
	if err != nil {
		return nil, err
	}
	return append([]string{}, rec.Set...), nil
}

func (s *storeImpl) GetListRange(_ context.Context, key string) ([]string, error) {
	rec, _, err := s.loadTyped(key, endpoint.TypeList)
	if err != nil {
		return nil, err
	}
	return append([]string{}, rec.List...), nil
}

func (s *storeImpl) GetExpiry(_ context.Context, key string) (time.Duration, error) {
	e, ok := s.load(key)
	if !ok {
		return 0, endpoint.ErrNotFound
	}
	if e.expireAt == 0 {
		return endpoint.NoExpiry, nil
	}
	return time.Duration(e.expireAt - s.now()), nil
}

func (s *storeImpl) Exists(_ context.Context, key string) (bool, error) {
	_, ok := s.load(key)
	return ok, nil
}

// --------------------------------------------------------------------------
// Interface Methods - Writes (docu see endpoint/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) SetString(_ context.Context, key, value string) error {
	return s.compute(key, func(_ entry, _ bool) (entry, bool, error) {
		return entry{rec: codec.Record{Type: endpoint.TypeString, String: value}}, false, nil
	})
}

// update is a helper for the collection writers: it checks the type of the
// existing value and lets fn modify a private copy of the record
func (s *storeImpl) update(key string, t endpoint.ValueType, fn func(rec *codec.Record)) error {
	return s.compute(key, func(old entry, loaded bool) (entry, bool, error) {
		if loaded && old.rec.Type != t {
			return entry{}, false, endpoint.ErrWrongType
		}
		e := entry{rec: codec.Record{Type: t}}
		if loaded {
			e = entry{rec: old.rec.Clone(), expireAt: old.expireAt}
		}
		fn(&e.rec)
		return e, false, nil
	})
}

func (s *storeImpl) SetHash(_ context.Context, key string, fields map[string]string) error {
	return s.update(key, endpoint.TypeHash, func(rec *codec.Record) {
		if rec.Hash == nil {
			rec.Hash = make(map[string]string, len(fields))
		}
		for f, v := range fields {
			rec.Hash[f] = v
		}
	})
}

func (s *storeImpl) AddSortedSet(_ context.Context, key string, members []endpoint.Z) error {
	return s.update(key, endpoint.TypeSortedSet, func(rec *codec.Record) {
		idx := make(map[string]int, len(rec.ZSet))
		for i, z := range rec.ZSet {
			idx[z.Member] = i
		}
		for _, z := range members {
			if i, ok := idx[z.Member]; ok {
				rec.ZSet[i].Score = z.Score
				continue
			}
			idx[z.Member] = len(rec.ZSet)
			rec.ZSet = append(rec.ZSet, z)
		}
		codec.SortZSet(rec.ZSet)
	})
}

func (s *storeImpl) AddSet(_ context.Context, key string, members []string) error {
	return s.update(key, endpoint.TypeSet, func(rec *codec.Record) {
		seen := make(map[string]struct{}, len(rec.Set))
		for _, m := range rec.Set {
			seen[m] = struct{}{}
		}
		for _, m := range members {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			rec.Set = append(rec.Set, m)
		}
	})
}

func (s *storeImpl) PushList(_ context.Context, key string, elements []string) error {
	return s.update(key, endpoint.TypeList, func(rec *codec.Record) {
		rec.List = append(rec.List, elements...)
	})
}

func (s *storeImpl) Expire(_ context.Context, key string, ttl time.Duration) error {
	return s.compute(key, func(old entry, loaded bool) (entry, bool, error) {
		if !loaded {
			return entry{}, false, endpoint.ErrNotFound
		}
		// a non-positive ttl deletes the key
		if ttl <= 0 {
			return entry{}, true, nil
		}
		old.expireAt = s.now() + int64(ttl)
		return old, false, nil
	})
}

func (s *storeImpl) Delete(_ context.Context, key string) error {
	return s.compute(key, func(_ entry, _ bool) (entry, bool, error) {
		return entry{}, true, nil
	})
}

// --------------------------------------------------------------------------
// Interface Methods - Dump, Restore and Scan
// --------------------------------------------------------------------------

func (s *storeImpl) Dump(_ context.Context, key string) ([]byte, error) {
	e, ok := s.load(key)
	if !ok {
		return nil, endpoint.ErrNotFound
	}
	return codec.Marshal(s.codec, e.rec)
}

func (s *storeImpl) Restore(_ context.Context, key string, ttl time.Duration, blob []byte, replace bool) error {
	rec, err := codec.Unmarshal(s.codec, blob)
	if err != nil {
		return err
	}
	return s.compute(key, func(_ entry, loaded bool) (entry, bool, error) {
		if loaded && !replace {
			return entry{}, false, endpoint.Errorf(endpoint.RetCInvalidOperation, "target key %q already exists", key)
		}
		e := entry{rec: rec}
		if ttl > 0 {
			e.expireAt = s.now() + int64(ttl)
		}
		return e, false, nil
	})
}

func (s *storeImpl) Scan(ctx context.Context, pattern string, fn func(key string) error) error {
	match, err := endpoint.CompilePattern(pattern)
	if err != nil {
		return err
	}

	now := s.now()
	for _, sh := range s.shards {
		// collect first so fn may modify the store
		var keys []string
		sh.data.Range(func(key string, e entry) bool {
			if e.live(now) {
				if match.Match(key) {
					keys = append(keys, key)
				}
			}
			return true
		})
		sort.Strings(keys)

		for _, k := range keys {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(k); err != nil {
				return err
			}
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods - Features and Metadata
// --------------------------------------------------------------------------

func (s *storeImpl) SupportsFeature(feature endpoint.Feature) bool {
	supportedFeatures := endpoint.FeatureRead |
		endpoint.FeatureReplay |
		endpoint.FeatureDump |
		endpoint.FeatureRestore |
		endpoint.FeatureScan
	return supportedFeatures&feature == feature
}

func (s *storeImpl) DumpFormat(_ context.Context) (endpoint.DumpFormat, error) {
	return codec.Format(s.codec), nil
}

func (s *storeImpl) Name() string {
	if s.opts.SnapshotPath != "" {
		return "mem " + s.opts.SnapshotPath
	}
	return "mem"
}

// Close stops the garbage collector and writes the snapshot file if configured
func (s *storeImpl) Close() error {
	s.stopGC()
	if s.opts.SnapshotPath != "" {
		return s.saveFile(s.opts.SnapshotPath)
	}
	return nil
}

// --------------------------------------------------------------------------
// Garbage Collection
// --------------------------------------------------------------------------

// startGC starts the garbage collector
// if the GC is already running, this function does nothing
func (s *storeImpl) startGC() {
	if s.gcIsRunning.CompareAndSwap(false, true) {
		s.gcDone.Add(1)
		go s.garbageCollector()
	}
}

// stopGC stops the garbage collector and waits for it to exit.
// the gc can't be started again after it has been stopped!
func (s *storeImpl) stopGC() {
	if s.gcIsRunning.CompareAndSwap(true, false) {
		close(s.stopCh)
		s.gcDone.Wait()
	}
}

// garbageCollector periodically removes expired entries from all shards
func (s *storeImpl) garbageCollector() {
	defer s.gcDone.Done()

	ticker := time.NewTicker(s.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			for _, sh := range s.shards {
				s.collect(sh)
			}
		}
	}
}

// collect removes all entries of sh whose expiration time has passed
func (s *storeImpl) collect(sh *shard) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	now := s.now()
	for {
		item, exists := sh.expiry.Peek()
		if !exists || item.Priority > now {
			return
		}
		key := item.Key
		sh.expiry.RemoveByKey(key)

		// double-check the entry is expired, it could have been updated in the meantime
		sh.data.Compute(key, func(e entry, loaded bool) (entry, bool) {
			if !loaded {
				return e, true
			}
			return e, !e.live(now)
		})
	}
}
