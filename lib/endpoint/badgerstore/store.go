package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ValentinKolb/kvcopy/lib/endpoint"
	"github.com/ValentinKolb/kvcopy/lib/endpoint/codec"
	"github.com/dgraph-io/badger/v4"
	"github.com/lni/dragonboat/v4/logger"
)

// Logger is also handed to badger, dragonboat's ILogger satisfies badger.Logger
var Logger = logger.GetLogger("badger")

// maxConflictRetries bounds the retries of a read-modify-write transaction
const maxConflictRetries = 10

// Options configures the badger endpoint
type Options struct {
	Path           string        // Directory of the database, ignored if InMemory is set
	InMemory       bool          // Keep everything in memory (used by tests)
	SyncWrites     bool          // Sync every write to disk
	Codec          codec.ICodec  // Codec used for the stored values (nil = binary)
	GCInterval     time.Duration // Time between value log GC runs (0 = disabled)
	GCDiscardRatio float64       // Minimum garbage ratio to rewrite a value log file
}

// DefaultOptions returns options for a persistent database at path
func DefaultOptions(path string) *Options {
	return &Options{
		Path:           path,
		SyncWrites:     true,
		Codec:          codec.NewBinaryCodec(),
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// storeImpl implements endpoint.Endpoint on top of a badger database.
// Every key holds codec.Marshal of its record, so Dump is a plain read.
type storeImpl struct {
	db    *badger.DB
	codec codec.ICodec
	opts  Options

	stopCh chan struct{}
	doneCh chan struct{}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// Open opens (or creates) a badger database and returns it as an endpoint.
// The returned endpoint is safe for concurrent use.
func Open(opts *Options) (endpoint.Endpoint, error) {
	if opts == nil {
		return nil, errors.New("badger options are required")
	}
	o := *opts
	if !o.InMemory && o.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}
	if o.Codec == nil {
		o.Codec = codec.NewBinaryCodec()
	}

	var bo badger.Options
	if o.InMemory {
		bo = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(o.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", o.Path, err)
		}
		bo = badger.DefaultOptions(o.Path)
	}
	bo = bo.WithSyncWrites(o.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(Logger)

	db, err := badger.Open(bo)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &storeImpl{
		db:     db,
		codec:  o.Codec,
		opts:   o,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	if o.GCInterval > 0 && !o.InMemory {
		go s.runGC()
	} else {
		close(s.doneCh)
	}
	return s, nil
}

// runGC periodically triggers the value log garbage collection
func (s *storeImpl) runGC() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.opts.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			// ErrNoRewrite means no GC was needed
			if err := s.db.RunValueLogGC(s.opts.GCDiscardRatio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				Logger.Warningf("value log GC: %v", err)
			}
		}
	}
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// stored is the decoded value of a key together with its expiration
type stored struct {
	rec       codec.Record
	expiresAt uint64 // unix seconds, 0 = no expiration
}

// get reads and decodes key inside txn. A missing key returns ok=false.
func (s *storeImpl) get(txn *badger.Txn, key string) (stored, bool, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return stored{}, false, nil
	}
	if err != nil {
		return stored{}, false, err
	}
	blob, err := item.ValueCopy(nil)
	if err != nil {
		return stored{}, false, err
	}
	rec, err := codec.Unmarshal(s.codec, blob)
	if err != nil {
		return stored{}, false, fmt.Errorf("decode %q: %w", key, err)
	}
	return stored{rec: rec, expiresAt: item.ExpiresAt()}, true, nil
}

// view reads key, checking that it holds a value of type t
func (s *storeImpl) view(key string, t endpoint.ValueType) (codec.Record, bool, error) {
	var (
		st codec.Record
		ok bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		v, found, err := s.get(txn, key)
		if err != nil || !found {
			return err
		}
		if v.rec.Type != t {
			return endpoint.ErrWrongType
		}
		st, ok = v.rec, true
		return nil
	})
	return st, ok, err
}

// write stores rec at key. Empty collections delete the key.
func (s *storeImpl) write(txn *badger.Txn, key string, rec codec.Record, expiresAt uint64) error {
	if rec.Type.Known() && rec.Empty() {
		return txn.Delete([]byte(key))
	}
	blob, err := codec.Marshal(s.codec, rec)
	if err != nil {
		return err
	}
	e := badger.NewEntry([]byte(key), blob)
	e.ExpiresAt = expiresAt
	return txn.SetEntry(e)
}

// update runs fn in a read-write transaction and retries on conflicts
func (s *storeImpl) update(fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < maxConflictRetries; i++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// modify is the shared implementation of the collection writers
func (s *storeImpl) modify(key string, t endpoint.ValueType, fn func(rec *codec.Record)) error {
	return s.update(func(txn *badger.Txn) error {
		old, found, err := s.get(txn, key)
		if err != nil {
			return err
		}
		if found && old.rec.Type != t {
			return endpoint.ErrWrongType
		}
		if !found {
			old = stored{rec: codec.Record{Type: t}}
		}
		fn(&old.rec)
		return s.write(txn, key, old.rec, old.expiresAt)
	})
}

// expiresAt converts a ttl to badger's absolute expiration (0 = none)
func expiresAt(ttl time.Duration) uint64 {
	if ttl <= 0 {
		return 0
	}
	return uint64(time.Now().Add(ttl).Unix())
}

// --------------------------------------------------------------------------
// Interface Methods - Reads (docu see endpoint/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Type(_ context.Context, key string) (endpoint.ValueType, error) {
	typ := endpoint.TypeNone
	err := s.db.View(func(txn *badger.Txn) error {
		v, found, err := s.get(txn, key)
		if found {
			typ = v.rec.Type
		}
		return err
	})
	return typ, err
}

func (s *storeImpl) GetString(_ context.Context, key string) (string, error) {
	rec, ok, err := s.view(key, endpoint.TypeString)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", endpoint.ErrNotFound
	}
	return rec.String, nil
}

func (s *storeImpl) GetHashAll(_ context.Context, key string) (map[string]string, error) {
	rec, _, err := s.view(key, endpoint.TypeHash)
	if err != nil {
		return nil, err
	}
	if rec.Hash == nil {
		return map[string]string{}, nil
	}
	return rec.Hash, nil
}

func (s *storeImpl) GetSortedSetRangeWithScores(_ context.Context, key string) ([]endpoint.Z, error) {
	rec, _, err := s.view(key, endpoint.TypeSortedSet)
	return rec.ZSet, err
}

func (s *storeImpl) GetSetMembers(_ context.Context, key string) ([]string, error) {
	rec, _, err := s.view(key, endpoint.TypeSet)
	return rec.Set, err
}

func (s *storeImpl) GetListRange(_ context.Context, key string) ([]string, error) {
	rec, _, err := s.view(key, endpoint.TypeList)
	return rec.List, err
}

func (s *storeImpl) GetExpiry(_ context.Context, key string) (time.Duration, error) {
	var exp uint64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return endpoint.ErrNotFound
		}
		if err != nil {
			return err
		}
		exp = item.ExpiresAt()
		return nil
	})
	if err != nil {
		return 0, err
	}
	if exp == 0 {
		return endpoint.NoExpiry, nil
	}
	return time.Until(time.Unix(int64(exp), 0)), nil
}

func (s *storeImpl) Exists(ctx context.Context, key string) (bool, error) {
	typ, err := s.Type(ctx, key)
	return typ != endpoint.TypeNone, err
}

// --------------------------------------------------------------------------
// Interface Methods - Writes (docu see endpoint/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) SetString(_ context.Context, key, value string) error {
	return s.update(func(txn *badger.Txn) error {
		return s.write(txn, key, codec.Record{Type: endpoint.TypeString, String: value}, 0)
	})
}

func (s *storeImpl) SetHash(_ context.Context, key string, fields map[string]string) error {
	return s.modify(key, endpoint.TypeHash, func(rec *codec.Record) {
		if rec.Hash == nil {
			rec.Hash = make(map[string]string, len(fields))
		}
		for f, v := range fields {
			rec.Hash[f] = v
		}
	})
}

func (s *storeImpl) AddSortedSet(_ context.Context, key string, members []endpoint.Z) error {
	return s.modify(key, endpoint.TypeSortedSet, func(rec *codec.Record) {
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
	return s.modify(key, endpoint.TypeSet, func(rec *codec.Record) {
		seen := make(map[string]struct{}, len(rec.Set)+len(members))
		for _, m := range rec.Set {
			seen[m] = struct{}{}
		}
		for _, m := range members {
			if _, ok := seen[m]; !ok {
				seen[m] = struct{}{}
				rec.Set = append(rec.Set, m)
			}
		}
	})
}

func (s *storeImpl) PushList(_ context.Context, key string, elements []string) error {
	return s.modify(key, endpoint.TypeList, func(rec *codec.Record) {
		rec.List = append(rec.List, elements...)
	})
}

func (s *storeImpl) Expire(_ context.Context, key string, ttl time.Duration) error {
	return s.update(func(txn *badger.Txn) error {
		old, found, err := s.get(txn, key)
		if err != nil {
			return err
		}
		if !found {
			return endpoint.ErrNotFound
		}
		// a non-positive ttl deletes the key
		if ttl <= 0 {
			return txn.Delete([]byte(key))
		}
		return s.write(txn, key, old.rec, expiresAt(ttl))
	})
}

func (s *storeImpl) Delete(_ context.Context, key string) error {
	return s.update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// --------------------------------------------------------------------------
// Interface Methods - Dump, Restore and Scan
// --------------------------------------------------------------------------

func (s *storeImpl) Dump(_ context.Context, key string) ([]byte, error) {
	var blob []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return endpoint.ErrNotFound
		}
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	return blob, err
}

func (s *storeImpl) Restore(_ context.Context, key string, ttl time.Duration, blob []byte, replace bool) error {
	rec, err := codec.Unmarshal(s.codec, blob)
	if err != nil {
		return err
	}
	return s.update(func(txn *badger.Txn) error {
		if !replace {
			_, err := txn.Get([]byte(key))
			if err == nil {
				return endpoint.Errorf(endpoint.RetCInvalidOperation, "target key %q already exists", key)
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return s.write(txn, key, rec, expiresAt(ttl))
	})
}

func (s *storeImpl) Scan(ctx context.Context, pattern string, fn func(key string) error) error {
	match, err := endpoint.CompilePattern(pattern)
	if err != nil {
		return err
	}

	// collect first so fn may write to the store
	var keys []string
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(match.Prefix())
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			if match.Match(key) {
				keys = append(keys, key)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(k); err != nil {
			return err
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
	if s.opts.InMemory {
		return "badger (in-memory)"
	}
	return "badger " + s.opts.Path
}

// Close stops the value log GC and closes the database
func (s *storeImpl) Close() error {
	select {
	case <-s.stopCh:
		return nil
	default:
		close(s.stopCh)
	}
	<-s.doneCh
	return s.db.Close()
}
