package redisstore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/kvcopy/lib/endpoint"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/redis/go-redis/v9"
)

var Logger = logger.GetLogger("endpoint")

const (
	// DumpFamily is the dump format family of all redis servers
	DumpFamily = "redis-rdb"

	// minDumpVersion is the first server version with DUMP/RESTORE (2.6)
	minDumpVersion = 206

	defaultScanCount = 100

	// DefaultScanDedupLimit is the number of keys a Scan remembers to drop
	// duplicate SCAN replies (about 64 MB for keys of 32 bytes)
	DefaultScanDedupLimit = 1 << 20
)

// Options configures the redis endpoint
type Options struct {
	URL       string        // redis://[user:pass@]host:port/db or rediss://...
	ScanCount int64         // COUNT hint for SCAN (0 = 100)
	ScanDedup int           // Keys remembered per Scan to drop duplicates (0 = DefaultScanDedupLimit, <0 = none)
	Timeout   time.Duration // Dial, read and write timeout (0 = go-redis defaults)
}

// storeImpl implements endpoint.Endpoint on top of a single redis connection
type storeImpl struct {
	client    *redis.Client
	name      string
	scanCount int64
	scanDedup int
	version   int // major*100+minor, 0 = unknown
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// Open connects to the redis server described by opts.URL and probes its version.
// Every endpoint uses exactly one connection, so it should not be shared
// between goroutines that need parallelism.
func Open(ctx context.Context, opts Options) (endpoint.Endpoint, error) {
	ro, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	ro.PoolSize = 1
	if opts.Timeout > 0 {
		ro.DialTimeout = opts.Timeout
		ro.ReadTimeout = opts.Timeout
		ro.WriteTimeout = opts.Timeout
	}
	s, err := newStore(ctx, redis.NewClient(ro), opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newStore(ctx context.Context, client *redis.Client, opts Options) (*storeImpl, error) {
	s := &storeImpl{
		client:    client,
		name:      fmt.Sprintf("redis %s/%d", client.Options().Addr, client.Options().DB),
		scanCount: opts.ScanCount,
		scanDedup: opts.ScanDedup,
	}
	if s.scanCount <= 0 {
		s.scanCount = defaultScanCount
	}
	if s.scanDedup == 0 {
		s.scanDedup = DefaultScanDedupLimit
	}

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to %s: %w", s.name, err)
	}

	info, err := client.Info(ctx, "server").Result()
	if err != nil {
		Logger.Warningf("%s: INFO server failed, dump/restore disabled: %v", s.name, err)
		return s, nil
	}
	if s.version, err = parseServerVersion(info); err != nil {
		Logger.Warningf("%s: %v, dump/restore disabled", s.name, err)
	}
	return s, nil
}

// parseServerVersion extracts redis_version from an INFO reply as major*100+minor
func parseServerVersion(info string) (int, error) {
	sc := bufio.NewScanner(strings.NewReader(info))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		v, ok := strings.CutPrefix(line, "redis_version:")
		if !ok {
			continue
		}
		parts := strings.SplitN(v, ".", 3)
		if len(parts) < 2 {
			return 0, fmt.Errorf("malformed redis_version %q", v)
		}
		major, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, fmt.Errorf("malformed redis_version %q", v)
		}
		minor, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, fmt.Errorf("malformed redis_version %q", v)
		}
		return major*100 + minor, nil
	}
	return 0, errors.New("no redis_version in INFO reply")
}

// mapError converts go-redis errors into endpoint errors.
// Server replies become *endpoint.Error values, network errors are returned as is.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return endpoint.ErrNotFound
	}
	var rerr redis.Error
	if errors.As(err, &rerr) {
		msg := rerr.Error()
		switch {
		case strings.HasPrefix(msg, "WRONGTYPE"):
			return endpoint.NewError(endpoint.RetCWrongType, msg)
		case strings.HasPrefix(msg, "BUSYKEY"):
			return endpoint.NewError(endpoint.RetCInvalidOperation, msg)
		case strings.HasPrefix(msg, "ERR DUMP payload"), strings.HasPrefix(msg, "ERR Bad data format"):
			return endpoint.NewError(endpoint.RetCInvalidOperation, msg)
		default:
			return endpoint.NewError(endpoint.RetCInternalError, msg)
		}
	}
	return err
}

// --------------------------------------------------------------------------
// Interface Methods - Reads (docu see endpoint/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Type(ctx context.Context, key string) (endpoint.ValueType, error) {
	t, err := s.client.Type(ctx, key).Result()
	if err != nil {
		return "", mapError(err)
	}
	return endpoint.ValueType(t), nil
}

func (s *storeImpl) GetString(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key).Result()
	return v, mapError(err)
}

func (s *storeImpl) GetHashAll(ctx context.Context, key string) (map[string]string, error) {
	v, err := s.client.HGetAll(ctx, key).Result()
	return v, mapError(err)
}

func (s *storeImpl) GetSortedSetRangeWithScores(ctx context.Context, key string) ([]endpoint.Z, error) {
	zs, err := s.client.ZRangeWithScores(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]endpoint.Z, len(zs))
	for i, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			member = fmt.Sprint(z.Member)
		}
		out[i] = endpoint.Z{Member: member, Score: z.Score}
	}
	return out, nil
}

func (s *storeImpl) GetSetMembers(ctx context.Context, key string) ([]string, error) {
	v, err := s.client.SMembers(ctx, key).Result()
	return v, mapError(err)
}

func (s *storeImpl) GetListRange(ctx context.Context, key string) ([]string, error) {
	v, err := s.client.LRange(ctx, key, 0, -1).Result()
	return v, mapError(err)
}

func (s *storeImpl) GetExpiry(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, mapError(err)
	}
	// go-redis keeps the negative sentinels unscaled
	switch d {
	case -2:
		return 0, endpoint.ErrNotFound
	case -1:
		return endpoint.NoExpiry, nil
	}
	return d, nil
}

func (s *storeImpl) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	return n > 0, mapError(err)
}

// --------------------------------------------------------------------------
// Interface Methods - Writes (docu see endpoint/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) SetString(ctx context.Context, key, value string) error {
	return mapError(s.client.Set(ctx, key, value, 0).Err())
}

func (s *storeImpl) SetHash(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	args := make([]interface{}, 0, 2*len(fields))
	for f, v := range fields {
		args = append(args, f, v)
	}
	return mapError(s.client.HSet(ctx, key, args...).Err())
}

func (s *storeImpl) AddSortedSet(ctx context.Context, key string, members []endpoint.Z) error {
	if len(members) == 0 {
		return nil
	}
	zs := make([]redis.Z, len(members))
	for i, z := range members {
		zs[i] = redis.Z{Score: z.Score, Member: z.Member}
	}
	return mapError(s.client.ZAdd(ctx, key, zs...).Err())
}

func (s *storeImpl) AddSet(ctx context.Context, key string, members []string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return mapError(s.client.SAdd(ctx, key, args...).Err())
}

func (s *storeImpl) PushList(ctx context.Context, key string, elements []string) error {
	if len(elements) == 0 {
		return nil
	}
	args := make([]interface{}, len(elements))
	for i, e := range elements {
		args[i] = e
	}
	return mapError(s.client.RPush(ctx, key, args...).Err())
}

func (s *storeImpl) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		// a non-positive ttl deletes the key
		n, err := s.client.Del(ctx, key).Result()
		if err != nil {
			return mapError(err)
		}
		if n == 0 {
			return endpoint.ErrNotFound
		}
		return nil
	}
	ok, err := s.client.PExpire(ctx, key, ttl).Result()
	if err != nil {
		return mapError(err)
	}
	if !ok {
		return endpoint.ErrNotFound
	}
	return nil
}

func (s *storeImpl) Delete(ctx context.Context, key string) error {
	return mapError(s.client.Del(ctx, key).Err())
}

// --------------------------------------------------------------------------
// Interface Methods - Dump, Restore and Scan
// --------------------------------------------------------------------------

func (s *storeImpl) Dump(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Dump(ctx, key).Result()
	if err != nil {
		return nil, mapError(err)
	}
	return []byte(v), nil
}

func (s *storeImpl) Restore(ctx context.Context, key string, ttl time.Duration, blob []byte, replace bool) error {
	if ttl < 0 {
		ttl = 0
	}
	if replace {
		return mapError(s.client.RestoreReplace(ctx, key, ttl, string(blob)).Err())
	}
	return mapError(s.client.Restore(ctx, key, ttl, string(blob)).Err())
}

func (s *storeImpl) Scan(ctx context.Context, pattern string, fn func(key string) error) error {
	if pattern == "" {
		pattern = "*"
	}

	// SCAN may return a key more than once. The set of seen keys is bounded,
	// once it is full duplicates of later keys are passed on.
	seen := make(map[string]struct{})
	full := s.scanDedup < 0
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, s.scanCount).Result()
		if err != nil {
			return mapError(err)
		}
		for _, k := range keys {
			if _, dup := seen[k]; dup {
				continue
			}
			if !full {
				seen[k] = struct{}{}
				if full = len(seen) >= s.scanDedup; full {
					Logger.Warningf("%s: scan remembered %d keys, duplicates are no longer dropped", s.name, len(seen))
				}
			}
			if err := fn(k); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// --------------------------------------------------------------------------
// Interface Methods - Features and Metadata
// --------------------------------------------------------------------------

func (s *storeImpl) SupportsFeature(feature endpoint.Feature) bool {
	supportedFeatures := endpoint.FeatureRead |
		endpoint.FeatureReplay |
		endpoint.FeatureScan
	if s.version >= minDumpVersion {
		supportedFeatures |= endpoint.FeatureDump | endpoint.FeatureRestore
	}
	return supportedFeatures&feature == feature
}

func (s *storeImpl) DumpFormat(_ context.Context) (endpoint.DumpFormat, error) {
	if s.version < minDumpVersion {
		return endpoint.DumpFormat{}, endpoint.Errorf(endpoint.RetCUnsupportedOperation,
			"%s does not support DUMP/RESTORE", s.name)
	}
	return endpoint.DumpFormat{Family: DumpFamily, Version: s.version}, nil
}

func (s *storeImpl) Name() string {
	return s.name
}

func (s *storeImpl) Close() error {
	return s.client.Close()
}
