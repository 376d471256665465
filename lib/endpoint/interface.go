package endpoint

import (
	"context"
	"time"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

// ValueType is the structural kind of a stored value. The names are the ones
// a redis server reports for the TYPE command. Any other name (e.g. "stream"
// or "none" for an absent key) is a valid ValueType that is not Known.
type ValueType string

const (
	TypeString    ValueType = "string"
	TypeHash      ValueType = "hash"
	TypeSortedSet ValueType = "zset"
	TypeSet       ValueType = "set"
	TypeList      ValueType = "list"
	TypeNone      ValueType = "none" // reported for absent keys
)

// Known reports whether the type is one of the supported value types.
func (t ValueType) Known() bool {
	switch t {
	case TypeString, TypeHash, TypeSortedSet, TypeSet, TypeList:
		return true
	default:
		return false
	}
}

func (t ValueType) String() string {
	return string(t)
}

// Z is a single sorted set member with its score.
type Z struct {
	Member string  `json:"member"`
	Score  float64 `json:"score"`
}

// NoExpiry is returned by GetExpiry for keys without a time to live.
const NoExpiry time.Duration = -1

// Feature represents endpoint capabilities as bit flags
type Feature uint64

const (
	FeatureRead    Feature = 1 << iota // Support for typed read operations
	FeatureReplay                      // Support for typed write operations
	FeatureDump                        // Support for Dump
	FeatureRestore                     // Support for Restore
	FeatureScan                        // Support for Scan
)

func (f Feature) String() string {
	switch f {
	case FeatureRead:
		return "Read"
	case FeatureReplay:
		return "Replay"
	case FeatureDump:
		return "Dump"
	case FeatureRestore:
		return "Restore"
	case FeatureScan:
		return "Scan"
	default:
		return "Unknown"
	}
}

// DumpFormat describes the blob format produced by Dump and accepted by Restore.
// Blobs can only move between endpoints of the same Family, and only towards an
// endpoint whose Version is at least the producer's Version.
type DumpFormat struct {
	Family  string `json:"family"`
	Version int    `json:"version"`
}

// CanRestoreFrom reports whether a blob in format src can be restored by an endpoint using f.
func (f DumpFormat) CanRestoreFrom(src DumpFormat) bool {
	return f.Family != "" && f.Family == src.Family && f.Version >= src.Version
}

// Opener opens a new endpoint. It is used whenever a caller needs more than one
// independent connection to the same store (e.g. one per worker).
type Opener func(ctx context.Context) (Endpoint, error)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Reader groups the typed read operations of an endpoint.
// Reads of an absent key return an error matching ErrNotFound, except for the
// collection readers which return an empty collection like redis does.
type Reader interface {
	// Type returns the value type of key, TypeNone if the key does not exist.
	Type(ctx context.Context, key string) (ValueType, error)
	// GetString returns the full string value.
	GetString(ctx context.Context, key string) (string, error)
	// GetHashAll returns all fields of a hash.
	GetHashAll(ctx context.Context, key string) (map[string]string, error)
	// GetSortedSetRangeWithScores returns all members ordered by score, ties by member.
	GetSortedSetRangeWithScores(ctx context.Context, key string) ([]Z, error)
	// GetSetMembers returns all members of a set in no particular order.
	GetSetMembers(ctx context.Context, key string) ([]string, error)
	// GetListRange returns all elements of a list in order.
	GetListRange(ctx context.Context, key string) ([]string, error)
	// GetExpiry returns the remaining time to live or NoExpiry.
	GetExpiry(ctx context.Context, key string) (time.Duration, error)
	// Exists reports whether the key exists.
	Exists(ctx context.Context, key string) (bool, error)
}

// Writer groups the typed write operations used to replay a value.
// The collection writers add to an existing value of the same type and fail
// with ErrWrongType if the key holds a different type.
type Writer interface {
	SetString(ctx context.Context, key, value string) error
	SetHash(ctx context.Context, key string, fields map[string]string) error
	AddSortedSet(ctx context.Context, key string, members []Z) error
	AddSet(ctx context.Context, key string, members []string) error
	PushList(ctx context.Context, key string, elements []string) error
	// Expire sets a time to live on an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Endpoint is a handle to one key-value store.
// Implementations are not required to be safe for concurrent use by multiple
// goroutines unless they state otherwise.
type Endpoint interface {
	Reader
	Writer

	// Dump serializes the value of key into an opaque blob (expiry excluded).
	Dump(ctx context.Context, key string) ([]byte, error)
	// Restore materializes a blob created by Dump. A ttl of 0 means no expiry.
	// If replace is false and the key exists, Restore fails with ErrInvalidOperation.
	Restore(ctx context.Context, key string, ttl time.Duration, blob []byte, replace bool) error

	// Scan calls fn for every key matching the glob pattern (redis SCAN MATCH
	// semantics, see Pattern). Iteration stops at the first error.
	Scan(ctx context.Context, pattern string, fn func(key string) error) error

	// SupportsFeature checks if the endpoint supports the specified features.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) bool
	// DumpFormat reports the format produced by Dump and accepted by Restore.
	DumpFormat(ctx context.Context) (DumpFormat, error)

	// Name returns a short human-readable description (e.g. "redis localhost:6379/0").
	Name() string
	// Close releases the resources held by the endpoint.
	Close() error
}
